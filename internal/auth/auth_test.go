package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"chaszcze-site/internal/config"
	"chaszcze-site/internal/models"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func devConfig() config.Config {
	return config.Config{BasePublicURL: "http://localhost:8080", SessionSecret: "test-secret"}
}

func azureConfig() config.Config {
	return config.Config{
		BasePublicURL:     "https://chaszcze.example",
		SessionSecret:     "test-secret",
		AzureClientID:     "client-id",
		AzureClientSecret: "client-secret",
		AzureTenantID:     "tenant",
		AzureAPIScope:     "api://chaszcze/.default",
	}
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func idToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSignParseRoundTrip(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	in := models.Session{
		ID:          "sid-1",
		AccessToken: "at",
		Name:        "Ola",
		Email:       "ola@example.org",
		Roles:       []string{"user", "admin"},
		Expiry:      time.Now().Add(time.Hour).Truncate(time.Second),
	}
	signed, err := m.Sign(in)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	out, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if !reflect.DeepEqual(out.Roles, in.Roles) || out.ID != in.ID || out.AccessToken != "at" || out.Email != in.Email {
		t.Errorf("round trip = %+v", out)
	}
	if !out.Expiry.Equal(in.Expiry) {
		t.Errorf("Expiry = %s, want %s", out.Expiry, in.Expiry)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	other := NewManager(config.Config{SessionSecret: "other"}, quietLogger())

	expired, _ := m.Sign(models.Session{ID: "x", Expiry: time.Now().Add(-time.Minute)})
	foreign, _ := other.Sign(models.Session{ID: "x", Expiry: time.Now().Add(time.Hour)})
	noID, _ := m.Sign(models.Session{Expiry: time.Now().Add(time.Hour)})

	for name, tok := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"no id":        noID,
		"garbage":      "not.a.jwt",
	} {
		if _, err := m.Parse(tok); !errors.Is(err, ErrNoSession) {
			t.Errorf("%s: Parse() = %v, want ErrNoSession", name, err)
		}
	}
}

func TestDevModeStartIssuesSession(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	if !m.DevMode() {
		t.Fatal("expected dev mode without client id")
	}

	rec := httptest.NewRecorder()
	m.Start(rec, httptest.NewRequest(http.MethodGet, "/auth/start", nil))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != AfterLogin {
		t.Fatalf("Start() = %d %s", rec.Code, rec.Header().Get("Location"))
	}
	sess, err := m.Parse(cookieFrom(t, rec, SessionCookie).Value)
	if err != nil {
		t.Fatalf("dev session invalid: %v", err)
	}
	if sess.HasToken() {
		t.Error("dev session must not carry a token")
	}
	if !sess.HasRole("admin") {
		t.Errorf("dev roles = %v", sess.Roles)
	}
}

func TestStartRedirectsToProvider(t *testing.T) {
	m := NewManager(azureConfig(), quietLogger())
	rec := httptest.NewRecorder()
	m.Start(rec, httptest.NewRequest(http.MethodGet, "/auth/start", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Host != "login.microsoftonline.com" || !strings.Contains(loc.Path, "/tenant/") {
		t.Errorf("provider url = %s", loc)
	}
	q := loc.Query()
	if q.Get("client_id") != "client-id" || q.Get("redirect_uri") != "https://chaszcze.example/auth/callback" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "openid profile email api://chaszcze/.default" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	state := cookieFrom(t, rec, stateCookie)
	if state.Value == "" || state.Value != q.Get("state") || !state.Secure {
		t.Errorf("state cookie = %+v, query state %q", state, q.Get("state"))
	}
}

func callbackRequest(state, cookieState, code string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code="+code, nil)
	if cookieState != "" {
		r.AddCookie(&http.Cookie{Name: stateCookie, Value: cookieState})
	}
	return r
}

func TestCallback(t *testing.T) {
	m := NewManager(azureConfig(), quietLogger())
	var gotCode string
	m.exchange = func(_ context.Context, code string) (*oauth2.Token, error) {
		gotCode = code
		tok := &oauth2.Token{AccessToken: "access-123", Expiry: time.Now().Add(time.Hour)}
		return tok.WithExtra(map[string]interface{}{
			"id_token": idToken(t, jwt.MapClaims{
				"name":  "Kasia",
				"email": "kasia@example.org",
				"roles": []string{"admin"},
			}),
		}), nil
	}

	rec := httptest.NewRecorder()
	m.Callback(rec, callbackRequest("abc", "abc", "the-code"))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != AfterLogin {
		t.Fatalf("Callback() = %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if gotCode != "the-code" {
		t.Errorf("exchanged code = %q", gotCode)
	}
	sess, err := m.Parse(cookieFrom(t, rec, SessionCookie).Value)
	if err != nil {
		t.Fatalf("session invalid: %v", err)
	}
	if sess.AccessToken != "access-123" || sess.Name != "Kasia" || !sess.HasRole("admin") {
		t.Errorf("session = %+v", sess)
	}
}

func TestCallbackDefaultRole(t *testing.T) {
	m := NewManager(azureConfig(), quietLogger())
	m.exchange = func(context.Context, string) (*oauth2.Token, error) {
		tok := &oauth2.Token{AccessToken: "at"}
		return tok.WithExtra(map[string]interface{}{
			"id_token": idToken(t, jwt.MapClaims{"preferred_username": "jan@example.org"}),
		}), nil
	}
	rec := httptest.NewRecorder()
	m.Callback(rec, callbackRequest("s", "s", "c"))

	sess, err := m.Parse(cookieFrom(t, rec, SessionCookie).Value)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sess.Roles, []string{"user"}) || sess.Email != "jan@example.org" {
		t.Errorf("session = %+v", sess)
	}
}

func TestCallbackRejects(t *testing.T) {
	tests := []struct {
		name     string
		req      *http.Request
		exchErr  error
		wantCode int
		wantLoc  string
	}{
		{"state mismatch", callbackRequest("a", "b", "c"), nil, http.StatusBadRequest, ""},
		{"missing state cookie", callbackRequest("a", "", "c"), nil, http.StatusBadRequest, ""},
		{"provider error", httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil), nil, http.StatusFound, "/login?error=provider"},
		{"exchange failure", callbackRequest("a", "a", "c"), errors.New("invalid_grant"), http.StatusFound, "/login?error=exchange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(azureConfig(), quietLogger())
			m.exchange = func(context.Context, string) (*oauth2.Token, error) {
				if tt.exchErr != nil {
					return nil, tt.exchErr
				}
				return &oauth2.Token{AccessToken: "at"}, nil
			}
			rec := httptest.NewRecorder()
			m.Callback(rec, tt.req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q", rec.Header().Get("Location"))
			}
			for _, c := range rec.Result().Cookies() {
				if c.Name == SessionCookie {
					t.Error("session cookie must not be set")
				}
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	var seen models.Session
	h := m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != LoginPath {
		t.Errorf("anonymous: %d %s", rec.Code, rec.Header().Get("Location"))
	}

	signed, _ := m.Sign(models.Session{ID: "sid-9", Expiry: time.Now().Add(time.Hour)})
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signed})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || seen.ID != "sid-9" {
		t.Errorf("logged in: %d session %+v", rec.Code, seen)
	}
}

func TestLogoutRunsHook(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	var dropped string
	m.OnLogout(func(id string) { dropped = id })

	signed, _ := m.Sign(models.Session{ID: "sid-5", Expiry: time.Now().Add(time.Hour)})
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signed})
	rec := httptest.NewRecorder()
	m.Logout(rec, req)

	if dropped != "sid-5" {
		t.Errorf("hook got %q", dropped)
	}
	if c := cookieFrom(t, rec, SessionCookie); c.MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", c)
	}
}

func TestAccessTokenStaysOutOfCookie(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	big := strings.Repeat("a", 6000)
	signed, err := m.Sign(models.Session{ID: "sid-big", AccessToken: big, Expiry: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(signed) > 1024 {
		t.Errorf("cookie is %d bytes", len(signed))
	}
	parsed, _, err := new(jwt.Parser).ParseUnverified(signed, jwt.MapClaims{})
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range parsed.Claims.(jwt.MapClaims) {
		if s, ok := v.(string); ok && s == big {
			t.Errorf("claim %q carries the access token", k)
		}
	}

	sess, err := m.Parse(signed)
	if err != nil || sess.AccessToken != big {
		t.Fatalf("Parse() = %v, token len %d", err, len(sess.AccessToken))
	}
}

func TestHeldTokenLostAfterRestartOrLogout(t *testing.T) {
	m := NewManager(devConfig(), quietLogger())
	signed, _ := m.Sign(models.Session{ID: "sid-7", AccessToken: "at", Expiry: time.Now().Add(time.Hour)})

	restarted := NewManager(devConfig(), quietLogger())
	if _, err := restarted.Parse(signed); !errors.Is(err, ErrNoSession) {
		t.Errorf("restarted Parse() = %v, want ErrNoSession", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signed})
	m.Logout(httptest.NewRecorder(), req)
	if _, err := m.Parse(signed); !errors.Is(err, ErrNoSession) {
		t.Errorf("Parse() after logout = %v, want ErrNoSession", err)
	}

	dev, _ := m.Sign(models.Session{ID: "sid-dev", Expiry: time.Now().Add(time.Hour)})
	if _, err := restarted.Parse(dev); err != nil {
		t.Errorf("token-less session should survive a restart: %v", err)
	}
}

func TestTokenStoreDropsExpired(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	s := newTokenStore(func() time.Time { return now })
	s.put("old", "t1", now.Add(time.Minute))
	now = now.Add(time.Hour)
	if _, ok := s.get("old"); ok {
		t.Error("expired token returned")
	}
	s.put("new", "t2", now.Add(time.Hour))
	if len(s.byID) != 1 {
		t.Errorf("store holds %d tokens, want 1", len(s.byID))
	}
}
