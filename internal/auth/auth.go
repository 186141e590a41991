// Package auth handles operator login through the identity provider and keeps
// the resulting session in a signed cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"chaszcze-site/internal/config"
	"chaszcze-site/internal/models"
)

const (
	SessionCookie = "chaszcze_session"
	stateCookie   = "chaszcze_oauth_state"

	sessionTTL = 8 * time.Hour
	stateTTL   = 10 * time.Minute

	LoginPath     = "/login"
	AfterLogin    = "/dashboard"
	CallbackPath  = "/auth/callback"
	DefaultRole   = "user"
	devName       = "Tryb deweloperski"
	devAdminRole  = "admin"
	claimRoles    = "roles"
	claimName     = "name"
	claimEmail    = "email"
	claimUsername = "preferred_username"
	claimHeld     = "tok"
)

var (
	ErrStateMismatch = errors.New("auth: state mismatch")
	ErrNoSession     = errors.New("auth: no session")
)

// Manager runs the login flow and reads sessions back from requests.
type Manager struct {
	oauth    *oauth2.Config
	secret   []byte
	secure   bool
	log      logrus.FieldLogger
	now      func() time.Time
	exchange func(ctx context.Context, code string) (*oauth2.Token, error)
	onLogout func(sessionID string)
	tokens   *tokenStore
}

func NewManager(cfg config.Config, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		secret: []byte(cfg.SessionSecret),
		secure: strings.HasPrefix(cfg.BasePublicURL, "https://"),
		log:    log,
		now:    time.Now,
	}
	m.tokens = newTokenStore(func() time.Time { return m.now() })
	if cfg.DevLogin() {
		log.Warn("⚠️ AZURE_AD_CLIENT_ID is not set: dashboard login is open to anyone (development mode)")
		return m
	}

	scopes := []string{"openid", "profile", "email"}
	if cfg.AzureAPIScope != "" {
		scopes = append(scopes, cfg.AzureAPIScope)
	}
	m.oauth = &oauth2.Config{
		ClientID:     cfg.AzureClientID,
		ClientSecret: cfg.AzureClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(cfg.AzureTenantID),
		RedirectURL:  cfg.BasePublicURL + CallbackPath,
		Scopes:       scopes,
	}
	m.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return m.oauth.Exchange(ctx, code)
	}
	return m
}

// DevMode reports whether logins skip the identity provider.
func (m *Manager) DevMode() bool { return m.oauth == nil }

// OnLogout registers a hook run with the session id on every logout.
func (m *Manager) OnLogout(fn func(sessionID string)) { m.onLogout = fn }

// Start begins a login: a redirect to the provider, or straight to the
// dashboard with a token-less session in development mode.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request) {
	if m.DevMode() {
		sess := models.Session{
			ID:     uuid.NewString(),
			Name:   devName,
			Roles:  []string{DefaultRole, devAdminRole},
			Expiry: m.now().Add(sessionTTL),
		}
		if err := m.setSession(w, sess); err != nil {
			m.log.WithError(err).Error("failed to issue dev session")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		m.log.WithField("session", sess.ID).Warn("development session issued")
		http.Redirect(w, r, AfterLogin, http.StatusFound)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, m.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the provider redirect.
func (m *Manager) Callback(w http.ResponseWriter, r *http.Request) {
	if m.DevMode() {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	if e := r.URL.Query().Get("error"); e != "" {
		m.log.WithFields(logrus.Fields{
			"error":       e,
			"description": r.URL.Query().Get("error_description"),
		}).Warn("identity provider returned an error")
		http.Redirect(w, r, LoginPath+"?error=provider", http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		m.log.WithError(ErrStateMismatch).Warn("login rejected")
		http.Error(w, "invalid login state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	tok, err := m.exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		m.log.WithError(err).Error("token exchange failed")
		http.Redirect(w, r, LoginPath+"?error=exchange", http.StatusFound)
		return
	}

	sess := m.sessionFromToken(tok)
	if err := m.setSession(w, sess); err != nil {
		m.log.WithError(err).Error("failed to sign session")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	m.log.WithFields(logrus.Fields{"session": sess.ID, "email": sess.Email, "roles": sess.Roles}).Info("operator logged in")
	http.Redirect(w, r, AfterLogin, http.StatusFound)
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, err := m.SessionFromRequest(r); err == nil {
		m.tokens.drop(sess.ID)
		if m.onLogout != nil {
			m.onLogout(sess.ID)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (m *Manager) sessionFromToken(tok *oauth2.Token) models.Session {
	sess := models.Session{
		ID:          uuid.NewString(),
		AccessToken: tok.AccessToken,
		Roles:       []string{DefaultRole},
		Expiry:      tok.Expiry,
	}
	if sess.Expiry.IsZero() || sess.Expiry.After(m.now().Add(sessionTTL)) {
		sess.Expiry = m.now().Add(sessionTTL)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return sess
	}
	// Claims only; the token came directly from the token endpoint.
	parsed, _, err := new(jwt.Parser).ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		m.log.WithError(err).Warn("unreadable id token, using default role")
		return sess
	}
	claims, _ := parsed.Claims.(jwt.MapClaims)
	sess.Name = claimString(claims, claimName)
	sess.Email = claimString(claims, claimEmail)
	if sess.Email == "" {
		sess.Email = claimString(claims, claimUsername)
	}
	if roles := claimStrings(claims, claimRoles); len(roles) > 0 {
		sess.Roles = roles
	}
	return sess
}

// ---------- session cookie ----------

func (m *Manager) setSession(w http.ResponseWriter, sess models.Session) error {
	signed, err := m.Sign(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  sess.Expiry,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Sign encodes the session as an HS256 JWT. The access token is kept in
// memory under the session id and only flagged in the cookie.
func (m *Manager) Sign(sess models.Session) (string, error) {
	roles := make([]interface{}, len(sess.Roles))
	for i, r := range sess.Roles {
		roles[i] = r
	}
	claims := jwt.MapClaims{
		"sid":      sess.ID,
		claimName:  sess.Name,
		claimEmail: sess.Email,
		claimRoles: roles,
		"exp":      sess.Expiry.Unix(),
		"iat":      m.now().Unix(),
	}
	if sess.HasToken() {
		m.tokens.put(sess.ID, sess.AccessToken, sess.Expiry)
		claims[claimHeld] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies a signed session and decodes it.
func (m *Manager) Parse(signed string) (models.Session, error) {
	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Session{}, ErrNoSession
	}
	exp, _ := claims["exp"].(float64)
	if time.Unix(int64(exp), 0).Before(m.now()) {
		return models.Session{}, fmt.Errorf("%w: expired", ErrNoSession)
	}
	sess := models.Session{
		ID:     claimString(claims, "sid"),
		Name:   claimString(claims, claimName),
		Email:  claimString(claims, claimEmail),
		Roles:  claimStrings(claims, claimRoles),
		Expiry: time.Unix(int64(exp), 0),
	}
	if sess.ID == "" {
		return models.Session{}, ErrNoSession
	}
	if held, _ := claims[claimHeld].(bool); held {
		tok, ok := m.tokens.get(sess.ID)
		if !ok {
			return models.Session{}, fmt.Errorf("%w: access token no longer held", ErrNoSession)
		}
		sess.AccessToken = tok
	}
	return sess, nil
}

func (m *Manager) SessionFromRequest(r *http.Request) (models.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return models.Session{}, ErrNoSession
	}
	return m.Parse(c.Value)
}

// ---------- middleware ----------

type ctxKey struct{}

func WithSession(ctx context.Context, sess models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

func FromContext(ctx context.Context) (models.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(models.Session)
	return sess, ok
}

// RequireSession redirects anonymous requests to the login page and puts the
// session into the request context otherwise.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.SessionFromRequest(r)
		if err != nil {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// ---------- helpers ----------

func claimString(c jwt.MapClaims, key string) string {
	s, _ := c[key].(string)
	return s
}

func claimStrings(c jwt.MapClaims, key string) []string {
	switch v := c[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
