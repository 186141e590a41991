package server

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/config"
	"chaszcze-site/internal/content"
	"chaszcze-site/internal/events"
	"chaszcze-site/internal/grid"
	"chaszcze-site/internal/landing"
	"chaszcze-site/internal/models"
)

// PageLoader builds the public page data.
type PageLoader interface {
	Load(ctx context.Context) landing.Page
}

// EventAdmin is the events-admin workflow used by the dashboard.
type EventAdmin interface {
	List(ctx context.Context, sess models.Session) ([]models.Event, error)
	Get(ctx context.Context, sess models.Session, id int) (models.Event, error)
	Create(ctx context.Context, sess models.Session, f events.Form) (models.Event, error)
	Update(ctx context.Context, sess models.Session, id int, f events.Form) (models.Event, error)
	Delete(ctx context.Context, sess models.Session, ev models.Event) error
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Landing PageLoader
	Events  EventAdmin
	Grids   *grid.Store
	Auth    *auth.Manager
	Content content.Blocks
	Log     logrus.FieldLogger

	RegistrationURL string

	// CSRFKey enables form protection on every state-changing route. Left nil
	// only in handler tests.
	CSRFKey      []byte
	SecureCookie bool
}

type handlers struct {
	Deps
	pages *pages
}

func New(cfg config.Config, d Deps) (*http.Server, error) {
	if d.CSRFKey == nil {
		d.CSRFKey = CSRFKey(cfg.SessionSecret)
	}
	d.SecureCookie = strings.HasPrefix(cfg.BasePublicURL, "https://")
	if d.RegistrationURL == "" {
		d.RegistrationURL = cfg.RegistrationURL
	}
	h, err := NewHandler(d)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// CSRFKey derives the 32-byte form-token key from the session secret.
func CSRFKey(secret string) []byte {
	sum := sha256.Sum256([]byte("csrf:" + secret))
	return sum[:]
}

// NewHandler wires every route.
func NewHandler(d Deps) (http.Handler, error) {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	h := &handlers{Deps: d, pages: p}

	protect := func(next http.Handler) http.Handler { return next }
	if d.CSRFKey != nil {
		protect = csrf.Protect(d.CSRFKey,
			csrf.Secure(d.SecureCookie),
			csrf.Path("/"),
			csrf.ErrorHandler(http.HandlerFunc(h.csrfFailed)),
		)
	}
	secured := func(fn http.HandlerFunc) http.Handler {
		return d.Auth.RequireSession(protect(fn))
	}

	r := mux.NewRouter()
	r.Use(RequestLogger(d.Log))

	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/wyniki/{id:[0-9]+}.csv", h.resultsCSV).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/login", h.login).Methods(http.MethodGet)
	r.HandleFunc("/auth/start", d.Auth.Start).Methods(http.MethodGet)
	r.HandleFunc(auth.CallbackPath, d.Auth.Callback).Methods(http.MethodGet)
	r.Handle("/logout", protect(http.HandlerFunc(d.Auth.Logout))).Methods(http.MethodPost)

	r.Handle("/dashboard", secured(h.dashboard)).Methods(http.MethodGet)

	r.Handle("/dashboard/events", secured(h.eventsList)).Methods(http.MethodGet)
	r.Handle("/dashboard/events/new", secured(h.eventNewForm)).Methods(http.MethodGet)
	r.Handle("/dashboard/events/new", secured(h.eventCreate)).Methods(http.MethodPost)
	r.Handle("/dashboard/events/{id:[0-9]+}/edit", secured(h.eventEditForm)).Methods(http.MethodGet)
	r.Handle("/dashboard/events/{id:[0-9]+}/edit", secured(h.eventUpdate)).Methods(http.MethodPost)
	r.Handle("/dashboard/events/{id:[0-9]+}/delete", secured(h.eventDelete)).Methods(http.MethodPost)

	r.Handle("/dashboard/results", secured(h.resultsPage)).Methods(http.MethodGet)
	r.Handle("/dashboard/results/edit", secured(h.resultsEdit)).Methods(http.MethodPost)
	r.Handle("/dashboard/results/add", secured(h.resultsAdd)).Methods(http.MethodPost)

	r.NotFoundHandler = RequestLogger(d.Log)(http.HandlerFunc(h.notFound))
	return r, nil
}

func (h *handlers) csrfFailed(w http.ResponseWriter, r *http.Request) {
	h.Log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"reason": csrf.FailureReason(r),
	}).Warn("csrf check failed")
	http.Error(w, "Formularz wygasł, odśwież stronę i spróbuj ponownie.", http.StatusForbidden)
}

// ---------- Middleware ----------

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
			if rec.status >= 500 {
				entry.Error("request")
				return
			}
			entry.Info("request")
		})
	}
}
