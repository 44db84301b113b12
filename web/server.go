// Package web serves the dashboard: public login and signup pages, the
// guarded dashboard pages, and a small JSON API over the same stores.
package web

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/incorpdash/app"
	"github.com/jmcleod/incorpdash/session"
)

// Server holds the dependencies needed by the HTTP handlers.
type Server struct {
	app         *app.App
	auth        session.Authenticator
	guard       *Guard
	theme       *Theme
	pages       *pageSet
	rateLimiter *loginRateLimiter
	audit       *auditLogger
	alertFn     AlertFunc
	webhookURL  string
	webhookAuth string
	logger      *slog.Logger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the Server instance.
type Option func(*Server)

// WithLogger sets the structured logger for audit and request events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAlertHandler registers a callback for login failure spikes.
func WithAlertHandler(fn AlertFunc) Option {
	return func(s *Server) {
		s.alertFn = fn
	}
}

// WithAuditWebhook forwards every audit event to url. authHeader, when set,
// is a "Header: Value" pair added to each request.
func WithAuditWebhook(url, authHeader string) Option {
	return func(s *Server) {
		s.webhookURL = url
		s.webhookAuth = authHeader
	}
}

// New creates a Server over a started App. theme is the presentation flag
// the App's preference store applies to; when nil, pages read the
// preference store directly.
func New(a *app.App, theme *Theme, opts ...Option) *Server {
	s := &Server{
		app:         a,
		theme:       theme,
		pages:       mustParsePages(),
		rateLimiter: newLoginRateLimiter(),
		logger:      slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = newAuditLogger(s.logger)
	if s.alertFn != nil {
		s.audit.metrics = newMetricsCollector(s.alertFn)
	}
	if s.webhookURL != "" {
		s.audit.webhook = newAuditWebhook(s.webhookURL, s.webhookAuth, s.logger)
	}
	s.auth, _ = a.Authenticator()
	s.guard = NewGuard(a.Sessions, s.logger)
	return s
}

// Router returns a chi.Router with every dashboard route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(s.CSRFMiddleware)

	r.Get("/login", s.LoginPage)
	r.Post("/login", s.LoginSubmit)
	r.Get("/signup", s.SignupPage)
	r.Post("/signup", s.SignupSubmit)
	r.Post("/logout", s.Logout)

	// Protected subtree. Each leaf is a content view inside the nav frame.
	r.Group(func(r chi.Router) {
		r.Use(s.guard.Protect)
		r.Get("/", s.page("dashboard"))
		r.Get("/documents", s.page("documents"))
		r.Get("/billing", s.page("billing"))
		r.Get("/tickets", s.page("tickets"))
		r.Get("/settings", s.page("settings"))
		r.Post("/settings/theme", s.ToggleThemeForm)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/yaml")
			w.Write(openapiSpec)
		})
		r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/docs",
		}, nil))
		r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/redoc",
		}, nil))

		r.Get("/session", s.SessionStatus)
		r.Post("/auth/login", s.APILogin)
		r.Post("/auth/logout", s.APILogout)
		r.Get("/preferences/theme", s.ThemeStatus)
		r.With(s.guard.ProtectAPI).Post("/preferences/theme", s.APIToggleTheme)
	})

	return r
}

// Close flushes pending audit webhook deliveries. It is safe to call more
// than once.
func (s *Server) Close() {
	if s.audit.webhook != nil {
		s.audit.webhook.close()
	}
}

// darkMode reports the presentation flag pages render with.
func (s *Server) darkMode() bool {
	if s.theme != nil {
		return s.theme.Dark()
	}
	return s.app.Preferences.DarkMode()
}
