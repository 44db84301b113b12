package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jmcleod/incorpdash/session"
)

// LoginPath is the public entry point unauthenticated traffic is sent to.
const LoginPath = "/login"

// GuardState is the route guard's view of the current request.
type GuardState int

const (
	// Guarding means no confirmed session: protected content is replaced
	// by a redirect to LoginPath.
	Guarding GuardState = iota
	// Admitted means a confirmed session: protected content renders.
	Admitted
)

func (s GuardState) String() string {
	switch s {
	case Guarding:
		return "guarding"
	case Admitted:
		return "admitted"
	default:
		return "unknown"
	}
}

type contextKey int

const sessionKey contextKey = iota

// Guard gates the protected subtree on the session store. The state is
// recomputed from the store on every request, so a sign-out applied by the
// auth listener takes effect on the very next request.
type Guard struct {
	sessions *session.Store
	logger   *slog.Logger
}

// NewGuard creates a Guard over sessions.
func NewGuard(sessions *session.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{sessions: sessions, logger: logger.With("component", "guard")}
}

// State reports the guard state for the current session.
func (g *Guard) State() GuardState {
	if g.sessions.IsAuthenticated() {
		return Admitted
	}
	return Guarding
}

// Protect redirects unauthenticated page requests to LoginPath with 303 See
// Other. The guarded URL is never rendered and responses are marked
// no-store, so back-navigation re-enters the guard instead of showing a
// cached protected page.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		s := g.sessions.Session()
		if s == nil {
			g.logger.Debug("redirecting unauthenticated request", "path", r.URL.Path)
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
	})
}

// ProtectAPI is Protect for JSON endpoints: it answers 401 instead of
// redirecting.
func (g *Guard) ProtectAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		s := g.sessions.Session()
		if s == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
	})
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFromContext returns the session admitted by the guard.
func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}
