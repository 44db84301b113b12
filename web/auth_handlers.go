package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/incorpdash/backend"
	"github.com/jmcleod/incorpdash/session"
)

var errRateLimited = errors.New("too many failed login attempts; try again later")

// LoginPage handles GET /login. An already admitted user goes straight to
// the dashboard.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	if s.guard.State() == Admitted {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, s.newPageData(r, "login"))
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	_, status, err := s.signIn(w, r, email, r.PostFormValue("password"))
	if err != nil {
		data := s.newPageData(r, "login")
		data.Email = email
		data.Error = err.Error()
		s.render(w, status, data)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SignupPage handles GET /signup.
func (s *Server) SignupPage(w http.ResponseWriter, r *http.Request) {
	if s.guard.State() == Admitted {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, s.newPageData(r, "signup"))
}

// SignupSubmit handles POST /signup.
func (s *Server) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	renderErr := func(status int, msg string) {
		data := s.newPageData(r, "signup")
		data.Email = email
		data.Error = msg
		s.render(w, status, data)
	}
	if s.auth == nil {
		renderErr(http.StatusNotImplemented, "sign up is not available")
		return
	}

	sess, err := s.auth.SignUp(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		status, msg := authErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("sign up failed", "error", err)
		}
		s.audit.logFailure(AuditSignupFailure, r, msg)
		renderErr(status, msg)
		return
	}
	s.app.Sessions.Set(sess)
	s.audit.logEvent(AuditSignup, r, sess.UserID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout. Local state is cleared and the browser is
// sent to the login page even when the backend sign-out fails.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.signOut(r)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// signIn runs the shared login flow: rate limit, backend sign-in, local
// session install, audit. It returns the HTTP status to use on failure and
// an error whose message is safe to show.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, email, password string) (*session.Session, int, error) {
	if s.auth == nil {
		return nil, http.StatusNotImplemented, errors.New("sign in is not available")
	}
	key := backend.NormalizeEmail(email)
	if blocked, retryAfter := s.rateLimiter.check(key); blocked {
		s.audit.logFailure(AuditLoginRateLimited, r, "rate limited", slog.String("email", key))
		setRetryAfter(w, retryAfter)
		return nil, http.StatusTooManyRequests, errRateLimited
	}

	sess, err := s.auth.SignIn(r.Context(), email, password)
	if err != nil {
		status, msg := authErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("sign in failed", "error", err)
		} else {
			s.rateLimiter.recordFailure(key)
		}
		s.audit.logFailure(AuditLoginFailure, r, msg, slog.String("email", key))
		return nil, status, errors.New(msg)
	}

	s.rateLimiter.recordSuccess(key)
	// The listener will deliver the same session; installing it here makes
	// the redirect that follows land in Admitted without waiting for it.
	s.app.Sessions.Set(sess)
	s.audit.logEvent(AuditLoginSuccess, r, sess.UserID)
	return sess, http.StatusOK, nil
}

// signOut clears the session and logs a backend failure without
// surfacing it.
func (s *Server) signOut(r *http.Request) {
	var userID string
	if current := s.app.Sessions.Session(); current != nil {
		userID = current.UserID
	}
	// Detached from the request so a client disconnect cannot abort the
	// backend sign-out halfway; the store applies its own timeout.
	ctx := context.WithoutCancel(r.Context())
	if err := s.app.Sessions.SignOut(ctx); err != nil {
		s.logger.Error("backend sign out failed, cleared local session anyway", "error", err)
		s.audit.logFailure(AuditLogoutFailure, r, err.Error(), slog.String("user_id", userID))
		return
	}
	s.audit.logEvent(AuditLogout, r, userID)
}

// SessionStatus handles GET /api/v1/session.
func (s *Server) SessionStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sessionResponse(s.app.Sessions.Session()))
}

// APILogin handles POST /api/v1/auth/login.
func (s *Server) APILogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, status, err := s.signIn(w, r, req.Email, req.Password)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// APILogout handles POST /api/v1/auth/logout. It always reports the
// logged-out state.
func (s *Server) APILogout(w http.ResponseWriter, r *http.Request) {
	s.signOut(r)
	writeJSON(w, http.StatusOK, sessionResponse(nil))
}

func sessionResponse(sess *session.Session) SessionResponse {
	if sess == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		Authenticated: true,
		Session: &SessionInfo{
			UserID:    sess.UserID,
			Email:     sess.Email,
			ExpiresAt: sess.ExpiresAt.UTC().Truncate(time.Second),
		},
	}
}
