package web

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

const (
	csrfCookieName = "incorpdash_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
)

const csrfKey contextKey = iota + 100

// CSRFMiddleware enforces double-submit cookie CSRF protection on every
// mutating request. The dashboard session lives in the process rather than
// in a cookie, so any page that can reach the listener could otherwise post
// to it. Safe methods are exempt and are issued a token cookie when they
// arrive without one.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			token := ""
			if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
			} else {
				token = writeCSRFCookie(w, r)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey, token)))
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		submitted := r.Header.Get(csrfHeaderName)
		if submitted == "" {
			submitted = r.PostFormValue(csrfFormField)
		}
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey, cookie.Value)))
	})
}

// writeCSRFCookie sets the CSRF double-submit cookie and returns its value.
// It is intentionally NOT HttpOnly so that browser-side code can read it and
// include it as a request header on mutating API requests.
func writeCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

func csrfTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey).(string)
	return token
}
