package web

import "time"

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionInfo describes the current session without its access token.
type SessionInfo struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is returned from GET /api/v1/session and the auth
// endpoints.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Session       *SessionInfo `json:"session,omitempty"`
}

// ThemeResponse is returned from the theme preference endpoints.
type ThemeResponse struct {
	DarkMode bool `json:"dark_mode"`
}
