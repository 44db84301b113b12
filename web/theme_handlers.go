package web

import (
	"log/slog"
	"net/http"
)

// ToggleThemeForm handles POST /settings/theme.
func (s *Server) ToggleThemeForm(w http.ResponseWriter, r *http.Request) {
	s.toggleTheme(r)
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// ThemeStatus handles GET /api/v1/preferences/theme.
func (s *Server) ThemeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{DarkMode: s.app.Preferences.DarkMode()})
}

// APIToggleTheme handles POST /api/v1/preferences/theme.
func (s *Server) APIToggleTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{DarkMode: s.toggleTheme(r)})
}

func (s *Server) toggleTheme(r *http.Request) bool {
	dark := s.app.Preferences.ToggleDarkMode()
	var userID string
	if sess := sessionFromContext(r.Context()); sess != nil {
		userID = sess.UserID
	}
	s.audit.logEvent(AuditThemeToggled, r, userID, slog.Bool("dark_mode", dark))
	return dark
}
