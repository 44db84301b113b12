package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/jmcleod/incorpdash/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type navItem struct {
	Name string
	Path string
}

var navItems = []navItem{
	{Name: "dashboard", Path: "/"},
	{Name: "documents", Path: "/documents"},
	{Name: "billing", Path: "/billing"},
	{Name: "tickets", Path: "/tickets"},
	{Name: "settings", Path: "/settings"},
}

var pageTitles = map[string]string{
	"login":     "Sign in",
	"signup":    "Create account",
	"dashboard": "Company status",
	"documents": "Documents",
	"billing":   "Billing add-ons",
	"tickets":   "Support tickets",
	"settings":  "Settings",
}

type pageData struct {
	Page      string
	Title     string
	Lang      string
	Dir       string
	Dark      bool
	CSRFToken string
	Session   *session.Session
	Nav       []navItem
	Error     string
	Email     string
}

type pageSet struct {
	templates map[string]*template.Template
}

func mustParsePages() *pageSet {
	ps := &pageSet{templates: make(map[string]*template.Template, len(pageTitles))}
	for name := range pageTitles {
		ps.templates[name] = template.Must(template.ParseFS(templateFS,
			"templates/base.html", "templates/"+name+".html"))
	}
	return ps
}

// newPageData fills the fields every page shares.
func (s *Server) newPageData(r *http.Request, name string) pageData {
	lang, dir := negotiateLocale(r)
	data := pageData{
		Page:      name,
		Title:     pageTitles[name],
		Lang:      lang,
		Dir:       dir,
		Dark:      s.darkMode(),
		CSRFToken: csrfTokenFromContext(r.Context()),
		Session:   sessionFromContext(r.Context()),
	}
	if data.Session != nil {
		data.Nav = navItems
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	tmpl, ok := s.pages.templates[data.Page]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error("rendering page", "page", data.Page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// page returns a handler rendering a protected content view inside the
// navigation frame.
func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, s.newPageData(r, name))
	}
}
