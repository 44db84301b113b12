package web

import (
	"net/http"
	"sync/atomic"

	"golang.org/x/text/language"
)

// Theme is the global presentation flag rendered on the root element of
// every page. It implements preference.Applier.
type Theme struct {
	dark atomic.Bool
}

// NewTheme returns a Theme that starts dark.
func NewTheme() *Theme {
	t := &Theme{}
	t.dark.Store(true)
	return t
}

// ApplyTheme sets or clears the dark flag.
func (t *Theme) ApplyTheme(dark bool) { t.dark.Store(dark) }

// Dark reports whether the dark flag is set.
func (t *Theme) Dark() bool { return t.dark.Load() }

// Arabic is listed first so it is the fallback for unmatched or missing
// Accept-Language headers.
var languageMatcher = language.NewMatcher([]language.Tag{
	language.Arabic,
	language.English,
})

// negotiateLocale picks the page language and text direction from the
// request's Accept-Language header.
func negotiateLocale(r *http.Request) (lang, dir string) {
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	tag, _, _ := languageMatcher.Match(tags...)
	base, _ := tag.Base()
	if base.String() == "ar" {
		return "ar", "rtl"
	}
	return "en", "ltr"
}
