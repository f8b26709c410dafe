package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/swingsense/session"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

const layoutTemplate = "layout.html"

// Page templates, each rendered inside layout.html.
const (
	pageIndex     = "index.html"
	pageLogin     = "login.html"
	pageLogs      = "logs.html"
	pagePlans     = "plans.html"
	pageResources = "resources.html"
	pageProgress  = "progress.html"
	pageProfile   = "profile.html"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
	"day": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	},
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageIndex, pageLogin, pageLogs, pagePlans, pageResources, pageProgress, pageProfile} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// layout is the data every page shares.
type layout struct {
	AppName string
	User    *session.Identity
	Active  string
}

func (s *Server) layout(active string) layout {
	return layout{AppName: s.appName, User: s.auth.State().User, Active: active}
}

// render executes the page into a buffer first so a template failure never
// leaves a half written response.
func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown page template")
		http.Error(w, msgUnexpected, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		log.Err(err).Str("page", page).Msg("Failed to render template")
		http.Error(w, msgUnexpected, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

const contentTypeHTML = "text/html; charset=utf-8"

// coachText strips any markup from backend generated text and splits it into
// lines. The policy output is already escaped, so the lines are safe as HTML.
func coachText(policy *bluemonday.Policy, text string) []template.HTML {
	clean := policy.Sanitize(strings.ReplaceAll(text, "\r\n", "\n"))
	lines := strings.Split(strings.TrimSpace(clean), "\n")
	out := make([]template.HTML, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, template.HTML(line)) // #nosec G203 -- sanitized above
	}
	return out
}

// plainText strips markup from a short single line value.
func plainText(policy *bluemonday.Policy, text string) template.HTML {
	return template.HTML(strings.TrimSpace(policy.Sanitize(text))) // #nosec G203 -- sanitized above
}
