// ABOUTME: Template rendering functions for admin UI
// ABOUTME: Loads templates from embedded filesystem and renders them

package webadmin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/store"
)

// Template data types
type loginData struct {
	Title        string
	Error        string
	CSRFToken    string
	PasskeyBase  string
	PasskeyReady bool
}

// pageData wraps the per-page data with what the shared layout needs.
type pageData struct {
	Title     string
	SiteTitle string
	APIPrefix string
	CSRFToken string
	Principal *auth.Principal
	CanEdit   bool
	Data      any
}

type dashboardData struct {
	PageCount    int
	PhotoCount   int
	RecentOrders []*store.Order
	Passkeys     bool
}

type settingsData struct {
	Layout string
	Images string
}

type photoItem struct {
	*store.Photo
	Settings string
}

var templateFuncs = template.FuncMap{
	"money": func(cents int64, currency string) string {
		sign := ""
		if cents < 0 {
			sign, cents = "-", -cents
		}
		return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
}

func (a *Admin) renderLoginPage(w http.ResponseWriter, status int, errorMsg, csrfToken string) {
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/login.html"))

	data := loginData{
		Title:        a.config.SiteTitle + " admin",
		Error:        errorMsg,
		CSRFToken:    csrfToken,
		PasskeyBase:  PasskeyLoginPrefix,
		PasskeyReady: a.webauthn != nil,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "login.html", data); err != nil {
		a.logger.Error("failed to render login page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// renderPage renders a signed-in page inside the shared layout.
func (a *Admin) renderPage(w http.ResponseWriter, r *http.Request, name, title, csrfToken string, data any) {
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name))

	principal := auth.FromContext(r.Context())
	page := pageData{
		Title:     title,
		SiteTitle: a.config.SiteTitle,
		APIPrefix: a.config.APIPrefix,
		CSRFToken: csrfToken,
		Principal: principal,
		CanEdit:   principal.IsAdmin(),
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", page); err != nil {
		a.logger.Error("failed to render admin page", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleStatic serves the admin script and stylesheet.
func (a *Admin) handleStatic(w http.ResponseWriter, r *http.Request) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	http.StripPrefix("/admin/static/", http.FileServerFS(static)).ServeHTTP(w, r)
}

// handlePasskeyScript serves the passkey helpers to the signed-out login page.
func (a *Admin) handlePasskeyScript(w http.ResponseWriter, r *http.Request) {
	b, err := staticFS.ReadFile("static/passkey.js")
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(b)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// prettyRaw indents stored JSON text, returning it unchanged if it does not parse.
func prettyRaw(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
