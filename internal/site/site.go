// ABOUTME: Public portfolio site: home, gallery, pages, cart, checkout and order confirmation
// ABOUTME: Per-request view state is loaded once and handed to embedded html/template pages

package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/darkroom/internal/cart"
	"github.com/2389/darkroom/internal/metrics"
	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

// Config holds the collaborators and site identity.
type Config struct {
	Settings store.SettingsStore
	Pages    store.PageStore
	Photos   store.PhotoStore
	Orders   store.OrderStore

	Title    string
	Tagline  string
	Currency string

	// DevMode loads the element inspector script on every page.
	DevMode bool

	// Metrics counts placed orders. Nil disables it.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// Site serves the public pages.
type Site struct {
	settings store.SettingsStore
	pages    store.PageStore
	photos   store.PhotoStore
	orders   store.OrderStore

	title    string
	tagline  string
	currency string
	devMode  bool
	metrics  *metrics.Metrics

	md        goldmark.Markdown
	templates map[string]*template.Template
	logger    *slog.Logger
}

// New creates a Site and parses its templates.
func New(cfg Config) *Site {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "site")
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}
	title := cfg.Title
	if title == "" {
		title = "darkroom"
	}

	return &Site{
		settings:  cfg.Settings,
		pages:     cfg.Pages,
		photos:    cfg.Photos,
		orders:    cfg.Orders,
		title:     title,
		tagline:   cfg.Tagline,
		currency:  currency,
		devMode:   cfg.DevMode,
		metrics:   cfg.Metrics,
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer)),
		templates: parseTemplates(),
		logger:    logger,
	}
}

// RegisterRoutes mounts the public site on mux.
func (s *Site) RegisterRoutes(mux *http.ServeMux) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /gallery", s.handleGallery)
	mux.HandleFunc("GET /gallery/{id}", s.handlePhoto)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.HandleFunc("GET /pages/{slug}", s.handlePage)

	mux.HandleFunc("GET /cart", s.handleCart)
	mux.HandleFunc("POST /cart/add", s.handleCartAdd)
	mux.HandleFunc("POST /cart/remove", s.handleCartRemove)
	mux.HandleFunc("POST /cart/update", s.handleCartUpdate)
	mux.HandleFunc("POST /checkout", s.handleCheckout)
	mux.HandleFunc("GET /orders/{id}", s.handleOrder)

	// Method-less so subtrees mounted for every method, like /admin/, do not
	// conflict with it.
	mux.HandleFunc("/", s.handleNotFound)
}

// ViewState is everything a page needs besides its own content. It is
// loaded once per request by loadViewState.
type ViewState struct {
	Title    string
	Tagline  string
	Currency string
	Layout   settings.LayoutSettings
	Images   map[string]any
	Cart     *cart.Cart
	DevMode  bool
}

func (s *Site) loadViewState(r *http.Request) (*ViewState, error) {
	ctx := r.Context()

	layout, err := settings.LoadLayout(ctx, s.settings, s.logger)
	if err != nil {
		return nil, err
	}
	images, err := settings.Load(ctx, s.settings, settings.Images, s.logger)
	if err != nil {
		return nil, err
	}

	return &ViewState{
		Title:    s.title,
		Tagline:  s.tagline,
		Currency: s.currency,
		Layout:   layout,
		Images:   images,
		Cart:     cart.Load(r),
		DevMode:  s.devMode,
	}, nil
}

// view is the root value handed to every template.
type view struct {
	*ViewState
	PageTitle       string
	MetaDescription string
	Flash           string
	Data            any
}

// render executes a page template into a buffer so a failed render never
// leaves a half-written page behind.
func (s *Site) render(w http.ResponseWriter, status int, name string, v view) {
	tmpl, ok := s.templates[name]
	if !ok {
		s.logger.Error("unknown template", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", v); err != nil {
		s.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// fail logs err and writes a generic 500.
func (s *Site) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "route", r.Method+" "+r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Site) notFound(w http.ResponseWriter, state *ViewState) {
	s.render(w, http.StatusNotFound, "notfound.html", view{ViewState: state, PageTitle: "Not found"})
}

// markdown renders a page body. Raw HTML in the source is omitted.
func (s *Site) markdown(ctx context.Context, source string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(source), &buf); err != nil {
		s.logger.ErrorContext(ctx, "failed to convert markdown", "error", err)
		return template.HTML("<p>This page could not be displayed.</p>")
	}
	return template.HTML(buf.String())
}

// FormatMoney renders an amount in minor units, e.g. 4500 USD as "$45.00".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)

	switch currency {
	case "USD":
		return sign + "$" + amount
	case "EUR":
		return sign + "€" + amount
	case "GBP":
		return sign + "£" + amount
	default:
		return sign + amount + " " + currency
	}
}
