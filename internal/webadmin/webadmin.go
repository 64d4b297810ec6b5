// ABOUTME: Admin web UI package for darkroom management
// ABOUTME: Provides password login, session cookies, CSRF protection and the guarded /admin pages

package webadmin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/metrics"
	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

const (
	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "darkroom_csrf"

	// DefaultSessionDuration is how long sessions last when not configured
	DefaultSessionDuration = 7 * 24 * time.Hour

	// PasskeyLoginPrefix hosts the passkey login endpoints. It sits outside
	// /admin so the route guard lets signed-out browsers reach it.
	PasskeyLoginPrefix = "/auth/webauthn"
)

// dummyHash keeps the login timing constant when the user does not exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type contextKey string

const csrfContextKey contextKey = "csrf_token"

// Config holds admin UI configuration
type Config struct {
	// BaseURL is the external URL, used to derive the passkey relying party
	BaseURL string

	// APIPrefix is where the JSON API is mounted; the admin pages call it
	APIPrefix string

	// SessionDuration is how long a login lasts
	SessionDuration time.Duration

	// SiteTitle names the site in page titles and passkey prompts
	SiteTitle string

	// Metrics counts sign-in attempts. Nil disables it.
	Metrics *metrics.Metrics
}

// FullStore is everything the admin pages read or write.
type FullStore interface {
	store.AdminStore
	store.SettingsStore
	store.PageStore
	store.PhotoStore
	store.OrderStore
}

// Admin handles admin UI routes and authentication
type Admin struct {
	store            FullStore
	validator        auth.Validator
	config           Config
	logger           *slog.Logger
	webauthn         *webauthn.WebAuthn
	webauthnSessions *webAuthnSessionStore
}

// New creates a new Admin handler
func New(fullStore FullStore, validator auth.Validator, cfg Config) *Admin {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = DefaultSessionDuration
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.SiteTitle == "" {
		cfg.SiteTitle = "darkroom"
	}

	a := &Admin{
		store:     fullStore,
		validator: validator,
		config:    cfg,
		logger:    slog.Default().With("component", "admin"),
	}

	// Initialize WebAuthn (errors are logged but don't prevent startup)
	if err := a.initWebAuthn(); err != nil {
		a.logger.Warn("failed to initialize WebAuthn, passkey login disabled", "error", err)
	}

	return a
}

// Close cleans up admin resources
func (a *Admin) Close() {
	if a.webauthnSessions != nil {
		a.webauthnSessions.Close()
	}
}

// RegisterRoutes registers all admin routes on the given mux. Everything
// under /admin goes through the route guard.
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	admin := http.NewServeMux()

	admin.HandleFunc("GET /admin/login", a.handleLoginPage)
	admin.HandleFunc("GET /admin/login/{$}", a.handleLoginSlash)
	admin.HandleFunc("POST /admin/login", a.handleLogin)
	admin.HandleFunc("POST /admin/logout", a.handleLogout)

	admin.HandleFunc("GET /admin", a.handleDashboard)
	admin.HandleFunc("GET /admin/{$}", a.handleDashboard)
	admin.HandleFunc("GET /admin/pages", a.handlePagesList)
	admin.HandleFunc("GET /admin/pages/{id}", a.handlePageEdit)
	admin.HandleFunc("GET /admin/settings", a.handleSettings)
	admin.HandleFunc("GET /admin/photos", a.handlePhotos)
	admin.HandleFunc("GET /admin/orders", a.handleOrders)
	admin.HandleFunc("GET /admin/static/", a.handleStatic)

	admin.HandleFunc("POST /admin/webauthn/register/begin", a.handleWebAuthnRegisterBegin)
	admin.HandleFunc("POST /admin/webauthn/register/finish", a.handleWebAuthnRegisterFinish)

	// The guard sees every method; the inner mux does method matching after
	// a pass-through.
	guarded := auth.Guard(a.validator, a.logger)(admin)
	mux.Handle("/admin", guarded)
	mux.Handle("/admin/", guarded)

	mux.HandleFunc("GET "+PasskeyLoginPrefix+"/passkey.js", a.handlePasskeyScript)
	mux.HandleFunc("POST "+PasskeyLoginPrefix+"/login/begin", a.handleWebAuthnLoginBegin)
	mux.HandleFunc("POST "+PasskeyLoginPrefix+"/login/finish", a.handleWebAuthnLoginFinish)

	a.logger.Info("admin routes registered")
}

// currentUser loads the signed-in user named by the principal the guard attached.
func (a *Admin) currentUser(r *http.Request) (*store.AdminUser, error) {
	p := auth.FromContext(r.Context())
	if p == nil {
		return nil, auth.ErrNoSession
	}
	return a.store.GetAdminUser(r.Context(), p.ID)
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (a *Admin) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form or header against the cookie
func (a *Admin) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// createSession creates a new session for a user and sets the cookie.
// The cookie is scoped to / so the JSON API sees it too.
func (a *Admin) createSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	now := time.Now()
	session := &store.AdminSession{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.config.SessionDuration),
	}

	if err := a.store.CreateAdminSession(r.Context(), session); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// Every sign-in sweeps rows left behind by sessions that expired.
	if err := a.store.DeleteExpiredAdminSessions(r.Context()); err != nil {
		a.logger.Warn("failed to delete expired sessions", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// handleLoginPage renders the login page. Signed-in users never get here;
// the guard sends them to /admin.
func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	_, csrfToken := a.ensureCSRFToken(w, r)
	a.renderLoginPage(w, http.StatusOK, "", csrfToken)
}

// handleLoginSlash sends /admin/login/ to the canonical login path.
func (a *Admin) handleLoginSlash(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

// handleLogin processes login form submission
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	fail := func(status int, msg string) {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, status, msg, csrfToken)
	}

	if err := r.ParseForm(); err != nil {
		fail(http.StatusBadRequest, "Invalid form data")
		return
	}

	if !a.validateCSRF(r) {
		fail(http.StatusForbidden, "Invalid request, please try again")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		fail(http.StatusBadRequest, "Username and password required")
		return
	}

	user, err := a.store.GetAdminUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrAdminUserNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			a.config.Metrics.RecordLogin("password", false)
			fail(http.StatusUnauthorized, "Invalid username or password")
			return
		}
		a.logger.Error("failed to get user", "error", err)
		fail(http.StatusInternalServerError, "An error occurred")
		return
	}

	if user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		fail(http.StatusUnauthorized, "Password login not enabled for this account")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.config.Metrics.RecordLogin("password", false)
		a.logger.Warn("admin login failed", "username", username)
		fail(http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := a.createSession(w, r, user.ID); err != nil {
		a.logger.Error("failed to create session", "error", err)
		fail(http.StatusInternalServerError, "An error occurred")
		return
	}

	a.config.Metrics.RecordLogin("password", true)
	a.logger.Info("admin login successful", "username", username)
	http.Redirect(w, r, auth.AdminPath, http.StatusSeeOther)
}

// handleLogout logs out the current user
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		// Logout proceeds even with a bad token; the worst case is a forced sign-out.
		if !a.validateCSRF(r) {
			a.logger.Warn("logout request with invalid CSRF token")
		}
	}

	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if err := a.store.DeleteAdminSession(r.Context(), cookie.Value); err != nil {
			a.logger.Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (a *Admin) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pages, err := a.store.ListPages(ctx)
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing pages: %w", err))
		return
	}
	photos, err := a.store.ListPhotos(ctx)
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing photos: %w", err))
		return
	}
	orders, err := a.store.ListOrders(ctx, 5)
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing orders: %w", err))
		return
	}

	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "dashboard.html", "Dashboard", csrfToken, dashboardData{
		PageCount:    len(pages),
		PhotoCount:   len(photos),
		RecentOrders: orders,
		Passkeys:     a.webauthn != nil,
	})
}

func (a *Admin) handlePagesList(w http.ResponseWriter, r *http.Request) {
	pages, err := a.store.ListPages(r.Context())
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing pages: %w", err))
		return
	}
	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "pages.html", "Pages", csrfToken, pages)
}

func (a *Admin) handlePageEdit(w http.ResponseWriter, r *http.Request) {
	page, err := a.store.GetPage(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrPageNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.serverError(w, r, fmt.Errorf("getting page: %w", err))
		return
	}
	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "page_edit.html", "Edit "+page.Title, csrfToken, page)
}

func (a *Admin) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	layout, err := settings.Load(ctx, a.store, settings.Layout, a.logger)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	images, err := settings.Load(ctx, a.store, settings.Images, a.logger)
	if err != nil {
		a.serverError(w, r, err)
		return
	}

	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "settings.html", "Settings", csrfToken, settingsData{
		Layout: prettyJSON(layout),
		Images: prettyJSON(images),
	})
}

func (a *Admin) handlePhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := a.store.ListPhotos(r.Context())
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing photos: %w", err))
		return
	}

	items := make([]photoItem, 0, len(photos))
	for _, p := range photos {
		raw := p.ImageSettings
		if raw == "" {
			raw = "{}"
		}
		items = append(items, photoItem{Photo: p, Settings: prettyRaw(raw)})
	}

	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "photos.html", "Photos", csrfToken, items)
}

func (a *Admin) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.store.ListOrders(r.Context(), 100)
	if err != nil {
		a.serverError(w, r, fmt.Errorf("listing orders: %w", err))
		return
	}
	r, csrfToken := a.ensureCSRFToken(w, r)
	a.renderPage(w, r, "orders.html", "Orders", csrfToken, orders)
}

func (a *Admin) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("admin request failed", "route", r.Method+" "+r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// generateSecureToken generates a cryptographically secure random hex token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
