// ABOUTME: JSON admin API for settings, pages and per-photo image settings
// ABOUTME: Each route authenticates, runs inside a recover boundary and maps errors to statuses

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

// DefaultPrefix is where the API is mounted when no prefix is configured.
const DefaultPrefix = "/api"

const maxBodyBytes = 1 << 20

const internalErrorMessage = "Internal server error"

// Config holds the collaborators of the API.
type Config struct {
	Settings  store.SettingsStore
	Pages     store.PageStore
	Photos    store.PhotoStore
	Validator auth.Validator
	Logger    *slog.Logger
}

// API serves the JSON admin endpoints.
type API struct {
	settings  store.SettingsStore
	pages     store.PageStore
	photos    store.PhotoStore
	validator auth.Validator
	logger    *slog.Logger
}

// New creates an API.
func New(cfg Config) *API {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &API{
		settings:  cfg.Settings,
		pages:     cfg.Pages,
		photos:    cfg.Photos,
		validator: cfg.Validator,
		logger:    logger,
	}
}

// access is the authorization a route requires.
type access int

const (
	anySession access = iota
	adminOnly
)

// handlerFunc is an API handler. A returned error is mapped to a status by route.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// RegisterRoutes mounts every endpoint under prefix.
func (a *API) RegisterRoutes(mux *http.ServeMux, prefix string) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	for _, c := range settings.Categories {
		a.handle(mux, "GET "+prefix+"/settings/"+string(c), anySession, a.handleGetSettings(c))
		a.handle(mux, "PUT "+prefix+"/settings/"+string(c), anySession, a.handlePutSettings(c))
	}

	a.handle(mux, "GET "+prefix+"/pages", anySession, a.handleListPages)
	a.handle(mux, "GET "+prefix+"/pages/{id}", adminOnly, a.handleGetPage)
	a.handle(mux, "PUT "+prefix+"/pages/{id}", adminOnly, a.handlePutPage)

	a.handle(mux, "GET "+prefix+"/photos/{id}/image-settings", adminOnly, a.handleGetImageSettings)
	a.handle(mux, "PUT "+prefix+"/photos/{id}/image-settings", adminOnly, a.handlePutImageSettings)
}

func (a *API) handle(mux *http.ServeMux, pattern string, acc access, fn handlerFunc) {
	mux.Handle(pattern, a.route(pattern, acc, fn))
}

// route wraps fn with authentication, panic recovery and error mapping.
// The pattern doubles as the route identity in logs.
func (a *API) route(pattern string, acc access, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w := &trackingWriter{ResponseWriter: rw}
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("handler panic",
					"route", pattern,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				if !w.started {
					sendJSONError(w, http.StatusInternalServerError, internalErrorMessage)
				}
			}
		}()

		principal, err := a.validator.Validate(r)
		if err != nil {
			if errors.Is(err, auth.ErrNoSession) {
				err = errUnauthorized
			} else {
				err = fmt.Errorf("validating session: %w", err)
			}
			a.fail(w, pattern, err)
			return
		}
		if principal == nil || (acc == adminOnly && !principal.IsAdmin()) {
			a.fail(w, pattern, errUnauthorized)
			return
		}

		r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		if err := fn(w, r); err != nil {
			a.fail(w, pattern, err)
		}
	})
}

// fail writes the response for err. Client errors carry their message;
// everything else is logged and reported generically. Nothing is written
// once the handler has started its own response.
func (a *API) fail(w *trackingWriter, pattern string, err error) {
	if w.started {
		a.logger.Error("request failed after response started", "route", pattern, "error", err)
		return
	}
	var ae *apiError
	if errors.As(err, &ae) {
		sendJSONError(w, ae.status, ae.message)
		return
	}
	var ve *settings.ValidationError
	if errors.As(err, &ve) {
		sendJSONError(w, http.StatusBadRequest, ve.Message)
		return
	}

	a.logger.Error("request failed", "route", pattern, "error", err)
	sendJSONError(w, http.StatusInternalServerError, internalErrorMessage)
}

// trackingWriter records whether a response has been started.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (w *trackingWriter) WriteHeader(statusCode int) {
	w.started = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// readBody reads a request body up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("Request body too large")
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var successResponse = map[string]bool{"success": true}
