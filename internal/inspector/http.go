// ABOUTME: HTTP routes for the inspector under /__inspector/
// ABOUTME: The browser is identified by the darkroom_inspector cookie, created on first use

package inspector

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
)

const (
	// Prefix is where the inspector routes are mounted.
	Prefix = "/__inspector"

	// CookieName holds the inspector session id.
	CookieName = "darkroom_inspector"

	maxBodyBytes = 64 << 10
)

//go:embed static/inspector.js
var script []byte

// RegisterRoutes mounts the inspector. Only call it in dev mode.
func (in *Inspector) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+Prefix+"/inspector.js", in.handleScript)
	mux.HandleFunc("POST "+Prefix+"/elements", in.handleRegister)
	mux.HandleFunc("GET "+Prefix+"/elements", in.handleList)
	mux.HandleFunc("DELETE "+Prefix+"/elements", in.handleClear)
	mux.HandleFunc("GET "+Prefix+"/elements/{id}/prompt", in.handlePrompt)

	in.logger.Info("inspector routes registered", "prefix", Prefix)
}

// session returns the caller's session id, issuing a cookie when there is none.
func (in *Inspector) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	b := make([]byte, 16)
	_, _ = rand.Read(b)
	id := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (in *Inspector) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(script)
}

func (in *Inspector) handleRegister(w http.ResponseWriter, r *http.Request) {
	session := in.session(w, r)

	var el Element
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&el); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := in.Register(session, el)
	switch {
	case errors.Is(err, ErrRegistryFull):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (in *Inspector) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, in.List(in.session(w, r)))
}

func (in *Inspector) handleClear(w http.ResponseWriter, r *http.Request) {
	in.Clear(in.session(w, r))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (in *Inspector) handlePrompt(w http.ResponseWriter, r *http.Request) {
	el, err := in.Get(in.session(w, r), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Element not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Prompt(el)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
