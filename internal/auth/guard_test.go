// ABOUTME: Tests for the route guard decision table and its HTTP middleware
// ABOUTME: Covers login/admin redirects, trailing slashes and non-admin paths

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"///":           "/",
		"/admin/":       "/admin",
		"/admin//":      "/admin",
		"/admin/login/": "/admin/login",
		"/gallery":      "/gallery",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "NormalizePath(%q)", in)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		path          string
		authenticated bool
		want          Decision
	}{
		{"/admin", false, RedirectLogin},
		{"/admin/", false, RedirectLogin},
		{"/admin/settings", false, RedirectLogin},
		{"/admin/pages/abc", false, RedirectLogin},
		{"/admin", true, PassThrough},
		{"/admin/settings", true, PassThrough},
		{"/admin/login", true, RedirectAdmin},
		{"/admin/login/", true, RedirectAdmin},
		{"/admin/login", false, PassThrough},
		{"/admin/login/", false, PassThrough},
		{"/", false, PassThrough},
		{"/", true, PassThrough},
		{"/gallery", false, PassThrough},
		{"/cart", true, PassThrough},
		{"/administrator", false, PassThrough},
		{"/api/settings/layout", false, PassThrough},
	}

	for _, tt := range tests {
		got := Decide(tt.path, tt.authenticated)
		assert.Equal(t, tt.want, got, "Decide(%q, %v)", tt.path, tt.authenticated)
	}
}

func TestDecisionTarget(t *testing.T) {
	assert.Equal(t, "/admin/login", RedirectLogin.Target())
	assert.Equal(t, "/admin", RedirectAdmin.Target())
	assert.Equal(t, "", PassThrough.Target())
	assert.Equal(t, "redirect-login", RedirectLogin.String())
}

type stubValidator struct {
	principal *Principal
	err       error
}

func (s stubValidator) Validate(r *http.Request) (*Principal, error) {
	return s.principal, s.err
}

func TestGuardMiddleware(t *testing.T) {
	signedIn := stubValidator{principal: &Principal{ID: "u1", Role: "admin"}}
	signedOut := stubValidator{err: ErrNoSession}
	broken := stubValidator{err: errors.New("database is locked")}

	tests := []struct {
		name          string
		validator     Validator
		path          string
		wantStatus    int
		wantLocation  string
		wantPrincipal bool
	}{
		{"admin signed out", signedOut, "/admin/settings", http.StatusSeeOther, "/admin/login", false},
		{"admin signed in", signedIn, "/admin/settings", http.StatusOK, "", true},
		{"login signed in", signedIn, "/admin/login", http.StatusSeeOther, "/admin", false},
		{"login signed out", signedOut, "/admin/login", http.StatusOK, "", false},
		{"public signed in", signedIn, "/gallery", http.StatusOK, "", true},
		{"public signed out", signedOut, "/gallery", http.StatusOK, "", false},
		{"validator failure counts as signed out", broken, "/admin", http.StatusSeeOther, "/admin/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPrincipal *Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPrincipal = FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			Guard(tt.validator, nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantPrincipal, gotPrincipal != nil)
		})
	}
}
