// ABOUTME: Tests for passkey registration and sign-in handlers
// ABOUTME: Covers the ceremony store, relying party derivation and handler edge cases

package webadmin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/store"
)

func TestDeriveWebAuthnConfig(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		wantRPID    string
		wantOrigins []string
	}{
		{"empty", "", "localhost", []string{"http://localhost", "https://localhost"}},
		{"no host", "not-a-valid-url", "localhost", []string{"http://localhost", "https://localhost"}},
		{"https", "https://photos.example.com", "photos.example.com", []string{"https://photos.example.com", "http://photos.example.com"}},
		{"http with port", "http://localhost:8080", "localhost", []string{"http://localhost:8080", "https://localhost:8080"}},
		{"tailnet", "https://darkroom.tailnet.ts.net:443", "darkroom.tailnet.ts.net", []string{"https://darkroom.tailnet.ts.net:443", "http://darkroom.tailnet.ts.net:443"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpID, origins := deriveWebAuthnConfig(tt.baseURL)
			assert.Equal(t, tt.wantRPID, rpID)
			assert.Equal(t, tt.wantOrigins, origins)
		})
	}
}

func TestPasskeyUser(t *testing.T) {
	u := &passkeyUser{
		user: &store.AdminUser{ID: "u-1", Username: "ansel"},
		creds: []*store.WebAuthnCredential{
			{CredentialID: []byte("cred-a"), PublicKey: []byte("pk"), SignCount: 4, Transports: `["usb","internal"]`},
			{CredentialID: []byte("cred-b"), Transports: `not json`},
		},
	}

	assert.Equal(t, []byte("u-1"), u.WebAuthnID())
	assert.Equal(t, "ansel", u.WebAuthnName())
	assert.Equal(t, "ansel", u.WebAuthnDisplayName(), "falls back to the username")

	u.user.DisplayName = "Ansel A."
	assert.Equal(t, "Ansel A.", u.WebAuthnDisplayName())

	creds := u.WebAuthnCredentials()
	require.Len(t, creds, 2)
	assert.Equal(t, []byte("cred-a"), creds[0].ID)
	assert.Equal(t, uint32(4), creds[0].Authenticator.SignCount)
	assert.Len(t, creds[0].Transport, 2)
	assert.Empty(t, creds[1].Transport, "unreadable transports are skipped")
}

func TestCeremonyStore(t *testing.T) {
	s := newWebAuthnSessionStore()
	defer s.Close()

	session := &webauthn.SessionData{Challenge: "abc"}
	s.Set("tok", session, "u-1")

	got, userID, ok := s.Take("tok")
	require.True(t, ok)
	assert.Equal(t, "abc", got.Challenge)
	assert.Equal(t, "u-1", userID)

	_, _, ok = s.Take("tok")
	assert.False(t, ok, "a challenge can only be used once")

	_, _, ok = s.Take("never-set")
	assert.False(t, ok)
}

func TestCeremonyStoreExpiry(t *testing.T) {
	s := newWebAuthnSessionStore()
	defer s.Close()

	s.Set("tok", &webauthn.SessionData{}, "")
	s.mu.Lock()
	s.pending["tok"].expiresAt = time.Now().Add(-time.Second)
	s.mu.Unlock()

	_, _, ok := s.Take("tok")
	assert.False(t, ok)
}

func TestCredentialFinder(t *testing.T) {
	owner := &passkeyUser{user: &store.AdminUser{ID: "u-1"}}
	find := credentialFinder(owner)

	got, err := find([]byte("raw"), []byte("u-1"))
	require.NoError(t, err)
	assert.Same(t, owner, got)

	got, err = find([]byte("raw"), nil)
	require.NoError(t, err, "an empty user handle resolves to the credential owner")
	assert.Same(t, owner, got)

	_, err = find([]byte("raw"), []byte("u-2"))
	assert.Error(t, err)
}

// withPrincipal signs the request in as the given user without a cookie.
func withPrincipal(r *http.Request, id, role string) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), &auth.Principal{ID: id, Role: role, Method: "session"}))
}

func jsonRequest(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestWebAuthnHandlers_NotConfigured(t *testing.T) {
	f := newAdminFixture(t)
	f.admin.webauthn = nil

	handlers := map[string]http.HandlerFunc{
		"register begin":  f.admin.handleWebAuthnRegisterBegin,
		"register finish": f.admin.handleWebAuthnRegisterFinish,
		"login begin":     f.admin.handleWebAuthnLoginBegin,
		"login finish":    f.admin.handleWebAuthnLoginFinish,
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h(w, withPrincipal(jsonRequest("/", "{}"), "u-admin", store.RoleAdmin))
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		})
	}
}

func TestRegisterBegin(t *testing.T) {
	f := newAdminFixture(t)

	w := httptest.NewRecorder()
	f.admin.handleWebAuthnRegisterBegin(w, withPrincipal(jsonRequest("/admin/webauthn/register/begin", ""), "u-admin", store.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Options struct {
			PublicKey struct {
				RP struct {
					Name string `json:"name"`
					ID   string `json:"id"`
				} `json:"rp"`
				User struct {
					Name string `json:"name"`
				} `json:"user"`
			} `json:"publicKey"`
		} `json:"options"`
		SessionToken string `json:"sessionToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Fieldnotes admin", resp.Options.PublicKey.RP.Name)
	assert.Equal(t, "localhost", resp.Options.PublicKey.RP.ID)
	assert.Equal(t, "ansel", resp.Options.PublicKey.User.Name)
	assert.NotEmpty(t, resp.SessionToken)

	_, userID, ok := f.admin.webauthnSessions.Take(resp.SessionToken)
	require.True(t, ok)
	assert.Equal(t, "u-admin", userID)
}

func TestRegisterRequiresSignedInUser(t *testing.T) {
	f := newAdminFixture(t)

	w := httptest.NewRecorder()
	f.admin.handleWebAuthnRegisterBegin(w, jsonRequest("/admin/webauthn/register/begin", ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	f.admin.handleWebAuthnRegisterFinish(w, withPrincipal(jsonRequest("/", "{}"), "u-deleted", store.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterFinishRejects(t *testing.T) {
	f := newAdminFixture(t)
	f.admin.webauthnSessions.Set("theirs", &webauthn.SessionData{}, "u-editor")

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing token", `{"response":{}}`},
		{"unknown token", `{"sessionToken":"nope","response":{}}`},
		{"token for another user", `{"sessionToken":"theirs","response":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.admin.handleWebAuthnRegisterFinish(w, withPrincipal(jsonRequest("/", tt.body), "u-admin", store.RoleAdmin))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginBegin(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(jsonRequest(PasskeyLoginPrefix+"/login/begin", ""))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Options      json.RawMessage `json:"options"`
		SessionToken string          `json:"sessionToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, string(resp.Options), "challenge")
	assert.NotEmpty(t, resp.SessionToken)
}

func TestLoginFinishRejects(t *testing.T) {
	f := newAdminFixture(t)
	f.admin.webauthnSessions.Set("live", &webauthn.SessionData{}, "")

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"unknown token", `{"sessionToken":"nope","response":{"id":"x"}}`},
		{"garbage assertion", `{"sessionToken":"live","response":{"id":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(jsonRequest(PasskeyLoginPrefix+"/login/finish", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, findCookie(w, auth.SessionCookieName))
		})
	}
}

func TestCredentialOwner(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateWebAuthnCredential(ctx, &store.WebAuthnCredential{
		ID: "c-1", UserID: "u-passkey", CredentialID: []byte("raw-1"), PublicKey: []byte("pk"), CreatedAt: time.Now(),
	}))

	cred, user, err := f.admin.credentialOwner(ctx, []byte("raw-1"))
	require.NoError(t, err)
	assert.Equal(t, "c-1", cred.ID)
	assert.Equal(t, "vivian", user.Username)

	_, _, err = f.admin.credentialOwner(ctx, []byte("raw-unknown"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
