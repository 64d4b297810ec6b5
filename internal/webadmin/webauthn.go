// ABOUTME: Passkey registration and sign-in for the admin UI
// ABOUTME: Challenges live in memory for a few minutes; credentials are stored in SQLite

package webadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/store"
)

// challengeTTL bounds how long a begun ceremony can be finished.
const challengeTTL = 5 * time.Minute

// passkeyUser adapts an admin user and its stored credentials to webauthn.User.
type passkeyUser struct {
	user  *store.AdminUser
	creds []*store.WebAuthnCredential
}

func (u *passkeyUser) WebAuthnID() []byte   { return []byte(u.user.ID) }
func (u *passkeyUser) WebAuthnName() string { return u.user.Username }

func (u *passkeyUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Username
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		cred := webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Authenticator:   webauthn.Authenticator{SignCount: c.SignCount},
		}
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			if err := json.Unmarshal([]byte(c.Transports), &transports); err == nil {
				cred.Transport = transports
			}
		}
		out = append(out, cred)
	}
	return out
}

type pendingCeremony struct {
	session   *webauthn.SessionData
	userID    string
	expiresAt time.Time
}

// webAuthnSessionStore holds in-flight ceremonies keyed by an opaque token.
// A restart drops them, which only means the user starts over.
type webAuthnSessionStore struct {
	mu      sync.Mutex
	pending map[string]*pendingCeremony
	cancel  context.CancelFunc
}

func newWebAuthnSessionStore() *webAuthnSessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &webAuthnSessionStore{
		pending: make(map[string]*pendingCeremony),
		cancel:  cancel,
	}
	go s.sweep(ctx)
	return s
}

// Close stops the sweeper.
func (s *webAuthnSessionStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *webAuthnSessionStore) Set(token string, session *webauthn.SessionData, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[token] = &pendingCeremony{
		session:   session,
		userID:    userID,
		expiresAt: time.Now().Add(challengeTTL),
	}
}

// Take returns and removes a ceremony. Each challenge is single use.
func (s *webAuthnSessionStore) Take(token string) (*webauthn.SessionData, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[token]
	if !ok {
		return nil, "", false
	}
	delete(s.pending, token)
	if time.Now().After(p.expiresAt) {
		return nil, "", false
	}
	return p.session, p.userID, true
}

func (s *webAuthnSessionStore) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for token, p := range s.pending {
				if now.After(p.expiresAt) {
					delete(s.pending, token)
				}
			}
			s.mu.Unlock()
		}
	}
}

// deriveWebAuthnConfig turns the public base URL into a relying party ID and
// the allowed origins. An empty or unparseable URL means local development.
func deriveWebAuthnConfig(baseURL string) (rpID string, rpOrigins []string) {
	rpID = "localhost"
	rpOrigins = []string{"http://localhost", "https://localhost"}

	parsed, err := url.Parse(baseURL)
	if baseURL == "" || err != nil || parsed.Hostname() == "" {
		return rpID, rpOrigins
	}

	rpID = parsed.Hostname()
	rpOrigins = []string{baseURL}
	if parsed.Scheme == "https" {
		rpOrigins = append(rpOrigins, "http://"+parsed.Host)
	} else {
		rpOrigins = append(rpOrigins, "https://"+parsed.Host)
	}
	return rpID, rpOrigins
}

func (a *Admin) initWebAuthn() error {
	rpID, rpOrigins := deriveWebAuthnConfig(a.config.BaseURL)

	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: a.config.SiteTitle + " admin",
		RPID:          rpID,
		RPOrigins:     rpOrigins,
	})
	if err != nil {
		return err
	}

	a.webauthn = w
	a.webauthnSessions = newWebAuthnSessionStore()
	return nil
}

type ceremonyRequest struct {
	SessionToken string          `json:"sessionToken"`
	Response     json.RawMessage `json:"response"`
}

func decodeCeremony(w http.ResponseWriter, r *http.Request) (*ceremonyRequest, error) {
	var req ceremonyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		return nil, err
	}
	if req.SessionToken == "" || len(req.Response) == 0 {
		return nil, errors.New("missing session token or response")
	}
	return &req, nil
}

func (a *Admin) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("failed to encode response", "error", err)
	}
}

// beginCeremony stores the session data and returns the options with the token
// the browser echoes back on finish.
func (a *Admin) beginCeremony(w http.ResponseWriter, options any, session *webauthn.SessionData, userID string) {
	token, err := generateSecureToken(32)
	if err != nil {
		http.Error(w, "Failed to generate session", http.StatusInternalServerError)
		return
	}
	a.webauthnSessions.Set(token, session, userID)
	a.writeJSON(w, map[string]any{"options": options, "sessionToken": token})
}

func (a *Admin) handleWebAuthnRegisterBegin(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil {
		http.Error(w, "WebAuthn not configured", http.StatusServiceUnavailable)
		return
	}

	user, err := a.currentUser(r)
	if err != nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	existing, err := a.store.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	if err != nil {
		a.logger.Error("failed to get existing credentials", "error", err)
		existing = nil
	}

	options, session, err := a.webauthn.BeginRegistration(&passkeyUser{user: user, creds: existing})
	if err != nil {
		a.logger.Error("failed to begin registration", "error", err)
		http.Error(w, "Failed to start registration", http.StatusInternalServerError)
		return
	}
	a.beginCeremony(w, options, session, user.ID)
}

func (a *Admin) handleWebAuthnRegisterFinish(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil {
		http.Error(w, "WebAuthn not configured", http.StatusServiceUnavailable)
		return
	}

	user, err := a.currentUser(r)
	if err != nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	req, err := decodeCeremony(w, r)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, sessionUserID, ok := a.webauthnSessions.Take(req.SessionToken)
	if !ok || sessionUserID != user.ID {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		a.logger.Warn("failed to parse registration response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	existing, _ := a.store.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	credential, err := a.webauthn.CreateCredential(&passkeyUser{user: user, creds: existing}, *session, parsed)
	if err != nil {
		a.logger.Warn("failed to verify credential", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusBadRequest)
		return
	}

	credID, err := a.saveCredential(r.Context(), user.ID, credential)
	if err != nil {
		a.logger.Error("failed to store credential", "error", err)
		http.Error(w, "Failed to save credential", http.StatusInternalServerError)
		return
	}

	a.logger.Info("passkey registered", "user_id", user.ID, "credential_id", credID)
	a.writeJSON(w, map[string]string{"status": "ok"})
}

func (a *Admin) saveCredential(ctx context.Context, userID string, cred *webauthn.Credential) (string, error) {
	id, err := generateSecureToken(16)
	if err != nil {
		return "", err
	}
	transports, err := json.Marshal(cred.Transport)
	if err != nil {
		return "", err
	}

	err = a.store.CreateWebAuthnCredential(ctx, &store.WebAuthnCredential{
		ID:              id,
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      string(transports),
		SignCount:       cred.Authenticator.SignCount,
		CreatedAt:       time.Now(),
	})
	return id, err
}

// handleWebAuthnLoginBegin starts a discoverable login, so no username is needed.
func (a *Admin) handleWebAuthnLoginBegin(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil {
		http.Error(w, "WebAuthn not configured", http.StatusServiceUnavailable)
		return
	}

	options, session, err := a.webauthn.BeginDiscoverableLogin()
	if err != nil {
		a.logger.Error("failed to begin login", "error", err)
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	a.beginCeremony(w, options, session, "")
}

func (a *Admin) handleWebAuthnLoginFinish(w http.ResponseWriter, r *http.Request) {
	if a.webauthn == nil {
		http.Error(w, "WebAuthn not configured", http.StatusServiceUnavailable)
		return
	}

	req, err := decodeCeremony(w, r)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, _, ok := a.webauthnSessions.Take(req.SessionToken)
	if !ok {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		a.logger.Warn("failed to parse login response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	stored, user, err := a.credentialOwner(r.Context(), parsed.RawID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAdminUserNotFound) {
		http.Error(w, "Unknown credential", http.StatusUnauthorized)
		return
	}
	if err != nil {
		a.logger.Error("failed to lookup credential", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusInternalServerError)
		return
	}

	creds, _ := a.store.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	owner := &passkeyUser{user: user, creds: creds}
	credential, err := a.webauthn.ValidateDiscoverableLogin(credentialFinder(owner), *session, parsed)
	if err != nil {
		a.config.Metrics.RecordLogin("passkey", false)
		a.logger.Warn("passkey login rejected", "user_id", user.ID, "error", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	if err := a.store.UpdateWebAuthnCredentialSignCount(r.Context(), stored.ID, credential.Authenticator.SignCount); err != nil {
		a.logger.Warn("failed to update sign count", "error", err)
	}
	if err := a.createSession(w, r, user.ID); err != nil {
		a.logger.Error("failed to create session", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	a.config.Metrics.RecordLogin("passkey", true)
	a.logger.Info("passkey login successful", "user_id", user.ID)
	a.writeJSON(w, map[string]string{"status": "ok", "redirect": auth.AdminPath})
}

// credentialOwner finds a stored credential and the user it belongs to.
func (a *Admin) credentialOwner(ctx context.Context, credentialID []byte) (*store.WebAuthnCredential, *store.AdminUser, error) {
	cred, err := a.store.GetWebAuthnCredentialByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.store.GetAdminUser(ctx, cred.UserID)
	if err != nil {
		return nil, nil, err
	}
	return cred, user, nil
}

// credentialFinder resolves the discoverable login to the owner we already
// looked up, rejecting a user handle that names someone else.
func credentialFinder(owner *passkeyUser) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		if len(userHandle) > 0 && string(userHandle) != owner.user.ID {
			return nil, errors.New("user handle mismatch")
		}
		return owner, nil
	}
}
