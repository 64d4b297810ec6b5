// ABOUTME: Session validator resolving a request to an admin principal
// ABOUTME: Accepts the admin session cookie first, then an Authorization bearer JWT

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/darkroom/internal/store"
)

// SessionCookieName is the cookie holding the admin session id.
const SessionCookieName = "darkroom_session"

// ErrNoSession means the request carries no usable credential.
var ErrNoSession = errors.New("no session")

// Validator resolves the principal behind a request.
// It returns ErrNoSession when the caller is anonymous; any other error is a
// failure of a collaborator.
type Validator interface {
	Validate(r *http.Request) (*Principal, error)
}

// SessionStore is the part of the admin store the validator reads.
type SessionStore interface {
	GetAdminSession(ctx context.Context, id string) (*store.AdminSession, error)
	GetAdminUser(ctx context.Context, id string) (*store.AdminUser, error)
}

// SessionValidator validates cookie sessions and, when a verifier is set, bearer tokens.
type SessionValidator struct {
	sessions SessionStore
	tokens   *JWTVerifier
}

var _ Validator = (*SessionValidator)(nil)

// NewSessionValidator creates a validator. tokens may be nil to disable bearer auth.
func NewSessionValidator(sessions SessionStore, tokens *JWTVerifier) *SessionValidator {
	return &SessionValidator{sessions: sessions, tokens: tokens}
}

// Validate returns the principal for r or ErrNoSession.
func (v *SessionValidator) Validate(r *http.Request) (*Principal, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		p, err := v.fromSession(r.Context(), cookie.Value)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNoSession) {
			return nil, err
		}
	}

	if v.tokens != nil {
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
			return v.fromToken(r.Context(), token)
		}
	}

	return nil, ErrNoSession
}

func (v *SessionValidator) fromSession(ctx context.Context, sessionID string) (*Principal, error) {
	session, err := v.sessions.GetAdminSession(ctx, sessionID)
	if errors.Is(err, store.ErrAdminSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	return v.principalFor(ctx, session.UserID, "session")
}

func (v *SessionValidator) fromToken(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return v.principalFor(ctx, claims.Subject, "token")
}

// principalFor loads the user so that role changes and deletions apply to live credentials.
func (v *SessionValidator) principalFor(ctx context.Context, userID, method string) (*Principal, error) {
	user, err := v.sessions.GetAdminUser(ctx, userID)
	if errors.Is(err, store.ErrAdminUserNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("looking up admin user: %w", err)
	}
	return &Principal{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Method:   method,
	}, nil
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
