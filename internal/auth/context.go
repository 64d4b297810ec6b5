// ABOUTME: Authenticated principal carried through request handlers
// ABOUTME: Provides WithPrincipal/FromContext for propagating identity via context

package auth

import (
	"context"

	"github.com/2389/darkroom/internal/store"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       string // admin user id
	Username string
	Role     string
	Method   string // "session" or "token"
}

// IsAdmin reports whether the principal may use role-gated endpoints.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == store.RoleAdmin
}

type principalKey struct{}

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
