// ABOUTME: HTTP middleware applying the route guard to the admin tree
// ABOUTME: Redirects between /admin/login and /admin and attaches the principal on pass-through

package auth

import (
	"errors"
	"log/slog"
	"net/http"
)

// Guard wraps next with the route guard. A validator failure other than
// ErrNoSession is logged and treated as signed out.
func Guard(v Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default().With("component", "guard")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Validate(r)
			if err != nil && !errors.Is(err, ErrNoSession) {
				logger.Warn("session validation failed", "path", r.URL.Path, "error", err)
			}
			authenticated := err == nil && principal != nil

			decision := Decide(r.URL.Path, authenticated)
			if decision != PassThrough {
				http.Redirect(w, r, decision.Target(), http.StatusSeeOther)
				return
			}

			if authenticated {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
