// ABOUTME: Route guard decision for the admin tree
// ABOUTME: Maps a request path and session presence to pass-through or a redirect

package auth

import "strings"

// Admin paths the guard knows about.
const (
	AdminPath = "/admin"
	LoginPath = "/admin/login"
)

// Decision is the outcome of the route guard for one request.
type Decision int

const (
	PassThrough Decision = iota
	RedirectLogin
	RedirectAdmin
)

func (d Decision) String() string {
	switch d {
	case RedirectLogin:
		return "redirect-login"
	case RedirectAdmin:
		return "redirect-admin"
	default:
		return "pass-through"
	}
}

// Target is the redirect location for the decision, or "" for PassThrough.
func (d Decision) Target() string {
	switch d {
	case RedirectLogin:
		return LoginPath
	case RedirectAdmin:
		return AdminPath
	default:
		return ""
	}
}

// NormalizePath strips trailing slashes. An empty result is the root path.
func NormalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// Decide runs the guard for a path.
//
//	/admin/login   signed in -> RedirectAdmin, otherwise PassThrough
//	/admin, /admin/...   signed out -> RedirectLogin, otherwise PassThrough
//	anything else  PassThrough
func Decide(path string, authenticated bool) Decision {
	p := NormalizePath(path)

	if p == LoginPath {
		if authenticated {
			return RedirectAdmin
		}
		return PassThrough
	}

	if isAdminPath(p) {
		if !authenticated {
			return RedirectLogin
		}
		return PassThrough
	}

	return PassThrough
}

// isAdminPath matches /admin and everything below it, but not /administrator.
func isAdminPath(p string) bool {
	return p == AdminPath || strings.HasPrefix(p, AdminPath+"/")
}
