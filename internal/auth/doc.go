// Package auth authenticates darkroom admin requests.
//
// # Credentials
//
// Two credentials resolve to a Principal:
//
//   - Session cookie: darkroom_session holds an admin_sessions id created at
//     login. Expired or unknown ids count as anonymous.
//   - Bearer token: an HS256 JWT signed with auth.jwt_secret, used by
//     darkroom-admin and scripts.
//
// In both cases the user row is reloaded so role changes apply immediately.
//
// # Route guard
//
// Decide maps a path and session presence to a Decision. Guard applies it as
// middleware in front of the HTML tree:
//
//	/admin/login with a session    -> 303 /admin
//	/admin or /admin/... without   -> 303 /admin/login
//	everything else                -> pass through
//
// Trailing slashes are ignored. /administrator is not an admin path.
package auth
