// Package api is the JSON admin API.
//
// Routes, relative to the configured prefix (default /api):
//
//	GET  /settings/layout            any session
//	PUT  /settings/layout            any session, merged over the stored value
//	GET  /settings/images            any session
//	PUT  /settings/images            any session, replaces the stored value
//	GET  /pages                      any session
//	GET  /pages/{id}                 admin
//	PUT  /pages/{id}                 admin, partial update
//	GET  /photos/{id}/image-settings admin
//	PUT  /photos/{id}/image-settings admin
//
// Callers authenticate with the admin session cookie or a bearer JWT. Every
// handler returns an error that route maps to a status; failures are always
// {"error": "..."} and internal ones never leak details.
package api
