// Package webadmin serves the darkroom admin UI under /admin.
//
// # Pages
//
//   - /admin: counts and the five most recent orders
//   - /admin/pages, /admin/pages/{id}: page list and the Markdown editor
//   - /admin/settings: layout and image settings as JSON
//   - /admin/photos: per-photo image settings
//   - /admin/orders: submitted checkouts
//
// The pages render server-side from embedded templates. Edits are not form
// posts: static/admin.js sends them to the JSON API (see package api), so the
// validation and merge rules live in one place.
//
// # Authentication
//
// Everything under /admin runs behind [auth.Guard]. Signed-out requests are
// redirected to /admin/login and a signed-in visit to the login page goes to
// /admin.
//
// Password login checks a bcrypt hash and creates a row in admin_sessions. The
// session cookie is scoped to / so the API accepts it as well. Unknown users
// still pay for one bcrypt comparison.
//
// Passkeys are optional. A signed-in user registers one from the dashboard;
// sign-in uses discoverable credentials through /auth/webauthn, which sits
// outside /admin so signed-out browsers can reach it.
//
// # CSRF
//
// Login and logout forms carry a double-submit token: a random value in the
// darkroom_csrf cookie that must match the csrf_token form field or the
// X-CSRF-Token header.
package webadmin
