// Package server assembles a running darkroom.
//
// [New] opens the SQLite store and mounts every component on one
// http.ServeMux:
//
//   - GET /health: liveness, always "OK"
//   - the JSON admin API under server.api_prefix (package api)
//   - the admin UI under /admin and passkey login under /auth/webauthn (package webadmin)
//   - the element inspector under /__inspector when site.dev_mode is set
//   - Prometheus metrics at metrics.path when metrics.enabled is set
//   - the public site for everything else (package site)
//
// When metrics are enabled the whole mux is wrapped in the request
// middleware, so every route is counted under its registered pattern.
//
// # Listeners
//
// Without Tailscale the server listens on server.http_addr. With
// tailscale.enabled it joins the tailnet through tsnet and serves on :80,
// on :443 with a tailnet certificate (https), or publicly through Funnel.
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	err = srv.Run(ctx) // blocks until ctx is done
//
// Run allows in-flight requests [ShutdownTimeout] to finish, then closes the
// admin sweeper, the inspector, the tsnet node and the store.
package server
