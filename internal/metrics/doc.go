// Package metrics exposes Prometheus metrics for a darkroom server.
//
// Requests are labelled by the ServeMux pattern that matched them (for
// example "GET /gallery/{id}"), never by raw path, so the number of series
// stays bounded. The server mounts Handler at metrics.path when metrics are
// enabled.
package metrics
