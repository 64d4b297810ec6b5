// ABOUTME: Tests for the darkroom HTTP server wiring and lifecycle
// ABOUTME: Drives the assembled handler with httptest and runs Serve on a loopback listener

package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/darkroom/internal/config"
	"github.com/2389/darkroom/internal/inspector"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:  "127.0.0.1:0",
			APIPrefix: config.DefaultAPIPrefix,
		},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth:     config.AuthConfig{SessionDuration: time.Hour},
		Site: config.SiteConfig{
			Title:    "Fieldnotes",
			Currency: "EUR",
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: config.DefaultMetricsPath},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := serve(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRoutesAreWired(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantLoc  string
	}{
		{"home page", http.MethodGet, "/", http.StatusOK, ""},
		{"gallery", http.MethodGet, "/gallery", http.StatusOK, ""},
		{"site stylesheet", http.MethodGet, "/static/site.css", http.StatusOK, ""},
		{"unknown page", http.MethodGet, "/no-such-thing", http.StatusNotFound, ""},
		{"admin needs login", http.MethodGet, "/admin", http.StatusSeeOther, "/admin/login"},
		{"admin writes need login", http.MethodPut, "/admin/settings", http.StatusSeeOther, "/admin/login"},
		{"admin deletes need login", http.MethodDelete, "/admin/pages/x", http.StatusSeeOther, "/admin/login"},
		{"login page", http.MethodGet, "/admin/login", http.StatusOK, ""},
		{"login page trailing slash", http.MethodGet, "/admin/login/", http.StatusSeeOther, "/admin/login"},
		{"api needs session", http.MethodGet, "/api/settings/layout", http.StatusUnauthorized, ""},
		{"inspector off outside dev mode", http.MethodGet, inspector.Prefix + "/inspector.js", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, srv, tt.method, tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestDevModeMountsInspector(t *testing.T) {
	cfg := testConfig()
	cfg.Site.DevMode = true
	srv := newTestServer(t, cfg)

	rec := serve(t, srv, http.MethodGet, inspector.Prefix+"/inspector.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	home := serve(t, srv, http.MethodGet, "/")
	assert.Contains(t, home.Body.String(), inspector.Prefix+"/inspector.js")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	serve(t, srv, http.MethodGet, "/health")
	serve(t, srv, http.MethodGet, "/gallery")

	rec := serve(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `darkroom_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
	assert.Contains(t, body, `route="GET /gallery"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	srv := newTestServer(t, cfg)

	rec := serve(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, srv.metrics)
}

func TestWeakJWTSecretRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "short"

	_, err := New(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT verifier")
}

func TestDetermineBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "explicit",
			cfg:  config.Config{Server: config.ServerConfig{BaseURL: "https://photos.example.com", HTTPAddr: ":8080"}},
			want: "https://photos.example.com",
		},
		{
			name: "from listen address",
			cfg:  config.Config{Server: config.ServerConfig{HTTPAddr: "localhost:8080"}},
			want: "http://localhost:8080",
		},
		{
			name: "tailnet plain",
			cfg:  config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "darkroom"}},
			want: "http://darkroom",
		},
		{
			name: "tailnet https",
			cfg:  config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "darkroom", HTTPS: true}},
			want: "https://darkroom",
		},
		{
			name: "funnel",
			cfg:  config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "darkroom", Funnel: true}},
			want: "https://darkroom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineBaseURL(&tt.cfg, testLogger()))
		})
	}
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")

	_, err := resolveTailscaleAuthKey("")
	assert.Error(t, err)

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/darkroom/ts")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/darkroom/ts", dir)

	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, "darkroom/tailscale"), dir)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
