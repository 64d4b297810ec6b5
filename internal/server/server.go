// ABOUTME: HTTP server that wires the store, site, admin UI, API and inspector onto one mux
// ABOUTME: Listens on TCP or a tsnet node and shuts down gracefully when its context ends

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/darkroom/internal/api"
	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/config"
	"github.com/2389/darkroom/internal/inspector"
	"github.com/2389/darkroom/internal/metrics"
	"github.com/2389/darkroom/internal/site"
	"github.com/2389/darkroom/internal/store"
	"github.com/2389/darkroom/internal/webadmin"
)

// ShutdownTimeout bounds the graceful shutdown after the run context ends.
const ShutdownTimeout = 5 * time.Second

// Server owns every long-lived component of a running darkroom.
type Server struct {
	config      *config.Config
	store       *store.SQLiteStore
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	webAdmin    *webadmin.Admin
	inspector   *inspector.Inspector
	metrics     *metrics.Metrics
	baseURL     string
	logger      *slog.Logger
}

// determineBaseURL resolves the public URL from config or the listener settings.
func determineBaseURL(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL
	}

	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}

	if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
		logger.Warn("server.base_url not set, passkeys may fail; set it to the full tailnet URL (e.g. https://darkroom.your-tailnet.ts.net)")
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// initStore opens the database named by config, or by DARKROOM_DB_PATH when set.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("DARKROOM_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newValidator builds the session validator, with bearer tokens when a secret is configured.
func newValidator(cfg *config.Config, s *store.SQLiteStore, logger *slog.Logger) (*auth.SessionValidator, error) {
	if cfg.Auth.JWTSecret == "" {
		logger.Info("auth.jwt_secret not set, bearer tokens disabled")
		return auth.NewSessionValidator(s, nil), nil
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	return auth.NewSessionValidator(s, verifier), nil
}

// New opens the store and builds the HTTP handler tree.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	validator, err := newValidator(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	srv := &Server{
		config: cfg,
		store:  s,
		logger: logger.With("component", "server"),
	}
	srv.baseURL = determineBaseURL(cfg, srv.logger)

	if cfg.Metrics.Enabled {
		srv.metrics = metrics.New()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)

	api.New(api.Config{
		Settings:  s,
		Pages:     s,
		Photos:    s,
		Validator: validator,
		Logger:    logger.With("component", "api"),
	}).RegisterRoutes(mux, cfg.Server.APIPrefix)

	srv.webAdmin = webadmin.New(s, validator, webadmin.Config{
		BaseURL:         srv.baseURL,
		APIPrefix:       cfg.Server.APIPrefix,
		SessionDuration: cfg.Auth.SessionDuration,
		SiteTitle:       cfg.Site.Title,
		Metrics:         srv.metrics,
	})
	srv.webAdmin.RegisterRoutes(mux)
	srv.logger.Info("admin UI enabled at /admin", "base_url", srv.baseURL)

	if cfg.Site.DevMode {
		srv.inspector = inspector.New(0, 0)
		srv.inspector.RegisterRoutes(mux)
		srv.logger.Warn("dev mode on, element inspector mounted", "prefix", inspector.Prefix)
	}

	if srv.metrics != nil {
		mux.Handle("GET "+cfg.Metrics.Path, srv.metrics.Handler())
		srv.logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	site.New(site.Config{
		Settings: s,
		Pages:    s,
		Photos:   s,
		Orders:   s,
		Title:    cfg.Site.Title,
		Tagline:  cfg.Site.Tagline,
		Currency: cfg.Site.Currency,
		DevMode:  cfg.Site.DevMode,
		Metrics:  srv.metrics,
		Logger:   logger.With("component", "site"),
	}).RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.metrics.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Store returns the open store.
func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

// BaseURL is the resolved public URL.
func (s *Server) BaseURL() string {
	return s.baseURL
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting darkroom", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves until ctx is canceled or the server fails, then shuts down.
// It returns nil after a shutdown caused by ctx.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already done.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "darkroom", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on it.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	return s.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
	if dnsName != "" && s.config.Server.BaseURL == "" && !strings.Contains(s.baseURL, dnsName) {
		s.logger.Warn("passkeys are bound to the base URL host; set server.base_url to the tailnet name", "base_url", s.baseURL, "dns_name", dnsName)
	}
}

// createTailscaleHTTPListener picks funnel, tailnet TLS or plain HTTP.
func (s *Server) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.createTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (s *Server) createTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every component.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down darkroom")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	if s.webAdmin != nil {
		s.webAdmin.Close()
	}
	if s.inspector != nil {
		s.inspector.Close()
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
