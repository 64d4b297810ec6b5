// ABOUTME: Entry point for the darkroom portfolio server
// ABOUTME: Cobra root command with serve as the default and the setup and maintenance subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/darkroom/internal/config"
	"github.com/2389/darkroom/internal/server"
)

// version is overridden with -ldflags "-X main.version=..." in release builds.
var version = "dev"

const banner = `
     _            _
  __| | __ _ _ __| | ___ __ ___   ___  _ __ ___
 / _' |/ _' | '__| |/ / '__/ _ \ / _ \| '_ ' _ \
| (_| | (_| | |  |   <| | | (_) | (_) | | | | | |
 \__,_|\__,_|_|  |_|\_\_|  \___/ \___/|_| |_| |_|
`

// getConfigPath returns the path to the config file.
// Priority: DARKROOM_CONFIG > ./config.yaml > XDG_CONFIG_HOME/darkroom/darkroom.yaml > ~/.config/darkroom/darkroom.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DARKROOM_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "darkroom.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "darkroom", "darkroom.yaml")
}

// getDataPath returns the path to the darkroom data directory.
// Priority: XDG_DATA_HOME/darkroom > ~/.local/share/darkroom
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "darkroom")
}

// configPath honours --config before the default lookup.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return getConfigPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "darkroom",
		Short:         "darkroom - a photography portfolio with a small print shop",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringP("config", "c", "", "Configuration file path")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "health",
			Short: "Check server health",
			Args:  cobra.NoArgs,
			RunE:  runHealth,
		},
		newInitCmd(),
		newBootstrapCmd(),
		newAddUserCmd(),
		newPasswdCmd(),
		newTokenCmd(),
		newSeedCmd(),
		newUsersCmd(),
		newSettingsCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stdout)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Site:      %s (%s)\n", cfg.Site.Title, cfg.Site.Currency)

	if cfg.Tailscale.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Tailscale: ")
		cyan.Fprint(out, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Fprint(out, " [funnel]")
		} else if cfg.Tailscale.HTTPS {
			yellow.Fprint(out, " [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(out, " (ephemeral)")
		}
		fmt.Fprintln(out)
	} else {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Site.DevMode {
		yellow.Fprintln(out, "    ▶ Dev mode: element inspector enabled")
	}
	fmt.Fprintln(out)

	logger.Info("starting darkroom", "config", path, "http_addr", cfg.Server.HTTPAddr, "version", version)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(cmd.Context())
}

// healthURL prefers the configured base URL over the listen address.
func healthURL(cfg *config.Config) string {
	if cfg.Server.BaseURL != "" {
		return strings.TrimSuffix(cfg.Server.BaseURL, "/") + "/health"
	}
	return fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(cfg), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("unhealthy: status " + resp.Status)
	}

	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
