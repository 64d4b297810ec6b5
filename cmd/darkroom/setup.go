// ABOUTME: Setup and maintenance subcommands: init, bootstrap, adduser, passwd, token and seed
// ABOUTME: These open the store directly and never need a running server

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/config"
	"github.com/2389/darkroom/internal/content"
	"github.com/2389/darkroom/internal/store"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 64

	defaultHTTPAddr = "localhost:8080"
	defaultTokenTTL = 30 * 24 * time.Hour
)

// generateSecret returns n random bytes, base64 encoded.
func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return "", errors.New("--username is required")
	case len(username) > maxUsernameLength:
		return "", fmt.Errorf("username exceeds maximum length of %d characters", maxUsernameLength)
	case strings.ContainsAny(username, " \t\n"):
		return "", errors.New("username cannot contain whitespace")
	}
	return username, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// readPassword returns the --password flag, or asks on the terminal. Piped
// input is read as a single line.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "New password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openStore(cmd *cobra.Command) (*config.Config, *store.SQLiteStore, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, nil
}

func newBootstrapCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the config file if missing and the first admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBootstrap(cmd, username, password)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (generated when empty)")
	return cmd
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random JWT secret (if not exists)
// 2. Creates the database and the first admin user
// 3. Saves a bearer token next to the config for darkroom-admin
func runBootstrap(cmd *cobra.Command, username, password string) error {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	username, err := validateUsername(username)
	if err != nil {
		return err
	}

	path := configPath(cmd)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		secret, err := generateSecret(32)
		if err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		dbPath := filepath.Join(getDataPath(), "darkroom.db")

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		body := config.Template(defaultHTTPAddr, dbPath, "", config.DefaultSiteTitle, secret)
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Fprintf(out, "  ✓ Created config: %s\n", path)
	} else {
		cyan.Fprintf(out, "  Using existing config: %s\n", path)
	}

	cfg, s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	green.Fprintf(out, "  ✓ Database: %s\n", cfg.Database.Path)

	count, err := s.CountAdminUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("checking admin users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bootstrap already complete: %d admin user(s) exist", count)
	}

	generated := password == ""
	if generated {
		if password, err = generateSecret(12); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	user := &store.AdminUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  username,
		Role:         store.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateAdminUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	green.Fprintf(out, "  ✓ Created admin user: %s\n", username)

	var tokenPath string
	if cfg.Auth.JWTSecret != "" {
		token, err := mintToken(cfg, user, defaultTokenTTL)
		if err != nil {
			return err
		}
		tokenPath = filepath.Join(filepath.Dir(path), "token")
		if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
			return fmt.Errorf("writing token file: %w", err)
		}
		green.Fprintf(out, "  ✓ Saved token: %s\n", tokenPath)
	}

	fmt.Fprintln(out)
	green.Fprintln(out, "  Bootstrap complete!")
	fmt.Fprintln(out)
	cyan.Fprintln(out, "  Admin user")
	cyan.Fprintln(out, "  ----------")
	fmt.Fprintf(out, "  ID:       %s\n", user.ID)
	fmt.Fprintf(out, "  Username: %s\n", user.Username)
	fmt.Fprintf(out, "  Role:     %s\n", user.Role)
	if generated {
		fmt.Fprintf(out, "  Password: %s ", password)
		yellow.Fprintln(out, "(shown once)")
	}
	if tokenPath != "" {
		fmt.Fprintf(out, "  Token:    %s (expires %s)\n", tokenPath, time.Now().Add(defaultTokenTTL).Format("Jan 02, 2006"))
	}
	fmt.Fprintln(out)

	yellow.Fprintln(out, "  Ready to go:")
	fmt.Fprintln(out, "    darkroom serve           # start the server")
	fmt.Fprintln(out, "    darkroom-admin status    # check the API with your token")
	fmt.Fprintln(out)
	return nil
}

func newAddUserCmd() *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Add an admin or editor account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, err := validateUsername(username)
			if err != nil {
				return err
			}
			if role != store.RoleAdmin && role != store.RoleEditor {
				return fmt.Errorf("--role must be %q or %q", store.RoleAdmin, store.RoleEditor)
			}
			password, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			hash, err := hashPassword(password)
			if err != nil {
				return err
			}

			_, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			user := &store.AdminUser{
				ID:           uuid.New().String(),
				Username:     username,
				PasswordHash: hash,
				DisplayName:  username,
				Role:         role,
				CreatedAt:    time.Now().UTC(),
			}
			if err := s.CreateAdminUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Created %s %s\n", role, username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")
	cmd.Flags().StringVar(&role, "role", store.RoleEditor, "Role: admin or editor")
	return cmd
}

func newPasswdCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset an admin user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, err := validateUsername(username)
			if err != nil {
				return err
			}

			_, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := s.GetAdminUserByUsername(cmd.Context(), username)
			if errors.Is(err, store.ErrAdminUserNotFound) {
				return fmt.Errorf("no admin user named %q", username)
			}
			if err != nil {
				return fmt.Errorf("looking up user: %w", err)
			}

			password, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			hash, err := hashPassword(password)
			if err != nil {
				return err
			}
			if err := s.UpdateAdminUserPassword(cmd.Context(), user.ID, hash); err != nil {
				return fmt.Errorf("updating password: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Password updated for %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password (prompted when empty)")
	return cmd
}

func mintToken(cfg *config.Config, user *store.AdminUser, ttl time.Duration) (string, error) {
	if cfg.Auth.JWTSecret == "" {
		return "", errors.New("auth.jwt_secret is not configured; bearer tokens are disabled")
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.ID, user.Role, ttl)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return token, nil
}

func newTokenCmd() *cobra.Command {
	var username string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for darkroom-admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, err := validateUsername(username)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			cfg, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := s.GetAdminUserByUsername(cmd.Context(), username)
			if errors.Is(err, store.ErrAdminUserNotFound) {
				return fmt.Errorf("no admin user named %q", username)
			}
			if err != nil {
				return fmt.Errorf("looking up user: %w", err)
			}

			token, err := mintToken(cfg, user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "Token lifetime")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.toml>",
		Short: "Import pages, photos and settings from a TOML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := content.LoadSeed(args[0])
			if err != nil {
				return err
			}

			cfg, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
			report, err := seed.Apply(cmd.Context(), s, logger)
			if err != nil {
				return fmt.Errorf("applying seed: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", report)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new config file interactively",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "darkroom configuration setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", configPath(cmd))
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server ---")
	httpAddr := prompt(reader, out, "HTTP address", defaultHTTPAddr)
	baseURL := prompt(reader, out, "Public base URL (for passkeys, empty to derive)", "")

	fmt.Fprintln(out, "\n--- Site ---")
	title := prompt(reader, out, "Site title", config.DefaultSiteTitle)

	fmt.Fprintln(out, "\n--- Database ---")
	dbPath := prompt(reader, out, "SQLite database path", filepath.Join(getDataPath(), "darkroom.db"))

	var secret string
	if yes(prompt(reader, out, "Enable bearer tokens for darkroom-admin?", "yes")) {
		var err error
		if secret, err = generateSecret(32); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
	}

	body := config.Template(httpAddr, dbPath, baseURL, title, secret)
	if _, err := config.Parse([]byte(body)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(body), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nNext:")
	fmt.Fprintln(out, "  darkroom bootstrap --username <name>")
	fmt.Fprintln(out, "  darkroom serve")
	return nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
