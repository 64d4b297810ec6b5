// ABOUTME: Admin user, session and passkey credential types and store methods
// ABOUTME: Backs password login, cookie sessions and WebAuthn for the admin panel

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAdminUserNotFound is returned when an admin user doesn't exist.
var ErrAdminUserNotFound = errors.New("admin user not found")

// ErrAdminSessionNotFound is returned when a session doesn't exist or is expired.
var ErrAdminSessionNotFound = errors.New("admin session not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// Roles an admin user can hold. Editors may change site settings but not pages or photos.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// AdminUser represents someone who can sign in to the admin panel.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash, empty if passkey-only
	DisplayName  string
	Role         string
	CreatedAt    time.Time
}

// AdminSession represents an authenticated browser session.
type AdminSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// WebAuthnCredential represents a passkey credential.
type WebAuthnCredential struct {
	ID              string
	UserID          string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array
	SignCount       uint32
	CreatedAt       time.Time
}

// AdminStore defines the interface for admin-related persistence.
type AdminStore interface {
	// Admin Users
	CreateAdminUser(ctx context.Context, user *AdminUser) error
	GetAdminUser(ctx context.Context, id string) (*AdminUser, error)
	GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error)
	UpdateAdminUserPassword(ctx context.Context, id, passwordHash string) error
	ListAdminUsers(ctx context.Context) ([]*AdminUser, error)
	CountAdminUsers(ctx context.Context) (int, error)

	// Sessions
	CreateAdminSession(ctx context.Context, session *AdminSession) error
	GetAdminSession(ctx context.Context, id string) (*AdminSession, error)
	DeleteAdminSession(ctx context.Context, id string) error
	DeleteExpiredAdminSessions(ctx context.Context) error

	// WebAuthn Credentials
	CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error
	GetWebAuthnCredentialsByUser(ctx context.Context, userID string) ([]*WebAuthnCredential, error)
	GetWebAuthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error)
	UpdateWebAuthnCredentialSignCount(ctx context.Context, id string, signCount uint32) error
}

var _ AdminStore = (*SQLiteStore)(nil)

const adminUserColumns = `id, username, password_hash, display_name, role, created_at`

// CreateAdminUser creates a new admin user. An empty role defaults to RoleAdmin.
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	if user.Role == "" {
		user.Role = RoleAdmin
	}

	query := `
		INSERT INTO admin_users (` + adminUserColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var passwordHash sql.NullString
	if user.PasswordHash != "" {
		passwordHash = sql.NullString{String: user.PasswordHash, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		passwordHash,
		user.DisplayName,
		user.Role,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting admin user: %w", err)
	}

	s.logger.Info("created admin user", "id", user.ID, "username", user.Username, "role", user.Role)
	return nil
}

// GetAdminUser retrieves an admin user by ID.
func (s *SQLiteStore) GetAdminUser(ctx context.Context, id string) (*AdminUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE id = ?`, id)
	user, err := scanAdminUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminUserNotFound
	}
	return user, err
}

// GetAdminUserByUsername retrieves an admin user by username.
func (s *SQLiteStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE username = ?`, username)
	user, err := scanAdminUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminUserNotFound
	}
	return user, err
}

// UpdateAdminUserPassword updates an admin user's password hash.
func (s *SQLiteStore) UpdateAdminUserPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE admin_users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating admin user password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAdminUserNotFound
	}

	s.logger.Info("updated admin user password", "id", id)
	return nil
}

// ListAdminUsers returns all admin users.
func (s *SQLiteStore) ListAdminUsers(ctx context.Context) ([]*AdminUser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying admin users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*AdminUser
	for rows.Next() {
		user, err := scanAdminUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin users: %w", err)
	}
	return users, nil
}

// CountAdminUsers returns the number of admin users.
func (s *SQLiteStore) CountAdminUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin_users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting admin users: %w", err)
	}
	return count, nil
}

func scanAdminUser(row rowScanner) (*AdminUser, error) {
	var user AdminUser
	var passwordHash sql.NullString
	var createdAtStr string

	err := row.Scan(&user.ID, &user.Username, &passwordHash, &user.DisplayName, &user.Role, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning admin user: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// CreateAdminSession creates a new admin session.
func (s *SQLiteStore) CreateAdminSession(ctx context.Context, session *AdminSession) error {
	query := `
		INSERT INTO admin_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting admin session: %w", err)
	}

	s.logger.Debug("created admin session", "user_id", session.UserID)
	return nil
}

// GetAdminSession retrieves a valid (non-expired) admin session.
func (s *SQLiteStore) GetAdminSession(ctx context.Context, id string) (*AdminSession, error) {
	query := `
		SELECT id, user_id, created_at, expires_at
		FROM admin_sessions
		WHERE id = ? AND expires_at > ?
	`

	var session AdminSession
	var createdAtStr, expiresAtStr string
	now := time.Now().UTC().Format(time.RFC3339)

	err := s.db.QueryRowContext(ctx, query, id, now).Scan(
		&session.ID,
		&session.UserID,
		&createdAtStr,
		&expiresAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &session, nil
}

// DeleteAdminSession deletes an admin session.
func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM admin_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting admin session: %w", err)
	}
	return nil
}

// DeleteExpiredAdminSessions removes all expired sessions.
func (s *SQLiteStore) DeleteExpiredAdminSessions(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, "DELETE FROM admin_sessions WHERE expires_at <= ?", now)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.logger.Debug("deleted expired admin sessions", "count", n)
	}
	return nil
}

const webAuthnColumns = `id, user_id, credential_id, public_key, attestation_type, transports, sign_count, created_at`

// CreateWebAuthnCredential stores a new WebAuthn credential.
func (s *SQLiteStore) CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error {
	query := `
		INSERT INTO webauthn_credentials (` + webAuthnColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.CredentialID,
		cred.PublicKey,
		cred.AttestationType,
		cred.Transports,
		cred.SignCount,
		cred.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting webauthn credential: %w", err)
	}

	s.logger.Info("created webauthn credential", "id", cred.ID, "user_id", cred.UserID)
	return nil
}

// GetWebAuthnCredentialsByUser retrieves all WebAuthn credentials for a user.
func (s *SQLiteStore) GetWebAuthnCredentialsByUser(ctx context.Context, userID string) ([]*WebAuthnCredential, error) {
	query := `SELECT ` + webAuthnColumns + ` FROM webauthn_credentials WHERE user_id = ? ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying webauthn credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*WebAuthnCredential
	for rows.Next() {
		cred, err := scanWebAuthnCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webauthn credentials: %w", err)
	}
	return creds, nil
}

// GetWebAuthnCredentialByCredentialID retrieves a WebAuthn credential by its credential ID.
func (s *SQLiteStore) GetWebAuthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error) {
	query := `SELECT ` + webAuthnColumns + ` FROM webauthn_credentials WHERE credential_id = ?`
	cred, err := scanWebAuthnCredential(s.db.QueryRowContext(ctx, query, credentialID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cred, err
}

// UpdateWebAuthnCredentialSignCount updates the sign count for a credential.
func (s *SQLiteStore) UpdateWebAuthnCredentialSignCount(ctx context.Context, id string, signCount uint32) error {
	result, err := s.db.ExecContext(ctx, `UPDATE webauthn_credentials SET sign_count = ? WHERE id = ?`, signCount, id)
	if err != nil {
		return fmt.Errorf("updating webauthn sign count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWebAuthnCredential(row rowScanner) (*WebAuthnCredential, error) {
	var cred WebAuthnCredential
	var createdAtStr string
	var transports sql.NullString

	err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.CredentialID,
		&cred.PublicKey,
		&cred.AttestationType,
		&transports,
		&cred.SignCount,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning webauthn credential: %w", err)
	}

	cred.Transports = transports.String
	cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &cred, nil
}
