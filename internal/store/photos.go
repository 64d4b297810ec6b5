// ABOUTME: Gallery photo persistence including the per-photo image settings column
// ABOUTME: Image settings are stored as an opaque JSON object and replaced wholesale

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const photoColumns = `id, title, caption, image_url, thumb_url, price_cents, sort_order, featured, image_settings, created_at`

// CreatePhoto inserts a new photo.
func (s *SQLiteStore) CreatePhoto(ctx context.Context, photo *Photo) error {
	query := `
		INSERT INTO photos (` + photoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var imageSettings sql.NullString
	if photo.ImageSettings != "" {
		imageSettings = sql.NullString{String: photo.ImageSettings, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		photo.ID,
		photo.Title,
		photo.Caption,
		photo.ImageURL,
		photo.ThumbURL,
		photo.PriceCents,
		photo.SortOrder,
		boolToInt(photo.Featured),
		imageSettings,
		photo.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting photo: %w", err)
	}

	s.logger.Info("created photo", "id", photo.ID, "title", photo.Title)
	return nil
}

// ListPhotos returns all photos in gallery order.
func (s *SQLiteStore) ListPhotos(ctx context.Context) ([]*Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos ORDER BY sort_order ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var photos []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating photos: %w", err)
	}
	return photos, nil
}

// GetPhoto retrieves a photo by ID.
func (s *SQLiteStore) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	return photo, err
}

// GetPhotoImageSettings returns the raw image settings of a photo, "" when never set.
func (s *SQLiteStore) GetPhotoImageSettings(ctx context.Context, id string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT image_settings FROM photos WHERE id = ?`, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPhotoNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying photo image settings: %w", err)
	}
	return value.String, nil
}

// UpdatePhotoImageSettings replaces the image settings of a photo.
func (s *SQLiteStore) UpdatePhotoImageSettings(ctx context.Context, id, value string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE photos SET image_settings = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("updating photo image settings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPhotoNotFound
	}

	s.logger.Debug("updated photo image settings", "id", id)
	return nil
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var photo Photo
	var featured int
	var imageSettings sql.NullString
	var createdAtStr string

	err := row.Scan(
		&photo.ID,
		&photo.Title,
		&photo.Caption,
		&photo.ImageURL,
		&photo.ThumbURL,
		&photo.PriceCents,
		&photo.SortOrder,
		&featured,
		&imageSettings,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning photo: %w", err)
	}

	photo.Featured = featured != 0
	photo.ImageSettings = imageSettings.String
	photo.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &photo, nil
}
