// ABOUTME: Content page persistence for the public site and the admin editor
// ABOUTME: Partial updates only touch the columns the caller supplied

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether slug is lowercase letters and digits joined by single hyphens.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

const pageColumns = `id, slug, title, subtitle, body, hero_image, meta_description, published, sort_order, created_at, updated_at`

// CreatePage inserts a new page. Returns ErrSlugExists if the slug is taken.
func (s *SQLiteStore) CreatePage(ctx context.Context, page *Page) error {
	query := `
		INSERT INTO pages (` + pageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		page.ID,
		page.Slug,
		page.Title,
		page.Subtitle,
		page.Body,
		page.HeroImage,
		page.MetaDescription,
		boolToInt(page.Published),
		page.SortOrder,
		page.CreatedAt.UTC().Format(time.RFC3339),
		page.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("inserting page: %w", err)
	}

	s.logger.Info("created page", "id", page.ID, "slug", page.Slug)
	return nil
}

// ListPages returns all pages ordered for navigation.
func (s *SQLiteStore) ListPages(ctx context.Context) ([]*Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages ORDER BY sort_order ASC, title ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

// GetPage retrieves a page by ID.
func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	return page, err
}

// GetPageBySlug retrieves a page by its URL slug.
func (s *SQLiteStore) GetPageBySlug(ctx context.Context, slug string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug = ?`, slug)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	return page, err
}

// UpdatePage applies the non-nil fields of update and bumps updated_at.
func (s *SQLiteStore) UpdatePage(ctx context.Context, id string, update PageUpdate) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if update.Slug != nil {
		add("slug", *update.Slug)
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Subtitle != nil {
		add("subtitle", *update.Subtitle)
	}
	if update.Body != nil {
		add("body", *update.Body)
	}
	if update.HeroImage != nil {
		add("hero_image", *update.HeroImage)
	}
	if update.MetaDescription != nil {
		add("meta_description", *update.MetaDescription)
	}
	if update.Published != nil {
		add("published", boolToInt(*update.Published))
	}
	if update.SortOrder != nil {
		add("sort_order", *update.SortOrder)
	}
	add("updated_at", time.Now().UTC().Format(time.RFC3339))
	args = append(args, id)

	query := `UPDATE pages SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("updating page: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPageNotFound
	}

	s.logger.Info("updated page", "id", id, "fields", len(sets)-1)
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*Page, error) {
	var page Page
	var published int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&page.ID,
		&page.Slug,
		&page.Title,
		&page.Subtitle,
		&page.Body,
		&page.HeroImage,
		&page.MetaDescription,
		&published,
		&page.SortOrder,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning page: %w", err)
	}

	page.Published = published != 0
	page.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	page.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &page, nil
}
