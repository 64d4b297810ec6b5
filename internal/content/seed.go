// ABOUTME: TOML seed files describing pages, photos and settings for a fresh site
// ABOUTME: Apply is idempotent for pages (by slug) and photos (by id)

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

// Seed is the decoded content of a seed file.
type Seed struct {
	Pages    []PageSeed                `toml:"pages"`
	Photos   []PhotoSeed               `toml:"photos"`
	Settings map[string]map[string]any `toml:"settings"`

	dir string
}

// PageSeed describes one page. Body may instead be read from BodyFile,
// resolved relative to the seed file.
type PageSeed struct {
	Slug            string `toml:"slug"`
	Title           string `toml:"title"`
	Subtitle        string `toml:"subtitle"`
	Body            string `toml:"body"`
	BodyFile        string `toml:"body_file"`
	HeroImage       string `toml:"hero_image"`
	MetaDescription string `toml:"meta_description"`
	Published       bool   `toml:"published"`
	SortOrder       int    `toml:"sort_order"`
}

// PhotoSeed describes one photo. Without an id a new photo is created on
// every import.
type PhotoSeed struct {
	ID            string         `toml:"id"`
	Title         string         `toml:"title"`
	Caption       string         `toml:"caption"`
	ImageURL      string         `toml:"image_url"`
	ThumbURL      string         `toml:"thumb_url"`
	PriceCents    int64          `toml:"price_cents"`
	SortOrder     int            `toml:"sort_order"`
	Featured      bool           `toml:"featured"`
	ImageSettings map[string]any `toml:"image_settings"`
}

// Store is what Apply writes to.
type Store interface {
	store.SettingsStore
	store.PageStore
	store.PhotoStore
}

// Report counts what Apply did.
type Report struct {
	PagesCreated  int
	PagesSkipped  int
	PhotosCreated int
	PhotosSkipped int
	Settings      []string
}

func (r Report) String() string {
	s := fmt.Sprintf("pages: %d created, %d skipped; photos: %d created, %d skipped",
		r.PagesCreated, r.PagesSkipped, r.PhotosCreated, r.PhotosSkipped)
	if len(r.Settings) > 0 {
		s += "; settings: " + strings.Join(r.Settings, ", ")
	}
	return s
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed Seed
	md, err := toml.Decode(string(data), &seed)
	if err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in seed file", undecoded[0].String())
	}
	seed.dir = filepath.Dir(path)

	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("validating seed file: %w", err)
	}
	return &seed, nil
}

// Validate checks the seed before anything is written.
func (s *Seed) Validate() error {
	slugs := make(map[string]bool, len(s.Pages))
	for i, p := range s.Pages {
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("pages[%d]: title is required", i)
		}
		if !store.ValidSlug(p.Slug) {
			return fmt.Errorf("pages[%d]: slug %q must be lowercase letters, digits and single hyphens", i, p.Slug)
		}
		if slugs[p.Slug] {
			return fmt.Errorf("pages[%d]: duplicate slug %q", i, p.Slug)
		}
		slugs[p.Slug] = true
		if p.Body != "" && p.BodyFile != "" {
			return fmt.Errorf("pages[%d]: set body or body_file, not both", i)
		}
	}

	for i, p := range s.Photos {
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("photos[%d]: title is required", i)
		}
		if p.ImageURL == "" {
			return fmt.Errorf("photos[%d]: image_url is required", i)
		}
		if p.PriceCents < 0 {
			return fmt.Errorf("photos[%d]: price_cents must not be negative", i)
		}
	}

	for key := range s.Settings {
		if _, ok := settings.Parse(key); !ok {
			return fmt.Errorf("settings.%s: unknown category", key)
		}
	}
	return nil
}

// Apply writes the seed. Existing pages and photos are left alone; settings
// go through the same validation and merge rules as the API.
func (s *Seed) Apply(ctx context.Context, st Store, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default().With("component", "content")
	}
	var report Report
	now := time.Now().UTC()

	for _, p := range s.Pages {
		_, err := st.GetPageBySlug(ctx, p.Slug)
		if err == nil {
			report.PagesSkipped++
			continue
		}
		if !errors.Is(err, store.ErrPageNotFound) {
			return report, fmt.Errorf("checking page %q: %w", p.Slug, err)
		}

		body, err := s.pageBody(p)
		if err != nil {
			return report, err
		}
		err = st.CreatePage(ctx, &store.Page{
			ID:              uuid.New().String(),
			Slug:            p.Slug,
			Title:           p.Title,
			Subtitle:        p.Subtitle,
			Body:            body,
			HeroImage:       p.HeroImage,
			MetaDescription: p.MetaDescription,
			Published:       p.Published,
			SortOrder:       p.SortOrder,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return report, fmt.Errorf("creating page %q: %w", p.Slug, err)
		}
		report.PagesCreated++
	}

	for _, p := range s.Photos {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		} else if _, err := st.GetPhoto(ctx, id); err == nil {
			report.PhotosSkipped++
			continue
		} else if !errors.Is(err, store.ErrPhotoNotFound) {
			return report, fmt.Errorf("checking photo %q: %w", id, err)
		}

		imageSettings := ""
		if len(p.ImageSettings) > 0 {
			b, err := json.Marshal(p.ImageSettings)
			if err != nil {
				return report, fmt.Errorf("encoding image settings for photo %q: %w", id, err)
			}
			imageSettings = string(b)
		}

		err := st.CreatePhoto(ctx, &store.Photo{
			ID:            id,
			Title:         p.Title,
			Caption:       p.Caption,
			ImageURL:      p.ImageURL,
			ThumbURL:      p.ThumbURL,
			PriceCents:    p.PriceCents,
			SortOrder:     p.SortOrder,
			Featured:      p.Featured,
			ImageSettings: imageSettings,
			CreatedAt:     now,
		})
		if err != nil {
			return report, fmt.Errorf("creating photo %q: %w", p.Title, err)
		}
		report.PhotosCreated++
	}

	for _, c := range settings.Categories {
		table, ok := s.Settings[string(c)]
		if !ok {
			continue
		}
		if err := applySettings(ctx, st, c, table, logger); err != nil {
			return report, err
		}
		report.Settings = append(report.Settings, string(c))
	}

	logger.Info("seed applied", "pages", report.PagesCreated, "photos", report.PhotosCreated, "settings", report.Settings)
	return report, nil
}

func applySettings(ctx context.Context, st Store, c settings.Category, table map[string]any, logger *slog.Logger) error {
	body, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding %s settings: %w", c, err)
	}
	update, err := settings.ParseBody(c, body)
	if err != nil {
		return fmt.Errorf("settings.%s: %w", c, err)
	}

	current, err := settings.Load(ctx, st, c, logger)
	if err != nil {
		return err
	}
	value, err := settings.Encode(settings.Apply(c, current, update))
	if err != nil {
		return err
	}
	if err := st.UpsertSetting(ctx, string(c), value); err != nil {
		return fmt.Errorf("saving %s settings: %w", c, err)
	}
	return nil
}

func (s *Seed) pageBody(p PageSeed) (string, error) {
	if p.BodyFile == "" {
		return p.Body, nil
	}
	path := p.BodyFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading body for page %q: %w", p.Slug, err)
	}
	return string(b), nil
}
