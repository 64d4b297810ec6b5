// ABOUTME: Store interfaces and data types for darkroom persistence
// ABOUTME: Settings records, pages, photos and orders plus their sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

var (
	// ErrSettingNotFound is returned when no value was ever saved for a settings key.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrPageNotFound is returned when a page id or slug is unknown.
	ErrPageNotFound = errors.New("page not found")

	// ErrSlugExists is returned when a page slug is already taken.
	ErrSlugExists = errors.New("page slug already exists")

	// ErrPhotoNotFound is returned when a photo id is unknown.
	ErrPhotoNotFound = errors.New("photo not found")

	// ErrOrderNotFound is returned when an order id is unknown.
	ErrOrderNotFound = errors.New("order not found")
)

// SettingsRecord is one settings category and its serialized value.
type SettingsRecord struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Page is an editable content page rendered on the public site.
type Page struct {
	ID              string
	Slug            string
	Title           string
	Subtitle        string
	Body            string // Markdown
	HeroImage       string
	MetaDescription string
	Published       bool
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PageUpdate carries the fields to change on a page. Nil fields are left alone.
type PageUpdate struct {
	Slug            *string
	Title           *string
	Subtitle        *string
	Body            *string
	HeroImage       *string
	MetaDescription *string
	Published       *bool
	SortOrder       *int
}

// Empty reports whether the update changes nothing.
func (u PageUpdate) Empty() bool {
	return u.Slug == nil && u.Title == nil && u.Subtitle == nil && u.Body == nil &&
		u.HeroImage == nil && u.MetaDescription == nil && u.Published == nil && u.SortOrder == nil
}

// Photo is a gallery image offered as a print.
type Photo struct {
	ID            string
	Title         string
	Caption       string
	ImageURL      string
	ThumbURL      string
	PriceCents    int64
	SortOrder     int
	Featured      bool
	ImageSettings string // JSON object, empty when never set
	CreatedAt     time.Time
}

// OrderItem is one line of a checked-out cart.
type OrderItem struct {
	PhotoID    string `json:"photo_id"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

// Order is a submitted checkout.
type Order struct {
	ID         string
	Email      string
	Name       string
	Items      []OrderItem
	TotalCents int64
	Currency   string
	CreatedAt  time.Time
}

// SettingsStore persists one serialized value per settings category.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*SettingsRecord, error)
	UpsertSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]*SettingsRecord, error)
}

// PageStore persists content pages.
type PageStore interface {
	CreatePage(ctx context.Context, page *Page) error
	ListPages(ctx context.Context) ([]*Page, error)
	GetPage(ctx context.Context, id string) (*Page, error)
	GetPageBySlug(ctx context.Context, slug string) (*Page, error)
	UpdatePage(ctx context.Context, id string, update PageUpdate) error
}

// PhotoStore persists gallery photos and their per-photo image settings.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, photo *Photo) error
	ListPhotos(ctx context.Context) ([]*Photo, error)
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	GetPhotoImageSettings(ctx context.Context, id string) (string, error)
	UpdatePhotoImageSettings(ctx context.Context, id, value string) error
}

// OrderStore persists checkouts.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, limit int) ([]*Order, error)
}

// Store is everything the server needs from persistence.
type Store interface {
	SettingsStore
	PageStore
	PhotoStore
	OrderStore
	AdminStore
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
