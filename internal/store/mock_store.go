// ABOUTME: In-memory implementation of the content stores for testing
// ABOUTME: Counts writes and can inject failures so handler error paths are reachable

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory SettingsStore, PageStore and PhotoStore for tests.
type MockStore struct {
	mu       sync.RWMutex
	settings map[string]*SettingsRecord
	pages    map[string]*Page
	photos   map[string]*Photo

	// Err, when set, is returned by every method.
	Err error
	// Panic, when set, makes every method panic with this value.
	Panic any

	// SettingWrites counts UpsertSetting calls that reached the store.
	SettingWrites int
}

var (
	_ SettingsStore = (*MockStore)(nil)
	_ PageStore     = (*MockStore)(nil)
	_ PhotoStore    = (*MockStore)(nil)
)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings: make(map[string]*SettingsRecord),
		pages:    make(map[string]*Page),
		photos:   make(map[string]*Photo),
	}
}

func (m *MockStore) fail() error {
	if m.Panic != nil {
		panic(m.Panic)
	}
	return m.Err
}

// GetSetting returns the stored record for key.
func (m *MockStore) GetSetting(ctx context.Context, key string) (*SettingsRecord, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.settings[key]
	if !ok {
		return nil, ErrSettingNotFound
	}
	cp := *rec
	return &cp, nil
}

// UpsertSetting stores value under key.
func (m *MockStore) UpsertSetting(ctx context.Context, key, value string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SettingWrites++
	m.settings[key] = &SettingsRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

// ListSettings returns all records ordered by key.
func (m *MockStore) ListSettings(ctx context.Context) ([]*SettingsRecord, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*SettingsRecord, 0, len(m.settings))
	for _, rec := range m.settings {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SetRawSetting stores a value without counting it as a write.
func (m *MockStore) SetRawSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = &SettingsRecord{Key: key, Value: value, UpdatedAt: time.Now()}
}

// CreatePage stores a page.
func (m *MockStore) CreatePage(ctx context.Context, page *Page) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pages {
		if p.Slug == page.Slug {
			return ErrSlugExists
		}
	}
	cp := *page
	m.pages[cp.ID] = &cp
	return nil
}

// ListPages returns pages ordered by sort order then title.
func (m *MockStore) ListPages(ctx context.Context) ([]*Page, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// GetPage retrieves a page by ID.
func (m *MockStore) GetPage(ctx context.Context, id string) (*Page, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[id]
	if !ok {
		return nil, ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

// GetPageBySlug retrieves a page by slug.
func (m *MockStore) GetPageBySlug(ctx context.Context, slug string) (*Page, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.pages {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPageNotFound
}

// UpdatePage applies the non-nil fields of update.
func (m *MockStore) UpdatePage(ctx context.Context, id string, update PageUpdate) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[id]
	if !ok {
		return ErrPageNotFound
	}
	if update.Slug != nil {
		for otherID, other := range m.pages {
			if otherID != id && other.Slug == *update.Slug {
				return ErrSlugExists
			}
		}
		p.Slug = *update.Slug
	}
	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Subtitle != nil {
		p.Subtitle = *update.Subtitle
	}
	if update.Body != nil {
		p.Body = *update.Body
	}
	if update.HeroImage != nil {
		p.HeroImage = *update.HeroImage
	}
	if update.MetaDescription != nil {
		p.MetaDescription = *update.MetaDescription
	}
	if update.Published != nil {
		p.Published = *update.Published
	}
	if update.SortOrder != nil {
		p.SortOrder = *update.SortOrder
	}
	p.UpdatedAt = time.Now()
	return nil
}

// CreatePhoto stores a photo.
func (m *MockStore) CreatePhoto(ctx context.Context, photo *Photo) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *photo
	m.photos[cp.ID] = &cp
	return nil
}

// ListPhotos returns photos ordered by sort order then creation time.
func (m *MockStore) ListPhotos(ctx context.Context) ([]*Photo, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Photo, 0, len(m.photos))
	for _, p := range m.photos {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetPhoto retrieves a photo by ID.
func (m *MockStore) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.photos[id]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	cp := *p
	return &cp, nil
}

// GetPhotoImageSettings returns the raw image settings of a photo.
func (m *MockStore) GetPhotoImageSettings(ctx context.Context, id string) (string, error) {
	p, err := m.GetPhoto(ctx, id)
	if err != nil {
		return "", err
	}
	return p.ImageSettings, nil
}

// UpdatePhotoImageSettings replaces the image settings of a photo.
func (m *MockStore) UpdatePhotoImageSettings(ctx context.Context, id, value string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return ErrPhotoNotFound
	}
	p.ImageSettings = value
	return nil
}
