// ABOUTME: Tests for loading and applying TOML seed files
// ABOUTME: Applies the example seed to a tempdir SQLite store and checks idempotency

package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("testdata/site.toml")
	require.NoError(t, err)

	require.Len(t, seed.Pages, 3)
	assert.Equal(t, "home", seed.Pages[0].Slug)
	assert.Equal(t, "about.md", seed.Pages[1].BodyFile)
	require.Len(t, seed.Photos, 2)
	assert.Equal(t, int64(4500), seed.Photos[0].PriceCents)
	assert.Equal(t, "Wind ripples across a dune", seed.Photos[0].ImageSettings["alt"])
	assert.Contains(t, seed.Settings, "layout")
}

func TestLoadSeedRejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad toml", "[[pages]\n", "parsing seed file"},
		{"unknown key", "[[pages]]\nslug = \"a\"\ntitle = \"A\"\ncolour = \"red\"\n", "unknown key"},
		{"missing title", "[[pages]]\nslug = \"a\"\n", "title is required"},
		{"bad slug", "[[pages]]\nslug = \"Not A Slug\"\ntitle = \"A\"\n", "slug"},
		{"duplicate slug", "[[pages]]\nslug = \"a\"\ntitle = \"A\"\n[[pages]]\nslug = \"a\"\ntitle = \"B\"\n", "duplicate slug"},
		{"body and body_file", "[[pages]]\nslug = \"a\"\ntitle = \"A\"\nbody = \"x\"\nbody_file = \"x.md\"\n", "not both"},
		{"photo without image", "[[photos]]\ntitle = \"P\"\n", "image_url is required"},
		{"negative price", "[[photos]]\ntitle = \"P\"\nimage_url = \"/p.jpg\"\nprice_cents = -1\n", "must not be negative"},
		{"unknown settings category", "[settings.fonts]\nsize = 3\n", "unknown category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seed, err := LoadSeed("testdata/site.toml")
	require.NoError(t, err)

	report, err := seed.Apply(ctx, st, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{PagesCreated: 3, PhotosCreated: 2, Settings: []string{"layout", "images"}}, report)

	about, err := st.GetPageBySlug(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "I photograph slowly.\n", about.Body)
	assert.True(t, about.Published)

	drafts, err := st.GetPageBySlug(ctx, "workshops")
	require.NoError(t, err)
	assert.False(t, drafts.Published)

	dunes, err := st.GetPhoto(ctx, "dunes")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), dunes.PriceCents)
	assert.True(t, dunes.Featured)
	assert.JSONEq(t, `{"alt":"Wind ripples across a dune","objectPosition":"50% 30%"}`, dunes.ImageSettings)

	harbor, err := st.GetPhoto(ctx, "harbor")
	require.NoError(t, err)
	assert.Empty(t, harbor.ImageSettings)

	layout, err := settings.LoadLayout(ctx, st, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, layout.GridColumns)
	assert.Equal(t, settings.ColorSchemeDark, layout.ColorScheme)

	images, err := settings.Load(ctx, st, settings.Images, nil)
	require.NoError(t, err)
	assert.Equal(t, false, images["lazyLoad"])
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seed, err := LoadSeed("testdata/site.toml")
	require.NoError(t, err)

	_, err = seed.Apply(ctx, st, nil)
	require.NoError(t, err)
	report, err := seed.Apply(ctx, st, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.PagesCreated)
	assert.Equal(t, 3, report.PagesSkipped)
	assert.Equal(t, 2, report.PhotosSkipped)

	pages, err := st.ListPages(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestApplyMergesLayout(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.UpsertSetting(ctx, "layout", `{"gridColumns":2,"showFooter":false}`))

	seed, err := LoadSeed(writeSeed(t, "[settings.layout]\ngridColumns = 6\n"))
	require.NoError(t, err)
	_, err = seed.Apply(ctx, st, nil)
	require.NoError(t, err)

	rec, err := st.GetSetting(ctx, "layout")
	require.NoError(t, err)
	assert.JSONEq(t, `{"gridColumns":6,"showFooter":false}`, rec.Value)
}

func TestApplyRejectsInvalidSettings(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seed, err := LoadSeed(writeSeed(t, "[settings.layout]\ngridColumns = 40\n"))
	require.NoError(t, err)

	_, err = seed.Apply(ctx, st, nil)
	require.Error(t, err)
	var verr *settings.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = st.GetSetting(ctx, "layout")
	assert.ErrorIs(t, err, store.ErrSettingNotFound)
}

func TestApplyMissingBodyFile(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, "[[pages]]\nslug = \"a\"\ntitle = \"A\"\nbody_file = \"nope.md\"\n"))
	require.NoError(t, err)

	_, err = seed.Apply(context.Background(), newTestStore(t), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReportString(t *testing.T) {
	r := Report{PagesCreated: 1, PagesSkipped: 2, PhotosCreated: 3, Settings: []string{"layout"}}
	assert.Equal(t, "pages: 1 created, 2 skipped; photos: 3 created, 0 skipped; settings: layout", r.String())
}
