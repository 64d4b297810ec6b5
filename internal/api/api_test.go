// ABOUTME: Tests for the JSON admin API using the in-memory store and a fake validator
// ABOUTME: Covers defaults, validation, merge and replace semantics, auth and the 500 boundary

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/store"
)

type fakeValidator struct {
	principal *auth.Principal
	err       error
	panicWith any
}

func (f *fakeValidator) Validate(r *http.Request) (*auth.Principal, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.principal, f.err
}

var (
	adminPrincipal  = &auth.Principal{ID: "u-admin", Username: "ansel", Role: store.RoleAdmin}
	editorPrincipal = &auth.Principal{ID: "u-editor", Username: "dorothea", Role: store.RoleEditor}
)

type fixture struct {
	mux       *http.ServeMux
	store     *store.MockStore
	validator *fakeValidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := store.NewMockStore()
	v := &fakeValidator{principal: adminPrincipal}

	a := New(Config{Settings: m, Pages: m, Photos: m, Validator: v})
	mux := http.NewServeMux()
	a.RegisterRoutes(mux, "")

	return &fixture{mux: mux, store: m, validator: v}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *fixture) stored(t *testing.T, key string) map[string]any {
	t.Helper()
	rec, err := f.store.GetSetting(context.Background(), key)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Value), &out))
	return out
}

func TestGetSettings_Unset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings/layout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	layout := decodeObject(t, rec)
	assert.Equal(t, true, layout["showHeader"])
	assert.Equal(t, true, layout["showFooter"])
	assert.Equal(t, float64(3), layout["gridColumns"])
	assert.Equal(t, "light", layout["colorScheme"])
	assert.Len(t, layout["navigationItems"], 4)
	assert.Equal(t, map[string]any{}, layout["componentStyles"])

	rec = f.do(t, http.MethodGet, "/api/settings/images", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{}, decodeObject(t, rec))
}

func TestGetSettings_CorruptFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	f.store.SetRawSetting("layout", "{{{")
	f.store.SetRawSetting("images", "[1,2,3]")

	rec := f.do(t, http.MethodGet, "/api/settings/layout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decodeObject(t, rec)["gridColumns"])

	rec = f.do(t, http.MethodGet, "/api/settings/images", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{}, decodeObject(t, rec))
}

func TestGetSettings_Stored(t *testing.T) {
	f := newFixture(t)
	f.store.SetRawSetting("images", `{"quality":90,"watermark":"corner"}`)

	rec := f.do(t, http.MethodGet, "/api/settings/images", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"quality": float64(90), "watermark": "corner"}, decodeObject(t, rec))
}

func TestPutSettings_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		category string
		body     string
		wantErr  string
	}{
		{"unparsable", "layout", `{"gridColumns":`, "Invalid JSON"},
		{"string body", "layout", `"dark"`, "Invalid layout settings"},
		{"array body", "layout", `[1,2]`, "Invalid layout settings"},
		{"null body", "layout", `null`, "Invalid layout settings"},
		{"images array", "images", `[]`, "Invalid images settings"},
		{"images null", "images", `null`, "Invalid images settings"},
		{"images number", "images", `42`, "Invalid images settings"},
		{"grid zero", "layout", `{"gridColumns":0}`, "gridColumns must be an integer between 1 and 12"},
		{"grid thirteen", "layout", `{"gridColumns":13}`, "gridColumns must be an integer between 1 and 12"},
		{"grid fraction", "layout", `{"gridColumns":2.5}`, "gridColumns must be an integer between 1 and 12"},
		{"grid string", "layout", `{"gridColumns":"4"}`, "gridColumns must be an integer between 1 and 12"},
		{"scheme blue", "layout", `{"colorScheme":"blue"}`, "colorScheme must be 'light' or 'dark'"},
		{"first failure wins", "layout", `{"colorScheme":"blue","gridColumns":0}`, "gridColumns must be an integer between 1 and 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPut, "/api/settings/"+tt.category, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decodeObject(t, rec)["error"])
			assert.Zero(t, f.store.SettingWrites)
		})
	}
}

func TestPutSettings_Accepted(t *testing.T) {
	for _, body := range []string{
		`{"gridColumns":1}`,
		`{"gridColumns":12}`,
		`{"gridColumns":4.0}`,
		`{"colorScheme":"light"}`,
		`{"colorScheme":"dark"}`,
		`{}`,
	} {
		f := newFixture(t)

		rec := f.do(t, http.MethodPut, "/api/settings/layout", body)

		assert.Equal(t, http.StatusOK, rec.Code, "body %s", body)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		assert.Equal(t, 1, f.store.SettingWrites)
	}
}

func TestPutLayout_ShallowMerge(t *testing.T) {
	f := newFixture(t)
	f.store.SetRawSetting("layout", `{"showHeader":false,"gridColumns":3,"colorScheme":"dark","componentStyles":{"header":"serif","footer":"mono"}}`)

	rec := f.do(t, http.MethodPut, "/api/settings/layout", `{"gridColumns":4,"componentStyles":{"grid":"tight"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := f.stored(t, "layout")
	assert.Equal(t, false, got["showHeader"])
	assert.Equal(t, "dark", got["colorScheme"])
	assert.Equal(t, float64(4), got["gridColumns"])
	assert.Equal(t, map[string]any{"grid": "tight"}, got["componentStyles"])
}

func TestPutLayout_MergesOverDefaultsWhenUnsetOrCorrupt(t *testing.T) {
	for _, seed := range []string{"", "not json"} {
		f := newFixture(t)
		if seed != "" {
			f.store.SetRawSetting("layout", seed)
		}

		rec := f.do(t, http.MethodPut, "/api/settings/layout", `{"colorScheme":"dark"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		got := f.stored(t, "layout")
		assert.Equal(t, "dark", got["colorScheme"])
		assert.Equal(t, float64(3), got["gridColumns"])
		assert.Equal(t, true, got["showFooter"])
	}
}

func TestPutImages_Replaces(t *testing.T) {
	f := newFixture(t)
	f.store.SetRawSetting("images", `{"quality":90,"format":"webp"}`)

	rec := f.do(t, http.MethodPut, "/api/settings/images", `{"lazy":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, map[string]any{"lazy": true}, f.stored(t, "images"))
}

func TestSettings_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.validator.principal = nil
	f.validator.err = auth.ErrNoSession

	for _, method := range []string{http.MethodGet, http.MethodPut} {
		for _, c := range []string{"layout", "images"} {
			rec := f.do(t, method, "/api/settings/"+c, `{}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", method, c)
			assert.Equal(t, "Unauthorized", decodeObject(t, rec)["error"])
		}
	}
	assert.Zero(t, f.store.SettingWrites)
}

func TestSettings_EditorAllowed(t *testing.T) {
	f := newFixture(t)
	f.validator.principal = editorPrincipal

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/settings/layout", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/settings/images", `{"a":1}`).Code)
}

func TestInternalErrors_AreGeneric(t *testing.T) {
	const secret = "sqlite: disk image is malformed at /var/lib/darkroom"

	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"failing store on read", func(f *fixture) { f.store.Err = errors.New(secret) }},
		{"panicking store", func(f *fixture) { f.store.Panic = secret }},
		{"failing validator", func(f *fixture) { f.validator.err = errors.New(secret) }},
		{"panicking validator", func(f *fixture) { f.validator.panicWith = secret }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, req := range []struct{ method, path, body string }{
				{http.MethodGet, "/api/settings/layout", ""},
				{http.MethodPut, "/api/settings/layout", `{"gridColumns":4}`},
				{http.MethodPut, "/api/settings/images", `{"a":1}`},
				{http.MethodGet, "/api/pages", ""},
				{http.MethodGet, "/api/photos/p1/image-settings", ""},
			} {
				f := newFixture(t)
				tt.setup(f)

				rec := f.do(t, req.method, req.path, req.body)

				assert.Equal(t, http.StatusInternalServerError, rec.Code, "%s %s", req.method, req.path)
				assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
				assert.NotContains(t, rec.Body.String(), "malformed")
			}
		})
	}
}

func TestRoute_NoSecondResponseAfterWrite(t *testing.T) {
	m := store.NewMockStore()
	a := New(Config{Settings: m, Pages: m, Photos: m, Validator: &fakeValidator{principal: adminPrincipal}})

	tests := []struct {
		name string
		fn   handlerFunc
	}{
		{"panic after write", func(w http.ResponseWriter, r *http.Request) error {
			writeJSON(w, http.StatusOK, successResponse)
			panic("late failure")
		}},
		{"error after write", func(w http.ResponseWriter, r *http.Request) error {
			writeJSON(w, http.StatusOK, successResponse)
			return errors.New("late failure")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := a.route("GET /late", anySession, tt.fn)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		})
	}
}

func TestRegisterRoutes_CustomPrefix(t *testing.T) {
	m := store.NewMockStore()
	a := New(Config{Settings: m, Pages: m, Photos: m, Validator: &fakeValidator{principal: adminPrincipal}})
	mux := http.NewServeMux()
	a.RegisterRoutes(mux, "/v1")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/settings/images", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings/images", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownCategory(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/settings/typography", "").Code)
}

func seedPage(t *testing.T, m *store.MockStore, id, slug, title string) {
	t.Helper()
	require.NoError(t, m.CreatePage(context.Background(), &store.Page{
		ID:        id,
		Slug:      slug,
		Title:     title,
		Body:      "# " + title,
		Published: true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}))
}

func TestListPages(t *testing.T) {
	f := newFixture(t)
	f.validator.principal = editorPrincipal
	seedPage(t, f.store, "p-about", "about", "About")
	seedPage(t, f.store, "p-home", "home", "Home")

	rec := f.do(t, http.MethodGet, "/api/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var pages []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "About", pages[0]["title"])
	assert.Equal(t, "2026-03-01T12:00:00Z", pages[0]["updatedAt"])
	assert.NotContains(t, pages[0], "content")
}

func TestListPages_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPage(t *testing.T) {
	f := newFixture(t)
	seedPage(t, f.store, "p-home", "home", "Home")

	rec := f.do(t, http.MethodGet, "/api/pages/p-home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodeObject(t, rec)
	assert.Equal(t, "p-home", page["id"])
	assert.Equal(t, "home", page["slug"])
	assert.Equal(t, "# Home", page["content"])
	assert.Equal(t, true, page["published"])
	assert.Contains(t, page, "heroImage")
	assert.Contains(t, page, "metaDescription")
	assert.Contains(t, page, "sortOrder")

	rec = f.do(t, http.MethodGet, "/api/pages/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Page not found", decodeObject(t, rec)["error"])
}

func TestPages_RequireAdmin(t *testing.T) {
	f := newFixture(t)
	f.validator.principal = editorPrincipal
	seedPage(t, f.store, "p-home", "home", "Home")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/pages/p-home", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPut, "/api/pages/p-home", `{"title":"X"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/photos/x/image-settings", "").Code)
}

func TestPutPage(t *testing.T) {
	f := newFixture(t)
	seedPage(t, f.store, "p-about", "about", "About")

	rec := f.do(t, http.MethodPut, "/api/pages/p-about",
		`{"id":"ignored","title":"About me","content":"Shooting film since 1998.","published":false,"sortOrder":2,"slug":"about-me"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	page, err := f.store.GetPage(context.Background(), "p-about")
	require.NoError(t, err)
	assert.Equal(t, "About me", page.Title)
	assert.Equal(t, "about-me", page.Slug)
	assert.Equal(t, "Shooting film since 1998.", page.Body)
	assert.False(t, page.Published)
	assert.Equal(t, 2, page.SortOrder)
}

func TestPutPage_Rejected(t *testing.T) {
	tests := []struct {
		body    string
		wantErr string
	}{
		{`{"title":`, "Invalid JSON"},
		{`["title"]`, "Invalid page data"},
		{`{"title":""}`, "title must be a non-empty string"},
		{`{"title":"   "}`, "title must be a non-empty string"},
		{`{"title":7}`, "title must be a non-empty string"},
		{`{"slug":"About Me"}`, "slug must be lowercase letters, digits and single hyphens"},
		{`{"slug":"about--me"}`, "slug must be lowercase letters, digits and single hyphens"},
		{`{"content":{"md":"x"}}`, "content must be a string"},
		{`{"published":"yes"}`, "published must be a boolean"},
		{`{"sortOrder":1.5}`, "sortOrder must be an integer"},
		{`{"slug":"home"}`, "slug is already used by another page"},
	}

	for _, tt := range tests {
		f := newFixture(t)
		seedPage(t, f.store, "p-about", "about", "About")
		seedPage(t, f.store, "p-home", "home", "Home")

		rec := f.do(t, http.MethodPut, "/api/pages/p-about", tt.body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", tt.body)
		assert.Equal(t, tt.wantErr, decodeObject(t, rec)["error"], "body %s", tt.body)

		page, err := f.store.GetPage(context.Background(), "p-about")
		require.NoError(t, err)
		assert.Equal(t, "About", page.Title)
		assert.Equal(t, "about", page.Slug)
	}
}

func TestPutPage_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/pages/nope", `{"title":"Hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageSettings(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreatePhoto(context.Background(), &store.Photo{ID: "ph-1", Title: "Dunes", CreatedAt: time.Now()}))

	rec := f.do(t, http.MethodGet, "/api/photos/ph-1/image-settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/photos/ph-1/image-settings", `{"crop":"square","brightness":1.1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/photos/ph-1/image-settings", `{"crop":"wide"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/photos/ph-1/image-settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"crop":"wide"}`, rec.Body.String())
}

func TestImageSettings_Rejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreatePhoto(context.Background(), &store.Photo{ID: "ph-1", ImageSettings: `{"crop":"square"}`}))

	for _, body := range []string{`null`, `[1]`, `"x"`, `{oops`} {
		rec := f.do(t, http.MethodPut, "/api/photos/ph-1/image-settings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}

	raw, err := f.store.GetPhotoImageSettings(context.Background(), "ph-1")
	require.NoError(t, err)
	assert.Equal(t, `{"crop":"square"}`, raw)
}

func TestImageSettings_UnknownPhoto(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/photos/ghost/image-settings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Photo not found", decodeObject(t, rec)["error"])

	rec = f.do(t, http.MethodPut, "/api/photos/ghost/image-settings", `{"crop":"wide"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageSettings_CorruptFallsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreatePhoto(context.Background(), &store.Photo{ID: "ph-1", ImageSettings: `oops`}))

	rec := f.do(t, http.MethodGet, "/api/photos/ph-1/image-settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}
