// ABOUTME: Page endpoints: list summaries, fetch one page and apply partial updates
// ABOUTME: Pages are exposed with camelCase aliases; the Markdown body is "content"

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/2389/darkroom/internal/auth"
	"github.com/2389/darkroom/internal/store"
)

// PageSummary is a page as listed by GET /pages.
type PageSummary struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	HeroImage       string `json:"heroImage"`
	MetaDescription string `json:"metaDescription"`
	Published       bool   `json:"published"`
	SortOrder       int    `json:"sortOrder"`
	UpdatedAt       string `json:"updatedAt"`
}

// PageDetail is a page as returned by GET /pages/{id}.
type PageDetail struct {
	PageSummary
	Content string `json:"content"`
}

func summarize(p *store.Page) PageSummary {
	return PageSummary{
		ID:              p.ID,
		Slug:            p.Slug,
		Title:           p.Title,
		Subtitle:        p.Subtitle,
		HeroImage:       p.HeroImage,
		MetaDescription: p.MetaDescription,
		Published:       p.Published,
		SortOrder:       p.SortOrder,
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *API) handleListPages(w http.ResponseWriter, r *http.Request) error {
	pages, err := a.pages.ListPages(r.Context())
	if err != nil {
		return fmt.Errorf("listing pages: %w", err)
	}

	out := make([]PageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, summarize(p))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (a *API) handleGetPage(w http.ResponseWriter, r *http.Request) error {
	page, err := a.pages.GetPage(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrPageNotFound) {
		return notFound("Page not found")
	}
	if err != nil {
		return fmt.Errorf("getting page: %w", err)
	}

	writeJSON(w, http.StatusOK, PageDetail{PageSummary: summarize(page), Content: page.Body})
	return nil
}

func (a *API) handlePutPage(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		return badRequest("Page id is required")
	}

	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	update, err := parsePageUpdate(body)
	if err != nil {
		return err
	}

	err = a.pages.UpdatePage(r.Context(), id, update)
	switch {
	case errors.Is(err, store.ErrPageNotFound):
		return notFound("Page not found")
	case errors.Is(err, store.ErrSlugExists):
		return badRequest("slug is already used by another page")
	case err != nil:
		return fmt.Errorf("updating page: %w", err)
	}

	a.logger.Info("page updated", "id", id, "by", principalID(r))
	writeJSON(w, http.StatusOK, successResponse)
	return nil
}

// parsePageUpdate validates a PUT /pages/{id} body. Fields are checked in a
// fixed order and the first failure is returned. id, updatedAt and unknown
// keys are ignored.
func parsePageUpdate(body []byte) (store.PageUpdate, error) {
	var update store.PageUpdate

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return update, badRequest("Invalid JSON")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return update, badRequest("Invalid page data")
	}

	if raw, ok := obj["title"]; ok {
		s, isStr := raw.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			return update, badRequest("title must be a non-empty string")
		}
		update.Title = &s
	}
	if raw, ok := obj["slug"]; ok {
		s, isStr := raw.(string)
		if !isStr || !store.ValidSlug(s) {
			return update, badRequest("slug must be lowercase letters, digits and single hyphens")
		}
		update.Slug = &s
	}

	strFields := []struct {
		key string
		dst **string
	}{
		{"subtitle", &update.Subtitle},
		{"content", &update.Body},
		{"heroImage", &update.HeroImage},
		{"metaDescription", &update.MetaDescription},
	}
	for _, f := range strFields {
		raw, ok := obj[f.key]
		if !ok {
			continue
		}
		s, isStr := raw.(string)
		if !isStr {
			return update, badRequest(f.key + " must be a string")
		}
		*f.dst = &s
	}

	if raw, ok := obj["published"]; ok {
		b, isBool := raw.(bool)
		if !isBool {
			return update, badRequest("published must be a boolean")
		}
		update.Published = &b
	}
	if raw, ok := obj["sortOrder"]; ok {
		n, isNum := raw.(float64)
		if !isNum || n != float64(int(n)) {
			return update, badRequest("sortOrder must be an integer")
		}
		order := int(n)
		update.SortOrder = &order
	}

	return update, nil
}

func principalID(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
