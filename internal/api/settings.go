// ABOUTME: Settings category endpoints (GET and PUT /settings/{layout,images})
// ABOUTME: GET serves defaults for unset or corrupt values; PUT validates, merges or replaces, then persists

package api

import (
	"fmt"
	"net/http"

	"github.com/2389/darkroom/internal/settings"
)

func (a *API) handleGetSettings(c settings.Category) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		value, err := settings.Load(r.Context(), a.settings, c, a.logger)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, value)
		return nil
	}
}

// handlePutSettings persists an update. Concurrent layout updates are not
// isolated from each other; the last write wins.
func (a *API) handlePutSettings(c settings.Category) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		body, err := readBody(w, r)
		if err != nil {
			return err
		}

		update, err := settings.ParseBody(c, body)
		if err != nil {
			return err
		}

		var current map[string]any
		if c == settings.Layout {
			current, err = settings.Load(r.Context(), a.settings, c, a.logger)
			if err != nil {
				return err
			}
		}

		encoded, err := settings.Encode(settings.Apply(c, current, update))
		if err != nil {
			return err
		}
		if err := a.settings.UpsertSetting(r.Context(), string(c), encoded); err != nil {
			return fmt.Errorf("saving %s settings: %w", c, err)
		}

		a.logger.Info("settings updated", "category", string(c), "keys", len(update))
		writeJSON(w, http.StatusOK, successResponse)
		return nil
	}
}
