// ABOUTME: Per-photo image settings endpoints
// ABOUTME: Values follow images-category rules: any JSON object, replaced wholesale on PUT

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/darkroom/internal/settings"
	"github.com/2389/darkroom/internal/store"
)

func (a *API) handleGetImageSettings(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	raw, err := a.photos.GetPhotoImageSettings(r.Context(), id)
	if errors.Is(err, store.ErrPhotoNotFound) {
		return notFound("Photo not found")
	}
	if err != nil {
		return fmt.Errorf("getting image settings: %w", err)
	}

	value := settings.Defaults(settings.Images)
	if raw != "" {
		decoded, err := settings.Decode(raw)
		if err != nil {
			a.logger.Warn("stored image settings unreadable, using defaults", "photo", id, "error", err)
		} else {
			value = decoded
		}
	}

	writeJSON(w, http.StatusOK, value)
	return nil
}

func (a *API) handlePutImageSettings(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")

	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	update, err := settings.ParseBody(settings.Images, body)
	if err != nil {
		return err
	}
	encoded, err := settings.Encode(update)
	if err != nil {
		return err
	}

	err = a.photos.UpdatePhotoImageSettings(r.Context(), id, encoded)
	if errors.Is(err, store.ErrPhotoNotFound) {
		return notFound("Photo not found")
	}
	if err != nil {
		return fmt.Errorf("saving image settings: %w", err)
	}

	a.logger.Info("image settings updated", "photo", id, "by", principalID(r))
	writeJSON(w, http.StatusOK, successResponse)
	return nil
}
