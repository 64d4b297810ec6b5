// ABOUTME: Reads a settings category from storage with defaulting
// ABOUTME: Missing values yield defaults and corrupt values are logged and replaced by defaults

package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/darkroom/internal/store"
)

// Source is the read side of the settings store.
type Source interface {
	GetSetting(ctx context.Context, key string) (*store.SettingsRecord, error)
}

// Load returns the current value of a category. Only store failures are
// returned as errors; corruption is logged and downgraded to the default.
func Load(ctx context.Context, src Source, c Category, logger *slog.Logger) (map[string]any, error) {
	rec, err := src.GetSetting(ctx, string(c))
	if errors.Is(err, store.ErrSettingNotFound) {
		return Defaults(c), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s settings: %w", c, err)
	}

	value, err := Decode(rec.Value)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("stored settings unreadable, using defaults", "category", string(c), "error", err)
		return Defaults(c), nil
	}
	return value, nil
}

// LoadLayout is Load for the layout category, typed for rendering.
func LoadLayout(ctx context.Context, src Source, logger *slog.Logger) (LayoutSettings, error) {
	m, err := Load(ctx, src, Layout, logger)
	if err != nil {
		return DefaultLayout(), err
	}
	return LayoutFrom(m), nil
}
