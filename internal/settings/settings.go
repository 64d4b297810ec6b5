// ABOUTME: Settings categories edited through the admin API and read by the public site
// ABOUTME: Defaults, update-body validation and the per-category update policy

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Category names a bucket of settings stored as one serialized value.
type Category string

const (
	Layout Category = "layout"
	Images Category = "images"
)

// Categories lists every known category in display order.
var Categories = []Category{Layout, Images}

// Parse maps a category name from a URL or CLI argument to a Category.
func Parse(name string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// ValidationError is a rejected update body. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrInvalidJSON is returned by ParseBody when the body is not JSON at all.
var ErrInvalidJSON = &ValidationError{Message: "Invalid JSON"}

// ErrNotObject is returned by Decode when a stored value is valid JSON but not an object.
var ErrNotObject = errors.New("stored value is not a JSON object")

// Defaults returns a fresh copy of the value served when nothing is stored.
func Defaults(c Category) map[string]any {
	if c == Layout {
		return DefaultLayout().Map()
	}
	return map[string]any{}
}

// Decode deserializes a stored value. Callers fall back to Defaults on error.
func Decode(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decoding stored settings: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// ParseBody parses and validates an update body for the category.
// Every failure is a *ValidationError.
func ParseBody(c Category, body []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, ErrInvalidJSON
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid %s settings", c)}
	}

	if c == Layout {
		if err := validateLayout(obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func validateLayout(obj map[string]any) error {
	if raw, ok := obj["gridColumns"]; ok {
		n, isNum := raw.(float64)
		if !isNum || n != math.Trunc(n) || n < MinGridColumns || n > MaxGridColumns {
			return &ValidationError{Message: "gridColumns must be an integer between 1 and 12"}
		}
	}
	if raw, ok := obj["colorScheme"]; ok {
		s, isStr := raw.(string)
		if !isStr || (s != ColorSchemeLight && s != ColorSchemeDark) {
			return &ValidationError{Message: "colorScheme must be 'light' or 'dark'"}
		}
	}
	return nil
}

// Merge overlays update on current, replacing top-level keys only.
// Neither input is modified.
func Merge(current, update map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(update))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// Apply returns the value to persist for an accepted update.
// Layout merges over current; images replaces it.
func Apply(c Category, current, update map[string]any) map[string]any {
	if c == Layout {
		return Merge(current, update)
	}
	return update
}

// Encode serializes a value for storage.
func Encode(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(b), nil
}
