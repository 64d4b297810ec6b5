// ABOUTME: Typed layout settings and their compile-time defaults
// ABOUTME: LayoutFrom gives templates a tolerant typed view of a stored layout object

package settings

import "encoding/json"

const (
	MinGridColumns = 1
	MaxGridColumns = 12

	ColorSchemeLight = "light"
	ColorSchemeDark  = "dark"
)

// NavigationItem is one entry of the site navigation bar.
type NavigationItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// LayoutSettings controls site chrome and the gallery grid.
type LayoutSettings struct {
	ShowHeader      bool             `json:"showHeader"`
	ShowFooter      bool             `json:"showFooter"`
	GridColumns     int              `json:"gridColumns"`
	ColorScheme     string           `json:"colorScheme"`
	NavigationItems []NavigationItem `json:"navigationItems"`
	ComponentStyles map[string]any   `json:"componentStyles"`
}

// DefaultLayout is served until an admin saves a layout.
func DefaultLayout() LayoutSettings {
	return LayoutSettings{
		ShowHeader:  true,
		ShowFooter:  true,
		GridColumns: 3,
		ColorScheme: ColorSchemeLight,
		NavigationItems: []NavigationItem{
			{Label: "Home", Href: "/"},
			{Label: "Gallery", Href: "/gallery"},
			{Label: "About", Href: "/about"},
			{Label: "Cart", Href: "/cart"},
		},
		ComponentStyles: map[string]any{},
	}
}

// Map converts the layout to the generic object form used by the API.
func (l LayoutSettings) Map() map[string]any {
	b, err := json.Marshal(l)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// LayoutFrom builds a typed layout from a stored object. Keys that are
// missing or of the wrong type keep their default.
func LayoutFrom(m map[string]any) LayoutSettings {
	l := DefaultLayout()
	b, err := json.Marshal(m)
	if err != nil {
		return l
	}
	// A type mismatch skips only the offending field.
	_ = json.Unmarshal(b, &l)

	def := DefaultLayout()
	if l.GridColumns < MinGridColumns || l.GridColumns > MaxGridColumns {
		l.GridColumns = def.GridColumns
	}
	if l.ColorScheme != ColorSchemeLight && l.ColorScheme != ColorSchemeDark {
		l.ColorScheme = def.ColorScheme
	}
	if l.ComponentStyles == nil {
		l.ComponentStyles = map[string]any{}
	}
	return l
}

// Style returns the string value of a component style key, or "".
func (l LayoutSettings) Style(key string) string {
	s, _ := l.ComponentStyles[key].(string)
	return s
}
