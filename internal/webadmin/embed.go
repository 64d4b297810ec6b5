// ABOUTME: Embeds HTML templates and the admin script into the binary using go:embed
// ABOUTME: Provides templateFS and staticFS for loading them at runtime

package webadmin

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS
