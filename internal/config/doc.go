// Package config handles configuration loading for darkroom.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the DARKROOM_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. $XDG_CONFIG_HOME/darkroom/darkroom.yaml, or ~/.config/darkroom/darkroom.yaml
//
// `darkroom init` and `darkroom bootstrap` write a starter file from [Template].
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}. Unset
// variables expand to the empty string:
//
//	auth:
//	  jwt_secret: "${DARKROOM_JWT_SECRET}"
//
// # Sections
//
//	server:
//	  http_addr: ":8080"            # required unless tailscale.enabled
//	  base_url: "https://photos.example.com"
//	  api_prefix: "/api"            # default
//
//	database:
//	  path: "./darkroom.db"         # required
//
//	auth:
//	  jwt_secret: "..."             # at least 32 bytes; empty disables bearer tokens
//	  session_duration: "168h"      # default
//
//	site:
//	  title: "darkroom"
//	  tagline: ""
//	  currency: "USD"               # ISO 4217
//	  dev_mode: false               # mounts /__inspector
//
//	tailscale:
//	  enabled: false
//	  hostname: "darkroom"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""
//	  ephemeral: false
//	  https: false
//	  funnel: false                 # public, implies https
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//
//	logging:
//	  level: "info"                 # debug, info, warn, error
//	  format: "text"                # text or json
//
// Durations use time.ParseDuration syntax. Validate reports the first problem
// it finds.
package config
