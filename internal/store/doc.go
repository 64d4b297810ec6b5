// Package store provides persistent storage for darkroom using SQLite.
//
// # Architecture
//
// The package is interface-driven:
//
//   - SettingsStore: one serialized value per settings category ("layout", "images")
//   - PageStore: editable content pages
//   - PhotoStore: gallery photos and their per-photo image settings
//   - OrderStore: submitted checkouts
//   - AdminStore: admin users, browser sessions and passkey credentials
//
// SQLiteStore implements all of them on one database. MockStore implements
// the content interfaces in memory for handler tests and can inject errors
// or panics.
//
// # Settings records
//
// A settings record is created by the first write for a category and
// overwritten by every later write. Records are never versioned or deleted.
// The store does not interpret values; decoding, defaults and merging live
// in package settings.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 text in UTC.
//
// # Error Handling
//
// Lookups return sentinel errors (ErrSettingNotFound, ErrPageNotFound,
// ErrPhotoNotFound, ErrOrderNotFound, ErrAdminUserNotFound,
// ErrAdminSessionNotFound, ErrNotFound). Everything else is wrapped with
// context and should be treated as an internal failure.
//
// # Migrations
//
// Columns added after the first schema (admin_users.role,
// photos.image_settings) are applied on open after checking
// pragma_table_info, so opening an existing database is idempotent.
package store
