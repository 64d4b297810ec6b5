// Package content imports seed files into a darkroom store.
//
// A seed is TOML with [[pages]], [[photos]] and [settings.<category>] tables;
// see testdata/site.toml. Pages are matched by slug and photos by id, so
// re-running a seed only adds what is missing. Settings tables are validated
// and merged exactly as a PUT to the settings API would be.
package content
