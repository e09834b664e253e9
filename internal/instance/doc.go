// Package instance persists the accessor instances a host runs.
//
// Records live in the accessor_instances SQLite table. The Registry caches
// them in memory and seeds the table from config.yaml on first start: a
// record already present is left alone, so edits made through the API
// survive restarts.
package instance
