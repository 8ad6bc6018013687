// Package migrations contains all database migration files.
// Each migration file uses init() to call migration.Register().
// Imported by cmd/driftmarket/main.go so every migration is registered
// at CLI startup.
package migrations
