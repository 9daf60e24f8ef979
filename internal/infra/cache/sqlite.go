// Package cache provides a SQLite-backed store for resolved artwork.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBName is the database file name inside the cache directory.
	DefaultDBName = "artwork.db"
)

// DB represents the SQLite cache database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new cache database instance.
func NewDB(path string) *DB {
	return &DB{
		path: path,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	// Initialize schema
	if err := d.initSchema(); err != nil {
		d.db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Artwork cache database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// initSchema initializes the database schema.
func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		// Fresh database, create all tables
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating cache schema")
		// Add migration logic here when schema changes
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

// createSchema creates all database tables.
func (d *DB) createSchema() error {
	schema := `
	-- Resolved artwork metadata; image bytes live on disk next to the db
	CREATE TABLE IF NOT EXISTS artwork (
		key TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		url TEXT,
		file_path TEXT NOT NULL,
		mime_type TEXT,
		file_size INTEGER,
		resolved_at TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Cache metadata
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artwork_resolved ON artwork(resolved_at);
	`

	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Artwork cache schema created")
	return nil
}

// getSchemaVersion returns the current schema version.
func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// setMeta sets a metadata value.
func (d *DB) setMeta(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, time.Now().Format(time.RFC3339), value, time.Now().Format(time.RFC3339))
	return err
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer the Store methods.
func (d *DB) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}
