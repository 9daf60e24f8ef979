package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
)

// Store persists resolved artwork: metadata rows in SQLite, image bytes
// as files in the cache directory. The entry count is bounded; the
// oldest entries are evicted first.
type Store struct {
	db         *DB
	dir        string
	maxEntries int
}

// NewStore creates an artwork store backed by db, writing image files
// under dir. maxEntries bounds the cache size.
func NewStore(db *DB, dir string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = 25
	}
	return &Store{
		db:         db,
		dir:        dir,
		maxEntries: maxEntries,
	}
}

// Get returns the cached artwork for key, or false on a miss.
// A row whose file has disappeared counts as a miss and is dropped.
func (s *Store) Get(key string) (*artwork.Resolved, bool) {
	db := s.db.DB()
	if db == nil || key == "" {
		return nil, false
	}

	var (
		source, filePath       string
		url, mime, resolvedStr sql.NullString
	)
	err := db.QueryRow(`
		SELECT source, url, file_path, mime_type, resolved_at
		FROM artwork WHERE key = ?
	`, key).Scan(&source, &url, &filePath, &mime, &resolvedStr)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Artwork cache lookup failed")
		return nil, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Debug().Str("key", key).Str("path", filePath).Msg("Cached artwork file missing, dropping entry")
		s.delete(key, filePath)
		return nil, false
	}

	art := &artwork.Resolved{
		Source:   source,
		URL:      url.String,
		Data:     data,
		MimeType: mime.String,
	}
	if resolvedStr.Valid {
		art.ResolvedAt, _ = time.Parse(time.RFC3339, resolvedStr.String)
	}
	return art, true
}

// Put stores artwork under key and evicts the oldest entries beyond
// the size bound.
func (s *Store) Put(key string, art *artwork.Resolved) error {
	db := s.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}
	if key == "" || art == nil || len(art.Data) == 0 {
		return fmt.Errorf("nothing to cache")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	filePath := filepath.Join(s.dir, key+artwork.ExtensionForMime(art.MimeType))
	if err := os.WriteFile(filePath, art.Data, 0644); err != nil {
		return fmt.Errorf("failed to write artwork file: %w", err)
	}

	resolvedAt := art.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO artwork (key, source, url, file_path, mime_type, file_size, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source = ?, url = ?, file_path = ?, mime_type = ?, file_size = ?, resolved_at = ?
	`,
		key, art.Source, art.URL, filePath, art.MimeType, len(art.Data), resolvedAt.Format(time.RFC3339),
		art.Source, art.URL, filePath, art.MimeType, len(art.Data), resolvedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save artwork metadata: %w", err)
	}

	log.Debug().
		Str("key", key).
		Str("source", art.Source).
		Int("size", len(art.Data)).
		Msg("Cached artwork")

	s.prune()
	return nil
}

// Clear removes every cache entry and its file.
func (s *Store) Clear() error {
	db := s.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	rows, err := db.Query("SELECT key, file_path FROM artwork")
	if err != nil {
		return err
	}
	type entry struct{ key, path string }
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.path); err == nil {
			entries = append(entries, e)
		}
	}
	rows.Close()

	for _, e := range entries {
		s.delete(e.key, e.path)
	}

	log.Info().Int("entries", len(entries)).Msg("Artwork cache cleared")
	return nil
}

// Count returns the number of cached entries.
func (s *Store) Count() (int, error) {
	db := s.db.DB()
	if db == nil {
		return 0, fmt.Errorf("database not open")
	}
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM artwork").Scan(&n)
	return n, err
}

// prune evicts the oldest entries beyond maxEntries.
func (s *Store) prune() {
	db := s.db.DB()
	if db == nil {
		return
	}

	rows, err := db.Query(`
		SELECT key, file_path FROM artwork
		ORDER BY resolved_at DESC
		LIMIT -1 OFFSET ?
	`, s.maxEntries)
	if err != nil {
		log.Warn().Err(err).Msg("Artwork cache prune query failed")
		return
	}
	type entry struct{ key, path string }
	var victims []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.path); err == nil {
			victims = append(victims, e)
		}
	}
	rows.Close()

	for _, v := range victims {
		s.delete(v.key, v.path)
		log.Debug().Str("key", v.key).Msg("Evicted artwork cache entry")
	}
}

func (s *Store) delete(key, filePath string) {
	db := s.db.DB()
	if db == nil {
		return
	}
	if _, err := db.Exec("DELETE FROM artwork WHERE key = ?", key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete artwork cache row")
	}
	if filePath != "" {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", filePath).Msg("Failed to delete artwork cache file")
		}
	}
}
