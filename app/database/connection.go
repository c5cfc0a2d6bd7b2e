package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store holds the three collection stores. Each collection persists as an
// independent sqlite file under the data directory, mirroring the layout of
// one on-disk store per collection. The directory and the backing files are
// created on first run.
type Store struct {
	Feeds      *sql.DB
	Categories *sql.DB
	Articles   *sql.DB
}

// Open creates the data directory if needed, opens the three collection
// stores and applies their migrations. Migrations create the unique indexes
// (feeds.xmlurl, articles.guid, categories.title) before any insert can run.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{}

	collections := []struct {
		file string
		db   **sql.DB
	}{
		{"feeds.db", &store.Feeds},
		{"categories.db", &store.Categories},
		{"articles.db", &store.Articles},
	}

	for _, c := range collections {
		db, err := openCollection(filepath.Join(dir, c.file))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open collection %s: %w", c.file, err)
		}
		if err := migrateCollection(db, c.file); err != nil {
			db.Close()
			store.Close()
			return nil, fmt.Errorf("failed to migrate collection %s: %w", c.file, err)
		}
		*c.db = db
	}

	return store, nil
}

func openCollection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// Each collection store is shared between ingestion workers and the API,
	// WAL keeps readers from blocking behind writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Close closes all collection stores, returning the first error encountered.
func (s *Store) Close() error {
	var firstErr error
	for _, db := range []*sql.DB{s.Feeds, s.Categories, s.Articles} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
