package dblp

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed store of raw DBLP responses keyed by query
// string. It lets interrupted runs resume without repeating lookups that
// already succeeded, and keeps re-runs polite toward the API.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database at the given path,
// creating parent directories as needed.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createCacheSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func createCacheSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS lookups (
			query TEXT PRIMARY KEY,
			response BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached raw response for a query, if present.
func (c *Cache) Get(query string) ([]byte, bool, error) {
	var body []byte
	err := c.db.QueryRow(`SELECT response FROM lookups WHERE query = ?`, query).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}
	return body, true, nil
}

// Put stores the raw response for a query, replacing any previous value.
func (c *Cache) Put(query string, body []byte) error {
	_, err := c.db.Exec(
		`INSERT INTO lookups (query, response) VALUES (?, ?)
		 ON CONFLICT(query) DO UPDATE SET response = excluded.response`,
		query, body,
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Count returns the number of cached queries.
func (c *Cache) Count() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM lookups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}
