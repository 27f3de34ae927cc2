// Package sqlite implements the query result cache on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"solarium/internal/repository"
)

// Cache implements repository.QueryCache using SQLite.
type Cache struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

var _ repository.QueryCache = (*Cache)(nil)

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	cache := &Cache{db: db, now: time.Now}
	if err := cache.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return cache, nil
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_cache (
		fingerprint TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached payload for the fingerprint when it is younger than
// maxAge.
func (c *Cache) Get(ctx context.Context, fingerprint string, maxAge time.Duration) ([]byte, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM query_cache WHERE fingerprint = ?`, fingerprint)

	var payload []byte
	var createdAt int64
	switch err := row.Scan(&payload, &createdAt); err {
	case nil:
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("read cache: %w", err)
	}

	if c.now().Sub(time.Unix(createdAt, 0)) > maxAge {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores or refreshes the payload for a fingerprint.
func (c *Cache) Put(ctx context.Context, fingerprint string, payload []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO query_cache (fingerprint, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`, fingerprint, payload, c.now().Unix())
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
