package license

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// cacheTTL is how long a fetched response stays fresh.
const cacheTTL = 24 * time.Hour

// Cache is a read-through HTTP response cache backed by SQLite. Responses
// are keyed by a hash of their URL and expire after a day.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS http_cache (
	key        INTEGER PRIMARY KEY,
	url        TEXT NOT NULL,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);`

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, path, err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

func cacheKey(url string) int64 {
	return int64(murmur3.Sum64([]byte(url)))
}

// Get returns the cached body for url if present and fresh.
func (c *Cache) Get(url string) ([]byte, bool, error) {
	var (
		body    []byte
		fetched int64
	)
	err := c.db.QueryRow(
		"SELECT body, fetched_at FROM http_cache WHERE key = ?", cacheKey(url),
	).Scan(&body, &fetched)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	if c.now().Sub(time.Unix(fetched, 0)) > cacheTTL {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores the body for url, replacing any previous entry.
func (c *Cache) Put(url string, body []byte) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO http_cache (key, url, body, fetched_at) VALUES (?, ?, ?, ?)",
		cacheKey(url), url, body, c.now().Unix(),
	)
	if err != nil {
		return fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	return nil
}

// Remove drops the entry for url.
func (c *Cache) Remove(url string) error {
	_, err := c.db.Exec("DELETE FROM http_cache WHERE key = ?", cacheKey(url))
	return err
}

// RemoveAll empties the cache.
func (c *Cache) RemoveAll() error {
	_, err := c.db.Exec("DELETE FROM http_cache")
	return err
}
