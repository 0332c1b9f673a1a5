package catalog

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/waves-audio/engine/internal/engine"
)

// Cache persists a small decrypt-key/availability record per file id. The
// loader writes both after a successful load and reads a cached key only to
// decide whether a failed open is retried once; a re-Load still fetches the
// key from the source every time. Grounded on the
// teacher's internal/state.Manager: plain database/sql over modernc.org/sqlite,
// schema created idempotently on Open.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the sqlite database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS track_cache (
			track_id    TEXT PRIMARY KEY,
			available   INTEGER NOT NULL,
			cached_at   INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS key_cache (
			file_id     TEXT PRIMARY KEY,
			decrypt_key BLOB NOT NULL,
			cached_at   INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// PutAvailability records whether a track resolved as available.
func (c *Cache) PutAvailability(id engine.TrackID, available bool) error {
	_, err := c.db.Exec(`
		INSERT INTO track_cache (track_id, available, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET available = excluded.available, cached_at = excluded.cached_at
	`, id.String(), boolToInt(available), time.Now().Unix())
	return err
}

// Availability reports a cached availability decision, if any.
func (c *Cache) Availability(id engine.TrackID) (available bool, ok bool, err error) {
	var v int
	err = c.db.QueryRow(`SELECT available FROM track_cache WHERE track_id = ?`, id.String()).Scan(&v)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v != 0, true, nil
}

// PutKey records a file id's decrypt key.
func (c *Cache) PutKey(fileID string, key []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO key_cache (file_id, decrypt_key, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET decrypt_key = excluded.decrypt_key, cached_at = excluded.cached_at
	`, fileID, key, time.Now().Unix())
	return err
}

// Key returns a cached decrypt key, if any.
func (c *Cache) Key(fileID string) ([]byte, bool, error) {
	var key []byte
	err := c.db.QueryRow(`SELECT decrypt_key FROM key_cache WHERE file_id = ?`, fileID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// Evict drops a file id's cached key, used by the loader's retry-once policy
// (spec.md §4.2: "if step 9 fails and the underlying file was cached, evict
// the cached file and restart from step 6 once").
func (c *Cache) Evict(fileID string) error {
	_, err := c.db.Exec(`DELETE FROM key_cache WHERE file_id = ?`, fileID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
