// Package cache persists extracted registry records on disk, one JSON file
// per identifier, with a freshness window. Read and write failures never
// escalate: a broken entry is a miss, a failed write is a logged no-op.
package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/models"
)

// Entry is the on-disk envelope around a record.
type Entry struct {
	ID       string                 `json:"id"`
	Record   *models.RegistryRecord `json:"record"`
	StoredAt time.Time              `json:"stored_at"`
}

// Store is a file-backed record cache. Concurrent readers and writers of
// distinct keys are safe (distinct files). Writers of the same key rely on
// the atomicity of rename; last rename wins.
type Store struct {
	dir string
	ttl time.Duration
}

// New creates the cache directory if needed and returns a Store.
func New(cfg config.CacheConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: cfg.Dir, ttl: cfg.TTL}, nil
}

// Get returns the cached record for id, or false when there is no entry,
// the entry is unreadable, or it is older than the freshness window.
func (s *Store) Get(id string) (*models.RegistryRecord, bool) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("cache entry unreadable, treating as miss", "id", id, "error", err)
		return nil, false
	}
	if e.Record == nil || time.Since(e.StoredAt) >= s.ttl {
		return nil, false
	}
	return e.Record, true
}

// Put stores the record for id, overwriting any existing entry. The entry is
// written to a temp file and renamed into place so readers never observe a
// partial write. Failures are logged, not returned.
func (s *Store) Put(id string, rec *models.RegistryRecord) {
	data, err := json.MarshalIndent(Entry{ID: id, Record: rec, StoredAt: time.Now()}, "", "  ")
	if err != nil {
		slog.Warn("cache write failed: marshal", "id", id, "error", err)
		return
	}

	tmp, err := os.CreateTemp(s.dir, id+"-*")
	if err != nil {
		slog.Warn("cache write failed: temp file", "id", id, "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		slog.Warn("cache write failed: write", "id", id, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("cache write failed: close", "id", id, "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		os.Remove(tmp.Name())
		slog.Warn("cache write failed: rename", "id", id, "error", err)
	}
}

// Delete removes the entry for id. Missing entries are not an error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Len counts the stored entries.
func (s *Store) Len() int {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0
	}
	return len(matches)
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
