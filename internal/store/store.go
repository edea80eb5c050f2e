// Package store provides a thin bbolt wrapper for nimbus's local data.
//
// The store persists user preferences only. Weather snapshots are cached in
// memory for the life of the process and never written here.
//
// Buckets:
//
//	preferences  string settings such as lastSelectedLocation
//	_meta        internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

var (
	bucketPreferences = []byte("preferences")
	bucketInternal    = []byte("_meta")
)

// Store wraps a bbolt database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPreferences, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(strconv.Itoa(schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(s.now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Preferences ──────────────────────────────────────────────────────────────

// Preference is one stored setting.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the value stored under key.
// Returns (value, true, nil) if found, ("", false, nil) if not.
func (s *Store) Get(key string) (string, bool, error) {
	var p Preference
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPreferences).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return "", false, fmt.Errorf("reading preference %s: %w", key, err)
	}
	return p.Value, found, nil
}

// Set stores value under key, stamping UpdatedAt.
func (s *Store) Set(key, value string) error {
	b, err := json.Marshal(Preference{Key: key, Value: value, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding preference: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPreferences).Put([]byte(key), b)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPreferences).Delete([]byte(key))
	})
}

// List returns every stored preference, sorted by key.
func (s *Store) List() ([]Preference, error) {
	var prefs []Preference
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPreferences).ForEach(func(k, v []byte) error {
			var p Preference
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decoding preference %s: %w", k, err)
			}
			p.Key = string(k)
			prefs = append(prefs, p)
			return nil
		})
	})
	return prefs, err
}

// Clear deletes every stored preference.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPreferences); err != nil {
			return fmt.Errorf("clearing preferences: %w", err)
		}
		_, err := tx.CreateBucket(bucketPreferences)
		return err
	})
}

// ─── Stats ────────────────────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Info describes the database itself.
type Info struct {
	Path          string
	SchemaVersion int
	CreatedAt     time.Time
	Buckets       []BucketStats
}

// Stats returns schema metadata plus row counts and approximate sizes for
// the user-facing buckets.
func (s *Store) Stats() (Info, error) {
	info := Info{Path: s.Path()}
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketInternal)
		if v := meta.Get([]byte("schema_version")); v != nil {
			info.SchemaVersion, _ = strconv.Atoi(string(v))
		}
		if v := meta.Get([]byte("created_at")); v != nil {
			info.CreatedAt, _ = time.Parse(time.RFC3339, string(v))
		}

		b := tx.Bucket(bucketPreferences)
		st := BucketStats{Name: string(bucketPreferences)}
		err := b.ForEach(func(k, v []byte) error {
			st.Count++
			st.Bytes += int64(len(k) + len(v))
			return nil
		})
		info.Buckets = append(info.Buckets, st)
		return err
	})
	return info, err
}
