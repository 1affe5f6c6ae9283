// Package store persists preferences and session state in BoltDB with an
// in-memory read cache in front of it.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sysreinstaller/vhdget/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketPrefs   = []byte("prefs")
	bucketSession = []byte("session")
)

// Keys accepted by Remove
const (
	KeyPreferences = "preferences"
	KeyLastServer  = "last_server"
	KeyHistory     = "history"
)

var keyBuckets = map[string][]byte{
	KeyPreferences: bucketPrefs,
	KeyLastServer:  bucketSession,
	KeyHistory:     bucketSession,
}

// Store implements domain.Store using BoltDB.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.Store = (*Store)(nil)

// New opens the store under dataDir. Each catalog source gets its own
// database so history and last server never mix between endpoints.
// An empty dataDir gives a memory-only store.
func New(dataDir, sourceURL string) (*Store, error) {
	if dataDir == "" {
		return &Store{cache: make(map[string][]byte)}, nil
	}

	dir := dataDir
	if sourceURL != "" {
		dir = filepath.Join(dataDir, hashSourceURL(sourceURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "vhdget.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPrefs, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

func hashSourceURL(sourceURL string) string {
	normalized := strings.TrimRight(strings.ToLower(sourceURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Path returns the database file, or "" for a memory-only store
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *Store) get(bucket []byte, key string, dest any) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *Store) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *Store) delete(bucket []byte, key string) error {
	s.mu.Lock()
	delete(s.cache, string(bucket)+":"+key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// === Preferences ===

func (s *Store) GetPreferences() (domain.Preferences, bool) {
	var prefs domain.Preferences
	ok := s.get(bucketPrefs, KeyPreferences, &prefs)
	return prefs, ok
}

func (s *Store) SavePreferences(prefs domain.Preferences) error {
	return s.set(bucketPrefs, KeyPreferences, prefs)
}

// === Session ===

func (s *Store) GetLastServer() (string, bool) {
	var id string
	ok := s.get(bucketSession, KeyLastServer, &id)
	return id, ok && id != ""
}

func (s *Store) SaveLastServer(serverID string) error {
	return s.set(bucketSession, KeyLastServer, serverID)
}

// === History ===

func (s *Store) GetHistory() ([]domain.DownloadTask, bool) {
	var history []domain.DownloadTask
	ok := s.get(bucketSession, KeyHistory, &history)
	return history, ok
}

// SaveHistory replaces the stored history. A nil slice clears it.
func (s *Store) SaveHistory(history []domain.DownloadTask) error {
	if history == nil {
		return s.delete(bucketSession, KeyHistory)
	}
	return s.set(bucketSession, KeyHistory, history)
}

// === Invalidation ===

// Remove deletes a single key (preferences, last_server or history)
func (s *Store) Remove(key string) error {
	bucket, ok := keyBuckets[key]
	if !ok {
		return fmt.Errorf("unknown store key %q", key)
	}
	return s.delete(bucket, key)
}

func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPrefs, bucketSession} {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
