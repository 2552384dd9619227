// Package profile persists owned-tool profiles, one per locksmith, in a
// bbolt file.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"locksmith-coverage/internal/models"
)

// Errors returned by Store
var (
	ErrStoreClosed     = errors.New("profile store is closed")
	ErrProfileNotFound = errors.New("profile not found")
	ErrMissingID       = errors.New("profile id is required")
)

var profilesBucket = []byte("profiles")

// Store is a bbolt-backed profile store, safe for concurrent use
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
	now    func() time.Time
}

// Open opens or creates the store file at path, creating parent directories
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("profile store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure profile dir: %w", err)
	}
	base, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	if err := base.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	}); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("ensure profile bucket: %w", err)
	}
	return &Store{db: base, now: time.Now}, nil
}

// Close releases the file lock; later calls are no-ops
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put creates or replaces a profile. Tool ids are normalized to lowercase
// and deduplicated; UpdatedAt is stamped.
func (s *Store) Put(p models.OwnedProfile) (models.OwnedProfile, error) {
	id := normalizeID(p.ID)
	if id == "" {
		return models.OwnedProfile{}, ErrMissingID
	}
	p.ID = id
	p.Tools.ToolIDs = dedupe(p.Tools.ToolIDs, true)
	p.Tools.Cables = dedupe(p.Tools.Cables, false)
	p.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return models.OwnedProfile{}, fmt.Errorf("encode profile %s: %w", id, err)
	}
	err = s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).Put([]byte(id), data)
	})
	if err != nil {
		return models.OwnedProfile{}, fmt.Errorf("write profile %s: %w", id, err)
	}
	return p, nil
}

// Get returns the profile with the given id, matched case-insensitively
func (s *Store) Get(id string) (models.OwnedProfile, error) {
	key := normalizeID(id)
	if key == "" {
		return models.OwnedProfile{}, ErrMissingID
	}
	var p models.OwnedProfile
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(profilesBucket).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, key)
		}
		return json.Unmarshal(raw, &p)
	})
	return p, err
}

// List returns all profiles ordered by id
func (s *Store) List() ([]models.OwnedProfile, error) {
	var out []models.OwnedProfile
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(_, value []byte) error {
			var p models.OwnedProfile
			if err := json.Unmarshal(value, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// Delete removes a profile, returning ErrProfileNotFound when it is absent
func (s *Store) Delete(id string) error {
	key := normalizeID(id)
	if key == "" {
		return ErrMissingID
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(profilesBucket)
		if bucket.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, key)
		}
		return bucket.Delete([]byte(key))
	})
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func dedupe(in []string, lower bool) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
