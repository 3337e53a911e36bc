package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"mcpchat/internal/domain"
)

const defaultFileName = "history.db"

var (
	ErrStoreClosed = errors.New("history store is closed")
	ErrMissingID   = errors.New("history entry id is required")
)

var queriesBucket = []byte("queries")

// Store archives finished queries in a bbolt file keyed by query id.
// Query ids are time ordered, so key order is start order.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	base, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := base.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(queriesBucket)
		return err
	}); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: base, path: trimmed}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) Record(entry domain.HistoryEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return ErrMissingID
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(queriesBucket).Put([]byte(entry.ID), value)
	})
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := s.view(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(queriesBucket).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry domain.HistoryEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode history entry %s: %w", key, err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

func (s *Store) Get(id string) (domain.HistoryEntry, bool, error) {
	var entry domain.HistoryEntry
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		value := tx.Bucket(queriesBucket).Get([]byte(id))
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &entry)
	})
	return entry, found, err
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

// ResolveDefaultPath returns the default history database location.
func ResolveDefaultPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			base = filepath.Join(home, ".local", "state")
		}
	}
	if base == "" {
		base = "."
	}
	return filepath.Join(base, "mcpchat", defaultFileName)
}

var _ domain.HistoryRecorder = (*Store)(nil)
