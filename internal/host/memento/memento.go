// Package memento provides durable global state for the host.
//
// Bolt stores every key in a single bbolt bucket with JSON-encoded values,
// so booleans and strings round-trip exactly and numbers come back as
// float64, the same as a JSON settings store. Memory is the in-process
// variant used by tests and ephemeral runs.
package memento

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dshills/puppetext/internal/host"
)

var globalStateBucket = []byte("globalState")

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("memento closed")

// Bolt is a bbolt-backed host.Memento.
type Bolt struct {
	mu sync.RWMutex
	db *bolt.DB
}

var _ host.Memento = (*Bolt)(nil)

// Open opens (or creates) the state database at path.
func Open(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memento: ensure state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("memento: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(globalStateBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memento: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Get returns the decoded value for key or def.
func (b *Bolt) Get(key string, def any) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return def
	}

	var raw []byte
	_ = b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(globalStateBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return def
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return def
	}
	return value
}

// Update stores value under key. A nil value deletes the key.
func (b *Bolt) Update(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return ErrClosed
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(globalStateBucket)
		if err != nil {
			return err
		}
		if value == nil {
			return bucket.Delete([]byte(key))
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("memento: encode %s: %w", key, err)
		}
		return bucket.Put([]byte(key), data)
	})
}

// Close releases the database file lock.
func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Memory is an in-process host.Memento.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

var _ host.Memento = (*Memory)(nil)

// NewMemory returns an empty in-memory memento.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

// Get returns the stored value for key or def.
func (m *Memory) Get(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// Update stores value under key. A nil value deletes the key.
func (m *Memory) Update(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}
