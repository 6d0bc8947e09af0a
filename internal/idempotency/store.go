// Package idempotency caches responses of privileged requests by the
// client-supplied X-Idempotency-Key so a retried dispatch does not submit a
// second ledger call.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record holds a stored response. Fingerprint identifies the request that
// produced it.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	StatusCode  int       `json:"statusCode"`
	Response    []byte    `json:"response"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Store abstracts idempotency persistence. Get returns nil, nil for a
// missing or expired key.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, record Record) error
}

// Fingerprint hashes the parts of a request that must match on replay.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryStore keeps records for the life of the process. Expired records are
// dropped when they are looked up.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(key), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = record
	return nil
}

// lookup must be called with mu held.
func (m *MemoryStore) lookup(key string) *Record {
	rec, ok := m.data[key]
	if !ok {
		return nil
	}
	if m.now().After(rec.ExpiresAt) {
		delete(m.data, key)
		return nil
	}
	return &rec
}

// prune must be called with mu held.
func (m *MemoryStore) prune() {
	now := m.now()
	for key, rec := range m.data {
		if now.After(rec.ExpiresAt) {
			delete(m.data, key)
		}
	}
}

// FileStore is a MemoryStore mirrored to a JSON file after every Save.
// Suitable for a single local instance.
type FileStore struct {
	*MemoryStore
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path}
	blob, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, err
	case len(blob) == 0:
		return fs, nil
	}
	if err := json.Unmarshal(blob, &fs.data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fs, nil
}

func (f *FileStore) Save(_ context.Context, key string, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = record
	f.prune()
	return f.flush()
}

// flush replaces the file through a rename so readers never see a torn write.
func (f *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
