// Package journal persists the ordered log of calls committed by the local
// ledger. The log is append-only: the ledger rebuilds its state by replaying
// it from the first entry.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSequenceConflict is returned when an entry does not extend the log
	// by exactly one.
	ErrSequenceConflict = errors.New("journal sequence conflict")
	ErrClosed           = errors.New("journal closed")
)

// Entry is one committed call.
type Entry struct {
	Seq     uint64          `json:"seq"`
	TxRef   string          `json:"txRef"`
	Caller  common.Address  `json:"caller"`
	Target  string          `json:"target"`
	Address common.Address  `json:"address"`
	Method  string          `json:"method"`
	Args    json.RawMessage `json:"args"`
	At      time.Time       `json:"at"`
}

// Journal stores entries in sequence order.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Load(ctx context.Context) ([]Entry, error)
}

// MemoryJournal keeps entries in memory. Used in tests and ephemeral runs.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Seq != uint64(len(m.entries))+1 {
		return fmt.Errorf("append seq %d after %d: %w", e.Seq, len(m.entries), ErrSequenceConflict)
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryJournal) Load(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...), nil
}
