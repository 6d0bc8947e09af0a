// Package match is the eligibility ledger: it links two identities into a
// match record and derives the record's level from the number of recorded
// interactions.
//
// The ledger is append-only. Records are created by Create and mutated only by
// RecordInteraction; nothing deletes them. Book performs no locking, the
// owning store serializes access.
package match

import (
	"fmt"
	"time"

	"commitvault/internal/failure"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound       = failure.New(failure.KindNotFound, "match not found")
	ErrInvalidPair    = failure.New(failure.KindInvalidArgument, "match requires two distinct non-zero identities")
	ErrNotParticipant = failure.New(failure.KindCallerDenied, "identity is not a participant of the match")
)

// Record is one pairwise interaction record.
type Record struct {
	ID               uint64         `json:"matchId"`
	PartyA           common.Address `json:"partyA"`
	PartyB           common.Address `json:"partyB"`
	Label            string         `json:"label"`
	CreatedAt        time.Time      `json:"timestamp"`
	InteractionCount uint64         `json:"interactionCount"`
	Level            uint8          `json:"level"`
}

// Counterparty returns the other participant of the match.
func (r Record) Counterparty(of common.Address) (common.Address, error) {
	switch of {
	case r.PartyA:
		return r.PartyB, nil
	case r.PartyB:
		return r.PartyA, nil
	default:
		return common.Address{}, ErrNotParticipant
	}
}

// Involves reports whether id is one of the two participants.
func (r Record) Involves(id common.Address) bool {
	return r.PartyA == id || r.PartyB == id
}

// Book holds every match record keyed by id. Ids start at 1.
type Book struct {
	records map[uint64]*Record
	nextID  uint64
}

func NewBook() *Book {
	return &Book{records: make(map[uint64]*Record), nextID: 1}
}

// Create links a and b. The new record starts at interaction count 0.
func (b *Book) Create(a, bb common.Address, label string, at time.Time) (Record, error) {
	if a == (common.Address{}) || bb == (common.Address{}) || a == bb {
		return Record{}, ErrInvalidPair
	}
	rec := &Record{
		ID:        b.nextID,
		PartyA:    a,
		PartyB:    bb,
		Label:     label,
		CreatedAt: at.UTC(),
		Level:     LevelFor(0),
	}
	b.records[rec.ID] = rec
	b.nextID++
	return *rec, nil
}

// RecordInteraction bumps the interaction count of id and recomputes its
// level. Callers must submit exactly once per logical interaction; the book
// does not deduplicate.
func (b *Book) RecordInteraction(id uint64) (Record, error) {
	rec, ok := b.records[id]
	if !ok {
		return Record{}, fmt.Errorf("record interaction %d: %w", id, ErrNotFound)
	}
	rec.InteractionCount++
	if lvl := LevelFor(rec.InteractionCount); lvl > rec.Level {
		rec.Level = lvl
	}
	return *rec, nil
}

// Get returns a copy of the record.
func (b *Book) Get(id uint64) (Record, error) {
	rec, ok := b.records[id]
	if !ok {
		return Record{}, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	return *rec, nil
}

// Level returns the current level of id.
func (b *Book) Level(id uint64) (uint8, error) {
	rec, err := b.Get(id)
	if err != nil {
		return 0, err
	}
	return rec.Level, nil
}

// PresenceScore is the number of matches id takes part in plus the
// interactions recorded on them.
func (b *Book) PresenceScore(id common.Address) uint64 {
	var score uint64
	for _, rec := range b.records {
		if rec.Involves(id) {
			score += 1 + rec.InteractionCount
		}
	}
	return score
}

// Len returns the number of records.
func (b *Book) Len() int { return len(b.records) }

// Clone returns a deep copy used for dry runs.
func (b *Book) Clone() *Book {
	out := &Book{records: make(map[uint64]*Record, len(b.records)), nextID: b.nextID}
	for id, rec := range b.records {
		cp := *rec
		out.records[id] = &cp
	}
	return out
}
