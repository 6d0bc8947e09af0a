package ledger

import (
	"commitvault/internal/asset"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
)

type EventKind string

const (
	EventMatchCreated        EventKind = "MatchCreated"
	EventInteractionRecorded EventKind = "InteractionRecorded"
	EventExperienceMinted    EventKind = "ExperienceMinted"
	EventApproval            EventKind = "Approval"
	EventTransfer            EventKind = "Transfer"
	EventVaultCreated        EventKind = "VaultCreated"
	EventRedemptionApproved  EventKind = "RedemptionApproved"
	EventDissolutionApproved EventKind = "DissolutionApproved"
	EventVaultRedeemed       EventKind = "VaultRedeemed"
	EventVaultDissolved      EventKind = "VaultDissolved"
)

// Event is emitted for every committed call, after the commit.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Seq     uint64         `json:"seq"`
	TxRef   string         `json:"txRef"`
	Actor   common.Address `json:"actor"`
	MatchID uint64         `json:"matchId,omitempty"`
	Level   uint8          `json:"level,omitempty"`
	Vault   common.Address `json:"vault,omitempty"`
	Asset   *asset.Ref     `json:"asset,omitempty"`
	Created *vault.Created `json:"created,omitempty"`
}

// Subscribe registers fn for every event committed from now on. Handlers run
// on the committing goroutine after the ledger lock is released, so they may
// read the ledger but should not block. The returned func unsubscribes.
func (l *Ledger) Subscribe(fn func(Event)) func() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
}

func (l *Ledger) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	l.subMu.Lock()
	fns := make([]func(Event), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
