// Package ledger is the in-process strongly-ordered store. Every call is
// applied under one lock, appended to a journal and only then made visible;
// on start the journal is replayed to rebuild state.
package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"commitvault/internal/asset"
	"commitvault/internal/gateway"
	"commitvault/internal/journal"
	"commitvault/internal/logger"
	"commitvault/internal/match"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	DefaultCollectionName   = "Cena en Restaurante Fusion"
	DefaultCollectionSymbol = "CRF"
)

type Config struct {
	// Owner is the administrative identity allowed to create matches,
	// record interactions and mint experiences.
	Owner            common.Address
	Addresses        gateway.Addresses
	CollectionName   string
	CollectionSymbol string
	MinLevel         uint8
	Now              func() time.Time
}

// Ledger implements gateway.Gateway in process.
type Ledger struct {
	cfg     Config
	journal journal.Journal
	log     *logger.Logger

	mu       sync.RWMutex
	world    *world
	seq      uint64
	receipts map[string][]Event

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

var _ gateway.Gateway = (*Ledger)(nil)

// Open builds the genesis state and replays j on top of it.
func Open(ctx context.Context, cfg Config, j journal.Journal, log *logger.Logger) (*Ledger, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("ledger owner is required")
	}
	if cfg.Addresses.ExperienceNFT == (common.Address{}) || cfg.Addresses.VaultFactory == (common.Address{}) {
		return nil, fmt.Errorf("experience collection and vault factory addresses are required")
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = DefaultCollectionName
	}
	if cfg.CollectionSymbol == "" {
		cfg.CollectionSymbol = DefaultCollectionSymbol
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	vaults := vault.NewRegistry(cfg.Addresses.VaultFactory)
	if cfg.MinLevel != 0 {
		vaults.MinLevel = cfg.MinLevel
	}
	l := &Ledger{
		cfg:     cfg,
		journal: j,
		log:     log,
		world: &world{
			matches: match.NewBook(),
			assets:  asset.NewRegistry(asset.NewCollection(cfg.Addresses.ExperienceNFT, cfg.CollectionName, cfg.CollectionSymbol)),
			vaults:  vaults,
		},
		receipts: make(map[string][]Event),
		subs:     make(map[int]func(Event)),
	}
	if err := l.replay(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) replay(ctx context.Context) error {
	entries, err := l.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	for _, e := range entries {
		if e.Seq != l.seq+1 {
			return fmt.Errorf("replay: entry %d after %d: %w", e.Seq, l.seq, journal.ErrSequenceConflict)
		}
		args, err := gateway.DecodeArgs(e.Args)
		if err != nil {
			return fmt.Errorf("replay entry %d: %w", e.Seq, err)
		}
		call := gateway.Call{Target: e.Target, Address: e.Address, Method: e.Method, Args: args}
		events, err := l.apply(l.world, e.Caller, call, e.At)
		if err != nil {
			return fmt.Errorf("replay entry %d (%s): %w", e.Seq, call, err)
		}
		l.seq = e.Seq
		l.receipts[e.TxRef] = stamp(events, e.Seq, e.TxRef)
	}
	if len(entries) > 0 {
		l.log.Info().Uint64("seq", l.seq).Int("vaults", l.world.vaults.Len()).Msg("ledger replayed")
	}
	return nil
}

func stamp(events []Event, seq uint64, ref string) []Event {
	for i := range events {
		events[i].Seq = seq
		events[i].TxRef = ref
	}
	return events
}

func txRef(e journal.Entry) string {
	var seq, at [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Seq)
	binary.BigEndian.PutUint64(at[:], uint64(e.At.UnixNano()))
	return crypto.Keccak256Hash(
		seq[:],
		e.Caller.Bytes(),
		[]byte(e.Target),
		e.Address.Bytes(),
		[]byte(e.Method),
		e.Args,
		at[:],
	).Hex()
}

func callerOf(cred *gateway.Credential) (common.Address, error) {
	if cred == nil || cred.Address() == (common.Address{}) {
		return common.Address{}, fmt.Errorf("call without credential")
	}
	return cred.Address(), nil
}

// Simulate applies call to a copy of the state and discards the result.
func (l *Ledger) Simulate(ctx context.Context, cred *gateway.Credential, call gateway.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	caller, err := callerOf(cred)
	if err != nil {
		return err
	}
	args, _, err := gateway.NormalizeArgs(call.Args)
	if err != nil {
		return err
	}
	call.Args = args

	l.mu.RLock()
	scratch := l.world.clone()
	l.mu.RUnlock()

	_, err = l.apply(scratch, caller, call, l.now())
	return err
}

// Submit commits call. The returned reference is the keccak hash of the
// journal entry.
func (l *Ledger) Submit(ctx context.Context, cred *gateway.Credential, call gateway.Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	caller, err := callerOf(cred)
	if err != nil {
		return "", err
	}
	args, raw, err := gateway.NormalizeArgs(call.Args)
	if err != nil {
		return "", err
	}
	call.Args = args

	l.mu.Lock()
	next := l.world.clone()
	at := l.now()
	events, err := l.apply(next, caller, call, at)
	if err != nil {
		l.mu.Unlock()
		return "", err
	}

	e := journal.Entry{
		Seq:     l.seq + 1,
		Caller:  caller,
		Target:  call.Target,
		Address: call.Address,
		Method:  call.Method,
		Args:    raw,
		At:      at,
	}
	e.TxRef = txRef(e)
	if err := l.journal.Append(ctx, e); err != nil {
		l.mu.Unlock()
		return "", fmt.Errorf("journal %s: %w", call, err)
	}
	l.world = next
	l.seq = e.Seq
	l.receipts[e.TxRef] = stamp(events, e.Seq, e.TxRef)
	l.mu.Unlock()

	l.log.Debug().Uint64("seq", e.Seq).Str("call", call.String()).Str("caller", caller.Hex()).Str("tx_ref", e.TxRef).Msg("committed")
	l.publish(events)
	return e.TxRef, nil
}

// journal timestamps round-trip through Postgres at microsecond precision.
func (l *Ledger) now() time.Time {
	return l.cfg.Now().UTC().Truncate(time.Microsecond)
}

func (l *Ledger) VaultInfo(_ context.Context, id common.Address) (vault.Info, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.world.vaults.Info(id)
}

func (l *Ledger) MatchInfo(_ context.Context, id uint64) (match.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.world.matches.Get(id)
}

func (l *Ledger) PresenceScore(_ context.Context, id common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.world.matches.PresenceScore(id), nil
}

// OwnerOf returns the current holder of ref.
func (l *Ledger) OwnerOf(ref asset.Ref) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.world.assets.OwnerOf(ref)
}

// Vaults returns every vault id in creation order.
func (l *Ledger) Vaults() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.world.vaults.IDs()
}

// Receipt returns the events of a committed call.
func (l *Ledger) Receipt(ref string) ([]Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events, ok := l.receipts[ref]
	return append([]Event(nil), events...), ok
}

// Seq returns the sequence number of the last committed call.
func (l *Ledger) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

func (l *Ledger) Ping(ctx context.Context) error {
	if p, ok := l.journal.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return ctx.Err()
}
