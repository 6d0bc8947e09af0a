package vault

import (
	"fmt"

	"commitvault/internal/asset"
	"commitvault/internal/failure"
	"commitvault/internal/match"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MinLevelForVault is the lowest match level allowed to open a vault.
const MinLevelForVault = match.LevelAcquainted

var ErrIneligibleMatch = failure.New(failure.KindIneligibleMatch, "match level too low for a vault")

// Matches is the read side of the eligibility ledger.
type Matches interface {
	Get(id uint64) (match.Record, error)
}

// Created is the creation event, the only way observers learn about vaults.
type Created struct {
	VaultID      common.Address `json:"vaultId"`
	MatchID      uint64         `json:"matchId"`
	Creator      common.Address `json:"creator"`
	Counterparty common.Address `json:"counterparty"`
	Asset        asset.Ref      `json:"asset"`
}

// Registry creates and holds vaults. Vault ids are derived like contract
// addresses, from the registry address and a creation nonce.
type Registry struct {
	Address  common.Address
	MinLevel uint8
	vaults   map[common.Address]*Vault
	order    []common.Address
	nonce    uint64
}

func NewRegistry(addr common.Address) *Registry {
	return &Registry{
		Address:  addr,
		MinLevel: MinLevelForVault,
		vaults:   make(map[common.Address]*Vault),
		nonce:    1,
	}
}

// CreateVault opens a vault for matchID with caller as PartyA and takes
// custody of ref. A zero counterparty resolves to the caller's partner in the
// match.
func (r *Registry) CreateVault(m Matches, c Custodian, caller common.Address, matchID uint64, ref asset.Ref, counterparty common.Address) (*Vault, Created, error) {
	rec, err := m.Get(matchID)
	if err != nil {
		return nil, Created{}, err
	}
	if rec.Level < r.MinLevel {
		return nil, Created{}, fmt.Errorf("match %d at level %d, need %d: %w", matchID, rec.Level, r.MinLevel, ErrIneligibleMatch)
	}
	partner, err := rec.Counterparty(caller)
	if err != nil {
		return nil, Created{}, fmt.Errorf("match %d: %w", matchID, err)
	}
	if counterparty == (common.Address{}) {
		counterparty = partner
	}
	if counterparty != partner {
		return nil, Created{}, fmt.Errorf("counterparty %s not in match %d: %w", counterparty.Hex(), matchID, match.ErrNotParticipant)
	}

	id := crypto.CreateAddress(r.Address, r.nonce)
	if err := c.Transfer(r.Address, caller, id, ref); err != nil {
		return nil, Created{}, fmt.Errorf("custody of %s: %w", ref, err)
	}
	r.nonce++

	v := &Vault{
		ID:      id,
		MatchID: matchID,
		PartyA:  caller,
		PartyB:  counterparty,
		Asset:   ref,
		Status:  StatusActive,
	}
	r.vaults[id] = v
	r.order = append(r.order, id)

	return v, Created{
		VaultID:      id,
		MatchID:      matchID,
		Creator:      caller,
		Counterparty: counterparty,
		Asset:        ref,
	}, nil
}

// Vault returns the live vault with id.
func (r *Registry) Vault(id common.Address) (*Vault, error) {
	v, ok := r.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id.Hex(), ErrNotFound)
	}
	return v, nil
}

// Info returns the snapshot of vault id.
func (r *Registry) Info(id common.Address) (Info, error) {
	v, err := r.Vault(id)
	if err != nil {
		return Info{}, err
	}
	return v.Info(), nil
}

// Len returns the number of vaults ever created.
func (r *Registry) Len() int { return len(r.order) }

// IDs returns vault ids in creation order.
func (r *Registry) IDs() []common.Address {
	return append([]common.Address(nil), r.order...)
}

// Clone returns a deep copy used for dry runs.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		Address:  r.Address,
		MinLevel: r.MinLevel,
		vaults:   make(map[common.Address]*Vault, len(r.vaults)),
		order:    append([]common.Address(nil), r.order...),
		nonce:    r.nonce,
	}
	for id, v := range r.vaults {
		cp := *v
		out.vaults[id] = &cp
	}
	return out
}
