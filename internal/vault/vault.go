// Package vault implements the commitment vault state machine and the
// registry that creates vaults.
//
// A vault holds one asset on behalf of two parties. PartyA created it and
// contributed the asset; PartyB is the counterparty. Redemption hands the
// asset to PartyB and needs only PartyB's consent. Dissolution hands it back
// to PartyA and needs both parties' consent. Both outcomes are terminal.
package vault

import (
	"fmt"

	"commitvault/internal/asset"
	"commitvault/internal/failure"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound           = failure.New(failure.KindNotFound, "vault not found")
	ErrAlreadyFinalized   = failure.New(failure.KindAlreadyFinalized, "vault already finalized")
	ErrNotCounterparty    = failure.New(failure.KindCallerDenied, "only the counterparty may approve redemption")
	ErrNotParty           = failure.New(failure.KindCallerDenied, "caller is not a party of the vault")
	ErrRedeemNotApproved  = failure.New(failure.KindPreconditionFailed, "redemption not approved by the counterparty")
	ErrDissolveIncomplete = failure.New(failure.KindPreconditionFailed, "dissolution not approved by both parties")
)

// Status is the lifecycle state of a vault.
type Status uint8

const (
	StatusActive Status = iota
	StatusRedeemed
	StatusDissolved
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRedeemed:
		return "redeemed"
	case StatusDissolved:
		return "dissolved"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s != StatusActive }

// Custodian moves assets on behalf of a vault.
type Custodian interface {
	Transfer(operator, from, to common.Address, ref asset.Ref) error
}

// Vault is one escrow. Fields are only changed through its methods.
type Vault struct {
	ID                common.Address
	MatchID           uint64
	PartyA            common.Address
	PartyB            common.Address
	Asset             asset.Ref
	Status            Status
	RedeemApprovalB   bool
	DissolveApprovalA bool
	DissolveApprovalB bool
}

// Info is a consistent snapshot of a vault for observers.
type Info struct {
	VaultID           common.Address `json:"vaultId"`
	PartyA            common.Address `json:"partyA"`
	PartyB            common.Address `json:"partyB"`
	IsRedeemed        bool           `json:"isRedeemed"`
	IsDissolved       bool           `json:"isDissolved"`
	RedeemApprovalB   bool           `json:"redeemApprovalB"`
	DissolveApprovalA bool           `json:"dissolveApprovalA"`
	DissolveApprovalB bool           `json:"dissolveApprovalB"`
}

// Active reports whether neither terminal flag is set.
func (i Info) Active() bool { return !i.IsRedeemed && !i.IsDissolved }

// Status derives the lifecycle state from the terminal flags.
func (i Info) Status() Status {
	switch {
	case i.IsRedeemed:
		return StatusRedeemed
	case i.IsDissolved:
		return StatusDissolved
	default:
		return StatusActive
	}
}

// CanRedeem reports whether the redemption predicate holds.
func (i Info) CanRedeem() bool { return i.Active() && i.RedeemApprovalB }

// CanDissolve reports whether the dissolution predicate holds.
func (i Info) CanDissolve() bool {
	return i.Active() && i.DissolveApprovalA && i.DissolveApprovalB
}

// Info returns the vault snapshot.
func (v *Vault) Info() Info {
	return Info{
		VaultID:           v.ID,
		PartyA:            v.PartyA,
		PartyB:            v.PartyB,
		IsRedeemed:        v.Status == StatusRedeemed,
		IsDissolved:       v.Status == StatusDissolved,
		RedeemApprovalB:   v.RedeemApprovalB,
		DissolveApprovalA: v.DissolveApprovalA,
		DissolveApprovalB: v.DissolveApprovalB,
	}
}

// ApproveRedemption records PartyB's consent. Re-approving is a no-op.
func (v *Vault) ApproveRedemption(caller common.Address) error {
	if v.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if caller != v.PartyB {
		return ErrNotCounterparty
	}
	v.RedeemApprovalB = true
	return nil
}

// ApproveDissolution records the caller's consent to dissolve.
func (v *Vault) ApproveDissolution(caller common.Address) error {
	if v.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	switch caller {
	case v.PartyA:
		v.DissolveApprovalA = true
	case v.PartyB:
		v.DissolveApprovalB = true
	default:
		return ErrNotParty
	}
	return nil
}

// ExecuteRedemption releases the asset to PartyB. Any caller may trigger it
// once PartyB approved. State is unchanged when the transfer fails.
func (v *Vault) ExecuteRedemption(c Custodian) error {
	if v.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if !v.RedeemApprovalB {
		return ErrRedeemNotApproved
	}
	if err := c.Transfer(v.ID, v.ID, v.PartyB, v.Asset); err != nil {
		return fmt.Errorf("release %s to %s: %w", v.Asset, v.PartyB.Hex(), err)
	}
	v.Status = StatusRedeemed
	return nil
}

// ExecuteDissolution returns the asset to PartyA once both parties approved.
func (v *Vault) ExecuteDissolution(c Custodian) error {
	if v.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if !v.DissolveApprovalA || !v.DissolveApprovalB {
		return ErrDissolveIncomplete
	}
	if err := c.Transfer(v.ID, v.ID, v.PartyA, v.Asset); err != nil {
		return fmt.Errorf("return %s to %s: %w", v.Asset, v.PartyA.Hex(), err)
	}
	v.Status = StatusDissolved
	return nil
}
