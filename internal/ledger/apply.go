package ledger

import (
	"fmt"
	"time"

	"commitvault/internal/asset"
	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/match"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotOwner = failure.New(failure.KindCallerDenied, "caller is not the ledger owner")

// world is the complete ledger state. It is never mutated in place by a
// call: the ledger applies calls to a clone and swaps it in on success.
type world struct {
	matches *match.Book
	assets  *asset.Registry
	vaults  *vault.Registry
}

func (w *world) clone() *world {
	return &world{
		matches: w.matches.Clone(),
		assets:  w.assets.Clone(),
		vaults:  w.vaults.Clone(),
	}
}

func unknownOp(call gateway.Call) error {
	return failure.New(failure.KindInvalidArgument, "unknown operation "+call.String())
}

// apply executes call as caller. call.Args must be normalized.
func (l *Ledger) apply(w *world, caller common.Address, call gateway.Call, at time.Time) ([]Event, error) {
	if err := call.CheckAddress(); err != nil {
		return nil, err
	}
	switch call.Target {
	case gateway.EntityProofOfMatch:
		if call.Method != gateway.OpCreateMatch {
			return nil, unknownOp(call)
		}
		return l.createMatch(w, caller, call.Args, at)
	case gateway.EntityMatchData:
		if call.Method != gateway.OpRecordInteraction {
			return nil, unknownOp(call)
		}
		return l.recordInteraction(w, caller, call.Args)
	case gateway.EntityExperienceNFT:
		return l.applyNFT(w, caller, call)
	case gateway.EntityVaultFactory:
		if call.Method != gateway.OpCreateVault {
			return nil, unknownOp(call)
		}
		return createVault(w, caller, call.Args)
	case gateway.EntityVault:
		return applyVault(w, caller, call)
	default:
		return nil, unknownOp(call)
	}
}

func (l *Ledger) requireOwner(caller common.Address) error {
	if caller != l.cfg.Owner {
		return ErrNotOwner
	}
	return nil
}

func (l *Ledger) createMatch(w *world, caller common.Address, args []any, at time.Time) ([]Event, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := gateway.ArgCount(args, 2, 3); err != nil {
		return nil, err
	}
	a, err := gateway.ArgAddress(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := gateway.ArgAddress(args, 1)
	if err != nil {
		return nil, err
	}
	var label string
	if len(args) == 3 {
		if label, err = gateway.ArgString(args, 2); err != nil {
			return nil, err
		}
	}
	rec, err := w.matches.Create(a, b, label, at)
	if err != nil {
		return nil, err
	}
	return []Event{{Kind: EventMatchCreated, Actor: caller, MatchID: rec.ID, Level: rec.Level}}, nil
}

func (l *Ledger) recordInteraction(w *world, caller common.Address, args []any) ([]Event, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := gateway.ArgCount(args, 1, 1); err != nil {
		return nil, err
	}
	id, err := gateway.ArgUint(args, 0)
	if err != nil {
		return nil, err
	}
	rec, err := w.matches.RecordInteraction(id)
	if err != nil {
		return nil, err
	}
	return []Event{{Kind: EventInteractionRecorded, Actor: caller, MatchID: rec.ID, Level: rec.Level}}, nil
}

func (l *Ledger) applyNFT(w *world, caller common.Address, call gateway.Call) ([]Event, error) {
	addr := l.cfg.Addresses.ExperienceNFT
	col, err := w.assets.Collection(addr)
	if err != nil {
		return nil, err
	}
	args := call.Args

	switch call.Method {
	case gateway.OpMintExperience:
		if err := l.requireOwner(caller); err != nil {
			return nil, err
		}
		if err := gateway.ArgCount(args, 2, 2); err != nil {
			return nil, err
		}
		to, err := gateway.ArgAddress(args, 0)
		if err != nil {
			return nil, err
		}
		uri, err := gateway.ArgString(args, 1)
		if err != nil {
			return nil, err
		}
		tok, err := col.Mint(to, uri)
		if err != nil {
			return nil, err
		}
		return []Event{{Kind: EventExperienceMinted, Actor: caller, Asset: &asset.Ref{Collection: addr, TokenID: tok.ID}}}, nil

	case gateway.OpApprove:
		if err := gateway.ArgCount(args, 2, 2); err != nil {
			return nil, err
		}
		operator, err := gateway.ArgAddress(args, 0)
		if err != nil {
			return nil, err
		}
		id, err := gateway.ArgUint(args, 1)
		if err != nil {
			return nil, err
		}
		if err := col.Approve(caller, operator, id); err != nil {
			return nil, err
		}
		return []Event{{Kind: EventApproval, Actor: caller, Asset: &asset.Ref{Collection: addr, TokenID: id}}}, nil

	case gateway.OpTransferFrom:
		if err := gateway.ArgCount(args, 3, 3); err != nil {
			return nil, err
		}
		from, err := gateway.ArgAddress(args, 0)
		if err != nil {
			return nil, err
		}
		to, err := gateway.ArgAddress(args, 1)
		if err != nil {
			return nil, err
		}
		id, err := gateway.ArgUint(args, 2)
		if err != nil {
			return nil, err
		}
		if err := col.TransferFrom(caller, from, to, id); err != nil {
			return nil, err
		}
		return []Event{{Kind: EventTransfer, Actor: caller, Asset: &asset.Ref{Collection: addr, TokenID: id}}}, nil
	}
	return nil, unknownOp(call)
}

// createVault takes [matchId, collection, tokenId] and an optional
// counterparty.
func createVault(w *world, caller common.Address, args []any) ([]Event, error) {
	if err := gateway.ArgCount(args, 3, 4); err != nil {
		return nil, err
	}
	matchID, err := gateway.ArgUint(args, 0)
	if err != nil {
		return nil, err
	}
	collection, err := gateway.ArgAddress(args, 1)
	if err != nil {
		return nil, err
	}
	tokenID, err := gateway.ArgUint(args, 2)
	if err != nil {
		return nil, err
	}
	var counterparty common.Address
	if len(args) == 4 {
		if counterparty, err = gateway.ArgAddress(args, 3); err != nil {
			return nil, err
		}
	}

	ref := asset.Ref{Collection: collection, TokenID: tokenID}
	v, created, err := w.vaults.CreateVault(w.matches, w.assets, caller, matchID, ref, counterparty)
	if err != nil {
		return nil, err
	}
	return []Event{
		{Kind: EventTransfer, Actor: w.vaults.Address, Vault: v.ID, Asset: &ref},
		{Kind: EventVaultCreated, Actor: caller, MatchID: matchID, Vault: v.ID, Asset: &ref, Created: &created},
	}, nil
}

func applyVault(w *world, caller common.Address, call gateway.Call) ([]Event, error) {
	if err := gateway.ArgCount(call.Args, 0, 0); err != nil {
		return nil, err
	}
	v, err := w.vaults.Vault(call.Address)
	if err != nil {
		return nil, err
	}
	ev := Event{Actor: caller, MatchID: v.MatchID, Vault: v.ID}

	switch call.Method {
	case gateway.OpApproveRedemption:
		ev.Kind = EventRedemptionApproved
		err = v.ApproveRedemption(caller)
	case gateway.OpApproveDissolution:
		ev.Kind = EventDissolutionApproved
		err = v.ApproveDissolution(caller)
	case gateway.OpExecuteRedemption:
		ev.Kind = EventVaultRedeemed
		err = v.ExecuteRedemption(w.assets)
	case gateway.OpExecuteDissolution:
		ev.Kind = EventVaultDissolved
		err = v.ExecuteDissolution(w.assets)
	default:
		return nil, unknownOp(call)
	}
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", v.ID.Hex(), err)
	}
	if ev.Kind == EventVaultRedeemed || ev.Kind == EventVaultDissolved {
		ref := v.Asset
		ev.Asset = &ref
	}
	return []Event{ev}, nil
}
