package partycall_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"commitvault/internal/asset"
	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/ledger"
	lt "commitvault/internal/ledger/ledgertest"
	"commitvault/internal/partycall"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1_700_000_000, 0)

type party struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return party{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (p party) sign(t *testing.T, c partycall.Call) partycall.Envelope {
	t.Helper()
	if c.ExpiresAt == 0 {
		c.ExpiresAt = now.Add(time.Minute).Unix()
	}
	env, err := partycall.Sign(p.key, c)
	require.NoError(t, err)
	return env
}

func newService(f *lt.Fixture) *partycall.Service {
	return partycall.NewService(f.Ledger, partycall.WithClock(func() time.Time { return now }))
}

func mint(t *testing.T, f *lt.Fixture, holder common.Address) asset.Ref {
	t.Helper()
	ref := f.Submit(t, lt.Owner, gateway.Call{
		Target: gateway.EntityExperienceNFT, Method: gateway.OpMintExperience,
		Args: []any{holder, "ipfs://experience"},
	})
	events, ok := f.Ledger.Receipt(ref)
	require.True(t, ok)
	require.Len(t, events, 1)
	return *events[0].Asset
}

func TestPartiesCreateAndApproveVault(t *testing.T) {
	f := lt.New(t)
	svc := newService(f)
	ctx := context.Background()
	a, b := newParty(t), newParty(t)

	matchID := f.Match(t, a.addr, b.addr, 1)
	tok := mint(t, f, a.addr)

	res, err := svc.Submit(ctx, a.sign(t, partycall.Call{
		Target:    gateway.EntityExperienceNFT,
		Operation: gateway.OpApprove,
		Args:      []any{lt.Addresses.VaultFactory.Hex(), tok.TokenID},
	}))
	require.NoError(t, err)
	assert.Equal(t, a.addr, res.Caller)

	res, err = svc.Submit(ctx, a.sign(t, partycall.Call{
		Target:    gateway.EntityVaultFactory,
		Operation: gateway.OpCreateVault,
		Args:      []any{matchID, tok.Collection.Hex(), tok.TokenID},
	}))
	require.NoError(t, err)
	events, _ := f.Ledger.Receipt(res.TxRef)
	var id common.Address
	for _, ev := range events {
		if ev.Kind == ledger.EventVaultCreated {
			id = ev.Vault
		}
	}
	require.NotEqual(t, common.Address{}, id)

	_, err = svc.Submit(ctx, b.sign(t, partycall.Call{
		Target:        gateway.EntityVault,
		TargetAddress: id.Hex(),
		Operation:     gateway.OpApproveRedemption,
	}))
	require.NoError(t, err)

	info, err := f.Ledger.VaultInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, a.addr, info.PartyA)
	assert.Equal(t, b.addr, info.PartyB)
	assert.True(t, info.RedeemApprovalB)
	assert.True(t, info.Active())
}

func TestApprovalFromNonPartyFails(t *testing.T) {
	f := lt.New(t)
	id, _ := f.Vault(t)
	outsider := newParty(t)
	before := f.Ledger.Seq()

	_, err := newService(f).Submit(context.Background(), outsider.sign(t, partycall.Call{
		Target:        gateway.EntityVault,
		TargetAddress: id.Hex(),
		Operation:     gateway.OpApproveDissolution,
	}))
	assert.Equal(t, failure.KindSimulationFailed, failure.KindOf(err))
	assert.ErrorIs(t, err, vault.ErrNotParty)
	assert.Equal(t, before, f.Ledger.Seq())
}

func TestOnlyPartyOperationsAdmitted(t *testing.T) {
	f := lt.New(t)
	id, _ := f.Vault(t)
	p := newParty(t)
	svc := newService(f)

	for _, c := range []partycall.Call{
		{Target: gateway.EntityExperienceNFT, Operation: gateway.OpMintExperience, Args: []any{p.addr.Hex(), "ipfs://x"}},
		{Target: gateway.EntityProofOfMatch, Operation: gateway.OpCreateMatch, Args: []any{p.addr.Hex(), lt.Bob.Hex()}},
		{Target: gateway.EntityVault, TargetAddress: id.Hex(), Operation: gateway.OpExecuteRedemption},
	} {
		_, err := svc.Submit(context.Background(), p.sign(t, c))
		assert.ErrorIs(t, err, partycall.ErrNotPartyCall, c.Operation)
	}
}

func TestSingletonAddressRejected(t *testing.T) {
	f := lt.New(t)
	p := newParty(t)
	_, err := newService(f).Submit(context.Background(), p.sign(t, partycall.Call{
		Target:        gateway.EntityExperienceNFT,
		TargetAddress: "0x000000000000000000000000000000000000dead",
		Operation:     gateway.OpApprove,
		Args:          []any{lt.Addresses.VaultFactory.Hex(), 1},
	}))
	assert.ErrorIs(t, err, gateway.ErrSingletonAddress)
}

func TestValidityWindow(t *testing.T) {
	f := lt.New(t)
	id, _ := f.Vault(t)
	p := newParty(t)
	svc := newService(f)

	for name, expires := range map[string]int64{
		"expired":  now.Add(-time.Second).Unix(),
		"too far":  now.Add(partycall.MaxValidity + time.Minute).Unix(),
		"negative": -1,
	} {
		_, err := svc.Submit(context.Background(), p.sign(t, partycall.Call{
			Target:        gateway.EntityVault,
			TargetAddress: id.Hex(),
			Operation:     gateway.OpApproveRedemption,
			ExpiresAt:     expires,
		}))
		assert.ErrorIs(t, err, partycall.ErrExpired, name)
	}
}

func TestRecover(t *testing.T) {
	p := newParty(t)
	env := p.sign(t, partycall.Call{Target: gateway.EntityVault, Operation: gateway.OpApproveRedemption})

	got, err := partycall.Recover(env)
	require.NoError(t, err)
	assert.Equal(t, p.addr, got)

	sig, err := hexutil.Decode(env.Signature)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	got, err = partycall.Recover(partycall.Envelope{Payload: env.Payload, Signature: hexutil.Encode(sig)})
	require.NoError(t, err)
	assert.Equal(t, p.addr, got, "wallet-style v")

	tampered := partycall.Envelope{Payload: env.Payload + " ", Signature: env.Signature}
	got, err = partycall.Recover(tampered)
	if err == nil {
		assert.NotEqual(t, p.addr, got)
	}

	_, err = partycall.Recover(partycall.Envelope{Payload: env.Payload, Signature: "0x1234"})
	assert.ErrorIs(t, err, partycall.ErrBadSignature)
}
