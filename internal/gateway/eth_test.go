package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"commitvault/internal/contracts"
	"commitvault/internal/failure"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers the read paths; anything else panics through the nil
// embedded interface.
type fakeBackend struct {
	EthBackend
	out   []byte
	err   error
	calls []ethereum.CallMsg
	logs  []types.Log
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 42, nil }

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	return f.out, f.err
}

func (f *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

var (
	factory = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	partyA  = common.HexToAddress("0x000000000000000000000000000000000000000a")
	partyB  = common.HexToAddress("0x000000000000000000000000000000000000000b")
	vaultID = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	nft     = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func newTestGateway(t *testing.T, b *fakeBackend) *EthGateway {
	t.Helper()
	g, err := NewEthGateway(context.Background(), b, EthConfig{Addresses: Addresses{
		VaultFactory:  factory,
		MatchData:     common.HexToAddress("0xd0"),
		PresenceScore: common.HexToAddress("0xd1"),
	}})
	require.NoError(t, err)
	return g
}

func mustABI(t *testing.T, src string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(src))
	require.NoError(t, err)
	return parsed
}

func TestNewEthGatewayRequiresFactory(t *testing.T) {
	_, err := NewEthGateway(context.Background(), &fakeBackend{}, EthConfig{})
	require.Error(t, err)
}

func TestCoerceArguments(t *testing.T) {
	parsed := mustABI(t, contracts.CommitmentVaultFactoryABI)
	method := parsed.Methods["createCommitmentVault"]

	args, err := coerce(method, []any{json.Number("7"), nft.Hex(), "3"})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), args[0])
	assert.Equal(t, nft, args[1])
	assert.Equal(t, big.NewInt(3), args[2])

	_, err = coerce(method, []any{7, 8, 3})
	assert.ErrorIs(t, err, failure.New(failure.KindInvalidArgument, ""))

	_, err = coerce(method, []any{7})
	assert.Equal(t, failure.KindInvalidArgument, failure.KindOf(err))
}

func TestSimulateSendsCallerAndTarget(t *testing.T) {
	b := &fakeBackend{}
	g := newTestGateway(t, b)

	call := Call{Target: EntityVault, Address: vaultID, Method: OpExecuteRedemption}
	require.NoError(t, g.Simulate(context.Background(), NewAddressCredential(partyB), call))
	require.Len(t, b.calls, 1)
	assert.Equal(t, partyB, b.calls[0].From)
	assert.Equal(t, vaultID, *b.calls[0].To)
}

func TestSimulateSingletonResolvesConfiguredAddress(t *testing.T) {
	b := &fakeBackend{}
	g := newTestGateway(t, b)
	cred := NewAddressCredential(partyA)

	err := g.Simulate(context.Background(), cred, Call{
		Target:  EntityMatchData,
		Address: common.HexToAddress("0xdead"),
		Method:  OpRecordInteraction,
		Args:    []any{uint64(1)},
	})
	assert.ErrorIs(t, err, ErrSingletonAddress)
	assert.Empty(t, b.calls)

	require.NoError(t, g.Simulate(context.Background(), cred, Call{
		Target: EntityMatchData,
		Method: OpRecordInteraction,
		Args:   []any{uint64(1)},
	}))
	require.Len(t, b.calls, 1)
	assert.Equal(t, common.HexToAddress("0xd0"), *b.calls[0].To)
}

func TestSimulateClassifiesFinalizedRevert(t *testing.T) {
	b := &fakeBackend{err: errors.New("execution reverted: Vault already finalized")}
	g := newTestGateway(t, b)

	err := g.Simulate(context.Background(), NewAddressCredential(partyA),
		Call{Target: EntityVault, Address: vaultID, Method: OpExecuteDissolution})
	assert.ErrorIs(t, err, vault.ErrAlreadyFinalized)
}

func TestSimulateUnknownOperation(t *testing.T) {
	g := newTestGateway(t, &fakeBackend{})
	err := g.Simulate(context.Background(), NewAddressCredential(partyA),
		Call{Target: EntityVault, Address: vaultID, Method: "selfDestruct"})
	assert.Equal(t, failure.KindInvalidArgument, failure.KindOf(err))
}

func TestSubmitNeedsSigningKey(t *testing.T) {
	g := newTestGateway(t, &fakeBackend{})
	_, err := g.Submit(context.Background(), NewAddressCredential(partyA),
		Call{Target: EntityVault, Address: vaultID, Method: OpExecuteRedemption})
	require.Error(t, err)
}

func TestVaultInfoDecodes(t *testing.T) {
	parsed := mustABI(t, contracts.CommitmentVaultABI)
	out, err := parsed.Methods["getVaultInfo"].Outputs.Pack(partyA, partyB, false, false, false, true, false, true)
	require.NoError(t, err)

	g := newTestGateway(t, &fakeBackend{out: out})
	info, err := g.VaultInfo(context.Background(), vaultID)
	require.NoError(t, err)
	assert.Equal(t, vault.Info{
		VaultID:           vaultID,
		PartyA:            partyA,
		PartyB:            partyB,
		RedeemApprovalB:   true,
		DissolveApprovalB: true,
	}, info)
	assert.True(t, info.CanRedeem())
}

func TestVaultInfoWithoutCode(t *testing.T) {
	g := newTestGateway(t, &fakeBackend{})
	_, err := g.VaultInfo(context.Background(), vaultID)
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestPresenceScoreDecodes(t *testing.T) {
	parsed := mustABI(t, contracts.PresenceScoreABI)
	out, err := parsed.Methods["getPresenceScore"].Outputs.Pack(big.NewInt(9))
	require.NoError(t, err)

	g := newTestGateway(t, &fakeBackend{out: out})
	score, err := g.PresenceScore(context.Background(), partyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), score)
}

func TestVaultsCreatedDecodesLogs(t *testing.T) {
	parsed := mustABI(t, contracts.CommitmentVaultFactoryABI)
	ev := parsed.Events["VaultCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(7), nft, big.NewInt(3))
	require.NoError(t, err)

	b := &fakeBackend{logs: []types.Log{{
		Address: factory,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(vaultID.Bytes()),
			common.BytesToHash(partyA.Bytes()),
			common.BytesToHash(partyB.Bytes()),
		},
		Data: data,
	}}}
	g := newTestGateway(t, b)

	got, err := g.VaultsCreated(context.Background(), 0, 42)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, vaultID, got[0].VaultID)
	assert.Equal(t, uint64(7), got[0].MatchID)
	assert.Equal(t, partyA, got[0].Creator)
	assert.Equal(t, partyB, got[0].Counterparty)
	assert.Equal(t, nft, got[0].Asset.Collection)
	assert.Equal(t, uint64(3), got[0].Asset.TokenID)
}

func TestNormalizeArgs(t *testing.T) {
	args, raw, err := NormalizeArgs([]any{partyA, uint64(5), "label"})
	require.NoError(t, err)
	assert.JSONEq(t, `["`+strings.ToLower(partyA.Hex())+`",5,"label"]`, strings.ToLower(string(raw)))

	addr, err := ArgAddress(args, 0)
	require.NoError(t, err)
	assert.Equal(t, partyA, addr)

	n, err := ArgUint(args, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	_, err = ArgUint([]any{json.Number("-1")}, 0)
	assert.Equal(t, failure.KindInvalidArgument, failure.KindOf(err))
}
