// Package ledgertest builds seeded in-process ledgers for tests.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"commitvault/internal/asset"
	"commitvault/internal/gateway"
	"commitvault/internal/journal"
	"commitvault/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	Owner = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	Alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	Bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	Carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")

	Addresses = gateway.Addresses{
		ProofOfMatch:  common.HexToAddress("0x0000000000000000000000000000000000001001"),
		MatchData:     common.HexToAddress("0x0000000000000000000000000000000000001002"),
		ExperienceNFT: common.HexToAddress("0x0000000000000000000000000000000000001003"),
		VaultFactory:  common.HexToAddress("0x0000000000000000000000000000000000001004"),
		PresenceScore: common.HexToAddress("0x0000000000000000000000000000000000001005"),
	}

	Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

// Fixture is a ledger plus the journal behind it.
type Fixture struct {
	Ledger  *ledger.Ledger
	Journal journal.Journal
}

// Config returns the ledger configuration used by New.
func Config() ledger.Config {
	tick := Epoch
	return ledger.Config{
		Owner:     Owner,
		Addresses: Addresses,
		Now: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	}
}

func New(t testing.TB) *Fixture {
	t.Helper()
	return Open(t, journal.NewMemoryJournal())
}

func Open(t testing.TB, j journal.Journal) *Fixture {
	t.Helper()
	l, err := ledger.Open(context.Background(), Config(), j, nil)
	require.NoError(t, err)
	return &Fixture{Ledger: l, Journal: j}
}

// As returns a credential for id.
func As(id common.Address) *gateway.Credential {
	return gateway.NewAddressCredential(id)
}

// Submit commits call as caller and fails the test on error.
func (f *Fixture) Submit(t testing.TB, caller common.Address, call gateway.Call) string {
	t.Helper()
	ref, err := f.Ledger.Submit(context.Background(), As(caller), call)
	require.NoError(t, err, call.String())
	return ref
}

// Match creates a match between a and b with n recorded interactions and
// returns its id.
func (f *Fixture) Match(t testing.TB, a, b common.Address, n int) uint64 {
	t.Helper()
	ref := f.Submit(t, Owner, gateway.Call{
		Target: gateway.EntityProofOfMatch, Method: gateway.OpCreateMatch,
		Args: []any{a, b, "Cafe Central"},
	})
	events, _ := f.Ledger.Receipt(ref)
	require.Len(t, events, 1)
	id := events[0].MatchID
	for i := 0; i < n; i++ {
		f.Submit(t, Owner, gateway.Call{
			Target: gateway.EntityMatchData, Method: gateway.OpRecordInteraction,
			Args: []any{id},
		})
	}
	return id
}

// Mint gives holder a fresh experience token approved for the vault factory.
func (f *Fixture) Mint(t testing.TB, holder common.Address) asset.Ref {
	t.Helper()
	ref := f.Submit(t, Owner, gateway.Call{
		Target: gateway.EntityExperienceNFT, Method: gateway.OpMintExperience,
		Args: []any{holder, "ipfs://experience"},
	})
	events, _ := f.Ledger.Receipt(ref)
	require.Len(t, events, 1)
	tok := *events[0].Asset
	f.Submit(t, holder, gateway.Call{
		Target: gateway.EntityExperienceNFT, Method: gateway.OpApprove,
		Args: []any{Addresses.VaultFactory, tok.TokenID},
	})
	return tok
}

// CreateVaultCall is the factory call for matchID and tok.
func CreateVaultCall(matchID uint64, tok asset.Ref) gateway.Call {
	return gateway.Call{
		Target: gateway.EntityVaultFactory, Method: gateway.OpCreateVault,
		Args: []any{matchID, tok.Collection, tok.TokenID},
	}
}

// Vault opens an Active vault between Alice (creator) and Bob.
func (f *Fixture) Vault(t testing.TB) (common.Address, asset.Ref) {
	t.Helper()
	matchID := f.Match(t, Alice, Bob, 1)
	tok := f.Mint(t, Alice)
	ref := f.Submit(t, Alice, CreateVaultCall(matchID, tok))
	events, _ := f.Ledger.Receipt(ref)
	for _, ev := range events {
		if ev.Kind == ledger.EventVaultCreated {
			return ev.Vault, tok
		}
	}
	t.Fatalf("no VaultCreated event in %s", ref)
	return common.Address{}, tok
}

// VaultCall builds a call on vault id.
func VaultCall(id common.Address, method string) gateway.Call {
	return gateway.Call{Target: gateway.EntityVault, Address: id, Method: method}
}
