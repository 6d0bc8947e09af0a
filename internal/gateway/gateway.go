// Package gateway abstracts the strongly-ordered store that owns match and
// vault state. Two implementations exist: the in-process ledger
// (internal/ledger) and EthGateway, which talks to the deployed contracts
// over JSON-RPC.
package gateway

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"commitvault/internal/failure"
	"commitvault/internal/match"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Entity names as they appear in calls and in the allow-list.
const (
	EntityProofOfMatch  = "ProofOfMatch"
	EntityMatchData     = "MatchData"
	EntityExperienceNFT = "ExperienceNFT"
	EntityVaultFactory  = "CommitmentVaultFactory"
	EntityPresenceScore = "PresenceScore"
	EntityVault         = "CommitmentVault"
)

// Operation names.
const (
	OpCreateMatch        = "createMatch"
	OpRecordInteraction  = "recordInteraction"
	OpMintExperience     = "mintExperience"
	OpApprove            = "approve"
	OpTransferFrom       = "transferFrom"
	OpCreateVault        = "createCommitmentVault"
	OpApproveRedemption  = "approveRedemption"
	OpApproveDissolution = "approveDissolution"
	OpExecuteRedemption  = "executeRedemption"
	OpExecuteDissolution = "executeDissolution"
)

// Addresses are the deployed singleton entities.
type Addresses struct {
	ProofOfMatch  common.Address
	MatchData     common.Address
	ExperienceNFT common.Address
	VaultFactory  common.Address
	PresenceScore common.Address
}

// Resolve returns the address of a singleton entity.
func (a Addresses) Resolve(entity string) (common.Address, bool) {
	switch entity {
	case EntityProofOfMatch:
		return a.ProofOfMatch, true
	case EntityMatchData:
		return a.MatchData, true
	case EntityExperienceNFT:
		return a.ExperienceNFT, true
	case EntityVaultFactory:
		return a.VaultFactory, true
	case EntityPresenceScore:
		return a.PresenceScore, true
	default:
		return common.Address{}, false
	}
}

// Call is a state-changing operation on one entity. Address selects the
// instance for per-instance entities (vaults); singletons resolve through
// Addresses when it is zero.
type Call struct {
	Target  string
	Address common.Address
	Method  string
	Args    []any
}

// ErrSingletonAddress rejects an explicit address on an entity that is
// deployed once. Those always resolve through Addresses.
var ErrSingletonAddress = failure.New(failure.KindInvalidArgument, "address override on a singleton entity")

// PerInstance reports whether entity has one deployment per instance and is
// addressed by Call.Address.
func PerInstance(entity string) bool { return entity == EntityVault }

// CheckAddress fails when call names an address for a singleton entity.
func (c Call) CheckAddress() error {
	if c.Address != (common.Address{}) && !PerInstance(c.Target) {
		return fmt.Errorf("%s: %w", c, ErrSingletonAddress)
	}
	return nil
}

func (c Call) String() string {
	if c.Address == (common.Address{}) {
		return c.Target + "." + c.Method
	}
	return fmt.Sprintf("%s(%s).%s", c.Target, c.Address.Hex(), c.Method)
}

// Credential is the identity a call is made as. Only the dispatcher holds the
// administrative credential; the key never leaves this package.
type Credential struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// NewKeyCredential parses a hex secp256k1 key.
func NewKeyCredential(hexKey string) (*Credential, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Credential{address: crypto.PubkeyToAddress(key.PublicKey), key: key}, nil
}

// NewAddressCredential identifies a caller without signing material. The
// local ledger accepts it; EthGateway refuses to submit with it.
func NewAddressCredential(addr common.Address) *Credential {
	return &Credential{address: addr}
}

func (c *Credential) Address() common.Address { return c.address }

func (c *Credential) String() string { return "credential(" + c.address.Hex() + ")" }

//go:generate mockgen -source=gateway.go -destination=../mock/gateway_mock.go -package=mock

// Reader exposes reads of current state.
type Reader interface {
	VaultInfo(ctx context.Context, id common.Address) (vault.Info, error)
	MatchInfo(ctx context.Context, id uint64) (match.Record, error)
	PresenceScore(ctx context.Context, id common.Address) (uint64, error)
}

// Gateway is the full store contract: reads, dry runs and commits.
//
// Simulate must have no side effects. Submit returns a durable transaction
// reference once the store accepted the call.
type Gateway interface {
	Reader
	Simulate(ctx context.Context, cred *Credential, call Call) error
	Submit(ctx context.Context, cred *Credential, call Call) (string, error)
	Ping(ctx context.Context) error
}
