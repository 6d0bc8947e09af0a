// Package partycall admits ledger calls signed by a vault party. The local
// ledger has no transaction pool, so a party reaches it through the service
// with an EIP-191 signed payload and the recovered signer becomes the caller.
//
// Only the calls a party makes on its own behalf are admitted: approving the
// factory to take a token, creating a vault and the two approvals.
package partycall

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/logger"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxValidity bounds how far in the future ExpiresAt may lie.
const MaxValidity = 10 * time.Minute

var (
	ErrBadSignature = failure.New(failure.KindUnauthorized, "invalid party signature")
	ErrExpired      = failure.New(failure.KindUnauthorized, "party call outside its validity window")
	ErrNotPartyCall = failure.New(failure.KindForbidden, "operation not open to parties")
)

var partyOps = map[string]bool{
	gateway.EntityExperienceNFT + "." + gateway.OpApprove:    true,
	gateway.EntityVaultFactory + "." + gateway.OpCreateVault: true,
	gateway.EntityVault + "." + gateway.OpApproveRedemption:  true,
	gateway.EntityVault + "." + gateway.OpApproveDissolution: true,
}

// Call is the signed document.
type Call struct {
	Target        string `json:"targetEntity"`
	TargetAddress string `json:"targetAddress,omitempty"`
	Operation     string `json:"operationName"`
	Args          []any  `json:"operationArgs"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// Envelope carries the exact signed bytes next to the signature, so the
// server never re-encodes before verifying.
type Envelope struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type Result struct {
	Caller common.Address
	TxRef  string
}

// Sign encodes c and signs it as key's owner.
func Sign(key *ecdsa.PrivateKey, c Call) (Envelope, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, err
	}
	sig, err := crypto.Sign(accounts.TextHash(raw), key)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Payload: string(raw), Signature: hexutil.Encode(sig)}, nil
}

// Recover returns the address that signed env.Payload. Wallet-style
// signatures with v in {27, 28} are accepted.
func Recover(env Envelope) (common.Address, error) {
	sig, err := hexutil.Decode(env.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(env.Payload)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

type Option func(*Service)

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service verifies envelopes and submits them as their signer.
type Service struct {
	gw  gateway.Gateway
	log *logger.Logger
	now func() time.Time
}

func NewService(gw gateway.Gateway, opts ...Option) *Service {
	s := &Service{gw: gw, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Submit(ctx context.Context, env Envelope) (Result, error) {
	signer, err := Recover(env)
	if err != nil {
		return Result{}, err
	}
	log := s.log.With().Str("caller", signer.Hex()).Logger()

	c, err := decode(env.Payload)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	expires := time.Unix(c.ExpiresAt, 0)
	if c.ExpiresAt == 0 || now.After(expires) || expires.Sub(now) > MaxValidity {
		log.Warn().Int64("expires_at", c.ExpiresAt).Msg("party call rejected: validity window")
		return Result{}, ErrExpired
	}
	if !partyOps[c.Target+"."+c.Operation] {
		log.Warn().Str("target", c.Target).Str("operation", c.Operation).Msg("party call rejected: operation")
		return Result{}, fmt.Errorf("%s.%s: %w", c.Target, c.Operation, ErrNotPartyCall)
	}

	call := gateway.Call{Target: c.Target, Method: c.Operation, Args: c.Args}
	if c.TargetAddress != "" {
		if !common.IsHexAddress(c.TargetAddress) {
			return Result{}, failure.New(failure.KindInvalidArgument, "targetAddress is not a hex address")
		}
		call.Address = common.HexToAddress(c.TargetAddress)
	}
	if err := call.CheckAddress(); err != nil {
		return Result{}, err
	}

	cred := gateway.NewAddressCredential(signer)
	if err := s.gw.Simulate(ctx, cred, call); err != nil {
		log.Info().Err(err).Str("call", call.String()).Msg("party call simulation failed")
		return Result{}, failure.Wrap(failure.KindSimulationFailed, "simulate "+call.String(), err)
	}
	ref, err := s.gw.Submit(ctx, cred, call)
	if err != nil {
		log.Error().Err(err).Str("call", call.String()).Msg("party call submission failed")
		return Result{}, failure.Wrap(failure.KindSubmissionFailed, "submit "+call.String(), err)
	}
	log.Info().Str("call", call.String()).Str("tx_ref", ref).Msg("party call committed")
	return Result{Caller: signer, TxRef: ref}, nil
}

func decode(payload string) (Call, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var c Call
	if err := dec.Decode(&c); err != nil {
		return Call{}, failure.Wrap(failure.KindInvalidArgument, "invalid party call payload", err)
	}
	if c.Target == "" || c.Operation == "" {
		return Call{}, failure.New(failure.KindInvalidArgument, "targetEntity and operationName are required")
	}
	return c, nil
}
