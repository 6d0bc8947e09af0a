package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"commitvault/internal/asset"
	"commitvault/internal/contracts"
	"commitvault/internal/failure"
	"commitvault/internal/match"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthBackend is the subset of ethclient.Client the gateway needs.
type EthBackend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type EthConfig struct {
	RPCURL         string
	Addresses      Addresses
	WaitMined      bool
	ReceiptTimeout time.Duration
}

// EthGateway talks to the deployed contracts.
type EthGateway struct {
	backend        EthBackend
	chainID        *big.Int
	addrs          Addresses
	abis           map[string]abi.ABI
	waitMined      bool
	receiptTimeout time.Duration
}

var _ Gateway = (*EthGateway)(nil)

// DialEthGateway connects to cfg.RPCURL.
func DialEthGateway(ctx context.Context, cfg EthConfig) (*EthGateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewEthGateway(ctx, cli, cfg)
}

func NewEthGateway(ctx context.Context, backend EthBackend, cfg EthConfig) (*EthGateway, error) {
	if cfg.Addresses.VaultFactory == (common.Address{}) {
		return nil, fmt.Errorf("vault factory address is required")
	}
	abis, err := parseABIs()
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &EthGateway{
		backend:        backend,
		chainID:        chainID,
		addrs:          cfg.Addresses,
		abis:           abis,
		waitMined:      cfg.WaitMined,
		receiptTimeout: timeout,
	}, nil
}

func parseABIs() (map[string]abi.ABI, error) {
	sources := map[string]string{
		EntityProofOfMatch:  contracts.ProofOfMatchABI,
		EntityMatchData:     contracts.MatchDataABI,
		EntityExperienceNFT: contracts.ExperienceNFTABI,
		EntityVaultFactory:  contracts.CommitmentVaultFactoryABI,
		EntityPresenceScore: contracts.PresenceScoreABI,
		EntityVault:         contracts.CommitmentVaultABI,
	}
	out := make(map[string]abi.ABI, len(sources))
	for name, src := range sources {
		parsed, err := abi.JSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse %s abi: %w", name, err)
		}
		out[name] = parsed
	}
	return out, nil
}

func (g *EthGateway) resolve(call Call) (common.Address, abi.ABI, abi.Method, error) {
	parsed, ok := g.abis[call.Target]
	if !ok {
		return common.Address{}, abi.ABI{}, abi.Method{}, failure.New(failure.KindInvalidArgument, "unknown entity "+call.Target)
	}
	method, ok := parsed.Methods[call.Method]
	if !ok {
		return common.Address{}, abi.ABI{}, abi.Method{}, failure.New(failure.KindInvalidArgument, "unknown operation "+call.String())
	}
	if err := call.CheckAddress(); err != nil {
		return common.Address{}, abi.ABI{}, abi.Method{}, err
	}
	addr := call.Address
	if !PerInstance(call.Target) {
		addr, _ = g.addrs.Resolve(call.Target)
	}
	if addr == (common.Address{}) {
		return common.Address{}, abi.ABI{}, abi.Method{}, failure.New(failure.KindInvalidArgument, "no address for "+call.Target)
	}
	return addr, parsed, method, nil
}

// coerce converts normalized arguments to the Go types abi packing expects.
func coerce(method abi.Method, args []any) ([]any, error) {
	norm, _, err := NormalizeArgs(args)
	if err != nil {
		return nil, err
	}
	if err := ArgCount(norm, len(method.Inputs), len(method.Inputs)); err != nil {
		return nil, err
	}
	out := make([]any, len(norm))
	for i, in := range method.Inputs {
		switch in.Type.T {
		case abi.AddressTy:
			out[i], err = ArgAddress(norm, i)
		case abi.StringTy:
			out[i], err = ArgString(norm, i)
		case abi.BoolTy:
			out[i], err = ArgBool(norm, i)
		case abi.UintTy:
			out[i], err = uintArg(norm, i, in.Type.Size)
		default:
			err = failure.New(failure.KindInvalidArgument, fmt.Sprintf("argument %d: unsupported type %s", i, in.Type))
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func uintArg(args []any, i, size int) (any, error) {
	n, err := ArgBig(args, i)
	if err != nil {
		return nil, err
	}
	if n.BitLen() > size {
		return nil, failure.New(failure.KindInvalidArgument, fmt.Sprintf("argument %d: exceeds uint%d", i, size))
	}
	switch size {
	case 8:
		return uint8(n.Uint64()), nil
	case 16:
		return uint16(n.Uint64()), nil
	case 32:
		return uint32(n.Uint64()), nil
	case 64:
		return n.Uint64(), nil
	default:
		return n, nil
	}
}

// revertError keeps the node's revert reason and classifies the ones the
// relayer treats as benign.
func revertError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already finalized") || strings.Contains(msg, "already resolved") {
		return fmt.Errorf("%w: %v", vault.ErrAlreadyFinalized, err)
	}
	return err
}

func (g *EthGateway) Simulate(ctx context.Context, cred *Credential, call Call) error {
	addr, parsed, method, err := g.resolve(call)
	if err != nil {
		return err
	}
	args, err := coerce(method, call.Args)
	if err != nil {
		return err
	}
	data, err := parsed.Pack(method.Name, args...)
	if err != nil {
		return failure.Wrap(failure.KindInvalidArgument, "pack "+call.String(), err)
	}
	msg := ethereum.CallMsg{From: cred.Address(), To: &addr, Data: data}
	if _, err := g.backend.CallContract(ctx, msg, nil); err != nil {
		return revertError(err)
	}
	return nil
}

func (g *EthGateway) Submit(ctx context.Context, cred *Credential, call Call) (string, error) {
	if cred == nil || cred.key == nil {
		return "", fmt.Errorf("credential %v cannot sign", cred)
	}
	addr, parsed, method, err := g.resolve(call)
	if err != nil {
		return "", err
	}
	args, err := coerce(method, call.Args)
	if err != nil {
		return "", err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(cred.key, g.chainID)
	if err != nil {
		return "", fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx

	bound := bind.NewBoundContract(addr, parsed, g.backend, g.backend, g.backend)
	tx, err := bound.Transact(opts, method.Name, args...)
	if err != nil {
		return "", fmt.Errorf("%s tx: %w", call, revertError(err))
	}
	if !g.waitMined {
		return tx.Hash().Hex(), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.receiptTimeout)
	defer cancel()
	receipt, err := WaitForReceipt(waitCtx, g.backend, tx.Hash())
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("%s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber)
	}
	return tx.Hash().Hex(), nil
}

func (g *EthGateway) view(ctx context.Context, entity string, addr common.Address, method string, args ...any) ([]any, error) {
	parsed := g.abis[entity]
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", entity, method, err)
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", entity, method, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", entity, method, err)
	}
	return values, nil
}

func (g *EthGateway) VaultInfo(ctx context.Context, id common.Address) (vault.Info, error) {
	out, err := g.view(ctx, EntityVault, id, "getVaultInfo")
	if err != nil {
		return vault.Info{}, err
	}
	if len(out) != 8 {
		return vault.Info{}, fmt.Errorf("vault %s: %w", id.Hex(), vault.ErrNotFound)
	}
	return vault.Info{
		VaultID:           id,
		PartyA:            out[0].(common.Address),
		PartyB:            out[1].(common.Address),
		IsRedeemed:        out[2].(bool),
		IsDissolved:       out[3].(bool),
		RedeemApprovalB:   out[5].(bool),
		DissolveApprovalA: out[6].(bool),
		DissolveApprovalB: out[7].(bool),
	}, nil
}

type matchDetails struct {
	UserA            common.Address
	UserB            common.Address
	Location         string
	Timestamp        *big.Int
	InteractionCount *big.Int
	Level            uint8
}

func (g *EthGateway) MatchInfo(ctx context.Context, id uint64) (match.Record, error) {
	out, err := g.view(ctx, EntityMatchData, g.addrs.MatchData, "getMatchDetails", new(big.Int).SetUint64(id))
	if err != nil {
		return match.Record{}, err
	}
	if len(out) != 1 {
		return match.Record{}, fmt.Errorf("match %d: %w", id, match.ErrNotFound)
	}
	d := *abi.ConvertType(out[0], new(matchDetails)).(*matchDetails)
	if d.UserA == (common.Address{}) {
		return match.Record{}, fmt.Errorf("match %d: %w", id, match.ErrNotFound)
	}
	return match.Record{
		ID:               id,
		PartyA:           d.UserA,
		PartyB:           d.UserB,
		Label:            d.Location,
		CreatedAt:        time.Unix(d.Timestamp.Int64(), 0).UTC(),
		InteractionCount: d.InteractionCount.Uint64(),
		Level:            d.Level,
	}, nil
}

func (g *EthGateway) PresenceScore(ctx context.Context, id common.Address) (uint64, error) {
	out, err := g.view(ctx, EntityPresenceScore, g.addrs.PresenceScore, "getPresenceScore", id)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, nil
	}
	score, ok := out[0].(*big.Int)
	if !ok || !score.IsUint64() {
		return 0, fmt.Errorf("presence score for %s out of range", id.Hex())
	}
	return score.Uint64(), nil
}

// Head returns the latest block number.
func (g *EthGateway) Head(ctx context.Context) (uint64, error) {
	return g.backend.BlockNumber(ctx)
}

// VaultsCreated returns the factory's creation events in [from, to].
func (g *EthGateway) VaultsCreated(ctx context.Context, from, to uint64) ([]vault.Created, error) {
	ev := g.abis[EntityVaultFactory].Events["VaultCreated"]
	logs, err := g.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{g.addrs.VaultFactory},
		Topics:    [][]common.Hash{{ev.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter VaultCreated: %w", err)
	}

	out := make([]vault.Created, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) != 4 {
			continue
		}
		values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) != 3 {
			return nil, fmt.Errorf("decode VaultCreated in %s: %v", l.TxHash.Hex(), err)
		}
		matchID, _ := values[0].(*big.Int)
		collection, _ := values[1].(common.Address)
		tokenID, _ := values[2].(*big.Int)
		if matchID == nil || tokenID == nil {
			return nil, fmt.Errorf("decode VaultCreated in %s: bad fields", l.TxHash.Hex())
		}
		out = append(out, vault.Created{
			VaultID:      common.BytesToAddress(l.Topics[1].Bytes()),
			MatchID:      matchID.Uint64(),
			Creator:      common.BytesToAddress(l.Topics[2].Bytes()),
			Counterparty: common.BytesToAddress(l.Topics[3].Bytes()),
			Asset:        asset.Ref{Collection: collection, TokenID: tokenID.Uint64()},
		})
	}
	return out, nil
}

func (g *EthGateway) Ping(ctx context.Context) error {
	_, err := g.backend.BlockNumber(ctx)
	return err
}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt polls until the transaction is mined or ctx is done.
func WaitForReceipt(ctx context.Context, client receiptReader, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
