// Package config loads service settings from the environment, contract
// addresses from deployments.json and the dispatch allow-list from YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"commitvault/internal/dispatch"
	"commitvault/internal/gateway"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	ModeLocal = "local"
	ModeRPC   = "rpc"

	AuthJWT    = "jwt"
	AuthLegacy = "legacy"
)

var (
	ErrInvalidChainConfig    = errors.New("invalid chain configuration")
	ErrInvalidDispatchConfig = errors.New("invalid dispatch configuration")
	ErrInvalidDeployment     = errors.New("invalid deployment file")
	ErrInvalidAllowList      = errors.New("invalid allow-list")
)

// AppConfig is the merged configuration. Deployment and AllowList come from
// files named by the environment.
type AppConfig struct {
	Service  Service  `envPrefix:"SERVICE_"`
	Chain    Chain    `envPrefix:"CHAIN_"`
	Dispatch Dispatch `envPrefix:"DISPATCH_"`
	Relayer  Relayer  `envPrefix:"RELAYER_"`
	Storage  Storage  `envPrefix:"STORAGE_"`

	DeploymentsPath string `env:"DEPLOYMENTS_PATH" envDefault:"deployments.json"`

	Deployment DeploymentConfig
	AllowList  map[string][]string
}

type Service struct {
	Addr              string        `env:"ADDR" envDefault:":3000"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	ClockSkew         time.Duration `env:"CLOCK_SKEW" envDefault:"60s"`
	IdempotencyWindow time.Duration `env:"IDEMPOTENCY_WINDOW" envDefault:"24h"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Chain struct {
	// Mode selects the in-process ledger (local) or a JSON-RPC node (rpc).
	Mode           string        `env:"MODE" envDefault:"local"`
	RPCURL         string        `env:"RPC_URL"`
	AdminKey       string        `env:"ADMIN_KEY"`
	WaitMined      bool          `env:"WAIT_MINED" envDefault:"true"`
	ReceiptTimeout time.Duration `env:"RECEIPT_TIMEOUT" envDefault:"2m"`
	StartBlock     uint64        `env:"START_BLOCK"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
}

type Dispatch struct {
	AuthMode      string        `env:"AUTH_MODE" envDefault:"jwt"`
	Secret        string        `env:"SECRET"`
	TokenIssuer   string        `env:"TOKEN_ISSUER" envDefault:"commitvault"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"5m"`
	AllowListPath string        `env:"ALLOWLIST_PATH"`
}

type Relayer struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	Interval     time.Duration `env:"INTERVAL" envDefault:"15s"`
	Cooldown     time.Duration `env:"COOLDOWN" envDefault:"30s"`
	Concurrency  int           `env:"CONCURRENCY" envDefault:"4"`
	CheckTimeout time.Duration `env:"CHECK_TIMEOUT" envDefault:"2m"`
}

type Storage struct {
	// JournalPath selects the JSON-lines journal when DatabaseDSN is empty.
	// With neither set the ledger is kept in memory only.
	JournalPath     string `env:"JOURNAL_PATH"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	IdempotencyPath string `env:"IDEMPOTENCY_PATH"`
	DeadLetterPath  string `env:"DEAD_LETTER_PATH"`
}

// DeploymentConfig represents deployments.json.
type DeploymentConfig struct {
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Admin     string `json:"admin"`
	Contracts struct {
		ProofOfMatch           string `json:"ProofOfMatch"`
		MatchData              string `json:"MatchData"`
		ExperienceNFT          string `json:"ExperienceNFT"`
		CommitmentVaultFactory string `json:"CommitmentVaultFactory"`
		PresenceScore          string `json:"PresenceScore"`
	} `json:"contracts"`
}

// Addresses converts the contract table. Empty entries stay zero; malformed
// ones are an error.
func (d DeploymentConfig) Addresses() (gateway.Addresses, error) {
	var out gateway.Addresses
	fields := []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{gateway.EntityProofOfMatch, d.Contracts.ProofOfMatch, &out.ProofOfMatch},
		{gateway.EntityMatchData, d.Contracts.MatchData, &out.MatchData},
		{gateway.EntityExperienceNFT, d.Contracts.ExperienceNFT, &out.ExperienceNFT},
		{gateway.EntityVaultFactory, d.Contracts.CommitmentVaultFactory, &out.VaultFactory},
		{gateway.EntityPresenceScore, d.Contracts.PresenceScore, &out.PresenceScore},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if !common.IsHexAddress(f.raw) {
			return gateway.Addresses{}, fmt.Errorf("%w: %s address %q", ErrInvalidDeployment, f.name, f.raw)
		}
		*f.dst = common.HexToAddress(f.raw)
	}
	return out, nil
}

// AdminAddress is the administrative identity named by the file.
func (d DeploymentConfig) AdminAddress() (common.Address, error) {
	if !common.IsHexAddress(d.Admin) {
		return common.Address{}, fmt.Errorf("%w: admin %q", ErrInvalidDeployment, d.Admin)
	}
	return common.HexToAddress(d.Admin), nil
}

// Load aggregates configuration from the environment and disk.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}

	deployment, err := LoadDeployments(cfg.DeploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}
	cfg.Deployment = *deployment

	cfg.AllowList = dispatch.DefaultAllowListMap()
	if cfg.Dispatch.AllowListPath != "" {
		if cfg.AllowList, err = LoadAllowList(cfg.Dispatch.AllowListPath); err != nil {
			return nil, fmt.Errorf("load allow-list: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeployment, err)
	}
	return &cfg, nil
}

// LoadAllowList reads an entity -> operations mapping. An entity listed with
// no operations is kept and permits nothing.
func LoadAllowList(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string][]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAllowList, err)
	}
	for entity, ops := range m {
		if entity == "" {
			return nil, fmt.Errorf("%w: empty entity name", ErrInvalidAllowList)
		}
		for _, op := range ops {
			if op == "" {
				return nil, fmt.Errorf("%w: empty operation under %s", ErrInvalidAllowList, entity)
			}
		}
		if ops == nil {
			m[entity] = []string{}
		}
	}
	return m, nil
}

func (cfg *AppConfig) validate() error {
	switch cfg.Chain.Mode {
	case ModeLocal:
	case ModeRPC:
		if cfg.Chain.RPCURL == "" || cfg.Chain.AdminKey == "" {
			return fmt.Errorf("%w: rpc mode needs CHAIN_RPC_URL and CHAIN_ADMIN_KEY", ErrInvalidChainConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidChainConfig, cfg.Chain.Mode)
	}

	switch cfg.Dispatch.AuthMode {
	case AuthJWT, AuthLegacy:
	default:
		return fmt.Errorf("%w: unknown auth mode %q", ErrInvalidDispatchConfig, cfg.Dispatch.AuthMode)
	}
	if cfg.Dispatch.Secret == "" {
		return fmt.Errorf("%w: DISPATCH_SECRET is required", ErrInvalidDispatchConfig)
	}

	addrs, err := cfg.Deployment.Addresses()
	if err != nil {
		return err
	}
	if addrs.VaultFactory == (common.Address{}) || addrs.ExperienceNFT == (common.Address{}) {
		return fmt.Errorf("%w: CommitmentVaultFactory and ExperienceNFT are required", ErrInvalidDeployment)
	}
	if cfg.Chain.Mode == ModeLocal && cfg.Chain.AdminKey == "" {
		if _, err := cfg.Deployment.AdminAddress(); err != nil {
			return err
		}
	}
	return nil
}
