// Package server exposes the dispatcher, the relayer and the ledger reads
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"commitvault/internal/deadletter"
	"commitvault/internal/gateway"
	"commitvault/internal/hmacauth"
	"commitvault/internal/idempotency"
	"commitvault/internal/logger"
	"commitvault/internal/partycall"
	"commitvault/internal/relayer"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Addr              string
	IdempotencyWindow time.Duration
	WebhookSecret     string
	ClockSkew         time.Duration
}

// Checker runs one execution check for a vault.
type Checker interface {
	Check(ctx context.Context, id common.Address) (relayer.Outcome, error)
}

// PartySubmitter commits calls signed by a vault party.
type PartySubmitter interface {
	Submit(ctx context.Context, env partycall.Envelope) (partycall.Result, error)
}

// Deps are the components the handlers call. Health checks are optional;
// the party route is mounted only when Parties is set.
type Deps struct {
	Dispatcher  relayer.Dispatcher
	Relayer     Checker
	Reader      gateway.Reader
	Parties     PartySubmitter
	Idempotency idempotency.Store
	DeadLetters *deadletter.Queue
	Metrics     *Metrics
	Logger      *logger.Logger
	RPCHealth   func(context.Context) error
	DBHealth    func(context.Context) error
}

type Server struct {
	cfg        Config
	deps       Deps
	log        *logger.Logger
	metrics    *Metrics
	guard      *idempotency.Guard
	hmac       *hmacauth.Verifier
	httpServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Idempotency == nil {
		deps.Idempotency = idempotency.NewMemoryStore()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.Named("http"),
		metrics: deps.Metrics,
		guard:   idempotency.NewGuard(deps.Idempotency, cfg.IdempotencyWindow),
		hmac: &hmacauth.Verifier{
			Secret:  cfg.WebhookSecret,
			MaxSkew: cfg.ClockSkew,
		},
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
