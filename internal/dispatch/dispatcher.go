// Package dispatch is the single boundary through which privileged
// operations reach the ledger. A request is authenticated, checked against
// the allow-list, simulated, and only then submitted with the administrative
// credential.
package dispatch

import (
	"context"
	"fmt"

	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/logger"

	"github.com/ethereum/go-ethereum/common"
)

var ErrForbidden = failure.New(failure.KindForbidden, "operation not permitted")

// Request names one operation on one entity. TargetAddress selects the
// instance for per-instance entities and must be zero for singletons.
type Request struct {
	Target        string
	TargetAddress common.Address
	Operation     string
	Args          []any
}

func (r Request) call() gateway.Call {
	return gateway.Call{Target: r.Target, Address: r.TargetAddress, Method: r.Operation, Args: r.Args}
}

type Result struct {
	TxRef string
}

// Metrics receives one observation per dispatch.
type Metrics interface {
	ObserveDispatch(target, operation, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDispatch(string, string, string) {}

const (
	OutcomeOK               = "ok"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeForbidden        = "forbidden"
	OutcomeInvalid          = "invalid"
	OutcomeSimulationFailed = "simulation_failed"
	OutcomeSubmissionFailed = "submission_failed"
)

type Option func(*Dispatcher)

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher holds the administrative credential. Nothing else in the
// process submits with it.
type Dispatcher struct {
	auth    Authenticator
	allow   AllowList
	gw      gateway.Gateway
	cred    *gateway.Credential
	metrics Metrics
	log     *logger.Logger
}

func New(auth Authenticator, allow AllowList, gw gateway.Gateway, cred *gateway.Credential, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		auth:    auth,
		allow:   allow,
		gw:      gw,
		cred:    cred,
		metrics: nopMetrics{},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one privileged operation. Errors carry their full cause for
// logging; callers facing the network should expose only the kind.
func (d *Dispatcher) Dispatch(ctx context.Context, token string, req Request) (Result, error) {
	log := d.log.With().Str("target", req.Target).Str("operation", req.Operation).Logger()
	if req.TargetAddress != (common.Address{}) {
		log = log.With().Str("target_address", req.TargetAddress.Hex()).Logger()
	}

	principal, err := d.auth.Authenticate(token)
	if err != nil {
		log.Warn().Err(err).Msg("dispatch rejected: authentication")
		d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeUnauthorized)
		return Result{}, failure.Wrap(failure.KindUnauthorized, "authenticate", err)
	}
	log = log.With().Str("principal", principal.Subject).Logger()

	if !d.allow.Allows(req.Target, req.Operation) {
		log.Warn().Msg("dispatch rejected: not in allow-list")
		d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeForbidden)
		return Result{}, fmt.Errorf("%s.%s: %w", req.Target, req.Operation, ErrForbidden)
	}

	call := req.call()
	if err := call.CheckAddress(); err != nil {
		log.Warn().Err(err).Msg("dispatch rejected: target address")
		d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeInvalid)
		return Result{}, err
	}
	if err := d.gw.Simulate(ctx, d.cred, call); err != nil {
		log.Info().Err(err).Str("kind", string(failure.KindOf(err))).Msg("dispatch simulation failed")
		d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeSimulationFailed)
		return Result{}, failure.Wrap(failure.KindSimulationFailed, "simulate "+call.String(), err)
	}

	ref, err := d.gw.Submit(ctx, d.cred, call)
	if err != nil {
		log.Error().Err(err).Msg("dispatch submission failed")
		d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeSubmissionFailed)
		return Result{}, failure.Wrap(failure.KindSubmissionFailed, "submit "+call.String(), err)
	}

	log.Info().Str("tx_ref", ref).Msg("dispatched")
	d.metrics.ObserveDispatch(req.Target, req.Operation, OutcomeOK)
	return Result{TxRef: ref}, nil
}
