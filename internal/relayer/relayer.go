// Package relayer finalizes vaults whose approvals are complete. It reads
// the vault, decides which finalizing call applies and sends it through the
// dispatcher; redemption is checked before dissolution.
package relayer

import (
	"context"
	"errors"
	"sync"
	"time"

	"commitvault/internal/deadletter"
	"commitvault/internal/dispatch"
	"commitvault/internal/failure"
	"commitvault/internal/gateway"
	"commitvault/internal/logger"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Action string

const (
	ActionNone     Action = "none"
	ActionRedeem   Action = gateway.OpExecuteRedemption
	ActionDissolve Action = gateway.OpExecuteDissolution
)

// Outcome of one check. Resolved means the vault is terminal or a finalizing
// call for it was accepted.
type Outcome struct {
	VaultID  common.Address `json:"vaultId"`
	Action   Action         `json:"action"`
	TxRef    string         `json:"transactionRef,omitempty"`
	Resolved bool           `json:"resolved"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, token string, req dispatch.Request) (dispatch.Result, error)
}

type Metrics interface {
	ObserveRelay(action, outcome string)
}

// DeadLetters receives finalizing calls whose submission failed.
type DeadLetters interface {
	Write(l deadletter.Letter) error
}

type nopMetrics struct{}

func (nopMetrics) ObserveRelay(string, string) {}

const (
	subject = "relayer"

	OutcomeSubmitted = "submitted"
	OutcomeResolved  = "resolved"
	OutcomeIdle      = "idle"
	OutcomeError     = "error"
)

type Config struct {
	// Interval between sweeps of watched vaults.
	Interval time.Duration
	// Cooldown skips a vault in sweeps after a finalizing attempt, leaving
	// time for a pending transaction to land.
	Cooldown time.Duration
	// Concurrency bounds parallel checks in one sweep.
	Concurrency int
	TokenTTL    time.Duration
	// CheckTimeout bounds one shared check, independent of the callers
	// waiting on it.
	CheckTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Minute
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 2 * time.Minute
	}
	return c
}

type Option func(*Relayer)

func WithMetrics(m Metrics) Option { return func(r *Relayer) { r.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(r *Relayer) { r.log = l } }

func WithClock(now func() time.Time) Option { return func(r *Relayer) { r.now = now } }

func WithDeadLetters(dl DeadLetters) Option { return func(r *Relayer) { r.dead = dl } }

type Relayer struct {
	reader  gateway.Reader
	disp    Dispatcher
	tokens  dispatch.Issuer
	cfg     Config
	metrics Metrics
	log     *logger.Logger
	now     func() time.Time
	dead    DeadLetters

	flight singleflight.Group

	mu      sync.Mutex
	watched map[common.Address]time.Time
	notify  chan common.Address
}

func New(reader gateway.Reader, disp Dispatcher, tokens dispatch.Issuer, cfg Config, opts ...Option) *Relayer {
	r := &Relayer{
		reader:  reader,
		disp:    disp,
		tokens:  tokens,
		cfg:     cfg.withDefaults(),
		metrics: nopMetrics{},
		log:     logger.Nop(),
		now:     time.Now,
		watched: make(map[common.Address]time.Time),
		notify:  make(chan common.Address, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Watch adds id to the sweep set.
func (r *Relayer) Watch(id common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watched[id]; !ok {
		r.watched[id] = time.Time{}
	}
}

// Notify asks Run to check id soon. It never blocks; a full queue falls back
// to the next sweep.
func (r *Relayer) Notify(id common.Address) {
	r.Watch(id)
	select {
	case r.notify <- id:
	default:
	}
}

// Watched returns the number of vaults in the sweep set.
func (r *Relayer) Watched() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watched)
}

// Check reads vault id and sends the finalizing call that applies, if any.
// Concurrent checks of the same vault share one execution. That execution
// does not inherit the caller's cancellation: a caller that gives up returns
// ctx.Err() while the others still get the result.
func (r *Relayer) Check(ctx context.Context, id common.Address) (Outcome, error) {
	ch := r.flight.DoChan(id.Hex(), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CheckTimeout)
		defer cancel()
		return r.check(shared, id)
	})
	select {
	case res := <-ch:
		return res.Val.(Outcome), res.Err
	case <-ctx.Done():
		return Outcome{VaultID: id, Action: ActionNone}, ctx.Err()
	}
}

func (r *Relayer) check(ctx context.Context, id common.Address) (Outcome, error) {
	out := Outcome{VaultID: id, Action: ActionNone}
	log := r.log.With().Str("vault", id.Hex()).Logger()

	info, err := r.reader.VaultInfo(ctx, id)
	if err != nil {
		r.metrics.ObserveRelay(string(ActionNone), OutcomeError)
		return out, err
	}
	if !info.Active() {
		out.Resolved = true
		r.metrics.ObserveRelay(string(ActionNone), OutcomeResolved)
		return out, nil
	}

	switch {
	case info.CanRedeem():
		out.Action = ActionRedeem
	case info.CanDissolve():
		out.Action = ActionDissolve
	default:
		r.metrics.ObserveRelay(string(ActionNone), OutcomeIdle)
		return out, nil
	}

	token, err := r.tokens.Issue(subject, r.cfg.TokenTTL)
	if err != nil {
		r.metrics.ObserveRelay(string(out.Action), OutcomeError)
		return out, failure.Wrap(failure.KindInternal, "issue relayer token", err)
	}
	res, err := r.disp.Dispatch(ctx, token, dispatch.Request{
		Target:        gateway.EntityVault,
		TargetAddress: id,
		Operation:     string(out.Action),
	})
	if err != nil {
		if errors.Is(err, vault.ErrAlreadyFinalized) {
			log.Info().Str("action", string(out.Action)).Msg("vault finalized concurrently")
			r.metrics.ObserveRelay(string(out.Action), OutcomeResolved)
			return Outcome{VaultID: id, Action: ActionNone, Resolved: true}, nil
		}
		log.Error().Err(err).Str("action", string(out.Action)).Str("kind", string(failure.KindOf(err))).Msg("finalize failed")
		r.metrics.ObserveRelay(string(out.Action), OutcomeError)
		if failure.KindOf(err) == failure.KindSubmissionFailed && r.dead != nil {
			letter := deadletter.Letter{
				Timestamp: r.now().UTC(),
				VaultID:   id.Hex(),
				Action:    string(out.Action),
				Kind:      string(failure.KindSubmissionFailed),
				Error:     err.Error(),
			}
			if werr := r.dead.Write(letter); werr != nil {
				log.Error().Err(werr).Msg("write dead letter")
			}
		}
		return out, err
	}

	log.Info().Str("action", string(out.Action)).Str("tx_ref", res.TxRef).Msg("finalize submitted")
	r.metrics.ObserveRelay(string(out.Action), OutcomeSubmitted)
	out.TxRef = res.TxRef
	out.Resolved = true
	return out, nil
}

func (r *Relayer) due() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	ids := make([]common.Address, 0, len(r.watched))
	for id, notBefore := range r.watched {
		if !now.Before(notBefore) {
			ids = append(ids, id)
		}
	}
	return ids
}

// settle updates the sweep set after a check of id.
func (r *Relayer) settle(id common.Address, out Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case errors.Is(err, vault.ErrNotFound):
		delete(r.watched, id)
	case err == nil && out.Resolved && out.TxRef == "":
		delete(r.watched, id)
	case out.Action != ActionNone:
		// a finalizing call was sent or failed to send; re-read only after
		// the cooldown
		r.watched[id] = r.now().Add(r.cfg.Cooldown)
	}
}

// Sweep checks every due vault once.
func (r *Relayer) Sweep(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, id := range r.due() {
		g.Go(func() error {
			out, err := r.Check(ctx, id)
			r.settle(id, out, err)
			return nil
		})
	}
	_ = g.Wait()
}

// Run sweeps on every tick and checks notified vaults immediately until ctx
// is done.
func (r *Relayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("relayer started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("relayer stopped")
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		case id := <-r.notify:
			out, err := r.Check(ctx, id)
			r.settle(id, out, err)
		}
	}
}
