// Package app wires configuration into a running service: the ledger or
// chain gateway, the dispatcher, the relayer and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"commitvault/internal/config"
	"commitvault/internal/deadletter"
	"commitvault/internal/dispatch"
	"commitvault/internal/gateway"
	"commitvault/internal/idempotency"
	"commitvault/internal/journal"
	"commitvault/internal/ledger"
	"commitvault/internal/logger"
	"commitvault/internal/partycall"
	"commitvault/internal/relayer"
	"commitvault/internal/server"
	"commitvault/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

type tokenAuth interface {
	dispatch.Authenticator
	dispatch.Issuer
}

type App struct {
	cfg *config.AppConfig
	log *logger.Logger

	Gateway    gateway.Gateway
	Ledger     *ledger.Ledger
	Dispatcher *dispatch.Dispatcher
	Relayer    *relayer.Relayer
	Server     *server.Server

	follow  relayer.CreatedSource
	closers []func()
}

// New builds every component. On error, whatever was opened is closed.
func New(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	addrs, err := cfg.Deployment.Addresses()
	if err != nil {
		return nil, err
	}
	cred, err := credential(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.Storage.DatabaseDSN != "" {
		if db, err = openDatabase(ctx, cfg.Storage.DatabaseDSN); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
	}

	switch cfg.Chain.Mode {
	case config.ModeRPC:
		eth, err := gateway.DialEthGateway(ctx, gateway.EthConfig{
			RPCURL:         cfg.Chain.RPCURL,
			Addresses:      addrs,
			WaitMined:      cfg.Chain.WaitMined,
			ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.Gateway = eth
		a.follow = eth
	default:
		j, err := a.openJournal(db)
		if err != nil {
			return nil, err
		}
		l, err := ledger.Open(ctx, ledger.Config{Owner: cred.Address(), Addresses: addrs}, j, log.Named("ledger"))
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		a.Gateway = l
		a.Ledger = l
	}

	auth, err := authenticator(cfg, log)
	if err != nil {
		return nil, err
	}

	metrics := server.NewMetrics()
	a.Dispatcher = dispatch.New(auth, dispatch.NewAllowList(cfg.AllowList), a.Gateway, cred,
		dispatch.WithMetrics(metrics),
		dispatch.WithLogger(log.Named("dispatch")),
	)

	dead := deadletter.NewQueue(cfg.Storage.DeadLetterPath)
	a.Relayer = relayer.New(a.Gateway, a.Dispatcher, auth, relayer.Config{
		Interval:     cfg.Relayer.Interval,
		Cooldown:     cfg.Relayer.Cooldown,
		Concurrency:  cfg.Relayer.Concurrency,
		TokenTTL:     cfg.Dispatch.TokenTTL,
		CheckTimeout: cfg.Relayer.CheckTimeout,
	},
		relayer.WithMetrics(metrics),
		relayer.WithLogger(log.Named("relayer")),
		relayer.WithDeadLetters(dead),
	)
	metrics.WatchGauge(a.Relayer.Watched)
	if a.Ledger != nil {
		a.watchLedger()
	}

	store, err := a.openIdempotency(ctx)
	if err != nil {
		return nil, err
	}

	deps := server.Deps{
		Dispatcher:  a.Dispatcher,
		Relayer:     a.Relayer,
		Reader:      a.Gateway,
		Idempotency: store,
		DeadLetters: dead,
		Metrics:     metrics,
		Logger:      log,
		RPCHealth:   a.Gateway.Ping,
	}
	if db != nil {
		deps.DBHealth = db.PingContext
	}
	if a.Ledger != nil {
		deps.Parties = partycall.NewService(a.Ledger, partycall.WithLogger(log.Named("partycall")))
	}
	a.Server = server.New(server.Config{
		Addr:              cfg.Service.Addr,
		IdempotencyWindow: cfg.Service.IdempotencyWindow,
		WebhookSecret:     cfg.Service.WebhookSecret,
		ClockSkew:         cfg.Service.ClockSkew,
	}, deps)

	built = true
	return a, nil
}

func credential(cfg *config.AppConfig) (*gateway.Credential, error) {
	if cfg.Chain.AdminKey != "" {
		cred, err := gateway.NewKeyCredential(cfg.Chain.AdminKey)
		if err != nil {
			return nil, fmt.Errorf("admin key: %w", err)
		}
		return cred, nil
	}
	admin, err := cfg.Deployment.AdminAddress()
	if err != nil {
		return nil, err
	}
	return gateway.NewAddressCredential(admin), nil
}

func authenticator(cfg *config.AppConfig, log *logger.Logger) (tokenAuth, error) {
	if cfg.Dispatch.AuthMode == config.AuthLegacy {
		log.Warn().Msg("legacy dispatch tokens enabled: the shared secret is recoverable from any token")
		return dispatch.NewLegacyAuthenticator(cfg.Dispatch.Secret)
	}
	return dispatch.NewTokenAuthenticator(cfg.Dispatch.Secret, cfg.Dispatch.TokenIssuer)
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *App) openJournal(db *sql.DB) (journal.Journal, error) {
	switch {
	case db != nil:
		return journal.NewPostgresJournal(db), nil
	case a.cfg.Storage.JournalPath != "":
		fj, err := journal.NewFileJournal(a.cfg.Storage.JournalPath, journal.WithLogger(a.log.Named("journal")))
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.closers = append(a.closers, func() { _ = fj.Close() })
		return fj, nil
	default:
		a.log.Warn().Msg("no journal configured: ledger state is lost on restart")
		return journal.NewMemoryJournal(), nil
	}
}

func (a *App) openIdempotency(ctx context.Context) (idempotency.Store, error) {
	switch {
	case a.cfg.Storage.DatabaseDSN != "":
		ps, err := idempotency.NewPostgresStore(ctx, a.cfg.Storage.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		a.closers = append(a.closers, ps.Close)
		return ps, nil
	case a.cfg.Storage.IdempotencyPath != "":
		fs, err := idempotency.NewFileStore(a.cfg.Storage.IdempotencyPath)
		if err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		return fs, nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

// watchLedger feeds ledger events to the relayer: new vaults join the sweep
// set and approvals trigger an immediate check.
func (a *App) watchLedger() {
	for _, id := range a.Ledger.Vaults() {
		a.Relayer.Watch(id)
	}
	unsubscribe := a.Ledger.Subscribe(func(ev ledger.Event) {
		switch ev.Kind {
		case ledger.EventVaultCreated:
			a.Relayer.Watch(ev.Vault)
		case ledger.EventRedemptionApproved, ledger.EventDissolutionApproved:
			a.Relayer.Notify(ev.Vault)
		}
	})
	a.closers = append(a.closers, unsubscribe)
}

// Run serves until ctx is done, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Service.ShutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	if a.cfg.Relayer.Enabled {
		g.Go(func() error { return a.Relayer.Run(ctx) })
		if a.follow != nil {
			g.Go(func() error {
				return a.Relayer.Follow(ctx, a.follow, a.cfg.Chain.StartBlock, a.cfg.Chain.PollInterval)
			})
		}
	}

	return g.Wait()
}

// Close releases storage handles in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
