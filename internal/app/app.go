// Package app wires configuration into stores and the orchestrator.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fee-reinvestor/internal/activity"
	"fee-reinvestor/internal/config"
	"fee-reinvestor/internal/orchestrator"
	"fee-reinvestor/internal/solana"
	"fee-reinvestor/internal/storage"
	chstore "fee-reinvestor/internal/storage/clickhouse"
	"fee-reinvestor/internal/storage/memory"
	"fee-reinvestor/internal/storage/migrations"
	pgstore "fee-reinvestor/internal/storage/postgres"
	"fee-reinvestor/internal/venue"
	"fee-reinvestor/internal/watcher"
)

// Stores holds all storage implementations.
type Stores struct {
	Wallets  storage.WalletRegistry
	Tokens   storage.TokenDirectory
	Activity storage.ActivityStore
	Runs     storage.RunStore

	closers []func()
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// MemoryStores returns empty in-memory stores.
func MemoryStores() *Stores {
	return &Stores{
		Wallets:  memory.NewWalletStore(),
		Tokens:   memory.NewTokenStore(),
		Activity: memory.NewActivityStore(),
		Runs:     memory.NewRunStore(),
	}
}

// OpenStores connects the configured databases and applies migrations.
// Without a ClickHouse DSN run history is kept in memory.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if cfg.UseMemory {
		logger.Warn("using in-memory storage, state is lost on exit")
		return MemoryStores(), nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	stores := &Stores{closers: []func(){pool.Close}}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		stores.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	stores.Wallets = pgstore.NewWalletStore(pool)
	stores.Tokens = pgstore.NewTokenStore(pool)
	stores.Activity = pgstore.NewActivityStore(pool)

	if cfg.ClickhouseDSN == "" {
		logger.Info("CLICKHOUSE_DSN not set, run history kept in memory")
		stores.Runs = memory.NewRunStore()
		return stores, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.closers = append(stores.closers, func() { _ = conn.Close() })
	stores.Runs = chstore.NewRunStore(conn)

	return stores, nil
}

// NewOrchestrator builds the ledger, venue and watcher clients and the
// orchestrator over stores. The returned func closes the notifier.
func NewOrchestrator(ctx context.Context, cfg *config.Config, stores *Stores, logger *zap.Logger) (*orchestrator.Orchestrator, func(), error) {
	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithMaxRetries(cfg.RPCMaxRetries),
		solana.WithRPCLogger(logger))
	if _, err := rpc.GetSlot(ctx); err != nil {
		return nil, nil, fmt.Errorf("probe rpc %s: %w", cfg.RPCURL, err)
	}

	cleanup := func() {}
	var opts []watcher.Option
	opts = append(opts, watcher.WithLogger(logger))

	if cfg.WSURL != "" {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Commitment
		wsCfg.Logger = logger
		ws, err := solana.NewWSClient(ctx, cfg.WSURL, &wsCfg)
		if err != nil {
			// The watcher keeps polling without a notifier.
			logger.Warn("account notifications disabled", zap.Error(err))
		} else {
			opts = append(opts, watcher.WithNotifier(ws))
			cleanup = func() { _ = ws.Close() }
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		Wallets:    stores.Wallets,
		Tokens:     stores.Tokens,
		Runs:       stores.Runs,
		Venue:      venue.NewClient(cfg.Venue, logger),
		Balances:   watcher.New(rpc, cfg.Watcher, opts...),
		Activity:   activity.NewLogger(stores.Activity, logger),
		Policy:     cfg.Policy,
		GroupSize:  cfg.GroupSize,
		GroupPause: cfg.GroupPause,
		Logger:     logger,
	})
	return orch, cleanup, nil
}
