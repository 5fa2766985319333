// Package orchestrator runs passes over the wallet fleet.
// A pass: load wallets and tokens → collector pipeline (collector mode) →
// process wallets in groups → aggregate → consolidated collector buy
// (collector mode) → run history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fee-reinvestor/internal/activity"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/pipeline"
	"fee-reinvestor/internal/storage"
	"fee-reinvestor/internal/venue"
	"fee-reinvestor/internal/watcher"
)

// ErrConfiguration is returned when a pass cannot start with the given settings.
var ErrConfiguration = pipeline.ErrConfiguration

// Balances reads and watches wallet balances, including settlement of
// collector transfers.
type Balances interface {
	pipeline.Balances
	AwaitAtLeast(ctx context.Context, address string, want uint64) watcher.Settlement
}

// Orchestrator coordinates passes.
type Orchestrator struct {
	// Stores
	wallets storage.WalletRegistry
	tokens  storage.TokenDirectory
	runs    storage.RunStore

	// Clients
	venue    venue.Venue
	balances Balances
	activity *activity.Logger

	// Configs
	policy     pipeline.Config
	groupSize  int
	groupPause time.Duration

	logger *zap.Logger
	now    func() time.Time

	inFlight atomic.Int32
	lastMu   sync.RWMutex
	last     *domain.PassSummary
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	Wallets storage.WalletRegistry
	Tokens  storage.TokenDirectory
	// Optional run history
	Runs storage.RunStore

	// Required clients
	Venue    venue.Venue
	Balances Balances
	Activity *activity.Logger

	// Policy. CollectorAddress is resolved per pass and ignored here.
	Policy pipeline.Config

	GroupSize  int           // wallets processed concurrently (default 10)
	GroupPause time.Duration // pause between groups, zero for none

	Logger *zap.Logger
	Now    func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.GroupSize <= 0 {
		opts.GroupSize = 10
	}
	if opts.GroupPause < 0 {
		opts.GroupPause = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		wallets:    opts.Wallets,
		tokens:     opts.Tokens,
		runs:       opts.Runs,
		venue:      opts.Venue,
		balances:   opts.Balances,
		activity:   opts.Activity,
		policy:     opts.Policy,
		groupSize:  opts.GroupSize,
		groupPause: opts.GroupPause,
		logger:     opts.Logger.Named("orchestrator"),
		now:        opts.Now,
	}
}

// InFlight returns the number of passes currently running. Passes are not
// mutually excluded; a value above one means wallets may be processed twice.
func (o *Orchestrator) InFlight() int {
	return int(o.inFlight.Load())
}

// LastSummary returns the most recent completed pass, or nil.
func (o *Orchestrator) LastSummary() *domain.PassSummary {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.last
}

// Run executes one pass. trigger labels the caller (cron, http, cli).
// The pass is detached from ctx cancellation: once started, every wallet in
// flight reaches a terminal state.
// Returns an error only if the pass could not start.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*domain.PassSummary, error) {
	ctx = context.WithoutCancel(ctx)
	start := o.now()

	if n := o.inFlight.Add(1); n > 1 {
		o.logger.Warn("overlapping pass started", zap.Int32("in_flight", n))
	}
	defer o.inFlight.Add(-1)
	defer observability.PassStarted()()

	summary, err := o.run(ctx, start)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPass(trigger, status, o.now().Sub(start).Seconds(), o.now().Unix())
	if err != nil {
		o.logger.Error("pass failed to start", zap.String("trigger", trigger), zap.Error(err))
		return nil, err
	}

	o.lastMu.Lock()
	o.last = summary
	o.lastMu.Unlock()
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, start time.Time) (*domain.PassSummary, error) {
	policy := o.policy
	policy.CollectorAddress = ""
	if policy.TargetMint == "" {
		return nil, fmt.Errorf("%w: target token not set", ErrConfiguration)
	}

	// Load wallets and tokens once per pass
	wallets, err := o.wallets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	owned, err := o.tokens.ListOwned(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	tokenByWallet := indexTokens(owned)

	var collectorWallet *domain.Wallet
	if policy.Mode == domain.ModeCollector {
		collectorWallet, err = resolveCollector(wallets, owned, policy.TargetMint)
		if err != nil {
			return nil, err
		}
		policy.CollectorAddress = collectorWallet.Address
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	summary := &domain.PassSummary{
		PassID:       uuid.NewString(),
		Mode:         policy.Mode,
		TargetToken:  policy.TargetMint,
		StartedAt:    start.UTC(),
		TotalWallets: len(wallets),
	}
	log := o.logger.With(zap.String("pass_id", summary.PassID))
	log.Info("pass started",
		zap.Int("wallets", len(wallets)),
		zap.String("mode", string(policy.Mode)),
		zap.String("target", policy.TargetMint))

	if len(wallets) == 0 {
		o.finish(ctx, summary)
		return summary, nil
	}

	p := pipeline.New(pipeline.Options{
		Config:   policy,
		Venue:    o.venue,
		Balances: o.balances,
		Wallets:  o.wallets,
		Activity: o.activity,
		Logger:   o.logger,
		Now:      o.now,
	})

	if collectorWallet == nil {
		results := o.processGroups(ctx, summary.PassID, p, wallets, tokenByWallet)
		Aggregate(summary, results)
	} else {
		// The collector runs alone before any transfer can reach it.
		colResult, base := o.runCollector(ctx, summary.PassID, p, collectorWallet, tokenByWallet[collectorWallet.ID])

		at := slices.IndexFunc(wallets, func(w *domain.Wallet) bool { return w.ID == collectorWallet.ID })
		others := slices.Delete(slices.Clone(wallets), at, at+1)
		results := o.processGroups(ctx, summary.PassID, p, others, tokenByWallet)
		Aggregate(summary, slices.Insert(results, at, colResult))

		summary.Collector = o.consolidate(ctx, summary.PassID, policy, collectorWallet, base, summary.TotalTransferredSOL)
	}

	o.finish(ctx, summary)
	log.Info("pass finished",
		zap.Int("claimed", summary.Claimed),
		zap.Int("bought", summary.Bought),
		zap.Int("no_fees", summary.NoFees),
		zap.Int("errors", summary.Errors),
		zap.String("total_claimed_sol", summary.TotalClaimedSOL.String()),
		zap.Int64("duration_ms", summary.DurationMs))
	return summary, nil
}

// processGroups runs wallets in sequential groups of groupSize; wallets in a
// group run concurrently. Results keep wallet order.
func (o *Orchestrator) processGroups(
	ctx context.Context,
	passID string,
	p *pipeline.Pipeline,
	wallets []*domain.Wallet,
	tokenByWallet map[string]*domain.Token,
) []domain.WalletRunResult {
	results := make([]domain.WalletRunResult, len(wallets))

	for lo := 0; lo < len(wallets); lo += o.groupSize {
		hi := min(lo+o.groupSize, len(wallets))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			w := wallets[i]
			g.Go(func() error {
				results[i] = p.Process(ctx, passID, w, tokenByWallet[w.ID])
				return nil
			})
		}
		_ = g.Wait()

		if hi < len(wallets) && o.groupPause > 0 {
			time.Sleep(o.groupPause)
		}
	}
	return results
}

func (o *Orchestrator) finish(ctx context.Context, summary *domain.PassSummary) {
	summary.FinishedAt = o.now().UTC()
	summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()

	if o.runs == nil {
		return
	}
	if err := o.runs.InsertPass(ctx, summary); err != nil {
		o.logger.Warn("run history write failed",
			zap.String("pass_id", summary.PassID),
			zap.Error(err))
	}
}

// indexTokens maps wallet id to its token. When a wallet owns several tokens
// the first by mint order wins.
func indexTokens(tokens []*domain.Token) map[string]*domain.Token {
	byWallet := make(map[string]*domain.Token, len(tokens))
	for _, t := range tokens {
		if _, exists := byWallet[t.WalletID]; !exists {
			byWallet[t.WalletID] = t
		}
	}
	return byWallet
}

// resolveCollector finds the active wallet owning the target token.
func resolveCollector(wallets []*domain.Wallet, tokens []*domain.Token, targetMint string) (*domain.Wallet, error) {
	var ownerID string
	for _, t := range tokens {
		if t.Mint == targetMint {
			ownerID = t.WalletID
			break
		}
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: no wallet owns target token %s", ErrConfiguration, targetMint)
	}
	for _, w := range wallets {
		if w.ID == ownerID {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: collector wallet %s is not active", ErrConfiguration, ownerID)
}

// IsConfigurationError reports whether err stems from configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
