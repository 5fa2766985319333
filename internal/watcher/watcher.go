// Package watcher confirms balance changes by bounded polling of the ledger.
// The venue's own claim response is never trusted for amounts; a claim is
// only as large as the balance delta observed here.
package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/solana"
)

// Config configures polling behavior.
type Config struct {
	// InitialDelay is the settle time before the first read.
	InitialDelay time.Duration
	// PollInterval is the sleep between reads.
	PollInterval time.Duration
	// MaxPolls is the number of reads before the final read.
	MaxPolls int
	// DustLamports is the largest delta still treated as noise.
	DustLamports uint64
	// Commitment is the confirmation level balances are read at.
	Commitment solana.Commitment
}

// DefaultConfig returns default watcher configuration.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 3 * time.Second,
		PollInterval: 2 * time.Second,
		MaxPolls:     4,
		DustLamports: 100_000, // 0.0001 SOL
		Commitment:   solana.CommitmentConfirmed,
	}
}

// Notifier pushes account changes. It only shortens the sleep between
// polls; polling stays bounded either way.
type Notifier interface {
	SubscribeAccount(ctx context.Context, address string) (*solana.AccountSubscription, error)
	Unsubscribe(ctx context.Context, sub *solana.AccountSubscription) error
}

// Option configures Watcher.
type Option func(*Watcher)

// WithNotifier enables notification-driven wake-ups.
func WithNotifier(n Notifier) Option {
	return func(w *Watcher) {
		w.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher observes wallet balances.
type Watcher struct {
	rpc      solana.RPCClient
	notifier Notifier
	config   Config
	logger   *zap.Logger
}

// New creates a new Watcher.
func New(rpc solana.RPCClient, config Config, opts ...Option) *Watcher {
	if config.MaxPolls < 0 {
		config.MaxPolls = 0
	}
	if config.Commitment == "" {
		config.Commitment = solana.CommitmentConfirmed
	}
	w := &Watcher{
		rpc:    rpc,
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("watcher")
	return w
}

// Snapshot reads the current balance of address once.
func (w *Watcher) Snapshot(ctx context.Context, address string) (uint64, error) {
	return w.rpc.GetBalance(ctx, address, w.config.Commitment)
}

// AwaitIncrease waits for the balance of address to exceed snapshot by more
// than the dust threshold. A zero ClaimedLamports means no qualifying
// increase was seen; that is an anomaly for the caller, not an error.
func (w *Watcher) AwaitIncrease(ctx context.Context, address string, snapshot uint64) domain.ConfirmedClaim {
	res := w.poll(ctx, address, "increase", func(balance uint64) bool {
		return balance > snapshot && balance-snapshot > w.config.DustLamports
	})

	out := domain.ConfirmedClaim{BalanceAfter: res.last, Reads: res.reads}
	if res.reached {
		out.ClaimedLamports = res.last - snapshot
	}
	return out
}

// Settlement is the result of AwaitAtLeast.
type Settlement struct {
	ObservedLamports uint64
	Reads            int
	Reached          bool
}

// AwaitAtLeast waits for the balance of address to reach want and returns
// the last balance observed, reached or not.
func (w *Watcher) AwaitAtLeast(ctx context.Context, address string, want uint64) Settlement {
	res := w.poll(ctx, address, "at_least", func(balance uint64) bool {
		return balance >= want
	})
	return Settlement{ObservedLamports: res.last, Reads: res.reads, Reached: res.reached}
}

type pollResult struct {
	last    uint64
	reads   int
	reached bool
}

// poll is the single polling primitive: settle delay, MaxPolls reads with
// PollInterval sleeps, then one final read. Read errors count as a miss.
func (w *Watcher) poll(ctx context.Context, address, kind string, done func(uint64) bool) (res pollResult) {
	defer func() {
		observability.RecordWatcherWait(kind, res.reads, !res.reached)
	}()

	wake := w.subscribe(ctx, address)
	if wake != nil {
		defer w.unsubscribe(ctx, wake)
	}

	if !w.sleep(ctx, w.config.InitialDelay, nil) {
		return res
	}

	for i := 0; i <= w.config.MaxPolls; i++ {
		balance, err := w.rpc.GetBalance(ctx, address, w.config.Commitment)
		res.reads++
		if err != nil {
			w.logger.Debug("balance read failed",
				zap.String("address", address),
				zap.Int("read", res.reads),
				zap.Error(err))
		} else {
			res.last = balance
			if done(balance) {
				res.reached = true
				return res
			}
		}

		// The read after the last poll is the final one.
		if i == w.config.MaxPolls {
			break
		}
		var ch <-chan solana.AccountNotification
		if wake != nil {
			ch = wake.C
		}
		if !w.sleep(ctx, w.config.PollInterval, ch) {
			return res
		}
	}
	return res
}

// sleep waits for d, a notification, or cancellation. Returns false on
// cancellation.
func (w *Watcher) sleep(ctx context.Context, d time.Duration, wake <-chan solana.AccountNotification) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-wake:
	}
	return true
}

func (w *Watcher) subscribe(ctx context.Context, address string) *solana.AccountSubscription {
	if w.notifier == nil {
		return nil
	}
	sub, err := w.notifier.SubscribeAccount(ctx, address)
	if err != nil {
		w.logger.Debug("account subscribe failed, polling only",
			zap.String("address", address),
			zap.Error(err))
		return nil
	}
	return sub
}

func (w *Watcher) unsubscribe(ctx context.Context, sub *solana.AccountSubscription) {
	if err := w.notifier.Unsubscribe(ctx, sub); err != nil {
		w.logger.Debug("account unsubscribe failed",
			zap.String("address", sub.Address),
			zap.Error(err))
	}
}
