// Package pipeline drives one wallet through claim, confirmation and
// reinvestment within a pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fee-reinvestor/internal/activity"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/storage"
	"fee-reinvestor/internal/venue"
)

// ErrConfiguration is returned when the pipeline cannot run with the given
// settings.
var ErrConfiguration = errors.New("configuration error")

// Config holds reinvestment policy.
type Config struct {
	Mode       domain.ReinvestMode
	TargetMint string
	TargetName string
	// CollectorAddress receives the target half in collector mode.
	CollectorAddress string

	MinClaimSOL decimal.Decimal
	ReserveSOL  decimal.Decimal
	MinTradeSOL decimal.Decimal
}

// DefaultConfig returns the default policy without a target token.
func DefaultConfig() Config {
	return Config{
		Mode:        domain.ModeDirect,
		MinClaimSOL: decimal.RequireFromString("0.01"),
		ReserveSOL:  decimal.RequireFromString("0.002"),
		MinTradeSOL: decimal.RequireFromString("0.001"),
	}
}

// Validate checks the policy is runnable.
func (c Config) Validate() error {
	if c.TargetMint == "" {
		return fmt.Errorf("%w: target token not set", ErrConfiguration)
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("%w: unknown reinvest mode %q", ErrConfiguration, c.Mode)
	}
	if c.Mode == domain.ModeCollector && c.CollectorAddress == "" {
		return fmt.Errorf("%w: collector address not resolved", ErrConfiguration)
	}
	if c.ReserveSOL.IsNegative() || c.MinClaimSOL.IsNegative() || !c.MinTradeSOL.IsPositive() {
		return fmt.Errorf("%w: amounts must be non-negative and min trade positive", ErrConfiguration)
	}
	return nil
}

// Balances reads and watches wallet balances.
type Balances interface {
	Snapshot(ctx context.Context, address string) (uint64, error)
	AwaitIncrease(ctx context.Context, address string, snapshot uint64) domain.ConfirmedClaim
}

// Options configures Pipeline.
type Options struct {
	Config   Config
	Venue    venue.Venue
	Balances Balances
	Wallets  storage.WalletRegistry
	Activity *activity.Logger
	Logger   *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Pipeline runs the per-wallet state machine.
type Pipeline struct {
	cfg      Config
	venue    venue.Venue
	balances Balances
	wallets  storage.WalletRegistry
	activity *activity.Logger
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:      opts.Config,
		venue:    opts.Venue,
		balances: opts.Balances,
		wallets:  opts.Wallets,
		activity: opts.Activity,
		logger:   logger.Named("pipeline"),
		now:      now,
	}
}

// Config returns the policy the pipeline runs with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process runs one wallet to a terminal state. It never returns an error:
// every failure is captured in the result.
func (p *Pipeline) Process(ctx context.Context, passID string, w *domain.Wallet, token *domain.Token) (res domain.WalletRunResult) {
	start := p.now()
	res = domain.WalletRunResult{
		WalletID: w.ID,
		Address:  w.Address,
	}
	log := p.logger.With(
		zap.String("pass_id", passID),
		zap.String("wallet", domain.ShortAddress(w.Address)))
	trail := &walletTrail{activity: p.activity, passID: passID, walletID: w.ID}

	defer func() {
		res.DurationMs = p.now().Sub(start).Milliseconds()
		observability.RecordWalletState(res.State.String())
		if res.State.UpdatesLastRun() {
			if err := p.wallets.UpdateLastRun(ctx, w.ID, p.now()); err != nil {
				log.Warn("update last run failed", zap.Error(err))
			}
		}
		log.Info("wallet finished",
			zap.String("state", res.State.String()),
			zap.String("claimed_sol", res.ClaimedSOL.String()),
			zap.String("error", res.Error))
	}()

	if token == nil {
		res.State = domain.StateNoToken
		return res
	}
	res.TokenMint = token.Mint
	res.TokenName = token.Name

	snapshot, err := p.balances.Snapshot(ctx, w.Address)
	if err != nil {
		res.State = domain.StateClaimFailed
		res.Error = fmt.Sprintf("balance snapshot: %v", err)
		return res
	}
	res.BalanceBefore = domain.LamportsToSOL(snapshot)

	claim := p.venue.CollectFee(ctx, w.APIKey, token.Mint)
	res.Claim = &claim

	switch claim.Status {
	case domain.ClaimNothing:
		res.State = domain.StateNoFees
		return res
	case domain.ClaimFailed:
		res.State = domain.StateClaimFailed
		res.Error = fmt.Sprintf("fee claim failed: %s", claim.Error)
		trail.record(ctx, activity.Entry{
			Type:        domain.ActivityFeeClaimFailed,
			Description: fmt.Sprintf("Failed to claim creator fees for %s: %s", token.Name, claim.Error),
			TokenName:   token.Name,
		})
		return res
	}

	confirmed := p.balances.AwaitIncrease(ctx, w.Address, snapshot)
	if confirmed.ClaimedLamports == 0 {
		observability.RecordClaimAnomaly()
		res.State = domain.StateClaimAnomaly
		res.Error = fmt.Sprintf("claim accepted but balance unchanged after %d reads", confirmed.Reads)
		trail.record(ctx, activity.Entry{
			Type:        domain.ActivityFeeClaimAnomaly,
			Description: fmt.Sprintf("Claim for %s accepted but no balance increase observed", token.Name),
			TokenName:   token.Name,
			Signature:   claim.Signature,
		})
		return res
	}

	claimed := confirmed.ClaimedSOL()
	res.ClaimedSOL = claimed
	observability.RecordClaimed(claimed.InexactFloat64())
	trail.record(ctx, activity.Entry{
		Type:        domain.ActivityFeeClaimed,
		Description: fmt.Sprintf("Claimed %s SOL in creator fees for %s", claimed, token.Name),
		TokenName:   token.Name,
		Signature:   claim.Signature,
		AmountSOL:   claimed,
	})

	if claimed.LessThan(p.cfg.MinClaimSOL) {
		res.State = domain.StateBelowMinimum
		return res
	}

	usable := claimed.Sub(p.cfg.ReserveSOL)
	res.UsableSOL = usable
	if usable.LessThanOrEqual(p.cfg.MinTradeSOL) {
		res.State = domain.StateTooSmall
		return res
	}

	if token.Mint == p.cfg.TargetMint {
		buy := p.venue.Buy(ctx, w.APIKey, p.cfg.TargetMint, usable)
		res.TargetBuy = &buy
		p.recordBuy(ctx, trail, buy, true, p.targetName(token))
		res.State = domain.StateDoneSingle
		return res
	}

	first, second := Split(usable)

	var g errgroup.Group
	if p.cfg.Mode == domain.ModeCollector {
		g.Go(func() error {
			out := p.venue.Transfer(ctx, w.APIKey, p.cfg.CollectorAddress, first)
			res.Transfer = &out
			return nil
		})
	} else {
		g.Go(func() error {
			out := p.venue.Buy(ctx, w.APIKey, p.cfg.TargetMint, first)
			res.TargetBuy = &out
			return nil
		})
	}
	g.Go(func() error {
		out := p.venue.Buy(ctx, w.APIKey, token.Mint, second)
		res.SelfBuy = &out
		return nil
	})
	_ = g.Wait()

	if res.Transfer != nil {
		p.recordTransfer(ctx, trail, *res.Transfer)
	}
	if res.TargetBuy != nil {
		p.recordBuy(ctx, trail, *res.TargetBuy, true, p.targetName(token))
	}
	p.recordBuy(ctx, trail, *res.SelfBuy, false, token.Name)

	res.State = domain.StateDoneSplit
	return res
}

// Split divides usable into two halves. The first is rounded down to lot
// precision and the second takes the remainder, so the halves always sum
// to usable.
func Split(usable decimal.Decimal) (first, second decimal.Decimal) {
	first = domain.RoundLot(usable.Div(decimal.NewFromInt(2)))
	return first, usable.Sub(first)
}

func (p *Pipeline) targetName(own *domain.Token) string {
	if own.Mint == p.cfg.TargetMint && own.Name != "" {
		return own.Name
	}
	if p.cfg.TargetName != "" {
		return p.cfg.TargetName
	}
	return "target token"
}

func (p *Pipeline) recordBuy(ctx context.Context, trail *walletTrail, out domain.TradeOutcome, target bool, name string) {
	typ := domain.ActivityBuySelfToken
	if target {
		typ = domain.ActivityBuyTargetToken
	}
	desc := fmt.Sprintf("Bought %s with %s SOL", name, out.AmountSOL)
	if !out.Success {
		typ = failed(typ)
		desc = fmt.Sprintf("Failed to buy %s: %s", name, out.Error)
	}
	if out.Success {
		observability.RecordReinvested("buy", out.AmountSOL.InexactFloat64())
	}
	trail.record(ctx, activity.Entry{
		Type:        typ,
		Description: desc,
		TokenName:   name,
		Signature:   out.Signature,
		AmountSOL:   out.AmountSOL,
	})
}

func (p *Pipeline) recordTransfer(ctx context.Context, trail *walletTrail, out domain.TradeOutcome) {
	typ := domain.ActivityTransferToCollector
	desc := fmt.Sprintf("Transferred %s SOL to collector %s", out.AmountSOL, domain.ShortAddress(p.cfg.CollectorAddress))
	if !out.Success {
		typ = domain.ActivityTransferToCollectorFailed
		desc = fmt.Sprintf("Failed to transfer to collector: %s", out.Error)
	} else {
		observability.RecordReinvested("transfer", out.AmountSOL.InexactFloat64())
	}
	trail.record(ctx, activity.Entry{
		Type:        typ,
		Description: desc,
		Signature:   out.Signature,
		AmountSOL:   out.AmountSOL,
	})
}

// walletTrail writes the activity of one wallet within a pass. Records are
// numbered in write order so each gets its own id.
type walletTrail struct {
	activity *activity.Logger
	passID   string
	walletID string
	seq      int
}

func (t *walletTrail) record(ctx context.Context, e activity.Entry) {
	e.PassID = t.passID
	e.WalletID = t.walletID
	e.Seq = t.seq
	t.seq++
	t.activity.Log(ctx, e)
}

func failed(t domain.ActivityType) domain.ActivityType {
	switch t {
	case domain.ActivityBuyTargetToken:
		return domain.ActivityBuyTargetTokenFailed
	case domain.ActivityBuySelfToken:
		return domain.ActivityBuySelfTokenFailed
	}
	return t
}
