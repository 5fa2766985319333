package orchestrator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fee-reinvestor/internal/activity"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/pipeline"
)

// collectorBase is the collector balance read once its own pipeline has
// finished. Transfers are measured against it.
type collectorBase struct {
	lamports uint64
	err      error
}

// runCollector processes the collector wallet on its own, then reads the
// baseline for consolidation.
func (o *Orchestrator) runCollector(
	ctx context.Context,
	passID string,
	p *pipeline.Pipeline,
	collector *domain.Wallet,
	token *domain.Token,
) (domain.WalletRunResult, collectorBase) {
	res := p.Process(ctx, passID, collector, token)
	lamports, err := o.balances.Snapshot(ctx, collector.Address)
	return res, collectorBase{lamports: lamports, err: err}
}

// consolidate confirms that transfers reached the collector and issues one
// buy of the target token. Failed transfers are already excluded from
// transferred. Only funds that arrived on top of base are spent.
func (o *Orchestrator) consolidate(
	ctx context.Context,
	passID string,
	policy pipeline.Config,
	collector *domain.Wallet,
	base collectorBase,
	transferred decimal.Decimal,
) *domain.CollectorResult {
	res := &domain.CollectorResult{
		WalletID:       collector.ID,
		Address:        collector.Address,
		ContributedSOL: transferred,
		BaselineSOL:    domain.LamportsToSOL(base.lamports),
	}
	if !transferred.IsPositive() {
		return res
	}

	log := o.logger.With(
		zap.String("pass_id", passID),
		zap.String("collector", domain.ShortAddress(collector.Address)))

	if base.err != nil {
		res.Error = fmt.Sprintf("collector baseline read failed: %v", base.err)
		log.Warn("collector baseline unavailable, consolidated buy skipped", zap.Error(base.err))
		return res
	}

	settlement := o.balances.AwaitAtLeast(ctx, collector.Address, base.lamports+domain.SOLToLamports(transferred))
	observed := domain.LamportsToSOL(settlement.ObservedLamports)
	res.ObservedSOL = observed

	arrived := decimal.Max(decimal.Zero, observed.Sub(res.BaselineSOL))
	amount := decimal.Min(transferred, arrived, observed.Sub(policy.ReserveSOL))
	if amount.LessThan(transferred) {
		res.Shortfall = true
		log.Warn("collector balance short of transfers",
			zap.String("transferred_sol", transferred.String()),
			zap.String("arrived_sol", arrived.String()),
			zap.String("observed_sol", observed.String()))
	}
	if !amount.IsPositive() {
		if !arrived.IsPositive() {
			res.Error = fmt.Sprintf("no transfers arrived at collector (balance %s SOL)", observed)
		} else {
			res.Error = fmt.Sprintf("collector balance %s SOL leaves nothing above reserve", observed)
		}
		return res
	}

	buy := o.venue.Buy(ctx, collector.APIKey, policy.TargetMint, amount)
	res.Buy = &buy

	name := policy.TargetName
	if name == "" {
		name = "target token"
	}
	entry := activity.Entry{
		PassID:      passID,
		WalletID:    collector.ID,
		Type:        domain.ActivityCollectorBuy,
		Description: fmt.Sprintf("Consolidated buy of %s with %s SOL", name, buy.AmountSOL),
		TokenName:   name,
		Signature:   buy.Signature,
		AmountSOL:   buy.AmountSOL,
	}
	if buy.Success {
		observability.RecordReinvested("collector_buy", buy.AmountSOL.InexactFloat64())
	} else {
		res.Error = buy.Error
		entry.Type = domain.ActivityCollectorBuyFailed
		entry.Description = fmt.Sprintf("Consolidated buy of %s failed: %s", name, buy.Error)
	}
	o.activity.Log(ctx, entry)

	log.Info("collector buy finished",
		zap.Bool("success", buy.Success),
		zap.String("amount_sol", buy.AmountSOL.String()))
	return res
}
