package orchestrator

import (
	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
)

// Aggregate reduces wallet results into the summary's counts and sums.
func Aggregate(summary *domain.PassSummary, results []domain.WalletRunResult) {
	summary.Results = results
	summary.TotalClaimedSOL = decimal.Zero
	summary.TotalTransferredSOL = decimal.Zero

	for i := range results {
		r := &results[i]

		if r.ClaimedSOL.IsPositive() {
			summary.Claimed++
			summary.TotalClaimedSOL = summary.TotalClaimedSOL.Add(r.ClaimedSOL)
		}
		summary.TotalTransferredSOL = summary.TotalTransferredSOL.Add(r.Transferred())

		switch r.State {
		case domain.StateDoneSingle, domain.StateDoneSplit:
			// One successful leg is enough; a partial failure stays in Bought.
			if reinvested(r) {
				summary.Bought++
			} else {
				summary.Errors++
			}
		case domain.StateNoFees:
			summary.NoFees++
		case domain.StateBelowMinimum:
			summary.BelowMinimum++
		case domain.StateTooSmall:
			summary.TooSmall++
		case domain.StateNoToken:
			summary.NoToken++
		case domain.StateClaimFailed, domain.StateClaimAnomaly:
			summary.Errors++
		}
	}
}

// reinvested reports whether any buy or collector transfer succeeded.
func reinvested(r *domain.WalletRunResult) bool {
	for _, out := range []*domain.TradeOutcome{r.TargetBuy, r.SelfBuy, r.Transfer} {
		if out != nil && out.Success {
			return true
		}
	}
	return false
}
