// Package venue talks to the trading venue's HTTP trade endpoint: creator-fee
// collection, market buys and SOL transfers, authenticated per wallet by API key.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
)

// Venue is the set of custodial actions a wallet can request.
// None of the methods return an error: every failure is folded into the
// outcome so callers can record it.
type Venue interface {
	// CollectFee asks the venue to sweep accrued creator fees for mint into
	// the wallet. It is attempted once.
	CollectFee(ctx context.Context, apiKey, mint string) domain.ClaimOutcome

	// Buy spends amountSOL on mint.
	Buy(ctx context.Context, apiKey, mint string, amountSOL decimal.Decimal) domain.TradeOutcome

	// Transfer sends amountSOL to destination.
	Transfer(ctx context.Context, apiKey, destination string, amountSOL decimal.Decimal) domain.TradeOutcome
}
