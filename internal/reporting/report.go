package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
)

// Report summarizes recent passes and the activity log.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunLimit    int

	Totals Totals

	// Recent passes, newest first
	Runs []RunRow

	// Terminal states of the latest pass, in pipeline order
	LatestPassID string
	LatestStates []StateRow

	// Activity by type, sorted by type
	Activity []ActivityTypeRow
}

// Totals sums the listed passes.
type Totals struct {
	Passes              int
	WalletsProcessed    int
	Claimed             int
	Bought              int
	Errors              int
	TotalClaimedSOL     decimal.Decimal
	TotalTransferredSOL decimal.Decimal
}

// RunRow represents one pass in the runs table.
type RunRow struct {
	PassID      string
	StartedAt   time.Time
	Mode        domain.ReinvestMode
	Wallets     int
	Claimed     int
	Bought      int
	NoFees      int
	Errors      int
	ClaimedSOL  decimal.Decimal
	DurationMs  int64
	CollectorOK *bool // nil outside collector mode
}

// StateRow counts wallets per terminal state.
type StateRow struct {
	State domain.WalletState
	Count int
}

// ActivityTypeRow aggregates activity records of one type.
type ActivityTypeRow struct {
	Type      domain.ActivityType
	Count     int
	AmountSOL decimal.Decimal
}
