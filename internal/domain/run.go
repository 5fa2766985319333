package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletState is the terminal state a wallet reaches in one pass.
type WalletState string

const (
	StateNoToken      WalletState = "NO_TOKEN"
	StateClaimFailed  WalletState = "CLAIM_FAILED"
	StateNoFees       WalletState = "NO_FEES"
	StateClaimAnomaly WalletState = "CLAIM_ANOMALY"
	StateBelowMinimum WalletState = "BELOW_MINIMUM"
	StateTooSmall     WalletState = "TOO_SMALL"
	StateDoneSingle   WalletState = "DONE_SINGLE"
	StateDoneSplit    WalletState = "DONE_SPLIT"
)

// String returns the string representation of WalletState.
func (s WalletState) String() string {
	return string(s)
}

// UpdatesLastRun reports whether reaching s stamps the wallet's last run.
func (s WalletState) UpdatesLastRun() bool {
	return s != StateNoToken
}

// ReinvestMode selects how the target-token half is spent.
type ReinvestMode string

const (
	// ModeDirect buys the target token from every wallet.
	ModeDirect ReinvestMode = "direct"
	// ModeCollector transfers the target half to the collector wallet,
	// which performs one consolidated buy at the end of the pass.
	ModeCollector ReinvestMode = "collector"
)

// IsValid checks if the mode is a known value.
func (m ReinvestMode) IsValid() bool {
	return m == ModeDirect || m == ModeCollector
}

// WalletRunResult aggregates one wallet's pass. It is not persisted itself;
// only its activity records and the wallet's last run are.
type WalletRunResult struct {
	WalletID      string          `json:"wallet_id"`
	Address       string          `json:"wallet_public_key"`
	TokenMint     string          `json:"token_mint,omitempty"`
	TokenName     string          `json:"token_name,omitempty"`
	State         WalletState     `json:"state"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	Claim         *ClaimOutcome   `json:"fee_claim,omitempty"`
	ClaimedSOL    decimal.Decimal `json:"claimed_sol"`
	UsableSOL     decimal.Decimal `json:"usable_sol"`
	TargetBuy     *TradeOutcome   `json:"target_token_buy,omitempty"`
	SelfBuy       *TradeOutcome   `json:"self_token_buy,omitempty"`
	Transfer      *TradeOutcome   `json:"collector_transfer,omitempty"`
	Error         string          `json:"error,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
}

// Bought reports whether any buy for the wallet succeeded.
func (r *WalletRunResult) Bought() bool {
	return (r.TargetBuy != nil && r.TargetBuy.Success) || (r.SelfBuy != nil && r.SelfBuy.Success)
}

// Transferred returns the amount successfully moved to the collector.
func (r *WalletRunResult) Transferred() decimal.Decimal {
	if r.Transfer == nil || !r.Transfer.Success {
		return decimal.Zero
	}
	return r.Transfer.AmountSOL
}

// CollectorResult describes the consolidated buy of the collector variant.
type CollectorResult struct {
	WalletID       string          `json:"wallet_id"`
	Address        string          `json:"address"`
	ContributedSOL decimal.Decimal `json:"contributed_sol"`
	BaselineSOL    decimal.Decimal `json:"baseline_sol"`
	ObservedSOL    decimal.Decimal `json:"observed_balance_sol"`
	Shortfall      bool            `json:"shortfall"`
	Buy            *TradeOutcome   `json:"buy,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// PassSummary is the aggregate result of one orchestrator pass.
type PassSummary struct {
	PassID              string            `json:"pass_id"`
	Mode                ReinvestMode      `json:"mode"`
	TargetToken         string            `json:"target_token"`
	StartedAt           time.Time         `json:"started_at"`
	FinishedAt          time.Time         `json:"finished_at"`
	DurationMs          int64             `json:"duration_ms"`
	TotalWallets        int               `json:"total_wallets"`
	Claimed             int               `json:"claimed"`
	Bought              int               `json:"bought"`
	NoFees              int               `json:"no_fees"`
	BelowMinimum        int               `json:"below_minimum"`
	TooSmall            int               `json:"too_small"`
	NoToken             int               `json:"no_token"`
	Errors              int               `json:"errors"`
	TotalClaimedSOL     decimal.Decimal   `json:"total_claimed_sol"`
	TotalTransferredSOL decimal.Decimal   `json:"total_transferred_sol"`
	Collector           *CollectorResult  `json:"collector,omitempty"`
	Results             []WalletRunResult `json:"results,omitempty"`
}
