package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType is the closed set of audit record kinds.
type ActivityType string

const (
	ActivityFeeClaimed                ActivityType = "fee_claimed"
	ActivityFeeClaimFailed            ActivityType = "fee_claim_failed"
	ActivityFeeClaimAnomaly           ActivityType = "fee_claim_anomaly"
	ActivityBuyTargetToken            ActivityType = "buy_target_token"
	ActivityBuyTargetTokenFailed      ActivityType = "buy_target_token_failed"
	ActivityBuySelfToken              ActivityType = "buy_self_token"
	ActivityBuySelfTokenFailed        ActivityType = "buy_self_token_failed"
	ActivityTransferToCollector       ActivityType = "transfer_to_collector"
	ActivityTransferToCollectorFailed ActivityType = "transfer_to_collector_failed"
	ActivityCollectorBuy              ActivityType = "collector_buy"
	ActivityCollectorBuyFailed        ActivityType = "collector_buy_failed"
)

var activityTypes = map[ActivityType]struct{}{
	ActivityFeeClaimed:                {},
	ActivityFeeClaimFailed:            {},
	ActivityFeeClaimAnomaly:           {},
	ActivityBuyTargetToken:            {},
	ActivityBuyTargetTokenFailed:      {},
	ActivityBuySelfToken:              {},
	ActivityBuySelfTokenFailed:        {},
	ActivityTransferToCollector:       {},
	ActivityTransferToCollectorFailed: {},
	ActivityCollectorBuy:              {},
	ActivityCollectorBuyFailed:        {},
}

// String returns the string representation of ActivityType.
func (t ActivityType) String() string {
	return string(t)
}

// IsValid checks if the activity type is a known value.
func (t ActivityType) IsValid() bool {
	_, ok := activityTypes[t]
	return ok
}

// IsFailure reports whether the type records a failed action.
func (t ActivityType) IsFailure() bool {
	return strings.HasSuffix(string(t), "_failed") || t == ActivityFeeClaimAnomaly
}

// IsBuy reports whether the type belongs to the buy feed.
func (t ActivityType) IsBuy() bool {
	return strings.Contains(string(t), "buy")
}

// IsClaim reports whether the type belongs to the claim feed.
func (t ActivityType) IsClaim() bool {
	return strings.Contains(string(t), "claim")
}

// ActivityRecord is an append-only audit entry for one attempted financial action.
// Corresponds to wallet_activities table in PostgreSQL.
type ActivityRecord struct {
	ID          string          `json:"id"` // deterministic hash, see idhash.ComputeActivityID
	WalletID    string          `json:"wallet_id"`
	Type        ActivityType    `json:"activity_type"`
	Description string          `json:"activity_description"`
	TokenName   string          `json:"token_name,omitempty"`
	Signature   string          `json:"transaction_signature,omitempty"`
	AmountSOL   decimal.Decimal `json:"amount_sol"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActivityFeed selects a slice of the activity log.
type ActivityFeed string

const (
	FeedAll   ActivityFeed = "all"
	FeedBuy   ActivityFeed = "buy"
	FeedClaim ActivityFeed = "claim"
)

// ActivityFilter restricts activity listing.
type ActivityFilter struct {
	Feed          ActivityFeed
	WalletID      string // optional
	ExcludeFailed bool
	Limit         int
}

// Matches reports whether a record passes the filter, ignoring Limit.
func (f ActivityFilter) Matches(r *ActivityRecord) bool {
	if f.WalletID != "" && r.WalletID != f.WalletID {
		return false
	}
	if f.ExcludeFailed && r.Type.IsFailure() {
		return false
	}
	switch f.Feed {
	case FeedBuy:
		return r.Type.IsBuy()
	case FeedClaim:
		return r.Type.IsClaim()
	default:
		return true
	}
}
