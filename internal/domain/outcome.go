package domain

import "github.com/shopspring/decimal"

// ClaimStatus classifies a fee-collection response.
type ClaimStatus string

const (
	// ClaimFailed means the call itself failed (transport, validation, 5xx).
	ClaimFailed ClaimStatus = "FAILED"
	// ClaimNothing means the venue reported there was nothing to claim.
	ClaimNothing ClaimStatus = "NOTHING_TO_CLAIM"
	// ClaimAccepted means the venue accepted the claim. The credited amount
	// is not known until the balance moves.
	ClaimAccepted ClaimStatus = "ACCEPTED"
)

// String returns the string representation of ClaimStatus.
func (s ClaimStatus) String() string {
	return string(s)
}

// ClaimOutcome is the classified result of one fee-collection call.
type ClaimOutcome struct {
	Status    ClaimStatus
	Success   bool   // false only for ClaimFailed
	Claimed   bool   // true only for ClaimAccepted
	Signature string // optional, untrusted
	Error     string
}

// NewClaimOutcome builds a ClaimOutcome whose flags agree with status.
func NewClaimOutcome(status ClaimStatus, signature, errMsg string) ClaimOutcome {
	return ClaimOutcome{
		Status:    status,
		Success:   status != ClaimFailed,
		Claimed:   status == ClaimAccepted,
		Signature: signature,
		Error:     errMsg,
	}
}

// ConfirmedClaim is the amount credited by a claim, derived only from the
// observed balance delta.
type ConfirmedClaim struct {
	ClaimedLamports uint64
	BalanceAfter    uint64
	Reads           int // balance reads performed
}

// ClaimedSOL returns the claimed amount in SOL.
func (c ConfirmedClaim) ClaimedSOL() decimal.Decimal {
	return LamportsToSOL(c.ClaimedLamports)
}

// TradeOutcome is the result of a buy or transfer request.
type TradeOutcome struct {
	Success   bool            `json:"success"`
	Signature string          `json:"signature,omitempty"`
	Error     string          `json:"error,omitempty"`
	Raw       string          `json:"raw,omitempty"` // non-JSON success body
	AmountSOL decimal.Decimal `json:"amount_sol"`    // amount actually submitted
	Mint      string          `json:"mint,omitempty"`
}
