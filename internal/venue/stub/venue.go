// Package stub provides a scripted in-memory venue for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/venue"
)

// Call records one request made to the stub.
type Call struct {
	Action string // collect, buy, transfer
	APIKey string
	Target string // mint or destination
	Amount decimal.Decimal
}

// Venue implements venue.Venue with scripted outcomes.
// Unscripted claims are accepted; unscripted buys and transfers succeed.
type Venue struct {
	mu sync.Mutex

	claims      map[string]domain.ClaimOutcome // by mint
	buyErrs     map[string]string              // by mint
	transferErr string
	calls       []Call

	// OnClaim runs after an accepted claim, e.g. to credit a stub ledger.
	OnClaim func(apiKey, mint string)
	// OnTransfer runs after a successful transfer.
	OnTransfer func(apiKey, destination string, amount decimal.Decimal)
}

// Compile-time interface check.
var _ venue.Venue = (*Venue)(nil)

// NewVenue creates a new stub venue.
func NewVenue() *Venue {
	return &Venue{
		claims:  make(map[string]domain.ClaimOutcome),
		buyErrs: make(map[string]string),
	}
}

// SetClaim scripts the claim outcome for mint.
func (v *Venue) SetClaim(mint string, status domain.ClaimStatus, errMsg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	sig := ""
	if status == domain.ClaimAccepted {
		sig = "claim-" + mint
	}
	v.claims[mint] = domain.NewClaimOutcome(status, sig, errMsg)
}

// FailBuy makes buys of mint fail with errMsg.
func (v *Venue) FailBuy(mint, errMsg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buyErrs[mint] = errMsg
}

// FailTransfers makes every transfer fail with errMsg.
func (v *Venue) FailTransfers(errMsg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transferErr = errMsg
}

// Calls returns a copy of recorded calls.
func (v *Venue) Calls() []Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Call(nil), v.calls...)
}

// CallsFor returns recorded calls of one action.
func (v *Venue) CallsFor(action string) []Call {
	var out []Call
	for _, c := range v.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// CollectFee returns the scripted outcome for mint.
func (v *Venue) CollectFee(_ context.Context, apiKey, mint string) domain.ClaimOutcome {
	v.mu.Lock()
	v.calls = append(v.calls, Call{Action: "collect", APIKey: apiKey, Target: mint})
	out, ok := v.claims[mint]
	hook := v.OnClaim
	v.mu.Unlock()

	if !ok {
		out = domain.NewClaimOutcome(domain.ClaimAccepted, "claim-"+mint, "")
	}
	if out.Status == domain.ClaimAccepted && hook != nil {
		hook(apiKey, mint)
	}
	return out
}

// Buy records the buy and returns the scripted outcome.
func (v *Venue) Buy(_ context.Context, apiKey, mint string, amountSOL decimal.Decimal) domain.TradeOutcome {
	amount := domain.RoundLot(amountSOL)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, Call{Action: "buy", APIKey: apiKey, Target: mint, Amount: amount})

	out := domain.TradeOutcome{AmountSOL: amount, Mint: mint}
	if msg, ok := v.buyErrs[mint]; ok {
		out.Error = msg
		return out
	}
	out.Success = true
	out.Signature = fmt.Sprintf("buy-%s-%d", mint, len(v.calls))
	return out
}

// Transfer records the transfer and returns the scripted outcome.
func (v *Venue) Transfer(_ context.Context, apiKey, destination string, amountSOL decimal.Decimal) domain.TradeOutcome {
	amount := domain.RoundLot(amountSOL)

	v.mu.Lock()
	v.calls = append(v.calls, Call{Action: "transfer", APIKey: apiKey, Target: destination, Amount: amount})
	out := domain.TradeOutcome{AmountSOL: amount}
	if v.transferErr != "" {
		out.Error = v.transferErr
		v.mu.Unlock()
		return out
	}
	out.Success = true
	out.Signature = fmt.Sprintf("transfer-%d", len(v.calls))
	hook := v.OnTransfer
	v.mu.Unlock()

	if hook != nil {
		hook(apiKey, destination, amount)
	}
	return out
}
