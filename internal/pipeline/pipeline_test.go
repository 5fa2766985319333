package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fee-reinvestor/internal/activity"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/idhash"
	"fee-reinvestor/internal/solana/stub"
	"fee-reinvestor/internal/storage/memory"
	venuestub "fee-reinvestor/internal/venue/stub"
	"fee-reinvestor/internal/watcher"
)

const (
	targetMint = "TargetMint1111"
	ownMint    = "OwnMint2222"
	collector  = "CollectorAddr3333"
)

type harness struct {
	rpc      *stub.RPCClient
	venue    *venuestub.Venue
	wallets  *memory.WalletStore
	activity *memory.ActivityStore
	pipeline *Pipeline
	wallet   *domain.Wallet
	token    *domain.Token
	// credit is the lamports an accepted claim adds to the ledger.
	credit uint64
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		rpc:      stub.NewRPCClient(),
		venue:    venuestub.NewVenue(),
		wallets:  memory.NewWalletStore(),
		activity: memory.NewActivityStore(),
		wallet:   &domain.Wallet{ID: "w1", Address: "WalletAddr1", APIKey: "key-w1", IsActive: true},
		token:    &domain.Token{Mint: ownMint, Name: "Own", WalletID: "w1"},
	}
	require.NoError(t, h.wallets.Insert(context.Background(), h.wallet))

	h.venue.OnClaim = func(apiKey, _ string) {
		if apiKey == h.wallet.APIKey && h.credit > 0 {
			h.rpc.Credit(h.wallet.Address, h.credit)
		}
	}

	wcfg := watcher.DefaultConfig()
	wcfg.InitialDelay = 0
	wcfg.PollInterval = time.Millisecond

	cfg := DefaultConfig()
	cfg.TargetMint = targetMint
	cfg.TargetName = "Target"
	if mutate != nil {
		mutate(&cfg)
	}

	h.pipeline = New(Options{
		Config:   cfg,
		Venue:    h.venue,
		Balances: watcher.New(h.rpc, wcfg),
		Wallets:  h.wallets,
		Activity: activity.NewLogger(h.activity, nil),
	})
	return h
}

func (h *harness) run(t *testing.T) domain.WalletRunResult {
	t.Helper()
	return h.pipeline.Process(context.Background(), "pass-1", h.wallet, h.token)
}

func (h *harness) activityTypes(t *testing.T) []domain.ActivityType {
	t.Helper()
	recs, err := h.activity.List(context.Background(), domain.ActivityFilter{})
	require.NoError(t, err)
	out := make([]domain.ActivityType, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i].Type)
	}
	return out
}

func (h *harness) lastRun(t *testing.T) *time.Time {
	t.Helper()
	w, err := h.wallets.GetByID(context.Background(), h.wallet.ID)
	require.NoError(t, err)
	return w.LastRunAt
}

func sol(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProcess_ScenarioA_SplitBuys(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000

	res := h.run(t)

	assert.Equal(t, domain.StateDoneSplit, res.State)
	assert.True(t, res.ClaimedSOL.Equal(sol("0.05")), res.ClaimedSOL.String())
	assert.True(t, res.UsableSOL.Equal(sol("0.048")), res.UsableSOL.String())
	require.NotNil(t, res.TargetBuy)
	require.NotNil(t, res.SelfBuy)
	assert.True(t, res.TargetBuy.AmountSOL.Equal(sol("0.024")))
	assert.True(t, res.SelfBuy.AmountSOL.Equal(sol("0.024")))
	assert.Nil(t, res.Transfer)

	buys := h.venue.CallsFor("buy")
	require.Len(t, buys, 2)

	assert.ElementsMatch(t, []domain.ActivityType{
		domain.ActivityFeeClaimed,
		domain.ActivityBuyTargetToken,
		domain.ActivityBuySelfToken,
	}, h.activityTypes(t))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_ScenarioB_BelowMinimum(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 5_000_000

	res := h.run(t)

	assert.Equal(t, domain.StateBelowMinimum, res.State)
	assert.True(t, res.ClaimedSOL.Equal(sol("0.005")))
	assert.Empty(t, h.venue.CallsFor("buy"))
	assert.Equal(t, []domain.ActivityType{domain.ActivityFeeClaimed}, h.activityTypes(t))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_ScenarioC_NothingToClaim(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.venue.SetClaim(ownMint, domain.ClaimNothing, "nothing to claim")

	res := h.run(t)

	assert.Equal(t, domain.StateNoFees, res.State)
	assert.Empty(t, h.activityTypes(t))
	// Only the snapshot read; no confirmation polling.
	assert.Equal(t, 1, h.rpc.Calls(h.wallet.Address))
	assert.Empty(t, h.venue.CallsFor("buy"))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_ScenarioD_ClaimAnomaly(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)

	res := h.run(t)

	assert.Equal(t, domain.StateClaimAnomaly, res.State)
	assert.NotEmpty(t, res.Error)
	assert.True(t, res.ClaimedSOL.IsZero())
	assert.Empty(t, h.venue.CallsFor("buy"))
	assert.Equal(t, []domain.ActivityType{domain.ActivityFeeClaimAnomaly}, h.activityTypes(t))
	// Snapshot plus four polls and the final read.
	assert.Equal(t, 6, h.rpc.Calls(h.wallet.Address))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_NoToken(t *testing.T) {
	h := newHarness(t, nil)
	h.token = nil

	res := h.run(t)

	assert.Equal(t, domain.StateNoToken, res.State)
	assert.Empty(t, h.venue.Calls())
	assert.Zero(t, h.rpc.Calls(h.wallet.Address))
	assert.Empty(t, h.activityTypes(t))
	assert.Nil(t, h.lastRun(t))
}

func TestProcess_ClaimFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.venue.SetClaim(ownMint, domain.ClaimFailed, "status 500: boom")

	res := h.run(t)

	assert.Equal(t, domain.StateClaimFailed, res.State)
	assert.Contains(t, res.Error, "boom")
	assert.Equal(t, []domain.ActivityType{domain.ActivityFeeClaimFailed}, h.activityTypes(t))
	assert.Equal(t, 1, h.rpc.Calls(h.wallet.Address))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_SnapshotFailureSkipsClaim(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.FailNext(h.wallet.Address, errors.New("rpc unavailable"))

	res := h.run(t)

	assert.Equal(t, domain.StateClaimFailed, res.State)
	assert.Contains(t, res.Error, "rpc unavailable")
	assert.Empty(t, h.venue.Calls())
	assert.Empty(t, h.activityTypes(t))
	assert.NotNil(t, h.lastRun(t))
}

func TestProcess_TooSmall(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.MinClaimSOL = sol("0.001")
	})
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 2_500_000 // 0.0025 SOL, usable 0.0005

	res := h.run(t)

	assert.Equal(t, domain.StateTooSmall, res.State)
	assert.Empty(t, h.venue.CallsFor("buy"))
	assert.Equal(t, []domain.ActivityType{domain.ActivityFeeClaimed}, h.activityTypes(t))
}

func TestProcess_SameTokenSingleBuy(t *testing.T) {
	h := newHarness(t, nil)
	h.token = &domain.Token{Mint: targetMint, Name: "Target", WalletID: "w1"}
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000

	res := h.run(t)

	assert.Equal(t, domain.StateDoneSingle, res.State)
	buys := h.venue.CallsFor("buy")
	require.Len(t, buys, 1)
	assert.Equal(t, targetMint, buys[0].Target)
	assert.True(t, buys[0].Amount.Equal(sol("0.048")))
	assert.Nil(t, res.SelfBuy)
	assert.Equal(t, []domain.ActivityType{domain.ActivityFeeClaimed, domain.ActivityBuyTargetToken}, h.activityTypes(t))
}

func TestProcess_CollectorTransfer(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Mode = domain.ModeCollector
		c.CollectorAddress = collector
	})
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000

	res := h.run(t)

	assert.Equal(t, domain.StateDoneSplit, res.State)
	require.NotNil(t, res.Transfer)
	assert.True(t, res.Transfer.Success)
	assert.True(t, res.Transferred().Equal(sol("0.024")))
	assert.Nil(t, res.TargetBuy)

	transfers := h.venue.CallsFor("transfer")
	require.Len(t, transfers, 1)
	assert.Equal(t, collector, transfers[0].Target)

	buys := h.venue.CallsFor("buy")
	require.Len(t, buys, 1)
	assert.Equal(t, ownMint, buys[0].Target)

	assert.ElementsMatch(t, []domain.ActivityType{
		domain.ActivityFeeClaimed,
		domain.ActivityTransferToCollector,
		domain.ActivityBuySelfToken,
	}, h.activityTypes(t))
}

func TestProcess_FailedBuyIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000
	h.venue.FailBuy(targetMint, "slippage exceeded")

	res := h.run(t)

	assert.Equal(t, domain.StateDoneSplit, res.State)
	assert.False(t, res.TargetBuy.Success)
	assert.True(t, res.SelfBuy.Success)
	assert.True(t, res.Bought())
	assert.ElementsMatch(t, []domain.ActivityType{
		domain.ActivityFeeClaimed,
		domain.ActivityBuyTargetTokenFailed,
		domain.ActivityBuySelfToken,
	}, h.activityTypes(t))
}

func TestProcess_ActivityIDsNumberedPerWallet(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Mode = domain.ModeCollector
		c.CollectorAddress = collector
	})
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000
	h.venue.FailBuy(ownMint, "slippage exceeded")
	h.venue.FailTransfers("rpc timeout")

	res := h.run(t)
	require.Equal(t, domain.StateDoneSplit, res.State)

	recs, err := h.activity.List(context.Background(), domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	ids := make(map[string]domain.ActivityType, len(recs))
	for _, r := range recs {
		ids[r.ID] = r.Type
	}
	assert.Len(t, ids, 3)

	// Claim first, then transfer, then the self buy.
	assert.Equal(t, domain.ActivityFeeClaimed,
		ids[idhash.ComputeActivityID("pass-1", h.wallet.ID, domain.ActivityFeeClaimed, 0)])
	assert.Equal(t, domain.ActivityTransferToCollectorFailed,
		ids[idhash.ComputeActivityID("pass-1", h.wallet.ID, domain.ActivityTransferToCollectorFailed, 1)])
	assert.Equal(t, domain.ActivityBuySelfTokenFailed,
		ids[idhash.ComputeActivityID("pass-1", h.wallet.ID, domain.ActivityBuySelfTokenFailed, 2)])
}

func TestProcess_RerunWithoutAccrual(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SetBalance(h.wallet.Address, 1_000_000_000)
	h.credit = 50_000_000

	first := h.run(t)
	require.Equal(t, domain.StateDoneSplit, first.State)
	buysAfterFirst := len(h.venue.CallsFor("buy"))

	h.venue.SetClaim(ownMint, domain.ClaimNothing, "no fees to claim")
	second := h.pipeline.Process(context.Background(), "pass-2", h.wallet, h.token)

	assert.Equal(t, domain.StateNoFees, second.State)
	assert.Equal(t, buysAfterFirst, len(h.venue.CallsFor("buy")))
}

func TestSplit(t *testing.T) {
	for _, usable := range []string{"0.048", "0.0480001", "0.003", "1.2345678", "0.0010001", "7"} {
		t.Run(usable, func(t *testing.T) {
			u := sol(usable)
			first, second := Split(u)

			assert.True(t, first.Add(second).Equal(u), "halves must sum to usable")
			assert.LessOrEqual(t, first.Exponent()*-1, domain.LotPrecision)
			diff := second.Sub(first).Abs()
			assert.True(t, diff.LessThan(sol("0.000002")), "halves differ by %s", diff)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg.TargetMint = targetMint
	assert.NoError(t, cfg.Validate())

	cfg.Mode = domain.ModeCollector
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg.CollectorAddress = collector
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "bogus"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}
