package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

func samplePass(id string, started time.Time) *domain.PassSummary {
	buy := domain.TradeOutcome{Success: true, Signature: "buy-sig", AmountSOL: decimal.RequireFromString("0.024"), Mint: "Target"}
	claim := domain.NewClaimOutcome(domain.ClaimAccepted, "claim-sig", "")
	return &domain.PassSummary{
		PassID:              id,
		Mode:                domain.ModeCollector,
		TargetToken:         "Target",
		StartedAt:           started,
		FinishedAt:          started.Add(1500 * time.Millisecond),
		DurationMs:          1500,
		TotalWallets:        2,
		Claimed:             1,
		Bought:              1,
		NoToken:             1,
		TotalClaimedSOL:     decimal.RequireFromString("0.05"),
		TotalTransferredSOL: decimal.RequireFromString("0.024"),
		Collector: &domain.CollectorResult{
			WalletID:       "col",
			ContributedSOL: decimal.RequireFromString("0.024"),
			ObservedSOL:    decimal.RequireFromString("0.034"),
		},
		Results: []domain.WalletRunResult{
			{
				WalletID:      "w1",
				Address:       "Addr1",
				TokenMint:     "MintA",
				TokenName:     "Ay",
				State:         domain.StateDoneSplit,
				BalanceBefore: decimal.RequireFromString("1"),
				Claim:         &claim,
				ClaimedSOL:    decimal.RequireFromString("0.05"),
				UsableSOL:     decimal.RequireFromString("0.048"),
				SelfBuy:       &buy,
				Transfer:      &buy,
				DurationMs:    900,
			},
			{WalletID: "w2", Address: "Addr2", State: domain.StateNoToken},
		},
	}
}

func TestRunStore_InsertAndGetPass(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(conn)
	ctx := context.Background()
	started := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertPass(ctx, samplePass("pass-1", started)))

	got, err := store.GetPass(ctx, "pass-1")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeCollector, got.Mode)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 2, got.TotalWallets)
	assert.Equal(t, 1, got.NoToken)
	assert.True(t, got.TotalClaimedSOL.Equal(decimal.RequireFromString("0.05")))
	require.NotNil(t, got.Collector)
	assert.True(t, got.Collector.ObservedSOL.Equal(decimal.RequireFromString("0.034")))

	require.Len(t, got.Results, 2)
	first := got.Results[0]
	assert.Equal(t, "w1", first.WalletID)
	assert.Equal(t, domain.StateDoneSplit, first.State)
	assert.True(t, first.UsableSOL.Equal(decimal.RequireFromString("0.048")))
	require.NotNil(t, first.Claim)
	assert.True(t, first.Claim.Claimed)
	require.NotNil(t, first.Transfer)
	assert.Equal(t, "buy-sig", first.Transfer.Signature)
	assert.Nil(t, first.TargetBuy)
	assert.Equal(t, domain.StateNoToken, got.Results[1].State)
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(conn)
	ctx := context.Background()
	p := samplePass("pass-dup", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.InsertPass(ctx, p))
	assert.ErrorIs(t, store.InsertPass(ctx, p), storage.ErrDuplicateKey)
}

func TestRunStore_ListRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(conn)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.InsertPass(ctx, samplePass(id, base.Add(time.Duration(i)*time.Hour))))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "p3", recent[0].PassID)
	assert.Equal(t, "p2", recent[1].PassID)
	assert.Empty(t, recent[0].Results)
}

func TestRunStore_GetPassNotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewRunStore(conn).GetPass(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_InsertPass_WalletRowsFailLeaveNoPass(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(conn)
	ctx := context.Background()
	require.NoError(t, conn.Exec(ctx, `DROP TABLE wallet_runs`))

	err := store.InsertPass(ctx, samplePass("pass-broken", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)))
	require.Error(t, err)

	_, err = store.GetPass(ctx, "pass-broken")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recent, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
