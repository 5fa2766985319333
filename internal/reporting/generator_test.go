package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage/memory"
)

func setupTestData(t *testing.T) (*memory.RunStore, *memory.ActivityStore) {
	t.Helper()
	ctx := context.Background()
	runs := memory.NewRunStore()
	activity := memory.NewActivityStore()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	passes := []*domain.PassSummary{
		{
			PassID:          "pass-early",
			Mode:            domain.ModeDirect,
			StartedAt:       base,
			TotalWallets:    3,
			Claimed:         1,
			Bought:          1,
			NoFees:          1,
			TotalClaimedSOL: decimal.RequireFromString("0.05"),
			Results: []domain.WalletRunResult{
				{WalletID: "w1", State: domain.StateDoneSplit},
				{WalletID: "w2", State: domain.StateNoFees},
				{WalletID: "w3", State: domain.StateNoToken},
			},
		},
		{
			PassID:              "pass-late",
			Mode:                domain.ModeCollector,
			StartedAt:           base.Add(time.Hour),
			TotalWallets:        2,
			Claimed:             2,
			Bought:              2,
			Errors:              1,
			TotalClaimedSOL:     decimal.RequireFromString("0.1"),
			TotalTransferredSOL: decimal.RequireFromString("0.048"),
			Collector: &domain.CollectorResult{
				Buy: &domain.TradeOutcome{Success: true},
			},
			Results: []domain.WalletRunResult{
				{WalletID: "w1", State: domain.StateDoneSplit},
				{WalletID: "w2", State: domain.StateDoneSplit},
			},
		},
	}
	for _, p := range passes {
		if err := runs.InsertPass(ctx, p); err != nil {
			t.Fatalf("insert pass: %v", err)
		}
	}

	records := []*domain.ActivityRecord{
		{ID: "a1", WalletID: "w1", Type: domain.ActivityFeeClaimed, AmountSOL: decimal.RequireFromString("0.05"), CreatedAt: base},
		{ID: "a2", WalletID: "w1", Type: domain.ActivityBuySelfToken, AmountSOL: decimal.RequireFromString("0.024"), CreatedAt: base},
		{ID: "a3", WalletID: "w2", Type: domain.ActivityFeeClaimed, AmountSOL: decimal.RequireFromString("0.05"), CreatedAt: base.Add(time.Hour)},
	}
	for _, r := range records {
		if err := activity.Insert(ctx, r); err != nil {
			t.Fatalf("insert activity: %v", err)
		}
	}
	return runs, activity
}

func TestGenerate_Totals(t *testing.T) {
	runs, activity := setupTestData(t)

	fixedTime := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	report, err := NewGenerator(runs, activity).
		WithClock(func() time.Time { return fixedTime }).
		Generate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if report.Totals.Passes != 2 || report.Totals.WalletsProcessed != 5 || report.Totals.Claimed != 3 {
		t.Errorf("unexpected totals: %+v", report.Totals)
	}
	if !report.Totals.TotalClaimedSOL.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("TotalClaimedSOL = %s, want 0.15", report.Totals.TotalClaimedSOL)
	}
	if len(report.Runs) != 2 || report.Runs[0].PassID != "pass-late" {
		t.Fatalf("runs not newest first: %+v", report.Runs)
	}
	if report.Runs[0].CollectorOK == nil || !*report.Runs[0].CollectorOK {
		t.Errorf("expected collector OK on collector pass")
	}
	if report.Runs[1].CollectorOK != nil {
		t.Errorf("expected no collector flag on direct pass")
	}
}

func TestGenerate_LatestStates(t *testing.T) {
	runs, activity := setupTestData(t)

	report, err := NewGenerator(runs, activity).Generate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.LatestPassID != "pass-late" {
		t.Fatalf("LatestPassID = %q", report.LatestPassID)
	}
	if len(report.LatestStates) != 1 || report.LatestStates[0].State != domain.StateDoneSplit || report.LatestStates[0].Count != 2 {
		t.Errorf("unexpected states: %+v", report.LatestStates)
	}
}

func TestGenerate_ActivitySummary(t *testing.T) {
	runs, activity := setupTestData(t)

	report, err := NewGenerator(runs, activity).Generate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Activity) != 2 {
		t.Fatalf("expected 2 activity types, got %d", len(report.Activity))
	}
	// Sorted by type: buy_self_token < fee_claimed
	if report.Activity[0].Type != domain.ActivityBuySelfToken {
		t.Errorf("first type = %s", report.Activity[0].Type)
	}
	claimed := report.Activity[1]
	if claimed.Count != 2 || !claimed.AmountSOL.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("unexpected fee_claimed row: %+v", claimed)
	}
}

func TestGenerate_Empty(t *testing.T) {
	report, err := NewGenerator(memory.NewRunStore(), memory.NewActivityStore()).Generate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "No passes recorded.") || !strings.Contains(md, "No activity recorded.") {
		t.Errorf("empty report missing placeholders:\n%s", md)
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	runs, activity := setupTestData(t)
	report, err := NewGenerator(runs, activity).Generate(context.Background(), 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, section := range []string{
		"# Fee Reinvestment Report",
		"## Totals",
		"## Recent Passes",
		"## Latest Pass States (pass-lat)",
		"## Activity",
		"| DONE_SPLIT | 2 |",
		"| fee_claimed | 2 | 0.100000000 |",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("markdown missing %q", section)
		}
	}
}

func TestRenderActivityCSV_Quoting(t *testing.T) {
	records := []*domain.ActivityRecord{
		{
			ID:          "a1",
			WalletID:    "w1",
			Type:        domain.ActivityBuyTargetTokenFailed,
			Description: "Buy failed: slippage, retry later",
			AmountSOL:   decimal.RequireFromString("0.024"),
			CreatedAt:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	out, err := RenderActivityCSV(records)
	if err != nil {
		t.Fatalf("RenderActivityCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,created_at,wallet_id,activity_type") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	want := `a1,2026-06-01T00:00:00Z,w1,buy_target_token_failed,,0.024000000,,"Buy failed: slippage, retry later"`
	if lines[1] != want {
		t.Errorf("row = %s\nwant  %s", lines[1], want)
	}
}
