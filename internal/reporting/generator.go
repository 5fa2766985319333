package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// stateOrder lists terminal states in pipeline order.
var stateOrder = []domain.WalletState{
	domain.StateNoToken,
	domain.StateClaimFailed,
	domain.StateNoFees,
	domain.StateClaimAnomaly,
	domain.StateBelowMinimum,
	domain.StateTooSmall,
	domain.StateDoneSingle,
	domain.StateDoneSplit,
}

// Generator produces reports from stored data.
type Generator struct {
	runStore      storage.RunStore
	activityStore storage.ActivityStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runs storage.RunStore, activity storage.ActivityStore) *Generator {
	return &Generator{
		runStore:      runs,
		activityStore: activity,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over the latest runLimit passes and the whole
// activity log.
func (g *Generator) Generate(ctx context.Context, runLimit int) (*Report, error) {
	passes, err := g.runStore.ListRecent(ctx, runLimit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		RunLimit:    runLimit,
		Totals: Totals{
			TotalClaimedSOL:     decimal.Zero,
			TotalTransferredSOL: decimal.Zero,
		},
	}

	for _, p := range passes {
		report.Runs = append(report.Runs, runRow(p))
		addTotals(&report.Totals, p)
	}

	if len(passes) > 0 {
		latest, err := g.runStore.GetPass(ctx, passes[0].PassID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load latest pass: %w", err)
		}
		if latest != nil {
			report.LatestPassID = latest.PassID
			report.LatestStates = countStates(latest.Results)
		}
	}

	records, err := g.activityStore.List(ctx, domain.ActivityFilter{Feed: domain.FeedAll})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	report.Activity = summarizeActivity(records)

	return report, nil
}

func runRow(p *domain.PassSummary) RunRow {
	row := RunRow{
		PassID:     p.PassID,
		StartedAt:  p.StartedAt,
		Mode:       p.Mode,
		Wallets:    p.TotalWallets,
		Claimed:    p.Claimed,
		Bought:     p.Bought,
		NoFees:     p.NoFees,
		Errors:     p.Errors,
		ClaimedSOL: p.TotalClaimedSOL,
		DurationMs: p.DurationMs,
	}
	if p.Collector != nil {
		ok := p.Collector.Buy != nil && p.Collector.Buy.Success
		row.CollectorOK = &ok
	}
	return row
}

func addTotals(t *Totals, p *domain.PassSummary) {
	t.Passes++
	t.WalletsProcessed += p.TotalWallets
	t.Claimed += p.Claimed
	t.Bought += p.Bought
	t.Errors += p.Errors
	t.TotalClaimedSOL = t.TotalClaimedSOL.Add(p.TotalClaimedSOL)
	t.TotalTransferredSOL = t.TotalTransferredSOL.Add(p.TotalTransferredSOL)
}

// countStates returns non-zero state counts in pipeline order.
func countStates(results []domain.WalletRunResult) []StateRow {
	counts := make(map[domain.WalletState]int)
	for _, r := range results {
		counts[r.State]++
	}

	var rows []StateRow
	for _, s := range stateOrder {
		if n := counts[s]; n > 0 {
			rows = append(rows, StateRow{State: s, Count: n})
		}
	}
	return rows
}

func summarizeActivity(records []*domain.ActivityRecord) []ActivityTypeRow {
	byType := make(map[domain.ActivityType]*ActivityTypeRow)
	for _, r := range records {
		row, ok := byType[r.Type]
		if !ok {
			row = &ActivityTypeRow{Type: r.Type, AmountSOL: decimal.Zero}
			byType[r.Type] = row
		}
		row.Count++
		row.AmountSOL = row.AmountSOL.Add(r.AmountSOL)
	}

	rows := make([]ActivityTypeRow, 0, len(byType))
	for _, row := range byType {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Type < rows[j].Type
	})
	return rows
}
