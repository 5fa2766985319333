package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/storage"
)

// RunStore implements storage.RunStore using ClickHouse.
// One pass_runs row per pass, one wallet_runs row per wallet result.
type RunStore struct {
	conn *Conn
}

// NewRunStore creates a new RunStore.
func NewRunStore(conn *Conn) *RunStore {
	return &RunStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// walletActions is the JSON payload of wallet_runs.actions_json.
type walletActions struct {
	Claim     *domain.ClaimOutcome `json:"claim,omitempty"`
	TargetBuy *domain.TradeOutcome `json:"target_buy,omitempty"`
	SelfBuy   *domain.TradeOutcome `json:"self_buy,omitempty"`
	Transfer  *domain.TradeOutcome `json:"transfer,omitempty"`
}

const passColumns = `
	pass_id, mode, target_token, started_at, finished_at, duration_ms,
	total_wallets, claimed, bought, no_fees, below_minimum, too_small, no_token, errors,
	total_claimed_sol, total_transferred_sol, collector_json`

// InsertPass stores a pass and its results. Returns ErrDuplicateKey if the
// pass id exists.
func (s *RunStore) InsertPass(ctx context.Context, p *domain.PassSummary) (err error) {
	if p == nil || p.PassID == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_pass", time.Now(), &err)

	// MergeTree doesn't enforce uniqueness
	exists, err := s.exists(ctx, p.PassID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	collector := ""
	if p.Collector != nil {
		data, err := json.Marshal(p.Collector)
		if err != nil {
			return fmt.Errorf("encode collector: %w", err)
		}
		collector = string(data)
	}

	// Wallet rows go first; the pass row marks the history as complete.
	if err := s.insertWalletRuns(ctx, p); err != nil {
		return err
	}

	err = s.conn.Exec(ctx, `INSERT INTO pass_runs (`+passColumns+`) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?
		)`,
		p.PassID, string(p.Mode), p.TargetToken, p.StartedAt.UTC(), p.FinishedAt.UTC(), p.DurationMs,
		uint32(p.TotalWallets), uint32(p.Claimed), uint32(p.Bought), uint32(p.NoFees),
		uint32(p.BelowMinimum), uint32(p.TooSmall), uint32(p.NoToken), uint32(p.Errors),
		p.TotalClaimedSOL, p.TotalTransferredSOL, collector,
	)
	if err != nil {
		return fmt.Errorf("insert pass run: %w", err)
	}
	return nil
}

func (s *RunStore) insertWalletRuns(ctx context.Context, p *domain.PassSummary) (err error) {
	if len(p.Results) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_runs (
			pass_id, seq, wallet_id, address, token_mint, token_name, state,
			balance_before, claimed_sol, usable_sol, actions_json, error, duration_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = batch.Abort()
		}
	}()

	for i := range p.Results {
		r := &p.Results[i]
		actions, err := json.Marshal(walletActions{
			Claim:     r.Claim,
			TargetBuy: r.TargetBuy,
			SelfBuy:   r.SelfBuy,
			Transfer:  r.Transfer,
		})
		if err != nil {
			return fmt.Errorf("encode actions: %w", err)
		}
		err = batch.Append(
			p.PassID, uint32(i), r.WalletID, r.Address, r.TokenMint, r.TokenName, string(r.State),
			r.BalanceBefore, r.ClaimedSOL, r.UsableSOL, string(actions), r.Error, r.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListRecent returns the latest passes, newest first, without results.
func (s *RunStore) ListRecent(ctx context.Context, limit int) (_ []*domain.PassSummary, err error) {
	defer observeQuery("list_recent_passes", time.Now(), &err)

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.Query(ctx, `SELECT `+passColumns+`
		FROM pass_runs
		ORDER BY started_at DESC, pass_id DESC
		LIMIT ?`, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent passes: %w", err)
	}
	defer rows.Close()

	var passes []*domain.PassSummary
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pass rows: %w", err)
	}
	return passes, nil
}

// GetPass returns one pass with its results. Returns ErrNotFound if not exists.
func (s *RunStore) GetPass(ctx context.Context, passID string) (_ *domain.PassSummary, err error) {
	defer observeQuery("get_pass", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `SELECT `+passColumns+`
		FROM pass_runs
		WHERE pass_id = ?
		LIMIT 1`, passID)
	if err != nil {
		return nil, fmt.Errorf("query pass: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate pass rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	p, err := scanPass(rows)
	if err != nil {
		return nil, err
	}

	p.Results, err = s.walletRuns(ctx, passID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *RunStore) walletRuns(ctx context.Context, passID string) ([]domain.WalletRunResult, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT wallet_id, address, token_mint, token_name, state,
			balance_before, claimed_sol, usable_sol, actions_json, error, duration_ms
		FROM wallet_runs
		WHERE pass_id = ?
		ORDER BY seq ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("query wallet runs: %w", err)
	}
	defer rows.Close()

	var results []domain.WalletRunResult
	for rows.Next() {
		var (
			r       domain.WalletRunResult
			state   string
			actions string
		)
		err := rows.Scan(
			&r.WalletID, &r.Address, &r.TokenMint, &r.TokenName, &state,
			&r.BalanceBefore, &r.ClaimedSOL, &r.UsableSOL, &actions, &r.Error, &r.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet run row: %w", err)
		}
		r.State = domain.WalletState(state)

		var a walletActions
		if err := json.Unmarshal([]byte(actions), &a); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
		r.Claim, r.TargetBuy, r.SelfBuy, r.Transfer = a.Claim, a.TargetBuy, a.SelfBuy, a.Transfer
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet run rows: %w", err)
	}
	return results, nil
}

func (s *RunStore) exists(ctx context.Context, passID string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM pass_runs WHERE pass_id = ?`, passID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (*domain.PassSummary, error) {
	var (
		p                                       domain.PassSummary
		mode, collector                         string
		total, claimed, bought, noFees          uint32
		belowMinimum, tooSmall, noToken, errCnt uint32
		totalClaimed, totalTransferred          decimal.Decimal
	)
	err := row.Scan(
		&p.PassID, &mode, &p.TargetToken, &p.StartedAt, &p.FinishedAt, &p.DurationMs,
		&total, &claimed, &bought, &noFees, &belowMinimum, &tooSmall, &noToken, &errCnt,
		&totalClaimed, &totalTransferred, &collector,
	)
	if err != nil {
		return nil, fmt.Errorf("scan pass row: %w", err)
	}

	p.Mode = domain.ReinvestMode(mode)
	p.StartedAt = p.StartedAt.UTC()
	p.FinishedAt = p.FinishedAt.UTC()
	p.TotalWallets, p.Claimed, p.Bought, p.NoFees = int(total), int(claimed), int(bought), int(noFees)
	p.BelowMinimum, p.TooSmall, p.NoToken, p.Errors = int(belowMinimum), int(tooSmall), int(noToken), int(errCnt)
	p.TotalClaimedSOL, p.TotalTransferredSOL = totalClaimed, totalTransferred

	if collector != "" {
		p.Collector = &domain.CollectorResult{}
		if err := json.Unmarshal([]byte(collector), p.Collector); err != nil {
			return nil, fmt.Errorf("decode collector: %w", err)
		}
	}
	return &p, nil
}

// observeQuery records query latency and outcome. Call deferred with the
// named error result.
func observeQuery(operation string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	if errors.Is(e, storage.ErrNotFound) {
		e = nil
	}
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), e)
}
