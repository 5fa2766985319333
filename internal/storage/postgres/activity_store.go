package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// ActivityStore implements storage.ActivityStore using PostgreSQL.
// Append-only: rows are never updated.
type ActivityStore struct {
	pool *Pool
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert appends a record. Returns ErrDuplicateKey if the id exists.
func (s *ActivityStore) Insert(ctx context.Context, r *domain.ActivityRecord) (err error) {
	if r == nil || r.ID == "" || r.WalletID == "" || !r.Type.IsValid() {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_activity", time.Now(), &err)

	query := `
		INSERT INTO wallet_activities (
			id, wallet_id, activity_type, activity_description,
			token_name, transaction_signature, amount_sol, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ID,
		r.WalletID,
		string(r.Type),
		r.Description,
		r.TokenName,
		r.Signature,
		r.AmountSOL.String(),
		r.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: unknown wallet %s", storage.ErrInvalidInput, r.WalletID)
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List returns records matching filter, newest first.
// A non-positive limit returns every match.
func (s *ActivityStore) List(ctx context.Context, filter domain.ActivityFilter) (_ []*domain.ActivityRecord, err error) {
	defer observeQuery("list_activity", time.Now(), &err)

	query, args := buildActivityQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var records []*domain.ActivityRecord
	for rows.Next() {
		var r domain.ActivityRecord
		var typ, amount string
		err := rows.Scan(
			&r.ID,
			&r.WalletID,
			&typ,
			&r.Description,
			&r.TokenName,
			&r.Signature,
			&amount,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		r.Type = domain.ActivityType(typ)
		r.AmountSOL, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return records, nil
}

// buildActivityQuery renders the filter as SQL with positional args.
func buildActivityQuery(filter domain.ActivityFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.WalletID != "" {
		where = append(where, "wallet_id = "+arg(filter.WalletID))
	}
	switch filter.Feed {
	case domain.FeedBuy:
		where = append(where, "activity_type LIKE '%buy%'")
	case domain.FeedClaim:
		where = append(where, "activity_type LIKE '%claim%'")
	}
	if filter.ExcludeFailed {
		where = append(where,
			"activity_type NOT LIKE '%\\_failed' ESCAPE '\\'",
			"activity_type <> "+arg(string(domain.ActivityFeeClaimAnomaly)))
	}

	var b strings.Builder
	b.WriteString(`
		SELECT id, wallet_id, activity_type, activity_description,
			token_name, transaction_signature, amount_sol::text, created_at
		FROM wallet_activities`)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		b.WriteString("\n\t\tLIMIT " + arg(filter.Limit))
	}
	return b.String(), args
}
