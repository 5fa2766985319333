package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/storage"
)

// WalletStore implements storage.WalletRegistry using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletRegistry = (*WalletStore)(nil)

// Insert adds a wallet. Returns ErrDuplicateKey if id or public key exists.
func (s *WalletStore) Insert(ctx context.Context, w *domain.Wallet) (err error) {
	if w == nil || w.ID == "" || w.Address == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_wallet", time.Now(), &err)

	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO secure_wallets (
			id, public_key, api_key, is_active, last_fee_collection, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		w.ID,
		w.Address,
		w.APIKey,
		w.IsActive,
		w.LastRunAt,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(ctx context.Context, id string) (_ *domain.Wallet, err error) {
	defer observeQuery("get_wallet", time.Now(), &err)

	query := `
		SELECT id, public_key, api_key, is_active, last_fee_collection, created_at
		FROM secure_wallets
		WHERE id = $1
	`

	w, err := scanWallet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// ListActive returns active wallets ordered by created_at ASC.
func (s *WalletStore) ListActive(ctx context.Context) (_ []*domain.Wallet, err error) {
	defer observeQuery("list_active_wallets", time.Now(), &err)

	query := `
		SELECT id, public_key, api_key, is_active, last_fee_collection, created_at
		FROM secure_wallets
		WHERE is_active = TRUE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// UpdateLastRun sets last_fee_collection. Returns ErrNotFound if not exists.
func (s *WalletStore) UpdateLastRun(ctx context.Context, id string, at time.Time) (err error) {
	defer observeQuery("update_last_run", time.Now(), &err)

	tag, err := s.pool.Exec(ctx,
		`UPDATE secure_wallets SET last_fee_collection = $2 WHERE id = $1`,
		id, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanWallet scans a single row into a Wallet.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID,
		&w.Address,
		&w.APIKey,
		&w.IsActive,
		&w.LastRunAt,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	if w.LastRunAt != nil {
		t := w.LastRunAt.UTC()
		w.LastRunAt = &t
	}
	return &w, nil
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
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), e)
}
