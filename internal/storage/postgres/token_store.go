package postgres

import (
	"context"
	"fmt"
	"time"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// TokenStore implements storage.TokenDirectory using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenDirectory = (*TokenStore)(nil)

// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
// An empty WalletID stores an unowned token.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) (err error) {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_token", time.Now(), &err)

	var walletID *string
	if t.WalletID != "" {
		walletID = &t.WalletID
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tokens (mint_address, name, symbol, wallet_id)
		VALUES ($1, $2, $3, $4)
	`, t.Mint, t.Name, t.Symbol, walletID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: unknown wallet %s", storage.ErrInvalidInput, t.WalletID)
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ListOwned returns tokens with a non-null owner, ordered by mint ASC.
func (s *TokenStore) ListOwned(ctx context.Context) (_ []*domain.Token, err error) {
	defer observeQuery("list_owned_tokens", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT mint_address, name, symbol, wallet_id
		FROM tokens
		WHERE wallet_id IS NOT NULL
		ORDER BY mint_address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list owned tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.Mint, &t.Name, &t.Symbol, &t.WalletID); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}
