package storage

import (
	"context"
	"time"

	"fee-reinvestor/internal/domain"
)

// WalletRegistry provides access to the custodial wallet registry.
type WalletRegistry interface {
	// Insert adds a wallet. Returns ErrDuplicateKey if the id or address exists.
	Insert(ctx context.Context, w *domain.Wallet) error

	// GetByID retrieves a wallet. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Wallet, error)

	// ListActive returns active wallets ordered by created_at ASC.
	ListActive(ctx context.Context) ([]*domain.Wallet, error)

	// UpdateLastRun stamps the wallet's last processed time.
	// Returns ErrNotFound if the wallet does not exist.
	UpdateLastRun(ctx context.Context, id string, at time.Time) error
}

// TokenDirectory maps issued tokens to the wallets that own them.
type TokenDirectory interface {
	// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, t *domain.Token) error

	// ListOwned returns tokens with an owner wallet, ordered by mint ASC.
	ListOwned(ctx context.Context) ([]*domain.Token, error)
}

// ActivityStore provides append-only access to wallet_activities.
type ActivityStore interface {
	// Insert appends a record. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.ActivityRecord) error

	// List returns records matching filter, newest first, at most filter.Limit.
	List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error)
}

// RunStore keeps the history of orchestrator passes.
type RunStore interface {
	// InsertPass stores a pass summary and its per-wallet results.
	// Returns ErrDuplicateKey if the pass id exists.
	InsertPass(ctx context.Context, s *domain.PassSummary) error

	// ListRecent returns the latest passes, newest first, without results.
	ListRecent(ctx context.Context, limit int) ([]*domain.PassSummary, error)

	// GetPass returns one pass with its results. Returns ErrNotFound if not exists.
	GetPass(ctx context.Context, passID string) (*domain.PassSummary, error)
}
