package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletRegistry.
type WalletStore struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Wallet
	byAddress map[string]string // address -> id
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		byID:      make(map[string]*domain.Wallet),
		byAddress: make(map[string]string),
	}
}

// Insert adds a wallet. Returns ErrDuplicateKey if id or address already exists.
func (s *WalletStore) Insert(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.ID == "" || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[w.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byAddress[w.Address]; exists {
		return storage.ErrDuplicateKey
	}

	s.byID[w.ID] = copyWallet(w)
	s.byAddress[w.Address] = w.ID
	return nil
}

// GetByID retrieves a wallet by ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(_ context.Context, id string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyWallet(w), nil
}

// ListActive returns active wallets ordered by created_at ASC, then id.
func (s *WalletStore) ListActive(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wallet
	for _, w := range s.byID {
		if w.IsActive {
			result = append(result, copyWallet(w))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// UpdateLastRun stamps the wallet's last run. Returns ErrNotFound if not exists.
func (s *WalletStore) UpdateLastRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.byID[id]
	if !exists {
		return storage.ErrNotFound
	}
	t := at.UTC()
	w.LastRunAt = &t
	return nil
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	if w.LastRunAt != nil {
		t := *w.LastRunAt
		c.LastRunAt = &t
	}
	return &c
}

var _ storage.WalletRegistry = (*WalletStore)(nil)
