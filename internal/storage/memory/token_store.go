package memory

import (
	"context"
	"sort"
	"sync"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenDirectory.
type TokenStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byMint: make(map[string]*domain.Token),
	}
}

// Insert adds a token. Returns ErrDuplicateKey if mint already exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMint[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	tokenCopy := *t
	s.byMint[t.Mint] = &tokenCopy
	return nil
}

// ListOwned returns tokens with an owner wallet, ordered by mint ASC.
func (s *TokenStore) ListOwned(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.byMint {
		if t.WalletID == "" {
			continue
		}
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Mint < result[j].Mint
	})
	return result, nil
}

var _ storage.TokenDirectory = (*TokenStore)(nil)
