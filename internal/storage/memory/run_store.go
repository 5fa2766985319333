package memory

import (
	"context"
	"sort"
	"sync"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu     sync.RWMutex
	passes map[string]*domain.PassSummary
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		passes: make(map[string]*domain.PassSummary),
	}
}

// InsertPass stores a pass. Returns ErrDuplicateKey if pass id already exists.
func (s *RunStore) InsertPass(_ context.Context, p *domain.PassSummary) error {
	if p == nil || p.PassID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.passes[p.PassID]; exists {
		return storage.ErrDuplicateKey
	}

	passCopy := *p
	passCopy.Results = append([]domain.WalletRunResult(nil), p.Results...)
	s.passes[p.PassID] = &passCopy
	return nil
}

// ListRecent returns the latest passes, newest first, without results.
func (s *RunStore) ListRecent(_ context.Context, limit int) ([]*domain.PassSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PassSummary, 0, len(s.passes))
	for _, p := range s.passes {
		passCopy := *p
		passCopy.Results = nil
		result = append(result, &passCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetPass returns one pass with its results. Returns ErrNotFound if not exists.
func (s *RunStore) GetPass(_ context.Context, passID string) (*domain.PassSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.passes[passID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	passCopy := *p
	passCopy.Results = append([]domain.WalletRunResult(nil), p.Results...)
	return &passCopy, nil
}

var _ storage.RunStore = (*RunStore)(nil)
