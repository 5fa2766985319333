package memory

import (
	"context"
	"sort"
	"sync"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
// Append-only: records are never updated or deleted.
type ActivityStore struct {
	mu      sync.RWMutex
	records []*domain.ActivityRecord
	ids     map[string]struct{}
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		ids: make(map[string]struct{}),
	}
}

// Insert appends a record. Returns ErrDuplicateKey if id already exists.
func (s *ActivityStore) Insert(_ context.Context, r *domain.ActivityRecord) error {
	if r == nil || r.ID == "" || r.WalletID == "" || !r.Type.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *r
	s.records = append(s.records, &recCopy)
	s.ids[r.ID] = struct{}{}
	return nil
}

// List returns records matching filter, newest first.
// A non-positive limit returns every match.
func (s *ActivityStore) List(_ context.Context, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityRecord
	for _, r := range s.records {
		if filter.Matches(r) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}

	// Stable keeps insertion order for equal timestamps, reversed below.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *ActivityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ storage.ActivityStore = (*ActivityStore)(nil)
