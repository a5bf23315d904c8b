// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SessionForge Contributors

package auth

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryStore is the in-memory reference SessionStore. A coarse mutex
// guards the maps; records are cloned on the way in and out so callers
// never alias stored state. Suitable for tests and single-process
// deployments; production should back the store with a database.
type MemoryStore struct {
	mu      sync.Mutex
	byToken map[string]*RefreshToken
	byID    map[ulid.ULID]*RefreshToken
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]*RefreshToken),
		byID:    make(map[ulid.ULID]*RefreshToken),
	}
}

// FindByToken returns the record with the exact token value.
func (s *MemoryStore) FindByToken(ctx context.Context, token string) (*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("STORE_CANCELED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// FindActiveByUser returns all active records for the user.
func (s *MemoryStore) FindActiveByUser(ctx context.Context, userID ulid.ULID) ([]*RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("STORE_CANCELED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*RefreshToken
	for _, record := range s.byID {
		if record.UserID == userID && record.IsActive() {
			active = append(active, record.Clone())
		}
	}
	return active, nil
}

// Insert stores a new record, rejecting duplicate token values.
func (s *MemoryStore) Insert(ctx context.Context, record *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("STORE_CANCELED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[record.Token]; exists {
		return ErrDuplicateToken
	}
	if _, exists := s.byID[record.ID]; exists {
		return oops.Code("STORE_CONFLICT").
			With("token_id", record.ID.String()).
			Errorf("record ID already present")
	}

	stored := record.Clone()
	s.byToken[stored.Token] = stored
	s.byID[stored.ID] = stored
	return nil
}

// Update persists changes to an existing record. Unknown IDs fail
// loudly; there is no upsert.
func (s *MemoryStore) Update(ctx context.Context, record *RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("STORE_CANCELED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[record.ID]
	if !ok {
		return ErrUnknownRecord
	}

	stored := record.Clone()
	delete(s.byToken, current.Token)
	s.byToken[stored.Token] = stored
	s.byID[stored.ID] = stored
	return nil
}

// DeleteExpired removes all records past their expiry.
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, oops.Code("STORE_CANCELED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, record := range s.byID {
		if record.IsExpired() {
			delete(s.byToken, record.Token)
			delete(s.byID, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Compile-time interface check.
var _ SessionStore = (*MemoryStore)(nil)
