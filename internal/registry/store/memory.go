package store

import (
	"context"
	"sync"
	"time"

	"registrar/internal/registry/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded registry store. The mutex gives each call the
// single-writer discipline the registration flow assumes; byName, order, and
// the count they imply stay consistent because every mutation happens under
// the same lock.
type InMemory struct {
	mu       sync.RWMutex
	byName   map[string]models.DomainRecord
	order    []models.Name
	reserved map[string]struct{}
	fee      int64
}

// NewInMemory creates an empty store priced at defaultFee.
func NewInMemory(defaultFee int64) (*InMemory, error) {
	if defaultFee <= 0 || defaultFee > models.MaxFee {
		return nil, ErrFeeOutOfRange
	}
	return &InMemory{
		byName:   make(map[string]models.DomainRecord),
		reserved: make(map[string]struct{}),
		fee:      defaultFee,
	}, nil
}

// Exists reports whether the name has been committed.
func (s *InMemory) Exists(ctx context.Context, name models.Name) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[name.String()]
	return ok, nil
}

// OwnerOf returns the committed owner of name, or sentinel.ErrNotFound.
func (s *InMemory) OwnerOf(ctx context.Context, name models.Name) (id.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byName[name.String()]
	if !ok {
		return id.AccountID{}, sentinel.ErrNotFound
	}
	return record.Owner, nil
}

// Reserve claims the slot for name ahead of the fund transfers. Returns
// sentinel.ErrAlreadyUsed when the name is committed or already reserved.
func (s *InMemory) Reserve(ctx context.Context, name models.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name.String()
	if _, ok := s.byName[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.reserved[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.reserved[key] = struct{}{}
	return nil
}

// Commit finalizes a reserved name: the mapping entry, the order append, and
// the count move together under the lock. Returns sentinel.ErrInvalidState
// when no reservation exists.
func (s *InMemory) Commit(ctx context.Context, name models.Name, owner id.AccountID, at time.Time) (models.DomainRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name.String()
	if _, ok := s.reserved[key]; !ok {
		return models.DomainRecord{}, sentinel.ErrInvalidState
	}
	delete(s.reserved, key)

	record := models.DomainRecord{
		Name:         name,
		Owner:        owner,
		Level:        name.Level(),
		Position:     len(s.order),
		RegisteredAt: at,
	}
	s.byName[key] = record
	s.order = append(s.order, name)
	return record, nil
}

// Release rolls back a reservation. Releasing a name that is not reserved is
// a no-op so the rollback path stays idempotent.
func (s *InMemory) Release(ctx context.Context, name models.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, name.String())
	return nil
}

// Page returns the committed names in slots [start, end) of registration
// order.
func (s *InMemory) Page(ctx context.Context, start, end int) ([]models.Name, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start < 0 || start >= end {
		return nil, ErrInvalidRange
	}
	if end > len(s.order) {
		return nil, ErrOutOfBounds
	}
	page := make([]models.Name, end-start)
	copy(page, s.order[start:end])
	return page, nil
}

// Count returns the number of committed registrations.
func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// Fee returns the current registration fee.
func (s *InMemory) Fee(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fee, nil
}

// SetFee replaces the fee, enforcing the [1, MaxFee] bound.
func (s *InMemory) SetFee(ctx context.Context, fee int64) error {
	if fee <= 0 || fee > models.MaxFee {
		return ErrFeeOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fee = fee
	return nil
}
