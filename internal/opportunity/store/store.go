package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

// Store keeps opportunities in memory for the lifetime of the process,
// most recent first.
type Store struct {
	mu    sync.RWMutex
	items []*opportunity.Opportunity
	index map[uuid.UUID]int
	now   func() time.Time
}

func New() *Store {
	return &Store{
		index: make(map[uuid.UUID]int),
		now:   time.Now,
	}
}

func (s *Store) Insert(_ context.Context, o *opportunity.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[o.ID]; exists {
		return fmt.Errorf("inserting %s: %w", o.ID, opportunity.ErrDuplicateID)
	}

	s.items = slices.Insert(s.items, 0, o.Clone())
	s.reindex()

	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*opportunity.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, opportunity.ErrNotFound
	}

	return s.items[i].Clone(), nil
}

func (s *Store) List(_ context.Context, filter opportunity.ListFilter) ([]*opportunity.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*opportunity.Opportunity, 0, len(s.items))

	for _, o := range s.items {
		if !filter.Match(o) {
			continue
		}

		out = append(out, o.Clone())
	}

	return out, nil
}

func (s *Store) UpdateStage(_ context.Context, id uuid.UUID, to opportunity.Stage, guard func(from opportunity.Stage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return opportunity.ErrNotFound
	}

	o := s.items[i]

	if guard != nil {
		if err := guard(o.Stage); err != nil {
			return err
		}
	}

	o.Stage = to
	o.UpdatedAt = new(s.now())

	return nil
}

func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items), nil
}

// reindex rebuilds the id lookup after a head insertion shifted every position.
func (s *Store) reindex() {
	for i, o := range s.items {
		s.index[o.ID] = i
	}
}
