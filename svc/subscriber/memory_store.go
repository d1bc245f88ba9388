package subscriber

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryStore is an in-process Store for local development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Subscriber
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Subscriber)}
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byID[id]; ok {
		return clone(s), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByUserID(_ context.Context, userID string) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byID {
		if s.UserID == userID {
			return clone(s), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Insert(_ context.Context, s *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.UserID == s.UserID {
			return ErrDuplicate
		}
	}
	s.ID = bson.NewObjectID().Hex()
	m.byID[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, id string, f Fields) (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if f.Country != nil {
		s.Country = *f.Country
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	if f.Product != nil {
		s.Product = *f.Product
	}
	if f.Transaction != nil {
		tx := *f.Transaction
		s.Transaction = &tx
	}
	s.UpdatedAt = f.UpdatedAt
	return clone(s), nil
}

func (m *MemoryStore) DeleteByID(_ context.Context, id string) (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.byID, id)
	return s, nil
}

func (m *MemoryStore) List(ctx context.Context, fn func(*Subscriber) error) error {
	m.mu.RLock()
	ids := slices.Sorted(maps.Keys(m.byID))
	subs := make([]*Subscriber, 0, len(ids))
	for _, id := range ids {
		if s := m.byID[id]; s.Transaction != nil {
			subs = append(subs, clone(s))
		}
	}
	m.mu.RUnlock()

	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func clone(s *Subscriber) *Subscriber {
	c := *s
	if s.Transaction != nil {
		tx := *s.Transaction
		c.Transaction = &tx
	}
	return &c
}
