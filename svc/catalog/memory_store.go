package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryStore is an in-process Store for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Subscription // keyed by SubscriptionID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Subscription)}
}

func (m *MemoryStore) FindBySubscriptionID(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.entries[id]; ok {
		return s.clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByPayPalPlanID(_ context.Context, paypalID string) (*Subscription, error) {
	if paypalID == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.entries {
		for _, p := range s.Plans {
			if p.PaypalID == paypalID {
				return s.clone(), nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Insert(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[s.SubscriptionID]; ok {
		return ErrDuplicate
	}
	if m.conflicts(s) {
		return ErrDuplicate
	}
	s.ID = bson.NewObjectID().Hex()
	m.entries[s.SubscriptionID] = s.clone()
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.entries[s.SubscriptionID]
	if !ok {
		return ErrNotFound
	}
	if m.conflicts(s) {
		return ErrDuplicate
	}
	c := s.clone()
	c.ID = existing.ID
	m.entries[s.SubscriptionID] = c
	s.ID = existing.ID
	return nil
}

func (m *MemoryStore) DeleteBySubscriptionID(_ context.Context, id string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.entries, id)
	return s, nil
}

func (m *MemoryStore) List(_ context.Context, q ListQuery) ([]Subscription, int64, error) {
	q = q.Normalize()
	needle := strings.ToLower(q.Search)

	m.mu.RLock()
	matched := make([]Subscription, 0, len(m.entries))
	for _, s := range m.entries {
		if needle == "" || strings.Contains(strings.ToLower(s.Name), needle) {
			matched = append(matched, *s.clone())
		}
	}
	m.mu.RUnlock()

	field, dir := q.SortField()
	slices.SortFunc(matched, func(a, b Subscription) int {
		var c int
		switch field {
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "subscriptionId":
			c = cmp.Compare(a.SubscriptionID, b.SubscriptionID)
		case "createdAt":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "updatedAt":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = cmp.Compare(a.ID, b.ID)
		}
		return c * dir
	})

	total := int64(len(matched))
	skip := min(q.Skip(), len(matched))
	end := min(skip+q.Limit, len(matched))
	return matched[skip:end], total, nil
}

func (m *MemoryStore) All(_ context.Context) ([]Subscription, error) {
	m.mu.RLock()
	out := make([]Subscription, 0, len(m.entries))
	for _, s := range m.entries {
		out = append(out, *s.clone())
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Subscription) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// conflicts reports whether s collides with another entry on a unique field.
// Callers hold the write lock.
func (m *MemoryStore) conflicts(s *Subscription) bool {
	for id, other := range m.entries {
		if id == s.SubscriptionID {
			continue
		}
		if other.Name == s.Name {
			return true
		}
		for _, p := range s.Plans {
			for _, op := range other.Plans {
				if p.PlanID == op.PlanID {
					return true
				}
				if p.PaypalID != "" && p.PaypalID == op.PaypalID {
					return true
				}
			}
		}
	}
	return false
}
