package catalog

import (
	"context"
	"strings"
)

// Pagination defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-_id"
)

// Store persists catalog entries. Implementations return ErrNotFound and
// ErrDuplicate so the service can classify failures.
type Store interface {
	FindBySubscriptionID(ctx context.Context, id string) (*Subscription, error)
	FindByPayPalPlanID(ctx context.Context, paypalID string) (*Subscription, error)

	// Insert assigns ID on success.
	Insert(ctx context.Context, s *Subscription) error

	// Replace overwrites the entry with the same SubscriptionID.
	Replace(ctx context.Context, s *Subscription) error

	// DeleteBySubscriptionID removes the entry and returns what was removed.
	DeleteBySubscriptionID(ctx context.Context, id string) (*Subscription, error)

	List(ctx context.Context, q ListQuery) ([]Subscription, int64, error)

	// All returns every entry ordered by id.
	All(ctx context.Context) ([]Subscription, error)
}

// ListQuery selects a page of catalog entries. Search matches the name
// case-insensitively.
type ListQuery struct {
	Search string
	Page   int
	Limit  int
	Offset int
	Sort   string
}

// Normalize applies defaults and bounds.
func (q ListQuery) Normalize() ListQuery {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	return q
}

// Skip is the number of entries before the page.
func (q ListQuery) Skip() int {
	return (q.Page-1)*q.Limit + q.Offset
}

// SortField returns the field name and direction of Sort: 1 ascending,
// -1 descending.
func (q ListQuery) SortField() (string, int) {
	field, dir := q.Sort, 1
	if strings.HasPrefix(field, "-") {
		field, dir = field[1:], -1
	}
	switch field {
	case "_id", "name", "subscriptionId", "createdAt", "updatedAt":
		return field, dir
	default:
		return "_id", -1
	}
}

// Page is a paginated list response.
type Page struct {
	Data   []Subscription
	Total  int64
	Page   int
	Limit  int
	Offset int
	Sort   string
	Search string
}
