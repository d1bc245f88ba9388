package subscriber

import (
	"context"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
)

// Store persists subscribers. Implementations return ErrNotFound and
// ErrDuplicate so the service can classify failures.
type Store interface {
	FindByID(ctx context.Context, id string) (*Subscriber, error)
	FindByUserID(ctx context.Context, userID string) (*Subscriber, error)

	// Insert assigns ID, CreatedAt and UpdatedAt on success.
	Insert(ctx context.Context, s *Subscriber) error

	// UpdateFields applies the non-nil fields and returns the stored record.
	UpdateFields(ctx context.Context, id string, f Fields) (*Subscriber, error)

	// DeleteByID removes the record and returns what was removed.
	DeleteByID(ctx context.Context, id string) (*Subscriber, error)

	// List calls fn for every subscriber holding a transaction.
	// Iteration stops at the first error returned by fn.
	List(ctx context.Context, fn func(*Subscriber) error) error
}

// Fields is a partial subscriber update. Nil fields are left untouched.
type Fields struct {
	Country     *string
	Status      *billing.LifecycleState
	Product     *Product
	Transaction *Transaction
	UpdatedAt   time.Time
}
