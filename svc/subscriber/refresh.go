package subscriber

import (
	"context"
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// Refresh re-verifies the stored transaction of sub and persists the new
// state. The product check is not repeated; it was enforced on attach.
func (s *Service) Refresh(ctx context.Context, sub *Subscriber) (*Subscriber, error) {
	if sub == nil || sub.Transaction == nil {
		return sub, nil
	}
	tx := sub.Transaction

	purchase, err := billing.ParsePurchase(tx.Platform, tx.NativePurchase)
	if err != nil {
		return nil, err
	}
	res, err := s.verifier.Verify(ctx, purchase)
	if err != nil {
		return nil, billing.AsError(err)
	}

	now := s.clock.Now()
	resolution := billing.Resolve(*res, now)
	next := &Transaction{
		Platform:             tx.Platform,
		NativePurchase:       tx.NativePurchase,
		SubscriptionState:    resolution.State,
		ExpiryDate:           resolution.ExpiresAt,
		IsExpired:            resolution.IsExpired,
		IsBillingRetryPeriod: resolution.IsBillingRetryPeriod,
		VerifiedAt:           now,
	}

	updated, err := s.store.UpdateFields(ctx, sub.ID, Fields{
		Status:      &next.SubscriptionState,
		Transaction: next,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, s.storeError(err, "failed to save refreshed transaction")
	}
	if updated.Status != sub.Status {
		s.logger.InfoContext(ctx, "subscriber state changed",
			logger.SubscriberID(sub.ID),
			logger.Platform(string(tx.Platform)),
			logger.State(string(updated.Status)),
		)
	}
	return updated, nil
}

// RefreshStats summarizes a RefreshAll run.
type RefreshStats struct {
	Checked  int
	Changed  int
	Failed   int
	Duration time.Duration
}

// RefreshAll re-verifies every subscriber that holds a transaction. Provider
// failures are counted and skipped; only context cancellation aborts the run.
func (s *Service) RefreshAll(ctx context.Context) (RefreshStats, error) {
	var stats RefreshStats
	start := time.Now()

	err := s.store.List(ctx, func(sub *Subscriber) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Checked++

		updated, err := s.Refresh(ctx, sub)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			stats.Failed++
			s.logger.WarnContext(ctx, "subscriber refresh failed",
				logger.SubscriberID(sub.ID),
				logger.Error(err),
			)
			return nil
		}
		if updated.Status != sub.Status {
			stats.Changed++
		}
		return nil
	})
	stats.Duration = time.Since(start)

	s.logger.InfoContext(ctx, "subscriber refresh finished",
		logger.Event("refresh_all"),
		logger.Count("checked", stats.Checked),
		logger.Count("changed", stats.Changed),
		logger.Count("failed", stats.Failed),
		logger.Duration(stats.Duration),
	)
	return stats, err
}
