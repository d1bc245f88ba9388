package catalog

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/paypal"
	"github.com/cboard-org/cboard-billing/pkg/billing/playstore"
	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// SyncReport summarizes a catalog synchronization.
type SyncReport struct {
	Added    int
	Updated  int
	Deleted  int
	Failed   int
	Duration time.Duration
}

// Sync mirrors the Play Console subscription products into the catalog.
// Play products and PayPal plans are fetched concurrently; a PayPal failure
// only leaves plans unlinked. Play entries missing remotely are removed.
// Per-entry store failures are counted and do not stop the run.
func (s *Service) Sync(ctx context.Context) (*SyncReport, error) {
	if s.play == nil {
		return nil, billing.Internal("catalog sync is not available", ErrSyncDisabled)
	}
	start := time.Now()

	var (
		remote []playstore.Subscription
		plans  []paypal.Plan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remote, err = s.play.ListSubscriptions(gctx)
		return err
	})
	if s.plans != nil {
		g.Go(func() error {
			var err error
			plans, err = s.plans.ListPlans(gctx)
			if err != nil {
				s.logger.WarnContext(ctx, "paypal plans unavailable", logger.Error(err))
				plans = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, billing.Internal("failed to list play subscriptions", err)
	}

	paypalIDs := make(map[string]string, len(plans))
	for _, p := range plans {
		paypalIDs[p.Name] = p.ID
	}

	report := &SyncReport{}
	now := s.clock.Now()
	seen := make(map[string]struct{}, len(remote))

	for _, rs := range remote {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mapped := mapRemote(rs, paypalIDs)
		seen[mapped.SubscriptionID] = struct{}{}

		added, err := s.upsert(ctx, mapped, now)
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "failed to sync subscription",
				logger.SubscriptionID(mapped.SubscriptionID),
				logger.Error(err),
			)
			continue
		}
		if added {
			report.Added++
		} else {
			report.Updated++
		}
	}

	local, err := s.store.All(ctx)
	if err != nil {
		return nil, billing.Internal("failed to load catalog", err)
	}
	for _, l := range local {
		if _, ok := seen[l.SubscriptionID]; ok || l.Platform != string(billing.PlatformAndroidPlaystore) {
			continue
		}
		if _, err := s.store.DeleteBySubscriptionID(ctx, l.SubscriptionID); err != nil && !errors.Is(err, ErrNotFound) {
			report.Failed++
			s.logger.ErrorContext(ctx, "failed to remove stale subscription",
				logger.SubscriptionID(l.SubscriptionID),
				logger.Error(err),
			)
			continue
		}
		report.Deleted++
	}

	report.Duration = time.Since(start)
	s.logger.InfoContext(ctx, "catalog synchronized",
		logger.Count("added", report.Added),
		logger.Count("updated", report.Updated),
		logger.Count("deleted", report.Deleted),
		logger.Count("failed", report.Failed),
		logger.Duration(report.Duration),
	)
	return report, nil
}

// upsert stores mapped, keeping the identity and creation times of an
// existing entry. It reports whether the entry was new.
func (s *Service) upsert(ctx context.Context, mapped *Subscription, now time.Time) (bool, error) {
	mapped.trim()
	if err := mapped.validate(); err != nil {
		return false, err
	}
	existing, err := s.store.FindBySubscriptionID(ctx, mapped.SubscriptionID)
	switch {
	case errors.Is(err, ErrNotFound):
		mapped.CreatedAt, mapped.UpdatedAt = now, now
		for i := range mapped.Plans {
			mapped.Plans[i].CreatedAt, mapped.Plans[i].UpdatedAt = now, now
		}
		return true, s.store.Insert(ctx, mapped)
	case err != nil:
		return false, err
	}

	mapped.ID = existing.ID
	mapped.CreatedAt = existing.CreatedAt
	mapped.UpdatedAt = now
	mapped.Plans = mergePlans(existing.Plans, mapped.Plans, now)
	return false, s.store.Replace(ctx, mapped)
}

func mapRemote(rs playstore.Subscription, paypalIDs map[string]string) *Subscription {
	name := rs.Title
	if name == "" {
		name = rs.ProductID
	}
	sub := &Subscription{
		SubscriptionID: rs.ProductID,
		Name:           name,
		Status:         "active",
		Platform:       string(billing.PlatformAndroidPlaystore),
		Benefits:       rs.Benefits,
		Plans:          make([]Plan, 0, len(rs.BasePlans)),
	}
	for _, bp := range rs.BasePlans {
		renovation := RenovationInactive
		if bp.Resubscribable {
			renovation = RenovationActive
		}
		period := bp.BillingPeriod
		if period == "" {
			period = PeriodUnspecified
		}
		status := bp.State
		if status == "" {
			status = "STATE_UNSPECIFIED"
		}
		countries := make([]any, 0, len(bp.RegionalConfigs))
		for _, rc := range bp.RegionalConfigs {
			countries = append(countries, rc)
		}
		sub.Plans = append(sub.Plans, Plan{
			Name:       bp.ID,
			PlanID:     bp.ID,
			Status:     status,
			Countries:  countries,
			Period:     period,
			Renovation: renovation,
			Tags:       bp.Tags,
			PaypalID:   paypalIDs[bp.ID],
		})
	}
	return sub
}
