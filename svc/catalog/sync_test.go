package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/billing/paypal"
	"github.com/cboard-org/cboard-billing/pkg/billing/playstore"
	"github.com/cboard-org/cboard-billing/svc/catalog"
)

type mockPlay struct {
	mock.Mock
}

func (m *mockPlay) ListSubscriptions(ctx context.Context) ([]playstore.Subscription, error) {
	args := m.Called(ctx)
	subs, _ := args.Get(0).([]playstore.Subscription)
	return subs, args.Error(1)
}

type mockPlans struct {
	mock.Mock
}

func (m *mockPlans) ListPlans(ctx context.Context) ([]paypal.Plan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]paypal.Plan)
	return plans, args.Error(1)
}

var remoteSubs = []playstore.Subscription{
	{
		ProductID: "one_year_subscription",
		Title:     "Cboard Premium",
		Benefits:  []string{"cloud sync"},
		BasePlans: []playstore.BasePlan{
			{
				ID:              "one-year",
				State:           "ACTIVE",
				BillingPeriod:   "P1Y",
				Resubscribable:  true,
				Tags:            []string{"yearly"},
				RegionalConfigs: []map[string]any{{"regionCode": "US"}},
			},
			{
				ID:            "one-month",
				State:         "INACTIVE",
				BillingPeriod: "P1M",
			},
		},
	},
}

func TestSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("adds entries and links paypal plans", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return(remoteSubs, nil)
		plans := &mockPlans{}
		plans.On("ListPlans", mock.Anything).Return([]paypal.Plan{{ID: "P-YEAR", Name: "one-year"}}, nil)

		svc, _ := newService(t, catalog.WithPlaySource(play), catalog.WithPlanSource(plans))
		report, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Added)
		assert.Zero(t, report.Failed)

		sub, err := svc.Get(ctx, "one_year_subscription")
		require.NoError(t, err)
		assert.Equal(t, "Cboard Premium", sub.Name)
		assert.Equal(t, "android-playstore", sub.Platform)
		assert.Equal(t, "active", sub.Status)
		assert.Equal(t, []string{"cloud sync"}, sub.Benefits)
		require.Len(t, sub.Plans, 2)

		year, ok := sub.Plan("one-year")
		require.True(t, ok)
		assert.Equal(t, "P-YEAR", year.PaypalID)
		assert.Equal(t, catalog.RenovationActive, year.Renovation)
		assert.Equal(t, "P1Y", year.Period)
		assert.Equal(t, []string{"yearly"}, year.Tags)
		assert.Len(t, year.Countries, 1)

		month, ok := sub.Plan("one-month")
		require.True(t, ok)
		assert.Empty(t, month.PaypalID)
		assert.Equal(t, catalog.RenovationInactive, month.Renovation)

		id, err := svc.ResolveProductID(ctx, billing.PlatformPayPal, "P-YEAR")
		require.NoError(t, err)
		assert.Equal(t, "one_year_subscription", id)
	})

	t.Run("updates existing and removes stale play entries", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return(remoteSubs, nil)
		svc, _ := newService(t, catalog.WithPlaySource(play))

		existing, err := svc.Create(ctx, "one_year_subscription", entry("Old name", plan("one-year", "")))
		require.NoError(t, err)
		_, err = svc.Create(ctx, "retired", entry("Retired"))
		require.NoError(t, err)
		manual := entry("Web only")
		manual.Platform = "paypal"
		_, err = svc.Create(ctx, "web", manual)
		require.NoError(t, err)

		report, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, 1, report.Deleted)

		got, err := svc.Get(ctx, "one_year_subscription")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		assert.Equal(t, "Cboard Premium", got.Name)

		_, err = svc.Get(ctx, "retired")
		assert.Equal(t, billing.KindNotFound, kindOf(t, err))
		_, err = svc.Get(ctx, "web")
		assert.NoError(t, err)
	})

	t.Run("prepaid plan stays editable", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return([]playstore.Subscription{{
			ProductID: "prepaid_month",
			Title:     "Cboard Pass",
			BasePlans: []playstore.BasePlan{{ID: "pass", State: "ACTIVE", Prepaid: true}},
		}}, nil)
		svc, _ := newService(t, catalog.WithPlaySource(play))

		report, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Added)
		assert.Zero(t, report.Failed)

		got, err := svc.Get(ctx, "prepaid_month")
		require.NoError(t, err)
		pass, ok := got.Plan("pass")
		require.True(t, ok)
		assert.Equal(t, catalog.PeriodUnspecified, pass.Period)
		assert.Equal(t, catalog.RenovationInactive, pass.Renovation)

		name := "Cboard Monthly Pass"
		updated, err := svc.Update(ctx, "prepaid_month", catalog.UpdateInput{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Name)
	})

	t.Run("invalid remote entry is counted as failed", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return([]playstore.Subscription{{
			ProductID: "broken",
			BasePlans: []playstore.BasePlan{{ID: "dup", State: "ACTIVE"}, {ID: "dup", State: "ACTIVE"}},
		}}, nil)
		svc, store := newService(t, catalog.WithPlaySource(play))

		report, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Zero(t, report.Added)

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("paypal failure leaves plans unlinked", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return(remoteSubs, nil)
		plans := &mockPlans{}
		plans.On("ListPlans", mock.Anything).Return(nil, errors.New("boom"))

		svc, _ := newService(t, catalog.WithPlaySource(play), catalog.WithPlanSource(plans))
		report, err := svc.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Added)

		_, err = svc.ResolveProductID(ctx, billing.PlatformPayPal, "P-YEAR")
		require.NoError(t, err)
	})

	t.Run("play failure aborts", func(t *testing.T) {
		t.Parallel()
		play := &mockPlay{}
		play.On("ListSubscriptions", mock.Anything).Return(nil, errors.New("unavailable"))

		svc, store := newService(t, catalog.WithPlaySource(play))
		_, err := svc.Create(ctx, "premium", entry("Premium"))
		require.NoError(t, err)

		_, err = svc.Sync(ctx)
		assert.Equal(t, billing.KindInternal, kindOf(t, err))

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("requires a play source", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.Sync(ctx)
		assert.ErrorIs(t, err, catalog.ErrSyncDisabled)
	})
}
