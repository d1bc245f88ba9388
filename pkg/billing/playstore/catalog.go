package playstore

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/api/androidpublisher/v3"
)

const resubscribeActive = "RESUBSCRIBE_STATE_ACTIVE"

// Subscription is a Play Console subscription product reduced to the fields
// the catalog keeps.
type Subscription struct {
	ProductID string
	Title     string
	Benefits  []string
	BasePlans []BasePlan
}

// BasePlan is one billing option of a Subscription.
type BasePlan struct {
	ID              string
	State           string
	BillingPeriod   string // ISO 8601 duration, e.g. P1M
	Prepaid         bool
	Resubscribable  bool
	Tags            []string
	RegionalConfigs []map[string]any
}

// ListSubscriptions returns every subscription product of the application,
// following pagination to the end.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var (
		out   []Subscription
		token string
	)
	for {
		call := c.svc.Monetization.Subscriptions.List(c.packageName).Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, errors.Join(ErrListSubscriptions, err)
		}
		for _, s := range resp.Subscriptions {
			if s == nil {
				continue
			}
			out = append(out, mapSubscription(s))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func mapSubscription(s *androidpublisher.Subscription) Subscription {
	sub := Subscription{ProductID: s.ProductId}
	if len(s.Listings) > 0 && s.Listings[0] != nil {
		sub.Title = s.Listings[0].Title
		sub.Benefits = s.Listings[0].Benefits
	}
	for _, bp := range s.BasePlans {
		if bp == nil {
			continue
		}
		plan := BasePlan{
			ID:              bp.BasePlanId,
			State:           bp.State,
			RegionalConfigs: rawConfigs(bp.RegionalConfigs),
		}
		if ar := bp.AutoRenewingBasePlanType; ar != nil {
			plan.BillingPeriod = ar.BillingPeriodDuration
			plan.Resubscribable = ar.ResubscribeState == resubscribeActive
		}
		if pp := bp.PrepaidBasePlanType; pp != nil {
			plan.Prepaid = true
			plan.BillingPeriod = pp.BillingPeriodDuration
		}
		for _, tag := range bp.OfferTags {
			if tag != nil && tag.Tag != "" {
				plan.Tags = append(plan.Tags, tag.Tag)
			}
		}
		sub.BasePlans = append(sub.BasePlans, plan)
	}
	return sub
}

// rawConfigs keeps regional configs as generic documents; the catalog stores
// them without interpreting prices.
func rawConfigs(configs []*androidpublisher.RegionalBasePlanConfig) []map[string]any {
	out := make([]map[string]any, 0, len(configs))
	for _, rc := range configs {
		if rc == nil {
			continue
		}
		data, err := json.Marshal(rc)
		if err != nil {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
