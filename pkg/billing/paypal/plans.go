package paypal

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Plan is a PayPal billing plan.
type Plan struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type planList struct {
	Plans      []Plan `json:"plans"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}

// ListPlans returns every billing plan, walking all pages.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(c.pageSize))
		q.Set("page", strconv.Itoa(page))
		q.Set("total_required", "true")

		var resp planList
		if err := c.do(ctx, http.MethodGet, "/billing/plans", q, nil, &resp); err != nil {
			return nil, err
		}
		plans = append(plans, resp.Plans...)
		if len(resp.Plans) == 0 || page >= resp.TotalPages {
			return plans, nil
		}
	}
}
