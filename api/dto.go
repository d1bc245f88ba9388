package api

import (
	"time"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/svc/catalog"
	"github.com/cboard-org/cboard-billing/svc/subscriber"
)

type productBody struct {
	SubscriptionID string     `json:"subscriptionId"`
	PlanID         string     `json:"planId"`
	Title          string     `json:"title,omitempty"`
	BillingPeriod  string     `json:"billingPeriod,omitempty"`
	Price          any        `json:"price,omitempty"`
	Status         string     `json:"status,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

func (p *productBody) product() *subscriber.Product {
	if p == nil {
		return nil
	}
	return &subscriber.Product{
		SubscriptionID: p.SubscriptionID,
		PlanID:         p.PlanID,
		Title:          p.Title,
		BillingPeriod:  p.BillingPeriod,
		Price:          p.Price,
		Status:         p.Status,
	}
}

func newProductBody(p subscriber.Product) productBody {
	return productBody{
		SubscriptionID: p.SubscriptionID,
		PlanID:         p.PlanID,
		Title:          p.Title,
		BillingPeriod:  p.BillingPeriod,
		Price:          p.Price,
		Status:         p.Status,
		CreatedAt:      timePtr(p.CreatedAt),
		UpdatedAt:      timePtr(p.UpdatedAt),
	}
}

type transactionBody struct {
	Platform             string         `json:"platform"`
	NativePurchase       map[string]any `json:"nativePurchase"`
	SubscriptionState    string         `json:"subscriptionState"`
	ExpiryDate           *time.Time     `json:"expiryDate"`
	IsExpired            bool           `json:"isExpired"`
	IsBillingRetryPeriod bool           `json:"isBillingRetryPeriod"`
	VerifiedAt           *time.Time     `json:"verifiedAt,omitempty"`
}

func newTransactionBody(t *subscriber.Transaction) *transactionBody {
	if t == nil {
		return nil
	}
	return &transactionBody{
		Platform:             string(t.Platform),
		NativePurchase:       t.NativePurchase,
		SubscriptionState:    string(t.SubscriptionState),
		ExpiryDate:           timePtr(t.ExpiryDate),
		IsExpired:            t.IsExpired,
		IsBillingRetryPeriod: t.IsBillingRetryPeriod,
		VerifiedAt:           timePtr(t.VerifiedAt),
	}
}

type subscriberResponse struct {
	ID          string           `json:"id"`
	MongoID     string           `json:"_id"`
	UserID      string           `json:"userId"`
	Country     string           `json:"country"`
	Status      string           `json:"status"`
	Product     *productBody     `json:"product,omitempty"`
	Transaction *transactionBody `json:"transaction,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func newSubscriberResponse(s *subscriber.Subscriber) subscriberResponse {
	resp := subscriberResponse{
		ID:          s.ID,
		MongoID:     s.ID,
		UserID:      s.UserID,
		Country:     s.Country,
		Status:      string(s.Status),
		Transaction: newTransactionBody(s.Transaction),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if !s.Product.IsZero() {
		p := newProductBody(s.Product)
		resp.Product = &p
	}
	return resp
}

type createSubscriberRequest struct {
	UserID  string       `json:"userId" validate:"required"`
	Country string       `json:"country" validate:"required"`
	Status  string       `json:"status"`
	Product *productBody `json:"product"`
}

func (r createSubscriberRequest) input() subscriber.CreateInput {
	return subscriber.CreateInput{
		UserID:  r.UserID,
		Country: r.Country,
		Status:  r.Status,
		Product: r.Product.product(),
	}
}

type getSubscriberRequest struct {
	UserID string `json:"-" path:"userId" validate:"required"`
}

type subscriberIDRequest struct {
	ID string `json:"-" path:"id" validate:"required"`
}

type transactionRequest struct {
	ID             string         `json:"-" path:"id"`
	Platform       string         `json:"platform"`
	NativePurchase map[string]any `json:"nativePurchase"`
}

func (r transactionRequest) input() subscriber.TransactionInput {
	return subscriber.TransactionInput{Platform: r.Platform, NativePurchase: r.NativePurchase}
}

type transactionInputBody struct {
	Platform       string         `json:"platform" validate:"required"`
	NativePurchase map[string]any `json:"nativePurchase" validate:"required"`
}

type updateSubscriberRequest struct {
	ID          string                `json:"-" path:"id" validate:"required"`
	Country     *string               `json:"country" validate:"omitempty,min=1"`
	Status      *string               `json:"status"`
	Product     *productBody          `json:"product"`
	Transaction *transactionInputBody `json:"transaction"`
}

func (r updateSubscriberRequest) input() subscriber.UpdateInput {
	in := subscriber.UpdateInput{
		Country: r.Country,
		Status:  r.Status,
		Product: r.Product.product(),
	}
	if r.Transaction != nil {
		in.Transaction = &subscriber.TransactionInput{
			Platform:       r.Transaction.Platform,
			NativePurchase: r.Transaction.NativePurchase,
		}
	}
	return in
}

// transactionResponse is the envelope the client purchase plugin expects.
type transactionResponse struct {
	OK    bool              `json:"ok"`
	Data  any               `json:"data"`
	Error *transactionError `json:"error,omitempty"`
}

type transactionError struct {
	Message string `json:"message"`
}

type transactionFailure struct {
	Code billing.Code `json:"code"`
}

type transactionSuccess struct {
	ID            string                 `json:"id"`
	LatestReceipt bool                   `json:"latest_receipt"`
	Transaction   verifiedTransaction    `json:"transaction"`
	Collection    []transactionCollected `json:"collection"`
}

type verifiedTransaction struct {
	Data verifiedTransactionData `json:"data"`
	Type string                  `json:"type"`
}

type verifiedTransactionData struct {
	Transaction *transactionBody `json:"transaction"`
	Success     bool             `json:"success"`
}

type transactionCollected struct {
	ExpiryDate           *time.Time `json:"expiryDate"`
	IsExpired            bool       `json:"isExpired"`
	IsBillingRetryPeriod bool       `json:"isBillingRetryPeriod"`
	SubscriptionState    string     `json:"subscriptionState"`
}

func newTransactionResponse(o subscriber.Outcome) transactionResponse {
	if !o.OK {
		return transactionResponse{
			Data:  transactionFailure{Code: o.Code},
			Error: &transactionError{Message: o.Message},
		}
	}
	tx := newTransactionBody(o.Transaction)
	return transactionResponse{
		OK: true,
		Data: transactionSuccess{
			ID:            o.ProductID,
			LatestReceipt: true,
			Transaction: verifiedTransaction{
				Data: verifiedTransactionData{Transaction: tx, Success: true},
				Type: tx.Platform,
			},
			Collection: []transactionCollected{{
				ExpiryDate:           tx.ExpiryDate,
				IsExpired:            tx.IsExpired,
				IsBillingRetryPeriod: tx.IsBillingRetryPeriod,
				SubscriptionState:    tx.SubscriptionState,
			}},
		},
	}
}

type planBody struct {
	Name       string     `json:"name" validate:"required"`
	PlanID     string     `json:"planId" validate:"required"`
	Status     string     `json:"status,omitempty"`
	Countries  []any      `json:"countries,omitempty"`
	Period     string     `json:"period,omitempty"`
	Renovation string     `json:"renovation,omitempty" validate:"omitempty,oneof=Active Inactive"`
	Tags       []string   `json:"tags,omitempty"`
	PaypalID   string     `json:"paypalId,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

func newPlanBody(p catalog.Plan) planBody {
	return planBody{
		Name:       p.Name,
		PlanID:     p.PlanID,
		Status:     p.Status,
		Countries:  p.Countries,
		Period:     p.Period,
		Renovation: p.Renovation,
		Tags:       p.Tags,
		PaypalID:   p.PaypalID,
		CreatedAt:  timePtr(p.CreatedAt),
		UpdatedAt:  timePtr(p.UpdatedAt),
	}
}

func plansFromBody(in []planBody) []catalog.Plan {
	if in == nil {
		return nil
	}
	out := make([]catalog.Plan, 0, len(in))
	for _, p := range in {
		out = append(out, catalog.Plan{
			Name:       p.Name,
			PlanID:     p.PlanID,
			Status:     p.Status,
			Countries:  p.Countries,
			Period:     p.Period,
			Renovation: p.Renovation,
			Tags:       p.Tags,
			PaypalID:   p.PaypalID,
		})
	}
	return out
}

type subscriptionResponse struct {
	ID             string     `json:"id"`
	MongoID        string     `json:"_id"`
	SubscriptionID string     `json:"subscriptionId"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	Platform       string     `json:"platform"`
	Benefits       []string   `json:"benefits"`
	Plans          []planBody `json:"plans"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func newSubscriptionResponse(s *catalog.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:             s.ID,
		MongoID:        s.ID,
		SubscriptionID: s.SubscriptionID,
		Name:           s.Name,
		Status:         s.Status,
		Platform:       s.Platform,
		Benefits:       s.Benefits,
		Plans:          make([]planBody, 0, len(s.Plans)),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if resp.Benefits == nil {
		resp.Benefits = []string{}
	}
	for _, p := range s.Plans {
		resp.Plans = append(resp.Plans, newPlanBody(p))
	}
	return resp
}

type subscriptionIDRequest struct {
	SubscriptionID string `json:"-" path:"subscriptionId" validate:"required"`
}

type createSubscriptionRequest struct {
	SubscriptionID string     `json:"-" path:"subscriptionId" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	Status         string     `json:"status"`
	Platform       string     `json:"platform"`
	Benefits       []string   `json:"benefits"`
	Plans          []planBody `json:"plans" validate:"dive"`
}

func (r createSubscriptionRequest) subscription() catalog.Subscription {
	return catalog.Subscription{
		Name:     r.Name,
		Status:   r.Status,
		Platform: r.Platform,
		Benefits: r.Benefits,
		Plans:    plansFromBody(r.Plans),
	}
}

type updateSubscriptionRequest struct {
	SubscriptionID string     `json:"-" path:"subscriptionId" validate:"required"`
	Name           *string    `json:"name" validate:"omitempty,min=1"`
	Status         *string    `json:"status"`
	Platform       *string    `json:"platform"`
	Benefits       []string   `json:"benefits"`
	Plans          []planBody `json:"plans" validate:"omitempty,dive"`
}

func (r updateSubscriptionRequest) input() catalog.UpdateInput {
	return catalog.UpdateInput{
		Name:     r.Name,
		Status:   r.Status,
		Platform: r.Platform,
		Benefits: r.Benefits,
		Plans:    plansFromBody(r.Plans),
	}
}

type listSubscriptionsRequest struct {
	Search string `query:"search" validate:"max=100"`
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
	Sort   string `query:"sort"`
}

func (r listSubscriptionsRequest) query() catalog.ListQuery {
	return catalog.ListQuery{
		Search: r.Search,
		Page:   r.Page,
		Limit:  r.Limit,
		Offset: r.Offset,
		Sort:   r.Sort,
	}
}

type pageResponse struct {
	Data   []subscriptionResponse `json:"data"`
	Total  int64                  `json:"total"`
	Page   int                    `json:"page"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Sort   string                 `json:"sort,omitempty"`
	Search string                 `json:"search,omitempty"`
}

func newPageResponse(p *catalog.Page) pageResponse {
	resp := pageResponse{
		Data:   make([]subscriptionResponse, 0, len(p.Data)),
		Total:  p.Total,
		Page:   p.Page,
		Limit:  p.Limit,
		Offset: p.Offset,
		Sort:   p.Sort,
		Search: p.Search,
	}
	for i := range p.Data {
		resp.Data = append(resp.Data, newSubscriptionResponse(&p.Data[i]))
	}
	return resp
}

type syncResponse struct {
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
	Failed   int    `json:"failed"`
	Duration string `json:"duration"`
}

func newSyncResponse(r *catalog.SyncReport) syncResponse {
	return syncResponse{
		Added:    r.Added,
		Updated:  r.Updated,
		Deleted:  r.Deleted,
		Failed:   r.Failed,
		Duration: r.Duration.String(),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
