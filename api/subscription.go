package api

import (
	"github.com/cboard-org/cboard-billing/handler"
)

type subscriptionHandlers struct {
	svc CatalogService
}

func (h subscriptionHandlers) list(ctx handler.Context, req listSubscriptionsRequest) handler.Response {
	page, err := h.svc.List(ctx, req.query())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newPageResponse(page))
}

func (h subscriptionHandlers) get(ctx handler.Context, req subscriptionIDRequest) handler.Response {
	sub, err := h.svc.Get(ctx, req.SubscriptionID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriptionResponse(sub))
}

func (h subscriptionHandlers) create(ctx handler.Context, req createSubscriptionRequest) handler.Response {
	sub, err := h.svc.Create(ctx, req.SubscriptionID, req.subscription())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriptionResponse(sub))
}

func (h subscriptionHandlers) update(ctx handler.Context, req updateSubscriptionRequest) handler.Response {
	sub, err := h.svc.Update(ctx, req.SubscriptionID, req.input())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriptionResponse(sub))
}

func (h subscriptionHandlers) delete(ctx handler.Context, req subscriptionIDRequest) handler.Response {
	sub, err := h.svc.Delete(ctx, req.SubscriptionID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriptionResponse(sub))
}

func (h subscriptionHandlers) sync(ctx handler.Context, _ struct{}) handler.Response {
	report, err := h.svc.Sync(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSyncResponse(report))
}
