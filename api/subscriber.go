package api

import (
	"errors"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/cboard-org/cboard-billing/handler"
	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/binder"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/requestid"
	"github.com/cboard-org/cboard-billing/svc/subscriber"
)

var (
	bindJSON     = []handler.Bind{binder.JSON(), handler.Validate()}
	bindPath     = []handler.Bind{binder.Path(chi.URLParam), handler.Validate()}
	bindQuery    = []handler.Bind{binder.Query(), handler.Validate()}
	bindPathJSON = []handler.Bind{binder.Path(chi.URLParam), binder.JSON(), handler.Validate()}
)

type subscriberHandlers struct {
	svc SubscriberService
}

func (h subscriberHandlers) create(ctx handler.Context, req createSubscriberRequest) handler.Response {
	sub, err := h.svc.Create(ctx, actorFrom(ctx), req.input())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriberResponse(sub))
}

func (h subscriberHandlers) get(ctx handler.Context, req getSubscriberRequest) handler.Response {
	sub, err := h.svc.GetByUserID(ctx, actorFrom(ctx), req.UserID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriberResponse(sub))
}

func (h subscriberHandlers) update(ctx handler.Context, req updateSubscriberRequest) handler.Response {
	sub, err := h.svc.Update(ctx, actorFrom(ctx), req.ID, req.input())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriberResponse(sub))
}

func (h subscriberHandlers) delete(ctx handler.Context, req subscriberIDRequest) handler.Response {
	sub, err := h.svc.Delete(ctx, actorFrom(ctx), req.ID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(newSubscriberResponse(sub))
}

// attachTransaction answers 200 for every outcome; failures are reported in
// the envelope with their billing code. Ownership failures keep their HTTP
// status since they are not purchase outcomes.
func (h subscriberHandlers) attachTransaction(ctx handler.Context, req transactionRequest) handler.Response {
	actor := actorFrom(ctx)
	sub, err := h.svc.AttachTransaction(ctx, actor, req.ID, req.input())
	if errors.Is(err, billing.ErrUnauthorized) {
		return handler.JSONError(err)
	}
	return handler.JSON(newTransactionResponse(subscriber.NewOutcome(sub, err)))
}

// transactionErrorHandler reports undecodable submissions as an invalid
// payload outcome instead of a 400.
func transactionErrorHandler(log *slog.Logger) handler.ErrorHandler[handler.Context] {
	return func(ctx handler.Context, err error) {
		r := ctx.Request()
		log.WarnContext(r.Context(), "invalid transaction payload",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
		)
		outcome := subscriber.NewOutcome(nil, billing.InvalidInput("transaction object is not provided", err))
		_ = handler.JSON(newTransactionResponse(outcome)).Render(ctx.ResponseWriter(), r)
	}
}
