// Package handler provides type-safe HTTP request handling for the billing API.
//
// Handlers are generic functions that receive a bound request value and
// return a Response:
//
//	type getSubscriberRequest struct {
//		UserID string `path:"userId" validate:"required"`
//	}
//
//	func getSubscriber(ctx handler.Context, req getSubscriberRequest) handler.Response {
//		sub, err := svc.GetByUserID(ctx, actor, req.UserID)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(sub)
//	}
//
//	r.Get("/subscriber/{userId}", handler.Wrap(getSubscriber,
//		handler.WithBinders[handler.Context, getSubscriberRequest](
//			binder.Path(chi.URLParam),
//			handler.Validate(),
//		),
//	))
//
// # Errors
//
// JSONError and the ErrorHandler returned by NewErrorHandler classify errors
// with Classify:
//
//   - ValidationError renders 400 with per-field details
//   - binder errors render 400, or 415 for an unsupported media type
//   - HTTPError renders its own status code
//   - *billing.Error renders a status derived from its Kind
//
// Anything else renders 500. Messages of internal errors are never sent to
// clients.
package handler
