package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cboard-org/cboard-billing/pkg/billing"
	"github.com/cboard-org/cboard-billing/pkg/binder"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/requestid"
)

const internalMessage = "An error occurred processing your request"

// ErrorInfo contains classified error information.
type ErrorInfo struct {
	StatusCode int
	Body       ErrorBody
	LogLevel   slog.Level
}

// Classify maps err onto a status code and a client-safe body. Messages of
// internal errors are never exposed.
func Classify(err error) ErrorInfo {
	info := ErrorInfo{
		StatusCode: http.StatusInternalServerError,
		Body:       ErrorBody{Message: internalMessage, Error: ErrInternalServerError.Key},
	}

	var (
		validationErr ValidationError
		httpErr       HTTPError
		billingErr    *billing.Error
	)
	switch {
	case errors.As(err, &validationErr):
		info.StatusCode = http.StatusBadRequest
		info.Body = ErrorBody{
			Message: "Validation failed",
			Error:   "validation_error",
			Details: validationErr,
		}
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		info.StatusCode = http.StatusUnsupportedMediaType
		info.Body = ErrorBody{Message: err.Error(), Error: "unsupported_media_type"}
	case errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		info.StatusCode = http.StatusBadRequest
		info.Body = ErrorBody{Message: err.Error(), Error: ErrBadRequest.Key}
	case errors.As(err, &httpErr):
		info.StatusCode = httpErr.Code
		info.Body = ErrorBody{Message: http.StatusText(httpErr.Code), Error: httpErr.Key}
	case errors.As(err, &billingErr):
		info.StatusCode = billingStatus(billingErr)
		info.Body = ErrorBody{
			Message: billingErr.Message,
			Error:   billingErr.Kind.String(),
			Code:    int(billingErr.Code),
		}
		if billingErr.Kind == billing.KindInternal {
			info.Body.Message = internalMessage
		}
	}

	info.LogLevel = slog.LevelError
	if info.StatusCode < http.StatusInternalServerError {
		info.LogLevel = slog.LevelWarn
	}
	return info
}

func billingStatus(e *billing.Error) int {
	switch e.Kind {
	case billing.KindInvalidInput:
		return http.StatusBadRequest
	case billing.KindConflict:
		return http.StatusConflict
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindUnauthorized:
		return http.StatusUnauthorized
	case billing.KindPurchaseVerificationFailed:
		if e.Code == billing.CodeConnectionFailed {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorHandler returns an ErrorHandler that logs the failure and renders
// it as JSON.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("error_handler"))

	return func(ctx Context, err error) {
		r := ctx.Request()
		info := Classify(err)
		log.LogAttrs(r.Context(), info.LogLevel, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response",
				logger.Error(renderErr),
				logger.Event("render_error"),
			)
		}
	}
}
