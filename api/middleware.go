package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cboard-org/cboard-billing/handler"
	"github.com/cboard-org/cboard-billing/pkg/jwt"
	"github.com/cboard-org/cboard-billing/pkg/logger"
	"github.com/cboard-org/cboard-billing/pkg/ratelimiter"
	"github.com/cboard-org/cboard-billing/pkg/requestid"
	"github.com/cboard-org/cboard-billing/svc/subscriber"
)

// actorFrom returns the caller identified by the bearer token. A request
// without claims yields the zero Actor, which can access nothing.
func actorFrom(ctx context.Context) subscriber.Actor {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return subscriber.Actor{}
	}
	return subscriber.Actor{UserID: claims.UserID, Admin: claims.IsAdmin()}
}

func authenticate(tokens *jwt.Service, log *slog.Logger) func(http.Handler) http.Handler {
	return jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service: tokens,
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			log.WarnContext(r.Context(), "authentication failed",
				logger.RequestID(requestid.FromContext(r.Context())),
				logger.Error(err),
				slog.String("path", r.URL.Path),
			)
			_ = handler.JSONError(handler.ErrForbidden).Render(w, r)
		},
	})
}

// requireAdmin rejects callers without the admin role with 403.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).Admin {
			_ = handler.JSONError(handler.ErrForbidden).Render(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimit(l *ratelimiter.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	byUser := func(r *http.Request) string {
		if id := actorFrom(r.Context()).UserID; id != "" {
			return "transaction:" + id
		}
		return ""
	}
	return ratelimiter.Middleware(l, byUser,
		ratelimiter.WithLimitedHandler(func(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
			_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
		}),
		// A Redis outage must not block purchases.
		ratelimiter.WithFailOpen(),
		ratelimiter.WithErrorHandler(func(_ http.ResponseWriter, r *http.Request, err error) {
			log.ErrorContext(r.Context(), "rate limiter unavailable", logger.Error(err))
		}),
	)
}

// accessLog logs one line per request with its status and latency.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", status),
				slog.Int("bytes", ww.BytesWritten()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
