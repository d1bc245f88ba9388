package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups non-nil errors under "errors". Returns an empty Attr when
// every error is nil.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user id under "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// SubscriberID records the subscriber record id under "subscriber_id".
func SubscriberID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subscriber_id", id)
}

// SubscriptionID records a catalog subscription id under "subscription_id".
func SubscriptionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subscription_id", id)
}

// Platform records the purchase platform under "platform".
func Platform(p string) slog.Attr {
	return slog.String("platform", p)
}

// State records a subscription lifecycle state under "state".
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// Code records a billing error code under "code".
func Code(code int) slog.Attr {
	return slog.Int("code", code)
}

// Role records a role name under "role".
func Role(role string) slog.Attr {
	return slog.String("role", role)
}

// RequestID records the request id under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Count records a named counter.
func Count(name string, n int) slog.Attr {
	return slog.Int(name, n)
}

// Duration records a duration under "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Handler records the handler name under "handler".
func Handler(name string) slog.Attr {
	return slog.String("handler", name)
}
