package catalog

import "errors"

var (
	ErrNotFound  = errors.New("subscription not found")
	ErrDuplicate = errors.New("subscription already exists")

	ErrMissingField     = errors.New("subscriptionId, name, status and platform are required")
	ErrMissingPlanField = errors.New("plan name, planId, status, period and renovation are required")
	ErrDuplicatePlan    = errors.New("plan ids must be unique")
	ErrSyncDisabled     = errors.New("play console source is not configured")
)
