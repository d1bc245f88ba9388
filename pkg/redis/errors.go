package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: connection url is empty")
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection url")
	ErrRedisNotReady                = errors.New("redis: server not reachable")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
)
