package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("mongo: server not reachable")
	ErrHealthcheckFailed      = errors.New("mongo: healthcheck failed")
)
