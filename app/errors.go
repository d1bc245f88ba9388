package app

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSpec   = errors.New("invalid cron spec")
)
