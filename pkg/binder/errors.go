package binder

import "errors"

// Binding failures. Handlers map them to 400 or 415 responses.
var (
	ErrMissingContentType   = errors.New("missing content type")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFailedToParseJSON    = errors.New("invalid JSON body")
	ErrFailedToParseQuery   = errors.New("invalid query parameters")
	ErrFailedToParsePath    = errors.New("invalid path parameters")
)
