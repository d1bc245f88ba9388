package binder

import "net/http"

// Query binds query string values to fields tagged `query:"name"`.
// Untagged fields are skipped.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
