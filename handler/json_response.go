package handler

import (
	"encoding/json"
	"maps"
	"net/http"
)

// ErrorBody is the JSON body of an error response.
type ErrorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error,omitempty"`
	Code    int                 `json:"code,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON renders v as the response body with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as an ErrorBody. The status is derived from the
// error unless overridden.
func JSONError(err error, opts ...JSONOption) Response {
	info := Classify(err)
	body := info.Body
	if body.Details != nil {
		body.Details = maps.Clone(body.Details)
	}
	r := &jsonResponse{status: info.StatusCode, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
