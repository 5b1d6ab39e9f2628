// Package httperr writes the JSON error bodies used by every endpoint.
package httperr

import (
	"encoding/json"
	"net/http"
)

// Error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeInternal           = "INTERNAL_ERROR"
)

// Body is the error payload.
type Body struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response is the top-level error document: {"error": {...}}.
type Response struct {
	Error Body `json:"error"`
}

// Write sends a JSON error response.
func Write(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: Body{Code: code, Message: message, Details: details}})
}

// NotFound responds 404 for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Write(w, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path, nil)
}

// MethodNotAllowed responds 405 for known routes with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Write(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path, nil)
}
