// Package httpapi provides the JSON response envelope shared by every
// API handler, plus helpers for the common error statuses.
//
// Success bodies look like
//
//	{ "status": "success", "message": "...", "data": ... }
//
// and errors like
//
//	{ "status": "error", "message": "..." }
//
// Internal error detail is logged, never sent to clients.
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a success envelope with the given status code.
func Success(w http.ResponseWriter, code int, message string, data interface{}) {
	write(w, code, envelope{Status: "success", Message: message, Data: data})
}

// Error writes an error envelope with the given status code.
func Error(w http.ResponseWriter, code int, message string) {
	write(w, code, envelope{Status: "error", Message: message})
}

// BadRequest writes a 400 for malformed input.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 for missing/invalid credentials.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 for authenticated callers lacking access.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// Conflict writes a 409 for duplicate-resource conditions.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, message)
}

// ServerError logs err with context and writes a generic 500. The
// client never sees the underlying error text.
func ServerError(w http.ResponseWriter, logger *zap.Logger, what string, err error) {
	logger.Error(what, zap.Error(err))
	Error(w, http.StatusInternalServerError, "Something went wrong.")
}

func write(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
