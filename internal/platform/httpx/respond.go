// Package httpx provides the JSON envelope shared by every API response.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ticketdesk/backoffice/internal/shared"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       any                `json:"data,omitempty"`
	Error      *ErrorBody         `json:"error,omitempty"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a 200 success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Timestamp: now()})
}

// Created sends a 201 success envelope.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data, Timestamp: now()})
}

// Paginated sends a 200 success envelope with pagination metadata.
func Paginated(w http.ResponseWriter, message string, data any, page shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Pagination: &page, Timestamp: now()})
}

// Fail sends an error envelope.
func Fail(w http.ResponseWriter, status int, body ErrorBody) {
	JSON(w, status, Envelope{Success: false, Message: body.Message, Error: &body, Timestamp: now()})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func now() time.Time {
	return time.Now().UTC()
}
