package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Error codes carried in ErrorBody.Code.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeValidation             = "VALIDATION_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_SERVER_ERROR"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeDuplicateGrant         = "DUPLICATE_GRANT"
	CodeGrantNotFound          = "GRANT_NOT_FOUND"
	CodeSelfTargetNotAllowed   = "SELF_TARGET_NOT_ALLOWED"
	CodeCannotModifySuperAdmin = "CANNOT_MODIFY_SUPER_ADMIN"
	CodeAlreadyPromoted        = "ALREADY_PROMOTED"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = shared.ErrNotFound
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrBadRequest   = errors.New("bad request")
	ErrForbidden    = authz.ErrForbidden
	ErrUnauthorized = authz.ErrUnauthorized
)

// FieldError reports a validation failure on a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match FieldError with ErrValidation.
func (e *FieldError) Unwrap() error { return ErrValidation }

// Invalid builds a FieldError.
func Invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

type mapping struct {
	target error
	status int
	code   string
}

// Order matters: wrapped errors must precede the sentinels they wrap.
var mappings = []mapping{
	{authz.ErrGranteeNotAdmin, http.StatusBadRequest, CodeBadRequest},
	{authz.ErrSelfTargetNotAllowed, http.StatusBadRequest, CodeSelfTargetNotAllowed},
	{authz.ErrCannotModifySuperAdmin, http.StatusForbidden, CodeCannotModifySuperAdmin},
	{authz.ErrAlreadyPromoted, http.StatusConflict, CodeAlreadyPromoted},
	{authz.ErrDuplicateGrant, http.StatusConflict, CodeDuplicateGrant},
	{authz.ErrGrantNotFound, http.StatusNotFound, CodeGrantNotFound},
	{authz.ErrDuplicatePermission, http.StatusConflict, CodeConflict},
	{authz.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{authz.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthorized},
	{shared.ErrCSRFTokenMissing, http.StatusForbidden, CodeForbidden},
	{shared.ErrCSRFTokenMismatch, http.StatusForbidden, CodeForbidden},
	{shared.ErrIdempotencyConflict, http.StatusConflict, CodeConflict},
	{ErrNotFound, http.StatusNotFound, CodeNotFound},
	{ErrDuplicate, http.StatusConflict, CodeConflict},
	{ErrConflict, http.StatusConflict, CodeConflict},
	{ErrValidation, http.StatusBadRequest, CodeValidation},
	{ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
}

// StatusFor classifies err into an HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// RespondError maps domain errors to error envelopes and returns the status
// written so callers can log server faults.
func RespondError(w http.ResponseWriter, err error) int {
	status, code := StatusFor(err)
	body := ErrorBody{Code: code, Message: shared.UserSafeMessage(err)}
	if status == http.StatusInternalServerError {
		body.Message = "Internal server error"
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		body.Field = fieldErr.Field
		body.Message = fieldErr.Message
	}
	Fail(w, status, body)
	return status
}

// RespondCode writes an error envelope with an explicit status and code.
func RespondCode(w http.ResponseWriter, status int, code string, err error) {
	Fail(w, status, ErrorBody{Code: code, Message: shared.UserSafeMessage(err)})
}
