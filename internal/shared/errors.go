package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage strips package prefixes and wrapped driver detail from err
// so it can be shown to API clients.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && !strings.Contains(msg[:i], " ") {
		msg = msg[i+2:]
	}
	if strings.Contains(msg, "SQLSTATE") || strings.Contains(msg, "pgx") || strings.Contains(msg, "redis") {
		return "unexpected error, please try again"
	}
	if msg == "" {
		return "unexpected error, please try again"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
