package shared

import (
	"errors"

	"github.com/atlas-admin/atlas-admin/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found. It aliases the httpx sentinel
	// so domain errors wrapping either one map the same way everywhere.
	ErrNotFound = httpx.ErrNotFound
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps an error to text safe to surface in a flash or form.
// Internal errors collapse to a generic message so details never leak.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your session has expired. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
