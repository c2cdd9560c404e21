package dto

import "net/http"

// Domain error codes surfaced by the allocation API. The codes travel
// verbatim from the domain layer into responses so clients can branch on
// them without parsing messages.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeStaleAllocation signals that a previewed allocation no longer
	// matches invoice state and must be re-previewed
	ErrCodeStaleAllocation = "STALE_ALLOCATION"
	// ErrCodeNotFound is used when a requested resource does not exist
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeUnauthorized is used for authentication failures
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden is used for authorization failures
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeConflict is used for resource conflicts
	ErrCodeConflict = "ALREADY_EXISTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:        http.StatusBadRequest,
	"INVALID_INPUT":          http.StatusBadRequest,
	"INVALID_AMOUNT":         http.StatusBadRequest,
	"INVALID_PAYMENT":        http.StatusBadRequest,
	"INVALID_INVOICE":        http.StatusBadRequest,
	"INVALID_PARTNER":        http.StatusBadRequest,
	"INVALID_COMPANY":        http.StatusBadRequest,
	"INVALID_COMPANY_NAME":   http.StatusBadRequest,
	"INVALID_COUNTRY_CODE":   http.StatusBadRequest,
	"INVALID_INVOICE_NUMBER": http.StatusBadRequest,
	"INVALID_SCOPE":          http.StatusBadRequest,
	"INVALID_TOLERANCE":      http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	// Resource errors
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeConflict:        http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	ErrCodeStaleAllocation: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	"INVALID_STATE":      http.StatusUnprocessableEntity,
	"CURRENCY_MISMATCH":  http.StatusUnprocessableEntity,
	"EXCEEDS_BALANCE":    http.StatusUnprocessableEntity,
	"TOLERANCE_EXCEEDED": http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error when the code is unknown.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
