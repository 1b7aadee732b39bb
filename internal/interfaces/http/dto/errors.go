package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the cron token is missing or wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeNotConfigured is used when the cron endpoints have no token configured
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeRunInProgress is used when another sync run holds the lock
	ErrCodeRunInProgress = "ERR_RUN_IN_PROGRESS"
	// ErrCodeProductInactive is used when a sync targets an inactive product
	ErrCodeProductInactive = "ERR_PRODUCT_INACTIVE"
)

// Upstream error codes
const (
	// ErrCodeUpstream is used when the marketplace answered with an error
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeUpstreamRateLimited is used when the marketplace kept answering 429
	ErrCodeUpstreamRateLimited = "ERR_UPSTREAM_RATE_LIMITED"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when the local rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeNotConfigured: http.StatusServiceUnavailable,

	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRunInProgress:   http.StatusConflict,
	ErrCodeProductInactive: http.StatusUnprocessableEntity,

	// Upstream failures -> 502 Bad Gateway
	ErrCodeUpstream:            http.StatusBadGateway,
	ErrCodeUpstreamRateLimited: http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
