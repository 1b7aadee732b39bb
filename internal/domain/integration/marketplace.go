package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a referenced entity (product, order, carrier) is missing
	ErrNotFound = errors.New("integration: entity not found")
	// ErrUpstream is returned for non-2xx marketplace responses and transport failures
	ErrUpstream = errors.New("integration: marketplace request failed")
	// ErrRateLimited is returned when the marketplace keeps answering 429 after all retries
	ErrRateLimited = errors.New("integration: marketplace rate limited")
	// ErrMalformedResponse is returned when a marketplace body does not have the expected shape
	ErrMalformedResponse = errors.New("integration: malformed marketplace response")
	// ErrValidation is returned when a payload or request fails validation
	ErrValidation = errors.New("integration: validation failed")
	// ErrPersistenceInconsistency is returned when a read-back does not match what was written
	ErrPersistenceInconsistency = errors.New("integration: persisted state does not match expected state")
	// ErrProductInactive is returned when an inactive product is synced on demand
	ErrProductInactive = errors.New("integration: product is inactive")
	// ErrMarketplaceNotConfigured is returned when the API key is missing
	ErrMarketplaceNotConfigured = errors.New("integration: marketplace not configured")
)

// ---------------------------------------------------------------------------
// APIResponse
// ---------------------------------------------------------------------------

// APIResponse is a marketplace HTTP response classified by its status code.
// Body holds the decoded JSON document when the response carried one.
type APIResponse struct {
	// Code is the HTTP status code
	Code int
	// Body is the JSON body, nil when the body was empty or not JSON
	Body json.RawMessage
	// Raw is the body as received, kept for logging
	Raw string
}

// IsSuccess reports whether the code is in [200, 300).
func (r *APIResponse) IsSuccess() bool {
	return r != nil && r.Code >= http.StatusOK && r.Code < http.StatusMultipleChoices
}

// IsRateLimited reports whether the marketplace asked us to slow down.
func (r *APIResponse) IsRateLimited() bool {
	return r != nil && r.Code == http.StatusTooManyRequests
}

// HasBody reports whether the response carried a non-null JSON document.
func (r *APIResponse) HasBody() bool {
	if r == nil {
		return false
	}
	trimmed := bytes.TrimSpace(r.Body)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ---------------------------------------------------------------------------
// MarketplaceClient Port
// ---------------------------------------------------------------------------

// MarketplaceClient is the port to the ERLI shop API.
// Non-2xx responses are returned as *APIResponse without an error so callers
// can classify them; an error is returned only when no response was received.
type MarketplaceClient interface {
	// GetInbox fetches up to limit pending inbox events
	GetInbox(ctx context.Context, limit int) (*APIResponse, error)

	// AckInbox marks every inbox event up to and including lastID as read
	AckInbox(ctx context.Context, lastID EventID) (*APIResponse, error)

	// GetOrder fetches the full detail of a marketplace order
	GetOrder(ctx context.Context, orderID string) (*APIResponse, error)

	// UpsertProduct creates or updates the listing identified by payload.ExternalID
	UpsertProduct(ctx context.Context, payload *ListingPayload) (*APIResponse, error)

	// DeliveryPriceLists returns the delivery price list tags defined in the seller account
	DeliveryPriceLists(ctx context.Context) ([]string, error)
}
