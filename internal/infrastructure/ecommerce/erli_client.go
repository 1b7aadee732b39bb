package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

const (
	// maxErliResponseSize limits the response body size to prevent memory exhaustion
	maxErliResponseSize = 10 * 1024 * 1024
)

// ErliClient implements integration.MarketplaceClient over the ERLI shop API.
// Every non-2xx answer is handed back as an APIResponse; errors are returned
// only when no response was received.
type ErliClient struct {
	config     *ErliConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ErliClientOption configures an ErliClient
type ErliClientOption func(*ErliClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) ErliClientOption {
	return func(e *ErliClient) {
		e.httpClient = c
	}
}

// WithClientLogger sets the logger used for request diagnostics
func WithClientLogger(l *zap.Logger) ErliClientOption {
	return func(e *ErliClient) {
		e.logger = l
	}
}

// NewErliClient creates a client with the given configuration
func NewErliClient(config *ErliConfig, opts ...ErliClientOption) (*ErliClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	c := &ErliClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, config.RateBurst),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ integration.MarketplaceClient = (*ErliClient)(nil)

// ---------------------------------------------------------------------------
// Inbox
// ---------------------------------------------------------------------------

// GetInbox fetches up to limit unread inbox messages
func (c *ErliClient) GetInbox(ctx context.Context, limit int) (*integration.APIResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.doRequest(ctx, http.MethodGet, "/inbox?"+q.Encode(), nil)
}

type ackRequest struct {
	LastMessageID json.RawMessage `json:"lastMessageId"`
}

// AckInbox marks every message up to lastID as read. Numeric ids are sent as
// JSON numbers, anything else as a string.
func (c *ErliClient) AckInbox(ctx context.Context, lastID integration.EventID) (*integration.APIResponse, error) {
	if lastID.IsEmpty() {
		return nil, fmt.Errorf("%w: empty ack id", integration.ErrValidation)
	}
	var idJSON json.RawMessage
	if lastID.IsNumeric() {
		idJSON = json.RawMessage(lastID.String())
	} else {
		quoted, err := json.Marshal(lastID.String())
		if err != nil {
			return nil, err
		}
		idJSON = quoted
	}
	return c.doRequest(ctx, http.MethodPost, "/inbox/mark-read", ackRequest{LastMessageID: idJSON})
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// GetOrder fetches an order detail
func (c *ErliClient) GetOrder(ctx context.Context, orderID string) (*integration.APIResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", integration.ErrValidation)
	}
	return c.doRequest(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// UpsertProduct creates the listing and falls back to a partial update when
// the listing already exists.
func (c *ErliClient) UpsertProduct(ctx context.Context, payload *integration.ListingPayload) (*integration.APIResponse, error) {
	if payload == nil || payload.ExternalID == "" {
		return nil, fmt.Errorf("%w: listing without external id", integration.ErrValidation)
	}
	path := "/products/" + url.PathEscape(payload.ExternalID)

	resp, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusConflict {
		return resp, nil
	}
	c.logger.Debug("listing exists, updating", zap.String("external_id", payload.ExternalID))
	return c.doRequest(ctx, http.MethodPatch, path, payload)
}

// DeliveryPriceLists returns the delivery price list tags of the seller account
func (c *ErliClient) DeliveryPriceLists(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/delivery/priceLists", nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: price lists HTTP %d", integration.ErrUpstream, resp.Code)
	}
	return parsePriceLists(resp.Body)
}

// parsePriceLists accepts a list of strings or a list of objects carrying
// "name" or "id".
func parsePriceLists(body json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: price lists: %v", integration.ErrMalformedResponse, err)
	}

	tags := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			var obj struct {
				ID   integration.EventID `json:"id"`
				Name string              `json:"name"`
			}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			s = obj.Name
			if s == "" {
				s = obj.ID.String()
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	return tags, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs one API call. The limiter wait honours ctx.
func (c *ErliClient) doRequest(ctx context.Context, method, path string, body any) (*integration.APIResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "erli."+strings.ToLower(method),
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.method", method),
		telemetry.WithAttribute("erli.path", path),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("erli: rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("erli: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("erli: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", integration.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrUpstream, err)
	}

	out := &integration.APIResponse{Code: resp.StatusCode, Raw: string(raw)}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && json.Valid(trimmed) {
		out.Body = json.RawMessage(trimmed)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)
	if !out.IsSuccess() {
		c.logger.Debug("erli non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
	} else {
		telemetry.SetOK(span)
	}
	return out, nil
}
