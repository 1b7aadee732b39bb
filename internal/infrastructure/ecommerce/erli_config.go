package ecommerce

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
)

const (
	// ErliProductionAPIURL is the production shop API endpoint
	ErliProductionAPIURL = "https://erli.pl/svc/shop-api"
	// ErliSandboxAPIURL is the sandbox shop API endpoint
	ErliSandboxAPIURL = "https://sandbox.erli.dev/svc/shop-api"
)

// ErrErliConfigMissingAPIKey is returned when the client is built without an API key
var ErrErliConfigMissingAPIKey = fmt.Errorf("erli: api key is required: %w", integration.ErrMarketplaceNotConfigured)

// ErliConfig holds the configuration of the ERLI shop API client
type ErliConfig struct {
	// APIKey is the seller API key sent as a bearer token
	APIKey string
	// APIBaseURL overrides the production or sandbox URL
	APIBaseURL string
	// IsSandbox selects the sandbox environment
	IsSandbox bool
	// Timeout bounds a single HTTP request
	Timeout time.Duration
	// RateLimit is the sustained requests per second, 0 disables pacing
	RateLimit float64
	// RateBurst is the limiter bucket size
	RateBurst int
	// UserAgent is sent with every request
	UserAgent string
	// MaxResponseBytes caps how much of a response body is read
	MaxResponseBytes int64
}

// NewErliConfig creates a production configuration with defaults
func NewErliConfig(apiKey string) *ErliConfig {
	return &ErliConfig{
		APIKey:           apiKey,
		APIBaseURL:       ErliProductionAPIURL,
		Timeout:          30 * time.Second,
		RateBurst:        1,
		UserAgent:        "erli-connector/1.0",
		MaxResponseBytes: maxErliResponseSize,
	}
}

// NewSandboxErliConfig creates a sandbox configuration with defaults
func NewSandboxErliConfig(apiKey string) *ErliConfig {
	cfg := NewErliConfig(apiKey)
	cfg.APIBaseURL = ErliSandboxAPIURL
	cfg.IsSandbox = true
	return cfg
}

// Validate checks the configuration and fills missing defaults
func (c *ErliConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrErliConfigMissingAPIKey
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = ErliSandboxAPIURL
		} else {
			c.APIBaseURL = ErliProductionAPIURL
		}
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = maxErliResponseSize
	}
	return nil
}
