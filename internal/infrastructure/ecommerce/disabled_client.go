package ecommerce

import (
	"context"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// DisabledClient stands in for the marketplace client while no API key is
// configured. Every call fails with integration.ErrMarketplaceNotConfigured.
type DisabledClient struct{}

var _ integration.MarketplaceClient = DisabledClient{}

func (DisabledClient) GetInbox(context.Context, int) (*integration.APIResponse, error) {
	return nil, integration.ErrMarketplaceNotConfigured
}

func (DisabledClient) AckInbox(context.Context, integration.EventID) (*integration.APIResponse, error) {
	return nil, integration.ErrMarketplaceNotConfigured
}

func (DisabledClient) GetOrder(context.Context, string) (*integration.APIResponse, error) {
	return nil, integration.ErrMarketplaceNotConfigured
}

func (DisabledClient) UpsertProduct(context.Context, *integration.ListingPayload) (*integration.APIResponse, error) {
	return nil, integration.ErrMarketplaceNotConfigured
}

func (DisabledClient) DeliveryPriceLists(context.Context) ([]string, error) {
	return nil, integration.ErrMarketplaceNotConfigured
}
