package integration

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// MockCatalogReader is a mock implementation of CatalogReader
type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) LoadProduct(ctx context.Context, productID, langID int64) (*integration.CatalogProduct, error) {
	args := m.Called(ctx, productID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CatalogProduct), args.Error(1)
}

func (m *MockCatalogReader) LoadVariant(ctx context.Context, variantID int64) (*integration.CatalogVariant, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CatalogVariant), args.Error(1)
}

func (m *MockCatalogReader) ListActiveProductIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return int64s(args.Get(0)), args.Error(1)
}

func (m *MockCatalogReader) ListVariantIDs(ctx context.Context, productID int64) ([]int64, error) {
	args := m.Called(ctx, productID)
	return int64s(args.Get(0)), args.Error(1)
}

func (m *MockCatalogReader) ProductAttributeGroups(ctx context.Context, productID, langID int64) ([]integration.AttributeGroup, error) {
	args := m.Called(ctx, productID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.AttributeGroup), args.Error(1)
}

func (m *MockCatalogReader) VariantAttributeValues(ctx context.Context, variantID, langID int64) ([]integration.VariantAttributeValue, error) {
	args := m.Called(ctx, variantID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.VariantAttributeValue), args.Error(1)
}

func (m *MockCatalogReader) VariantImageIDs(ctx context.Context, variantID int64) ([]int64, error) {
	args := m.Called(ctx, variantID)
	return int64s(args.Get(0)), args.Error(1)
}

func (m *MockCatalogReader) CombinationImageIDs(ctx context.Context, productID, variantID, langID int64) ([]int64, error) {
	args := m.Called(ctx, productID, variantID, langID)
	return int64s(args.Get(0)), args.Error(1)
}

func (m *MockCatalogReader) CoverImageID(ctx context.Context, productID int64) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogReader) ProductImageIDs(ctx context.Context, productID, langID int64) ([]int64, error) {
	args := m.Called(ctx, productID, langID)
	return int64s(args.Get(0)), args.Error(1)
}

func (m *MockCatalogReader) PackItems(ctx context.Context, productID, langID int64) ([]integration.PackItem, error) {
	args := m.Called(ctx, productID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PackItem), args.Error(1)
}

func (m *MockCatalogReader) AvailableQuantity(ctx context.Context, productID, variantID int64) (int, error) {
	args := m.Called(ctx, productID, variantID)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogReader) GrossPrice(ctx context.Context, productID, variantID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, productID, variantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func int64s(v any) []int64 {
	if v == nil {
		return nil
	}
	return v.([]int64)
}

// MockCategoryMapper is a mock implementation of CategoryMapper
type MockCategoryMapper struct {
	mock.Mock
}

func (m *MockCategoryMapper) MapProductCategories(ctx context.Context, productID, langID int64) ([]integration.ExternalCategory, error) {
	args := m.Called(ctx, productID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ExternalCategory), args.Error(1)
}

// MockShippingMapper is a mock implementation of ShippingMapper
type MockShippingMapper struct {
	mock.Mock
}

func (m *MockShippingMapper) MapTagsForProduct(ctx context.Context, productID, langID int64) ([]string, error) {
	args := m.Called(ctx, productID, langID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// storefrontImages renders URLs the way the storefront does for relative installs
type storefrontImages struct{}

func (storefrontImages) LargeImageURL(linkRewrite string, imageID int64) string {
	return "/" + strconv.FormatInt(imageID, 10) + "-large_default/" + linkRewrite + ".jpg"
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// fakeConfig is an in-memory ConfigStore
type fakeConfig struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeConfig(values map[string]int64) *fakeConfig {
	c := &fakeConfig{values: make(map[string]string, len(values))}
	for k, v := range values {
		c.values[k] = strconv.FormatInt(v, 10)
	}
	return c
}

func (c *fakeConfig) GetInt(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	n, err := strconv.ParseInt(c.values[key], 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (c *fakeConfig) GetString(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], c.err
}

func (c *fakeConfig) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// ---------------------------------------------------------------------------
// Carriers
// ---------------------------------------------------------------------------

// MockCarrierStore is a mock implementation of CarrierStore
type MockCarrierStore struct {
	mock.Mock
}

func (m *MockCarrierStore) FindCarrier(ctx context.Context, carrierID int64) (*integration.Carrier, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Carrier), args.Error(1)
}

func (m *MockCarrierStore) ListCarriers(ctx context.Context) ([]integration.Carrier, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Carrier), args.Error(1)
}

func (m *MockCarrierStore) CreateCarrier(ctx context.Context, spec integration.NewCarrierSpec) (int64, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(int64), args.Error(1)
}

// MockCarrierMappingRepository is a mock implementation of CarrierMappingRepository
type MockCarrierMappingRepository struct {
	mock.Mock
}

func (m *MockCarrierMappingRepository) FindByTag(ctx context.Context, tag string) (*integration.CarrierMapping, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CarrierMapping), args.Error(1)
}

func (m *MockCarrierMappingRepository) Upsert(ctx context.Context, mapping *integration.CarrierMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockCarrierMappingRepository) FindByCarrierIDs(ctx context.Context, carrierIDs []int64) ([]integration.CarrierMapping, error) {
	args := m.Called(ctx, carrierIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CarrierMapping), args.Error(1)
}

func (m *MockCarrierMappingRepository) FindAll(ctx context.Context) ([]integration.CarrierMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CarrierMapping), args.Error(1)
}

// ---------------------------------------------------------------------------
// Customers, carts, orders
// ---------------------------------------------------------------------------

// MockCustomerResolver is a mock implementation of CustomerResolver
type MockCustomerResolver struct {
	mock.Mock
}

func (m *MockCustomerResolver) ResolveCustomer(ctx context.Context, order *integration.MarketplaceOrder) (*integration.Customer, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Customer), args.Error(1)
}

func (m *MockCustomerResolver) CreateAddress(ctx context.Context, customer *integration.Customer, address *integration.Address, alias string) (int64, error) {
	args := m.Called(ctx, customer, address, alias)
	return args.Get(0).(int64), args.Error(1)
}

// MockCartStore is a mock implementation of CartStore
type MockCartStore struct {
	mock.Mock
}

func (m *MockCartStore) CreateCart(ctx context.Context, cart *integration.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *MockCartStore) FillCart(ctx context.Context, cartID int64, order *integration.MarketplaceOrder) error {
	args := m.Called(ctx, cartID, order)
	return args.Error(0)
}

func (m *MockCartStore) CartTotal(ctx context.Context, cartID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockPaymentProcessor is a mock implementation of PaymentProcessor
type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) ValidateOrder(ctx context.Context, v integration.OrderValidation) (int64, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(int64), args.Error(1)
}

// MockOrderStore is a mock implementation of OrderStore
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) CurrentState(ctx context.Context, orderID int64) (*integration.OrderState, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderState), args.Error(1)
}

func (m *MockOrderStore) ApplyTotals(ctx context.Context, orderID int64, totals integration.OrderTotals) error {
	args := m.Called(ctx, orderID, totals)
	return args.Error(0)
}

func (m *MockOrderStore) AssignCarrier(ctx context.Context, orderID, carrierID int64, shippingCost decimal.Decimal) (bool, error) {
	args := m.Called(ctx, orderID, carrierID, shippingCost)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) OrderCarrierID(ctx context.Context, orderID int64) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderStore) AdjustFirstPayment(ctx context.Context, orderID int64, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, orderID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) AdjustFirstInvoice(ctx context.Context, orderID int64, totals integration.OrderTotals) (bool, error) {
	args := m.Called(ctx, orderID, totals)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) AddStateHistory(ctx context.Context, orderID, stateID int64) error {
	args := m.Called(ctx, orderID, stateID)
	return args.Error(0)
}

func (m *MockOrderStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// ---------------------------------------------------------------------------
// Marketplace
// ---------------------------------------------------------------------------

// MockMarketplaceClient is a mock implementation of MarketplaceClient
type MockMarketplaceClient struct {
	mock.Mock
}

func (m *MockMarketplaceClient) GetInbox(ctx context.Context, limit int) (*integration.APIResponse, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.APIResponse), args.Error(1)
}

func (m *MockMarketplaceClient) AckInbox(ctx context.Context, lastID integration.EventID) (*integration.APIResponse, error) {
	args := m.Called(ctx, lastID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.APIResponse), args.Error(1)
}

func (m *MockMarketplaceClient) GetOrder(ctx context.Context, orderID string) (*integration.APIResponse, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.APIResponse), args.Error(1)
}

func (m *MockMarketplaceClient) UpsertProduct(ctx context.Context, payload *integration.ListingPayload) (*integration.APIResponse, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.APIResponse), args.Error(1)
}

func (m *MockMarketplaceClient) DeliveryPriceLists(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func jsonResponse(code int, body string) *integration.APIResponse {
	return &integration.APIResponse{Code: code, Body: []byte(body), Raw: body}
}

// ---------------------------------------------------------------------------
// Links and logs
// ---------------------------------------------------------------------------

// MockOrderLinkRepository is a mock implementation of OrderLinkRepository
type MockOrderLinkRepository struct {
	mock.Mock
}

func (m *MockOrderLinkRepository) FindByExternalID(ctx context.Context, externalOrderID string) (*integration.OrderLink, error) {
	args := m.Called(ctx, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderLink), args.Error(1)
}

func (m *MockOrderLinkRepository) Save(ctx context.Context, link *integration.OrderLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockOrderLinkRepository) UpdateStatus(ctx context.Context, externalOrderID, status string) error {
	args := m.Called(ctx, externalOrderID, status)
	return args.Error(0)
}

func (m *MockOrderLinkRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockProductLinkRepository is a mock implementation of ProductLinkRepository
type MockProductLinkRepository struct {
	mock.Mock
}

func (m *MockProductLinkRepository) EnsurePending(ctx context.Context, links []integration.ProductLink) (int, error) {
	args := m.Called(ctx, links)
	return args.Int(0), args.Error(1)
}

func (m *MockProductLinkRepository) FindPending(ctx context.Context, limit int) ([]integration.ProductLink, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductLink), args.Error(1)
}

func (m *MockProductLinkRepository) FindByProduct(ctx context.Context, productID int64) ([]integration.ProductLink, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductLink), args.Error(1)
}

func (m *MockProductLinkRepository) Save(ctx context.Context, link *integration.ProductLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockProductLinkRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductLinkRepository) LastSyncedAt(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

// memoryOrderLinks is an in-memory OrderLinkRepository
type memoryOrderLinks struct {
	mu    sync.Mutex
	links map[string]integration.OrderLink
	saves int
}

func newMemoryOrderLinks() *memoryOrderLinks {
	return &memoryOrderLinks{links: make(map[string]integration.OrderLink)}
}

func (r *memoryOrderLinks) FindByExternalID(_ context.Context, externalOrderID string) (*integration.OrderLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[externalOrderID]
	if !ok {
		return nil, integration.ErrNotFound
	}
	return &link, nil
}

func (r *memoryOrderLinks) Save(_ context.Context, link *integration.OrderLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if _, ok := r.links[link.ExternalOrderID]; !ok {
		r.links[link.ExternalOrderID] = *link
	}
	return nil
}

func (r *memoryOrderLinks) UpdateStatus(_ context.Context, externalOrderID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link, ok := r.links[externalOrderID]; ok {
		link.LastStatus = status
		r.links[externalOrderID] = link
	}
	return nil
}

func (r *memoryOrderLinks) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.links)), nil
}

// recordingLog is an in-memory SyncLogRepository
type recordingLog struct {
	mu      sync.Mutex
	entries []integration.SyncLogEntry
}

func (r *recordingLog) AddLog(_ context.Context, kind, correlationID, message, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, integration.SyncLogEntry{
		ID:            int64(len(r.entries) + 1),
		Kind:          kind,
		CorrelationID: correlationID,
		Message:       message,
		Detail:        detail,
		CreatedAt:     time.Now(),
	})
	return nil
}

func (r *recordingLog) Recent(_ context.Context, limit int) ([]integration.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integration.SyncLogEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

// kinds returns the logged kinds in order.
func (r *recordingLog) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Kind)
	}
	return out
}

// find returns the first entry of kind.
func (r *recordingLog) find(kind string) (integration.SyncLogEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Kind == kind {
			return e, true
		}
	}
	return integration.SyncLogEntry{}, false
}

// ---------------------------------------------------------------------------
// Application collaborators
// ---------------------------------------------------------------------------

// MockOrderCreator is a mock implementation of OrderCreator
type MockOrderCreator struct {
	mock.Mock
}

func (m *MockOrderCreator) Materialize(ctx context.Context, order *integration.MarketplaceOrder) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

// MockListingBuilder is a mock implementation of ListingBuilder
type MockListingBuilder struct {
	mock.Mock
}

func (m *MockListingBuilder) Map(ctx context.Context, productID, langID int64, variantID *int64) (*integration.ListingPayload, error) {
	args := m.Called(ctx, productID, langID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ListingPayload), args.Error(1)
}

// recordingSleeper records requested sleeps without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

// mapCache is a map-backed AttributeIndexCache
type mapCache struct {
	mu    sync.Mutex
	items map[[2]int64]*integration.AttributeGroupIndex
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[[2]int64]*integration.AttributeGroupIndex)}
}

func (c *mapCache) Get(_ context.Context, productID, langID int64) (*integration.AttributeGroupIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.items[[2]int64{productID, langID}]
	return idx, ok
}

func (c *mapCache) Set(_ context.Context, index *integration.AttributeGroupIndex, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[[2]int64{index.ProductID, index.LanguageID}] = index
	c.sets++
}

func (c *mapCache) Invalidate(_ context.Context, productID, langID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, [2]int64{productID, langID})
}

func (c *mapCache) Flush(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[[2]int64]*integration.AttributeGroupIndex)
}
