package integration

import (
	"context"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Configuration keys
// ---------------------------------------------------------------------------

// Keys of the storefront configuration store read by the connector
const (
	ConfigDispatchTimeDays      = "ERLI_DISPATCH_TIME_DAYS"
	ConfigDefaultCarrier        = "ERLI_DEFAULT_CARRIER"
	ConfigStatePaid             = "ERLI_STATE_PAID"
	ConfigStatePending          = "ERLI_STATE_PENDING"
	ConfigStateCancelled        = "ERLI_STATE_CANCELLED"
	ConfigDefaultOrderState     = "ERLI_DEFAULT_ORDER_STATE"
	ConfigPlatformCarrier       = "PS_CARRIER_DEFAULT"
	ConfigPlatformLanguage      = "PS_LANG_DEFAULT"
	ConfigPlatformCurrency      = "PS_CURRENCY_DEFAULT"
	ConfigPlatformStatePayment  = "PS_OS_PAYMENT"
	ConfigPlatformStateAwaiting = "PS_OS_AWAITING_PAYMENT"
	ConfigPlatformStateCanceled = "PS_OS_CANCELED"
)

// ConfigStore is the storefront key-value configuration
type ConfigStore interface {
	// GetInt returns the integer value of key, 0 when the key is unset or not numeric
	GetInt(ctx context.Context, key string) (int64, error)
	// GetString returns the value of key, "" when unset
	GetString(ctx context.Context, key string) (string, error)
	// Set stores a value
	Set(ctx context.Context, key, value string) error
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// CatalogProduct is a storefront product resolved for one language
type CatalogProduct struct {
	ID int64
	// LocalizedName is the name in the requested language, "" when missing
	LocalizedName string
	// FallbackName is any other non-empty name of the product
	FallbackName string
	Description  string
	LinkRewrite  string
	Reference    string
	EAN13        string
	Active       bool
	// WeightKg is the shipping weight in kilograms
	WeightKg decimal.Decimal
	IsPack   bool
}

// CatalogVariant is a purchasable combination of a product
type CatalogVariant struct {
	ID        int64
	ProductID int64
	Reference string
	EAN13     string
}

// PackItem is one constituent of a bundle
type PackItem struct {
	ProductID int64
	Name      string
	Quantity  int
}

// CatalogReader reads the storefront catalog
type CatalogReader interface {
	// LoadProduct returns ErrNotFound when the product does not exist
	LoadProduct(ctx context.Context, productID, langID int64) (*CatalogProduct, error)
	// LoadVariant returns ErrNotFound when the variant does not exist
	LoadVariant(ctx context.Context, variantID int64) (*CatalogVariant, error)
	// ListActiveProductIDs returns ids of active products
	ListActiveProductIDs(ctx context.Context) ([]int64, error)
	// ListVariantIDs returns the variant ids of a product
	ListVariantIDs(ctx context.Context, productID int64) ([]int64, error)

	// ProductAttributeGroups returns the distinct attribute groups used by any
	// variant of the product, ordered by position then id
	ProductAttributeGroups(ctx context.Context, productID, langID int64) ([]AttributeGroup, error)
	// VariantAttributeValues returns the localized attribute values of a variant
	VariantAttributeValues(ctx context.Context, variantID, langID int64) ([]VariantAttributeValue, error)

	// VariantImageIDs returns images associated to the variant, ordered by image position then id
	VariantImageIDs(ctx context.Context, variantID int64) ([]int64, error)
	// CombinationImageIDs returns the variant images through the product combination listing
	CombinationImageIDs(ctx context.Context, productID, variantID, langID int64) ([]int64, error)
	// CoverImageID returns the cover image id, 0 when the product has none
	CoverImageID(ctx context.Context, productID int64) (int64, error)
	// ProductImageIDs returns all product images in stored order
	ProductImageIDs(ctx context.Context, productID, langID int64) ([]int64, error)
	// PackItems returns the constituents of a bundle
	PackItems(ctx context.Context, productID, langID int64) ([]PackItem, error)

	// AvailableQuantity returns the stock of the variant, or of the product when variantID is 0
	AvailableQuantity(ctx context.Context, productID, variantID int64) (int, error)
	// GrossPrice returns the tax-included unit price of the variant or product
	GrossPrice(ctx context.Context, productID, variantID int64) (decimal.Decimal, error)
}

// ImageURLBuilder renders the absolute or host-relative URL of a catalog image
type ImageURLBuilder interface {
	LargeImageURL(linkRewrite string, imageID int64) string
}

// CategoryMapper resolves marketplace categories of a product
type CategoryMapper interface {
	MapProductCategories(ctx context.Context, productID, langID int64) ([]ExternalCategory, error)
}

// ShippingMapper resolves marketplace delivery price list tags of a product
type ShippingMapper interface {
	MapTagsForProduct(ctx context.Context, productID, langID int64) ([]string, error)
}

// ---------------------------------------------------------------------------
// Carriers
// ---------------------------------------------------------------------------

// Carrier is a storefront shipping carrier
type Carrier struct {
	ID      int64
	Name    string
	Active  bool
	Deleted bool
}

// IsUsable reports whether orders may be assigned to the carrier.
func (c *Carrier) IsUsable() bool {
	return c != nil && c.ID > 0 && c.Active && !c.Deleted
}

// NewCarrierSpec describes a carrier created for a marketplace delivery method
type NewCarrierSpec struct {
	Name string
	// DelayText is stored for every language
	DelayText string
	MaxWeight decimal.Decimal
	// RangeFrom and RangeTo delimit the single price range
	RangeFrom decimal.Decimal
	RangeTo   decimal.Decimal
	// ZonePrice is charged in every zone
	ZonePrice decimal.Decimal
}

// CarrierStore reads and creates storefront carriers
type CarrierStore interface {
	// FindCarrier returns ErrNotFound when the carrier does not exist
	FindCarrier(ctx context.Context, carrierID int64) (*Carrier, error)
	// ListCarriers returns every carrier, deleted ones included
	ListCarriers(ctx context.Context) ([]Carrier, error)
	// CreateCarrier creates an active carrier available to all groups and zones
	CreateCarrier(ctx context.Context, spec NewCarrierSpec) (int64, error)
}

// ---------------------------------------------------------------------------
// Customers, carts and orders
// ---------------------------------------------------------------------------

// Customer is a storefront customer
type Customer struct {
	ID        int64
	Email     string
	SecureKey string
}

// CustomerResolver finds or creates customers and addresses for marketplace orders
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, order *MarketplaceOrder) (*Customer, error)
	CreateAddress(ctx context.Context, customer *Customer, address *Address, alias string) (int64, error)
}

// Cart is a storefront cart
type Cart struct {
	ID                int64
	LanguageID        int64
	CurrencyID        int64
	CustomerID        int64
	DeliveryAddressID int64
	InvoiceAddressID  int64
	CarrierID         int64
	SecureKey         string
}

// CartStore creates and fills carts
type CartStore interface {
	// CreateCart persists the cart and sets its ID
	CreateCart(ctx context.Context, cart *Cart) error
	// FillCart adds the order lines to the cart
	FillCart(ctx context.Context, cartID int64, order *MarketplaceOrder) error
	// CartTotal returns the tax-included cart total, shipping included
	CartTotal(ctx context.Context, cartID int64) (decimal.Decimal, error)
}

// OrderValidation is the input of order creation
type OrderValidation struct {
	CartID        int64
	StateID       int64
	Amount        decimal.Decimal
	PaymentMethod string
	TransactionID string
	CurrencyID    int64
	SecureKey     string
}

// PaymentProcessor turns a cart into an order
type PaymentProcessor interface {
	ValidateOrder(ctx context.Context, v OrderValidation) (int64, error)
}

// OrderState is the current state of a storefront order
type OrderState struct {
	ID   int64
	Paid bool
}

// OrderTotals are the final amounts of an order in major units
type OrderTotals struct {
	Paid     decimal.Decimal
	Products *decimal.Decimal
	Shipping *decimal.Decimal
}

// OrderStore reads and adjusts storefront orders
type OrderStore interface {
	// CurrentState returns ErrNotFound when the order does not exist
	CurrentState(ctx context.Context, orderID int64) (*OrderState, error)
	// ApplyTotals overwrites the order totals
	ApplyTotals(ctx context.Context, orderID int64, totals OrderTotals) error
	// AssignCarrier sets the carrier on the order and on its latest shipping line.
	// The boolean reports whether a shipping line was found.
	AssignCarrier(ctx context.Context, orderID, carrierID int64, shippingCost decimal.Decimal) (bool, error)
	// OrderCarrierID reads back the carrier stored on the order
	OrderCarrierID(ctx context.Context, orderID int64) (int64, error)
	// AdjustFirstPayment sets the amount of the first payment; false when there is none
	AdjustFirstPayment(ctx context.Context, orderID int64, amount decimal.Decimal) (bool, error)
	// AdjustFirstInvoice sets the totals of the first invoice; false when there is none
	AdjustFirstInvoice(ctx context.Context, orderID int64, totals OrderTotals) (bool, error)
	// AddStateHistory moves the order to stateID and records the transition
	AddStateHistory(ctx context.Context, orderID, stateID int64) error
	// Count returns the number of storefront orders
	Count(ctx context.Context) (int64, error)
}
