package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// ProductModel is a storefront product. Price is net of tax.
type ProductModel struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	Reference         string          `gorm:"type:varchar(64);index"`
	EAN13             string          `gorm:"column:ean13;type:varchar(13)"`
	Active            bool            `gorm:"not null;index"`
	Weight            decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	IsPack            bool            `gorm:"not null;default:false"`
	Price             decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0"`
	DefaultCategoryID int64           `gorm:"not null;default:0"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductTranslationModel holds the localized texts of a product
type ProductTranslationModel struct {
	ProductID   int64  `gorm:"primaryKey;autoIncrement:false"`
	LanguageID  int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`
	LinkRewrite string `gorm:"type:varchar(128)"`
}

// TableName returns the table name for GORM
func (ProductTranslationModel) TableName() string {
	return "product_translations"
}

// ProductVariantModel is a purchasable combination of a product
type ProductVariantModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	ProductID   int64           `gorm:"not null;index"`
	Reference   string          `gorm:"type:varchar(64);index"`
	EAN13       string          `gorm:"column:ean13;type:varchar(13)"`
	PriceImpact decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// AttributeGroupModel is a variant attribute group
type AttributeGroupModel struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	IsColorGroup bool  `gorm:"not null;default:false"`
	Position     int   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (AttributeGroupModel) TableName() string {
	return "attribute_groups"
}

// AttributeGroupTranslationModel holds the localized group name
type AttributeGroupTranslationModel struct {
	AttributeGroupID int64  `gorm:"primaryKey;autoIncrement:false"`
	LanguageID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Name             string `gorm:"type:varchar(128)"`
}

// TableName returns the table name for GORM
func (AttributeGroupTranslationModel) TableName() string {
	return "attribute_group_translations"
}

// AttributeModel is one value of an attribute group
type AttributeModel struct {
	ID               int64 `gorm:"primaryKey;autoIncrement"`
	AttributeGroupID int64 `gorm:"not null;index"`
	Position         int   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (AttributeModel) TableName() string {
	return "attributes"
}

// AttributeTranslationModel holds the localized attribute value
type AttributeTranslationModel struct {
	AttributeID int64  `gorm:"primaryKey;autoIncrement:false"`
	LanguageID  int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"type:varchar(128)"`
}

// TableName returns the table name for GORM
func (AttributeTranslationModel) TableName() string {
	return "attribute_translations"
}

// VariantAttributeModel links a variant to its attribute values
type VariantAttributeModel struct {
	VariantID   int64 `gorm:"primaryKey;autoIncrement:false"`
	AttributeID int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName returns the table name for GORM
func (VariantAttributeModel) TableName() string {
	return "variant_attributes"
}

// ImageModel is a product image
type ImageModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ProductID int64 `gorm:"not null;index"`
	Position  int   `gorm:"not null;default:0"`
	Cover     bool  `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ImageModel) TableName() string {
	return "images"
}

// VariantImageModel associates an image with a variant
type VariantImageModel struct {
	VariantID int64 `gorm:"primaryKey;autoIncrement:false"`
	ImageID   int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName returns the table name for GORM
func (VariantImageModel) TableName() string {
	return "variant_images"
}

// StockAvailableModel is the available quantity of a product (VariantID 0) or variant
type StockAvailableModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ProductID int64 `gorm:"not null;uniqueIndex:idx_stock_available_ref,priority:1"`
	VariantID int64 `gorm:"not null;default:0;uniqueIndex:idx_stock_available_ref,priority:2"`
	Quantity  int   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockAvailableModel) TableName() string {
	return "stock_available"
}

// PackItemModel is one constituent of a bundle product
type PackItemModel struct {
	PackProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	ItemProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	ItemVariantID int64 `gorm:"primaryKey;autoIncrement:false;default:0"`
	Quantity      int   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PackItemModel) TableName() string {
	return "pack_items"
}

// ProductCategoryModel places a product in a category
type ProductCategoryModel struct {
	ProductID  int64 `gorm:"primaryKey;autoIncrement:false"`
	CategoryID int64 `gorm:"primaryKey;autoIncrement:false"`
	Position   int   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductCategoryModel) TableName() string {
	return "product_categories"
}

// ProductCarrierModel restricts a product to a carrier
type ProductCarrierModel struct {
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	CarrierID int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName returns the table name for GORM
func (ProductCarrierModel) TableName() string {
	return "product_carriers"
}

// ---------------------------------------------------------------------------
// Carriers
// ---------------------------------------------------------------------------

// LanguageModel is a storefront language
type LanguageModel struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	IsoCode string `gorm:"type:varchar(8);not null"`
	Active  bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LanguageModel) TableName() string {
	return "languages"
}

// CarrierModel is a shipping carrier
type CarrierModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(64);not null"`
	Active    bool            `gorm:"not null"`
	Deleted   bool            `gorm:"not null;default:false"`
	MaxWeight decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CarrierModel) TableName() string {
	return "carriers"
}

// CarrierTranslationModel holds the localized delivery delay text
type CarrierTranslationModel struct {
	CarrierID  int64  `gorm:"primaryKey;autoIncrement:false"`
	LanguageID int64  `gorm:"primaryKey;autoIncrement:false"`
	Delay      string `gorm:"type:varchar(512)"`
}

// TableName returns the table name for GORM
func (CarrierTranslationModel) TableName() string {
	return "carrier_translations"
}

// ZoneModel is a shipping zone
type ZoneModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Name   string `gorm:"type:varchar(64);not null"`
	Active bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ZoneModel) TableName() string {
	return "zones"
}

// CustomerGroupModel is a customer group
type CustomerGroupModel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(64);not null"`
}

// TableName returns the table name for GORM
func (CustomerGroupModel) TableName() string {
	return "customer_groups"
}

// CarrierZoneModel enables a carrier in a zone
type CarrierZoneModel struct {
	CarrierID int64 `gorm:"primaryKey;autoIncrement:false"`
	ZoneID    int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName returns the table name for GORM
func (CarrierZoneModel) TableName() string {
	return "carrier_zones"
}

// CarrierGroupModel enables a carrier for a customer group
type CarrierGroupModel struct {
	CarrierID int64 `gorm:"primaryKey;autoIncrement:false"`
	GroupID   int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName returns the table name for GORM
func (CarrierGroupModel) TableName() string {
	return "carrier_groups"
}

// RangePriceModel is a cart amount range of a carrier
type RangePriceModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CarrierID  int64           `gorm:"not null;index"`
	Delimiter1 decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Delimiter2 decimal.Decimal `gorm:"type:decimal(20,6);not null"`
}

// TableName returns the table name for GORM
func (RangePriceModel) TableName() string {
	return "range_prices"
}

// DeliveryModel is the shipping price of a carrier range in a zone
type DeliveryModel struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	CarrierID    int64           `gorm:"not null;index"`
	RangePriceID int64           `gorm:"not null"`
	ZoneID       int64           `gorm:"not null"`
	Price        decimal.Decimal `gorm:"type:decimal(20,6);not null"`
}

// TableName returns the table name for GORM
func (DeliveryModel) TableName() string {
	return "deliveries"
}

// ---------------------------------------------------------------------------
// Customers and carts
// ---------------------------------------------------------------------------

// CustomerModel is a storefront customer
type CustomerModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	FirstName string    `gorm:"type:varchar(255)"`
	LastName  string    `gorm:"type:varchar(255)"`
	Phone     string    `gorm:"type:varchar(32)"`
	SecureKey string    `gorm:"type:varchar(32);not null"`
	IsGuest   bool      `gorm:"not null;default:false"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// AddressModel is a customer address
type AddressModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	CustomerID  int64     `gorm:"not null;index"`
	Alias       string    `gorm:"type:varchar(32)"`
	FirstName   string    `gorm:"type:varchar(255)"`
	LastName    string    `gorm:"type:varchar(255)"`
	Company     string    `gorm:"type:varchar(255)"`
	Address1    string    `gorm:"type:varchar(255)"`
	Postcode    string    `gorm:"type:varchar(16)"`
	City        string    `gorm:"type:varchar(64)"`
	CountryCode string    `gorm:"type:varchar(2)"`
	Phone       string    `gorm:"type:varchar(32)"`
	VATNumber   string    `gorm:"column:vat_number;type:varchar(32)"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AddressModel) TableName() string {
	return "addresses"
}

// CartModel is a storefront cart
type CartModel struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	LanguageID        int64     `gorm:"not null"`
	CurrencyID        int64     `gorm:"not null"`
	CustomerID        int64     `gorm:"not null;index"`
	DeliveryAddressID int64     `gorm:"not null"`
	InvoiceAddressID  int64     `gorm:"not null"`
	CarrierID         int64     `gorm:"not null"`
	SecureKey         string    `gorm:"type:varchar(32)"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartModel) TableName() string {
	return "carts"
}

// CartItemModel is one cart line. UnitPrice is tax-included.
type CartItemModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	CartID    int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null"`
	VariantID int64           `gorm:"not null;default:0"`
	Name      string          `gorm:"type:varchar(255)"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,6);not null"`
}

// TableName returns the table name for GORM
func (CartItemModel) TableName() string {
	return "cart_items"
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderStateModel is a configured order state
type OrderStateModel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(64);not null"`
	Paid bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (OrderStateModel) TableName() string {
	return "order_states"
}

// OrderModel is a storefront order
type OrderModel struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement"`
	Reference            string          `gorm:"type:varchar(16);index"`
	CartID               int64           `gorm:"not null;uniqueIndex"`
	CustomerID           int64           `gorm:"not null;index"`
	CarrierID            int64           `gorm:"not null"`
	LanguageID           int64           `gorm:"not null"`
	CurrencyID           int64           `gorm:"not null"`
	DeliveryAddressID    int64           `gorm:"not null"`
	InvoiceAddressID     int64           `gorm:"not null"`
	CurrentState         int64           `gorm:"not null;index"`
	Payment              string          `gorm:"type:varchar(255)"`
	TransactionID        string          `gorm:"type:varchar(255)"`
	SecureKey            string          `gorm:"type:varchar(32)"`
	TotalPaid            decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalPaidTaxIncl     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalPaidTaxExcl     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalPaidReal        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalProducts        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalProductsWT      decimal.Decimal `gorm:"column:total_products_wt;type:decimal(20,6);not null;default:0"`
	TotalShipping        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalShippingTaxIncl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalShippingTaxExcl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt            time.Time       `gorm:"not null"`
	UpdatedAt            time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderDetailModel is one order line
type OrderDetailModel struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	OrderID           int64           `gorm:"not null;index"`
	ProductID         int64           `gorm:"not null"`
	VariantID         int64           `gorm:"not null;default:0"`
	Name              string          `gorm:"type:varchar(255)"`
	Quantity          int             `gorm:"not null"`
	UnitPriceTaxIncl  decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	TotalPriceTaxIncl decimal.Decimal `gorm:"type:decimal(20,6);not null"`
}

// TableName returns the table name for GORM
func (OrderDetailModel) TableName() string {
	return "order_details"
}

// OrderCarrierModel is the shipping line of an order
type OrderCarrierModel struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement"`
	OrderID             int64           `gorm:"not null;index"`
	CarrierID           int64           `gorm:"not null"`
	ShippingCostTaxIncl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	ShippingCostTaxExcl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderCarrierModel) TableName() string {
	return "order_carriers"
}

// OrderPaymentModel is a payment recorded against an order reference
type OrderPaymentModel struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	OrderReference string          `gorm:"type:varchar(16);not null;index"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	PaymentMethod  string          `gorm:"type:varchar(255)"`
	TransactionID  string          `gorm:"type:varchar(255)"`
	CurrencyID     int64           `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderPaymentModel) TableName() string {
	return "order_payments"
}

// OrderInvoiceModel is an order invoice
type OrderInvoiceModel struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement"`
	OrderID              int64           `gorm:"not null;index"`
	Number               int64           `gorm:"not null;default:0"`
	TotalPaidTaxIncl     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalPaidTaxExcl     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalProducts        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalProductsWT      decimal.Decimal `gorm:"column:total_products_wt;type:decimal(20,6);not null;default:0"`
	TotalShippingTaxIncl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	TotalShippingTaxExcl decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	CreatedAt            time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderInvoiceModel) TableName() string {
	return "order_invoices"
}

// OrderHistoryModel records one state transition of an order
type OrderHistoryModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	OrderID   int64     `gorm:"not null;index"`
	StateID   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderHistoryModel) TableName() string {
	return "order_history"
}

// ConnectorModels returns every model owned by the connector schema, in
// creation order. Used for AutoMigrate in tests and development databases.
func ConnectorModels() []any {
	return []any{
		&ConfigurationModel{},
		&LanguageModel{},
		&ProductModel{}, &ProductTranslationModel{}, &ProductVariantModel{},
		&AttributeGroupModel{}, &AttributeGroupTranslationModel{},
		&AttributeModel{}, &AttributeTranslationModel{}, &VariantAttributeModel{},
		&ImageModel{}, &VariantImageModel{}, &StockAvailableModel{},
		&PackItemModel{}, &ProductCategoryModel{}, &ProductCarrierModel{},
		&CarrierModel{}, &CarrierTranslationModel{}, &ZoneModel{}, &CustomerGroupModel{},
		&CarrierZoneModel{}, &CarrierGroupModel{}, &RangePriceModel{}, &DeliveryModel{},
		&CustomerModel{}, &AddressModel{}, &CartModel{}, &CartItemModel{},
		&OrderStateModel{}, &OrderModel{}, &OrderDetailModel{}, &OrderCarrierModel{},
		&OrderPaymentModel{}, &OrderInvoiceModel{}, &OrderHistoryModel{},
		&OrderLinkModel{}, &ShippingMapModel{}, &CategoryMapModel{},
		&ProductLinkModel{}, &SyncLogModel{},
	}
}
