package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCartRepository implements integration.CartStore using GORM.
// Cart lines are priced from the catalog, not from the marketplace order.
type GormCartRepository struct {
	db      *gorm.DB
	catalog *GormCatalogRepository
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db, catalog: NewGormCatalogRepository(db)}
}

// CreateCart persists the cart and sets its ID
func (r *GormCartRepository) CreateCart(ctx context.Context, cart *integration.Cart) error {
	if cart == nil || cart.CustomerID <= 0 {
		return integration.ErrValidation
	}
	now := time.Now()
	model := &models.CartModel{
		LanguageID:        cart.LanguageID,
		CurrencyID:        cart.CurrencyID,
		CustomerID:        cart.CustomerID,
		DeliveryAddressID: cart.DeliveryAddressID,
		InvoiceAddressID:  cart.InvoiceAddressID,
		CarrierID:         cart.CarrierID,
		SecureKey:         cart.SecureKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	cart.ID = model.ID
	return nil
}

// FillCart adds one line per order item that resolves to a catalog product.
// Items are resolved by externalId ("<product>" or "<product>-<variant>"),
// then by sku against variant and product references. It fails with
// ErrValidation when no item resolves.
func (r *GormCartRepository) FillCart(ctx context.Context, cartID int64, order *integration.MarketplaceOrder) error {
	if order == nil || len(order.Items) == 0 {
		return fmt.Errorf("%w: order has no items", integration.ErrValidation)
	}

	lines := make([]*models.CartItemModel, 0, len(order.Items))
	for _, item := range order.Items {
		qty := item.Qty()
		if qty <= 0 {
			continue
		}
		productID, variantID, err := r.resolveItem(ctx, item)
		if err != nil {
			if errors.Is(err, integration.ErrNotFound) {
				continue
			}
			return err
		}
		price, err := r.catalog.GrossPrice(ctx, productID, variantID)
		if err != nil {
			return err
		}
		lines = append(lines, &models.CartItemModel{
			CartID:    cartID,
			ProductID: productID,
			VariantID: variantID,
			Name:      strings.TrimSpace(item.Name),
			Quantity:  qty,
			UnitPrice: price.Round(6),
		})
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: no order item matches a catalog product", integration.ErrValidation)
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// CartTotal returns the sum of the lines plus the cheapest delivery price of the cart's carrier
func (r *GormCartRepository) CartTotal(ctx context.Context, cartID int64) (decimal.Decimal, error) {
	var cart models.CartModel
	if err := r.db.WithContext(ctx).First(&cart, "id = ?", cartID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, integration.ErrNotFound
		}
		return decimal.Zero, err
	}
	products, err := r.productsTotal(ctx, cartID)
	if err != nil {
		return decimal.Zero, err
	}
	shipping, err := r.shippingCost(ctx, cart.CarrierID)
	if err != nil {
		return decimal.Zero, err
	}
	return products.Add(shipping).Round(2), nil
}

func (r *GormCartRepository) productsTotal(ctx context.Context, cartID int64) (decimal.Decimal, error) {
	var lines []models.CartItemModel
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Order("id ASC").Find(&lines).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total, nil
}

func (r *GormCartRepository) shippingCost(ctx context.Context, carrierID int64) (decimal.Decimal, error) {
	if carrierID <= 0 {
		return decimal.Zero, nil
	}
	var deliveries []models.DeliveryModel
	if err := r.db.WithContext(ctx).
		Where("carrier_id = ?", carrierID).
		Order("price ASC").
		Limit(1).
		Find(&deliveries).Error; err != nil {
		return decimal.Zero, err
	}
	if len(deliveries) == 0 {
		return decimal.Zero, nil
	}
	return deliveries[0].Price, nil
}

func (r *GormCartRepository) resolveItem(ctx context.Context, item integration.OrderItem) (productID, variantID int64, err error) {
	if pid, vid, ok := parseListingExternalID(item.ExternalID); ok {
		var product models.ProductModel
		err := r.db.WithContext(ctx).Select("id").First(&product, "id = ?", pid).Error
		switch {
		case err == nil:
			if vid == 0 {
				return pid, 0, nil
			}
			var count int64
			if err := r.db.WithContext(ctx).Model(&models.ProductVariantModel{}).
				Where("id = ? AND product_id = ?", vid, pid).Count(&count).Error; err != nil {
				return 0, 0, err
			}
			if count > 0 {
				return pid, vid, nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return 0, 0, err
		}
	}

	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		return 0, 0, integration.ErrNotFound
	}
	var variants []models.ProductVariantModel
	if err := r.db.WithContext(ctx).Where("reference = ?", sku).Order("id ASC").Limit(1).Find(&variants).Error; err != nil {
		return 0, 0, err
	}
	if len(variants) > 0 {
		return variants[0].ProductID, variants[0].ID, nil
	}
	var products []models.ProductModel
	if err := r.db.WithContext(ctx).Where("reference = ?", sku).Order("id ASC").Limit(1).Find(&products).Error; err != nil {
		return 0, 0, err
	}
	if len(products) > 0 {
		return products[0].ID, 0, nil
	}
	return 0, 0, integration.ErrNotFound
}

// parseListingExternalID splits "<product>" or "<product>-<variant>".
func parseListingExternalID(externalID string) (productID, variantID int64, ok bool) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return 0, 0, false
	}
	head, tail, hasVariant := strings.Cut(externalID, "-")
	pid, err := strconv.ParseInt(head, 10, 64)
	if err != nil || pid <= 0 {
		return 0, 0, false
	}
	if !hasVariant {
		return pid, 0, true
	}
	vid, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || vid < 0 {
		return 0, 0, false
	}
	return pid, vid, true
}

var _ integration.CartStore = (*GormCartRepository)(nil)
