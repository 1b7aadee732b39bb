package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormOrderRepository implements integration.PaymentProcessor and
// integration.OrderStore over the storefront order tables.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// ---------------------------------------------------------------------------
// PaymentProcessor implementation
// ---------------------------------------------------------------------------

// ValidateOrder turns a cart into an order in one transaction: order row,
// detail lines, shipping line and the first history entry. Paid states also
// get a payment and an invoice.
func (r *GormOrderRepository) ValidateOrder(ctx context.Context, v integration.OrderValidation) (int64, error) {
	if v.CartID <= 0 || v.StateID <= 0 {
		return 0, integration.ErrValidation
	}

	var orderID int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.CartModel
		if err := tx.First(&cart, "id = ?", v.CartID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integration.ErrNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.OrderModel{}).Where("cart_id = ?", cart.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: cart %d already has an order", integration.ErrValidation, cart.ID)
		}

		var lines []models.CartItemModel
		if err := tx.Where("cart_id = ?", cart.ID).Order("id ASC").Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("%w: cart %d is empty", integration.ErrValidation, cart.ID)
		}

		var state models.OrderStateModel
		if err := tx.First(&state, "id = ?", v.StateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order state %d", integration.ErrNotFound, v.StateID)
			}
			return err
		}

		products := decimal.Zero
		for _, line := range lines {
			products = products.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		products = products.Round(2)
		shipping := v.Amount.Sub(products)
		if shipping.IsNegative() {
			shipping = decimal.Zero
		}

		currencyID := v.CurrencyID
		if currencyID <= 0 {
			currencyID = cart.CurrencyID
		}
		paidReal := decimal.Zero
		if state.Paid {
			paidReal = v.Amount
		}
		now := time.Now()
		order := &models.OrderModel{
			Reference:            newOrderReference(),
			CartID:               cart.ID,
			CustomerID:           cart.CustomerID,
			CarrierID:            cart.CarrierID,
			LanguageID:           cart.LanguageID,
			CurrencyID:           currencyID,
			DeliveryAddressID:    cart.DeliveryAddressID,
			InvoiceAddressID:     cart.InvoiceAddressID,
			CurrentState:         state.ID,
			Payment:              v.PaymentMethod,
			TransactionID:        v.TransactionID,
			SecureKey:            v.SecureKey,
			TotalPaid:            v.Amount,
			TotalPaidTaxIncl:     v.Amount,
			TotalPaidTaxExcl:     v.Amount,
			TotalPaidReal:        paidReal,
			TotalProducts:        products,
			TotalProductsWT:      products,
			TotalShipping:        shipping,
			TotalShippingTaxIncl: shipping,
			TotalShippingTaxExcl: shipping,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		orderID = order.ID

		details := make([]*models.OrderDetailModel, len(lines))
		for i, line := range lines {
			details[i] = &models.OrderDetailModel{
				OrderID:           order.ID,
				ProductID:         line.ProductID,
				VariantID:         line.VariantID,
				Name:              line.Name,
				Quantity:          line.Quantity,
				UnitPriceTaxIncl:  line.UnitPrice,
				TotalPriceTaxIncl: line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			}
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.OrderCarrierModel{
			OrderID:             order.ID,
			CarrierID:           cart.CarrierID,
			ShippingCostTaxIncl: shipping,
			ShippingCostTaxExcl: shipping,
			CreatedAt:           now,
		}).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.OrderHistoryModel{
			OrderID:   order.ID,
			StateID:   state.ID,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}

		if !state.Paid {
			return nil
		}
		if err := tx.Create(&models.OrderPaymentModel{
			OrderReference: order.Reference,
			Amount:         v.Amount,
			PaymentMethod:  v.PaymentMethod,
			TransactionID:  v.TransactionID,
			CurrencyID:     currencyID,
			CreatedAt:      now,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderInvoiceModel{
			OrderID:              order.ID,
			Number:               order.ID,
			TotalPaidTaxIncl:     v.Amount,
			TotalPaidTaxExcl:     v.Amount,
			TotalProducts:        products,
			TotalProductsWT:      products,
			TotalShippingTaxIncl: shipping,
			TotalShippingTaxExcl: shipping,
			CreatedAt:            now,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

type orderStateRow struct {
	ID   int64
	Paid bool
}

// CurrentState returns the state of an order and whether that state counts as paid
func (r *GormOrderRepository) CurrentState(ctx context.Context, orderID int64) (*integration.OrderState, error) {
	var rows []orderStateRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT o.current_state AS id, COALESCE(s.paid, false) AS paid
		FROM orders o
		LEFT JOIN order_states s ON s.id = o.current_state
		WHERE o.id = ?`, orderID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, integration.ErrNotFound
	}
	return &integration.OrderState{ID: rows[0].ID, Paid: rows[0].Paid}, nil
}

// ApplyTotals overwrites the paid totals and, when given, the product and shipping totals
func (r *GormOrderRepository) ApplyTotals(ctx context.Context, orderID int64, totals integration.OrderTotals) error {
	updates := map[string]any{
		"total_paid":          totals.Paid,
		"total_paid_tax_incl": totals.Paid,
		"total_paid_tax_excl": totals.Paid,
		"total_paid_real":     totals.Paid,
		"updated_at":          time.Now(),
	}
	if totals.Products != nil {
		updates["total_products"] = *totals.Products
		updates["total_products_wt"] = *totals.Products
	}
	if totals.Shipping != nil {
		updates["total_shipping"] = *totals.Shipping
		updates["total_shipping_tax_incl"] = *totals.Shipping
		updates["total_shipping_tax_excl"] = *totals.Shipping
	}
	return r.updateOrder(ctx, orderID, updates)
}

// AssignCarrier sets the carrier on the order and on its most recent shipping line
func (r *GormOrderRepository) AssignCarrier(ctx context.Context, orderID, carrierID int64, shippingCost decimal.Decimal) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ?", orderID).
			Updates(map[string]any{"carrier_id": carrierID, "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return integration.ErrNotFound
		}

		var lines []models.OrderCarrierModel
		if err := tx.Where("order_id = ?", orderID).Order("id DESC").Limit(1).Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		found = true
		return tx.Model(&models.OrderCarrierModel{}).
			Where("id = ?", lines[0].ID).
			Updates(map[string]any{
				"carrier_id":             carrierID,
				"shipping_cost_tax_incl": shippingCost,
				"shipping_cost_tax_excl": shippingCost,
			}).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// OrderCarrierID reads back the carrier stored on the order
func (r *GormOrderRepository) OrderCarrierID(ctx context.Context, orderID int64) (int64, error) {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).Select("id", "carrier_id").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, integration.ErrNotFound
		}
		return 0, err
	}
	return order.CarrierID, nil
}

// AdjustFirstPayment sets the amount of the first payment of the order
func (r *GormOrderRepository) AdjustFirstPayment(ctx context.Context, orderID int64, amount decimal.Decimal) (bool, error) {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).Select("id", "reference").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, integration.ErrNotFound
		}
		return false, err
	}
	var payments []models.OrderPaymentModel
	if err := r.db.WithContext(ctx).
		Where("order_reference = ?", order.Reference).
		Order("id ASC").
		Limit(1).
		Find(&payments).Error; err != nil {
		return false, err
	}
	if len(payments) == 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.OrderPaymentModel{}).
		Where("id = ?", payments[0].ID).
		Update("amount", amount).Error; err != nil {
		return false, err
	}
	return true, nil
}

// AdjustFirstInvoice sets the totals of the first invoice of the order
func (r *GormOrderRepository) AdjustFirstInvoice(ctx context.Context, orderID int64, totals integration.OrderTotals) (bool, error) {
	var invoices []models.OrderInvoiceModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Limit(1).
		Find(&invoices).Error; err != nil {
		return false, err
	}
	if len(invoices) == 0 {
		return false, nil
	}
	updates := map[string]any{
		"total_paid_tax_incl": totals.Paid,
		"total_paid_tax_excl": totals.Paid,
	}
	if totals.Products != nil {
		updates["total_products"] = *totals.Products
		updates["total_products_wt"] = *totals.Products
	}
	if totals.Shipping != nil {
		updates["total_shipping_tax_incl"] = *totals.Shipping
		updates["total_shipping_tax_excl"] = *totals.Shipping
	}
	if err := r.db.WithContext(ctx).Model(&models.OrderInvoiceModel{}).
		Where("id = ?", invoices[0].ID).
		Updates(updates).Error; err != nil {
		return false, err
	}
	return true, nil
}

// AddStateHistory moves the order to stateID and records the transition
func (r *GormOrderRepository) AddStateHistory(ctx context.Context, orderID, stateID int64) error {
	if stateID <= 0 {
		return integration.ErrValidation
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ?", orderID).
			Updates(map[string]any{"current_state": stateID, "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return integration.ErrNotFound
		}
		return tx.Create(&models.OrderHistoryModel{
			OrderID:   orderID,
			StateID:   stateID,
			CreatedAt: time.Now(),
		}).Error
	})
}

// Count returns the number of storefront orders
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormOrderRepository) updateOrder(ctx context.Context, orderID int64, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", orderID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrNotFound
	}
	return nil
}

// newOrderReference returns a random 9 letter order reference
func newOrderReference() string {
	id := uuid.New()
	ref := make([]byte, 9)
	for i := range ref {
		ref[i] = 'A' + id[i]%26
	}
	return string(ref)
}

var (
	_ integration.PaymentProcessor = (*GormOrderRepository)(nil)
	_ integration.OrderStore       = (*GormOrderRepository)(nil)
)
