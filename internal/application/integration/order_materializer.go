package integration

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

const (
	erliPaymentMethod   = "Erli Payment"
	deliveryAddressName = "ERLI Delivery"
	invoiceAddressName  = "ERLI Invoice"
)

// OrderMaterializerConfig holds the dependencies of the OrderMaterializer
type OrderMaterializerConfig struct {
	Carriers  *CarrierResolver
	Customers integration.CustomerResolver
	Carts     integration.CartStore
	Payments  integration.PaymentProcessor
	Orders    integration.OrderStore
	Config    integration.ConfigStore
	Statuses  *StatusTable
	Journal   *Journal
	Logger    *zap.Logger
}

// OrderMaterializer turns a marketplace order into a local order.
type OrderMaterializer struct {
	carriers  *CarrierResolver
	customers integration.CustomerResolver
	carts     integration.CartStore
	payments  integration.PaymentProcessor
	orders    integration.OrderStore
	config    integration.ConfigStore
	statuses  *StatusTable
	journal   *Journal
	logger    *zap.Logger
}

// NewOrderMaterializer creates an OrderMaterializer.
func NewOrderMaterializer(config OrderMaterializerConfig) *OrderMaterializer {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Journal == nil {
		config.Journal = NewJournal(nil, config.Logger)
	}
	if config.Statuses == nil {
		config.Statuses = NewStatusTable(config.Config)
	}
	return &OrderMaterializer{
		carriers:  config.Carriers,
		customers: config.Customers,
		carts:     config.Carts,
		payments:  config.Payments,
		orders:    config.Orders,
		config:    config.Config,
		statuses:  config.Statuses,
		journal:   config.Journal,
		logger:    config.Logger,
	}
}

// Materialize creates the local order of a marketplace order and returns its id.
// Any failure before the order exists aborts the whole operation. Once the
// order exists, bookkeeping failures are logged and the order id is returned.
func (m *OrderMaterializer) Materialize(ctx context.Context, order *integration.MarketplaceOrder) (int64, error) {
	extID := order.ExternalID()
	ctx, span := telemetry.StartServiceSpan(ctx, "order_materializer", "materialize",
		telemetry.WithAttribute(telemetry.SpanAttrExternalOrderID, extID),
	)
	defer span.End()

	orderID, stateID, amounts, carrierID, err := m.createOrder(ctx, order)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLocalOrderID, orderID,
		telemetry.SpanAttrCarrierID, carrierID,
	)

	m.assignCarrier(ctx, extID, orderID, carrierID, amounts)
	m.adjustBookkeeping(ctx, extID, orderID, amounts)
	m.syncState(ctx, extID, orderID, stateID)

	telemetry.SetOK(span)
	return orderID, nil
}

func (m *OrderMaterializer) createOrder(ctx context.Context, order *integration.MarketplaceOrder) (orderID, stateID int64, amounts orderBookkeeping, carrierID int64, err error) {
	extID := order.ExternalID()

	carrierID, err = m.carriers.Resolve(ctx, order)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to resolve carrier: %w", err)
	}

	customer, err := m.customers.ResolveCustomer(ctx, order)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to resolve customer: %w", err)
	}
	deliveryID, err := m.customers.CreateAddress(ctx, customer, order.ShippingAddressCandidate(), deliveryAddressName)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to create delivery address: %w", err)
	}
	invoiceID, err := m.customers.CreateAddress(ctx, customer, order.BillingAddressCandidate(), invoiceAddressName)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to create invoice address: %w", err)
	}

	langID, err := m.configuredID(ctx, integration.ConfigPlatformLanguage)
	if err != nil {
		return 0, 0, amounts, 0, err
	}
	currencyID, err := m.configuredID(ctx, integration.ConfigPlatformCurrency)
	if err != nil {
		return 0, 0, amounts, 0, err
	}

	cart := &integration.Cart{
		LanguageID:        langID,
		CurrencyID:        currencyID,
		CustomerID:        customer.ID,
		DeliveryAddressID: deliveryID,
		InvoiceAddressID:  invoiceID,
		CarrierID:         carrierID,
		SecureKey:         customer.SecureKey,
	}
	if err := m.carts.CreateCart(ctx, cart); err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to create cart: %w", err)
	}
	if err := m.carts.FillCart(ctx, cart.ID, order); err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to fill cart %d: %w", cart.ID, err)
	}

	stateID, err = m.statuses.CreationState(ctx, order.Status)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to resolve order state: %w", err)
	}

	cartTotal, err := m.carts.CartTotal(ctx, cart.ID)
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to compute cart total: %w", err)
	}
	erli := AmountsOf(order)
	if erli.Mismatch(cartTotal) {
		m.journal.Warn(ctx, KindTotalMismatch, extID,
			fmt.Sprintf("ERLI total %s differs from cart total %s", erli.Total.StringFixed(2), cartTotal.StringFixed(2)),
			string(order.Raw))
	}

	orderID, err = m.payments.ValidateOrder(ctx, integration.OrderValidation{
		CartID:        cart.ID,
		StateID:       stateID,
		Amount:        cartTotal,
		PaymentMethod: erliPaymentMethod,
		TransactionID: extID,
		CurrencyID:    currencyID,
		SecureKey:     customer.SecureKey,
	})
	if err != nil {
		return 0, 0, amounts, 0, fmt.Errorf("failed to validate order for cart %d: %w", cart.ID, err)
	}

	amounts = orderBookkeeping{
		totals:   erli.FinalTotals(cartTotal),
		shipping: erli.ShippingCost(),
	}
	return orderID, stateID, amounts, carrierID, nil
}

// orderBookkeeping carries the final amounts into the post-creation steps
type orderBookkeeping struct {
	totals   integration.OrderTotals
	shipping decimal.Decimal
}

func (m *OrderMaterializer) assignCarrier(ctx context.Context, extID string, orderID, carrierID int64, amounts orderBookkeeping) {
	found, err := m.orders.AssignCarrier(ctx, orderID, carrierID, amounts.shipping)
	switch {
	case err != nil:
		m.journal.Error(ctx, KindCarrierVerify, extID,
			fmt.Sprintf("Failed to assign carrier %d to order %d: %v", carrierID, orderID, err), "")
		return
	case found:
		m.journal.Info(ctx, KindCarrierUpdated, extID,
			fmt.Sprintf("Order %d shipping line set to carrier %d", orderID, carrierID), "")
	default:
		m.journal.Warn(ctx, KindCarrierNotFound, extID,
			fmt.Sprintf("Order %d has no shipping line", orderID), "")
	}

	stored, err := m.orders.OrderCarrierID(ctx, orderID)
	if err != nil {
		m.journal.Error(ctx, KindCarrierVerify, extID,
			fmt.Sprintf("Failed to read back carrier of order %d: %v", orderID, err), "")
		return
	}
	if stored != carrierID {
		err := fmt.Errorf("%w: order %d has carrier %d, expected %d",
			integration.ErrPersistenceInconsistency, orderID, stored, carrierID)
		m.journal.Error(ctx, KindCarrierVerify, extID, err.Error(), "")
	}
}

func (m *OrderMaterializer) adjustBookkeeping(ctx context.Context, extID string, orderID int64, amounts orderBookkeeping) {
	if err := m.orders.ApplyTotals(ctx, orderID, amounts.totals); err != nil {
		m.logger.Warn("Failed to apply ERLI totals",
			zap.String("erli_order_id", extID),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}

	if _, err := m.orders.AdjustFirstPayment(ctx, orderID, amounts.totals.Paid); err != nil {
		m.journal.Error(ctx, KindPaymentUpdateError, extID,
			fmt.Sprintf("Failed to adjust payment of order %d: %v", orderID, err), "")
	}

	updated, err := m.orders.AdjustFirstInvoice(ctx, orderID, amounts.totals)
	switch {
	case err != nil:
		m.journal.Error(ctx, KindInvoiceUpdateError, extID,
			fmt.Sprintf("Failed to adjust invoice of order %d: %v", orderID, err), "")
	case updated:
		m.journal.Info(ctx, KindInvoiceUpdated, extID,
			fmt.Sprintf("Invoice of order %d set to %s", orderID, amounts.totals.Paid.StringFixed(2)), "")
	}
}

// syncState records a state history entry when the order did not land in the target state.
func (m *OrderMaterializer) syncState(ctx context.Context, extID string, orderID, stateID int64) {
	if stateID <= 0 {
		return
	}
	current, err := m.orders.CurrentState(ctx, orderID)
	if err != nil {
		m.logger.Warn("Failed to read order state", zap.String("erli_order_id", extID), zap.Error(err))
		return
	}
	if current.ID == stateID {
		return
	}
	if err := m.orders.AddStateHistory(ctx, orderID, stateID); err != nil {
		m.logger.Warn("Failed to add order state history",
			zap.String("erli_order_id", extID),
			zap.Int64("state_id", stateID),
			zap.Error(err),
		)
	}
}

// configuredID reads a platform id, defaulting to 1.
func (m *OrderMaterializer) configuredID(ctx context.Context, key string) (int64, error) {
	id, err := m.config.GetInt(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if id <= 0 {
		return 1, nil
	}
	return id, nil
}
