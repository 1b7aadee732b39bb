package integration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"

	"go.uber.org/zap"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/telemetry"
)

// Event outcomes reported to metrics
const (
	outcomeCreated   = "created"
	outcomeSkipped   = "skipped"
	outcomeIgnored   = "ignored"
	outcomeUpdated   = "updated"
	outcomeFailed    = "failed"
	outcomeException = "exception"
)

// OrderCreator materializes marketplace orders
type OrderCreator interface {
	Materialize(ctx context.Context, order *integration.MarketplaceOrder) (int64, error)
}

// EventDispatcherConfig holds the dependencies of the EventDispatcher
type EventDispatcherConfig struct {
	Client   integration.MarketplaceClient
	Links    integration.OrderLinkRepository
	Orders   integration.OrderStore
	Creator  OrderCreator
	Statuses *StatusTable
	Journal  *Journal
	Metrics  *telemetry.SyncMetrics
	Logger   *zap.Logger
}

// EventDispatcher handles single inbox events. A failing event never
// affects the other events of its batch.
type EventDispatcher struct {
	client   integration.MarketplaceClient
	links    integration.OrderLinkRepository
	orders   integration.OrderStore
	creator  OrderCreator
	statuses *StatusTable
	journal  *Journal
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewEventDispatcher creates an EventDispatcher.
func NewEventDispatcher(config EventDispatcherConfig) *EventDispatcher {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Journal == nil {
		config.Journal = NewJournal(nil, config.Logger)
	}
	return &EventDispatcher{
		client:   config.Client,
		links:    config.Links,
		orders:   config.Orders,
		creator:  config.Creator,
		statuses: config.Statuses,
		journal:  config.Journal,
		metrics:  config.Metrics,
		logger:   config.Logger,
	}
}

// Dispatch routes one event to its handler and updates stats.
// Errors and panics are recovered and counted as exceptions.
func (d *EventDispatcher) Dispatch(ctx context.Context, event integration.InboxEvent, stats *integration.SyncStats) {
	kind := event.Kind()
	ctx, span := telemetry.StartServiceSpan(ctx, "event_dispatcher", "dispatch",
		telemetry.WithAttribute(telemetry.SpanAttrEventID, event.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrEventType, event.Type),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while handling inbox event",
				zap.String("event_id", event.ID.String()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			d.exception(ctx, event, fmt.Errorf("panic: %v", r), stats)
		}
	}()

	var (
		outcome string
		err     error
	)
	switch kind {
	case integration.EventKindOrderCreated:
		outcome, err = d.handleCreated(ctx, event, stats)
	case integration.EventKindOrderStatusChanged:
		outcome, err = d.handleStatusChanged(ctx, event, stats)
	default:
		stats.Ignored++
		outcome = outcomeIgnored
		d.journal.Info(ctx, KindEventIgnored, event.ID.String(),
			fmt.Sprintf("Ignored inbox event of type %q", event.Type), string(event.Payload))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		d.exception(ctx, event, err, stats)
		return
	}
	d.metrics.RecordEvent(ctx, kind.String(), outcome)
	telemetry.SetOK(span)
}

func (d *EventDispatcher) exception(ctx context.Context, event integration.InboxEvent, err error, stats *integration.SyncStats) {
	stats.Exceptions++
	d.metrics.RecordEvent(ctx, event.Kind().String(), outcomeException)
	d.journal.Error(ctx, KindEventException, event.ID.String(),
		fmt.Sprintf("Inbox event %s of type %q failed: %v", event.ID, event.Type, err), string(event.Payload))
}

func (d *EventDispatcher) handleCreated(ctx context.Context, event integration.InboxEvent, stats *integration.SyncStats) (string, error) {
	extID := event.OrderID()
	if extID == "" {
		d.journal.Warn(ctx, KindEventNoID, event.ID.String(), "Order event without order id", string(event.Payload))
		return outcomeFailed, nil
	}

	linked, err := d.isLinked(ctx, extID)
	if err != nil {
		return "", err
	}
	if linked {
		d.journal.Info(ctx, KindSkippedExisting, extID, "ERLI order already imported", "")
		return outcomeSkipped, nil
	}
	return d.create(ctx, extID, KindOrderCreated, stats)
}

func (d *EventDispatcher) handleStatusChanged(ctx context.Context, event integration.InboxEvent, stats *integration.SyncStats) (string, error) {
	extID := event.OrderID()
	if extID == "" {
		d.journal.Warn(ctx, KindEventNoID, event.ID.String(), "Status event without order id", string(event.Payload))
		return outcomeFailed, nil
	}

	link, err := d.links.FindByExternalID(ctx, extID)
	if errors.Is(err, integration.ErrNotFound) {
		return d.create(ctx, extID, KindCreatedFromStatus, stats)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up order link: %w", err)
	}

	state, err := d.orders.CurrentState(ctx, link.LocalOrderID)
	if err != nil {
		return "", fmt.Errorf("failed to read state of order %d: %w", link.LocalOrderID, err)
	}
	if state.Paid {
		d.journal.Info(ctx, KindStatusIgnored, extID,
			fmt.Sprintf("Order %d is already paid, status change ignored", link.LocalOrderID), "")
		return outcomeSkipped, nil
	}

	order, ok := d.fetch(ctx, extID)
	if !ok {
		return outcomeFailed, nil
	}
	target, apply, err := d.statuses.UpdateState(ctx, order.Status)
	if err != nil {
		return "", fmt.Errorf("failed to resolve state for %q: %w", order.Status, err)
	}
	if apply && target != state.ID {
		if err := d.orders.AddStateHistory(ctx, link.LocalOrderID, target); err != nil {
			return "", fmt.Errorf("failed to move order %d to state %d: %w", link.LocalOrderID, target, err)
		}
	}
	if err := d.links.UpdateStatus(ctx, extID, order.Status); err != nil {
		d.logger.Warn("Failed to record ERLI status", zap.String("erli_order_id", extID), zap.Error(err))
	}
	d.journal.Info(ctx, KindStatusUpdated, extID,
		fmt.Sprintf("Order %d status %q applied (state %d)", link.LocalOrderID, order.Status, target), "")
	return outcomeUpdated, nil
}

// create fetches and materializes an order, then links it.
func (d *EventDispatcher) create(ctx context.Context, extID, successKind string, stats *integration.SyncStats) (string, error) {
	order, ok := d.fetch(ctx, extID)
	if !ok {
		return outcomeFailed, nil
	}

	localID, err := d.creator.Materialize(ctx, order)
	if err != nil {
		d.journal.Error(ctx, KindOrderCreateError, extID,
			fmt.Sprintf("Failed to create order: %v", err), string(order.Raw))
		return outcomeFailed, nil
	}

	link, err := integration.NewOrderLink(localID, extID, order.Status)
	if err != nil {
		return "", fmt.Errorf("invalid link for order %d: %w", localID, err)
	}
	if err := d.links.Save(ctx, link); err != nil {
		return "", fmt.Errorf("order %d created but link failed: %w", localID, err)
	}

	stats.Created++
	d.metrics.RecordOrderCreated(ctx, successKind)
	d.journal.Info(ctx, successKind, strconv.FormatInt(localID, 10),
		fmt.Sprintf("Order %d created from ERLI order %s", localID, extID), "")
	return outcomeCreated, nil
}

func (d *EventDispatcher) isLinked(ctx context.Context, extID string) (bool, error) {
	_, err := d.links.FindByExternalID(ctx, extID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, integration.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up order link: %w", err)
	}
}

// fetch loads an order detail; failures are logged as order_fetch_error.
func (d *EventDispatcher) fetch(ctx context.Context, extID string) (*integration.MarketplaceOrder, bool) {
	resp, err := d.client.GetOrder(ctx, extID)
	if err != nil {
		d.journal.Error(ctx, KindFetchError, extID, fmt.Sprintf("Failed to fetch order: %v", err), "")
		return nil, false
	}
	if !resp.IsSuccess() {
		d.journal.Error(ctx, KindFetchError, extID,
			fmt.Sprintf("Fetching order returned HTTP %d", resp.Code), resp.Raw)
		return nil, false
	}
	order, err := integration.ParseMarketplaceOrder(resp.Body)
	if err != nil {
		d.journal.Error(ctx, KindFetchError, extID, fmt.Sprintf("Failed to decode order: %v", err), resp.Raw)
		return nil, false
	}
	return order, true
}
