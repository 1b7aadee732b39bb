package integration

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/erp/erli-connector/internal/infrastructure/logger"
)

// Operator log kinds written to the sync log
const (
	KindInboxEmpty         = "order_inbox_empty"
	KindInboxError         = "order_inbox_error"
	KindInboxLimitReached  = "order_inbox_limit_reached"
	KindAckError           = "order_ack_error"
	KindEventIgnored       = "order_event_ignored"
	KindEventException     = "order_event_exception"
	KindEventMalformed     = "order_event_malformed"
	KindEventNoID          = "order_event_no_id"
	KindSkippedExisting    = "order_skipped_existing"
	KindFetchError         = "order_fetch_error"
	KindOrderCreated       = "order_created"
	KindOrderCreateError   = "order_create_error"
	KindCreatedFromStatus  = "order_created_from_status_event"
	KindStatusUpdated      = "order_status_updated_from_erli"
	KindStatusIgnored      = "order_status_ignored_existing"
	KindTotalMismatch      = "order_total_mismatch"
	KindPaymentUpdateError = "order_payment_update_error"
	KindInvoiceUpdated     = "invoice_updated"
	KindInvoiceUpdateError = "invoice_update_error"
	KindCarrierInvalid     = "carrier_invalid"
	KindCarrierSelected    = "carrier_selected_for_order"
	KindCarrierFoundInMap  = "carrier_found_in_map"
	KindCarrierFoundByName = "carrier_found_by_name"
	KindCarrierCreated     = "carrier_created"
	KindCarrierCreateError = "carrier_create_error"
	KindCarrierNotFound    = "carrier_order_carrier_not_found"
	KindCarrierUpdated     = "carrier_order_carrier_updated"
	KindCarrierVerify      = "carrier_verification"
	KindProductSynced      = "product_synced"
	KindProductSyncError   = "product_sync_error"
	KindProductsPrepared   = "products_prepared"
)

// Journal writes operator-facing records to the sync log and mirrors each
// one to zap. A failing sync log never fails the caller.
type Journal struct {
	repo   integration.SyncLogRepository
	logger *zap.Logger
}

// NewJournal creates a Journal; repo may be nil to log to zap only.
func NewJournal(repo integration.SyncLogRepository, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{repo: repo, logger: log}
}

// Info records a normal outcome.
func (j *Journal) Info(ctx context.Context, kind, correlationID, message, detail string) {
	j.write(ctx, zapcore.InfoLevel, kind, correlationID, message, detail)
}

// Warn records an outcome that needs operator attention.
func (j *Journal) Warn(ctx context.Context, kind, correlationID, message, detail string) {
	j.write(ctx, zapcore.WarnLevel, kind, correlationID, message, detail)
}

// Error records a failed step.
func (j *Journal) Error(ctx context.Context, kind, correlationID, message, detail string) {
	j.write(ctx, zapcore.ErrorLevel, kind, correlationID, message, detail)
}

func (j *Journal) write(ctx context.Context, level zapcore.Level, kind, correlationID, message, detail string) {
	log := logger.WithLogger(ctx, j.logger).Zap()
	if ce := log.Check(level, message); ce != nil {
		ce.Write(
			zap.String("kind", kind),
			zap.String("correlation_id", correlationID),
			zap.Int("detail_bytes", len(detail)),
		)
	}
	if j.repo == nil {
		return
	}
	if err := j.repo.AddLog(ctx, kind, correlationID, message, detail); err != nil {
		log.Warn("Failed to store sync log entry", zap.String("kind", kind), zap.Error(err))
	}
}
