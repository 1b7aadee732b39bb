package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans (development only)
	SlowQueryThresh time.Duration // default: 200ms
	DBName          string
}

// DefaultDBTracingConfig returns the default database tracing configuration.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "shop",
	}
}

type dbContextKey string

const queryStartTimeKey dbContextKey = "otel_query_start_time"

// RegisterDBTracing installs the otelgorm plugin plus callbacks that flag
// slow statements on the active span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartTimeKey, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		markSlowQuery(tx, cfg.SlowQueryThresh)
	}

	cb := db.Callback()
	registrations := []error{
		cb.Create().Before("gorm:create").Register("erli_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("erli_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("erli_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("erli_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("erli_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("erli_timing:before_raw", before),
		cb.Create().After("gorm:create").Register("erli_timing:after_create", after),
		cb.Query().After("gorm:query").Register("erli_timing:after_query", after),
		cb.Update().After("gorm:update").Register("erli_timing:after_update", after),
		cb.Delete().After("gorm:delete").Register("erli_timing:after_delete", after),
		cb.Row().After("gorm:row").Register("erli_timing:after_row", after),
		cb.Raw().After("gorm:raw").Register("erli_timing:after_raw", after),
	}
	if err := errors.Join(registrations...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok || threshold <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
