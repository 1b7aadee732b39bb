package integration

import (
	"context"
	"strings"

	"github.com/erp/erli-connector/internal/domain/integration"
)

// StatusCategory groups marketplace order statuses by their local meaning
type StatusCategory int

const (
	StatusOther StatusCategory = iota
	StatusPaid
	StatusPending
	StatusCancelled
)

// String returns the category name.
func (c StatusCategory) String() string {
	switch c {
	case StatusPaid:
		return "paid"
	case StatusPending:
		return "pending"
	case StatusCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

var statusCategories = map[string]StatusCategory{
	"purchased":        StatusPaid,
	"paid":             StatusPaid,
	"completed":        StatusPaid,
	"pending":          StatusPending,
	"new":              StatusPending,
	"awaiting_payment": StatusPending,
	"cancelled":        StatusCancelled,
	"canceled":         StatusCancelled,
}

// statusUpdateKeys are the statuses a status-change event may move an order to
var statusUpdateKeys = map[string]StatusCategory{
	"pending":   StatusPending,
	"purchased": StatusPaid,
	"cancelled": StatusCancelled,
}

type stateKeys struct {
	configured string
	platform   string
}

var categoryStateKeys = map[StatusCategory]stateKeys{
	StatusPaid:      {integration.ConfigStatePaid, integration.ConfigPlatformStatePayment},
	StatusPending:   {integration.ConfigStatePending, integration.ConfigPlatformStateAwaiting},
	StatusCancelled: {integration.ConfigStateCancelled, integration.ConfigPlatformStateCanceled},
	StatusOther:     {integration.ConfigDefaultOrderState, integration.ConfigPlatformStatePayment},
}

// ClassifyStatus maps a marketplace status to its category, case-insensitively.
func ClassifyStatus(status string) StatusCategory {
	return statusCategories[strings.ToLower(strings.TrimSpace(status))]
}

// StatusTable resolves marketplace statuses to local order states. Order
// creation and status updates both go through it.
type StatusTable struct {
	config integration.ConfigStore
}

// NewStatusTable creates a StatusTable reading state ids from config.
func NewStatusTable(config integration.ConfigStore) *StatusTable {
	return &StatusTable{config: config}
}

// CreationState returns the state a new order with the given status starts in.
// A configured state wins over the platform default of the category.
func (t *StatusTable) CreationState(ctx context.Context, status string) (int64, error) {
	keys := categoryStateKeys[ClassifyStatus(status)]
	id, err := t.config.GetInt(ctx, keys.configured)
	if err != nil {
		return 0, err
	}
	if id > 0 {
		return id, nil
	}
	return t.config.GetInt(ctx, keys.platform)
}

// UpdateState returns the state an existing order moves to. Only pending,
// purchased and cancelled are honoured and only when a state is configured;
// ok is false when the update must be skipped.
func (t *StatusTable) UpdateState(ctx context.Context, status string) (id int64, ok bool, err error) {
	category, known := statusUpdateKeys[strings.ToLower(strings.TrimSpace(status))]
	if !known {
		return 0, false, nil
	}
	id, err = t.config.GetInt(ctx, categoryStateKeys[category].configured)
	if err != nil {
		return 0, false, err
	}
	return id, id > 0, nil
}
