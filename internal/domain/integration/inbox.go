package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// EventID
// ---------------------------------------------------------------------------

// EventID is an opaque marketplace identifier. It is decoded from either a
// JSON number or a JSON string and always kept in its textual form.
type EventID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event id must be a string or a number: %w", err)
	}
	*id = EventID(n.String())
	return nil
}

// String returns the textual form.
func (id EventID) String() string {
	return string(id)
}

// IsEmpty reports whether the id is missing.
func (id EventID) IsEmpty() bool {
	return id == ""
}

// IsNumeric reports whether the id consists of ASCII digits only.
func (id EventID) IsNumeric() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// numericGreater compares two digit strings of arbitrary length.
func numericGreater(a, b EventID) bool {
	as := strings.TrimLeft(string(a), "0")
	bs := strings.TrimLeft(string(b), "0")
	if len(as) != len(bs) {
		return len(as) > len(bs)
	}
	return as > bs
}

// ---------------------------------------------------------------------------
// Watermark
// ---------------------------------------------------------------------------

// Watermark tracks the acknowledgment cursor of one batch. Numeric ids are
// compared numerically; as soon as either side is non-numeric the later-seen
// id wins.
type Watermark struct {
	id EventID
}

// Observe feeds the next event id of the batch, in batch order.
func (w *Watermark) Observe(id EventID) {
	if id.IsEmpty() {
		return
	}
	if w.id.IsEmpty() {
		w.id = id
		return
	}
	if w.id.IsNumeric() && id.IsNumeric() {
		if numericGreater(id, w.id) {
			w.id = id
		}
		return
	}
	w.id = id
}

// ID returns the watermark and whether one was observed.
func (w *Watermark) ID() (EventID, bool) {
	return w.id, !w.id.IsEmpty()
}

// ---------------------------------------------------------------------------
// InboxEvent
// ---------------------------------------------------------------------------

// EventKind is the handling category of an inbox event
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindOrderCreated
	EventKindOrderStatusChanged
)

// String returns the kind name used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventKindOrderCreated:
		return "order_created"
	case EventKindOrderStatusChanged:
		return "order_status_changed"
	default:
		return "unknown"
	}
}

var eventKinds = map[string]EventKind{
	"orderCreated":             EventKindOrderCreated,
	"ORDER_CREATED":            EventKindOrderCreated,
	"newOrder":                 EventKindOrderCreated,
	"orderStatusChanged":       EventKindOrderStatusChanged,
	"orderSellerStatusChanged": EventKindOrderStatusChanged,
}

// InboxEvent is one event of the marketplace inbox. It is consumed once per
// poll cycle and covered by the batch acknowledgment.
type InboxEvent struct {
	// ID is the inbox cursor value of the event
	ID EventID `json:"id"`
	// Type is the marketplace event type
	Type string `json:"type"`
	// Payload is the event body, usually carrying the order id
	Payload json.RawMessage `json:"payload"`

	// Raw and DecodeErr are set on batch elements that are not valid events.
	// ID is still filled when the element is an object with a readable id.
	Raw       json.RawMessage `json:"-"`
	DecodeErr error           `json:"-"`
}

// Malformed reports whether the batch element could not be decoded.
func (e InboxEvent) Malformed() bool {
	return e.DecodeErr != nil
}

// Kind classifies the event type.
func (e InboxEvent) Kind() EventKind {
	return eventKinds[e.Type]
}

// eventPayload is the part of an event payload the dispatcher needs
type eventPayload struct {
	ID      EventID `json:"id"`
	OrderID EventID `json:"orderId"`
}

// OrderID extracts the marketplace order id carried by the payload.
// It returns "" when the payload has none or is not an object.
func (e InboxEvent) OrderID() string {
	if len(bytes.TrimSpace(e.Payload)) == 0 {
		return ""
	}
	var p eventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	if !p.ID.IsEmpty() {
		return p.ID.String()
	}
	return p.OrderID.String()
}

// ParseInboxBatch decodes an inbox body. A missing or null body is an empty
// batch; anything other than a JSON array is malformed. Elements are decoded
// one by one: an element that is not a valid event comes back marked
// Malformed instead of failing the batch.
func ParseInboxBatch(body json.RawMessage) ([]InboxEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: inbox body is not a list", ErrMalformedResponse)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	events := make([]InboxEvent, 0, len(elements))
	for _, raw := range elements {
		events = append(events, decodeInboxEvent(raw))
	}
	return events, nil
}

func decodeInboxEvent(raw json.RawMessage) InboxEvent {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return InboxEvent{Raw: raw, DecodeErr: errors.New("inbox event is not an object")}
	}
	var event InboxEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		// keep the cursor when only other fields are broken
		var cursor struct {
			ID EventID `json:"id"`
		}
		_ = json.Unmarshal(raw, &cursor)
		return InboxEvent{ID: cursor.ID, Raw: raw, DecodeErr: err}
	}
	return event
}

// ---------------------------------------------------------------------------
// SyncStats
// ---------------------------------------------------------------------------

// SyncStats are the counters of one inbox run. They are returned to the
// caller and never persisted.
type SyncStats struct {
	Batches    int `json:"batches"`
	Events     int `json:"events"`
	Created    int `json:"created"`
	Ignored    int `json:"ignored"`
	Exceptions int `json:"exceptions"`
	Acked      int `json:"acked"`
}

// ---------------------------------------------------------------------------
// RunLock
// ---------------------------------------------------------------------------

// ErrRunInProgress is returned when another run holds the lock
var ErrRunInProgress = errors.New("integration: another sync run is in progress")

// RunLock guarantees that at most one run of a given job is active.
type RunLock interface {
	// TryAcquire takes the named lock for at most ttl. It returns ErrRunInProgress
	// when the lock is held; the returned release func frees it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}
