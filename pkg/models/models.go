package models

import "time"

// ChangeOp is the kind of a row-level mutation notification.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent is the wire message published on the orders.changes exchange for
// every committed mutation of the order collection. Insert and update events
// carry only the changed columns; consumers needing the full row fetch it from
// the snapshot endpoint.
type ChangeEvent struct {
	ID         string         `json:"id"`
	Op         ChangeOp       `json:"op"`
	OrderID    int64          `json:"order_id"`
	Columns    map[string]any `json:"columns,omitempty"`
	Version    int64          `json:"version,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
