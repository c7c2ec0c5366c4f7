package models

import "time"

// Status is the closed set of order lifecycle states.
type Status string

const (
	StatusPending    Status = "pendiente"
	StatusInProgress Status = "en_proceso"
	StatusReady      Status = "finalizado"
	StatusDelivered  Status = "entregado"
	StatusCancelled  Status = "cancelado"
)

// transitions is the exhaustive table of legal status edges. Terminal states
// map to an empty set.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusReady, StatusCancelled},
	StatusReady:      {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge s -> to is legal.
func (s Status) CanTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pendiente"
	PaymentPaid      PaymentStatus = "pagado"
	PaymentCancelled PaymentStatus = "cancelado"
	PaymentRefunded  PaymentStatus = "reembolsado"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

type OrderType string

const (
	TypeDelivery OrderType = "delivery"
	TypeDineIn   OrderType = "dine_in"
	TypeTakeout  OrderType = "takeout"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeDelivery, TypeDineIn, TypeTakeout:
		return true
	}
	return false
}

type Order struct {
	ID                    int64
	ExternalID            string // idempotency key, empty when absent
	RestaurantID          int64
	CustomerName          string
	CustomerPhone         string
	CustomerAddress       string
	Status                Status
	PaymentStatus         PaymentStatus
	OrderType             OrderType
	TableNumber           *int
	WaiterID              *int64
	AssignedRiderID       *int64
	TotalAmount           float64
	PaymentMethod         string
	ScheduledDeliveryTime *time.Time
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   *int64
	ProductName string
	Quantity    int
	UnitPrice   float64
}

// OrderEvent is an append-only audit record. Rows are never mutated or deleted.
type OrderEvent struct {
	ID          int64
	OrderID     int64
	EventType   string
	Description string
	CreatedAt   time.Time
}

// OrderDetail is the full relational projection: header plus owned items.
type OrderDetail struct {
	Order
	Items []OrderItem
}
