package dto

import (
	"time"

	"comandero/internal/order/domain/models"
)

type Item struct {
	ProductID *int64  `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type CreateOrderRequest struct {
	ExternalID            string     `json:"external_id,omitempty"`
	CustomerName          string     `json:"customer_name"`
	CustomerPhone         string     `json:"customer_phone"`
	CustomerAddress       string     `json:"customer_address,omitempty"`
	Items                 []Item     `json:"items"`
	TotalAmount           float64    `json:"total_amount"`
	PaymentMethod         string     `json:"payment_method,omitempty"`
	OrderType             string     `json:"order_type,omitempty"`
	WaiterID              *int64     `json:"waiter_id,omitempty"`
	TableNumber           *int       `json:"table_number,omitempty"`
	ScheduledDeliveryTime *time.Time `json:"scheduled_delivery_time,omitempty"`
	RestaurantID          *int64     `json:"restaurant_id,omitempty"`
}

// TransitionRequest is a partial update. Nil pointers mean "leave unchanged".
// AssignedRiderID is a string so the empty value can mean "clear assignment".
// Version, when present, is compared against the stored row before applying.
type TransitionRequest struct {
	Status          *string `json:"status,omitempty"`
	PaymentStatus   *string `json:"payment_status,omitempty"`
	AssignedRiderID *string `json:"assigned_rider_id,omitempty"`
	Version         *int64  `json:"version,omitempty"`
}

// ReplaceItemsRequest replaces the customer fields and the full item set.
// Items are never patched individually.
type ReplaceItemsRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address,omitempty"`
	TableNumber     *int   `json:"table_number,omitempty"`
	Items           []Item `json:"items"`
}

type OrderView struct {
	ID                    int64      `json:"id"`
	ExternalID            string     `json:"external_id,omitempty"`
	RestaurantID          int64      `json:"restaurant_id"`
	CustomerName          string     `json:"customer_name"`
	CustomerPhone         string     `json:"customer_phone"`
	CustomerAddress       string     `json:"customer_address,omitempty"`
	Status                string     `json:"status"`
	PaymentStatus         string     `json:"payment_status"`
	OrderType             string     `json:"order_type"`
	TableNumber           *int       `json:"table_number,omitempty"`
	WaiterID              *int64     `json:"waiter_id,omitempty"`
	AssignedRiderID       *int64     `json:"assigned_rider_id,omitempty"`
	TotalAmount           float64    `json:"total_amount"`
	PaymentMethod         string     `json:"payment_method,omitempty"`
	ScheduledDeliveryTime *time.Time `json:"scheduled_delivery_time,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Items                 []Item     `json:"items,omitempty"`
}

type EventView struct {
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func ViewFromOrder(o models.Order) OrderView {
	return OrderView{
		ID:                    o.ID,
		ExternalID:            o.ExternalID,
		RestaurantID:          o.RestaurantID,
		CustomerName:          o.CustomerName,
		CustomerPhone:         o.CustomerPhone,
		CustomerAddress:       o.CustomerAddress,
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		OrderType:             string(o.OrderType),
		TableNumber:           o.TableNumber,
		WaiterID:              o.WaiterID,
		AssignedRiderID:       o.AssignedRiderID,
		TotalAmount:           o.TotalAmount,
		PaymentMethod:         o.PaymentMethod,
		ScheduledDeliveryTime: o.ScheduledDeliveryTime,
		Version:               o.Version,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func ViewFromDetail(d models.OrderDetail) OrderView {
	view := ViewFromOrder(d.Order)
	for _, it := range d.Items {
		view.Items = append(view.Items, Item{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return view
}
