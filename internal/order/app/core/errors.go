package core

import "errors"

var (
	ErrHelp = errors.New("")

	ErrValidation            = errors.New("invalid order input")
	ErrTenantUnresolved      = errors.New("tenant could not be resolved")
	ErrMissingIdempotencyKey = errors.New("external_id is required for delivery orders")
	ErrDuplicateOrder        = errors.New("order with this external_id already ingested")
	ErrNotFound              = errors.New("order not found")
	ErrForbidden             = errors.New("caller does not own this order")
	ErrInvalidPaymentStatus  = errors.New("unknown payment status")
	ErrOrderLocked           = errors.New("order items can no longer be modified")
	ErrIllegalTransition     = errors.New("illegal status transition")
	ErrVersionConflict       = errors.New("order was modified concurrently")
	ErrStore                 = errors.New("store failure")

	ErrUnauthorized = errors.New("missing or invalid bearer token")
)
