package core

const (
	// WaitTime bounds a single request's store work, in seconds.
	WaitTime = 10

	// MinTotalAmount is the positive sentinel used when automation input
	// carries no usable total for a delivery order.
	MinTotalAmount = 0.01

	// SentinelContact marks an unknown customer channel. The webhook chat-id
	// derivation skips values equal to it.
	SentinelContact = "desconocido"

	DefaultStatus        = "pendiente"
	DefaultPaymentStatus = "pendiente"
)

type OrderParams struct {
	Port int
}
