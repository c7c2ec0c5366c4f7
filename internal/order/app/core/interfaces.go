package core

import (
	"context"

	"comandero/internal/order/domain/models"
)

// TransitionPatch is the validated, normalized form of a transition request.
type TransitionPatch struct {
	Status          *models.Status
	PaymentStatus   *models.PaymentStatus
	AssignedRiderID *int64
	ClearRider      bool
	ExpectedVersion *int64
}

// HeaderPatch carries the replaceable customer fields of an order.
type HeaderPatch struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	TableNumber     *int
}

// ListFilter scopes a snapshot read. TenantID is always set; the rest narrow
// the result per role or active display filter.
type ListFilter struct {
	TenantID int64
	Status   *models.Status
	RiderID  *int64
	Types    []models.OrderType
}

// TransitionResult reports what a transition actually changed, for the change
// feed and the webhook trigger.
type TransitionResult struct {
	Order          models.Order
	Changed        map[string]any
	BecameReady    bool
	AppendedEvents []models.OrderEvent
}

type IOrderRepo interface {
	Create(ctx context.Context, order models.Order, items []models.OrderItem) (models.Order, error)
	Get(ctx context.Context, id int64) (models.Order, error)
	GetDetail(ctx context.Context, id int64) (models.OrderDetail, error)
	GetByExternalID(ctx context.Context, externalID string) (models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	ListKitchenTickets(ctx context.Context, tenantID int64) ([]models.OrderDetail, error)
	ListEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error)
	ApplyTransition(ctx context.Context, id int64, patch TransitionPatch) (TransitionResult, error)
	ReplaceItems(ctx context.Context, id int64, header HeaderPatch, items []models.OrderItem) (models.Order, error)
}

type ITenantRepo interface {
	TenantOfWaiter(ctx context.Context, waiterID int64) (int64, error)
	TenantOfProduct(ctx context.Context, productID int64) (int64, error)
	TenantActive(ctx context.Context, tenantID int64) (bool, error)
}

// IChangeFeed publishes row-level mutation notifications. Publish failures are
// logged by callers, never surfaced to API clients.
type IChangeFeed interface {
	PublishInsert(ctx context.Context, order models.Order) error
	PublishUpdate(ctx context.Context, orderID int64, changed map[string]any, version int64) error
	Close() error
}

// IReadyNotifier is the best-effort "order ready" webhook boundary.
type IReadyNotifier interface {
	NotifyReady(detail models.OrderDetail)
}

// Claims are the identity assertions extracted from a bearer token. The token
// itself is issued by the external identity service.
type Claims struct {
	Role     string `json:"role"`
	TenantID int64  `json:"tenant_id"`
	ActorID  int64  `json:"actor_id"`
}

const (
	RoleAdmin  = "admin"
	RoleWaiter = "waiter"
	RoleRider  = "rider"
)

type IIdentity interface {
	Verify(token string) (Claims, error)
}
