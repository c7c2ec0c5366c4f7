package reconciler

import (
	"context"
	"sync"
	"time"

	"comandero/internal/order/app/core"
	"comandero/internal/order/domain/dto"
	"comandero/internal/xpkg/logger"
	pkgmodels "comandero/pkg/models"
)

// Filter scopes a panel to its tenant and role, optionally narrowed by
// status. The fanout feed carries every tenant's events, so the tenant check
// happens here on the client as well as on the snapshot endpoint. A zero
// TenantID admits every tenant.
type Filter struct {
	TenantID int64
	Role     string
	ActorID  int64
	Status   string
}

func (f Filter) Matches(view dto.OrderView) bool {
	if f.TenantID != 0 && view.RestaurantID != f.TenantID {
		return false
	}
	if f.Role == core.RoleRider {
		if view.AssignedRiderID == nil || *view.AssignedRiderID != f.ActorID {
			return false
		}
	}
	return f.Status == "" || view.Status == f.Status
}

// admitsColumns rejects events that the changed-column payload alone already
// rules out, before paying for the projection fetch. Absent columns admit;
// Matches decides on the fetched view.
func (f Filter) admitsColumns(columns map[string]any) bool {
	if f.TenantID == 0 {
		return true
	}
	raw, ok := columns["restaurant_id"]
	if !ok {
		return true
	}
	tenant, ok := asInt64(raw)
	if !ok {
		return true
	}
	return tenant == f.TenantID
}

// Fetcher loads the full projection for one order; the push feed carries only
// changed columns, so inserts are completed through it before merging.
type Fetcher interface {
	Order(ctx context.Context, id int64) (dto.OrderView, error)
}

// Reconciler merges one snapshot fetch with the live change feed into a
// coherent local list, newest first. Merge rules guard against snapshot/feed
// overlap and never fabricate partial entries.
type Reconciler struct {
	mu      sync.Mutex
	filter  Filter
	orders  []dto.OrderView
	fetcher Fetcher
	mylog   logger.Logger
}

func New(filter Filter, fetcher Fetcher, mylog logger.Logger) *Reconciler {
	return &Reconciler{
		filter:  filter,
		fetcher: fetcher,
		mylog:   mylog,
	}
}

// Seed replaces local state with a snapshot.
func (r *Reconciler) Seed(orders []dto.OrderView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append([]dto.OrderView(nil), orders...)
}

// Apply merges one pushed change event into the local list.
func (r *Reconciler) Apply(ctx context.Context, event pkgmodels.ChangeEvent) {
	switch event.Op {
	case pkgmodels.OpInsert:
		r.applyInsert(ctx, event)
	case pkgmodels.OpUpdate:
		r.applyUpdate(event)
	case pkgmodels.OpDelete:
		r.applyDelete(event)
	}
}

func (r *Reconciler) applyInsert(ctx context.Context, event pkgmodels.ChangeEvent) {
	if !r.filter.admitsColumns(event.Columns) {
		return
	}

	r.mu.Lock()
	present := r.indexOf(event.OrderID) >= 0
	r.mu.Unlock()
	// Snapshot and feed have no mutual ordering guarantee; a row already
	// seeded from the snapshot is ignored here.
	if present {
		return
	}

	view, err := r.fetcher.Order(ctx, event.OrderID)
	if err != nil {
		// Degrade to a stale list until the next refresh.
		r.mylog.Action("insert_fetch_failed").Error("Failed to fetch inserted order", err, "order_id", event.OrderID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(event.OrderID) >= 0 {
		return
	}
	if !r.filter.Matches(view) {
		return
	}
	r.orders = append([]dto.OrderView{view}, r.orders...)
}

func (r *Reconciler) applyUpdate(event pkgmodels.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(event.OrderID)
	if i < 0 {
		// Not locally present: leave state untouched rather than fabricating
		// a partial entry from changed columns alone.
		return
	}

	merged := mergeColumns(r.orders[i], event.Columns)
	if !r.filter.Matches(merged) {
		r.orders = append(r.orders[:i], r.orders[i+1:]...)
		return
	}
	// No reordering on update: the row keeps its position.
	r.orders[i] = merged
}

func (r *Reconciler) applyDelete(event pkgmodels.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(event.OrderID); i >= 0 {
		r.orders = append(r.orders[:i], r.orders[i+1:]...)
	}
}

// Orders returns a copy of the current local list.
func (r *Reconciler) Orders() []dto.OrderView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dto.OrderView(nil), r.orders...)
}

func (r *Reconciler) indexOf(id int64) int {
	for i, o := range r.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// mergeColumns shallow-merges changed columns into the local view. Unknown
// columns are ignored; JSON numbers arrive as float64.
func mergeColumns(view dto.OrderView, columns map[string]any) dto.OrderView {
	for key, raw := range columns {
		switch key {
		case "status":
			if s, ok := raw.(string); ok {
				view.Status = s
			}
		case "payment_status":
			if s, ok := raw.(string); ok {
				view.PaymentStatus = s
			}
		case "order_type":
			if s, ok := raw.(string); ok {
				view.OrderType = s
			}
		case "customer_name":
			if s, ok := raw.(string); ok {
				view.CustomerName = s
			}
		case "customer_phone":
			if s, ok := raw.(string); ok {
				view.CustomerPhone = s
			}
		case "customer_address":
			if s, ok := raw.(string); ok {
				view.CustomerAddress = s
			}
		case "payment_method":
			if s, ok := raw.(string); ok {
				view.PaymentMethod = s
			}
		case "assigned_rider_id":
			if raw == nil {
				view.AssignedRiderID = nil
			} else if n, ok := asInt64(raw); ok {
				view.AssignedRiderID = &n
			}
		case "restaurant_id":
			if n, ok := asInt64(raw); ok {
				view.RestaurantID = n
			}
		case "total_amount":
			if f, ok := raw.(float64); ok {
				view.TotalAmount = f
			}
		case "version":
			if n, ok := asInt64(raw); ok {
				view.Version = n
			}
		case "updated_at":
			switch v := raw.(type) {
			case time.Time:
				view.UpdatedAt = v
			case string:
				if t, err := time.Parse(time.RFC3339, v); err == nil {
					view.UpdatedAt = t
				}
			}
		}
	}
	return view
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}
