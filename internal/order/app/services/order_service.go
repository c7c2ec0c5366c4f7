package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"comandero/internal/order/app/core"
	"comandero/internal/order/domain/dto"
	"comandero/internal/order/domain/models"
	"comandero/internal/xpkg/logger"
)

type OrderService struct {
	orderRepo  core.IOrderRepo
	tenantRepo core.ITenantRepo
	feed       core.IChangeFeed
	notifier   core.IReadyNotifier
	mylog      logger.Logger
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	tenantRepo core.ITenantRepo,
	feed core.IChangeFeed,
	notifier core.IReadyNotifier,
	mylog logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		tenantRepo: tenantRepo,
		feed:       feed,
		notifier:   notifier,
		mylog:      mylog,
	}
}

// Create validates and ingests a new order: header, items and the "created"
// audit event are written in one transaction, then an insert notification is
// published on the change feed.
func (os *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (models.Order, error) {
	mylog := os.mylog.Action("create_order")

	orderType, err := normalizeOrderType(req.OrderType)
	if err != nil {
		return models.Order{}, err
	}

	if err := validateCreate(req); err != nil {
		return models.Order{}, err
	}

	// Delivery orders originate from the upstream automation and must carry
	// the idempotency key; dine-in/takeout are created interactively.
	if orderType == models.TypeDelivery && req.ExternalID == "" {
		return models.Order{}, core.ErrMissingIdempotencyKey
	}

	total := req.TotalAmount
	if total <= 0 && orderType == models.TypeDelivery {
		total = core.MinTotalAmount
	}

	tenantID, err := os.resolveTenant(ctx, req)
	if err != nil {
		return models.Order{}, err
	}

	if req.ExternalID != "" {
		if _, err := os.orderRepo.GetByExternalID(ctx, req.ExternalID); err == nil {
			mylog.Action("duplicate_detected").Info("Order already ingested", "external_id", req.ExternalID)
			return models.Order{}, core.ErrDuplicateOrder
		} else if !errors.Is(err, core.ErrNotFound) {
			return models.Order{}, fmt.Errorf("lookup external_id: %w", err)
		}
	}

	if itemSum := sumItems(req.Items); math.Abs(itemSum-total) > core.MinTotalAmount {
		// Declared totals are trusted as ingested; divergence is only logged.
		mylog.Action("total_divergence").Warn("Declared total differs from item sum",
			"declared", total, "item_sum", itemSum)
	}

	order := models.Order{
		ExternalID:            req.ExternalID,
		RestaurantID:          tenantID,
		CustomerName:          req.CustomerName,
		CustomerPhone:         req.CustomerPhone,
		CustomerAddress:       req.CustomerAddress,
		Status:                models.StatusPending,
		PaymentStatus:         models.PaymentPending,
		OrderType:             orderType,
		TableNumber:           req.TableNumber,
		WaiterID:              req.WaiterID,
		TotalAmount:           total,
		PaymentMethod:         req.PaymentMethod,
		ScheduledDeliveryTime: req.ScheduledDeliveryTime,
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	created, err := os.orderRepo.Create(ctx, order, items)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateOrder) {
			return models.Order{}, core.ErrDuplicateOrder
		}
		mylog.Action("create_failed").Error("Failed to store order", err)
		return models.Order{}, fmt.Errorf("store order: %w", err)
	}

	if err := os.feed.PublishInsert(ctx, created); err != nil {
		mylog.Action("feed_publish_failed").Error("Failed to publish insert event", err, "order_id", created.ID)
	}

	mylog.Action("create_completed").Info("Order created",
		"order_id", created.ID, "restaurant_id", created.RestaurantID, "items", len(items))
	return created, nil
}

// Transition applies a partial update of status, payment status and rider
// assignment. Setting status=entregado forces payment_status=pagado in the
// same write, overriding any payment status also supplied. Orders outside the
// caller's scope read as absent.
func (os *OrderService) Transition(ctx context.Context, id int64, req dto.TransitionRequest, claims core.Claims) (models.Order, error) {
	if _, err := os.getVisible(ctx, id, claims); err != nil {
		return models.Order{}, err
	}
	return os.applyTransition(ctx, id, req)
}

func (os *OrderService) applyTransition(ctx context.Context, id int64, req dto.TransitionRequest) (models.Order, error) {
	mylog := os.mylog.Action("transition_order").With("order_id", id)

	patch, err := buildPatch(req)
	if err != nil {
		return models.Order{}, err
	}

	result, err := os.orderRepo.ApplyTransition(ctx, id, patch)
	if err != nil {
		return models.Order{}, err
	}

	if len(result.Changed) > 0 {
		if err := os.feed.PublishUpdate(ctx, id, result.Changed, result.Order.Version); err != nil {
			mylog.Action("feed_publish_failed").Error("Failed to publish update event", err)
		}
	}

	if result.BecameReady {
		go os.notifyReady(id)
	}

	mylog.Action("transition_completed").Info("Order updated", "version", result.Order.Version)
	return result.Order, nil
}

// ReplaceItems swaps the full item set and the customer fields. Wait staff may
// only touch orders they own and only while the order is still open.
func (os *OrderService) ReplaceItems(ctx context.Context, id int64, req dto.ReplaceItemsRequest, claims core.Claims) (models.Order, error) {
	mylog := os.mylog.Action("replace_items").With("order_id", id)

	if req.CustomerName == "" || req.CustomerPhone == "" {
		return models.Order{}, fmt.Errorf("%w: customer_name and customer_phone are required", core.ErrValidation)
	}
	if len(req.Items) == 0 {
		return models.Order{}, fmt.Errorf("%w: items must not be empty", core.ErrValidation)
	}
	for i, it := range req.Items {
		if err := validateItem(i, it); err != nil {
			return models.Order{}, err
		}
	}

	current, err := os.getVisible(ctx, id, claims)
	if err != nil {
		return models.Order{}, err
	}
	if claims.Role == core.RoleWaiter {
		if current.WaiterID == nil || *current.WaiterID != claims.ActorID {
			return models.Order{}, core.ErrForbidden
		}
	}
	if current.Status != models.StatusPending && current.Status != models.StatusInProgress {
		return models.Order{}, core.ErrOrderLocked
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	header := core.HeaderPatch{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		TableNumber:     req.TableNumber,
	}

	updated, err := os.orderRepo.ReplaceItems(ctx, id, header, items)
	if err != nil {
		return models.Order{}, err
	}

	changed := map[string]any{
		"customer_name":    updated.CustomerName,
		"customer_phone":   updated.CustomerPhone,
		"customer_address": updated.CustomerAddress,
		"version":          updated.Version,
		"updated_at":       updated.UpdatedAt,
	}
	if err := os.feed.PublishUpdate(ctx, id, changed, updated.Version); err != nil {
		mylog.Action("feed_publish_failed").Error("Failed to publish update event", err)
	}

	mylog.Action("replace_completed").Info("Items replaced", "items", len(items))
	return updated, nil
}

func (os *OrderService) Get(ctx context.Context, id int64, claims core.Claims) (models.Order, error) {
	return os.getVisible(ctx, id, claims)
}

func (os *OrderService) GetDetail(ctx context.Context, id int64, claims core.Claims) (models.OrderDetail, error) {
	detail, err := os.orderRepo.GetDetail(ctx, id)
	if err != nil {
		return models.OrderDetail{}, err
	}
	if !visibleTo(detail.Order, claims) {
		return models.OrderDetail{}, core.ErrNotFound
	}
	return detail, nil
}

func (os *OrderService) ListEvents(ctx context.Context, orderID int64, claims core.Claims) ([]models.OrderEvent, error) {
	if _, err := os.getVisible(ctx, orderID, claims); err != nil {
		return nil, err
	}
	return os.orderRepo.ListEvents(ctx, orderID)
}

// getVisible loads an order and hides rows outside the caller's scope behind
// ErrNotFound, so a foreign caller cannot even confirm an id exists.
func (os *OrderService) getVisible(ctx context.Context, id int64, claims core.Claims) (models.Order, error) {
	order, err := os.orderRepo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !visibleTo(order, claims) {
		return models.Order{}, core.ErrNotFound
	}
	return order, nil
}

// visibleTo is the per-order read scope: same tenant for every role, and for
// riders additionally their own assignment.
func visibleTo(order models.Order, claims core.Claims) bool {
	if order.RestaurantID != claims.TenantID {
		return false
	}
	if claims.Role == core.RoleRider {
		return order.AssignedRiderID != nil && *order.AssignedRiderID == claims.ActorID
	}
	return true
}

// List returns the role-scoped snapshot for an authenticated surface, ordered
// newest first.
func (os *OrderService) List(ctx context.Context, claims core.Claims, status string) ([]models.Order, error) {
	filter := core.ListFilter{TenantID: claims.TenantID}
	if status != "" {
		s := models.Status(status)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", core.ErrValidation, status)
		}
		filter.Status = &s
	}
	if claims.Role == core.RoleRider {
		rider := claims.ActorID
		filter.RiderID = &rider
		filter.Types = []models.OrderType{models.TypeDelivery}
	}
	return os.orderRepo.List(ctx, filter)
}

// KitchenTickets is the unauthenticated kitchen snapshot: pending dine-in and
// takeout orders for one tenant.
func (os *OrderService) KitchenTickets(ctx context.Context, tenantID int64) ([]models.OrderDetail, error) {
	return os.orderRepo.ListKitchenTickets(ctx, tenantID)
}

// KitchenMarkReady is the kitchen surface's only legal mutation. The lifecycle
// table has no pendiente->finalizado edge, so a pending ticket is advanced
// through en_proceso first; both hops append their own audit event.
func (os *OrderService) KitchenMarkReady(ctx context.Context, id int64) (models.Order, error) {
	current, err := os.orderRepo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}

	if current.Status == models.StatusPending {
		inProgress := string(models.StatusInProgress)
		if _, err := os.applyTransition(ctx, id, dto.TransitionRequest{Status: &inProgress}); err != nil {
			return models.Order{}, err
		}
	}

	ready := string(models.StatusReady)
	return os.applyTransition(ctx, id, dto.TransitionRequest{Status: &ready})
}

func (os *OrderService) notifyReady(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), core.WaitTime*time.Second)
	defer cancel()

	detail, err := os.orderRepo.GetDetail(ctx, id)
	if err != nil {
		os.mylog.Action("ready_notify_skipped").Error("Failed to load order for webhook", err, "order_id", id)
		return
	}
	os.notifier.NotifyReady(detail)
}

// resolveTenant applies the resolution priority chain: waiter, first item's
// product, then the explicit restaurant id.
func (os *OrderService) resolveTenant(ctx context.Context, req dto.CreateOrderRequest) (int64, error) {
	if req.WaiterID != nil {
		tenantID, err := os.tenantRepo.TenantOfWaiter(ctx, *req.WaiterID)
		if err == nil {
			return tenantID, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return 0, fmt.Errorf("resolve waiter tenant: %w", err)
		}
	}

	// Only the first item's product participates in resolution; later items
	// never override it.
	if len(req.Items) > 0 && req.Items[0].ProductID != nil {
		tenantID, err := os.tenantRepo.TenantOfProduct(ctx, *req.Items[0].ProductID)
		if err == nil {
			return tenantID, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return 0, fmt.Errorf("resolve product tenant: %w", err)
		}
	}

	if req.RestaurantID != nil {
		active, err := os.tenantRepo.TenantActive(ctx, *req.RestaurantID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return 0, fmt.Errorf("check tenant: %w", err)
		}
		if err == nil && active {
			return *req.RestaurantID, nil
		}
	}

	return 0, core.ErrTenantUnresolved
}

func buildPatch(req dto.TransitionRequest) (core.TransitionPatch, error) {
	patch := core.TransitionPatch{ExpectedVersion: req.Version}

	if req.Status != nil {
		s := models.Status(*req.Status)
		if !s.Valid() {
			return core.TransitionPatch{}, fmt.Errorf("%w: unknown status %q", core.ErrValidation, *req.Status)
		}
		patch.Status = &s
	}

	if req.PaymentStatus != nil {
		p := models.PaymentStatus(*req.PaymentStatus)
		if !p.Valid() {
			return core.TransitionPatch{}, core.ErrInvalidPaymentStatus
		}
		patch.PaymentStatus = &p
	}

	// Delivered always pays: any payment status supplied alongside is ignored.
	if patch.Status != nil && *patch.Status == models.StatusDelivered {
		paid := models.PaymentPaid
		patch.PaymentStatus = &paid
	}

	if req.AssignedRiderID != nil {
		trimmed := strings.TrimSpace(*req.AssignedRiderID)
		if trimmed == "" {
			patch.ClearRider = true
		} else {
			riderID, err := strconv.ParseInt(trimmed, 10, 64)
			if err != nil {
				return core.TransitionPatch{}, fmt.Errorf("%w: assigned_rider_id must be numeric", core.ErrValidation)
			}
			patch.AssignedRiderID = &riderID
		}
	}

	return patch, nil
}

func normalizeOrderType(raw string) (models.OrderType, error) {
	if raw == "" {
		return models.TypeDelivery, nil
	}
	t := models.OrderType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown order_type %q", core.ErrValidation, raw)
	}
	return t, nil
}

func validateCreate(req dto.CreateOrderRequest) error {
	if req.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", core.ErrValidation)
	}
	if req.CustomerPhone == "" {
		return fmt.Errorf("%w: customer_phone is required", core.ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", core.ErrValidation)
	}
	if req.TotalAmount < 0 {
		return fmt.Errorf("%w: total_amount must not be negative", core.ErrValidation)
	}
	for i, it := range req.Items {
		if err := validateItem(i, it); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(i int, it dto.Item) error {
	if it.Name == "" {
		return fmt.Errorf("%w: item %d: name is required", core.ErrValidation, i+1)
	}
	if it.Quantity < 1 {
		return fmt.Errorf("%w: item %d: quantity must be at least 1", core.ErrValidation, i+1)
	}
	if it.UnitPrice < 0 {
		return fmt.Errorf("%w: item %d: unit_price must not be negative", core.ErrValidation, i+1)
	}
	return nil
}

func sumItems(items []dto.Item) float64 {
	total := 0.0
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}
