package db

import (
	"context"
	"errors"
	"fmt"

	"comandero/internal/order/app/core"
	"comandero/internal/order/domain/models"
	"comandero/internal/xpkg/db"
	"comandero/internal/xpkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const orderColumns = `
	id, COALESCE(external_id, ''), restaurant_id, customer_name, customer_phone,
	COALESCE(customer_address, ''), status, payment_status, order_type,
	table_number, waiter_id, assigned_rider_id, total_amount,
	COALESCE(payment_method, ''), scheduled_delivery_time, version,
	created_at, updated_at`

type OrderRepo struct {
	db    *db.DB
	mylog logger.Logger
}

func NewOrderRepo(db *db.DB, mylog logger.Logger) *OrderRepo {
	return &OrderRepo{db: db, mylog: mylog}
}

// Create inserts the order header, its items and the "created" audit event in
// a single transaction. A unique-key conflict on external_id surfaces as
// ErrDuplicateOrder so racing ingestions collapse to one stored order.
func (or *OrderRepo) Create(ctx context.Context, order models.Order, items []models.OrderItem) (models.Order, error) {
	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: begin: %v", core.ErrStore, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			external_id, restaurant_id, customer_name, customer_phone,
			customer_address, status, payment_status, order_type, table_number,
			waiter_id, total_amount, payment_method, scheduled_delivery_time
		)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13)
		RETURNING id, version, created_at, updated_at`,
		order.ExternalID,
		order.RestaurantID,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerAddress,
		order.Status,
		order.PaymentStatus,
		order.OrderType,
		order.TableNumber,
		order.WaiterID,
		order.TotalAmount,
		order.PaymentMethod,
		order.ScheduledDeliveryTime,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Order{}, core.ErrDuplicateOrder
		}
		return models.Order{}, fmt.Errorf("%w: insert order: %v", core.ErrStore, err)
	}

	for _, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return models.Order{}, fmt.Errorf("%w: insert item: %v", core.ErrStore, err)
		}
	}

	if err := appendEvent(ctx, tx, order.ID, "created",
		fmt.Sprintf("order created with %d items, total %.2f", len(items), order.TotalAmount)); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%w: commit: %v", core.ErrStore, err)
	}
	return order, nil
}

func (or *OrderRepo) Get(ctx context.Context, id int64) (models.Order, error) {
	row := or.db.Pool().QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (or *OrderRepo) GetByExternalID(ctx context.Context, externalID string) (models.Order, error) {
	row := or.db.Pool().QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, externalID)
	return scanOrder(row)
}

func (or *OrderRepo) GetDetail(ctx context.Context, id int64) (models.OrderDetail, error) {
	order, err := or.Get(ctx, id)
	if err != nil {
		return models.OrderDetail{}, err
	}

	items, err := or.listItems(ctx, id)
	if err != nil {
		return models.OrderDetail{}, err
	}
	return models.OrderDetail{Order: order, Items: items}, nil
}

func (or *OrderRepo) List(ctx context.Context, filter core.ListFilter) ([]models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE restaurant_id = $1`
	args := []any{filter.TenantID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.RiderID != nil {
		args = append(args, *filter.RiderID)
		q += fmt.Sprintf(" AND assigned_rider_id = $%d", len(args))
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		q += fmt.Sprintf(" AND order_type = ANY($%d)", len(args))
	}
	q += " ORDER BY created_at DESC"

	rows, err := or.db.Pool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", core.ErrStore, err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListKitchenTickets is the tenant-scoped kitchen snapshot: pending dine-in
// and takeout orders, items included, oldest first so tickets print in FIFO
// order.
func (or *OrderRepo) ListKitchenTickets(ctx context.Context, tenantID int64) ([]models.OrderDetail, error) {
	rows, err := or.db.Pool().Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1
		  AND status = $2
		  AND order_type = ANY($3)
		ORDER BY created_at ASC`,
		tenantID, models.StatusPending, []string{string(models.TypeDineIn), string(models.TypeTakeout)},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list tickets: %v", core.ErrStore, err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	details := make([]models.OrderDetail, 0, len(orders))
	for _, o := range orders {
		items, err := or.listItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, models.OrderDetail{Order: o, Items: items})
	}
	return details, nil
}

func (or *OrderRepo) ListEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	rows, err := or.db.Pool().Query(ctx, `
		SELECT id, order_id, event_type, description, created_at
		FROM order_events WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var events []models.OrderEvent
	for rows.Next() {
		var ev models.OrderEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.EventType, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", core.ErrStore, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ApplyTransition locks the row, validates the requested edges against the
// transition table and applies the patch conditionally on the version token.
// Each applied field change appends one audit event inside the same
// transaction.
func (or *OrderRepo) ApplyTransition(ctx context.Context, id int64, patch core.TransitionPatch) (core.TransitionResult, error) {
	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return core.TransitionResult{}, fmt.Errorf("%w: begin: %v", core.ErrStore, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	current, err := scanOrder(row)
	if err != nil {
		return core.TransitionResult{}, err
	}

	outcome, err := core.ApplyPatch(current, patch)
	if err != nil {
		return core.TransitionResult{}, err
	}

	updated := outcome.Order
	if len(outcome.Changed) == 0 {
		return core.TransitionResult{Order: current, Changed: outcome.Changed}, nil
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, assigned_rider_id = $4,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $5
		RETURNING version, updated_at`,
		id, updated.Status, updated.PaymentStatus, updated.AssignedRiderID, current.Version,
	).Scan(&updated.Version, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.TransitionResult{}, core.ErrVersionConflict
		}
		return core.TransitionResult{}, fmt.Errorf("%w: update order: %v", core.ErrStore, err)
	}
	outcome.Changed["version"] = updated.Version
	outcome.Changed["updated_at"] = updated.UpdatedAt

	for _, ev := range outcome.Events {
		if err := appendEvent(ctx, tx, id, ev.EventType, ev.Description); err != nil {
			return core.TransitionResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return core.TransitionResult{}, fmt.Errorf("%w: commit: %v", core.ErrStore, err)
	}

	return core.TransitionResult{
		Order:          updated,
		Changed:        outcome.Changed,
		BecameReady:    outcome.BecameReady,
		AppendedEvents: outcome.Events,
	}, nil
}

// ReplaceItems deletes the current item set and inserts the replacement
// atomically; items are owned by their order and never patched one by one.
func (or *OrderRepo) ReplaceItems(ctx context.Context, id int64, header core.HeaderPatch, items []models.OrderItem) (models.Order, error) {
	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: begin: %v", core.ErrStore, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	current, err := scanOrder(row)
	if err != nil {
		return models.Order{}, err
	}
	if current.Status != models.StatusPending && current.Status != models.StatusInProgress {
		return models.Order{}, core.ErrOrderLocked
	}

	updated := current
	updated.CustomerName = header.CustomerName
	updated.CustomerPhone = header.CustomerPhone
	updated.CustomerAddress = header.CustomerAddress
	updated.TableNumber = header.TableNumber

	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET customer_name = $2, customer_phone = $3, customer_address = $4,
		    table_number = $5, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at`,
		id, updated.CustomerName, updated.CustomerPhone, updated.CustomerAddress, updated.TableNumber,
	).Scan(&updated.Version, &updated.UpdatedAt)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: update header: %v", core.ErrStore, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return models.Order{}, fmt.Errorf("%w: delete items: %v", core.ErrStore, err)
	}
	for _, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			id, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return models.Order{}, fmt.Errorf("%w: insert item: %v", core.ErrStore, err)
		}
	}

	if err := appendEvent(ctx, tx, id, "items_replaced",
		fmt.Sprintf("items replaced, %d items", len(items))); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%w: commit: %v", core.ErrStore, err)
	}
	return updated, nil
}

func (or *OrderRepo) listItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := or.db.Pool().Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: scan item: %v", core.ErrStore, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func appendEvent(ctx context.Context, tx pgx.Tx, orderID int64, eventType, description string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_events (order_id, event_type, description)
		VALUES ($1, $2, $3)`, orderID, eventType, description)
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", core.ErrStore, err)
	}
	return nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.RestaurantID, &o.CustomerName, &o.CustomerPhone,
		&o.CustomerAddress, &o.Status, &o.PaymentStatus, &o.OrderType,
		&o.TableNumber, &o.WaiterID, &o.AssignedRiderID, &o.TotalAmount,
		&o.PaymentMethod, &o.ScheduledDeliveryTime, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, core.ErrNotFound
		}
		return models.Order{}, fmt.Errorf("%w: scan order: %v", core.ErrStore, err)
	}
	return o, nil
}

func scanOrders(rows pgx.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		err := rows.Scan(
			&o.ID, &o.ExternalID, &o.RestaurantID, &o.CustomerName, &o.CustomerPhone,
			&o.CustomerAddress, &o.Status, &o.PaymentStatus, &o.OrderType,
			&o.TableNumber, &o.WaiterID, &o.AssignedRiderID, &o.TotalAmount,
			&o.PaymentMethod, &o.ScheduledDeliveryTime, &o.Version,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan order: %v", core.ErrStore, err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
