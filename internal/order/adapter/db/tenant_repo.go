package db

import (
	"context"
	"errors"
	"fmt"

	"comandero/internal/order/app/core"
	"comandero/internal/xpkg/db"

	"github.com/jackc/pgx/v5"
)

// TenantRepo answers the lookups the tenant resolution chain needs: which
// restaurant a waiter or product belongs to, and whether a restaurant is
// active.
type TenantRepo struct {
	db *db.DB
}

func NewTenantRepo(db *db.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (tr *TenantRepo) TenantOfWaiter(ctx context.Context, waiterID int64) (int64, error) {
	var tenantID int64
	err := tr.db.Pool().QueryRow(ctx,
		`SELECT restaurant_id FROM waiters WHERE id = $1`, waiterID,
	).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, core.ErrNotFound
		}
		return 0, fmt.Errorf("%w: waiter lookup: %v", core.ErrStore, err)
	}
	return tenantID, nil
}

func (tr *TenantRepo) TenantOfProduct(ctx context.Context, productID int64) (int64, error) {
	var tenantID int64
	err := tr.db.Pool().QueryRow(ctx,
		`SELECT restaurant_id FROM products WHERE id = $1`, productID,
	).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, core.ErrNotFound
		}
		return 0, fmt.Errorf("%w: product lookup: %v", core.ErrStore, err)
	}
	return tenantID, nil
}

func (tr *TenantRepo) TenantActive(ctx context.Context, tenantID int64) (bool, error) {
	var active bool
	err := tr.db.Pool().QueryRow(ctx,
		`SELECT active FROM restaurants WHERE id = $1`, tenantID,
	).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, core.ErrNotFound
		}
		return false, fmt.Errorf("%w: restaurant lookup: %v", core.ErrStore, err)
	}
	return active, nil
}
