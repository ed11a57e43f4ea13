package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSKUNotFound is returned by admin reads/adjustments on an unknown SKU.
var ErrSKUNotFound = errors.New("sku not found")

// OutOfStockError reports the first line item whose requested quantity
// exceeded what was on hand. Name is filled by callers that carry the
// display snapshot; the ledger itself only knows SKUs.
type OutOfStockError struct {
	SKU       string
	Name      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("out of stock: %s (sku=%s requested=%d available=%d)", e.Name, e.SKU, e.Requested, e.Available)
	}
	return fmt.Sprintf("out of stock: sku=%s requested=%d available=%d", e.SKU, e.Requested, e.Available)
}

// Queryer is satisfied by *pgxpool.Pool and pgx.Tx, so ledger mutations can
// join a caller-owned transaction.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns the quantity-on-hand counter per SKU. Nothing else writes the
// stock table.
type Ledger struct{ DB *pgxpool.Pool }

// TryDecrement atomically subtracts the requested quantities, all or
// nothing. Each item's check-and-subtract is one conditional UPDATE; q is
// the caller-owned transaction, which must roll back on error to keep the
// batch all-or-nothing.
func (l *Ledger) TryDecrement(ctx context.Context, q Queryer, items []ItemQty) error {
	for _, it := range items {
		ct, err := q.Exec(ctx,
			`UPDATE stock SET quantity = quantity - $2 WHERE sku_id = $1 AND quantity >= $2`,
			it.SKU, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 1 {
			continue
		}
		var available int
		err = q.QueryRow(ctx, `SELECT quantity FROM stock WHERE sku_id = $1`, it.SKU).Scan(&available)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return &OutOfStockError{SKU: it.SKU, Requested: it.Qty, Available: available}
	}
	return nil
}

// Increment unconditionally adds the quantities back inside a caller-owned
// transaction. Compensation only; seeding new stock goes through
// AdjustQuantity.
func (l *Ledger) Increment(ctx context.Context, q Queryer, items []ItemQty) error {
	for _, it := range items {
		if _, err := q.Exec(ctx,
			`UPDATE stock SET quantity = quantity + $2 WHERE sku_id = $1`,
			it.SKU, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// AdjustQuantity applies an admin-supplied signed delta, clamping the result
// at zero. Returns the new quantity.
func (l *Ledger) AdjustQuantity(ctx context.Context, sku string, delta int) (int, error) {
	var q int
	err := l.DB.QueryRow(ctx,
		`UPDATE stock SET quantity = GREATEST(quantity + $2, 0) WHERE sku_id = $1 RETURNING quantity`,
		sku, delta).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSKUNotFound
	}
	return q, err
}

// Quantity reads one SKU's on-hand count.
func (l *Ledger) Quantity(ctx context.Context, sku string) (int, error) {
	var q int
	err := l.DB.QueryRow(ctx, `SELECT quantity FROM stock WHERE sku_id = $1`, sku).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSKUNotFound
	}
	return q, err
}

// Quantities reads the on-hand counts for a set of SKUs. SKUs with no stock
// row are absent from the result.
func (l *Ledger) Quantities(ctx context.Context, skus []string) (map[string]int, error) {
	rows, err := l.DB.Query(ctx, `SELECT sku_id, quantity FROM stock WHERE sku_id = ANY($1)`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(skus))
	for rows.Next() {
		var sku string
		var q int
		if err := rows.Scan(&sku, &q); err != nil {
			return nil, err
		}
		out[sku] = q
	}
	return out, rows.Err()
}
