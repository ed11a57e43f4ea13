package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront-labs/order-core/internal/stock"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderLocked   = errors.New("order is in a terminal status")
)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *stock.Ledger
}

const orderColumns = `id, buyer_id, items, total_cents, shipping_address, status, payment_settled, settled_at, created_at`

// CreatePlaced persists an immediate-settlement order: the stock decrement
// and the insert commit together or not at all. On OutOfStock no record is
// created.
func (r *Repo) CreatePlaced(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.Ledger.TryDecrement(ctx, tx, o.StockItems()); err != nil {
		return err
	}

	now := time.Now().UTC()
	o.ID = uuid.NewString()
	o.Status = StatusProcessing
	o.PaymentSettled = true
	o.SettledAt = &now
	o.CreatedAt = now
	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreatePending persists a deferred-settlement order. No stock is committed
// here; that happens at settlement.
func (r *Repo) CreatePending(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	o.ID = uuid.NewString()
	o.Status = StatusProcessing
	o.PaymentSettled = false
	o.SettledAt = nil
	o.CreatedAt = now
	return insertOrder(ctx, r.DB, o)
}

func insertOrder(ctx context.Context, q stock.Queryer, o *Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.BuyerID, o.Items, o.TotalCents, o.ShippingAddress,
		string(o.Status), o.PaymentSettled, o.SettledAt, o.CreatedAt,
	)
	return err
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Settle commits a deferred order's stock decrement and marks payment
// settled, in one transaction. Returns already=true (and does nothing) when
// the order was settled before, so callback replays are no-ops.
func (r *Repo) Settle(ctx context.Context, orderID string) (already bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return false, err
	}
	if o.PaymentSettled {
		return true, nil
	}
	// A canceled order is terminal: committing the decrement now would leave
	// stock that no later transition can restore.
	if o.Status.Terminal() {
		return false, ErrOrderLocked
	}

	if err := r.Ledger.TryDecrement(ctx, tx, o.StockItems()); err != nil {
		return false, NameOutOfStock(err, o.Items)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET payment_settled = TRUE, settled_at = $2 WHERE id = $1`,
		orderID, time.Now().UTC()); err != nil {
		return false, err
	}
	return false, tx.Commit(ctx)
}

// Delete removes the whole record; used when a deferred payment is rejected.
func (r *Repo) Delete(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ChangeStatus runs the lifecycle state machine. The terminal check happens
// under the row lock, before any mutation, so a locked order never causes a
// ledger write.
func (r *Repo) ChangeStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	wasSettled := o.PaymentSettled
	err = applyTransition(o, next, time.Now().UTC(), func(items []stock.ItemQty) error {
		return r.Ledger.Increment(ctx, tx, items)
	})
	if err != nil {
		return nil, err
	}

	if o.PaymentSettled && !wasSettled {
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET payment_settled = TRUE, settled_at = $2 WHERE id = $1`,
			orderID, *o.SettledAt); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(next)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// lockOrder reads an order FOR UPDATE so concurrent settles/transitions on
// the same order serialize.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.BuyerID, &o.Items, &o.TotalCents, &o.ShippingAddress,
		&status, &o.PaymentSettled, &o.SettledAt, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

// NameOutOfStock copies the display name from the order snapshot onto an
// OutOfStockError so buyer-facing messages can name the item.
func NameOutOfStock(err error, items []LineItem) error {
	var oos *stock.OutOfStockError
	if !errors.As(err, &oos) {
		return err
	}
	for _, it := range items {
		if it.SKU == oos.SKU {
			oos.Name = it.Name
			break
		}
	}
	return err
}
