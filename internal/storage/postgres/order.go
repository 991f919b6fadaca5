package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-commerce/internal/domain/order"
	"github.com/xenking/kart-commerce/internal/domain/payment"
)

const (
	orderColumns = `id, customer_id, address_id, coupon_id, items, order_price, discounted_order_price,
		payment_provider, payment_id, status, is_payment_done, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByPaymentSQL = `SELECT ` + orderColumns + ` FROM orders WHERE payment_provider = $1 AND payment_id = $2`

	ordersWhere = `WHERE ($1 = '' OR customer_id = $1) AND ($2 = '' OR status = $2)`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders ` + ordersWhere + `
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`

	countOrdersSQL = `SELECT count(*) FROM orders ` + ordersWhere

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	markOrderPaidSQL = `UPDATE orders SET is_payment_done = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_payment_done
		RETURNING ` + orderColumns

	// Quantities are summed per product so that one UPDATE covers the
	// whole order.
	decrementStockSQL = `UPDATE products p
		SET stock = p.stock - t.quantity, updated_at = $3
		FROM (
			SELECT product_id, SUM(quantity)::int AS quantity
			FROM unnest($1::text[], $2::int[]) AS u(product_id, quantity)
			GROUP BY product_id
		) t
		WHERE p.id = t.product_id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The items snapshot is stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.AddressID, nullable(o.CouponID), items,
		o.OrderPrice, o.DiscountedOrderPrice, string(o.PaymentProvider), o.PaymentID,
		string(o.Status), o.IsPaymentDone, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) GetByPayment(ctx context.Context, method payment.Method, paymentID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentSQL, string(method), paymentID)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return &o, nil
}

// List returns one page of orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	total, err := count(ctx, r.pool, countOrdersSQL, f.CustomerID, string(f.Status))
	if err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, f.CustomerID, string(f.Status), limit(f.Limit), f.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}
	return orders, total, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return false, errors.Wrapf(err, "update order %q status", id)
	}
	return tag.RowsAffected() == 1, nil
}

// Fulfill marks the order paid and decrements stock in one transaction.
// Stock is not checked, so it can go negative when the catalog changed
// after checkout.
func (r *OrderRepository) Fulfill(ctx context.Context, id string, at time.Time) (*order.Order, bool, error) {
	var (
		paid  order.Order
		first bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, markOrderPaidSQL, id, at)
		if err != nil {
			return errors.Wrap(err, "mark order paid")
		}
		paid, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "mark order paid")
		}
		first = true

		ids := make([]string, len(paid.Items))
		quantities := make([]int32, len(paid.Items))
		for i, it := range paid.Items {
			ids[i] = it.ProductID
			quantities[i] = int32(it.Quantity)
		}
		if _, err := tx.Exec(ctx, decrementStockSQL, ids, quantities, at); err != nil {
			return errors.Wrap(err, "decrement stock")
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "fulfil order %q", id)
	}
	if !first {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return o, false, nil
	}
	return &paid, true, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                order.Order
		couponID         *string
		items            []byte
		provider, status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.AddressID, &couponID, &items, &o.OrderPrice, &o.DiscountedOrderPrice,
		&provider, &o.PaymentID, &status, &o.IsPaymentDone, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrap(err, "unmarshal order items")
	}
	o.CouponID = deref(couponID)
	o.PaymentProvider = payment.Method(provider)
	o.Status = order.Status(status)
	return o, nil
}
