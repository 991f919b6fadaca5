package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-commerce/internal/domain/cart"
)

const (
	provisionCartSQL = `INSERT INTO carts (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`

	getCartSQL = `SELECT coupon_id FROM carts WHERE owner_id = $1`

	getCartItemsSQL = `SELECT product_id, quantity FROM cart_items WHERE owner_id = $1 ORDER BY position`

	upsertCartSQL = `INSERT INTO carts (owner_id, coupon_id, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE SET coupon_id = EXCLUDED.coupon_id, updated_at = EXCLUDED.updated_at`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE owner_id = $1`

	insertCartItemsSQL = `INSERT INTO cart_items (owner_id, product_id, quantity, position)
		SELECT $1, t.product_id, t.quantity, t.ord - 1
		FROM unnest($2::text[], $3::int[]) WITH ORDINALITY AS t(product_id, quantity, ord)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the owner's cart, creating an empty one on first access.
func (r *CartRepository) Get(ctx context.Context, ownerID string) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, provisionCartSQL, ownerID); err != nil {
		return nil, errors.Wrapf(err, "provision cart %q", ownerID)
	}

	var couponID *string
	if err := r.pool.QueryRow(ctx, getCartSQL, ownerID).Scan(&couponID); err != nil {
		return nil, errors.Wrapf(err, "get cart %q", ownerID)
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q items", ownerID)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.Quantity)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan cart %q items", ownerID)
	}

	return &cart.Cart{OwnerID: ownerID, Items: items, CouponID: deref(couponID)}, nil
}

// Save replaces the items and coupon of c in one transaction.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	ids := make([]string, len(c.Items))
	quantities := make([]int32, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
		quantities[i] = int32(it.Quantity)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertCartSQL, c.OwnerID, nullable(c.CouponID)); err != nil {
			return errors.Wrap(err, "upsert cart")
		}
		if _, err := tx.Exec(ctx, deleteCartItemsSQL, c.OwnerID); err != nil {
			return errors.Wrap(err, "delete cart items")
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, insertCartItemsSQL, c.OwnerID, ids, quantities); err != nil {
			return errors.Wrap(err, "insert cart items")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save cart %q", c.OwnerID)
	}
	return nil
}
