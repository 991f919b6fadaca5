package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
)

const (
	couponColumns = `id, name, code, type, discount_value, minimum_cart_value, start_date, expiry_date, is_active, owner_id, created_at, updated_at`

	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateCouponSQL = `UPDATE coupons
		SET name = $2, code = $3, type = $4, discount_value = $5, minimum_cart_value = $6,
			start_date = $7, expiry_date = $8, is_active = $9, updated_at = $10
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	countCouponsSQL = `SELECT count(*) FROM coupons`

	validCouponsWhere = `WHERE is_active AND start_date < $1 AND expiry_date > $1 AND minimum_cart_value <= $2`

	listValidCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ` + validCouponsWhere + `
		ORDER BY minimum_cart_value, code
		LIMIT $3 OFFSET $4`

	countValidCouponsSQL = `SELECT count(*) FROM coupons ` + validCouponsWhere

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ((UPPER(code))) DO UPDATE
		SET name = EXCLUDED.name, type = EXCLUDED.type, discount_value = EXCLUDED.discount_value,
			minimum_cart_value = EXCLUDED.minimum_cart_value, start_date = EXCLUDED.start_date,
			expiry_date = EXCLUDED.expiry_date, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create inserts c. A taken code yields *coupon.DuplicateCodeError.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Name, c.Code, string(c.Type), c.DiscountValue, c.MinimumCartValue,
		c.StartDate, c.ExpiryDate, c.IsActive, c.OwnerID, c.CreatedAt, c.UpdatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return &coupon.DuplicateCodeError{Code: c.Code}
	}
	if err != nil {
		return errors.Wrapf(err, "insert coupon %q", c.Code)
	}
	return nil
}

// Upsert inserts the coupons in one batch. A coupon whose code already exists
// overwrites the stored definition and keeps its id and owner.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			c.ID, c.Name, c.Code, string(c.Type), c.DiscountValue, c.MinimumCartValue,
			c.StartDate, c.ExpiryDate, c.IsActive, c.OwnerID, c.CreatedAt, c.UpdatedAt,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "upsert %d coupons", len(coupons))
	}
	return nil
}

// Update overwrites every mutable field of c.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Name, c.Code, string(c.Type), c.DiscountValue, c.MinimumCartValue,
		c.StartDate, c.ExpiryDate, c.IsActive, c.UpdatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return &coupon.DuplicateCodeError{Code: c.Code}
	}
	if err != nil {
		return errors.Wrapf(err, "update coupon %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes the coupon. Carts holding it are detached by the foreign
// key; orders referencing it block the delete.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if pgCode(err) == codeForeignKeyViolation {
		return coupon.ErrInUse
	}
	if err != nil {
		return errors.Wrapf(err, "delete coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// GetByID returns a coupon by id.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByIDSQL, id)
}

// FindByCode returns the coupon whose code matches case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByCodeSQL, coupon.NormalizeCode(code))
}

func (r *CouponRepository) getOne(ctx context.Context, sql string, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %q", arg)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get coupon %q", arg)
	}
	return &c, nil
}

// List returns one page of coupons, newest first, and the total count.
func (r *CouponRepository) List(ctx context.Context, p coupon.Page) ([]coupon.Coupon, int, error) {
	total, err := count(ctx, r.pool, countCouponsSQL)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count coupons")
	}
	rows, err := r.pool.Query(ctx, listCouponsSQL, limit(p.Limit), p.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list coupons")
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan coupons")
	}
	return coupons, total, nil
}

// ListValid returns active coupons inside their window at now whose minimum
// cart value does not exceed maxMinimum, cheapest minimum first.
func (r *CouponRepository) ListValid(ctx context.Context, now time.Time, maxMinimum decimal.Decimal, p coupon.Page) ([]coupon.Coupon, int, error) {
	total, err := count(ctx, r.pool, countValidCouponsSQL, now, maxMinimum)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count valid coupons")
	}
	rows, err := r.pool.Query(ctx, listValidCouponsSQL, now, maxMinimum, limit(p.Limit), p.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list valid coupons")
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan coupons")
	}
	return coupons, total, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c   coupon.Coupon
		typ string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Code, &typ, &c.DiscountValue, &c.MinimumCartValue,
		&c.StartDate, &c.ExpiryDate, &c.IsActive, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Type = coupon.Type(typ)
	return c, err
}
