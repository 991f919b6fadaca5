package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-commerce/internal/domain/address"
)

const (
	addressColumns = `id, owner_id, address_line_1, address_line_2, city, state, country, pincode, created_at, updated_at`

	insertAddressSQL = `INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getAddressSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND owner_id = $2`

	listAddressesSQL = `SELECT ` + addressColumns + `
		FROM addresses
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	countAddressesSQL = `SELECT count(*) FROM addresses WHERE owner_id = $1`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND owner_id = $2`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	_, err := r.pool.Exec(ctx, insertAddressSQL,
		a.ID, a.OwnerID, a.AddressLine1, a.AddressLine2, a.City, a.State, a.Country, a.Pincode,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert address %q", a.ID)
	}
	return nil
}

func (r *AddressRepository) Get(ctx context.Context, ownerID, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	return &a, nil
}

func (r *AddressRepository) List(ctx context.Context, ownerID string, p address.Page) ([]address.Address, int, error) {
	total, err := count(ctx, r.pool, countAddressesSQL, ownerID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count addresses")
	}
	rows, err := r.pool.Query(ctx, listAddressesSQL, ownerID, limit(p.Limit), p.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list addresses")
	}
	addresses, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan addresses")
	}
	return addresses, total, nil
}

func (r *AddressRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, id, ownerID)
	if pgCode(err) == codeForeignKeyViolation {
		return address.ErrInUse
	}
	if err != nil {
		return errors.Wrapf(err, "delete address %q", id)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.Country, &a.Pincode,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
