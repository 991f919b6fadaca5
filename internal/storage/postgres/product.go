package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

const (
	productColumns = `id, name, description, main_image, price, stock, category_id, owner_id, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category_id = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	countProductsSQL = `SELECT count(*) FROM products WHERE ($1 = '' OR category_id = $1)`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, main_image = $4, price = $5, stock = $6, category_id = $7, updated_at = $8
		WHERE id = $1`

	listCategoriesSQL = `SELECT id, name, owner_id, created_at, updated_at FROM categories ORDER BY name`

	getCategorySQL = `SELECT id, name, owner_id, created_at, updated_at FROM categories WHERE id = $1`

	insertCategorySQL = `INSERT INTO categories (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	upsertCategorySQL = `INSERT INTO categories (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((LOWER(name))) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, main_image = EXCLUDED.main_image,
			price = EXCLUDED.price, stock = EXCLUDED.stock, category_id = EXCLUDED.category_id,
			updated_at = EXCLUDED.updated_at`
)

var (
	_ product.Repository         = (*ProductRepository)(nil)
	_ product.CategoryRepository = (*ProductRepository)(nil)
)

// ProductRepository implements the catalog repositories backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of products, newest first, and the number of matches.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	total, err := count(ctx, r.pool, countProductsSQL, f.CategoryID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}
	rows, err := r.pool.Query(ctx, listProductsSQL, f.CategoryID, limit(f.Limit), f.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan products")
	}
	return products, total, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns the products matching any of ids. Unknown ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// Create inserts p.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.MainImage, p.Price, p.Stock,
		p.CategoryID, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if pgCode(err) == codeForeignKeyViolation {
		return product.ErrCategoryNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "insert product %q", p.ID)
	}
	return nil
}

// Update overwrites the mutable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.MainImage, p.Price, p.Stock, p.CategoryID, p.UpdatedAt,
	)
	if pgCode(err) == codeForeignKeyViolation {
		return product.ErrCategoryNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "update product %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	categories, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, errors.Wrap(err, "scan categories")
	}
	return categories, nil
}

// GetCategory returns a category by id.
func (r *ProductRepository) GetCategory(ctx context.Context, id string) (*product.Category, error) {
	rows, err := r.pool.Query(ctx, getCategorySQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get category %q", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrCategoryNotFound
		}
		return nil, errors.Wrapf(err, "get category %q", id)
	}
	return &c, nil
}

// CreateCategory inserts c. Names are unique regardless of case.
func (r *ProductRepository) CreateCategory(ctx context.Context, c *product.Category) error {
	_, err := r.pool.Exec(ctx, insertCategorySQL, c.ID, c.Name, c.OwnerID, c.CreatedAt, c.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return product.ErrDuplicateCategory
	}
	if err != nil {
		return errors.Wrapf(err, "insert category %q", c.Name)
	}
	return nil
}

// UpsertCategory stores c unless a category with the same name exists, and
// sets c.ID to the id of the stored row.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c *product.Category) error {
	if err := r.pool.QueryRow(ctx, upsertCategorySQL,
		c.ID, c.Name, c.OwnerID, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID); err != nil {
		return errors.Wrapf(err, "upsert category %q", c.Name)
	}
	return nil
}

// UpsertProduct inserts p or overwrites the product with the same id.
func (r *ProductRepository) UpsertProduct(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.MainImage, p.Price, p.Stock,
		p.CategoryID, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.MainImage, &p.Price, &p.Stock,
		&p.CategoryID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanCategory(row pgx.CollectableRow) (product.Category, error) {
	var c product.Category
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
