package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendhub/marketplace/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, title, description, price, stock, discount, category
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY id
		LIMIT $2 OFFSET $3`

	getProductByIDSQL = `SELECT id, title, description, price, stock, discount, category
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, title, description, price, stock, discount, category
		FROM products WHERE id = ANY($1) ORDER BY id`

	listVariantsSQL = `SELECT id, product_id, name, price, stock
		FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, id`

	insertProductSQL = `INSERT INTO products (id, title, description, price, stock, discount, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertVariantSQL = `INSERT INTO product_variants (id, product_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)`

	updateProductSQL = `UPDATE products
		SET title = $2, description = $3, price = $4, discount = $5, category = $6
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products matching the filter, variants included.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, listProductsSQL, f.Category, limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	products := []product.Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs. Missing IDs are
// absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts a product together with its variants.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertProductSQL,
			p.ID, p.Title, p.Description, p.Price, p.Stock, p.Discount, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "creating product %q", p.ID)
		}
		for _, v := range p.Variants {
			_, err := tx.Exec(ctx, insertVariantSQL, v.ID, p.ID, v.Name, v.Price, v.Stock)
			if err != nil {
				return errors.Wrapf(err, "creating variant %q of product %q", v.ID, p.ID)
			}
		}
		return nil
	})
}

// Update rewrites a product's catalog fields. Stock is deliberately not
// touched here; it moves only through the reservation path.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Title, p.Description, p.Price, p.Discount, p.Category,
	)
	if err != nil {
		return errors.Wrapf(err, "updating product %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) attachVariants(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		byID[products[i].ID] = &products[i]
	}

	rows, err := r.pool.Query(ctx, listVariantsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "listing variants")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         product.Variant
			productID string
		)
		if err := rows.Scan(&v.ID, &productID, &v.Name, &v.Price, &v.Stock); err != nil {
			return errors.Wrap(err, "scanning variant")
		}
		if p, ok := byID[productID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return errors.Wrap(rows.Err(), "listing variants")
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Stock, &p.Discount, &p.Category)
	return p, err
}
