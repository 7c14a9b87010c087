package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// VariantNotFoundError indicates a product exists but the requested variant does not.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return "variant " + e.VariantID + " not found for product " + e.ProductID
}

// Product represents a catalog item available for purchase. Stock is tracked
// on the product itself, or per variant when variants exist.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
	Stock       int
	Discount    decimal.Decimal // percent, 0-100
	Category    string
	Variants    []Variant
}

// Variant is a product sub-SKU with its own stock and optional price override.
type Variant struct {
	ID    string
	Name  string
	Price *decimal.Decimal
	Stock int
}

// Variant returns the variant with the given ID, or a VariantNotFoundError.
func (p *Product) Variant(variantID string) (*Variant, error) {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i], nil
		}
	}
	return nil, &VariantNotFoundError{ProductID: p.ID, VariantID: variantID}
}

// UnitPrice resolves the effective unit price for the given variant selection.
// An empty variantID selects the product-level price.
func (p *Product) UnitPrice(variantID string) (decimal.Decimal, error) {
	if variantID == "" {
		return p.Price, nil
	}
	v, err := p.Variant(variantID)
	if err != nil {
		return decimal.Zero, err
	}
	if v.Price != nil {
		return *v.Price, nil
	}
	return p.Price, nil
}

// AvailableStock returns the stock level for the given variant selection.
func (p *Product) AvailableStock(variantID string) (int, error) {
	if variantID == "" {
		return p.Stock, nil
	}
	v, err := p.Variant(variantID)
	if err != nil {
		return 0, err
	}
	return v.Stock, nil
}

// Filter narrows down catalog listings.
type Filter struct {
	Category string
	Limit    int
	Offset   int
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs fetches products in a single batch. Missing IDs are simply
	// absent from the result; callers decide whether that is an error.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// Update rewrites the product's catalog fields. Stock is excluded: all
	// stock movement goes through the inventory reservations path.
	Update(ctx context.Context, p *Product) error
}
