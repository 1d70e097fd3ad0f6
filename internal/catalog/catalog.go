package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/database"
	"github.com/shopspring/decimal"
)

// Errors returned by the resolver.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Store defines the read-only DB methods the resolver needs.
// Satisfied by *database.Queries.
type Store interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariant, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
}

// Product is the snapshot of a product used when an item is added to an order.
type Product struct {
	ID         uuid.UUID
	Name       string
	Price      decimal.Decimal
	IsWeighted bool
	CategoryID *uuid.UUID
}

// Variant is a priced variation of a product.
type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
}

// Category is a node of the category tree.
type Category struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

// Resolver maps catalog identifiers to names and prices.
type Resolver struct {
	store Store
}

// NewResolver creates a new Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// GetProduct returns the product's current name and price.
func (r *Resolver) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := r.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return Product{
		ID:         p.ID,
		Name:       p.Name,
		Price:      NumericToDecimal(p.Price),
		IsWeighted: p.IsWeighted,
		CategoryID: uuidPtr(p.CategoryID),
	}, nil
}

// GetVariants returns the product's variants in catalog order.
// A product without variants yields an empty slice.
func (r *Resolver) GetVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error) {
	rows, err := r.store.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	variants := make([]Variant, 0, len(rows))
	for _, v := range rows {
		variants = append(variants, Variant{
			ID:        v.ID,
			ProductID: v.ProductID,
			Name:      v.Name,
			Price:     NumericToDecimal(v.Price),
		})
	}
	return variants, nil
}

// GetCategory returns the category's name and parent.
func (r *Resolver) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	c, err := r.store.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return Category{ID: c.ID, Name: c.Name, ParentID: uuidPtr(c.ParentID)}, nil
}

// NumericToDecimal converts a NUMERIC column value; NULL becomes zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal into a 2-place NUMERIC value.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
