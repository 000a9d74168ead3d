package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
)

// ProductFilter narrows List results. Zero values mean "no constraint".
type ProductFilter struct {
	Category     domain.ProductCategory
	LowStockOnly bool
	Limit        int
	Offset       int
}

// ProductStore defines the interface for product data persistence.
type ProductStore interface {
	// Create saves a new product to the store.
	// Returns ErrSKUExists if the SKU is already taken.
	// Returns validation errors from the domain Product if data is invalid.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique ID.
	// Returns ErrProductNotFound if the product does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetBySKU retrieves a product by its SKU.
	// Returns ErrProductNotFound if the product does not exist.
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// List retrieves products matching the filter, ordered by SKU.
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)

	// Update modifies an existing product's details.
	// Returns ErrProductNotFound if the product does not exist and
	// ErrSKUExists when updating to a SKU that is already taken.
	Update(ctx context.Context, product *domain.Product) error

	// AdjustQuantity atomically changes a product's quantity on hand by delta,
	// which may be negative for sales. The adjustment is performed in SQL so
	// concurrent sales cannot oversell; returns domain.ErrInsufficientStock
	// if the adjustment would take the quantity below zero and
	// ErrProductNotFound if the product does not exist.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)

	// Delete removes a product from the store by its ID.
	// Returns ErrProductNotFound if the product does not exist.
	// Products referenced by invoice items cannot be deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new ProductStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProductStore
}
