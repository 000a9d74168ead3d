package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/store"
)

// ProductUpdate carries the mutable fields of a product. The SKU is fixed at
// creation and the quantity on hand changes only through AdjustStock, so
// neither appears here.
type ProductUpdate struct {
	Name              string
	Category          domain.ProductCategory
	Karat             int
	WeightGrams       float64
	UnitPriceCents    int64
	LowStockThreshold int
}

// InventoryService manages the product catalog and stock levels.
type InventoryService interface {
	// CreateProduct adds a new product to the catalog.
	// Returns store.ErrSKUExists if the SKU is already taken.
	CreateProduct(
		ctx context.Context,
		sku, name string,
		category domain.ProductCategory,
		karat int,
		weightGrams float64,
		unitPriceCents int64,
		quantityOnHand, lowStockThreshold int,
	) (*domain.Product, error)

	// GetProduct retrieves a product by its unique ID.
	// Returns store.ErrProductNotFound if the product does not exist.
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetProductBySKU retrieves a product by its SKU.
	// Returns store.ErrProductNotFound if the product does not exist.
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// ListProducts retrieves products matching the filter.
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]*domain.Product, error)

	// UpdateProduct replaces the mutable fields of a product.
	// Returns store.ErrProductNotFound if the product does not exist.
	UpdateProduct(ctx context.Context, id uuid.UUID, upd ProductUpdate) (*domain.Product, error)

	// AdjustStock changes a product's quantity on hand by delta, which may be
	// negative. Returns domain.ErrInsufficientStock if the adjustment would
	// take the quantity below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)

	// ListLowStock retrieves all products at or below their low stock
	// threshold.
	ListLowStock(ctx context.Context) ([]*domain.Product, error)

	// DeleteProduct removes a product from the catalog.
	// Returns store.ErrProductNotFound if the product does not exist.
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// inventoryServiceImpl implements the InventoryService interface.
type inventoryServiceImpl struct {
	productStore store.ProductStore
	emitter      events.DataChangeEmitter
	logger       *slog.Logger
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(
	productStore store.ProductStore,
	emitter events.DataChangeEmitter,
	logger *slog.Logger,
) (InventoryService, error) {
	if productStore == nil {
		return nil, domain.NewValidationError("productStore", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &inventoryServiceImpl{
		productStore: productStore,
		emitter:      emitter,
		logger:       logger.With("component", "inventory_service"),
	}, nil
}

func (s *inventoryServiceImpl) CreateProduct(
	ctx context.Context,
	sku, name string,
	category domain.ProductCategory,
	karat int,
	weightGrams float64,
	unitPriceCents int64,
	quantityOnHand, lowStockThreshold int,
) (*domain.Product, error) {
	product, err := domain.NewProduct(
		sku, name, category, karat, weightGrams, unitPriceCents, quantityOnHand, lowStockThreshold,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid product: %w", err)
	}

	if err := s.productStore.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		"product_id", product.ID,
		"sku", product.SKU)
	s.emitChange(ctx, events.OpInsert, product.ID)

	return product, nil
}

func (s *inventoryServiceImpl) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return product, nil
}

func (s *inventoryServiceImpl) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.productStore.GetBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product by sku: %w", err)
	}
	return product, nil
}

func (s *inventoryServiceImpl) ListProducts(
	ctx context.Context,
	filter store.ProductFilter,
) ([]*domain.Product, error) {
	products, err := s.productStore.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *inventoryServiceImpl) UpdateProduct(
	ctx context.Context,
	id uuid.UUID,
	upd ProductUpdate,
) (*domain.Product, error) {
	product, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product for update: %w", err)
	}

	product.Name = upd.Name
	product.Category = upd.Category
	product.Karat = upd.Karat
	product.WeightGrams = upd.WeightGrams
	product.UnitPriceCents = upd.UnitPriceCents
	product.LowStockThreshold = upd.LowStockThreshold

	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product update: %w", err)
	}

	if err := s.productStore.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated", "product_id", product.ID)
	s.emitChange(ctx, events.OpUpdate, product.ID)

	return product, nil
}

func (s *inventoryServiceImpl) AdjustStock(
	ctx context.Context,
	id uuid.UUID,
	delta int,
) (*domain.Product, error) {
	product, err := s.productStore.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	s.logger.InfoContext(ctx, "stock adjusted",
		"product_id", id,
		"delta", delta,
		"quantity_on_hand", product.QuantityOnHand)
	if product.IsLowStock() {
		s.logger.WarnContext(ctx, "product at or below low stock threshold",
			"product_id", id,
			"quantity_on_hand", product.QuantityOnHand,
			"threshold", product.LowStockThreshold)
	}
	s.emitChange(ctx, events.OpUpdate, id)

	return product, nil
}

func (s *inventoryServiceImpl) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productStore.List(ctx, store.ProductFilter{LowStockOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}

func (s *inventoryServiceImpl) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	s.emitChange(ctx, events.OpDelete, id)

	return nil
}

// emitChange publishes a data-change event for the products table. Emission
// failures are logged and swallowed: the write already happened, and a stale
// cache entry expires on its own.
func (s *inventoryServiceImpl) emitChange(ctx context.Context, op string, id uuid.UUID) {
	event := events.NewDataChangeEvent("products", op, id)
	if err := s.emitter.EmitDataChange(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit data change event",
			"table", "products",
			"op", op,
			"error", err)
	}
}
