package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/store"
)

// productColumns is the column list shared by every product SELECT.
const productColumns = `id, sku, name, category, karat, weight_grams, unit_price_cents,
	quantity_on_hand, low_stock_threshold, created_at, updated_at`

// PostgresProductStore implements the store.ProductStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProductStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProductStore creates a new PostgreSQL implementation of the ProductStore
// interface. It accepts a database connection or transaction that should be initialized
// and managed by the caller. If log is nil, the process default logger is used.
func NewPostgresProductStore(db store.DBTX, log *slog.Logger) *PostgresProductStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresProductStore{
		db:     db,
		logger: log.With(slog.String("component", "product_store")),
	}
}

// Ensure PostgresProductStore implements store.ProductStore interface
var _ store.ProductStore = (*PostgresProductStore)(nil)

// Create implements store.ProductStore.Create
// Returns store.ErrSKUExists if the SKU is already taken.
func (s *PostgresProductStore) Create(ctx context.Context, product *domain.Product) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := product.Validate(); err != nil {
		log.Warn("product validation failed during create",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return err
	}

	query := `
		INSERT INTO products (id, sku, name, category, karat, weight_grams,
			unit_price_cents, quantity_on_hand, low_stock_threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.Category,
		product.Karat,
		product.WeightGrams,
		product.UnitPriceCents,
		product.QuantityOnHand,
		product.LowStockThreshold,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate SKU during product creation",
				slog.String("sku", product.SKU))
			return MapUniqueViolation(err, store.ErrSKUExists)
		}
		log.Error("failed to create product",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return MapError(err)
	}

	log.Info("product created successfully",
		slog.String("product_id", product.ID.String()),
		slog.String("sku", product.SKU))
	return nil
}

// GetByID implements store.ProductStore.GetByID
// Returns store.ErrProductNotFound if the product does not exist.
func (s *PostgresProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

// GetBySKU implements store.ProductStore.GetBySKU
// Returns store.ErrProductNotFound if the product does not exist.
func (s *PostgresProductStore) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getOne(ctx, `WHERE sku = $1`, sku)
}

// getOne runs a single-row product query with the given WHERE clause.
func (s *PostgresProductStore) getOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + productColumns + ` FROM products ` + where

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("product not found")
			return nil, store.ErrProductNotFound
		}
		log.Error("failed to get product", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return product, nil
}

// List implements store.ProductStore.List
func (s *PostgresProductStore) List(ctx context.Context, filter store.ProductFilter) ([]*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.LowStockOnly {
		query += " AND quantity_on_hand <= low_stock_threshold"
	}

	query += " ORDER BY sku"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list products", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			log.Error("failed to scan product row", slog.String("error", err.Error()))
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return products, nil
}

// Update implements store.ProductStore.Update
// Returns store.ErrProductNotFound if the product does not exist and
// store.ErrSKUExists when updating to a taken SKU.
func (s *PostgresProductStore) Update(ctx context.Context, product *domain.Product) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := product.Validate(); err != nil {
		log.Warn("product validation failed during update",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return err
	}

	product.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET sku = $1, name = $2, category = $3, karat = $4, weight_grams = $5,
			unit_price_cents = $6, quantity_on_hand = $7, low_stock_threshold = $8,
			updated_at = $9
		WHERE id = $10
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		product.SKU,
		product.Name,
		product.Category,
		product.Karat,
		product.WeightGrams,
		product.UnitPriceCents,
		product.QuantityOnHand,
		product.LowStockThreshold,
		product.UpdatedAt,
		product.ID,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, store.ErrSKUExists)
		}
		log.Error("failed to update product",
			slog.String("error", err.Error()),
			slog.String("product_id", product.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrProductNotFound)
}

// AdjustQuantity implements store.ProductStore.AdjustQuantity
// The adjustment happens in a single UPDATE with a guard predicate, so two
// concurrent sales of the last unit cannot both succeed.
func (s *PostgresProductStore) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE products
		SET quantity_on_hand = quantity_on_hand + $2, updated_at = $3
		WHERE id = $1 AND quantity_on_hand + $2 >= 0
		RETURNING ` + productColumns

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id, delta, time.Now().UTC()))
	if err == nil {
		log.Debug("product quantity adjusted",
			slog.String("product_id", id.String()),
			slog.Int("delta", delta),
			slog.Int("quantity_on_hand", product.QuantityOnHand))
		return product, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to adjust product quantity",
			slog.String("error", err.Error()),
			slog.String("product_id", id.String()))
		return nil, MapError(err)
	}

	// The guard predicate rejected the row: either the product is missing or
	// the adjustment would oversell. Distinguish the two for the caller.
	var exists bool
	checkErr := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	if checkErr != nil {
		return nil, MapError(checkErr)
	}
	if !exists {
		return nil, store.ErrProductNotFound
	}

	log.Warn("quantity adjustment rejected to prevent oversell",
		slog.String("product_id", id.String()),
		slog.Int("delta", delta))
	return nil, domain.ErrInsufficientStock
}

// Delete implements store.ProductStore.Delete
// Returns store.ErrProductNotFound if the product does not exist. Products
// referenced by invoice items fail with a wrapped store.ErrInvalidEntity.
func (s *PostgresProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete product",
			slog.String("error", err.Error()),
			slog.String("product_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrProductNotFound); err != nil {
		return err
	}

	log.Info("product deleted", slog.String("product_id", id.String()))
	return nil
}

// WithTx implements store.ProductStore.WithTx
// It returns a copy of the store that runs all operations on the transaction.
func (s *PostgresProductStore) WithTx(tx *sql.Tx) store.ProductStore {
	return &PostgresProductStore{db: tx, logger: s.logger}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct maps one result row onto a domain.Product.
func scanProduct(row rowScanner) (*domain.Product, error) {
	var product domain.Product
	var category string

	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&category,
		&product.Karat,
		&product.WeightGrams,
		&product.UnitPriceCents,
		&product.QuantityOnHand,
		&product.LowStockThreshold,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Category = domain.ProductCategory(category)
	return &product, nil
}

// closeRows closes rows and logs a close failure instead of masking the
// caller's error.
func closeRows(rows *sql.Rows, log *slog.Logger) {
	if err := rows.Close(); err != nil {
		log.Error("failed to close rows", slog.String("error", err.Error()))
	}
}
