package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/store"
)

// PostgresCustomerStore implements the store.CustomerStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCustomerStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCustomerStore creates a new PostgreSQL implementation of the CustomerStore
// interface. If log is nil, the process default logger is used.
func NewPostgresCustomerStore(db store.DBTX, log *slog.Logger) *PostgresCustomerStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresCustomerStore{
		db:     db,
		logger: log.With(slog.String("component", "customer_store")),
	}
}

// Ensure PostgresCustomerStore implements store.CustomerStore interface
var _ store.CustomerStore = (*PostgresCustomerStore)(nil)

// Create implements store.CustomerStore.Create
func (s *PostgresCustomerStore) Create(ctx context.Context, customer *domain.Customer) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := customer.Validate(); err != nil {
		log.Warn("customer validation failed during create",
			slog.String("error", err.Error()),
			slog.String("customer_id", customer.ID.String()))
		return err
	}

	query := `
		INSERT INTO customers (id, name, phone, email, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		customer.ID,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.Notes,
		customer.CreatedAt,
		customer.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create customer",
			slog.String("error", err.Error()),
			slog.String("customer_id", customer.ID.String()))
		return MapError(err)
	}

	log.Info("customer created successfully",
		slog.String("customer_id", customer.ID.String()))
	return nil
}

// GetByID implements store.CustomerStore.GetByID
// Returns store.ErrCustomerNotFound if the customer does not exist.
func (s *PostgresCustomerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, phone, email, notes, created_at, updated_at
		FROM customers
		WHERE id = $1
	`

	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.Email,
		&customer.Notes,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("customer not found", slog.String("customer_id", id.String()))
			return nil, store.ErrCustomerNotFound
		}
		log.Error("failed to get customer by ID",
			slog.String("error", err.Error()),
			slog.String("customer_id", id.String()))
		return nil, MapError(err)
	}

	return &customer, nil
}

// List implements store.CustomerStore.List
func (s *PostgresCustomerStore) List(ctx context.Context, limit, offset int) ([]*domain.Customer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, name, phone, email, notes, created_at, updated_at
		FROM customers
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list customers", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var customers []*domain.Customer
	for rows.Next() {
		var customer domain.Customer
		err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Phone,
			&customer.Email,
			&customer.Notes,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan customer row", slog.String("error", err.Error()))
			return nil, err
		}
		customers = append(customers, &customer)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return customers, nil
}

// Update implements store.CustomerStore.Update
// Returns store.ErrCustomerNotFound if the customer does not exist.
func (s *PostgresCustomerStore) Update(ctx context.Context, customer *domain.Customer) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := customer.Validate(); err != nil {
		log.Warn("customer validation failed during update",
			slog.String("error", err.Error()),
			slog.String("customer_id", customer.ID.String()))
		return err
	}

	customer.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE customers
		SET name = $1, phone = $2, email = $3, notes = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.Notes,
		customer.UpdatedAt,
		customer.ID,
	)

	if err != nil {
		log.Error("failed to update customer",
			slog.String("error", err.Error()),
			slog.String("customer_id", customer.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrCustomerNotFound)
}

// Delete implements store.CustomerStore.Delete
// Returns store.ErrCustomerNotFound if the customer does not exist. Customers
// referenced by invoices fail with a wrapped store.ErrInvalidEntity.
func (s *PostgresCustomerStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete customer",
			slog.String("error", err.Error()),
			slog.String("customer_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrCustomerNotFound); err != nil {
		return err
	}

	log.Info("customer deleted", slog.String("customer_id", id.String()))
	return nil
}

// WithTx implements store.CustomerStore.WithTx
// It returns a copy of the store that runs all operations on the transaction.
func (s *PostgresCustomerStore) WithTx(tx *sql.Tx) store.CustomerStore {
	return &PostgresCustomerStore{db: tx, logger: s.logger}
}
