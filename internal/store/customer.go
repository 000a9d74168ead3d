package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
)

// CustomerStore defines the interface for customer data persistence.
type CustomerStore interface {
	// Create saves a new customer to the store.
	// Returns validation errors from the domain Customer if data is invalid.
	Create(ctx context.Context, customer *domain.Customer) error

	// GetByID retrieves a customer by their unique ID.
	// Returns ErrCustomerNotFound if the customer does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)

	// List retrieves customers ordered by name.
	List(ctx context.Context, limit, offset int) ([]*domain.Customer, error)

	// Update modifies an existing customer's details.
	// Returns ErrCustomerNotFound if the customer does not exist.
	Update(ctx context.Context, customer *domain.Customer) error

	// Delete removes a customer from the store by their ID.
	// Returns ErrCustomerNotFound if the customer does not exist.
	// Customers referenced by invoices cannot be deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new CustomerStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CustomerStore
}
