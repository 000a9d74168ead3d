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

// CustomerService manages the customer book.
type CustomerService interface {
	// CreateCustomer adds a new customer.
	CreateCustomer(ctx context.Context, name, phone, email, notes string) (*domain.Customer, error)

	// GetCustomer retrieves a customer by its unique ID.
	// Returns store.ErrCustomerNotFound if the customer does not exist.
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)

	// ListCustomers retrieves customers ordered by name.
	ListCustomers(ctx context.Context, limit, offset int) ([]*domain.Customer, error)

	// UpdateCustomer replaces a customer's contact details.
	// Returns store.ErrCustomerNotFound if the customer does not exist.
	UpdateCustomer(ctx context.Context, id uuid.UUID, name, phone, email, notes string) (*domain.Customer, error)

	// DeleteCustomer removes a customer. Invoices referencing the customer
	// keep their rows; deletion fails on a foreign key violation if the
	// store enforces one.
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}

// customerServiceImpl implements the CustomerService interface.
type customerServiceImpl struct {
	customerStore store.CustomerStore
	emitter       events.DataChangeEmitter
	logger        *slog.Logger
}

// NewCustomerService creates a new CustomerService.
func NewCustomerService(
	customerStore store.CustomerStore,
	emitter events.DataChangeEmitter,
	logger *slog.Logger,
) (CustomerService, error) {
	if customerStore == nil {
		return nil, domain.NewValidationError("customerStore", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &customerServiceImpl{
		customerStore: customerStore,
		emitter:       emitter,
		logger:        logger.With("component", "customer_service"),
	}, nil
}

func (s *customerServiceImpl) CreateCustomer(
	ctx context.Context,
	name, phone, email, notes string,
) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(name, phone, email, notes)
	if err != nil {
		return nil, fmt.Errorf("invalid customer: %w", err)
	}

	if err := s.customerStore.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.InfoContext(ctx, "customer created", "customer_id", customer.ID)
	s.emitChange(ctx, events.OpInsert, customer.ID)

	return customer, nil
}

func (s *customerServiceImpl) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := s.customerStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve customer: %w", err)
	}
	return customer, nil
}

func (s *customerServiceImpl) ListCustomers(
	ctx context.Context,
	limit, offset int,
) ([]*domain.Customer, error) {
	customers, err := s.customerStore.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (s *customerServiceImpl) UpdateCustomer(
	ctx context.Context,
	id uuid.UUID,
	name, phone, email, notes string,
) (*domain.Customer, error) {
	customer, err := s.customerStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve customer for update: %w", err)
	}

	customer.Name = name
	customer.Phone = phone
	customer.Email = email
	customer.Notes = notes

	if err := customer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid customer update: %w", err)
	}

	if err := s.customerStore.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	s.logger.InfoContext(ctx, "customer updated", "customer_id", customer.ID)
	s.emitChange(ctx, events.OpUpdate, customer.ID)

	return customer, nil
}

func (s *customerServiceImpl) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if err := s.customerStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	s.logger.InfoContext(ctx, "customer deleted", "customer_id", id)
	s.emitChange(ctx, events.OpDelete, id)

	return nil
}

func (s *customerServiceImpl) emitChange(ctx context.Context, op string, id uuid.UUID) {
	event := events.NewDataChangeEvent("customers", op, id)
	if err := s.emitter.EmitDataChange(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit data change event",
			"table", "customers",
			"op", op,
			"error", err)
	}
}
