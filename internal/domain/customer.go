package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Customer
var (
	ErrEmptyCustomerID   = errors.New("customer ID cannot be empty")
	ErrEmptyCustomerName = errors.New("customer name cannot be empty")
)

// Customer represents a customer of the shop. Phone, email, and notes are
// optional; walk-in sales are recorded against a customer only when one is
// known.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCustomer creates a new Customer with a generated UUID and UTC timestamps.
// Returns an error if validation fails.
func NewCustomer(name, phone, email, notes string) (*Customer, error) {
	customer := &Customer{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := customer.Validate(); err != nil {
		return nil, err
	}

	return customer, nil
}

// Validate checks if the Customer has valid data.
// Returns an error if any field fails validation.
func (c *Customer) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCustomerID
	}

	if c.Name == "" {
		return ErrEmptyCustomerName
	}

	// Email is optional but must be well formed when present
	if c.Email != "" && !validateEmailFormat(c.Email) {
		return ErrInvalidEmail
	}

	return nil
}
