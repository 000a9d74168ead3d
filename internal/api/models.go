package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/service"
)

// Request and response payloads shared across handlers. Validation tags
// cover shape and ranges; business rules (role tables, stock levels, status
// transitions) stay in the services.

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
	Role     string `json:"role"     validate:"required"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// CreateProductRequest defines the payload for adding a catalog product.
type CreateProductRequest struct {
	SKU               string  `json:"sku"                 validate:"required,max=64"`
	Name              string  `json:"name"                validate:"required,max=255"`
	Category          string  `json:"category"            validate:"required"`
	Karat             int     `json:"karat"               validate:"required"`
	WeightGrams       float64 `json:"weight_grams"        validate:"required,gt=0"`
	UnitPriceCents    int64   `json:"unit_price_cents"    validate:"required,gt=0"`
	QuantityOnHand    int     `json:"quantity_on_hand"    validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// UpdateProductRequest defines the payload for replacing a product's
// mutable fields. Quantity is not here; stock moves through adjustments.
type UpdateProductRequest struct {
	Name              string  `json:"name"                validate:"required,max=255"`
	Category          string  `json:"category"            validate:"required"`
	Karat             int     `json:"karat"               validate:"required"`
	WeightGrams       float64 `json:"weight_grams"        validate:"required,gt=0"`
	UnitPriceCents    int64   `json:"unit_price_cents"    validate:"required,gt=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// AdjustStockRequest defines the payload for a manual stock adjustment.
// Delta may be negative; zero is rejected as a no-op.
type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// CustomerRequest defines the payload for creating or updating a customer.
type CustomerRequest struct {
	Name  string `json:"name"            validate:"required,max=255"`
	Phone string `json:"phone,omitempty" validate:"max=32"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Notes string `json:"notes,omitempty" validate:"max=2000"`
}

// InvoiceItemPayload is one line of an invoice create or update request.
// A zero unit price takes the product's list price; an empty description
// takes the product name.
type InvoiceItemPayload struct {
	ProductID      uuid.UUID `json:"product_id"       validate:"required"`
	Quantity       int       `json:"quantity"         validate:"required,gt=0"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"gte=0"`
	Description    string    `json:"description,omitempty"`
}

// CreateInvoiceRequest defines the payload for creating a draft invoice.
type CreateInvoiceRequest struct {
	CustomerID uuid.UUID            `json:"customer_id" validate:"required"`
	Items      []InvoiceItemPayload `json:"items"       validate:"required,min=1,dive"`
}

// UpdateInvoiceItemsRequest defines the payload for replacing a draft
// invoice's line items.
type UpdateInvoiceItemsRequest struct {
	Items []InvoiceItemPayload `json:"items" validate:"required,min=1,dive"`
}

// LedgerLinePayload is one line of a manual journal entry.
type LedgerLinePayload struct {
	Account     string     `json:"account"      validate:"required"`
	Direction   string     `json:"direction"    validate:"required,oneof=debit credit"`
	AmountCents int64      `json:"amount_cents" validate:"required,gt=0"`
	Memo        string     `json:"memo,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

// RecordEntriesRequest defines the payload for posting a manual journal
// entry. At least two lines, and debits must equal credits.
type RecordEntriesRequest struct {
	Entries []LedgerLinePayload `json:"entries" validate:"required,min=2,dive"`
}

// TriggerBackupRequest defines the payload for an on-demand backup.
type TriggerBackupRequest struct {
	Scope string `json:"scope" validate:"required,oneof=full ledger inventory"`
}

// BackupTaskPayload is the task payload for an on-demand backup: the same
// shape the hourly backup handler decodes for its scheduled runs.
type BackupTaskPayload struct {
	Scope string `json:"scope"`
}

// TriggerBackupResponse acknowledges an accepted on-demand backup. The run
// happens asynchronously; the task id lets operators follow it through the
// task introspection endpoints.
type TriggerBackupResponse struct {
	TaskID      uuid.UUID `json:"task_id"`
	Queue       string    `json:"queue"`
	Scope       string    `json:"scope"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// toItemInputs converts invoice item payloads to service inputs.
func toItemInputs(payloads []InvoiceItemPayload) []service.InvoiceItemInput {
	inputs := make([]service.InvoiceItemInput, len(payloads))
	for i, p := range payloads {
		inputs[i] = service.InvoiceItemInput{
			ProductID:      p.ProductID,
			Quantity:       p.Quantity,
			UnitPriceCents: p.UnitPriceCents,
			Description:    p.Description,
		}
	}
	return inputs
}

// toEntryInputs converts ledger line payloads to service inputs.
func toEntryInputs(payloads []LedgerLinePayload) []service.LedgerEntryInput {
	inputs := make([]service.LedgerEntryInput, len(payloads))
	for i, p := range payloads {
		input := service.LedgerEntryInput{
			Account:     domain.LedgerAccount(p.Account),
			Direction:   domain.EntryDirection(p.Direction),
			AmountCents: p.AmountCents,
			Memo:        p.Memo,
		}
		if p.OccurredAt != nil {
			input.OccurredAt = *p.OccurredAt
		}
		inputs[i] = input
	}
	return inputs
}
