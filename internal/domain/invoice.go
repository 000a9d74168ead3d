package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the lifecycle state of an invoice.
type InvoiceStatus string

// Possible invoice status values
const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusCompleted InvoiceStatus = "completed"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Common validation errors for Invoice
var (
	ErrEmptyInvoiceID          = errors.New("invoice ID cannot be empty")
	ErrEmptyInvoiceNumber      = errors.New("invoice number cannot be empty")
	ErrEmptyInvoiceCustomer    = errors.New("invoice customer ID cannot be empty")
	ErrInvalidInvoiceStatus    = errors.New("invalid invoice status")
	ErrInvoiceNotEditable      = errors.New("invoice can only be modified in draft status")
	ErrInvoiceHasNoItems       = errors.New("invoice must have at least one item")
	ErrInvalidStatusTransition = errors.New("invalid invoice status transition")
	ErrEmptyItemID             = errors.New("invoice item ID cannot be empty")
	ErrEmptyItemProduct        = errors.New("invoice item product ID cannot be empty")
	ErrInvalidItemQuantity     = errors.New("invoice item quantity must be greater than zero")
	ErrNegativeItemPrice       = errors.New("invoice item unit price cannot be negative")
)

// InvoiceItem is a single line of an invoice. Description and unit price are
// snapshots taken at sale time so later product edits do not rewrite history.
type InvoiceItem struct {
	ID             uuid.UUID `json:"id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// Validate checks if the InvoiceItem has valid data.
func (it *InvoiceItem) Validate() error {
	if it.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if it.ProductID == uuid.Nil {
		return ErrEmptyItemProduct
	}

	if it.Quantity <= 0 {
		return ErrInvalidItemQuantity
	}

	if it.UnitPriceCents < 0 {
		return ErrNegativeItemPrice
	}

	return nil
}

// Invoice represents a sale. It starts in draft, is completed when payment is
// taken (which is when stock and ledger postings happen), and may later be
// cancelled, which reverses those postings.
type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	CustomerID    uuid.UUID     `json:"customer_id"`
	Items         []InvoiceItem `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	Status        InvoiceStatus `json:"status"`
	IssuedAt      *time.Time    `json:"issued_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewInvoice creates a new draft Invoice with a generated UUID and UTC
// timestamps. Items are added afterwards with AddItem.
// Returns an error if validation fails.
func NewInvoice(number string, customerID uuid.UUID) (*Invoice, error) {
	invoice := &Invoice{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: customerID,
		Items:      []InvoiceItem{},
		Status:     InvoiceStatusDraft,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if err := invoice.Validate(); err != nil {
		return nil, err
	}

	return invoice, nil
}

// Validate checks if the Invoice has valid data, including all of its items.
// Returns an error if any field fails validation.
func (i *Invoice) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyInvoiceID
	}

	if i.Number == "" {
		return ErrEmptyInvoiceNumber
	}

	if i.CustomerID == uuid.Nil {
		return ErrEmptyInvoiceCustomer
	}

	if !isValidInvoiceStatus(i.Status) {
		return ErrInvalidInvoiceStatus
	}

	for idx := range i.Items {
		if err := i.Items[idx].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// AddItem appends a line item to a draft invoice and recomputes its totals
// with the given tax rate. Returns ErrInvoiceNotEditable for non-draft
// invoices.
func (i *Invoice) AddItem(item InvoiceItem, taxRateBasisPoints int64) error {
	if i.Status != InvoiceStatusDraft {
		return ErrInvoiceNotEditable
	}

	item.InvoiceID = i.ID
	item.LineTotalCents = int64(item.Quantity) * item.UnitPriceCents
	if err := item.Validate(); err != nil {
		return err
	}

	i.Items = append(i.Items, item)
	i.Recalculate(taxRateBasisPoints)
	return nil
}

// Recalculate recomputes subtotal, tax, and total from the line items.
// Tax is rounded half up to the nearest cent.
func (i *Invoice) Recalculate(taxRateBasisPoints int64) {
	var subtotal int64
	for idx := range i.Items {
		subtotal += i.Items[idx].LineTotalCents
	}

	i.SubtotalCents = subtotal
	i.TaxCents = (subtotal*taxRateBasisPoints + 5000) / 10000
	i.TotalCents = i.SubtotalCents + i.TaxCents
	i.UpdatedAt = time.Now().UTC()
}

// CanTransitionTo reports whether moving to the given status is legal.
// Draft invoices may be completed or cancelled; completed invoices may be
// cancelled; cancelled is terminal.
func (i *Invoice) CanTransitionTo(next InvoiceStatus) bool {
	switch i.Status {
	case InvoiceStatusDraft:
		return next == InvoiceStatusCompleted || next == InvoiceStatusCancelled
	case InvoiceStatusCompleted:
		return next == InvoiceStatusCancelled
	default:
		return false
	}
}

// Complete marks a draft invoice as completed and stamps IssuedAt.
// The invoice must have at least one item.
func (i *Invoice) Complete() error {
	if !i.CanTransitionTo(InvoiceStatusCompleted) {
		return ErrInvalidStatusTransition
	}

	if len(i.Items) == 0 {
		return ErrInvoiceHasNoItems
	}

	now := time.Now().UTC()
	i.Status = InvoiceStatusCompleted
	i.IssuedAt = &now
	i.UpdatedAt = now
	return nil
}

// Cancel marks an invoice as cancelled. Draft and completed invoices may be
// cancelled; cancelling a completed invoice is a void and the caller is
// responsible for reversing its postings.
func (i *Invoice) Cancel() error {
	if !i.CanTransitionTo(InvoiceStatusCancelled) {
		return ErrInvalidStatusTransition
	}

	i.Status = InvoiceStatusCancelled
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidInvoiceStatus checks if the given status is a valid InvoiceStatus.
func isValidInvoiceStatus(status InvoiceStatus) bool {
	switch status {
	case InvoiceStatusDraft, InvoiceStatusCompleted, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}
