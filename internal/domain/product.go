package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProductCategory classifies an item of stock.
type ProductCategory string

// Possible product categories
const (
	CategoryRing     ProductCategory = "ring"
	CategoryNecklace ProductCategory = "necklace"
	CategoryBracelet ProductCategory = "bracelet"
	CategoryBangle   ProductCategory = "bangle"
	CategoryEarring  ProductCategory = "earring"
	CategoryPendant  ProductCategory = "pendant"
	CategoryCoin     ProductCategory = "coin"
	CategoryBar      ProductCategory = "bar"
	CategorySet      ProductCategory = "set"
	CategoryOther    ProductCategory = "other"
)

// Karat bounds for gold stock. Anything below 10k is not sold as gold.
const (
	MinKarat = 10
	MaxKarat = 24
)

// Common validation errors for Product
var (
	ErrEmptyProductID    = errors.New("product ID cannot be empty")
	ErrEmptyProductSKU   = errors.New("product SKU cannot be empty")
	ErrEmptyProductName  = errors.New("product name cannot be empty")
	ErrInvalidCategory   = errors.New("invalid product category")
	ErrInvalidKarat      = errors.New("karat must be between 10 and 24")
	ErrInvalidWeight     = errors.New("weight must be greater than zero")
	ErrNegativePrice     = errors.New("unit price cannot be negative")
	ErrNegativeQuantity  = errors.New("quantity cannot be negative")
	ErrNegativeThreshold = errors.New("low stock threshold cannot be negative")
	ErrInsufficientStock = errors.New("insufficient stock for adjustment")
)

// Product represents an item of gold stock: a piece of jewelry, a coin, or a
// bar. Monetary amounts are stored as integer cents to avoid floating point
// rounding in totals; weight is in grams.
type Product struct {
	ID                uuid.UUID       `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Category          ProductCategory `json:"category"`
	Karat             int             `json:"karat"`
	WeightGrams       float64         `json:"weight_grams"`
	UnitPriceCents    int64           `json:"unit_price_cents"`
	QuantityOnHand    int             `json:"quantity_on_hand"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewProduct creates a new Product with a generated UUID and UTC timestamps.
// Returns an error if validation fails.
func NewProduct(
	sku string,
	name string,
	category ProductCategory,
	karat int,
	weightGrams float64,
	unitPriceCents int64,
	quantityOnHand int,
	lowStockThreshold int,
) (*Product, error) {
	product := &Product{
		ID:                uuid.New(),
		SKU:               sku,
		Name:              name,
		Category:          category,
		Karat:             karat,
		WeightGrams:       weightGrams,
		UnitPriceCents:    unitPriceCents,
		QuantityOnHand:    quantityOnHand,
		LowStockThreshold: lowStockThreshold,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}

	return product, nil
}

// Validate checks if the Product has valid data.
// Returns an error if any field fails validation.
func (p *Product) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProductID
	}

	if p.SKU == "" {
		return ErrEmptyProductSKU
	}

	if p.Name == "" {
		return ErrEmptyProductName
	}

	if !isValidCategory(p.Category) {
		return ErrInvalidCategory
	}

	if p.Karat < MinKarat || p.Karat > MaxKarat {
		return ErrInvalidKarat
	}

	if p.WeightGrams <= 0 {
		return ErrInvalidWeight
	}

	if p.UnitPriceCents < 0 {
		return ErrNegativePrice
	}

	if p.QuantityOnHand < 0 {
		return ErrNegativeQuantity
	}

	if p.LowStockThreshold < 0 {
		return ErrNegativeThreshold
	}

	return nil
}

// AdjustQuantity changes the quantity on hand by delta, which may be negative
// for sales. Returns ErrInsufficientStock if the adjustment would take the
// quantity below zero.
func (p *Product) AdjustQuantity(delta int) error {
	next := p.QuantityOnHand + delta
	if next < 0 {
		return ErrInsufficientStock
	}

	p.QuantityOnHand = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsLowStock reports whether the quantity on hand has fallen to or below the
// product's low stock threshold.
func (p *Product) IsLowStock() bool {
	return p.QuantityOnHand <= p.LowStockThreshold
}

// isValidCategory checks if the given category is a valid ProductCategory.
func isValidCategory(category ProductCategory) bool {
	switch category {
	case CategoryRing, CategoryNecklace, CategoryBracelet, CategoryBangle,
		CategoryEarring, CategoryPendant, CategoryCoin, CategoryBar,
		CategorySet, CategoryOther:
		return true
	default:
		return false
	}
}
