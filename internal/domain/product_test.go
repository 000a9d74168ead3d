package domain

import (
	"testing"

	"github.com/google/uuid"
)

func validProduct() *Product {
	return &Product{
		ID:                uuid.New(),
		SKU:               "RING-18K-001",
		Name:              "18k gold band",
		Category:          CategoryRing,
		Karat:             18,
		WeightGrams:       4.2,
		UnitPriceCents:    45000,
		QuantityOnHand:    10,
		LowStockThreshold: 2,
	}
}

func TestNewProduct(t *testing.T) {
	product, err := NewProduct("RING-18K-001", "18k gold band", CategoryRing, 18, 4.2, 45000, 10, 2)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if product.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if product.SKU != "RING-18K-001" {
		t.Errorf("Expected SKU RING-18K-001, got %s", product.SKU)
	}

	if product.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Product)
		wantErr error
	}{
		{"valid", func(p *Product) {}, nil},
		{"empty SKU", func(p *Product) { p.SKU = "" }, ErrEmptyProductSKU},
		{"empty name", func(p *Product) { p.Name = "" }, ErrEmptyProductName},
		{"unknown category", func(p *Product) { p.Category = "gemstone" }, ErrInvalidCategory},
		{"karat too low", func(p *Product) { p.Karat = 9 }, ErrInvalidKarat},
		{"karat too high", func(p *Product) { p.Karat = 25 }, ErrInvalidKarat},
		{"zero weight", func(p *Product) { p.WeightGrams = 0 }, ErrInvalidWeight},
		{"negative price", func(p *Product) { p.UnitPriceCents = -1 }, ErrNegativePrice},
		{"negative quantity", func(p *Product) { p.QuantityOnHand = -1 }, ErrNegativeQuantity},
		{"negative threshold", func(p *Product) { p.LowStockThreshold = -1 }, ErrNegativeThreshold},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			product := validProduct()
			tc.mutate(product)
			if err := product.Validate(); err != tc.wantErr {
				t.Errorf("Expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestProductAdjustQuantity(t *testing.T) {
	product := validProduct()

	if err := product.AdjustQuantity(-4); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if product.QuantityOnHand != 6 {
		t.Errorf("Expected quantity 6, got %d", product.QuantityOnHand)
	}

	// Selling more than is on hand must fail and leave the quantity unchanged
	if err := product.AdjustQuantity(-7); err != ErrInsufficientStock {
		t.Errorf("Expected error %v, got %v", ErrInsufficientStock, err)
	}

	if product.QuantityOnHand != 6 {
		t.Errorf("Expected quantity unchanged at 6, got %d", product.QuantityOnHand)
	}
}

func TestProductIsLowStock(t *testing.T) {
	product := validProduct()
	product.LowStockThreshold = 5

	product.QuantityOnHand = 6
	if product.IsLowStock() {
		t.Error("Expected product above threshold not to be low stock")
	}

	product.QuantityOnHand = 5
	if !product.IsLowStock() {
		t.Error("Expected product at threshold to be low stock")
	}

	product.QuantityOnHand = 0
	if !product.IsLowStock() {
		t.Error("Expected product with zero quantity to be low stock")
	}
}
