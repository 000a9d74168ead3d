package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/store"
)

// ProductHandler handles product catalog and stock HTTP requests.
type ProductHandler struct {
	inventoryService service.InventoryService
	logger           *slog.Logger
}

// NewProductHandler creates a new ProductHandler. If log is nil, the process
// default logger is used.
func NewProductHandler(inventoryService service.InventoryService, log *slog.Logger) *ProductHandler {
	if inventoryService == nil {
		panic("inventory service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProductHandler{
		inventoryService: inventoryService,
		logger:           log.With(slog.String("component", "product_handler")),
	}
}

// Create handles POST /products requests.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateProductRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	product, err := h.inventoryService.CreateProduct(r.Context(),
		req.SKU, req.Name, domain.ProductCategory(req.Category),
		req.Karat, req.WeightGrams, req.UnitPriceCents,
		req.QuantityOnHand, req.LowStockThreshold)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create product")
		return
	}

	log.Info("product created",
		slog.String("product_id", product.ID.String()),
		slog.String("sku", product.SKU))
	shared.RespondWithJSON(w, r, http.StatusCreated, product)
}

// Get handles GET /products/{id} requests.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	product, err := h.inventoryService.GetProduct(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get product")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, product)
}

// GetBySKU handles GET /products/sku/{sku} requests.
func (h *ProductHandler) GetBySKU(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if sku == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "SKU is required")
		return
	}

	product, err := h.inventoryService.GetProductBySKU(r.Context(), sku)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get product")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, product)
}

// List handles GET /products requests. Supported query parameters:
// category, low_stock (any value), limit, offset.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r, 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter := store.ProductFilter{
		Category:     domain.ProductCategory(r.URL.Query().Get("category")),
		LowStockOnly: r.URL.Query().Has("low_stock"),
		Limit:        limit,
		Offset:       offset,
	}

	products, err := h.inventoryService.ListProducts(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list products")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, products)
}

// LowStock handles GET /products/low-stock requests.
func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventoryService.ListLowStock(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list low stock products")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, products)
}

// Update handles PUT /products/{id} requests.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateProductRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	product, err := h.inventoryService.UpdateProduct(r.Context(), id, service.ProductUpdate{
		Name:              req.Name,
		Category:          domain.ProductCategory(req.Category),
		Karat:             req.Karat,
		WeightGrams:       req.WeightGrams,
		UnitPriceCents:    req.UnitPriceCents,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update product")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, product)
}

// AdjustStock handles POST /products/{id}/stock requests.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req AdjustStockRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	product, err := h.inventoryService.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to adjust stock")
		return
	}

	log.Info("stock adjusted",
		slog.String("product_id", id.String()),
		slog.Int("delta", req.Delta),
		slog.Int("quantity_on_hand", product.QuantityOnHand))
	shared.RespondWithJSON(w, r, http.StatusOK, product)
}

// Delete handles DELETE /products/{id} requests.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.inventoryService.DeleteProduct(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
