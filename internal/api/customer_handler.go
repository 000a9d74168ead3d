package api

import (
	"log/slog"
	"net/http"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
)

// CustomerHandler handles customer HTTP requests.
type CustomerHandler struct {
	customerService service.CustomerService
	logger          *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler. If log is nil, the
// process default logger is used.
func NewCustomerHandler(customerService service.CustomerService, log *slog.Logger) *CustomerHandler {
	if customerService == nil {
		panic("customer service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &CustomerHandler{
		customerService: customerService,
		logger:          log.With(slog.String("component", "customer_handler")),
	}
}

// Create handles POST /customers requests.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CustomerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	customer, err := h.customerService.CreateCustomer(r.Context(), req.Name, req.Phone, req.Email, req.Notes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create customer")
		return
	}

	log.Info("customer created", slog.String("customer_id", customer.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, customer)
}

// Get handles GET /customers/{id} requests.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	customer, err := h.customerService.GetCustomer(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get customer")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, customer)
}

// List handles GET /customers requests with limit/offset paging.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r, 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	customers, err := h.customerService.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list customers")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, customers)
}

// Update handles PUT /customers/{id} requests.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req CustomerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	customer, err := h.customerService.UpdateCustomer(r.Context(), id, req.Name, req.Phone, req.Email, req.Notes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update customer")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, customer)
}

// Delete handles DELETE /customers/{id} requests.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.customerService.DeleteCustomer(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
