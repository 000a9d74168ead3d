package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/store"
)

// InvoiceHandler handles invoice HTTP requests, including the complete and
// cancel transitions that post to stock and the ledger.
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *slog.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler. If log is nil, the process
// default logger is used.
func NewInvoiceHandler(invoiceService service.InvoiceService, log *slog.Logger) *InvoiceHandler {
	if invoiceService == nil {
		panic("invoice service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         log.With(slog.String("component", "invoice_handler")),
	}
}

// Create handles POST /invoices requests. The created invoice is a draft;
// stock and the ledger are untouched until completion.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateInvoiceRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(r.Context(), req.CustomerID, toItemInputs(req.Items))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create invoice")
		return
	}

	log.Info("invoice created",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("number", invoice.Number))
	shared.RespondWithJSON(w, r, http.StatusCreated, invoice)
}

// Get handles GET /invoices/{id} requests.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	invoice, err := h.invoiceService.GetInvoice(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get invoice")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, invoice)
}

// GetByNumber handles GET /invoices/number/{number} requests.
func (h *InvoiceHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invoice number is required")
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByNumber(r.Context(), number)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get invoice")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, invoice)
}

// List handles GET /invoices requests. Supported query parameters:
// status, customer_id, from, to, limit, offset.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r, 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter := store.InvoiceFilter{
		Status: domain.InvoiceStatus(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			HandleAPIError(w, r,
				domain.NewValidationError("customer_id", "has invalid format", domain.ErrInvalidID), "")
			return
		}
		filter.CustomerID = customerID
	}

	invoices, err := h.invoiceService.ListInvoices(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list invoices")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, invoices)
}

// UpdateItems handles PUT /invoices/{id}/items requests. Only drafts can be
// edited.
func (h *InvoiceHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateInvoiceItemsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	invoice, err := h.invoiceService.UpdateDraftItems(r.Context(), id, toItemInputs(req.Items))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update invoice items")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, invoice)
}

// Complete handles POST /invoices/{id}/complete requests. Completion stamps
// the issue time, deducts stock, and posts the sale to the ledger in one
// transaction.
func (h *InvoiceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	invoice, err := h.invoiceService.CompleteInvoice(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete invoice")
		return
	}

	log.Info("invoice completed",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("number", invoice.Number),
		slog.Int64("total_cents", invoice.TotalCents))
	shared.RespondWithJSON(w, r, http.StatusOK, invoice)
}

// Cancel handles POST /invoices/{id}/cancel requests. Cancelling a
// completed invoice restocks the items and posts reversing entries.
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel invoice")
		return
	}

	log.Info("invoice cancelled",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("number", invoice.Number))
	shared.RespondWithJSON(w, r, http.StatusOK, invoice)
}
