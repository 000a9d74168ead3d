package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/store"
)

// LedgerHandler handles double-entry ledger HTTP requests.
type LedgerHandler struct {
	accountingService service.AccountingService
	logger            *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler. If log is nil, the process
// default logger is used.
func NewLedgerHandler(accountingService service.AccountingService, log *slog.Logger) *LedgerHandler {
	if accountingService == nil {
		panic("accounting service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &LedgerHandler{
		accountingService: accountingService,
		logger:            log.With(slog.String("component", "ledger_handler")),
	}
}

// BalanceResponse is the payload for a single-account balance read.
type BalanceResponse struct {
	Account      domain.LedgerAccount `json:"account"`
	AsOf         time.Time            `json:"as_of"`
	BalanceCents int64                `json:"balance_cents"`
}

// RecordEntries handles POST /ledger/entries requests: a manual journal
// entry of two or more balanced lines.
func (h *LedgerHandler) RecordEntries(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RecordEntriesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	entries, err := h.accountingService.RecordEntries(r.Context(), toEntryInputs(req.Entries))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record ledger entries")
		return
	}

	log.Info("journal entry recorded", slog.Int("lines", len(entries)))
	shared.RespondWithJSON(w, r, http.StatusCreated, entries)
}

// ListEntries handles GET /ledger/entries requests. Supported query
// parameters: account, from, to, invoice_id, limit, offset. When invoice_id
// is present the other filters are ignored and the invoice's postings are
// returned in full.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("invoice_id"); raw != "" {
		invoiceID, err := uuid.Parse(raw)
		if err != nil {
			HandleAPIError(w, r,
				domain.NewValidationError("invoice_id", "has invalid format", domain.ErrInvalidID), "")
			return
		}
		entries, err := h.accountingService.EntriesForInvoice(r.Context(), invoiceID)
		if err != nil {
			HandleAPIError(w, r, err, "Failed to list invoice entries")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, entries)
		return
	}

	limit, offset, err := queryPage(r, 100)
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

	entries, err := h.accountingService.ListEntries(r.Context(), store.LedgerFilter{
		Account: domain.LedgerAccount(r.URL.Query().Get("account")),
		From:    from,
		To:      to,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list ledger entries")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, entries)
}

// GetEntry handles GET /ledger/entries/{id} requests.
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	entry, err := h.accountingService.GetEntry(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get ledger entry")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, entry)
}

// AccountBalance handles GET /ledger/balance/{account} requests. The as_of
// query parameter defaults to now.
func (h *LedgerHandler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	account := domain.LedgerAccount(chi.URLParam(r, "account"))
	if account == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Account is required")
		return
	}

	asOf, err := queryTime(r, "as_of")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	balance, err := h.accountingService.Balance(r.Context(), account, asOf)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute account balance")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{
		Account:      account,
		AsOf:         asOf,
		BalanceCents: balance,
	})
}

// TrialBalance handles GET /ledger/trial-balance requests. The as_of query
// parameter defaults to now.
func (h *LedgerHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryTime(r, "as_of")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	balance, err := h.accountingService.TrialBalance(r.Context(), asOf)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute trial balance")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, balance)
}
