/*
handlers.go - HTTP API handlers for the invoice ledger

PURPOSE:
  Exposes the invoice ledger via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                    List all invoices
    POST   /api/invoices                    Record a sale
    GET    /api/invoices/{id}               Get the stored invoice
    GET    /api/invoices/{id}/document      Reprint the original bill

  Adjustments:
    GET    /api/invoices/{id}/adjustments             Adjustment history
    POST   /api/invoices/{id}/returns                 Attach a return
    POST   /api/invoices/{id}/exchanges               Attach an exchange
    GET    /api/invoices/{id}/adjustments/{seq}/document  Reprint a note

  Ledger:
    GET    /api/invoices/{id}/ledger        Derived row for one invoice
    GET    /api/ledger                      Derived rows, filterable

REQUEST FLOW:
  1. Decode JSON body
  2. Validate with go-playground/validator
  3. Call domain logic (linker, views, renderer)
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, over-return, malformed input
  - 404: Invoice not found
  - 409: Duplicate invoice or sequence conflict
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/render"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Linker   *ledger.Linker
	Views    *ledger.Views
	Renderer *render.Renderer

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a handler over the given store.
func NewHandler(store ledger.Store, renderer *render.Renderer, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Linker:   ledger.NewLinker(store),
		Views:    ledger.NewViews(store),
		Renderer: renderer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns all stored invoices in id order.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInvoice records a sale. The invoice is immutable once stored.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	discount := ledger.Discount{
		Kind:  ledger.DiscountKind(req.DiscountKind),
		Value: decimal.NewFromFloat(req.DiscountValue),
	}
	if discount.Kind == "" {
		discount.Kind = ledger.DiscountAmount
	}

	inv, err := ledger.NewInvoice(ledger.InvoiceID(req.ID), req.Customer, date, toLineItems(req.Items), discount)
	if err != nil {
		h.writeDomainError(w, "Invalid invoice", err)
		return
	}
	if err := h.Store.SaveInvoice(r.Context(), inv); err != nil {
		h.writeDomainError(w, "Failed to save invoice", err)
		return
	}

	h.log.Info().Str("invoice_id", req.ID).Int("items", len(inv.Items)).Msg("invoice recorded")
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// GetInvoice returns the stored invoice record.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// ListAdjustments returns the adjustment history in sequence order.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetInvoice(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	adjs, err := h.Store.Adjustments(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjs))
	for i, adj := range adjs {
		dtos[i] = toAdjustmentDTO(adj)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReturn attaches a return to an invoice.
func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))

	var req CreateReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	adj, err := h.Linker.AttachReturn(r.Context(), ledger.ReturnDraft{
		InvoiceID: id,
		Lines:     toReturnLines(req.Lines),
		Fee:       decimal.NewFromFloat(req.Fee),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to attach return", err)
		return
	}

	h.log.Info().Str("adjustment_id", adj.ID).Int("seq", adj.Seq).Msg("return attached")
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// CreateExchange attaches an exchange to an invoice.
func (h *Handler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))

	var req CreateExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	adj, err := h.Linker.AttachExchange(r.Context(), ledger.ExchangeDraft{
		InvoiceID: id,
		Lines:     toReturnLines(req.Lines),
		Fee:       decimal.NewFromFloat(req.Fee),
		Issued:    toLineItems(req.Issued),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to attach exchange", err)
		return
	}

	h.log.Info().Str("adjustment_id", adj.ID).Int("seq", adj.Seq).Msg("exchange attached")
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// =============================================================================
// LEDGER VIEW HANDLERS
// =============================================================================

// GetRow returns the derived ledger row for one invoice. Derived fresh
// on every call; nothing is cached.
func (h *Handler) GetRow(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	row, err := h.Views.Row(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to derive ledger row", err)
		return
	}
	writeJSON(w, http.StatusOK, toRowDTO(row))
}

// ListRows returns derived rows for all invoices, filterable by
// status, customer, and date range query parameters.
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	filter := ledger.Filter{
		Status:   ledger.Status(r.URL.Query().Get("status")),
		Customer: r.URL.Query().Get("customer"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.To = &t
	}

	rows, err := h.Views.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to derive ledger", err)
		return
	}

	dtos := make([]RowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// GetInvoiceDocument reprints the original bill from the stored record.
// The terms block is the only part informed by the derived row: the
// fee clause appears once any adjustment recorded a fee.
func (h *Handler) GetInvoiceDocument(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	row, err := h.Views.Row(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to derive ledger row", err)
		return
	}
	text, err := h.Renderer.InvoiceForRow(*inv, row)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render document", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentDTO{Kind: "invoice", Text: text})
}

// GetAdjustmentDocument reprints a return or exchange note.
func (h *Handler) GetAdjustmentDocument(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 1 {
		writeError(w, http.StatusBadRequest, "Invalid sequence number", err)
		return
	}

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	adjs, err := h.Store.Adjustments(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list adjustments", err)
		return
	}

	for _, adj := range adjs {
		if adj.Seq != seq {
			continue
		}
		text, err := h.Renderer.Adjustment(*inv, adj)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to render document", err)
			return
		}
		writeJSON(w, http.StatusOK, DocumentDTO{Kind: string(adj.Kind), Text: text})
		return
	}
	writeError(w, http.StatusNotFound, "Adjustment not found", nil)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
