/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry struct tags consumed by go-playground/validator.
  Handlers run the validator before touching domain logic; domain
  invariants (over-return, duplicate ids) stay in the ledger package.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain model these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LineItemRequest is one sold or issued line in a request body.
type LineItemRequest struct {
	ItemID      string  `json:"item_id" validate:"required"`
	Description string  `json:"description"`
	Qty         int     `json:"qty" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// CreateInvoiceRequest is the request to record a sale.
type CreateInvoiceRequest struct {
	ID            string            `json:"id" validate:"required"`
	Customer      string            `json:"customer"`
	Date          string            `json:"date" validate:"required"`
	Items         []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountKind  string            `json:"discount_kind" validate:"omitempty,oneof=amount percent"`
	DiscountValue float64           `json:"discount_value" validate:"gte=0"`
}

// ReturnLineRequest is one returned line.
type ReturnLineRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Qty    int    `json:"qty" validate:"gt=0"`
}

// CreateReturnRequest is the request to attach a return to an invoice.
type CreateReturnRequest struct {
	Lines []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
	Fee   float64             `json:"fee" validate:"gte=0"`
}

// CreateExchangeRequest is the request to attach an exchange.
type CreateExchangeRequest struct {
	Lines  []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
	Fee    float64             `json:"fee" validate:"gte=0"`
	Issued []LineItemRequest   `json:"issued" validate:"required,min=1,dive"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LineItemDTO represents a sold or issued line.
type LineItemDTO struct {
	ItemID      string  `json:"item_id"`
	Description string  `json:"description,omitempty"`
	Qty         int     `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// InvoiceDTO represents a stored invoice.
type InvoiceDTO struct {
	ID            string        `json:"id"`
	Customer      string        `json:"customer"`
	Date          string        `json:"date"`
	Items         []LineItemDTO `json:"items"`
	DiscountKind  string        `json:"discount_kind"`
	DiscountValue float64       `json:"discount_value"`
	Subtotal      float64       `json:"subtotal"`
	GrandTotal    float64       `json:"grand_total"`
}

// ReturnLineDTO represents one returned line.
type ReturnLineDTO struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

// AdjustmentDTO represents a committed return or exchange.
type AdjustmentDTO struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Seq       int             `json:"seq"`
	Kind      string          `json:"kind"`
	Lines     []ReturnLineDTO `json:"lines"`
	Fee       float64         `json:"fee"`
	Issued    []LineItemDTO   `json:"issued,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// RowDTO is a derived ledger row.
type RowDTO struct {
	InvoiceID         string   `json:"invoice_id"`
	Customer          string   `json:"customer"`
	Date              string   `json:"date"`
	GrossQty          int      `json:"gross_qty"`
	GrossAmount       float64  `json:"gross_amount"`
	ReturnedQty       int      `json:"returned_qty"`
	ReturnedAmount    float64  `json:"returned_amount"`
	ExchangeIssuedQty int      `json:"exchange_issued_qty"`
	ExchangeAmount    float64  `json:"exchange_amount"`
	TotalReturnFees   float64  `json:"total_return_fees"`
	NetQty            int      `json:"net_qty"`
	NetAmount         float64  `json:"net_amount"`
	Status            string   `json:"status"`
	FeeApplied        bool     `json:"fee_applied"`
	AdjustmentCount   int      `json:"adjustment_count"`
	Warnings          []string `json:"warnings,omitempty"`
}

// DocumentDTO wraps a rendered plain-text document.
type DocumentDTO struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// ErrorResponse is the error body for all non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLineItemDTO(li ledger.LineItem) LineItemDTO {
	return LineItemDTO{
		ItemID:      string(li.ItemID),
		Description: li.Description,
		Qty:         li.Qty,
		UnitPrice:   li.UnitPrice.InexactFloat64(),
		Total:       li.Total().InexactFloat64(),
	}
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	items := make([]LineItemDTO, len(inv.Items))
	for i, li := range inv.Items {
		items[i] = toLineItemDTO(li)
	}
	return InvoiceDTO{
		ID:            string(inv.ID),
		Customer:      inv.Customer,
		Date:          inv.Date.Format("2006-01-02"),
		Items:         items,
		DiscountKind:  string(inv.Discount.Kind),
		DiscountValue: inv.Discount.Value.InexactFloat64(),
		Subtotal:      inv.Subtotal().InexactFloat64(),
		GrandTotal:    inv.GrandTotal.InexactFloat64(),
	}
}

func toAdjustmentDTO(adj ledger.Adjustment) AdjustmentDTO {
	lines := make([]ReturnLineDTO, len(adj.Return.Lines))
	for i, l := range adj.Return.Lines {
		lines[i] = ReturnLineDTO{ItemID: string(l.ItemID), Qty: l.Qty}
	}
	var issued []LineItemDTO
	for _, li := range adj.Issued {
		issued = append(issued, toLineItemDTO(li))
	}
	return AdjustmentDTO{
		ID:        adj.ID,
		InvoiceID: string(adj.InvoiceID),
		Seq:       adj.Seq,
		Kind:      string(adj.Kind),
		Lines:     lines,
		Fee:       adj.Return.Fee.InexactFloat64(),
		Issued:    issued,
		CreatedAt: adj.CreatedAt.Format(time.RFC3339),
	}
}

func toRowDTO(row ledger.Row) RowDTO {
	return RowDTO{
		InvoiceID:         string(row.InvoiceID),
		Customer:          row.Customer,
		Date:              row.Date.Format("2006-01-02"),
		GrossQty:          row.GrossQty,
		GrossAmount:       row.GrossAmount.InexactFloat64(),
		ReturnedQty:       row.ReturnedQty,
		ReturnedAmount:    row.ReturnedAmount.InexactFloat64(),
		ExchangeIssuedQty: row.ExchangeIssuedQty,
		ExchangeAmount:    row.ExchangeAmount.InexactFloat64(),
		TotalReturnFees:   row.TotalReturnFees.InexactFloat64(),
		NetQty:            row.NetQty,
		NetAmount:         row.NetAmount.InexactFloat64(),
		Status:            string(row.Status),
		FeeApplied:        row.FeeApplied,
		AdjustmentCount:   row.AdjustmentCount,
		Warnings:          row.Warnings,
	}
}

func toLineItems(reqs []LineItemRequest) []ledger.LineItem {
	items := make([]ledger.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = ledger.LineItem{
			ItemID:      ledger.ItemID(r.ItemID),
			Description: r.Description,
			Qty:         r.Qty,
			UnitPrice:   decimal.NewFromFloat(r.UnitPrice),
		}
	}
	return items
}

func toReturnLines(reqs []ReturnLineRequest) []ledger.ReturnLine {
	lines := make([]ledger.ReturnLine, len(reqs))
	for i, r := range reqs {
		lines[i] = ledger.ReturnLine{ItemID: ledger.ItemID(r.ItemID), Qty: r.Qty}
	}
	return lines
}
