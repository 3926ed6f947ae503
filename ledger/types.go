/*
Package ledger is the core of the invoice adjustment system.

PURPOSE:
  Tracks retail sales invoices and the returns/exchanges made against
  them, and derives a single authoritative "net" view per invoice
  without ever mutating the original sale record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: immutable snapshot of an original sale
  - Adjustment: a return or exchange event linked to exactly one invoice
  - ReturnPortion: the shared "items coming back" substructure
  - LineItem: {item id, quantity, unit price}, used by both invoices
    and the issued portion of exchanges

DESIGN PRINCIPLES:
  1. Immutability: invoices are written once; adjustments are additive
     facts layered on top, never edits
  2. Precision: decimal.Decimal for all money, int for quantities
  3. Composition over hierarchy: an exchange is a return-portion plus
     an issued-items portion, not a subclass of a return

SEE ALSO:
  - linker.go: validates and sequences adjustments
  - derive.go: computes the net view from (invoice, adjustments)
  - store.go: persistence contract
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// InvoiceID is the unique invoice code. Its format (prefix, padding) is
// owned by the caller; the ledger only requires uniqueness.
type InvoiceID string

// ItemID identifies a stock item. Items live in external inventory
// databases; the ledger treats ids as opaque.
type ItemID string

// AdjustmentKind tags the two adjustment variants.
type AdjustmentKind string

const (
	KindReturn   AdjustmentKind = "return"
	KindExchange AdjustmentKind = "exchange"
)

// ReturnAdjustmentID derives the identifier for a plain return,
// e.g. RTN-INV-00001-1.
func ReturnAdjustmentID(invoiceID InvoiceID, seq int) string {
	return fmt.Sprintf("RTN-%s-%d", invoiceID, seq)
}

// ExchangeAdjustmentID derives the identifier for an exchange,
// e.g. EX-INV-00001-1.
func ExchangeAdjustmentID(invoiceID InvoiceID, seq int) string {
	return fmt.Sprintf("EX-%s-%d", invoiceID, seq)
}

// =============================================================================
// INVOICE - Immutable original sale
// =============================================================================

// LineItem is one row of an invoice (or of an exchange's issued portion).
type LineItem struct {
	ItemID      ItemID
	Description string
	Qty         int
	UnitPrice   decimal.Decimal
}

// Total returns qty x unit price.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Qty)))
}

// DiscountKind selects how Discount.Value is interpreted.
type DiscountKind string

const (
	DiscountAmount  DiscountKind = "amount"  // flat deduction
	DiscountPercent DiscountKind = "percent" // percentage of subtotal
)

// Discount is applied once to the invoice subtotal at creation time.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Apply returns the discounted subtotal, floored at zero.
func (d Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	var total decimal.Decimal
	switch d.Kind {
	case DiscountPercent:
		total = subtotal.Sub(subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)))
	default:
		total = subtotal.Sub(d.Value)
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Invoice is the immutable record of an original sale.
//
// INVARIANT: once created, no field is ever altered. Returns and
// exchanges never touch the invoice; they are separate Adjustment
// records linked by InvoiceID.
type Invoice struct {
	ID         InvoiceID
	Customer   string
	Date       time.Time
	Items      []LineItem
	Discount   Discount
	GrandTotal decimal.Decimal // computed at creation, stored, never recomputed
}

// NewInvoice builds an invoice and computes its grand total from the
// line items and discount. An invoice with zero line items is invalid.
func NewInvoice(id InvoiceID, customer string, date time.Time, items []LineItem, discount Discount) (Invoice, error) {
	if len(items) == 0 {
		return Invoice{}, ErrEmptyInvoice
	}
	for i, li := range items {
		if li.ItemID == "" || li.Qty <= 0 || li.UnitPrice.IsNegative() {
			return Invoice{}, &InvalidLineItemError{Index: i, Item: li}
		}
	}
	inv := Invoice{
		ID:       id,
		Customer: customer,
		Date:     date,
		Items:    append([]LineItem(nil), items...),
		Discount: discount,
	}
	inv.GrandTotal = discount.Apply(inv.Subtotal())
	return inv, nil
}

// Subtotal sums the line item totals before discount.
func (inv Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range inv.Items {
		sum = sum.Add(li.Total())
	}
	return sum
}

// GrossQty sums quantities across all line items.
func (inv Invoice) GrossQty() int {
	n := 0
	for _, li := range inv.Items {
		n += li.Qty
	}
	return n
}

// SoldQty returns the originally sold quantity of one item id, summed
// across lines.
func (inv Invoice) SoldQty(itemID ItemID) int {
	n := 0
	for _, li := range inv.Items {
		if li.ItemID == itemID {
			n += li.Qty
		}
	}
	return n
}

// UnitPriceOf returns the original unit price for an item id (first
// matching line) and whether the item appears on the invoice.
func (inv Invoice) UnitPriceOf(itemID ItemID) (decimal.Decimal, bool) {
	for _, li := range inv.Items {
		if li.ItemID == itemID {
			return li.UnitPrice, true
		}
	}
	return decimal.Zero, false
}

// =============================================================================
// ADJUSTMENT - Return or exchange, linked to exactly one invoice
// =============================================================================

// ReturnLine is one returned item: a subset of the original sale.
type ReturnLine struct {
	ItemID ItemID
	Qty    int
}

// ReturnPortion is the "items coming back" half of an adjustment. Both
// plain returns and exchanges carry exactly one.
//
// Fee is the flat return-processing charge. It may be zero and is still
// recorded: a zero fee on a return is a fact, distinct from no return
// having happened.
type ReturnPortion struct {
	Lines []ReturnLine
	Fee   decimal.Decimal
}

// Qty sums the returned quantities.
func (rp ReturnPortion) Qty() int {
	n := 0
	for _, l := range rp.Lines {
		n += l.Qty
	}
	return n
}

// Adjustment is an immutable return or exchange event.
//
// INVARIANTS:
//   - references exactly one invoice
//   - Seq is monotonic per invoice, starting at 1, assigned by the Linker
//   - Issued is populated only for KindExchange; issued items are new
//     sales, not drawn from the original invoice
type Adjustment struct {
	ID        string // RTN-<invoice>-<seq> or EX-<invoice>-<seq>
	InvoiceID InvoiceID
	Seq       int
	Kind      AdjustmentKind
	Return    ReturnPortion
	Issued    []LineItem
	CreatedAt time.Time
}

// IssuedQty sums issued quantities (zero for plain returns).
func (a Adjustment) IssuedQty() int {
	n := 0
	for _, li := range a.Issued {
		n += li.Qty
	}
	return n
}

// IssuedTotal sums the value of the issued portion.
func (a Adjustment) IssuedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range a.Issued {
		sum = sum.Add(li.Total())
	}
	return sum
}

// =============================================================================
// DRAFTS - Unvalidated submissions, turned into Adjustments by the Linker
// =============================================================================

// ReturnDraft is a candidate plain return.
type ReturnDraft struct {
	InvoiceID InvoiceID
	Lines     []ReturnLine
	Fee       decimal.Decimal
}

// ExchangeDraft is a candidate exchange: items coming back plus items
// going out.
type ExchangeDraft struct {
	InvoiceID InvoiceID
	Lines     []ReturnLine
	Fee       decimal.Decimal
	Issued    []LineItem
}
