/*
derive.go - Ledger Derivation Engine

PURPOSE:
  Computes the net view of one invoice from the immutable source records.
  This is the central calculation: there is no stored "net" column that
  can drift out of sync, every reader replays the adjustment history.

CRITICAL INVARIANTS:
  1. PURE: DeriveRow has no side effects and does no I/O
  2. IDEMPOTENT: same (invoice, ordered adjustments) in, identical Row out
  3. TOTAL: never fails on well-formed inputs; malformed ones were
     rejected by the Linker, so the engine clamps instead of crashing

WHY DERIVE-ON-READ?
  Caching net summaries alongside the source tables is the classic
  dual-write consistency bug. Recomputing from (invoices, adjustments)
  through one pure function means a newly attached adjustment is
  reflected on the very next read with no invalidation logic.

SEE ALSO:
  - view.go: invokes DeriveRow per query
  - linker.go: guarantees the inputs are well-formed
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Classification of an invoice's adjustment history
// =============================================================================

// Status summarizes an invoice's current adjustment history.
type Status string

const (
	StatusNormal        Status = "NORMAL"
	StatusPartialReturn Status = "PARTIAL RETURN"
	StatusFullReturn    Status = "FULL RETURN"
	StatusExchange      Status = "EXCHANGE"
)

// =============================================================================
// ROW - Derived net view, never persisted
// =============================================================================

// Row is the ephemeral projection for one invoice, computed at read
// time. Gross values are copied from the invoice; everything else is
// summed from the adjustment history.
type Row struct {
	InvoiceID InvoiceID
	Customer  string
	Date      time.Time

	GrossQty    int
	GrossAmount decimal.Decimal

	// Summed over the return-portions of ALL adjustments, exchanges
	// included.
	ReturnedQty    int
	ReturnedAmount decimal.Decimal

	// Issued quantities, and the signed price delta of all exchanges
	// (issued value minus return-portion value). Negative means a
	// refund was owed, positive an additional payment.
	ExchangeIssuedQty int
	ExchangeAmount    decimal.Decimal

	TotalReturnFees decimal.Decimal

	NetQty    int
	NetAmount decimal.Decimal

	Status Status

	// FeeApplied distinguishes "no return occurred" from "a return
	// occurred with a zero fee": true whenever any adjustment exists,
	// since every adjustment records its fee, zero included.
	FeeApplied bool

	AdjustmentCount int

	// Warnings flags defensive clamps (data that should have been
	// rejected upstream). Operators see these; report generation does
	// not crash on them.
	Warnings []string
}

// =============================================================================
// DERIVATION
// =============================================================================

// DeriveRow computes the net view of one invoice from its ordered
// adjustments. Pure function: calling it twice with the same inputs
// yields an identical Row.
//
// An invoice with zero line items should have been rejected at creation;
// if one arrives anyway the result is a zero row with status NORMAL.
func DeriveRow(inv Invoice, adjustments []Adjustment) Row {
	row := Row{
		InvoiceID:       inv.ID,
		Customer:        inv.Customer,
		Date:            inv.Date,
		GrossQty:        inv.GrossQty(),
		GrossAmount:     inv.GrandTotal,
		ReturnedAmount:  decimal.Zero,
		ExchangeAmount:  decimal.Zero,
		TotalReturnFees: decimal.Zero,
		AdjustmentCount: len(adjustments),
	}

	hasExchange := false
	for _, adj := range adjustments {
		portionValue := decimal.Zero
		for _, line := range adj.Return.Lines {
			price, ok := inv.UnitPriceOf(line.ItemID)
			if !ok {
				row.Warnings = append(row.Warnings,
					fmt.Sprintf("%s: returned item %s not on invoice, valued at zero", adj.ID, line.ItemID))
			}
			row.ReturnedQty += line.Qty
			portionValue = portionValue.Add(price.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
		row.ReturnedAmount = row.ReturnedAmount.Add(portionValue)
		row.TotalReturnFees = row.TotalReturnFees.Add(adj.Return.Fee)

		if adj.Kind == KindExchange {
			hasExchange = true
			row.ExchangeIssuedQty += adj.IssuedQty()
			// Signed price difference, not gross turnover.
			row.ExchangeAmount = row.ExchangeAmount.Add(adj.IssuedTotal().Sub(portionValue))
		}
	}

	row.NetQty = row.GrossQty - row.ReturnedQty + row.ExchangeIssuedQty
	if row.NetQty < 0 {
		row.Warnings = append(row.Warnings,
			fmt.Sprintf("net quantity %d clamped to zero: returns exceed original sale", row.NetQty))
		row.NetQty = 0
	}
	row.NetAmount = row.GrossAmount.
		Sub(row.ReturnedAmount).
		Add(row.ExchangeAmount).
		Sub(row.TotalReturnFees)

	row.FeeApplied = !row.TotalReturnFees.IsZero() || len(adjustments) > 0

	// Precedence: exchange dominates, then full vs partial return.
	switch {
	case len(adjustments) == 0:
		row.Status = StatusNormal
	case hasExchange:
		row.Status = StatusExchange
	case row.GrossQty > 0 && row.ReturnedQty >= row.GrossQty:
		row.Status = StatusFullReturn
	default:
		row.Status = StatusPartialReturn
	}

	return row
}
