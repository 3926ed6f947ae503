/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every adjustment submission failure is one of these; submissions are
  rejected synchronously with a specific reason, never partially applied.

ERROR CATEGORIES:
  1. Linking errors - adjustment references or quantities are invalid
  2. Store errors - duplicate keys on the append-only tables

USAGE:
  if errors.Is(err, ledger.ErrOverReturn) { ... }

  var over *ledger.OverReturnError
  if errors.As(err, &over) {
      // over.ItemID, over.Remaining
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvoiceNotFound is returned when a referenced invoice id does
	// not resolve to a stored invoice.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrOverReturn is returned when a requested return quantity exceeds
	// what remains returnable for that item.
	ErrOverReturn = errors.New("return quantity exceeds remaining returnable quantity")

	// ErrEmptyAdjustment is returned when an adjustment references no
	// items (for exchanges: either portion empty).
	ErrEmptyAdjustment = errors.New("adjustment references no items")

	// ErrInvalidIssuedItem is returned when an exchange's issued portion
	// is malformed.
	ErrInvalidIssuedItem = errors.New("invalid issued item")

	// ErrNegativeFee is returned when an adjustment carries a negative
	// return fee. Zero is valid and is recorded.
	ErrNegativeFee = errors.New("return fee must not be negative")

	// ErrEmptyInvoice is returned when creating an invoice with zero
	// line items.
	ErrEmptyInvoice = errors.New("invoice has no line items")

	// ErrDuplicateInvoice is returned by stores when an invoice id
	// already exists. Invoices are written once.
	ErrDuplicateInvoice = errors.New("invoice already exists")

	// ErrDuplicateAdjustment is returned by stores when the
	// (invoice id, sequence) key already exists. Sequence slots are
	// never reused; only one submission may win per slot.
	ErrDuplicateAdjustment = errors.New("adjustment sequence already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverReturnError names the offending item and how much of it can
// still be returned.
type OverReturnError struct {
	InvoiceID InvoiceID
	ItemID    ItemID
	Requested int
	Remaining int
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("over-return on %s item %s: requested %d, %d remaining returnable",
		e.InvoiceID, e.ItemID, e.Requested, e.Remaining)
}

func (e *OverReturnError) Unwrap() error { return ErrOverReturn }

// InvalidIssuedItemError points at the malformed entry in an exchange's
// issued portion.
type InvalidIssuedItemError struct {
	Index  int
	Reason string
}

func (e *InvalidIssuedItemError) Error() string {
	return fmt.Sprintf("issued item %d: %s", e.Index, e.Reason)
}

func (e *InvalidIssuedItemError) Unwrap() error { return ErrInvalidIssuedItem }

// InvalidLineItemError reports a malformed invoice line at creation.
type InvalidLineItemError struct {
	Index int
	Item  LineItem
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("line item %d is malformed (item %q, qty %d)", e.Index, e.Item.ItemID, e.Item.Qty)
}

func (e *InvalidLineItemError) Unwrap() error { return ErrEmptyInvoice }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid input and
// maps to a 4xx at the API boundary.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOverReturn) ||
		errors.Is(err, ErrEmptyAdjustment) ||
		errors.Is(err, ErrInvalidIssuedItem) ||
		errors.Is(err, ErrNegativeFee) ||
		errors.Is(err, ErrEmptyInvoice)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

// IsConflict reports whether the error indicates a duplicate key on an
// append-only table.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateInvoice) ||
		errors.Is(err, ErrDuplicateAdjustment)
}
