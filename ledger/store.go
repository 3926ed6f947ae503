/*
store.go - Persistence interface for invoices and adjustments

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations keep the two source tables append-only; no derived
  values are ever persisted.

APPEND-ONLY CONTRACT:
  - SaveInvoice():      write-once; duplicate ids are rejected
  - AppendAdjustment(): keyed by (invoice id, seq); a slot is never
                        reused or overwritten
  - NO Update() or Delete() methods exist

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - ledger/store: in-memory for testing

SEE ALSO:
  - linker.go: the only writer of adjustments
  - view.go: derives rows from Store reads
*/
package ledger

import "context"

// Store persists Invoice and Adjustment records.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// SaveInvoice persists an invoice. Returns ErrDuplicateInvoice if
	// the id already exists; invoices are never modified after creation.
	SaveInvoice(ctx context.Context, inv Invoice) error

	// GetInvoice returns the invoice or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	// ListInvoices returns all invoices ordered by id.
	ListInvoices(ctx context.Context) ([]Invoice, error)

	// AppendAdjustment persists an adjustment. Returns
	// ErrDuplicateAdjustment if (invoice id, seq) is already taken and
	// ErrInvoiceNotFound if the invoice does not exist.
	AppendAdjustment(ctx context.Context, adj Adjustment) error

	// Adjustments returns all adjustments for an invoice ordered by
	// sequence (creation order). An invoice with no adjustments yields
	// an empty slice, not an error.
	Adjustments(ctx context.Context, id InvoiceID) ([]Adjustment, error)
}
