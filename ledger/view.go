/*
view.go - Ledger View Repository

PURPOSE:
  The single read API over all invoices. Owns no mutable derived state:
  it holds only the store and re-invokes DeriveRow per query, so a newly
  attached adjustment is reflected on the very next read with no
  invalidation logic.

SEE ALSO:
  - derive.go: the pure projection invoked here
*/
package ledger

import (
	"context"
	"strings"
	"time"
)

// Filter narrows List/Each results. Zero value matches everything.
type Filter struct {
	Status   Status // exact match when non-empty
	Customer string // case-insensitive substring when non-empty
	From, To *time.Time
}

func (f Filter) matches(row Row) bool {
	if f.Status != "" && row.Status != f.Status {
		return false
	}
	if f.Customer != "" && !strings.Contains(strings.ToLower(row.Customer), strings.ToLower(f.Customer)) {
		return false
	}
	if f.From != nil && row.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && row.Date.After(*f.To) {
		return false
	}
	return true
}

// Views derives ledger rows on demand. Stateless apart from the store
// reference; safe for concurrent use.
type Views struct {
	store Store
}

// NewViews creates the read API over a store.
func NewViews(store Store) *Views {
	return &Views{store: store}
}

// Row derives the current net view for one invoice.
// Returns ErrInvoiceNotFound if the id is unknown.
func (v *Views) Row(ctx context.Context, id InvoiceID) (Row, error) {
	inv, err := v.store.GetInvoice(ctx, id)
	if err != nil {
		return Row{}, err
	}
	adjs, err := v.store.Adjustments(ctx, id)
	if err != nil {
		return Row{}, err
	}
	return DeriveRow(*inv, adjs), nil
}

// Each derives rows for all invoices in id order, calling fn for each
// row matching the filter. fn returning false stops the iteration.
// Every call restarts from the beginning and recomputes every row.
func (v *Views) Each(ctx context.Context, f Filter, fn func(Row) bool) error {
	invoices, err := v.store.ListInvoices(ctx)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		adjs, err := v.store.Adjustments(ctx, inv.ID)
		if err != nil {
			return err
		}
		row := DeriveRow(inv, adjs)
		if !f.matches(row) {
			continue
		}
		if !fn(row) {
			return nil
		}
	}
	return nil
}

// List collects all matching rows.
func (v *Views) List(ctx context.Context, f Filter) ([]Row, error) {
	rows := []Row{}
	err := v.Each(ctx, f, func(r Row) bool {
		rows = append(rows, r)
		return true
	})
	return rows, err
}
