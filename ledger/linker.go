/*
linker.go - Adjustment Linker

PURPOSE:
  The only writer of adjustments. Resolves the referenced invoice,
  validates quantities against what remains returnable, assigns the next
  per-invoice sequence number, and commits, all under a per-invoice
  lock, so two concurrent returns cannot both validate against the same
  stale remaining quantity and jointly over-return.

CONCURRENCY:
  One mutex per invoice id, nothing global. Invoices are independent;
  serializing appends per invoice is what guarantees monotonic, gapless
  sequence numbers. Reads (derivation) take no lock at all.

SIDE EFFECTS:
  Sequence assignment and the store append, nothing else. Inventory
  restocking is the caller's responsibility; the committed adjustment
  carries the return quantities unchanged for that purpose.

SEE ALSO:
  - derive.go: consumes the adjustments this linker commits
  - store.go: the append-only persistence contract
*/
package ledger

import (
	"context"
	"sync"
	"time"
)

// Linker validates candidate adjustments and appends them to the store
// with monotonic per-invoice sequence numbers.
type Linker struct {
	store Store

	mu    sync.Mutex
	locks map[InvoiceID]*sync.Mutex

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewLinker creates a Linker writing through the given store.
func NewLinker(store Store) *Linker {
	return &Linker{
		store: store,
		locks: make(map[InvoiceID]*sync.Mutex),
		Now:   time.Now,
	}
}

// lockFor returns the serialization point for one invoice, creating it
// on first use.
func (l *Linker) lockFor(id InvoiceID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// AttachReturn validates and commits a plain return.
func (l *Linker) AttachReturn(ctx context.Context, draft ReturnDraft) (Adjustment, error) {
	return l.attach(ctx, draft.InvoiceID, KindReturn, ReturnPortion{Lines: draft.Lines, Fee: draft.Fee}, nil)
}

// AttachExchange validates and commits an exchange. The issued portion
// is checked for well-formedness only; issued items are new sales, not
// drawn from any existing invoice.
func (l *Linker) AttachExchange(ctx context.Context, draft ExchangeDraft) (Adjustment, error) {
	if len(draft.Issued) == 0 {
		return Adjustment{}, ErrEmptyAdjustment
	}
	for i, li := range draft.Issued {
		switch {
		case li.ItemID == "":
			return Adjustment{}, &InvalidIssuedItemError{Index: i, Reason: "empty item id"}
		case li.Qty <= 0:
			return Adjustment{}, &InvalidIssuedItemError{Index: i, Reason: "quantity must be positive"}
		case li.UnitPrice.IsNegative():
			return Adjustment{}, &InvalidIssuedItemError{Index: i, Reason: "negative unit price"}
		}
	}
	return l.attach(ctx, draft.InvoiceID, KindExchange, ReturnPortion{Lines: draft.Lines, Fee: draft.Fee}, draft.Issued)
}

// attach is the validate-then-commit unit. It holds the per-invoice
// lock for the whole sequence so a reader never observes a partially
// written adjustment and a concurrent writer never sees a stale
// remaining quantity.
func (l *Linker) attach(ctx context.Context, invoiceID InvoiceID, kind AdjustmentKind, portion ReturnPortion, issued []LineItem) (Adjustment, error) {
	if len(portion.Lines) == 0 {
		return Adjustment{}, ErrEmptyAdjustment
	}
	if portion.Fee.IsNegative() {
		return Adjustment{}, ErrNegativeFee
	}

	lock := l.lockFor(invoiceID)
	lock.Lock()
	defer lock.Unlock()

	inv, err := l.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Adjustment{}, err
	}
	prior, err := l.store.Adjustments(ctx, invoiceID)
	if err != nil {
		return Adjustment{}, err
	}

	if err := validatePortion(inv, prior, portion); err != nil {
		return Adjustment{}, err
	}

	seq := len(prior) + 1
	adj := Adjustment{
		InvoiceID: invoiceID,
		Seq:       seq,
		Kind:      kind,
		Return: ReturnPortion{
			Lines: append([]ReturnLine(nil), portion.Lines...),
			Fee:   portion.Fee,
		},
		Issued:    append([]LineItem(nil), issued...),
		CreatedAt: l.Now().UTC(),
	}
	if kind == KindExchange {
		adj.ID = ExchangeAdjustmentID(invoiceID, seq)
	} else {
		adj.ID = ReturnAdjustmentID(invoiceID, seq)
	}

	if err := l.store.AppendAdjustment(ctx, adj); err != nil {
		return Adjustment{}, err
	}
	return adj, nil
}

// validatePortion checks every returned line against what remains
// returnable: original sold quantity minus everything already returned
// in prior adjustments (exchange return-portions included).
func validatePortion(inv *Invoice, prior []Adjustment, portion ReturnPortion) error {
	returned := make(map[ItemID]int)
	for _, adj := range prior {
		for _, line := range adj.Return.Lines {
			returned[line.ItemID] += line.Qty
		}
	}

	// Lines within the submission also count against each other.
	requested := make(map[ItemID]int)
	for _, line := range portion.Lines {
		if line.ItemID == "" || line.Qty <= 0 {
			return ErrEmptyAdjustment
		}
		requested[line.ItemID] += line.Qty
	}

	for _, line := range portion.Lines {
		sold := inv.SoldQty(line.ItemID)
		if sold == 0 {
			return &OverReturnError{InvoiceID: inv.ID, ItemID: line.ItemID, Requested: line.Qty, Remaining: 0}
		}
		remaining := sold - returned[line.ItemID]
		if remaining < 0 {
			remaining = 0
		}
		if requested[line.ItemID] > remaining {
			return &OverReturnError{
				InvoiceID: inv.ID,
				ItemID:    line.ItemID,
				Requested: requested[line.ItemID],
				Remaining: remaining,
			}
		}
	}
	return nil
}
