// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	invoices    map[ledger.InvoiceID]ledger.Invoice
	adjustments map[ledger.InvoiceID][]ledger.Adjustment
}

func NewMemory() *Memory {
	return &Memory{
		invoices:    make(map[ledger.InvoiceID]ledger.Invoice),
		adjustments: make(map[ledger.InvoiceID][]ledger.Adjustment),
	}
}

// SaveInvoice stores an invoice. Write-once.
func (m *Memory) SaveInvoice(_ context.Context, inv ledger.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.invoices[inv.ID]; exists {
		return ledger.ErrDuplicateInvoice
	}
	inv.Items = append([]ledger.LineItem(nil), inv.Items...)
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, ledger.ErrInvoiceNotFound
	}
	out := inv
	out.Items = append([]ledger.LineItem(nil), inv.Items...)
	return &out, nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		inv.Items = append([]ledger.LineItem(nil), inv.Items...)
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AppendAdjustment adds an adjustment. Append-only: a sequence slot is
// never reused.
func (m *Memory) AppendAdjustment(_ context.Context, adj ledger.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[adj.InvoiceID]; !ok {
		return ledger.ErrInvoiceNotFound
	}
	for _, existing := range m.adjustments[adj.InvoiceID] {
		if existing.Seq == adj.Seq {
			return ledger.ErrDuplicateAdjustment
		}
	}
	adj.Return.Lines = append([]ledger.ReturnLine(nil), adj.Return.Lines...)
	adj.Issued = append([]ledger.LineItem(nil), adj.Issued...)

	txs := append(m.adjustments[adj.InvoiceID], adj)
	sort.Slice(txs, func(i, j int) bool { return txs[i].Seq < txs[j].Seq })
	m.adjustments[adj.InvoiceID] = txs
	return nil
}

func (m *Memory) Adjustments(_ context.Context, id ledger.InvoiceID) ([]ledger.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Adjustment, len(m.adjustments[id]))
	copy(result, m.adjustments[id])
	return result, nil
}
