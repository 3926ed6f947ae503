package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/ledger/store"
)

func seedThreeInvoices(t *testing.T, s ledger.Store) {
	t.Helper()
	ctx := context.Background()
	dates := []time.Time{
		time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
	customers := []string{"Ali Hardware", "Bashir & Sons", "Ali Hardware"}
	ids := []ledger.InvoiceID{"INV-00001", "INV-00002", "INV-00003"}

	for i := range ids {
		inv, err := ledger.NewInvoice(ids[i], customers[i], dates[i],
			[]ledger.LineItem{{ItemID: "item-a", Qty: 2, UnitPrice: dec("100")}},
			ledger.Discount{Kind: ledger.DiscountAmount, Value: decimal.Zero})
		require.NoError(t, err)
		require.NoError(t, s.SaveInvoice(ctx, inv))
	}
}

func TestViews_Row_NotFound(t *testing.T) {
	views := ledger.NewViews(store.NewMemory())
	_, err := views.Row(context.Background(), "INV-MISSING")
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

func TestViews_Row_ReflectsNewAdjustmentImmediately(t *testing.T) {
	// GIVEN: A derived row read before and after attaching a return
	// THEN: The second read reflects the return with no invalidation step

	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	linker := ledger.NewLinker(mem)
	seedThreeInvoices(t, mem)
	ctx := context.Background()

	before, err := views.Row(ctx, "INV-00001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusNormal, before.Status)

	_, err = linker.AttachReturn(ctx, ledger.ReturnDraft{
		InvoiceID: "INV-00001",
		Lines:     []ledger.ReturnLine{{ItemID: "item-a", Qty: 1}},
	})
	require.NoError(t, err)

	after, err := views.Row(ctx, "INV-00001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartialReturn, after.Status)
	assert.Equal(t, 1, after.ReturnedQty)
}

func TestViews_List_AllRowsInIDOrder(t *testing.T) {
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	seedThreeInvoices(t, mem)

	rows, err := views.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ledger.InvoiceID("INV-00001"), rows[0].InvoiceID)
	assert.Equal(t, ledger.InvoiceID("INV-00003"), rows[2].InvoiceID)
}

func TestViews_List_FilterByCustomer(t *testing.T) {
	// Customer matching is a case-insensitive substring.
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	seedThreeInvoices(t, mem)

	rows, err := views.List(context.Background(), ledger.Filter{Customer: "ali"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestViews_List_FilterByStatus(t *testing.T) {
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	linker := ledger.NewLinker(mem)
	seedThreeInvoices(t, mem)
	ctx := context.Background()

	_, err := linker.AttachReturn(ctx, ledger.ReturnDraft{
		InvoiceID: "INV-00002",
		Lines:     []ledger.ReturnLine{{ItemID: "item-a", Qty: 2}},
	})
	require.NoError(t, err)

	rows, err := views.List(ctx, ledger.Filter{Status: ledger.StatusFullReturn})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.InvoiceID("INV-00002"), rows[0].InvoiceID)
}

func TestViews_List_FilterByDateRange(t *testing.T) {
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	seedThreeInvoices(t, mem)

	from := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)
	rows, err := views.List(context.Background(), ledger.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.InvoiceID("INV-00002"), rows[0].InvoiceID)
}

func TestViews_Each_EarlyStop(t *testing.T) {
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	seedThreeInvoices(t, mem)

	var seen int
	err := views.Each(context.Background(), ledger.Filter{}, func(ledger.Row) bool {
		seen++
		return seen < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

func TestViews_Each_RestartsFromBeginning(t *testing.T) {
	// Every Each call re-derives from the full invoice list.
	mem := store.NewMemory()
	views := ledger.NewViews(mem)
	seedThreeInvoices(t, mem)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		var first ledger.InvoiceID
		err := views.Each(ctx, ledger.Filter{}, func(r ledger.Row) bool {
			first = r.InvoiceID
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceID("INV-00001"), first)
	}
}
