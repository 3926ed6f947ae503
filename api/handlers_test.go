/*
handlers_test.go - HTTP tests for the ledger API

Exercises the full request flow through the chi router against an
in-memory store: record a sale, attach adjustments, read derived rows
and documents, and check the error status mapping.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/api"
	"github.com/warp/invoice-ledger/ledger/store"
	"github.com/warp/invoice-ledger/render"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := api.NewHandler(store.NewMemory(), render.New("TEST STORE"), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSampleInvoice(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/invoices", api.CreateInvoiceRequest{
		ID:       "INV-00001",
		Customer: "Ali Hardware",
		Date:     "2026-03-10",
		Items: []api.LineItemRequest{
			{ItemID: "item-a", Description: "Hinge", Qty: 3, UnitPrice: 100},
			{ItemID: "item-b", Description: "Bolt", Qty: 2, UnitPrice: 50},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// INVOICES
// =============================================================================

func TestAPI_CreateAndGetInvoice(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp, err := http.Get(srv.URL + "/api/invoices/INV-00001")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	inv := decodeJSON[api.InvoiceDTO](t, resp)
	assert.Equal(t, "INV-00001", inv.ID)
	assert.Equal(t, "Ali Hardware", inv.Customer)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, 400.0, inv.GrandTotal)
}

func TestAPI_CreateInvoice_Duplicate_Conflict(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices", api.CreateInvoiceRequest{
		ID:    "INV-00001",
		Date:  "2026-03-10",
		Items: []api.LineItemRequest{{ItemID: "item-a", Qty: 1, UnitPrice: 10}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CreateInvoice_NoItems_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/invoices", api.CreateInvoiceRequest{
		ID:   "INV-00009",
		Date: "2026-03-10",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetInvoice_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/invoices/INV-MISSING")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestAPI_ReturnFlow(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/returns", api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
		Fee:   10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	adj := decodeJSON[api.AdjustmentDTO](t, resp)
	assert.Equal(t, "RTN-INV-00001-1", adj.ID)
	assert.Equal(t, 1, adj.Seq)
	assert.Equal(t, "return", adj.Kind)

	// Derived row reflects the return immediately.
	rowResp, err := http.Get(srv.URL + "/api/invoices/INV-00001/ledger")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rowResp.StatusCode)
	row := decodeJSON[api.RowDTO](t, rowResp)
	assert.Equal(t, "PARTIAL RETURN", row.Status)
	assert.Equal(t, 290.0, row.NetAmount)
	assert.True(t, row.FeeApplied)
}

func TestAPI_ExchangeFlow(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/exchanges", api.CreateExchangeRequest{
		Lines:  []api.ReturnLineRequest{{ItemID: "item-b", Qty: 1}},
		Fee:    5,
		Issued: []api.LineItemRequest{{ItemID: "item-c", Description: "Valve", Qty: 1, UnitPrice: 70}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	adj := decodeJSON[api.AdjustmentDTO](t, resp)
	assert.Equal(t, "EX-INV-00001-1", adj.ID)
	assert.Equal(t, "exchange", adj.Kind)
	require.Len(t, adj.Issued, 1)

	rowResp, err := http.Get(srv.URL + "/api/invoices/INV-00001/ledger")
	require.NoError(t, err)
	row := decodeJSON[api.RowDTO](t, rowResp)
	assert.Equal(t, "EXCHANGE", row.Status)
	assert.Equal(t, 365.0, row.NetAmount)
}

func TestAPI_OverReturn_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/returns", api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 99}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReturnOnUnknownInvoice_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/invoices/INV-MISSING/returns", api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ListAdjustments(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/returns", api.CreateReturnRequest{
			Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/invoices/INV-00001/adjustments")
	require.NoError(t, err)
	adjs := decodeJSON[[]api.AdjustmentDTO](t, resp)
	require.Len(t, adjs, 2)
	assert.Equal(t, 1, adjs[0].Seq)
	assert.Equal(t, 2, adjs[1].Seq)
}

// =============================================================================
// LEDGER VIEW
// =============================================================================

func TestAPI_LedgerList_WithFilters(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices", api.CreateInvoiceRequest{
		ID:       "INV-00002",
		Customer: "Bashir & Sons",
		Date:     "2026-04-01",
		Items:    []api.LineItemRequest{{ItemID: "item-z", Qty: 1, UnitPrice: 10}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	all, err := http.Get(srv.URL + "/api/ledger")
	require.NoError(t, err)
	rows := decodeJSON[[]api.RowDTO](t, all)
	assert.Len(t, rows, 2)

	filtered, err := http.Get(srv.URL + "/api/ledger?customer=bashir")
	require.NoError(t, err)
	rows = decodeJSON[[]api.RowDTO](t, filtered)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-00002", rows[0].InvoiceID)

	byDate, err := http.Get(srv.URL + "/api/ledger?from=2026-03-01&to=2026-03-31")
	require.NoError(t, err)
	rows = decodeJSON[[]api.RowDTO](t, byDate)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-00001", rows[0].InvoiceID)
}

func TestAPI_LedgerList_BadDate(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/ledger?from=march")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestAPI_InvoiceDocument(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp, err := http.Get(srv.URL + "/api/invoices/INV-00001/document")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := decodeJSON[api.DocumentDTO](t, resp)
	assert.Equal(t, "invoice", doc.Kind)
	assert.Contains(t, doc.Text, "TEST STORE")
	assert.Contains(t, doc.Text, "INV-00001")
	assert.Contains(t, doc.Text, "NO RETURN, NO EXCHANGE WITHOUT BILL")
}

func TestAPI_InvoiceDocument_FeeClauseAfterReturn(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	before, err := http.Get(srv.URL + "/api/invoices/INV-00001/document")
	require.NoError(t, err)
	doc := decodeJSON[api.DocumentDTO](t, before)
	assert.NotContains(t, doc.Text, "RETURN PROCESSING FEE")

	resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/returns", api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
		Fee:   10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	after, err := http.Get(srv.URL + "/api/invoices/INV-00001/document")
	require.NoError(t, err)
	doc = decodeJSON[api.DocumentDTO](t, after)
	assert.Contains(t, doc.Text, "RETURN PROCESSING FEE")
	// Stored sale values unchanged by the return.
	assert.Contains(t, doc.Text, "Rs 400.00")
}

func TestAPI_AdjustmentDocument(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp := postJSON(t, srv.URL+"/api/invoices/INV-00001/returns", api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
		Fee:   10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	docResp, err := http.Get(srv.URL + "/api/invoices/INV-00001/adjustments/1/document")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, docResp.StatusCode)

	doc := decodeJSON[api.DocumentDTO](t, docResp)
	assert.Equal(t, "return", doc.Kind)
	assert.Contains(t, doc.Text, "RETURN NOTE")
	assert.Contains(t, doc.Text, "RTN-INV-00001-1")
}

func TestAPI_AdjustmentDocument_UnknownSeq(t *testing.T) {
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	resp, err := http.Get(srv.URL + "/api/invoices/INV-00001/adjustments/7/document")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ConcurrentReturns_SequencesGapless(t *testing.T) {
	// Two parallel single-unit returns of a 3-unit line both commit,
	// with distinct sequence numbers.
	srv := newTestServer(t)
	createSampleInvoice(t, srv)

	body, err := json.Marshal(api.CreateReturnRequest{
		Lines: []api.ReturnLineRequest{{ItemID: "item-a", Qty: 1}},
	})
	require.NoError(t, err)

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := http.Post(srv.URL+"/api/invoices/INV-00001/returns", "application/json", bytes.NewReader(body))
			if err != nil {
				results <- 0
				return
			}
			defer resp.Body.Close()
			results <- resp.StatusCode
		}()
	}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, <-results)
	}

	resp, err := http.Get(srv.URL + "/api/invoices/INV-00001/adjustments")
	require.NoError(t, err)
	adjs := decodeJSON[[]api.AdjustmentDTO](t, resp)
	require.Len(t, adjs, 2)
	for i, adj := range adjs {
		assert.Equal(t, i+1, adj.Seq)
		assert.Equal(t, fmt.Sprintf("RTN-INV-00001-%d", i+1), adj.ID)
	}
}
