/*
Package render reproduces printable documents from stored records.

PURPOSE:
  Plain-text reproduction of original invoices, return notes, and
  exchange notes. Historical reproduction MUST show the immutable stored
  values verbatim. A reprinted invoice is the original invoice, never a
  recomputation against later adjustments.

The one derived input allowed in is Row.FeeApplied, which the terms
composer reads to decide whether the return-fee clause is appended to
the standard terms block. Nothing else of the derived row leaks into a
document.
*/
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// DefaultTerms is the standard terms-and-conditions block printed on
// every invoice.
var DefaultTerms = []string{
	"NO RETURN, NO EXCHANGE WITHOUT BILL",
	"NO RETURN, NO EXCHANGE AFTER 3 DAYS",
	"ITEMS LIKE PIPES ARE NOT RETURNABLE OR EXCHANGEABLE",
	"DAMAGED AND USED ITEMS OR ITEMS WITH TORN AND RIPPED PACKING WILL NOT BE ACCEPTED FOR RETURN OR EXCHANGE",
}

// DefaultFeeTerm is appended only when a return fee has been applied to
// the invoice's history (a recorded zero fee counts).
const DefaultFeeTerm = "A RETURN PROCESSING FEE APPLIES TO RETURNS AND EXCHANGES ON THIS BILL"

// Renderer produces documents for one shop.
type Renderer struct {
	ShopName string
	Currency string
	Terms    []string
	FeeTerm  string

	invoiceTmpl  *template.Template
	returnTmpl   *template.Template
	exchangeTmpl *template.Template
}

// New creates a renderer with the standard terms block.
func New(shopName string) *Renderer {
	r := &Renderer{
		ShopName: shopName,
		Currency: "Rs",
		Terms:    DefaultTerms,
		FeeTerm:  DefaultFeeTerm,
	}
	r.invoiceTmpl = template.Must(template.New("invoice").Parse(invoiceTemplate))
	r.returnTmpl = template.Must(template.New("return").Parse(returnTemplate))
	r.exchangeTmpl = template.Must(template.New("exchange").Parse(exchangeTemplate))
	return r
}

// TermsFor composes the terms block for a derived row: the standard
// clauses, plus the fee clause when any fee-bearing adjustment exists.
func (r *Renderer) TermsFor(row ledger.Row) []string {
	terms := append([]string(nil), r.Terms...)
	if row.FeeApplied {
		terms = append(terms, r.FeeTerm)
	}
	return terms
}

// money formats an amount with the currency prefix.
func (r *Renderer) money(d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", r.Currency, d.StringFixed(2))
}

// =============================================================================
// INVOICE DOCUMENT
// =============================================================================

type invoiceDoc struct {
	Shop       string
	Number     string
	Date       string
	Customer   string
	Lines      []docLine
	Subtotal   string
	Discount   string
	GrandTotal string
	Terms      []string
}

type docLine struct {
	ItemID string
	Name   string
	Qty    int
	Price  string
	Total  string
}

// Invoice reproduces the original sale document from the stored record,
// verbatim: stored grand total, stored line items, no adjustments.
func (r *Renderer) Invoice(inv ledger.Invoice) (string, error) {
	return r.invoice(inv, r.Terms)
}

// InvoiceForRow reproduces the original sale document with the terms
// block composed for the invoice's derived row. The fee clause appears
// once any adjustment has recorded a fee against the bill; the stored
// sale values are still printed verbatim.
func (r *Renderer) InvoiceForRow(inv ledger.Invoice, row ledger.Row) (string, error) {
	return r.invoice(inv, r.TermsFor(row))
}

func (r *Renderer) invoice(inv ledger.Invoice, terms []string) (string, error) {
	doc := invoiceDoc{
		Shop:       r.ShopName,
		Number:     string(inv.ID),
		Date:       inv.Date.Format("02/01/2006"),
		Customer:   inv.Customer,
		Subtotal:   r.money(inv.Subtotal()),
		GrandTotal: r.money(inv.GrandTotal),
		Terms:      terms,
	}
	switch inv.Discount.Kind {
	case ledger.DiscountPercent:
		doc.Discount = inv.Discount.Value.StringFixed(0) + "%"
	default:
		doc.Discount = r.money(inv.Discount.Value)
	}
	for _, li := range inv.Items {
		doc.Lines = append(doc.Lines, docLine{
			ItemID: string(li.ItemID),
			Name:   li.Description,
			Qty:    li.Qty,
			Price:  r.money(li.UnitPrice),
			Total:  r.money(li.Total()),
		})
	}

	var buf bytes.Buffer
	if err := r.invoiceTmpl.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// ADJUSTMENT DOCUMENTS
// =============================================================================

type adjustmentDoc struct {
	Shop         string
	Number       string
	Bill         string
	Date         string
	Customer     string
	Lines        []docLine
	RefundValue  string
	Fee          string
	NetRefund    string
	Issued       []docLine
	IssuedTotal  string
	PriceDelta   string
	DeltaLabel   string
}

// Adjustment reproduces a return note or exchange note. Return lines
// are valued at the original invoice's unit prices, exactly as a stock
// mutator or cashier saw them at processing time.
func (r *Renderer) Adjustment(inv ledger.Invoice, adj ledger.Adjustment) (string, error) {
	doc := adjustmentDoc{
		Shop:     r.ShopName,
		Number:   adj.ID,
		Bill:     string(inv.ID),
		Date:     adj.CreatedAt.Format("02/01/2006"),
		Customer: inv.Customer,
		Fee:      r.money(adj.Return.Fee),
	}

	refund := decimal.Zero
	for _, line := range adj.Return.Lines {
		price, _ := inv.UnitPriceOf(line.ItemID)
		total := price.Mul(decimal.NewFromInt(int64(line.Qty)))
		refund = refund.Add(total)
		doc.Lines = append(doc.Lines, docLine{
			ItemID: string(line.ItemID),
			Qty:    line.Qty,
			Price:  r.money(price),
			Total:  r.money(total),
		})
	}
	doc.RefundValue = r.money(refund)
	doc.NetRefund = r.money(refund.Sub(adj.Return.Fee))

	if adj.Kind != ledger.KindExchange {
		var buf bytes.Buffer
		if err := r.returnTmpl.Execute(&buf, doc); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	issuedTotal := adj.IssuedTotal()
	for _, li := range adj.Issued {
		doc.Issued = append(doc.Issued, docLine{
			ItemID: string(li.ItemID),
			Name:   li.Description,
			Qty:    li.Qty,
			Price:  r.money(li.UnitPrice),
			Total:  r.money(li.Total()),
		})
	}
	doc.IssuedTotal = r.money(issuedTotal)

	delta := issuedTotal.Sub(refund)
	doc.PriceDelta = r.money(delta.Abs())
	if delta.IsNegative() {
		doc.DeltaLabel = "REFUND DUE"
	} else {
		doc.DeltaLabel = "BALANCE PAYABLE"
	}

	var buf bytes.Buffer
	if err := r.exchangeTmpl.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// TEMPLATES
// =============================================================================

const invoiceTemplate = `{{.Shop}}
SALES INVOICE

Bill #:   {{.Number}}
Date:     {{.Date}}
Customer: {{.Customer}}

ITEMS
{{range .Lines}}  {{.ItemID}}  {{if .Name}}{{.Name}}  {{end}}x{{.Qty}} @ {{.Price}} = {{.Total}}
{{end}}
Subtotal:    {{.Subtotal}}
Discount:    {{.Discount}}
GRAND TOTAL: {{.GrandTotal}}

TERMS AND CONDITIONS
{{range .Terms}}  - {{.}}
{{end}}
THANK YOU FOR YOUR BUSINESS
`

const returnTemplate = `{{.Shop}}
RETURN NOTE

Return #: {{.Number}}
Bill #:   {{.Bill}}
Date:     {{.Date}}
Customer: {{.Customer}}

RETURNED ITEMS
{{range .Lines}}  {{.ItemID}}  x{{.Qty}} @ {{.Price}} = {{.Total}}
{{end}}
Refund value: {{.RefundValue}}
Return fee:   {{.Fee}}
NET REFUND:   {{.NetRefund}}
`

const exchangeTemplate = `{{.Shop}}
EXCHANGE NOTE

Exchange #: {{.Number}}
Bill #:     {{.Bill}}
Date:       {{.Date}}
Customer:   {{.Customer}}

RETURNED ITEMS
{{range .Lines}}  {{.ItemID}}  x{{.Qty}} @ {{.Price}} = {{.Total}}
{{end}}Returned value: {{.RefundValue}}

ISSUED ITEMS
{{range .Issued}}  {{.ItemID}}  {{if .Name}}{{.Name}}  {{end}}x{{.Qty}} @ {{.Price}} = {{.Total}}
{{end}}Issued value:   {{.IssuedTotal}}

Return fee:     {{.Fee}}
{{.DeltaLabel}}: {{.PriceDelta}}
`

// Describe returns a one-line summary of a document kind, used in logs.
func Describe(adj ledger.Adjustment) string {
	if adj.Kind == ledger.KindExchange {
		return strings.ToLower(string(ledger.KindExchange)) + " note " + adj.ID
	}
	return strings.ToLower(string(ledger.KindReturn)) + " note " + adj.ID
}
