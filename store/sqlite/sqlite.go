/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists the two immutable source tables, invoices and adjustments,
  and nothing else. Derived ledger rows are never written here; they are
  recomputed from these tables on every read.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on invoices or adjustments
  - No DELETE statements on invoices or adjustments
  - Duplicate invoice ids and duplicate (invoice_id, seq) keys are
    rejected via primary keys and mapped to domain errors

KEY TABLES:
  invoices:       Invoice headers, write-once
  invoice_items:  Line items, keyed (invoice_id, position)
  adjustments:    Return/exchange records keyed (invoice_id, seq),
                  tagged with their variant; line payloads as JSON

WAL MODE:
  Opened with WAL so report reads don't block entry-screen writes.
  A read observes an adjustment either fully committed or not at all.

USAGE:
  st, err := sqlite.New("./data/ledger.db")   // ":memory:" for tests
  defer st.Close()
  linker := ledger.NewLinker(st)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Invoices (write-once originals)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		customer TEXT NOT NULL,
		invoice_date TEXT NOT NULL,
		discount_kind TEXT NOT NULL,
		discount_value TEXT NOT NULL,
		grand_total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_customer
		ON invoices(customer);
	CREATE INDEX IF NOT EXISTS idx_invoices_date
		ON invoices(invoice_date);

	-- Line items of the original sale
	CREATE TABLE IF NOT EXISTS invoice_items (
		invoice_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		qty INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		PRIMARY KEY (invoice_id, position),
		FOREIGN KEY (invoice_id) REFERENCES invoices(id)
	);

	-- Adjustments (append-only), keyed by (invoice id, sequence) and
	-- tagged with their variant. Line payloads are JSON.
	CREATE TABLE IF NOT EXISTS adjustments (
		invoice_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		fee TEXT NOT NULL,
		return_lines_json TEXT NOT NULL,
		issued_items_json TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (invoice_id, seq),
		FOREIGN KEY (invoice_id) REFERENCES invoices(id)
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_invoice
		ON adjustments(invoice_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_kind
		ON adjustments(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JSON PAYLOAD SHAPES
// =============================================================================

type returnLineJSON struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type lineItemJSON struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description,omitempty"`
	Qty         int    `json:"qty"`
	UnitPrice   string `json:"unit_price"`
}

// =============================================================================
// INVOICES
// =============================================================================

// SaveInvoice writes the invoice header and its line items atomically.
// Write-once: an existing id is rejected with ErrDuplicateInvoice.
func (s *Store) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, customer, invoice_date, discount_kind, discount_value, grand_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.Customer,
		inv.Date.UTC().Format(time.RFC3339),
		string(inv.Discount.Kind),
		inv.Discount.Value.String(),
		inv.GrandTotal.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateInvoice
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i, li := range inv.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, item_id, description, qty, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			inv.ID, i, li.ItemID, li.Description, li.Qty, li.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}

	return tx.Commit()
}

// GetInvoice loads one invoice with its line items.
func (s *Store) GetInvoice(ctx context.Context, id ledger.InvoiceID) (*ledger.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer, invoice_date, discount_kind, discount_value, grand_total
		FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// ListInvoices returns all invoices ordered by id, line items included.
func (s *Store) ListInvoices(ctx context.Context) ([]ledger.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer, invoice_date, discount_kind, discount_value, grand_total
		FROM invoices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []ledger.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range invoices {
		items, err := s.loadItems(ctx, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Items = items
	}
	return invoices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(r rowScanner) (*ledger.Invoice, error) {
	var (
		inv           ledger.Invoice
		date          string
		discountKind  string
		discountValue string
		grandTotal    string
	)
	if err := r.Scan(&inv.ID, &inv.Customer, &date, &discountKind, &discountValue, &grandTotal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	inv.Date, _ = time.Parse(time.RFC3339, date)
	inv.Discount = ledger.Discount{
		Kind:  ledger.DiscountKind(discountKind),
		Value: mustDecimal(discountValue),
	}
	inv.GrandTotal = mustDecimal(grandTotal)
	return &inv, nil
}

func (s *Store) loadItems(ctx context.Context, id ledger.InvoiceID) ([]ledger.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, description, qty, unit_price
		FROM invoice_items WHERE invoice_id = ?
		ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []ledger.LineItem
	for rows.Next() {
		var (
			li    ledger.LineItem
			price string
		)
		if err := rows.Scan(&li.ItemID, &li.Description, &li.Qty, &price); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		li.UnitPrice = mustDecimal(price)
		items = append(items, li)
	}
	return items, rows.Err()
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// AppendAdjustment persists one adjustment. The (invoice_id, seq)
// primary key enforces that only one submission wins a sequence slot.
func (s *Store) AppendAdjustment(ctx context.Context, adj ledger.Adjustment) error {
	returnLines := make([]returnLineJSON, len(adj.Return.Lines))
	for i, l := range adj.Return.Lines {
		returnLines[i] = returnLineJSON{ItemID: string(l.ItemID), Qty: l.Qty}
	}
	returnJSON, err := json.Marshal(returnLines)
	if err != nil {
		return fmt.Errorf("failed to encode return lines: %w", err)
	}

	var issuedJSON sql.NullString
	if len(adj.Issued) > 0 {
		issued := make([]lineItemJSON, len(adj.Issued))
		for i, li := range adj.Issued {
			issued[i] = lineItemJSON{
				ItemID:      string(li.ItemID),
				Description: li.Description,
				Qty:         li.Qty,
				UnitPrice:   li.UnitPrice.String(),
			}
		}
		b, err := json.Marshal(issued)
		if err != nil {
			return fmt.Errorf("failed to encode issued items: %w", err)
		}
		issuedJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO adjustments (invoice_id, seq, id, kind, fee, return_lines_json, issued_items_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		adj.InvoiceID,
		adj.Seq,
		adj.ID,
		string(adj.Kind),
		adj.Return.Fee.String(),
		string(returnJSON),
		issuedJSON,
		adj.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateAdjustment
		}
		if isForeignKeyError(err) {
			return ledger.ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to append adjustment: %w", err)
	}
	return nil
}

// Adjustments returns all adjustments for an invoice in sequence order.
func (s *Store) Adjustments(ctx context.Context, id ledger.InvoiceID) ([]ledger.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT invoice_id, seq, id, kind, fee, return_lines_json, issued_items_json, created_at
		FROM adjustments WHERE invoice_id = ?
		ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := []ledger.Adjustment{}
	for rows.Next() {
		var (
			adj        ledger.Adjustment
			kind       string
			fee        string
			returnJSON string
			issuedJSON sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&adj.InvoiceID, &adj.Seq, &adj.ID, &kind, &fee, &returnJSON, &issuedJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}

		adj.Kind = ledger.AdjustmentKind(kind)
		adj.Return.Fee = mustDecimal(fee)
		adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		var lines []returnLineJSON
		if err := json.Unmarshal([]byte(returnJSON), &lines); err != nil {
			return nil, fmt.Errorf("failed to decode return lines for %s: %w", adj.ID, err)
		}
		adj.Return.Lines = make([]ledger.ReturnLine, len(lines))
		for i, l := range lines {
			adj.Return.Lines[i] = ledger.ReturnLine{ItemID: ledger.ItemID(l.ItemID), Qty: l.Qty}
		}

		if issuedJSON.Valid && issuedJSON.String != "" {
			var issued []lineItemJSON
			if err := json.Unmarshal([]byte(issuedJSON.String), &issued); err != nil {
				return nil, fmt.Errorf("failed to decode issued items for %s: %w", adj.ID, err)
			}
			adj.Issued = make([]ledger.LineItem, len(issued))
			for i, li := range issued {
				adj.Issued[i] = ledger.LineItem{
					ItemID:      ledger.ItemID(li.ItemID),
					Description: li.Description,
					Qty:         li.Qty,
					UnitPrice:   mustDecimal(li.UnitPrice),
				}
			}
		}

		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
