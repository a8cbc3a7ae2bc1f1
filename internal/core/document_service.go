package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DocumentService owns the Sale/Purchase state machine. Posting and
// cancellation apply all stock effects inside one transaction with the status
// flip, so a reader can never observe a posted document with stale stock.
type DocumentService interface {
	// CreateDocument opens a new draft. counterpartyCode is a customer code
	// for sales and a supplier code for purchases; it may be empty for
	// walk-in sales. docDate is YYYY-MM-DD; empty means today.
	CreateDocument(ctx context.Context, storeID int, docType DocType, actor Actor,
		counterpartyCode, docDate string) (*Document, error)

	// AddItem appends a line to a draft. Phones resolve by IMEI and must be
	// available (sale) or reserved (purchase); accessories resolve by SKU.
	// The document total is recomputed. Fails with InvalidState if the
	// document is not draft, InsufficientStock if a sale line exceeds
	// on-hand quantity.
	AddItem(ctx context.Context, documentID int, input ItemInput) (*Document, error)

	// RemoveItem deletes a line from a draft and recomputes the total.
	RemoveItem(ctx context.Context, documentID, itemID int) (*Document, error)

	// Post transitions draft → posted: assigns the date-scoped document
	// number, applies every line's stock effect, and freezes the total.
	// Atomic: either the stock deltas and the status flip all commit, or
	// none do. Posting a non-draft document fails with InvalidState and
	// mutates nothing, so a retried post is a detectable no-op.
	Post(ctx context.Context, documentID int) (*Document, error)

	// Cancel transitions posted → cancelled, reversing every line's stock
	// effect. Owner role required. A purchase cancel fails with
	// ConflictingState if any received unit was already consumed.
	Cancel(ctx context.Context, documentID int, actor Actor) (*Document, error)

	// Queries
	GetDocument(ctx context.Context, documentID int) (*Document, error)
	GetDocumentByNumber(ctx context.Context, storeID int, number string) (*Document, error)
	GetDocuments(ctx context.Context, storeID int, docType *DocType, status *DocStatus) ([]Document, error)
}

type documentService struct {
	pool  *pgxpool.Pool
	stock StockService
}

// NewDocumentService constructs a DocumentService. The stock service is
// injected so posting shares its locked TX-scoped mutations.
func NewDocumentService(pool *pgxpool.Pool, stock StockService) DocumentService {
	return &documentService{pool: pool, stock: stock}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *documentService) CreateDocument(ctx context.Context, storeID int, docType DocType, actor Actor,
	counterpartyCode, docDate string) (*Document, error) {

	if docType != DocSale && docType != DocPurchase {
		return nil, fmt.Errorf("unknown document type %q", docType)
	}
	if docDate == "" {
		docDate = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", docDate); err != nil {
		return nil, fmt.Errorf("invalid document date %q: %w", docDate, err)
	}

	var customerID, supplierID *int
	if counterpartyCode != "" {
		table := "customers"
		if docType == DocPurchase {
			table = "suppliers"
		}
		var id int
		err := s.pool.QueryRow(ctx,
			"SELECT id FROM "+table+" WHERE store_id = $1 AND code = $2",
			storeID, counterpartyCode,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("counterparty %s: %w", counterpartyCode, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve counterparty %s: %w", counterpartyCode, err)
		}
		if docType == DocSale {
			customerID = &id
		} else {
			supplierID = &id
		}
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (store_id, doc_type, status, customer_id, supplier_id, created_by, doc_date)
		VALUES ($1, $2, 'draft', $3, $4, $5, $6)
		RETURNING id
	`, storeID, string(docType), customerID, supplierID, actor.UserID, docDate).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft document: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *documentService) AddItem(ctx context.Context, documentID int, input ItemInput) (*Document, error) {
	if input.Qty <= 0 {
		return nil, fmt.Errorf("line quantity must be positive, got %d", input.Qty)
	}
	if input.Discount.IsNegative() {
		return nil, fmt.Errorf("line discount cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	storeID, docType, status, err := lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if status != DocDraft {
		return nil, fmt.Errorf("document %d is %s, items are mutable only while draft: %w",
			documentID, status, ErrInvalidState)
	}

	// Resolve the product: IMEI first, SKU second.
	var phoneID, accessoryID *int
	unitPrice := input.UnitPrice
	qty := input.Qty

	var pid int
	var phoneStatus PhoneStatus
	var phoneSell, phoneBuy decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT id, status, sell_price, buy_price FROM phones WHERE store_id = $1 AND imei = $2",
		storeID, input.ProductCode,
	).Scan(&pid, &phoneStatus, &phoneSell, &phoneBuy)
	switch {
	case err == nil:
		// Serialized item: quantity is fixed at 1.
		if docType == DocSale && phoneStatus != PhoneAvailable {
			return nil, fmt.Errorf("phone %s is %s, not available for sale: %w",
				input.ProductCode, phoneStatus, ErrInsufficientStock)
		}
		if docType == DocPurchase && phoneStatus != PhoneReserved {
			return nil, fmt.Errorf("phone %s is %s, expected reserved for purchase intake: %w",
				input.ProductCode, phoneStatus, ErrInvalidState)
		}
		phoneID = &pid
		qty = 1
		if unitPrice.IsZero() {
			if docType == DocSale {
				unitPrice = phoneSell
			} else {
				unitPrice = phoneBuy
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		var aid, quantity int
		var accSell, accBuy decimal.Decimal
		err = tx.QueryRow(ctx,
			"SELECT id, quantity, sell_price, buy_price FROM accessories WHERE store_id = $1 AND sku = $2",
			storeID, input.ProductCode,
		).Scan(&aid, &quantity, &accSell, &accBuy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", input.ProductCode, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve product %s: %w", input.ProductCode, err)
		}
		if docType == DocSale && qty > quantity {
			return nil, &InsufficientStockError{SKU: input.ProductCode, Available: quantity, Requested: qty}
		}
		accessoryID = &aid
		if unitPrice.IsZero() {
			if docType == DocSale {
				unitPrice = accSell
			} else {
				unitPrice = accBuy
			}
		}
	default:
		return nil, fmt.Errorf("failed to resolve product %s: %w", input.ProductCode, err)
	}

	lineTotal := LineTotal(qty, unitPrice, input.Discount)

	_, err = tx.Exec(ctx, `
		INSERT INTO document_items (document_id, line_number, phone_id, accessory_id, qty, unit_price, discount, line_total)
		VALUES ($1, (SELECT COALESCE(MAX(line_number), 0) + 1 FROM document_items WHERE document_id = $1),
		        $2, $3, $4, $5, $6, $7)
	`, documentID, phoneID, accessoryID, qty, unitPrice, input.Discount, lineTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document item: %w", err)
	}

	if err := recomputeTotalTx(ctx, tx, documentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item add: %w", err)
	}
	return s.GetDocument(ctx, documentID)
}

func (s *documentService) RemoveItem(ctx context.Context, documentID, itemID int) (*Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, _, status, err := lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if status != DocDraft {
		return nil, fmt.Errorf("document %d is %s, items are mutable only while draft: %w",
			documentID, status, ErrInvalidState)
	}

	tag, err := tx.Exec(ctx,
		"DELETE FROM document_items WHERE id = $1 AND document_id = $2",
		itemID, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("item %d on document %d: %w", itemID, documentID, ErrNotFound)
	}

	if err := recomputeTotalTx(ctx, tx, documentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item removal: %w", err)
	}
	return s.GetDocument(ctx, documentID)
}

func (s *documentService) Post(ctx context.Context, documentID int) (*Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	storeID, docType, status, err := lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionDoc(status, DocPosted) {
		return nil, fmt.Errorf("document %d cannot be posted from %s: %w", documentID, status, ErrInvalidState)
	}

	items, err := fetchItemsQ(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("document %d has no items: %w", documentID, ErrInvalidState)
	}

	// Apply stock effects line by line, each under its own row lock.
	for _, it := range items {
		if err := s.applyLineTx(ctx, tx, docType, it, false); err != nil {
			return nil, err
		}
	}

	var docDate string
	if err := tx.QueryRow(ctx,
		"SELECT doc_date::text FROM documents WHERE id = $1", documentID,
	).Scan(&docDate); err != nil {
		return nil, fmt.Errorf("failed to read document date: %w", err)
	}

	number, err := nextDocNumberTx(ctx, tx, storeID, docType, docDate)
	if err != nil {
		return nil, err
	}

	total := SumLines(items)
	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET status = 'posted', doc_number = $1, total = $2,
		    remaining_amount = $2 - paid_amount, posted_at = NOW()
		WHERE id = $3
	`, number, total, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to post document %d: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit posting: %w", err)
	}
	return s.GetDocument(ctx, documentID)
}

func (s *documentService) Cancel(ctx context.Context, documentID int, actor Actor) (*Document, error) {
	if !actor.IsOwner() {
		return nil, fmt.Errorf("cancel document %d: %w", documentID, ErrUnauthorized)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, docType, status, err := lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionDoc(status, DocCancelled) {
		return nil, fmt.Errorf("document %d cannot be cancelled from %s: %w", documentID, status, ErrInvalidState)
	}

	// A sale with live returns cannot be cancelled: the return already
	// credited stock and refunded cash, so reversing the full line on top
	// would double-credit both.
	if docType == DocSale {
		var activeReturns int
		err = tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM returns WHERE sale_id = $1 AND status <> 'rejected'",
			documentID,
		).Scan(&activeReturns)
		if err != nil {
			return nil, fmt.Errorf("failed to count returns for document %d: %w", documentID, err)
		}
		if activeReturns > 0 {
			return nil, fmt.Errorf("document %d has %d active return(s): %w",
				documentID, activeReturns, ErrConflictingState)
		}
	}

	items, err := fetchItemsQ(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := s.applyLineTx(ctx, tx, docType, it, true); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE documents SET status = 'cancelled', cancelled_at = NOW() WHERE id = $1",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel document %d: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return s.GetDocument(ctx, documentID)
}

// applyLineTx applies (or, with reverse, undoes) a single line's stock
// effect. Sale lines consume stock; purchase lines receive it.
func (s *documentService) applyLineTx(ctx context.Context, tx pgx.Tx, docType DocType, it DocumentItem, reverse bool) error {
	consume := docType == DocSale
	if reverse {
		consume = !consume
	}

	if it.AccessoryID != nil {
		delta := it.Qty
		if consume {
			delta = -delta
		}
		err := s.stock.ApplyAccessoryDeltaTx(ctx, tx, *it.AccessoryID, delta)
		if err != nil && errors.Is(err, ErrNegativeStock) {
			if reverse {
				// Purchase cancel: received units already consumed downstream.
				return fmt.Errorf("line %d (%s): %w", it.LineNumber, it.ProductCode, ErrConflictingState)
			}
			available := availableQtyTx(ctx, tx, *it.AccessoryID)
			return &InsufficientStockError{SKU: it.ProductCode, Available: available, Requested: it.Qty}
		}
		return err
	}

	// Serialized item: the delta is a status transition, not arithmetic.
	var to PhoneStatus
	switch {
	case docType == DocSale && !reverse:
		to = PhoneSold
	case docType == DocSale && reverse:
		to = PhoneAvailable
	case docType == DocPurchase && !reverse:
		to = PhoneAvailable
	default: // purchase cancel: back to pending intake
		to = PhoneReserved
	}

	err := s.stock.TransitionPhoneTx(ctx, tx, *it.PhoneID, to)
	if err != nil && errors.Is(err, ErrInvalidTransition) {
		if docType == DocPurchase && reverse {
			// Phone was sold (or otherwise consumed) after this purchase.
			return fmt.Errorf("line %d (%s): %w", it.LineNumber, it.ProductCode, ErrConflictingState)
		}
		if docType == DocSale && !reverse {
			return fmt.Errorf("line %d: phone %s unavailable: %w", it.LineNumber, it.ProductCode, ErrInsufficientStock)
		}
	}
	return err
}

// ── Numbering ────────────────────────────────────────────────────────────────

// nextDocNumberTx increments the per-store, per-type, per-day sequence and
// formats the document number, e.g. SAL-20260830-0042. The ON CONFLICT upsert
// serializes concurrent posts on the sequence row, keeping numbers gapless.
func nextDocNumberTx(ctx context.Context, tx pgx.Tx, storeID int, docType DocType, docDate string) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (store_id, doc_type, seq_date, last_number)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (store_id, doc_type, seq_date)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, storeID, string(docType), docDate).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate document sequence number: %w", err)
	}
	compact := strings.ReplaceAll(docDate, "-", "")
	return fmt.Sprintf("%s-%s-%04d", docType.NumberPrefix(), compact, lastNumber), nil
}

// ── Shared helpers ───────────────────────────────────────────────────────────

// lockDocument locks the document header row and returns its store, type and
// status. Every mutating operation starts here.
func lockDocument(ctx context.Context, tx pgx.Tx, documentID int) (int, DocType, DocStatus, error) {
	var storeID int
	var docType DocType
	var status DocStatus
	err := tx.QueryRow(ctx,
		"SELECT store_id, doc_type, status FROM documents WHERE id = $1 FOR UPDATE",
		documentID,
	).Scan(&storeID, &docType, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", "", fmt.Errorf("document %d: %w", documentID, ErrNotFound)
		}
		return 0, "", "", fmt.Errorf("failed to lock document %d: %w", documentID, err)
	}
	return storeID, docType, status, nil
}

func recomputeTotalTx(ctx context.Context, tx pgx.Tx, documentID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE documents
		SET total = COALESCE((SELECT SUM(line_total) FROM document_items WHERE document_id = $1), 0),
		    remaining_amount = COALESCE((SELECT SUM(line_total) FROM document_items WHERE document_id = $1), 0) - paid_amount
		WHERE id = $1
	`, documentID)
	if err != nil {
		return fmt.Errorf("failed to recompute document total: %w", err)
	}
	return nil
}

func availableQtyTx(ctx context.Context, tx pgx.Tx, accessoryID int) int {
	var qty int
	_ = tx.QueryRow(ctx, "SELECT quantity FROM accessories WHERE id = $1", accessoryID).Scan(&qty)
	return qty
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func fetchItemsQ(ctx context.Context, q pgxQuerier, documentID int) ([]DocumentItem, error) {
	rows, err := q.Query(ctx, `
		SELECT di.id, di.document_id, di.line_number, di.phone_id, di.accessory_id,
		       COALESCE(p.imei, a.sku), COALESCE(p.model, a.name),
		       di.qty, di.unit_price, di.discount, di.line_total
		FROM document_items di
		LEFT JOIN phones p      ON p.id = di.phone_id
		LEFT JOIN accessories a ON a.id = di.accessory_id
		WHERE di.document_id = $1
		ORDER BY di.line_number
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document items: %w", err)
	}
	defer rows.Close()

	var items []DocumentItem
	for rows.Next() {
		var it DocumentItem
		if err := rows.Scan(
			&it.ID, &it.DocumentID, &it.LineNumber, &it.PhoneID, &it.AccessoryID,
			&it.ProductCode, &it.ProductName,
			&it.Qty, &it.UnitPrice, &it.Discount, &it.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document items: %w", err)
	}
	return items, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const documentSelect = `
	SELECT d.id, d.store_id, d.doc_type, COALESCE(d.doc_number, ''), d.status,
	       d.total, d.paid_amount, d.remaining_amount,
	       d.customer_id, d.supplier_id, COALESCE(c.name, sp.name, ''),
	       d.created_by, d.doc_date::text, d.created_at, d.posted_at, d.cancelled_at
	FROM documents d
	LEFT JOIN customers c  ON c.id = d.customer_id
	LEFT JOIN suppliers sp ON sp.id = d.supplier_id
`

func scanDocument(row pgx.Row) (*Document, error) {
	d := &Document{}
	err := row.Scan(
		&d.ID, &d.StoreID, &d.Type, &d.Number, &d.Status,
		&d.Total, &d.PaidAmount, &d.RemainingAmount,
		&d.CustomerID, &d.SupplierID, &d.CounterpartyName,
		&d.CreatedBy, &d.DocDate, &d.CreatedAt, &d.PostedAt, &d.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *documentService) GetDocument(ctx context.Context, documentID int) (*Document, error) {
	d, err := scanDocument(s.pool.QueryRow(ctx, documentSelect+" WHERE d.id = $1", documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %d: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch document %d: %w", documentID, err)
	}

	items, err := fetchItemsQ(ctx, s.pool, documentID)
	if err != nil {
		return nil, err
	}
	d.Items = items
	return d, nil
}

func (s *documentService) GetDocumentByNumber(ctx context.Context, storeID int, number string) (*Document, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM documents WHERE store_id = $1 AND doc_number = $2",
		storeID, number,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", number, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up document by number: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *documentService) GetDocuments(ctx context.Context, storeID int, docType *DocType, status *DocStatus) ([]Document, error) {
	query := documentSelect + " WHERE d.store_id = $1"
	args := []any{storeID}
	if docType != nil {
		args = append(args, string(*docType))
		query += fmt.Sprintf(" AND d.doc_type = $%d", len(args))
	}
	if status != nil {
		args = append(args, string(*status))
		query += fmt.Sprintf(" AND d.status = $%d", len(args))
	}
	query += " ORDER BY d.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}
