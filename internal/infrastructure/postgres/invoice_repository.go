package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, issuer_id, debtor_id, type,
	status, finance_status, processing_state, queue_reason,
	series, number,
	invoice_date, due_date, booking_date, invoice_year, invoice_month,
	source_invoice_id,
	currency, discount_pct, vat_pct,
	billing_name, billing_street, billing_postal_code, billing_city, billing_country,
	erp_voucher_ref, pdf_ref, pdf_sha256, pdf_generated_at,
	created_at, updated_at`

// Create persiste la cabecera y sus líneas. Usar dentro de una tx para que sea atómico.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = inv.CreatedAt
	}
	if inv.Status == "" {
		inv.Status = entity.InvoiceStatusDraft
	}
	if inv.FinanceStatus == "" {
		inv.FinanceStatus = entity.FinanceStatusNone
	}
	if inv.ProcessingState == "" {
		inv.ProcessingState = entity.ProcessingStateIdle
	}

	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.IssuerID, inv.DebtorID, inv.Type,
		inv.Status, inv.FinanceStatus, inv.ProcessingState, inv.QueueReason,
		inv.Series, inv.Number,
		inv.InvoiceDate, inv.DueDate, inv.BookingDate, nullIfZero(inv.InvoiceYear), nullIfZero(inv.InvoiceMonth),
		inv.SourceInvoiceID,
		inv.Currency, inv.DiscountPct, inv.VATPct,
		inv.BillingAddress.Name, inv.BillingAddress.Street, inv.BillingAddress.PostalCode,
		inv.BillingAddress.City, inv.BillingAddress.Country,
		inv.ErpVoucherRef, inv.PDFRef, inv.PDFSHA256, inv.PDFGeneratedAt,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: número de factura ya existe: %w", domain.ErrConflict, err)
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for i, l := range lines {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.InvoiceID = inv.ID
		if l.Position == 0 {
			l.Position = i + 1
		}
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, position, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.InvoiceID, l.Position, l.Description, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

// GetByID obtiene una factura por ID. (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// GetByIDForUpdate igual que GetByID pero bloquea la fila hasta el fin de la tx.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *InvoiceRepo) get(ctx context.Context, query, id string) (*entity.Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// Update persiste ciclo de vida, estado financiero, procesamiento, número y fechas.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET status            = $2,
		    finance_status    = $3,
		    processing_state  = $4,
		    queue_reason      = $5,
		    number            = $6,
		    invoice_date      = $7,
		    due_date          = $8,
		    booking_date      = $9,
		    invoice_year      = $10,
		    invoice_month     = $11,
		    erp_voucher_ref   = $12,
		    updated_at        = $13
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		inv.ID,
		inv.Status, inv.FinanceStatus, inv.ProcessingState, inv.QueueReason,
		inv.Number,
		inv.InvoiceDate, inv.DueDate, inv.BookingDate,
		nullIfZero(inv.InvoiceYear), nullIfZero(inv.InvoiceMonth),
		inv.ErpVoucherRef,
		inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: número %s duplicado: %w", domain.ErrConflict, inv.DisplayNumber(), err)
		}
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: factura %s", domain.ErrNotFound, inv.ID)
	}
	return nil
}

// ListLines obtiene las líneas de una factura en orden de posición.
func (r *InvoiceRepo) ListLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ListAwaitingSource dependientes en cola, las más antiguas primero, a partir de after.
func (r *InvoiceRepo) ListAwaitingSource(ctx context.Context, after *repository.Cursor, limit int) ([]*entity.Invoice, error) {
	return r.list(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status = 'DRAFT' AND processing_state = 'QUEUED' AND queue_reason = 'AWAIT_SOURCE_PAID'
		  AND (created_at, id) > ($1::timestamptz, $2::uuid)
		ORDER BY created_at, id
		LIMIT $3`, after, limit)
}

// ListMissingArtifact facturas CREATED sin PDF, las más antiguas primero, a partir de after.
func (r *InvoiceRepo) ListMissingArtifact(ctx context.Context, after *repository.Cursor, limit int) ([]*entity.Invoice, error) {
	return r.list(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status = 'CREATED' AND pdf_ref = ''
		  AND (created_at, id) > ($1::timestamptz, $2::uuid)
		ORDER BY created_at, id
		LIMIT $3`, after, limit)
}

// list ejecuta una consulta paginada. Sin cursor arranca desde el menor (created_at, id) posible.
func (r *InvoiceRepo) list(ctx context.Context, query string, after *repository.Cursor, limit int) ([]*entity.Invoice, error) {
	from := repository.Cursor{CreatedAt: time.Unix(0, 0).UTC(), ID: uuid.Nil.String()}
	if after != nil {
		from = *after
	}
	rows, err := r.q.Query(ctx, query, from.CreatedAt, from.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// UpdateArtifact registra el PDF solo si aún no hay uno (condición en el WHERE).
func (r *InvoiceRepo) UpdateArtifact(ctx context.Context, id, ref, sha256Hex string, generatedAt time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET pdf_ref = $2, pdf_sha256 = $3, pdf_generated_at = $4
		WHERE id = $1 AND pdf_ref = ''`,
		id, ref, sha256Hex, generatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update invoice artifact: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearArtifact borra referencia y hash del PDF.
func (r *InvoiceRepo) ClearArtifact(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET pdf_ref = '', pdf_sha256 = '', pdf_generated_at = NULL
		WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("clear invoice artifact: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var (
		inv         entity.Invoice
		year, month *int
		sourceID    *string
	)
	err := row.Scan(
		&inv.ID, &inv.IssuerID, &inv.DebtorID, &inv.Type,
		&inv.Status, &inv.FinanceStatus, &inv.ProcessingState, &inv.QueueReason,
		&inv.Series, &inv.Number,
		&inv.InvoiceDate, &inv.DueDate, &inv.BookingDate, &year, &month,
		&sourceID,
		&inv.Currency, &inv.DiscountPct, &inv.VATPct,
		&inv.BillingAddress.Name, &inv.BillingAddress.Street, &inv.BillingAddress.PostalCode,
		&inv.BillingAddress.City, &inv.BillingAddress.Country,
		&inv.ErpVoucherRef, &inv.PDFRef, &inv.PDFSHA256, &inv.PDFGeneratedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if year != nil {
		inv.InvoiceYear = *year
	}
	if month != nil {
		inv.InvoiceMonth = *month
	}
	inv.SourceInvoiceID = nullIfEmpty(derefStr(sourceID))
	return &inv, nil
}

func nullIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
