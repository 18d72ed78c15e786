package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// InvoiceResponse cabecera de factura en respuestas.
type InvoiceResponse struct {
	ID              string          `json:"id"`
	IssuerID        string          `json:"issuer_id"`
	DebtorID        string          `json:"debtor_id"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	FinanceStatus   string          `json:"finance_status"`
	ProcessingState string          `json:"processing_state"`
	QueueReason     string          `json:"queue_reason,omitempty"`
	Series          string          `json:"series"`
	Number          *int64          `json:"number,omitempty"`
	DisplayNumber   string          `json:"display_number,omitempty"`
	InvoiceDate     *time.Time      `json:"invoice_date,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	BookingDate     *time.Time      `json:"booking_date,omitempty"`
	SourceInvoiceID *string         `json:"source_invoice_id,omitempty"`
	Currency        string          `json:"currency"`
	DiscountPct     decimal.Decimal `json:"discount_pct"`
	VATPct          decimal.Decimal `json:"vat_pct"`
	ErpVoucherRef   string          `json:"erp_voucher_ref,omitempty"`
	HasPDF          bool            `json:"has_pdf"`
	PDFSHA256       string          `json:"pdf_sha256,omitempty"`
	PDFGeneratedAt  *time.Time      `json:"pdf_generated_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewInvoiceResponse proyecta la entidad a su representación JSON.
func NewInvoiceResponse(inv *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		IssuerID:        inv.IssuerID,
		DebtorID:        inv.DebtorID,
		Type:            string(inv.Type),
		Status:          string(inv.Status),
		FinanceStatus:   string(inv.FinanceStatus),
		ProcessingState: string(inv.ProcessingState),
		QueueReason:     string(inv.QueueReason),
		Series:          inv.Series,
		Number:          inv.Number,
		DisplayNumber:   inv.DisplayNumber(),
		InvoiceDate:     inv.InvoiceDate,
		DueDate:         inv.DueDate,
		BookingDate:     inv.BookingDate,
		SourceInvoiceID: inv.SourceInvoiceID,
		Currency:        inv.Currency,
		DiscountPct:     inv.DiscountPct,
		VATPct:          inv.VATPct,
		ErpVoucherRef:   inv.ErpVoucherRef,
		HasPDF:          inv.HasArtifact(),
		PDFSHA256:       inv.PDFSHA256,
		PDFGeneratedAt:  inv.PDFGeneratedAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

// TransitionRequest body para POST /api/invoices/:id/transition.
type TransitionRequest struct {
	Status string `json:"status"`
}

// CanFinalizeResponse respuesta de GET /api/invoices/:id/can-finalize.
type CanFinalizeResponse struct {
	InvoiceID   string `json:"invoice_id"`
	CanFinalize bool   `json:"can_finalize"`
}

// NextStatesResponse respuesta de GET /api/invoices/:id/next-states.
type NextStatesResponse struct {
	InvoiceID  string   `json:"invoice_id"`
	Status     string   `json:"status"`
	NextStates []string `json:"next_states"`
	Terminal   bool     `json:"terminal"`
}

// FinanceStatusRequest body del webhook del ERP (PUT /api/invoices/:id/finance-status).
// Ambos campos son opcionales.
type FinanceStatusRequest struct {
	Status     *string `json:"status"`
	VoucherRef *string `json:"voucher_ref"`
}
