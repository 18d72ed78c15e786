package entity

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType tipo de factura.
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "STANDARD"
	InvoiceTypeCreditNote InvoiceType = "CREDIT_NOTE"
	InvoiceTypePhantom    InvoiceType = "PHANTOM"  // nunca recibe número
	InvoiceTypeInternal   InvoiceType = "INTERNAL" // dependiente de una factura origen
)

// InvoiceStatus estado del ciclo de vida (progreso de negocio).
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusCreated   InvoiceStatus = "CREATED"
	InvoiceStatusSubmitted InvoiceStatus = "SUBMITTED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// FinanceStatus estado reportado por el ERP / sistema de pagos. Independiente del ciclo de vida.
type FinanceStatus string

const (
	FinanceStatusNone     FinanceStatus = "NONE"
	FinanceStatusUploaded FinanceStatus = "UPLOADED"
	FinanceStatusBooked   FinanceStatus = "BOOKED"
	FinanceStatusPaid     FinanceStatus = "PAID"
	FinanceStatusError    FinanceStatus = "ERROR"
)

// ProcessingState indica si la factura está retenida esperando una condición externa.
type ProcessingState string

const (
	ProcessingStateIdle   ProcessingState = "IDLE"
	ProcessingStateQueued ProcessingState = "QUEUED"
)

// QueueReason condición concreta por la que una factura está en cola.
type QueueReason string

const (
	QueueReasonNone            QueueReason = ""
	QueueReasonAwaitSourcePaid QueueReason = "AWAIT_SOURCE_PAID"
)

// BillingAddress copia de la dirección de facturación al momento de emitir.
type BillingAddress struct {
	Name       string
	Street     string
	PostalCode string
	City       string
	Country    string
}

// Invoice representa la cabecera de una factura.
type Invoice struct {
	ID       string
	IssuerID string
	DebtorID string
	Type     InvoiceType

	Status          InvoiceStatus
	FinanceStatus   FinanceStatus
	ProcessingState ProcessingState
	QueueReason     QueueReason

	Series string
	Number *int64 // se asigna una sola vez al finalizar; nil para PHANTOM

	InvoiceDate  *time.Time
	DueDate      *time.Time
	BookingDate  *time.Time
	InvoiceYear  int
	InvoiceMonth int

	SourceInvoiceID *string // factura cuyo pago desbloquea esta (INTERNAL)

	Currency       string
	DiscountPct    decimal.Decimal
	VATPct         decimal.Decimal
	BillingAddress BillingAddress

	ErpVoucherRef string

	PDFRef         string // clave del objeto en el almacenamiento
	PDFSHA256      string
	PDFGeneratedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasNumber indica si la factura ya tiene consecutivo asignado.
func (i *Invoice) HasNumber() bool { return i.Number != nil }

// IsAwaitingSource indica si la factura está en cola esperando el pago de su origen.
func (i *Invoice) IsAwaitingSource() bool {
	return i.ProcessingState == ProcessingStateQueued && i.QueueReason == QueueReasonAwaitSourcePaid
}

// HasArtifact indica si ya existe un PDF almacenado.
func (i *Invoice) HasArtifact() bool { return i.PDFRef != "" }

// DisplayNumber devuelve "SERIE-NUMERO" o cadena vacía si no hay número.
func (i *Invoice) DisplayNumber() string {
	if i.Number == nil {
		return ""
	}
	return i.Series + "-" + strconv.FormatInt(*i.Number, 10)
}

// SourcePaid evalúa el predicado "pagada" sobre esta factura cuando actúa como origen.
// useFinanceStatus elige la dimensión: estado financiero (ERP) o ciclo de vida.
func (i *Invoice) SourcePaid(useFinanceStatus bool) bool {
	if useFinanceStatus {
		return i.FinanceStatus == FinanceStatusPaid
	}
	return i.Status == InvoiceStatusPaid
}

// ErrQueuedWithoutSource la factura está en cola AWAIT_SOURCE_PAID sin referencia a su origen.
var ErrQueuedWithoutSource = errors.New("factura en cola AWAIT_SOURCE_PAID sin factura origen")

// Validate comprueba las invariantes estructurales de la factura.
func (i *Invoice) Validate() error {
	if i.Type == InvoiceTypePhantom && i.Number != nil {
		return errors.New("una factura PHANTOM no puede tener número")
	}
	if i.IsAwaitingSource() && (i.SourceInvoiceID == nil || *i.SourceInvoiceID == "") {
		return ErrQueuedWithoutSource
	}
	return nil
}

// ParseInvoiceStatus convierte texto (case-insensitive) a InvoiceStatus.
func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	st := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case InvoiceStatusDraft, InvoiceStatusCreated, InvoiceStatusSubmitted, InvoiceStatusPaid, InvoiceStatusCancelled:
		return st, true
	}
	return "", false
}
