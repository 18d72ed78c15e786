package billing

import (
	"context"
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// InvoiceTxRunner ejecuta fn dentro de una transacción con repositorios atados a ella.
// Si fn devuelve error se hace rollback completo (incluido el consecutivo consumido).
type InvoiceTxRunner interface {
	RunInvoice(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		sequenceRepo repository.SequenceRepository,
		eventRepo repository.LifecycleEventRepository,
	) error) error
}

// InvoiceDocument datos necesarios para renderizar la representación gráfica.
// Issuer y Debtor pueden ser nil si la organización ya no existe.
type InvoiceDocument struct {
	Invoice *entity.Invoice
	Issuer  *entity.Company
	Debtor  *entity.Company
	Lines   []*entity.InvoiceLine
}

// InvoicePDFGenerator puerto de salida para el renderizado del PDF.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

// ArtifactStorage puerto de salida para el almacenamiento durable de artefactos.
// Put con la misma clave sobrescribe el objeto (idempotente). Devuelve la referencia durable.
type ArtifactStorage interface {
	Put(ctx context.Context, key string, content []byte, contentType, sha256Hex string) (string, error)
}

// SweepMetrics recibe los contadores agregados de cada barrido.
type SweepMetrics interface {
	ObservePromotionSweep(r SweepResult)
	ObservePDFSweep(r PDFSweepResult)
}

type nopMetrics struct{}

func (nopMetrics) ObservePromotionSweep(SweepResult) {}
func (nopMetrics) ObservePDFSweep(PDFSweepResult)    {}

// Config flags y parámetros del núcleo de facturación. Se inyecta por constructor.
type Config struct {
	// AutoAdvanceOnErpPaid avanza el ciclo de vida a PAID cuando el ERP reporta PAID.
	AutoAdvanceOnErpPaid bool
	// PromotionUsesFinanceStatus: true = origen pagado si FinanceStatus == PAID;
	// false = si el ciclo de vida del origen es PAID.
	PromotionUsesFinanceStatus bool
	// DefaultDueDays días entre fecha de factura y vencimiento por defecto.
	DefaultDueDays int
	// PromotionBatchSize máximo de dependientes evaluados por barrido.
	PromotionBatchSize int
	// PDFBatchSize máximo de PDFs generados por barrido.
	PDFBatchSize int
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{
		AutoAdvanceOnErpPaid:       true,
		PromotionUsesFinanceStatus: true,
		DefaultDueDays:             30,
		PromotionBatchSize:         500,
		PDFBatchSize:               50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultDueDays <= 0 {
		c.DefaultDueDays = d.DefaultDueDays
	}
	if c.PromotionBatchSize <= 0 {
		c.PromotionBatchSize = d.PromotionBatchSize
	}
	if c.PDFBatchSize <= 0 {
		c.PDFBatchSize = d.PDFBatchSize
	}
	return c
}

// Clock fuente de tiempo inyectable (tests con reloj fijo).
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}
