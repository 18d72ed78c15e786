package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// PDFSweepResult contadores agregados de un barrido de generación de PDFs.
type PDFSweepResult struct {
	Generated int
	Failed    int
}

// PDFUseCase genera la representación gráfica (PDF) de facturas finalizadas, la sube al
// almacenamiento durable y registra referencia + SHA-256. Desacoplado de la finalización.
type PDFUseCase struct {
	invoiceRepo repository.InvoiceRepository
	companyRepo repository.CompanyRepository
	generator   InvoicePDFGenerator
	storage     ArtifactStorage
	cfg         Config
	now         Clock
	metrics     SweepMetrics
	log         zerolog.Logger
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
// storage puede ser nil: en ese caso solo funciona la descarga bajo demanda.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	companyRepo repository.CompanyRepository,
	generator InvoicePDFGenerator,
	storage ArtifactStorage,
	cfg Config,
	now Clock,
	metrics SweepMetrics,
	log zerolog.Logger,
) *PDFUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &PDFUseCase{
		invoiceRepo: invoiceRepo,
		companyRepo: companyRepo,
		generator:   generator,
		storage:     storage,
		cfg:         cfg.withDefaults(),
		now:         now.orDefault(),
		metrics:     metrics,
		log:         log.With().Str("component", "pdf").Logger(),
	}
}

// RunSweep genera el artefacto de todas las facturas CREATED que aún no lo tienen,
// en páginas de PDFBatchSize. Un ítem que falla no bloquea a los siguientes y se
// reintenta en el próximo barrido.
func (uc *PDFUseCase) RunSweep(ctx context.Context) (PDFSweepResult, error) {
	var res PDFSweepResult
	if uc.storage == nil {
		return res, nil
	}

	var after *repository.Cursor
	for ctx.Err() == nil {
		page, err := uc.invoiceRepo.ListMissingArtifact(ctx, after, uc.cfg.PDFBatchSize)
		if err != nil {
			uc.log.Error().Err(err).Msg("no se pudieron listar facturas sin PDF")
			return res, fmt.Errorf("listar facturas sin PDF: %w", err)
		}
		for _, inv := range page {
			if ctx.Err() != nil {
				break
			}
			if err := uc.produce(ctx, inv); err != nil {
				uc.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("falló la generación del PDF")
				res.Failed++
				continue
			}
			res.Generated++
		}
		if len(page) < uc.cfg.PDFBatchSize {
			break
		}
		after = repository.CursorOf(page[len(page)-1])
	}

	uc.metrics.ObservePDFSweep(res)
	ev := uc.log.Debug()
	if res.Generated > 0 || res.Failed > 0 {
		ev = uc.log.Info()
	}
	ev.Int("generated", res.Generated).Int("failed", res.Failed).Msg("barrido de PDFs completado")
	return res, ctx.Err()
}

// Regenerate borra referencia y hash del artefacto; el siguiente barrido lo vuelve a producir.
func (uc *PDFUseCase) Regenerate(ctx context.Context, invoiceID string) error {
	if invoiceID == "" {
		return domain.ErrInvalidInput
	}
	ok, err := uc.invoiceRepo.ClearArtifact(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("pdf: limpiar artefacto: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
	}
	uc.log.Info().Str("invoice_id", invoiceID).Msg("PDF marcado para regenerar")
	return nil
}

// Download genera el PDF al vuelo (sin almacenarlo) para una factura ya finalizada.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la factura no existe.
//   - domain.ErrInvalidState     si la factura sigue en DRAFT.
func (uc *PDFUseCase) Download(ctx context.Context, invoiceID string) ([]byte, string, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
	}
	if inv.Status == entity.InvoiceStatusDraft {
		return nil, "", domain.NewInvalidStateError(inv.ID, string(inv.Status), "CREATED o posterior")
	}
	doc, err := uc.loadDocument(ctx, inv)
	if err != nil {
		return nil, "", err
	}
	pdfBytes, err := uc.generator.GenerateInvoicePDF(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, Filename(inv), nil
}

// produce renderiza, calcula el hash, sube y registra. Idempotente: la clave es determinista
// y el registro solo se hace si la factura sigue sin artefacto.
func (uc *PDFUseCase) produce(ctx context.Context, inv *entity.Invoice) error {
	doc, err := uc.loadDocument(ctx, inv)
	if err != nil {
		return err
	}
	content, err := uc.generator.GenerateInvoicePDF(ctx, doc)
	if err != nil {
		return fmt.Errorf("renderizar: %w", err)
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	ref, err := uc.storage.Put(ctx, ArtifactKey(inv), content, "application/pdf", hash)
	if err != nil {
		return fmt.Errorf("subir artefacto: %w", err)
	}
	recorded, err := uc.invoiceRepo.UpdateArtifact(ctx, inv.ID, ref, hash, uc.now())
	if err != nil {
		return fmt.Errorf("registrar artefacto: %w", err)
	}
	if !recorded {
		uc.log.Debug().Str("invoice_id", inv.ID).Msg("artefacto ya registrado por otra ejecución")
	}
	return nil
}

func (uc *PDFUseCase) loadDocument(ctx context.Context, inv *entity.Invoice) (InvoiceDocument, error) {
	doc := InvoiceDocument{Invoice: inv}
	var err error
	if doc.Issuer, err = uc.companyRepo.GetByID(ctx, inv.IssuerID); err != nil {
		return doc, fmt.Errorf("pdf: obtener emisor: %w", err)
	}
	if doc.Debtor, err = uc.companyRepo.GetByID(ctx, inv.DebtorID); err != nil {
		return doc, fmt.Errorf("pdf: obtener deudor: %w", err)
	}
	if doc.Lines, err = uc.invoiceRepo.ListLines(ctx, inv.ID); err != nil {
		return doc, fmt.Errorf("pdf: obtener líneas: %w", err)
	}
	return doc, nil
}

// ArtifactKey clave determinista del PDF en el almacenamiento.
func ArtifactKey(inv *entity.Invoice) string {
	year := inv.InvoiceYear
	if year == 0 {
		year = inv.CreatedAt.Year()
	}
	return fmt.Sprintf("invoices/%s/%d/%s.pdf", inv.IssuerID, year, inv.ID)
}

// Filename nombre de descarga: factura_<SERIE-NUMERO>.pdf o factura_<id>.pdf si no tiene número.
func Filename(inv *entity.Invoice) string {
	if n := inv.DisplayNumber(); n != "" {
		return "factura_" + n + ".pdf"
	}
	return "factura_" + inv.ID + ".pdf"
}
