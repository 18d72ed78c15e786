package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// SweepResult contadores agregados de un barrido de promoción.
type SweepResult struct {
	Promoted int
	Waiting  int
	Errors   int
}

// invoiceFinalizer lo implementa *FinalizeInvoiceUseCase.
type invoiceFinalizer interface {
	Finalize(ctx context.Context, invoiceID string) (*entity.Invoice, error)
}

// PromotionUseCase promueve facturas dependientes (QUEUED + AWAIT_SOURCE_PAID) cuando su
// factura origen cumple el predicado "pagada". Lo ejecuta periódicamente el scheduler.
type PromotionUseCase struct {
	invoiceRepo repository.InvoiceRepository
	finalizer   invoiceFinalizer
	cfg         Config
	metrics     SweepMetrics
	log         zerolog.Logger
}

// NewPromotionUseCase construye el caso de uso. metrics puede ser nil.
func NewPromotionUseCase(
	invoiceRepo repository.InvoiceRepository,
	finalizer invoiceFinalizer,
	cfg Config,
	metrics SweepMetrics,
	log zerolog.Logger,
) *PromotionUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &PromotionUseCase{
		invoiceRepo: invoiceRepo,
		finalizer:   finalizer,
		cfg:         cfg.withDefaults(),
		metrics:     metrics,
		log:         log.With().Str("component", "promotion").Logger(),
	}
}

// RunSweep evalúa todos los dependientes en cola, en páginas de PromotionBatchSize.
// Un fallo por ítem se cuenta y no detiene el barrido. Solo devuelve error si no se
// pudo leer la cola.
func (uc *PromotionUseCase) RunSweep(ctx context.Context) (SweepResult, error) {
	var (
		res   SweepResult
		after *repository.Cursor
	)
	for ctx.Err() == nil {
		page, err := uc.invoiceRepo.ListAwaitingSource(ctx, after, uc.cfg.PromotionBatchSize)
		if err != nil {
			uc.log.Error().Err(err).Msg("no se pudo listar la cola de dependientes")
			return res, fmt.Errorf("listar dependientes: %w", err)
		}
		for _, dep := range page {
			if ctx.Err() != nil {
				break
			}
			uc.evaluate(ctx, dep, &res)
		}
		if len(page) < uc.cfg.PromotionBatchSize {
			break
		}
		after = repository.CursorOf(page[len(page)-1])
	}

	uc.metrics.ObservePromotionSweep(res)
	ev := uc.log.Debug()
	if res.Promoted > 0 || res.Errors > 0 {
		ev = uc.log.Info()
	}
	ev.Int("promoted", res.Promoted).
		Int("waiting", res.Waiting).
		Int("errors", res.Errors).
		Msg("barrido de promoción completado")

	return res, ctx.Err()
}

// evaluate promueve dep si su origen está pagado y acumula el resultado en res.
func (uc *PromotionUseCase) evaluate(ctx context.Context, dep *entity.Invoice, res *SweepResult) {
	if dep.SourceInvoiceID == nil || *dep.SourceInvoiceID == "" {
		uc.log.Warn().Str("invoice_id", dep.ID).Msg("dependiente en cola sin factura origen")
		res.Waiting++
		return
	}
	source, err := uc.invoiceRepo.GetByID(ctx, *dep.SourceInvoiceID)
	if err != nil {
		uc.log.Error().Err(err).
			Str("invoice_id", dep.ID).
			Str("source_invoice_id", *dep.SourceInvoiceID).
			Msg("error consultando factura origen")
		res.Errors++
		return
	}
	if source == nil {
		uc.log.Warn().
			Str("invoice_id", dep.ID).
			Str("source_invoice_id", *dep.SourceInvoiceID).
			Msg("factura origen no encontrada")
		res.Waiting++
		return
	}
	if !source.SourcePaid(uc.cfg.PromotionUsesFinanceStatus) {
		res.Waiting++
		return
	}
	if _, err := uc.finalizer.Finalize(ctx, dep.ID); err != nil {
		uc.log.Error().Err(err).
			Str("invoice_id", dep.ID).
			Str("source_invoice_id", source.ID).
			Msg("falló la promoción del dependiente")
		res.Errors++
		return
	}
	res.Promoted++
}

// Promote promoción manual (operador). Solo aplica a dependientes en DRAFT cuya factura
// origen esté pagada; un borrador sin origen se finaliza con Finalize.
func (uc *PromotionUseCase) Promote(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	if invoiceID == "" {
		return nil, domain.ErrInvalidInput
	}
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("promover: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
	}
	if inv.Status != entity.InvoiceStatusDraft {
		return nil, domain.NewInvalidStateError(inv.ID, string(inv.Status), string(entity.InvoiceStatusDraft))
	}

	if inv.SourceInvoiceID == nil || *inv.SourceInvoiceID == "" {
		if inv.IsAwaitingSource() {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceNotPaid, entity.ErrQueuedWithoutSource)
		}
		return nil, fmt.Errorf("%w: la factura %s no depende de otra factura", domain.ErrInvalidState, inv.ID)
	}

	source, err := uc.invoiceRepo.GetByID(ctx, *inv.SourceInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("promover: obtener factura origen: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: la factura origen %s no existe", domain.ErrSourceNotPaid, *inv.SourceInvoiceID)
	}
	if !source.SourcePaid(uc.cfg.PromotionUsesFinanceStatus) {
		return nil, fmt.Errorf("%w: origen %s (estado %s, financiero %s)",
			domain.ErrSourceNotPaid, source.ID, source.Status, source.FinanceStatus)
	}

	out, err := uc.finalizer.Finalize(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("invoice_id", invoiceID).Msg("promoción manual aplicada")
	return out, nil
}
