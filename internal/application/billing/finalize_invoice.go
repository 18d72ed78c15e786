package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// FinalizeInvoiceUseCase finaliza borradores: consecutivo, fechas por defecto y DRAFT → CREATED
// en una sola transacción. También es el mecanismo que usa la promoción de dependientes.
type FinalizeInvoiceUseCase struct {
	txRunner     InvoiceTxRunner
	invoiceRepo  repository.InvoiceRepository
	stateMachine *lifecycle.StateMachine
	cfg          Config
	now          Clock
	log          zerolog.Logger
}

// NewFinalizeInvoiceUseCase construye el caso de uso.
func NewFinalizeInvoiceUseCase(
	txRunner InvoiceTxRunner,
	invoiceRepo repository.InvoiceRepository,
	stateMachine *lifecycle.StateMachine,
	cfg Config,
	now Clock,
	log zerolog.Logger,
) *FinalizeInvoiceUseCase {
	return &FinalizeInvoiceUseCase{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		stateMachine: stateMachine,
		cfg:          cfg.withDefaults(),
		now:          now.orDefault(),
		log:          log.With().Str("component", "finalize").Logger(),
	}
}

// Finalize asigna número (salvo PHANTOM), completa fechas y pasa la factura a CREATED.
//
// Retorna:
//   - domain.ErrNotFound            si la factura no existe.
//   - domain.ErrInvalidState        si no está en DRAFT (sin efectos).
//   - domain.ErrSequenceUnavailable si no se pudo obtener el consecutivo (rollback completo).
func (uc *FinalizeInvoiceUseCase) Finalize(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	if invoiceID == "" {
		return nil, domain.ErrInvalidInput
	}

	var (
		finalized *entity.Invoice
		changed   *lifecycle.Changed
	)
	err := uc.txRunner.RunInvoice(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		sequenceRepo repository.SequenceRepository,
		eventRepo repository.LifecycleEventRepository,
	) error {
		inv, err := invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("finalizar: obtener factura: %w", err)
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
		}
		if inv.Status != entity.InvoiceStatusDraft {
			return domain.NewInvalidStateError(inv.ID, string(inv.Status), string(entity.InvoiceStatusDraft))
		}

		now := uc.now()

		// 1) Consecutivo. Mismo tx que el resto: un rollback devuelve el número (sin huecos).
		if inv.Type == entity.InvoiceTypePhantom {
			inv.Number = nil
		} else if inv.Number == nil {
			n, err := sequenceRepo.Next(ctx, inv.IssuerID, inv.Series)
			if err != nil {
				return fmt.Errorf("%w: emisor %s serie %s: %w", domain.ErrSequenceUnavailable, inv.IssuerID, inv.Series, err)
			}
			inv.Number = &n
		}

		// 2) y 3) Fechas por defecto y año/mes derivados.
		applyDefaultDates(inv, now, uc.cfg.DefaultDueDays)

		// 4) DRAFT → CREATED
		ev, err := uc.stateMachine.Apply(inv, entity.InvoiceStatusCreated)
		if err != nil {
			return err
		}

		// 5) Sale de la cola
		inv.ProcessingState = entity.ProcessingStateIdle
		inv.QueueReason = entity.QueueReasonNone
		inv.UpdatedAt = now

		// 6) Persistir + outbox
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return fmt.Errorf("finalizar: guardar factura: %w", err)
		}
		if ev != nil {
			if err := eventRepo.Append(ctx, *ev); err != nil {
				return fmt.Errorf("finalizar: registrar evento: %w", err)
			}
		}
		finalized = inv
		changed = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed != nil {
		uc.stateMachine.Notify(ctx, *changed)
	}
	uc.log.Info().
		Str("invoice_id", finalized.ID).
		Str("issuer_id", finalized.IssuerID).
		Str("number", finalized.DisplayNumber()).
		Str("type", string(finalized.Type)).
		Msg("factura finalizada")
	return finalized, nil
}

// CanFinalize indica, sin efectos, si la factura existe y está en DRAFT.
func (uc *FinalizeInvoiceUseCase) CanFinalize(ctx context.Context, invoiceID string) (bool, error) {
	if invoiceID == "" {
		return false, nil
	}
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return false, fmt.Errorf("consultar factura: %w", err)
	}
	return inv != nil && inv.Status == entity.InvoiceStatusDraft, nil
}

// applyDefaultDates: fecha de factura = hoy si falta; vencimiento = fecha + dueDays si falta.
func applyDefaultDates(inv *entity.Invoice, now time.Time, dueDays int) {
	if inv.InvoiceDate == nil {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		inv.InvoiceDate = &today
	}
	if inv.DueDate == nil {
		due := inv.InvoiceDate.AddDate(0, 0, dueDays)
		inv.DueDate = &due
	}
	inv.InvoiceYear = inv.InvoiceDate.Year()
	inv.InvoiceMonth = int(inv.InvoiceDate.Month())
}
