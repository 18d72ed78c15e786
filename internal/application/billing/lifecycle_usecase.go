package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// LifecycleUseCase aplica transiciones pedidas por llamadores externos (envío, cancelación, pago manual).
// DRAFT → CREATED no pasa por aquí: requiere numeración y se hace con FinalizeInvoiceUseCase.
type LifecycleUseCase struct {
	txRunner     InvoiceTxRunner
	stateMachine *lifecycle.StateMachine
	now          Clock
	log          zerolog.Logger
}

// NewLifecycleUseCase construye el caso de uso.
func NewLifecycleUseCase(txRunner InvoiceTxRunner, stateMachine *lifecycle.StateMachine, now Clock, log zerolog.Logger) *LifecycleUseCase {
	return &LifecycleUseCase{
		txRunner:     txRunner,
		stateMachine: stateMachine,
		now:          now.orDefault(),
		log:          log.With().Str("component", "lifecycle").Logger(),
	}
}

// TransitionInvoice mueve la factura a target y persiste el cambio con su evento de outbox.
func (uc *LifecycleUseCase) TransitionInvoice(ctx context.Context, invoiceID string, target entity.InvoiceStatus) (*entity.Invoice, error) {
	if invoiceID == "" {
		return nil, domain.ErrInvalidInput
	}
	var (
		out     *entity.Invoice
		changed *lifecycle.Changed
	)
	err := uc.txRunner.RunInvoice(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.SequenceRepository,
		eventRepo repository.LifecycleEventRepository,
	) error {
		inv, err := invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("transición: obtener factura: %w", err)
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
		}
		if inv.Status == entity.InvoiceStatusDraft && target == entity.InvoiceStatusCreated {
			return fmt.Errorf("%w: DRAFT → CREATED se hace finalizando la factura", domain.ErrInvalidInput)
		}
		ev, err := uc.stateMachine.Apply(inv, target)
		if err != nil {
			return err
		}
		out = inv
		if ev == nil {
			return nil
		}
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return fmt.Errorf("transición: guardar factura: %w", err)
		}
		if err := eventRepo.Append(ctx, *ev); err != nil {
			return fmt.Errorf("transición: registrar evento: %w", err)
		}
		changed = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed != nil {
		uc.stateMachine.Notify(ctx, *changed)
		uc.log.Info().
			Str("invoice_id", out.ID).
			Str("from", string(changed.OldStatus)).
			Str("to", string(changed.NewStatus)).
			Msg("transición aplicada")
	}
	return out, nil
}

// CanTransition ver lifecycle.CanTransition.
func (uc *LifecycleUseCase) CanTransition(from, to entity.InvoiceStatus) bool {
	return lifecycle.CanTransition(from, to)
}

// ValidNextStates ver lifecycle.ValidNextStates.
func (uc *LifecycleUseCase) ValidNextStates(from entity.InvoiceStatus) []entity.InvoiceStatus {
	return lifecycle.ValidNextStates(from)
}

// IsTerminal ver lifecycle.IsTerminal.
func (uc *LifecycleUseCase) IsTerminal(s entity.InvoiceStatus) bool {
	return lifecycle.IsTerminal(s)
}
