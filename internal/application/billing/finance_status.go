package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/finance"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// FinanceStatusUseCase concilia el estado reportado por el ERP con la dimensión financiera
// de la factura y, si está habilitado, avanza el ciclo de vida a PAID.
type FinanceStatusUseCase struct {
	txRunner     InvoiceTxRunner
	stateMachine *lifecycle.StateMachine
	cfg          Config
	now          Clock
	log          zerolog.Logger
}

// NewFinanceStatusUseCase construye el caso de uso.
func NewFinanceStatusUseCase(
	txRunner InvoiceTxRunner,
	stateMachine *lifecycle.StateMachine,
	cfg Config,
	now Clock,
	log zerolog.Logger,
) *FinanceStatusUseCase {
	return &FinanceStatusUseCase{
		txRunner:     txRunner,
		stateMachine: stateMachine,
		cfg:          cfg.withDefaults(),
		now:          now.orDefault(),
		log:          log.With().Str("component", "finance-status").Logger(),
	}
}

// UpdateFinanceStatus aplica el estado externo. externalStatus y voucherRef pueden ser nil.
// Si el estado traducido no cambia, no se escribe nada.
func (uc *FinanceStatusUseCase) UpdateFinanceStatus(ctx context.Context, invoiceID string, externalStatus, voucherRef *string) error {
	if invoiceID == "" {
		return domain.ErrInvalidInput
	}
	mapped, known := finance.MapExternalStatus(externalStatus, voucherRef)
	if !known {
		uc.log.Warn().
			Str("invoice_id", invoiceID).
			Str("external_status", *externalStatus).
			Msg("estado ERP no reconocido, se asume NONE")
	}

	var (
		changed  *lifecycle.Changed
		previous entity.FinanceStatus
		updated  bool
	)
	err := uc.txRunner.RunInvoice(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.SequenceRepository,
		eventRepo repository.LifecycleEventRepository,
	) error {
		inv, err := invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("estado financiero: obtener factura: %w", err)
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
		}
		if inv.FinanceStatus == mapped {
			uc.log.Debug().
				Str("invoice_id", invoiceID).
				Str("finance_status", string(mapped)).
				Msg("estado financiero sin cambios")
			return nil
		}

		previous = inv.FinanceStatus
		inv.FinanceStatus = mapped
		if voucherRef != nil && strings.TrimSpace(*voucherRef) != "" {
			inv.ErpVoucherRef = strings.TrimSpace(*voucherRef)
		}
		inv.UpdatedAt = uc.now()

		if mapped == entity.FinanceStatusPaid && uc.cfg.AutoAdvanceOnErpPaid {
			if lifecycle.CanTransition(inv.Status, entity.InvoiceStatusPaid) {
				ev, err := uc.stateMachine.Apply(inv, entity.InvoiceStatusPaid)
				if err != nil {
					return err
				}
				changed = ev
			} else {
				uc.log.Info().
					Str("invoice_id", invoiceID).
					Str("status", string(inv.Status)).
					Msg("ERP reporta PAID pero el ciclo de vida no puede pasar a PAID; se omite el avance")
			}
		}

		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return fmt.Errorf("estado financiero: guardar factura: %w", err)
		}
		if changed != nil {
			if err := eventRepo.Append(ctx, *changed); err != nil {
				return fmt.Errorf("estado financiero: registrar evento: %w", err)
			}
		}
		updated = true
		return nil
	})
	if err != nil {
		return err
	}
	if updated {
		uc.log.Info().
			Str("invoice_id", invoiceID).
			Str("from", string(previous)).
			Str("to", string(mapped)).
			Bool("lifecycle_paid", changed != nil).
			Msg("estado financiero actualizado")
	}
	if changed != nil {
		uc.stateMachine.Notify(ctx, *changed)
	}
	return nil
}

// ResetFinanceStatus vuelve el estado financiero a NONE incondicionalmente.
func (uc *FinanceStatusUseCase) ResetFinanceStatus(ctx context.Context, invoiceID string) error {
	if invoiceID == "" {
		return domain.ErrInvalidInput
	}
	return uc.txRunner.RunInvoice(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.SequenceRepository,
		_ repository.LifecycleEventRepository,
	) error {
		inv, err := invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("reset estado financiero: obtener factura: %w", err)
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
		}
		inv.FinanceStatus = entity.FinanceStatusNone
		inv.UpdatedAt = uc.now()
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return fmt.Errorf("reset estado financiero: guardar factura: %w", err)
		}
		uc.log.Info().Str("invoice_id", invoiceID).Msg("estado financiero reiniciado a NONE")
		return nil
	})
}
