// Package lifecycle contiene la máquina de estados del ciclo de vida de una factura.
// Es la única fuente de verdad sobre qué transiciones son legales.
//
//	DRAFT ──► CREATED ──► SUBMITTED ──► PAID
//	  │          │            │
//	  └──────────┴────────────┴──────► CANCELLED
//
// PAID y CANCELLED son terminales.
package lifecycle

import (
	"context"
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

var transitions = map[entity.InvoiceStatus][]entity.InvoiceStatus{
	entity.InvoiceStatusDraft:     {entity.InvoiceStatusCreated, entity.InvoiceStatusCancelled},
	entity.InvoiceStatusCreated:   {entity.InvoiceStatusSubmitted, entity.InvoiceStatusCancelled},
	entity.InvoiceStatusSubmitted: {entity.InvoiceStatusPaid, entity.InvoiceStatusCancelled},
	entity.InvoiceStatusPaid:      {},
	entity.InvoiceStatusCancelled: {},
}

// Changed notificación emitida en cada transición efectiva (no en las idempotentes).
type Changed struct {
	InvoiceID   string
	OldStatus   entity.InvoiceStatus
	NewStatus   entity.InvoiceStatus
	InvoiceType entity.InvoiceType
	OccurredAt  time.Time
}

// Publisher recibe las notificaciones de cambio de ciclo de vida (auditoría, outbox, métricas).
type Publisher interface {
	Publish(ctx context.Context, ev Changed)
}

// CanTransition indica si from → to es legal. from == to siempre es legal (no-op).
func CanTransition(from, to entity.InvoiceStatus) bool {
	if from == to {
		_, known := transitions[from]
		return known
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidNextStates devuelve los destinos legales desde from (vacío para terminales).
func ValidNextStates(from entity.InvoiceStatus) []entity.InvoiceStatus {
	next := transitions[from]
	out := make([]entity.InvoiceStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal true solo para PAID y CANCELLED.
func IsTerminal(s entity.InvoiceStatus) bool {
	return s == entity.InvoiceStatusPaid || s == entity.InvoiceStatusCancelled
}

// StateMachine aplica transiciones sobre facturas y publica las notificaciones.
type StateMachine struct {
	publisher Publisher
	now       func() time.Time
}

// NewStateMachine construye la máquina. publisher puede ser nil (sin observadores).
func NewStateMachine(publisher Publisher, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{publisher: publisher, now: now}
}

// Apply valida y aplica la transición sobre inv sin publicar.
// Devuelve nil, nil si es idempotente (from == to). En transición ilegal la factura no se modifica.
// Se usa dentro de transacciones: el llamador publica tras el commit.
func (m *StateMachine) Apply(inv *entity.Invoice, to entity.InvoiceStatus) (*Changed, error) {
	from := inv.Status
	if !CanTransition(from, to) {
		return nil, &domain.InvalidTransitionError{InvoiceID: inv.ID, From: string(from), To: string(to)}
	}
	if from == to {
		return nil, nil
	}
	now := m.now()
	inv.Status = to
	inv.UpdatedAt = now
	return &Changed{
		InvoiceID:   inv.ID,
		OldStatus:   from,
		NewStatus:   to,
		InvoiceType: inv.Type,
		OccurredAt:  now,
	}, nil
}

// Transition aplica la transición y publica la notificación si hubo cambio.
func (m *StateMachine) Transition(ctx context.Context, inv *entity.Invoice, to entity.InvoiceStatus) error {
	ev, err := m.Apply(inv, to)
	if err != nil {
		return err
	}
	if ev != nil {
		m.Notify(ctx, *ev)
	}
	return nil
}

// Notify publica una notificación ya aplicada (p. ej. después de un commit).
func (m *StateMachine) Notify(ctx context.Context, ev Changed) {
	if m.publisher != nil {
		m.publisher.Publish(ctx, ev)
	}
}
