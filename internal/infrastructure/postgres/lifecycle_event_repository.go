package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

var _ repository.LifecycleEventRepository = (*LifecycleEventRepo)(nil)

// LifecycleEventRepo historial durable invoice_lifecycle_events (una fila por transición).
type LifecycleEventRepo struct {
	q Querier
}

// NewLifecycleEventRepository construye el adaptador (pool o tx).
func NewLifecycleEventRepository(q Querier) *LifecycleEventRepo {
	return &LifecycleEventRepo{q: q}
}

// Append inserta el evento en la transacción del cambio de estado.
func (r *LifecycleEventRepo) Append(ctx context.Context, ev lifecycle.Changed) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoice_lifecycle_events (invoice_id, old_status, new_status, invoice_type, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.InvoiceID, ev.OldStatus, ev.NewStatus, ev.InvoiceType, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListByInvoice historial de transiciones de una factura, en orden.
func (r *LifecycleEventRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]lifecycle.Changed, error) {
	rows, err := r.q.Query(ctx, `
		SELECT invoice_id, old_status, new_status, invoice_type, occurred_at
		FROM invoice_lifecycle_events WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list lifecycle events: %w", err)
	}
	defer rows.Close()
	var out []lifecycle.Changed
	for rows.Next() {
		var (
			ev       lifecycle.Changed
			oldSt    string
			newSt    string
			invType  string
			occurred time.Time
		)
		if err := rows.Scan(&ev.InvoiceID, &oldSt, &newSt, &invType, &occurred); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		ev.OldStatus = entity.InvoiceStatus(oldSt)
		ev.NewStatus = entity.InvoiceStatus(newSt)
		ev.InvoiceType = entity.InvoiceType(invType)
		ev.OccurredAt = occurred
		out = append(out, ev)
	}
	return out, rows.Err()
}
