package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

// SequenceRepo contador por (emisor, serie) en invoice_sequences.
// El upsert toma el bloqueo de fila del contador: los finalizadores concurrentes de la misma
// serie se serializan hasta el commit o rollback de la tx que lo tiene.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Debe recibir una tx para que el número
// se devuelva en caso de rollback.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next incrementa y devuelve el siguiente número. La primera llamada para una serie devuelve 1.
func (r *SequenceRepo) Next(ctx context.Context, issuerID, series string) (int64, error) {
	const query = `
		INSERT INTO invoice_sequences (issuer_id, series, last_value, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (issuer_id, series)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = now()
		RETURNING last_value`
	var n int64
	if err := r.q.QueryRow(ctx, query, issuerID, series).Scan(&n); err != nil {
		return 0, fmt.Errorf("next invoice number %s/%s: %w", issuerID, series, err)
	}
	return n, nil
}
