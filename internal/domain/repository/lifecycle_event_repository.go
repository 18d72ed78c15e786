package repository

import (
	"context"

	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
)

// LifecycleEventRepository historial durable de transiciones de ciclo de vida.
// Append se invoca en la misma transacción que el cambio de estado.
type LifecycleEventRepository interface {
	Append(ctx context.Context, ev lifecycle.Changed) error
}
