package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

// Cursor posición de paginación por clave (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf cursor que apunta justo después de inv.
func CursorOf(inv *entity.Invoice) *Cursor {
	return &Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}
}

// InvoiceRepository define el puerto de persistencia para Invoice y sus líneas.
// Los métodos Get* devuelven (nil, nil) si la factura no existe.
type InvoiceRepository interface {
	// Create persiste una factura (normalmente en DRAFT) y sus líneas.
	Create(ctx context.Context, invoice *entity.Invoice, lines []*entity.InvoiceLine) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetByIDForUpdate bloquea la fila hasta el fin de la transacción (SELECT ... FOR UPDATE).
	// Solo tiene sentido con un repositorio atado a una tx.
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error)
	// Update persiste ciclo de vida, estado financiero, procesamiento, número y fechas.
	// No toca los campos del artefacto PDF (ver UpdateArtifact / ClearArtifact).
	Update(ctx context.Context, invoice *entity.Invoice) error
	ListLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error)

	// ListAwaitingSource lista facturas QUEUED + AWAIT_SOURCE_PAID posteriores a after
	// (nil = desde el principio), ordenadas por (created_at, id).
	ListAwaitingSource(ctx context.Context, after *Cursor, limit int) ([]*entity.Invoice, error)
	// ListMissingArtifact lista facturas CREATED sin PDF almacenado, con el mismo orden y cursor.
	ListMissingArtifact(ctx context.Context, after *Cursor, limit int) ([]*entity.Invoice, error)
	// UpdateArtifact registra referencia y hash solo si la factura aún no tiene artefacto.
	// Devuelve false si otra ejecución ya lo registró.
	UpdateArtifact(ctx context.Context, id, ref, sha256Hex string, generatedAt time.Time) (bool, error)
	// ClearArtifact borra referencia y hash. Devuelve false si la factura no existe.
	ClearArtifact(ctx context.Context, id string) (bool, error)
}
