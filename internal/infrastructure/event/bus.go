// Package event reparte las notificaciones de ciclo de vida a los suscriptores del proceso
// (auditoría en log, métricas). La copia durable vive en el outbox de PostgreSQL.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
)

// Handler suscriptor de notificaciones de ciclo de vida.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev lifecycle.Changed) error
}

// HandlerFunc adapta una función a Handler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, ev lifecycle.Changed) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Handle(ctx context.Context, ev lifecycle.Changed) error { return h.Fn(ctx, ev) }

// Bus implementa lifecycle.Publisher con reparto síncrono. Un suscriptor que falla
// o entra en pánico no afecta a los demás ni al llamador.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      zerolog.Logger
}

var _ lifecycle.Publisher = (*Bus)(nil)

// NewBus construye el bus vacío.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log.With().Str("component", "event-bus").Logger()}
}

// Subscribe registra un suscriptor.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
	b.log.Debug().Str("handler", h.Name()).Msg("suscriptor registrado")
}

// Publish entrega ev a todos los suscriptores.
func (b *Bus) Publish(ctx context.Context, ev lifecycle.Changed) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.dispatch(ctx, h, ev); err != nil {
			b.log.Error().Err(err).
				Str("handler", h.Name()).
				Str("invoice_id", ev.InvoiceID).
				Msg("suscriptor falló al procesar la notificación")
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev lifecycle.Changed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

// AuditHandler deja cada transición en el log estructurado.
func AuditHandler(log zerolog.Logger) Handler {
	l := log.With().Str("component", "audit").Logger()
	return HandlerFunc{
		HandlerName: "audit-log",
		Fn: func(_ context.Context, ev lifecycle.Changed) error {
			l.Info().
				Str("invoice_id", ev.InvoiceID).
				Str("invoice_type", string(ev.InvoiceType)).
				Str("from", string(ev.OldStatus)).
				Str("to", string(ev.NewStatus)).
				Time("occurred_at", ev.OccurredAt).
				Msg("cambio de ciclo de vida")
			return nil
		},
	}
}
