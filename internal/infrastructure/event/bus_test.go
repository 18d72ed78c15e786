package event_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/event"
)

func sampleEvent() lifecycle.Changed {
	return lifecycle.Changed{
		InvoiceID:   "A",
		OldStatus:   entity.InvoiceStatusDraft,
		NewStatus:   entity.InvoiceStatusCreated,
		InvoiceType: entity.InvoiceTypeStandard,
		OccurredAt:  time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestBus_AislaSuscriptoresQueFallan(t *testing.T) {
	bus := event.NewBus(zerolog.Nop())
	var got []string

	bus.Subscribe(event.HandlerFunc{HandlerName: "panic", Fn: func(context.Context, lifecycle.Changed) error {
		panic("boom")
	}})
	bus.Subscribe(event.HandlerFunc{HandlerName: "error", Fn: func(context.Context, lifecycle.Changed) error {
		return errors.New("fallo")
	}})
	bus.Subscribe(event.HandlerFunc{HandlerName: "ok", Fn: func(_ context.Context, ev lifecycle.Changed) error {
		got = append(got, ev.InvoiceID)
		return nil
	}})

	require.NotPanics(t, func() { bus.Publish(context.Background(), sampleEvent()) })
	assert.Equal(t, []string{"A"}, got)
}

func TestAuditHandler_EscribeTransicion(t *testing.T) {
	var buf bytes.Buffer
	bus := event.NewBus(zerolog.Nop())
	bus.Subscribe(event.AuditHandler(zerolog.New(&buf)))

	bus.Publish(context.Background(), sampleEvent())

	out := buf.String()
	assert.Contains(t, out, `"invoice_id":"A"`)
	assert.Contains(t, out, `"from":"DRAFT"`)
	assert.Contains(t, out, `"to":"CREATED"`)
	assert.Contains(t, out, `"component":"audit"`)
}
