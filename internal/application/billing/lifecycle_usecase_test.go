package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
)

func TestTransitionInvoice_Legal(t *testing.T) {
	f := newFixture(billing.DefaultConfig())
	uc := billing.NewLifecycleUseCase(f.store, f.sm, fixedClock, testLogger())
	f.store.put(withStatus("A", entity.InvoiceStatusCreated))

	inv, err := uc.TransitionInvoice(context.Background(), "A", entity.InvoiceStatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusSubmitted, inv.Status)
	assert.Equal(t, entity.InvoiceStatusSubmitted, f.store.get("A").Status)
	assert.Len(t, f.publisher.all(), 1)
	assert.Equal(t, 1, f.store.eventCount())
}

func TestTransitionInvoice_IlegalNoModifica(t *testing.T) {
	f := newFixture(billing.DefaultConfig())
	uc := billing.NewLifecycleUseCase(f.store, f.sm, fixedClock, testLogger())
	f.store.put(withStatus("A", entity.InvoiceStatusCreated))

	_, err := uc.TransitionInvoice(context.Background(), "A", entity.InvoiceStatusPaid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	var te *domain.InvalidTransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "CREATED", te.From)
	assert.Equal(t, "PAID", te.To)

	assert.Equal(t, entity.InvoiceStatusCreated, f.store.get("A").Status)
	assert.Empty(t, f.publisher.all())
}

func TestTransitionInvoice_IdempotenteSinEvento(t *testing.T) {
	f := newFixture(billing.DefaultConfig())
	uc := billing.NewLifecycleUseCase(f.store, f.sm, fixedClock, testLogger())
	f.store.put(withStatus("A", entity.InvoiceStatusCancelled))

	inv, err := uc.TransitionInvoice(context.Background(), "A", entity.InvoiceStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusCancelled, inv.Status)
	assert.Empty(t, f.publisher.all())
	assert.Zero(t, f.store.eventCount())
}

func TestTransitionInvoice_DraftACreatedRequiereFinalizar(t *testing.T) {
	f := newFixture(billing.DefaultConfig())
	uc := billing.NewLifecycleUseCase(f.store, f.sm, fixedClock, testLogger())
	f.store.put(draft("A", entity.InvoiceTypeStandard))

	_, err := uc.TransitionInvoice(context.Background(), "A", entity.InvoiceStatusCreated)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, entity.InvoiceStatusDraft, f.store.get("A").Status)
}

func TestTransitionInvoice_DraftACancelled(t *testing.T) {
	f := newFixture(billing.DefaultConfig())
	uc := billing.NewLifecycleUseCase(f.store, f.sm, fixedClock, testLogger())
	f.store.put(draft("A", entity.InvoiceTypeStandard))

	inv, err := uc.TransitionInvoice(context.Background(), "A", entity.InvoiceStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusCancelled, inv.Status)
	assert.Nil(t, inv.Number)
}
