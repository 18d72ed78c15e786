package postgres_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/postgres"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// newTestPool levanta PostgreSQL en un contenedor, aplica las migraciones y devuelve el pool.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integración omitida con -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "debe arrancar el contenedor de PostgreSQL")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	mg, err := postgres.NewMigrator(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, mg.Up())
	version, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, mg.Close())

	pool, err := postgres.NewPoolFromDSN(ctx, dsn, 20)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedCompany(t *testing.T, pool *pgxpool.Pool, name string) string {
	t.Helper()
	c := &entity.Company{Name: name, TaxID: "ES" + name}
	require.NoError(t, postgres.NewCompanyRepository(pool).Create(context.Background(), c))
	return c.ID
}

func seedDraft(t *testing.T, pool *pgxpool.Pool, issuer, debtor string, typ entity.InvoiceType) string {
	t.Helper()
	inv := &entity.Invoice{
		IssuerID: issuer,
		DebtorID: debtor,
		Type:     typ,
		Series:   "TEST",
		Currency: "EUR",
		VATPct:   decimal.NewFromInt(19),
	}
	lines := []*entity.InvoiceLine{
		{Description: "Consultoría", Quantity: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("95.50")},
	}
	require.NoError(t, postgres.NewInvoiceRepository(pool).Create(context.Background(), inv, lines))
	return inv.ID
}

func newFinalizer(pool *pgxpool.Pool) *billing.FinalizeInvoiceUseCase {
	sm := lifecycle.NewStateMachine(nil, nil)
	return billing.NewFinalizeInvoiceUseCase(
		postgres.NewTxRunner(pool), postgres.NewInvoiceRepository(pool), sm,
		billing.DefaultConfig(), nil, zerolog.Nop(),
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestIntegration_FinalizeConcurrenteSinHuecos(t *testing.T) {
	pool := newTestPool(t)
	issuer := seedCompany(t, pool, "C1")
	debtor := seedCompany(t, pool, "D1")

	const n = 25
	ids := make([]string, n)
	for i := range ids {
		ids[i] = seedDraft(t, pool, issuer, debtor, entity.InvoiceTypeStandard)
	}

	uc := newFinalizer(pool)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			inv, err := uc.Finalize(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, *inv.Number)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, got := range numbers {
		assert.Equal(t, int64(i+1), got, "los números deben ser 1..n sin huecos")
	}
}

func TestIntegration_RollbackDevuelveElNumero(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	issuer := seedCompany(t, pool, "C1")

	runner := postgres.NewTxRunner(pool)
	err := runner.RunInvoice(ctx, func(_ repository.InvoiceRepository, seq repository.SequenceRepository, _ repository.LifecycleEventRepository) error {
		n, err := seq.Next(ctx, issuer, "TEST")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		return fmt.Errorf("abortar")
	})
	require.Error(t, err)

	err = runner.RunInvoice(ctx, func(_ repository.InvoiceRepository, seq repository.SequenceRepository, _ repository.LifecycleEventRepository) error {
		n, err := seq.Next(ctx, issuer, "TEST")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "el número consumido en la tx abortada se reutiliza")
		return nil
	})
	require.NoError(t, err)
}

func TestIntegration_PhantomYArtefacto(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	issuer := seedCompany(t, pool, "C1")
	debtor := seedCompany(t, pool, "D1")
	phantomID := seedDraft(t, pool, issuer, debtor, entity.InvoiceTypePhantom)

	inv, err := newFinalizer(pool).Finalize(ctx, phantomID)
	require.NoError(t, err)
	assert.Nil(t, inv.Number)

	repo := postgres.NewInvoiceRepository(pool)
	stored, err := repo.GetByID(ctx, phantomID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusCreated, stored.Status)
	require.NotNil(t, stored.DueDate)
	assert.Equal(t, stored.InvoiceDate.AddDate(0, 0, 30).Format("2006-01-02"), stored.DueDate.Format("2006-01-02"))

	pending, err := repo.ListMissingArtifact(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	rest, err := repo.ListMissingArtifact(ctx, repository.CursorOf(pending[0]), 10)
	require.NoError(t, err)
	assert.Empty(t, rest, "el cursor excluye lo ya visto")

	ok, err := repo.UpdateArtifact(ctx, phantomID, "s3://b/k", "abc", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.UpdateArtifact(ctx, phantomID, "s3://b/k2", "def", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "no se sobrescribe un artefacto ya registrado")

	lines, err := repo.ListLines(ctx, phantomID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, decimal.RequireFromString("764").Equal(lines[0].Subtotal()))

	events, err := postgres.NewLifecycleEventRepository(pool).ListByInvoice(ctx, phantomID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.InvoiceStatusCreated, events[0].NewStatus)
}

func TestIntegration_EsquemaDelHistorialDeTransiciones(t *testing.T) {
	pool := newTestPool(t)
	rows, err := pool.Query(context.Background(), `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'invoice_lifecycle_events' ORDER BY ordinal_position`)
	require.NoError(t, err)
	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"id", "invoice_id", "old_status", "new_status", "invoice_type", "occurred_at"}, cols)
}

func TestIntegration_GetByIDInexistente(t *testing.T) {
	pool := newTestPool(t)
	repo := postgres.NewInvoiceRepository(pool)

	inv, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, inv)

	inv, err = repo.GetByID(context.Background(), "no-es-uuid")
	require.NoError(t, err)
	assert.Nil(t, inv)
}
