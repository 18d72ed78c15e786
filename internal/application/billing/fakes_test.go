package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain/entity"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Almacén en memoria con transacciones serializadas y rollback por snapshot
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu        sync.Mutex
	invoices  map[string]*entity.Invoice
	lines     map[string][]*entity.InvoiceLine
	companies map[string]*entity.Company
	seq       map[string]int64
	events    []lifecycle.Changed

	listCalls int

	seqErr   error
	getErr   map[string]error
	eventErr error
}

func newMemStore() *memStore {
	return &memStore{
		invoices:  map[string]*entity.Invoice{},
		lines:     map[string][]*entity.InvoiceLine{},
		companies: map[string]*entity.Company{},
		seq:       map[string]int64{},
		getErr:    map[string]error{},
	}
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	c := *inv
	return &c
}

func (s *memStore) put(inv *entity.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = cloneInvoice(inv)
}

func (s *memStore) get(id string) *entity.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil
	}
	return cloneInvoice(inv)
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type snapshot struct {
	invoices map[string]*entity.Invoice
	seq      map[string]int64
	events   []lifecycle.Changed
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		invoices: make(map[string]*entity.Invoice, len(s.invoices)),
		seq:      make(map[string]int64, len(s.seq)),
		events:   append([]lifecycle.Changed(nil), s.events...),
	}
	for k, v := range s.invoices {
		snap.invoices[k] = cloneInvoice(v)
	}
	for k, v := range s.seq {
		snap.seq[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.invoices = snap.invoices
	s.seq = snap.seq
	s.events = snap.events
}

// RunInvoice implementa billing.InvoiceTxRunner.
func (s *memStore) RunInvoice(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	sequenceRepo repository.SequenceRepository,
	eventRepo repository.LifecycleEventRepository,
) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memInvoiceRepo{s: s, inTx: true}, memSequenceRepo{s: s}, memEventRepo{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

var _ billing.InvoiceTxRunner = (*memStore)(nil)

// ──────────────────────────────────────────────────────────────────────────────
// Repositorios
// ──────────────────────────────────────────────────────────────────────────────

type memInvoiceRepo struct {
	s    *memStore
	inTx bool
}

var _ repository.InvoiceRepository = (*memInvoiceRepo)(nil)

func (r *memInvoiceRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	defer r.lock()()
	r.s.invoices[inv.ID] = cloneInvoice(inv)
	r.s.lines[inv.ID] = lines
	return nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	defer r.lock()()
	if err := r.s.getErr[id]; err != nil {
		return nil, err
	}
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *memInvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *memInvoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	defer r.lock()()
	cur, ok := r.s.invoices[inv.ID]
	if !ok {
		return errors.New("factura inexistente")
	}
	next := cloneInvoice(inv)
	next.PDFRef, next.PDFSHA256, next.PDFGeneratedAt = cur.PDFRef, cur.PDFSHA256, cur.PDFGeneratedAt
	r.s.invoices[inv.ID] = next
	return nil
}

func (r *memInvoiceRepo) ListLines(_ context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	defer r.lock()()
	return r.s.lines[invoiceID], nil
}

func keyLess(at time.Time, id string, c repository.Cursor) bool {
	return at.Before(c.CreatedAt) || (at.Equal(c.CreatedAt) && id < c.ID)
}

func (r *memInvoiceRepo) sorted(match func(*entity.Invoice) bool, after *repository.Cursor, limit int) []*entity.Invoice {
	r.s.listCalls++
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if !match(inv) {
			continue
		}
		if after != nil && !keyLess(after.CreatedAt, after.ID, repository.Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}) {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		return keyLess(out[i].CreatedAt, out[i].ID, repository.Cursor{CreatedAt: out[j].CreatedAt, ID: out[j].ID})
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memInvoiceRepo) ListAwaitingSource(_ context.Context, after *repository.Cursor, limit int) ([]*entity.Invoice, error) {
	defer r.lock()()
	return r.sorted(func(inv *entity.Invoice) bool {
		return inv.Status == entity.InvoiceStatusDraft && inv.IsAwaitingSource()
	}, after, limit), nil
}

func (r *memInvoiceRepo) ListMissingArtifact(_ context.Context, after *repository.Cursor, limit int) ([]*entity.Invoice, error) {
	defer r.lock()()
	return r.sorted(func(inv *entity.Invoice) bool {
		return inv.Status == entity.InvoiceStatusCreated && !inv.HasArtifact()
	}, after, limit), nil
}

func (r *memInvoiceRepo) UpdateArtifact(_ context.Context, id, ref, sha256Hex string, generatedAt time.Time) (bool, error) {
	defer r.lock()()
	inv, ok := r.s.invoices[id]
	if !ok || inv.HasArtifact() {
		return false, nil
	}
	inv.PDFRef, inv.PDFSHA256 = ref, sha256Hex
	inv.PDFGeneratedAt = &generatedAt
	return true, nil
}

func (r *memInvoiceRepo) ClearArtifact(_ context.Context, id string) (bool, error) {
	defer r.lock()()
	inv, ok := r.s.invoices[id]
	if !ok {
		return false, nil
	}
	inv.PDFRef, inv.PDFSHA256, inv.PDFGeneratedAt = "", "", nil
	return true, nil
}

// memSequenceRepo solo se usa dentro de RunInvoice (lock ya tomado).
type memSequenceRepo struct{ s *memStore }

func (r memSequenceRepo) Next(_ context.Context, issuerID, series string) (int64, error) {
	if r.s.seqErr != nil {
		return 0, r.s.seqErr
	}
	key := issuerID + "/" + series
	r.s.seq[key]++
	return r.s.seq[key], nil
}

type memEventRepo struct{ s *memStore }

func (r memEventRepo) Append(_ context.Context, ev lifecycle.Changed) error {
	if r.s.eventErr != nil {
		return r.s.eventErr
	}
	r.s.events = append(r.s.events, ev)
	return nil
}

type memCompanyRepo struct{ s *memStore }

func (r memCompanyRepo) Create(_ context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.companies[c.ID] = c
	return nil
}

func (r memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.companies[id], nil
}

func (r memCompanyRepo) GetByTaxID(_ context.Context, taxID string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.companies {
		if c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Publisher, PDF y almacenamiento
// ──────────────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []lifecycle.Changed
}

func (p *recordingPublisher) Publish(_ context.Context, ev lifecycle.Changed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) all() []lifecycle.Changed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]lifecycle.Changed(nil), p.events...)
}

type fakeGenerator struct {
	failFor map[string]bool
	calls   int
}

func (g *fakeGenerator) GenerateInvoicePDF(_ context.Context, doc billing.InvoiceDocument) ([]byte, error) {
	g.calls++
	if g.failFor[doc.Invoice.ID] {
		return nil, fmt.Errorf("render %s", doc.Invoice.ID)
	}
	return []byte("%PDF-1.4 " + doc.Invoice.ID), nil
}

type fakeStorage struct {
	objects map[string][]byte
	hashes  map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, hashes: map[string]string{}}
}

func (f *fakeStorage) Put(_ context.Context, key string, content []byte, _ string, sha256Hex string) (string, error) {
	f.objects[key] = content
	f.hashes[key] = sha256Hex
	return "s3://facturas/" + key, nil
}

type recordingMetrics struct {
	promotion []billing.SweepResult
	pdf       []billing.PDFSweepResult
}

func (m *recordingMetrics) ObservePromotionSweep(r billing.SweepResult) { m.promotion = append(m.promotion, r) }
func (m *recordingMetrics) ObservePDFSweep(r billing.PDFSweepResult)    { m.pdf = append(m.pdf, r) }

// ──────────────────────────────────────────────────────────────────────────────
// Builders
// ──────────────────────────────────────────────────────────────────────────────

const (
	testIssuer = "C1"
	testDebtor = "D1"
	testSeries = "TEST"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func draft(id string, typ entity.InvoiceType) *entity.Invoice {
	return &entity.Invoice{
		ID:              id,
		IssuerID:        testIssuer,
		DebtorID:        testDebtor,
		Type:            typ,
		Status:          entity.InvoiceStatusDraft,
		FinanceStatus:   entity.FinanceStatusNone,
		ProcessingState: entity.ProcessingStateIdle,
		Series:          testSeries,
		Currency:        "EUR",
		CreatedAt:       fixedNow.Add(-time.Hour),
		UpdatedAt:       fixedNow.Add(-time.Hour),
	}
}

func dependent(id, sourceID string, createdAt time.Time) *entity.Invoice {
	inv := draft(id, entity.InvoiceTypeInternal)
	inv.ProcessingState = entity.ProcessingStateQueued
	inv.QueueReason = entity.QueueReasonAwaitSourcePaid
	inv.SourceInvoiceID = &sourceID
	inv.CreatedAt = createdAt
	return inv
}

func strPtr(s string) *string { return &s }

type fixture struct {
	store     *memStore
	publisher *recordingPublisher
	metrics   *recordingMetrics
	sm        *lifecycle.StateMachine
	finalize  *billing.FinalizeInvoiceUseCase
}

func newFixture(cfg billing.Config) *fixture {
	store := newMemStore()
	pub := &recordingPublisher{}
	sm := lifecycle.NewStateMachine(pub, fixedClock)
	return &fixture{
		store:     store,
		publisher: pub,
		metrics:   &recordingMetrics{},
		sm:        sm,
		finalize:  billing.NewFinalizeInvoiceUseCase(store, &memInvoiceRepo{s: store}, sm, cfg, fixedClock, testLogger()),
	}
}
