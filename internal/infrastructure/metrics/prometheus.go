// Package metrics expone contadores de facturación en formato Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
)

const namespace = "invoicing"

// Metrics agrupa los colectores sobre un registro propio (sin el global).
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	promotion    *prometheus.CounterVec
	pdf          *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	taskRuns     *prometheus.CounterVec
	taskSkipped  *prometheus.CounterVec
}

var _ billing.SweepMetrics = (*Metrics)(nil)

// New registra todos los colectores, más los de Go y del proceso.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Transiciones de ciclo de vida aplicadas.",
		}, []string{"from", "to", "type"}),
		promotion: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_sweep_items_total",
			Help:      "Dependientes evaluados por el barrido de promoción, por resultado.",
		}, []string{"outcome"}),
		pdf: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_sweep_items_total",
			Help:      "PDFs procesados por el barrido, por resultado.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_run_duration_seconds",
			Help:      "Duración de cada ciclo de tarea periódica.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Ciclos ejecutados por tarea y resultado.",
		}, []string{"task", "result"}),
		taskSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skipped_total",
			Help:      "Ticks descartados (ciclo en curso o lock de otra instancia).",
		}, []string{"task"}),
	}
	reg.MustRegister(
		m.transitions, m.promotion, m.pdf, m.taskDuration, m.taskRuns, m.taskSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry registro subyacente (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler handler HTTP de exposición.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePromotionSweep implementa billing.SweepMetrics.
func (m *Metrics) ObservePromotionSweep(r billing.SweepResult) {
	m.promotion.WithLabelValues("promoted").Add(float64(r.Promoted))
	m.promotion.WithLabelValues("waiting").Add(float64(r.Waiting))
	m.promotion.WithLabelValues("error").Add(float64(r.Errors))
}

// ObservePDFSweep implementa billing.SweepMetrics.
func (m *Metrics) ObservePDFSweep(r billing.PDFSweepResult) {
	m.pdf.WithLabelValues("generated").Add(float64(r.Generated))
	m.pdf.WithLabelValues("failed").Add(float64(r.Failed))
}

// ObserveRun implementa scheduler.Observer.
func (m *Metrics) ObserveRun(task string, d time.Duration, err error) {
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.taskRuns.WithLabelValues(task, result).Inc()
}

// ObserveSkipped implementa scheduler.Observer.
func (m *Metrics) ObserveSkipped(task string) {
	m.taskSkipped.WithLabelValues(task).Inc()
}

// Name y Handle: suscriptor del bus de eventos que cuenta transiciones.
func (m *Metrics) Name() string { return "prometheus-transitions" }

func (m *Metrics) Handle(_ context.Context, ev lifecycle.Changed) error {
	m.transitions.WithLabelValues(string(ev.OldStatus), string(ev.NewStatus), string(ev.InvoiceType)).Inc()
	return nil
}
