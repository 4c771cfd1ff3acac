// Package metrics exposes Prometheus collectors for the ingestion pipeline.
// All collectors live on a dedicated registry so tests and multiple
// services in one process do not collide on the default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "opsdash"

	importJobsTotal        = "import_jobs_total"
	stagingRowsTotal       = "staging_rows_total"
	promotionProductsTotal = "promotion_products_total"
	inventorySnapshots     = "inventory_snapshots_total"
	operationDuration      = "operation_duration_seconds"
	uploadsActive          = "uploads_active"

	// Labels
	statusLabel    = "status"
	outcomeLabel   = "outcome"
	operationLabel = "operation"
)

// Recorder owns the pipeline collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	importJobs        *prometheus.CounterVec
	stagingRows       *prometheus.CounterVec
	promotionProducts *prometheus.CounterVec
	snapshots         prometheus.Counter
	duration          *prometheus.HistogramVec
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		importJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      importJobsTotal,
				Help:      "Number of import jobs that reached a terminal status.",
			},
			[]string{statusLabel},
		),
		stagingRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      stagingRowsTotal,
				Help:      "Number of staging rows written or transitioned, by status.",
			},
			[]string{statusLabel},
		),
		promotionProducts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      promotionProductsTotal,
				Help:      "Number of product upserts performed by promotion, by outcome.",
			},
			[]string{outcomeLabel},
		),
		snapshots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      inventorySnapshots,
				Help:      "Number of inventory level snapshots appended.",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      operationDuration,
				Help:      "Duration of pipeline operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{operationLabel},
		),
	}

	r.registry.MustRegister(
		r.importJobs,
		r.stagingRows,
		r.promotionProducts,
		r.snapshots,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// MustRegister adds extra collectors, such as the HTTP middleware's.
func (r *Recorder) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// TrackActiveUploads exposes a gauge read from fn at scrape time.
func (r *Recorder) TrackActiveUploads(fn func() int) {
	if r == nil {
		return
	}
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      uploadsActive,
			Help:      "Number of ingestions currently holding a limiter slot.",
		},
		func() float64 { return float64(fn()) },
	))
}

func (r *Recorder) JobFinished(status string) {
	if r == nil {
		return
	}
	r.importJobs.With(prometheus.Labels{statusLabel: status}).Inc()
}

func (r *Recorder) RowsStaged(status string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.stagingRows.With(prometheus.Labels{statusLabel: status}).Add(float64(n))
}

func (r *Recorder) Promoted(created, updated, snapshots int) {
	if r == nil {
		return
	}
	if created > 0 {
		r.promotionProducts.With(prometheus.Labels{outcomeLabel: "created"}).Add(float64(created))
	}
	if updated > 0 {
		r.promotionProducts.With(prometheus.Labels{outcomeLabel: "updated"}).Add(float64(updated))
	}
	if snapshots > 0 {
		r.snapshots.Add(float64(snapshots))
	}
}

// ObserveSince records the time elapsed since start for operation.
func (r *Recorder) ObserveSince(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.duration.With(prometheus.Labels{operationLabel: operation}).Observe(time.Since(start).Seconds())
}
