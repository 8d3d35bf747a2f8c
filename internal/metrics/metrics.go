// Package metrics records per-run counters in a private Prometheus registry
// and writes them in the text exposition format, for node_exporter's
// textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gyeh/feeschedule/internal/model"
)

const namespace = "feeload"

// Recorder collects ingest metrics. The zero value is not usable; use New.
type Recorder struct {
	reg       *prometheus.Registry
	documents *prometheus.CounterVec
	records   *prometheus.CounterVec
	duration  prometheus.Histogram
	lastRun   prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents handled, by final status.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Extracted records, by reconciliation outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent on one document from fetch to commit.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.reg.MustRegister(r.documents, r.records, r.duration, r.lastRun)
	return r
}

// Document records the outcome of one document.
func (r *Recorder) Document(s *model.DocumentSummary) {
	r.documents.WithLabelValues(string(s.Status)).Inc()
	r.records.WithLabelValues("inserted").Add(float64(s.Inserted))
	r.records.WithLabelValues("updated").Add(float64(s.Updated))
	r.records.WithLabelValues("duplicate").Add(float64(s.Duplicates))
	r.records.WithLabelValues("invalid").Add(float64(s.RowsDropped))
	if s.Status != model.StatusSkipped {
		r.duration.Observe(s.Duration.Seconds())
	}
}

// Failed records a document that failed before it produced a summary.
func (r *Recorder) Failed() {
	r.documents.WithLabelValues(string(model.StatusFailed)).Inc()
}

// RunFinished stamps the end of a run.
func (r *Recorder) RunFinished() {
	r.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// WriteFile atomically writes all metrics to path.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
