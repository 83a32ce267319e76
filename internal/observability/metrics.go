package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uv_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the calculation pipeline.
type Metrics struct {
	JobsCompleted   prometheus.Counter
	JobsFailed      *prometheus.CounterVec // labels: stage
	JobsInFlight    prometheus.Gauge
	JobDuration     prometheus.Histogram
	DaysSkipped     *prometheus.CounterVec // labels: reason={unavailable,malformed}
	PipelineRunning prometheus.Gauge
	BatchDuration   prometheus.Histogram

	// Input metrics.
	FilesParsed    *prometheus.CounterVec   // labels: kind, outcome={success,malformed}
	RemoteRequests *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	RemoteDuration *prometheus.HistogramVec // labels: provider
	CloudCache     *prometheus.CounterVec   // labels: result={hit,miss}

	// Solver metrics.
	SolverDuration prometheus.Histogram
	SolverFailures prometheus.Counter

	// Sink metrics.
	SinkSubmissions *prometheus.CounterVec // labels: sink, outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total section calculations that produced a result.",
		}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Section calculations that failed, by the stage they failed in.",
		}, []string{"stage"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Section calculations currently running.",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of one section calculation including the solver run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		DaysSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_skipped_total",
			Help:      "Instrument days skipped while building a batch, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch is being processed, 0 otherwise.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete batch from first job to last sink submission.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		FilesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "Instrument files parsed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Remote provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Remote provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		CloudCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_cover_cache_total",
			Help:      "Cloud cover cache lookups by result.",
		}, []string{"result"}),
		SolverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_duration_seconds",
			Help:      "Wall time of one external solver invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		SolverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_failures_total",
			Help:      "External solver invocations that failed or timed out.",
		}),
		SinkSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_submissions_total",
			Help:      "Results handed to output sinks, by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsInFlight,
		m.JobDuration,
		m.DaysSkipped,
		m.PipelineRunning,
		m.BatchDuration,
		m.FilesParsed,
		m.RemoteRequests,
		m.RemoteDuration,
		m.CloudCache,
		m.SolverDuration,
		m.SolverFailures,
		m.SinkSubmissions,
	}
}
