// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Loader metrics
	LoaderRunsTotal *prometheus.CounterVec

	// Refresh metrics
	RefreshRunsTotal  *prometheus.CounterVec
	RefreshDuration   prometheus.Histogram
	RefreshSkipped    *prometheus.CounterVec
	MintAllowed       prometheus.Gauge
	OwnedTokens       prometheus.Gauge
	GalleryEntries    prometheus.Gauge
	GuardEvaluations  *prometheus.CounterVec
	TriggersCoalesced prometheus.Counter

	// Metadata metrics
	MetadataFetches       *prometheus.CounterVec
	MetadataFetchDuration prometheus.Histogram

	// Notification metrics
	NotificationsShown *prometheus.CounterVec

	// Solana metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Storage and publishing metrics
	RecorderErrors *prometheus.CounterVec
	PublishTotal   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "candy_gallery"
	}
	f := promauto.With(reg)

	return &Metrics{
		LoaderRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "runs_total",
			Help:      "Total number of candy machine loads by outcome",
		}, []string{"outcome"}),

		RefreshRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of eligibility refreshes by status",
		}, []string{"status"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Eligibility refresh duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefreshSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "skipped_total",
			Help:      "Total number of refreshes skipped by reason",
		}, []string{"reason"}),
		MintAllowed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "mint_allowed",
			Help:      "1 when at least one guard group allows minting",
		}),
		OwnedTokens: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "owned_tokens",
			Help:      "Number of tokens owned by the connected wallet",
		}),
		GalleryEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "gallery_entries",
			Help:      "Number of entries in the rendered gallery",
		}),
		GuardEvaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "guard_evaluations_total",
			Help:      "Total number of guard group evaluations by result",
		}, []string{"allowed"}),
		TriggersCoalesced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "triggers_coalesced_total",
			Help:      "Triggers merged into an already pending cycle",
		}),

		MetadataFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Total number of off-chain metadata fetches by outcome",
		}, []string{"outcome"}),
		MetadataFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetch_duration_seconds",
			Help:      "Off-chain metadata fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		NotificationsShown: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "shown_total",
			Help:      "Total number of notifications shown by key",
		}, []string{"key"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		RecorderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "recorder_errors_total",
			Help:      "Total number of failed refresh record writes by store",
		}, []string{"store"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "uploads_total",
			Help:      "Total number of gallery uploads by status",
		}, []string{"status"}),

		LastSuccessfulRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordLoad records a candy machine load outcome.
func (m *Metrics) RecordLoad(outcome string) {
	m.LoaderRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordRefresh records a completed or failed refresh.
func (m *Metrics) RecordRefresh(status string, d time.Duration) {
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
	m.RefreshDuration.Observe(d.Seconds())
	if status == "success" {
		m.LastSuccessfulRefresh.SetToCurrentTime()
	}
}

// RecordSkip records a refresh skipped before it started.
func (m *Metrics) RecordSkip(reason string) {
	m.RefreshSkipped.WithLabelValues(reason).Inc()
}

// UpdateGallery sets the gallery state gauges.
func (m *Metrics) UpdateGallery(allowed bool, owned, entries int) {
	if allowed {
		m.MintAllowed.Set(1)
	} else {
		m.MintAllowed.Set(0)
	}
	m.OwnedTokens.Set(float64(owned))
	m.GalleryEntries.Set(float64(entries))
}

// RecordGuardEvaluation counts one guard group result.
func (m *Metrics) RecordGuardEvaluation(allowed bool) {
	if allowed {
		m.GuardEvaluations.WithLabelValues("true").Inc()
		return
	}
	m.GuardEvaluations.WithLabelValues("false").Inc()
}

// RecordMetadataFetch records one off-chain metadata fetch.
func (m *Metrics) RecordMetadataFetch(outcome string, d time.Duration) {
	m.MetadataFetches.WithLabelValues(outcome).Inc()
	m.MetadataFetchDuration.Observe(d.Seconds())
}

// RecordNotification counts a notification shown to the user.
func (m *Metrics) RecordNotification(key string) {
	m.NotificationsShown.WithLabelValues(key).Inc()
}

// RecordRPC records RPC call latency. Matches solana.Observer.
func (m *Metrics) RecordRPC(method string, d time.Duration, err error) {
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordRecorderError counts a failed store write.
func (m *Metrics) RecordRecorderError(store string) {
	m.RecorderErrors.WithLabelValues(store).Inc()
}

// RecordPublish counts a gallery upload.
func (m *Metrics) RecordPublish(err error) {
	if err != nil {
		m.PublishTotal.WithLabelValues("error").Inc()
		return
	}
	m.PublishTotal.WithLabelValues("success").Inc()
}
