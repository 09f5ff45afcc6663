package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fabric metrics
	CircuitsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridfabric_circuits_total",
			Help: "Total number of circuits by management type",
		},
		[]string{"management_type"},
	)

	ServiceDirectoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridfabric_service_directory_entries",
			Help: "Total number of (circuit, service) entries in the service directory",
		},
	)

	DirectMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridfabric_direct_messages_total",
			Help: "Total number of CircuitDirectMessage frames handled, by outcome",
		},
		[]string{"outcome"},
	)

	DirectMessageRoutingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridfabric_direct_message_routing_duration_seconds",
			Help:    "Time taken to route a CircuitDirectMessage",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Admin / two-phase commit metrics
	ProposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridfabric_admin_proposals_total",
			Help: "Total number of circuit management proposals by outcome",
		},
		[]string{"outcome"},
	)

	ProposalCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridfabric_admin_proposal_commit_duration_seconds",
			Help:    "Time from proposal broadcast to commit or abort",
			Buckets: prometheus.DefBuckets,
		},
	)

	PendingVerifiers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridfabric_admin_pending_verifiers",
			Help: "Number of required verifiers yet to acknowledge the in-flight proposal",
		},
	)

	// Transaction processing metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridfabric_transactions_total",
			Help: "Total number of family-handler invocations by family and outcome",
		},
		[]string{"family", "outcome"},
	)

	TransactionApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridfabric_transaction_apply_duration_seconds",
			Help:    "Time taken for a family handler to apply a transaction",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family"},
	)

	// Projection metrics
	CommitEventsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridfabric_projector_commit_events_total",
			Help: "Total number of commit events processed by the projector",
		},
	)

	ForkResolutionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridfabric_projector_fork_resolutions_total",
			Help: "Total number of times the projector retired rows due to a fork",
		},
	)

	ProjectionLagBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridfabric_projector_lag_blocks",
			Help: "Block number of the most recent commit event the projector committed; the highest seen block height is not tracked",
		},
	)

	// Batch tracking metrics
	BatchesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridfabric_batches_by_status",
			Help: "Total number of tracked batches by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(CircuitsTotal)
	prometheus.MustRegister(ServiceDirectoryEntries)
	prometheus.MustRegister(DirectMessagesTotal)
	prometheus.MustRegister(DirectMessageRoutingDuration)
	prometheus.MustRegister(ProposalsTotal)
	prometheus.MustRegister(ProposalCommitDuration)
	prometheus.MustRegister(PendingVerifiers)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionApplyDuration)
	prometheus.MustRegister(CommitEventsProcessedTotal)
	prometheus.MustRegister(ForkResolutionsTotal)
	prometheus.MustRegister(ProjectionLagBlocks)
	prometheus.MustRegister(BatchesByStatus)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
