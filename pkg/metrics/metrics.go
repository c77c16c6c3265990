package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event ingress / writer pool
	ChannelDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_channel_depth",
			Help: "Current number of work items buffered in the writer pool channel",
		},
	)

	ChannelCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_channel_capacity",
			Help: "Configured capacity of the writer pool channel",
		},
	)

	WorkItemsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_work_items_processed_total",
			Help: "Total work items processed by the writer pool, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WorkItemDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_work_item_duration_seconds",
			Help:    "Time taken to apply a work item to the relational store",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	WorkersInitialized = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_workers_initialized",
			Help: "Number of writer pool workers that have completed startup",
		},
	)

	StartupDoneCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_startup_done_count",
			Help: "Number of writer pool workers that have flushed their startup batch",
		},
	)

	AccountAuditRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_account_audit_rows_total",
			Help: "Total rows appended to account_audit because the upsert predicate rejected an out-of-order update",
		},
	)

	// Authenticated state engine
	WatermarkSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_watermark_slot",
			Help: "Slot component of the authenticated state engine's watermark",
		},
	)

	WatermarkWriteVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_watermark_write_version",
			Help: "Write-version component of the authenticated state engine's watermark",
		},
	)

	SMTUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_smt_updates_total",
			Help: "Total account updates seen by the authenticated state engine, by outcome",
		},
		[]string{"outcome"}, // applied, dropped_genesis, dropped_stale
	)

	SMTUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_smt_update_duration_seconds",
			Help:    "Time taken to apply a single account update to both SMT copies",
			Buckets: prometheus.DefBuckets,
		},
	)

	RootDivergenceTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_root_divergence_total",
			Help: "Total times the durable and in-memory SMT roots were found to disagree",
		},
	)

	CurrentRootSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_current_root_slot",
			Help: "Slot of the most recently committed authenticated state root",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_reconciliation_duration_seconds",
			Help:    "Time taken for a periodic root-consistency reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_reconciliation_cycles_total",
			Help: "Total number of periodic root-consistency reconciliation cycles completed",
		},
	)

	// Brief generator / submitter
	BriefsGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_briefs_generated_total",
			Help: "Total briefs derived by the brief generator",
		},
	)

	BriefsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_briefs_submitted_total",
			Help: "Total briefs submitted to the settlement service, by outcome",
		},
		[]string{"outcome"}, // submitted, already_present, failed
	)

	BriefSubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_brief_submission_duration_seconds",
			Help:    "Time taken for a single submission RPC to the settlement service",
			Buckets: prometheus.DefBuckets,
		},
	)

	LastSubmittedSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_last_submitted_slot",
			Help: "Highest slot locally recorded as submitted to the settlement service",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChannelDepth,
		ChannelCapacity,
		WorkItemsProcessedTotal,
		WorkItemDuration,
		WorkersInitialized,
		StartupDoneCount,
		AccountAuditRowsTotal,
		WatermarkSlot,
		WatermarkWriteVersion,
		SMTUpdatesTotal,
		SMTUpdateDuration,
		RootDivergenceTotal,
		CurrentRootSlot,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		BriefsGeneratedTotal,
		BriefsSubmittedTotal,
		BriefSubmissionDuration,
		LastSubmittedSlot,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
