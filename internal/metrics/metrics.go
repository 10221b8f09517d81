package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsIngested counts deposit rows created per chain and contract version
	DepositsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_deposits_ingested_total",
			Help: "Total number of deposit rows created",
		},
		[]string{"chain", "version"},
	)

	// DepositsDuplicate counts deposits absorbed by the unique constraint
	DepositsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_deposits_duplicate_total",
			Help: "Total number of duplicate deposit events absorbed",
		},
		[]string{"chain"},
	)

	// FillsProcessed counts fill events applied per shape
	FillsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_fills_processed_total",
			Help: "Total number of fill events applied to deposits",
		},
		[]string{"chain", "shape"},
	)

	// StageTasks counts pipeline task outcomes per stage
	StageTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_stage_tasks_total",
			Help: "Total number of pipeline tasks processed",
		},
		[]string{"stage", "outcome"},
	)

	// StageDuration tracks per-stage processing time
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_stage_duration_seconds",
			Help:    "Pipeline stage processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// BlocksScanned counts blocks covered by the scanner per chain
	BlocksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_blocks_scanned_total",
			Help: "Total number of blocks scanned for events",
		},
		[]string{"chain"},
	)

	// ScanLag tracks how far the scanner checkpoint trails the chain head
	ScanLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_scan_lag_blocks",
			Help: "Blocks between the confirmed head and the scan checkpoint",
		},
		[]string{"chain"},
	)

	// QueueDepth tracks task queue depth per stage and state
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_queue_depth",
			Help: "Task queue depth per stage",
		},
		[]string{"stage", "state"},
	)

	// GapIntervals counts missing deposit-id intervals found per chain
	GapIntervals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_gap_intervals_total",
			Help: "Total number of missing deposit-id intervals detected",
		},
		[]string{"chain"},
	)

	// MissedFills counts fills recovered by the missed-fill sweep
	MissedFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_missed_fills_total",
			Help: "Total number of fills recovered by the reconciliation sweep",
		},
		[]string{"chain"},
	)

	// ViewRefreshDuration tracks materialized view refresh time
	ViewRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_view_refresh_duration_seconds",
			Help:    "Materialized view refresh duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"view"},
	)

	// RewardsCreated counts reward rows created per type
	RewardsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rewards_created_total",
			Help: "Total number of reward rows created",
		},
		[]string{"type"},
	)

	// OracleRequests counts oracle calls by oracle and outcome
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_oracle_requests_total",
			Help: "Total number of oracle HTTP requests",
		},
		[]string{"oracle", "outcome"},
	)
)
