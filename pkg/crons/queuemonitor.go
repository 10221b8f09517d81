package crons

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/pipeline"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

// QueueMonitor samples per-stage queue depth, persists the snapshots and
// raises an alert log when any stage backs up past the threshold.
type QueueMonitor struct {
	queue     queue.Queue
	state     *db.StateStore
	threshold int64
	logger    *zap.Logger
}

func NewQueueMonitor(cfg *config.CronsConfig, q queue.Queue, state *db.StateStore, logger *zap.Logger) *QueueMonitor {
	return &QueueMonitor{
		queue:     q,
		state:     state,
		threshold: cfg.QueueDepthThreshold,
		logger:    logger.Named("queue-monitor"),
	}
}

// Run takes one depth sample across all pipeline stages.
func (m *QueueMonitor) Run(ctx context.Context) error {
	snapshots := make([]*dao.QueueSnapshotDao, 0, len(pipeline.Topology))

	for stage := range pipeline.Topology {
		counts, err := m.queue.Counts(ctx, stage)
		if err != nil {
			return err
		}

		metrics.QueueDepth.WithLabelValues(stage, "waiting").Set(float64(counts.Waiting))
		metrics.QueueDepth.WithLabelValues(stage, "active").Set(float64(counts.Active))
		metrics.QueueDepth.WithLabelValues(stage, "delayed").Set(float64(counts.Delayed))
		metrics.QueueDepth.WithLabelValues(stage, "failed").Set(float64(counts.Failed))

		total := counts.Waiting + counts.Active + counts.Delayed + counts.Failed
		if total > m.threshold {
			m.logger.Warn("stage queue depth over threshold",
				zap.String("stage", stage),
				zap.Int64("waiting", counts.Waiting),
				zap.Int64("active", counts.Active),
				zap.Int64("delayed", counts.Delayed),
				zap.Int64("failed", counts.Failed),
				zap.Int64("threshold", m.threshold))
		}

		snapshots = append(snapshots, &dao.QueueSnapshotDao{
			Stage:   stage,
			Waiting: counts.Waiting,
			Active:  counts.Active,
			Delayed: counts.Delayed,
			Failed:  counts.Failed,
		})
	}

	return m.state.InsertQueueSnapshots(ctx, snapshots)
}
