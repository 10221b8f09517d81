package crons

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// GapInterval is one contiguous run of missing deposit ids.
type GapInterval struct {
	Start int64
	End   int64
}

// Rescanner re-runs discovery over an explicit block window. Implemented by
// the scanner; gap recovery uses it to re-ingest the blocks that should have
// carried the missing deposits.
type Rescanner interface {
	ScanRange(ctx context.Context, chainID, from, to uint64) error
}

// GapDetector walks each chain's deposit-id sequence forward from the last
// gap-free checkpoint and reports runs of missing ids. Detected runs are
// re-scanned from the block numbers of the deposits bounding the run.
type GapDetector struct {
	cfg      *config.Config
	deposits *db.DepositStore
	state    *db.StateStore
	scanner  Rescanner
	logger   *zap.Logger
}

func NewGapDetector(cfg *config.Config, deposits *db.DepositStore, state *db.StateStore, scanner Rescanner, logger *zap.Logger) *GapDetector {
	return &GapDetector{
		cfg:      cfg,
		deposits: deposits,
		state:    state,
		scanner:  scanner,
		logger:   logger.Named("gap-detector"),
	}
}

// Run performs one detection pass over every configured chain.
func (g *GapDetector) Run(ctx context.Context) error {
	for i := range g.cfg.Chains {
		if err := g.detectChain(ctx, &g.cfg.Chains[i]); err != nil {
			g.logger.Error("gap detection failed",
				zap.Uint64("chain_id", g.cfg.Chains[i].ChainID), zap.Error(err))
		}
	}
	return nil
}

func (g *GapDetector) detectChain(ctx context.Context, chainCfg *config.ChainConfig) error {
	chainID := int64(chainCfg.ChainID)

	maxID, err := g.deposits.MaxDepositID(ctx, chainID)
	if err != nil {
		return err
	}
	if maxID < 0 {
		return nil
	}

	start := int64(0)
	checkpoint, err := g.state.GetGapCheckpoint(ctx, chainID)
	if err != nil {
		return err
	}
	if checkpoint != nil {
		start = checkpoint.GapCheckPassDepositID + 1
	}
	if start > maxID {
		return nil
	}

	present, err := g.deposits.ListDepositIDs(ctx, chainID, start, maxID)
	if err != nil {
		return err
	}

	intervals, passID := FindGaps(present, start, maxID, chainCfg.GapCutover,
		g.cfg.Crons.GapDetectionMaxResults, int64(g.cfg.Crons.GapIntervalMaxSize))

	if len(intervals) > 0 {
		metrics.GapIntervals.WithLabelValues(fmt.Sprint(chainCfg.ChainID)).Add(float64(len(intervals)))
		g.logger.Warn("missing deposit ids detected",
			zap.Uint64("chain_id", chainCfg.ChainID),
			zap.Int("intervals", len(intervals)),
			zap.Int64("first_missing", intervals[0].Start),
			zap.Int64("max_deposit_id", maxID))
		g.recover(ctx, chainCfg.ChainID, intervals)
	}

	return g.state.SetGapCheckpoint(ctx, &dao.GapCheckpointDao{
		ChainID:               chainID,
		GapCheckPassDepositID: passID,
		LastDepositID:         maxID,
	})
}

// FindGaps scans [start, maxID] against the sorted present ids and returns the
// missing-id intervals plus the highest id up to which the sequence is known
// contiguous. A cutover boundary makes the cursor jump over the dead id range
// between contract generations. Interval count and size are both capped; a
// truncated pass simply resumes from the same checkpoint next run.
func FindGaps(present []int64, start, maxID int64, cutover *config.GapCutoverConfig, maxResults int, maxSize int64) ([]GapInterval, int64) {
	exists := make(map[int64]bool, len(present))
	for _, id := range present {
		exists[id] = true
	}

	var intervals []GapInterval
	passID := start - 1
	contiguous := true

	for cursor := start; cursor <= maxID; {
		if cutover != nil && cursor > cutover.LastID && cursor < cutover.FirstID {
			cursor = cutover.FirstID
			continue
		}
		if exists[cursor] {
			if contiguous {
				passID = cursor
			}
			cursor++
			continue
		}

		contiguous = false
		if len(intervals) >= maxResults {
			break
		}
		run := GapInterval{Start: cursor, End: cursor}
		for cursor <= maxID && !exists[cursor] && cursor-run.Start < maxSize {
			if cutover != nil && cursor > cutover.LastID && cursor < cutover.FirstID {
				break
			}
			run.End = cursor
			cursor++
		}
		intervals = append(intervals, run)
	}
	return intervals, passID
}

// recover re-scans the block window around each missing interval. The bounding
// deposits exist by construction, so their block numbers delimit the window.
func (g *GapDetector) recover(ctx context.Context, chainID uint64, intervals []GapInterval) {
	for _, interval := range intervals {
		from, to, err := g.intervalBlocks(ctx, int64(chainID), interval)
		if err != nil {
			g.logger.Warn("cannot resolve block window for gap",
				zap.Uint64("chain_id", chainID),
				zap.Int64("from_id", interval.Start),
				zap.Int64("to_id", interval.End),
				zap.Error(err))
			continue
		}
		if err := g.scanner.ScanRange(ctx, chainID, from, to); err != nil {
			g.logger.Error("gap re-scan failed",
				zap.Uint64("chain_id", chainID),
				zap.Uint64("from_block", from),
				zap.Uint64("to_block", to),
				zap.Error(err))
		}
	}
}

func (g *GapDetector) intervalBlocks(ctx context.Context, chainID int64, interval GapInterval) (uint64, uint64, error) {
	before, err := g.deposits.GetByDepositID(ctx, chainID, interval.Start-1)
	if err != nil {
		return 0, 0, err
	}
	after, err := g.deposits.GetByDepositID(ctx, chainID, interval.End+1)
	if err != nil {
		return 0, 0, err
	}
	return uint64(before.BlockNumber), uint64(after.BlockNumber), nil
}
