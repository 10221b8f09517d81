package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/chain"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/events"
	"github.com/relaymesh/bridge-indexer/pkg/pipeline"
)

// Scanner drives periodic per-chain log scans. Each pass picks up at the
// persisted checkpoint and stops at the confirmed head, so restarts re-scan
// at most the window that was in flight; ingestion is idempotent either way.
type Scanner struct {
	cfg         *config.Config
	chains      *chain.Registry
	deployments *contracts.DeploymentRegistry
	state       *db.StateStore
	pipe        *pipeline.Pipeline
	logger      *zap.Logger

	queriers map[uint64]*events.Querier

	// one lock per chain so a manual scan and the ticker never interleave
	locks map[uint64]*sync.Mutex
}

func New(cfg *config.Config, chains *chain.Registry, deployments *contracts.DeploymentRegistry, state *db.StateStore, pipe *pipeline.Pipeline, logger *zap.Logger) (*Scanner, error) {
	s := &Scanner{
		cfg:         cfg,
		chains:      chains,
		deployments: deployments,
		state:       state,
		pipe:        pipe,
		logger:      logger.Named("scanner"),
		queriers:    make(map[uint64]*events.Querier),
		locks:       make(map[uint64]*sync.Mutex),
	}

	for _, chainID := range deployments.ChainIDs() {
		client, err := chains.Client(chainID)
		if err != nil {
			return nil, fmt.Errorf("chain %d has deployments but no client: %w", chainID, err)
		}
		s.queriers[chainID] = events.NewQuerier(client.Eth, deployments, chainID, client.Cfg.MaxQueryRange, logger)
		s.locks[chainID] = &sync.Mutex{}
	}
	return s, nil
}

// Querier returns the event querier for a chain, or nil when the chain has no
// deployments. The missed-fill sweep uses it for targeted log searches.
func (s *Scanner) Querier(chainID uint64) *events.Querier {
	return s.queriers[chainID]
}

// Run scans all chains on the configured interval until the context ends.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Scanner.Interval)
	defer ticker.Stop()

	for {
		s.scanAll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scanner) scanAll(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for chainID := range s.queriers {
		g.Go(func() error {
			if err := s.ScanChain(ctx, chainID); err != nil {
				// One chain failing must not stall the others; the next tick retries.
				s.logger.Error("scan pass failed", zap.Uint64("chain_id", chainID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ScanChain advances one chain from its checkpoint to the confirmed head.
func (s *Scanner) ScanChain(ctx context.Context, chainID uint64) error {
	lock, ok := s.locks[chainID]
	if !ok {
		return fmt.Errorf("no deployments configured for chain %d", chainID)
	}
	lock.Lock()
	defer lock.Unlock()

	from, err := s.nextBlock(ctx, chainID)
	if err != nil {
		return err
	}
	latest, err := s.chains.LatestBlock(ctx, chainID)
	if err != nil {
		return err
	}
	if from > latest {
		metrics.ScanLag.WithLabelValues(fmt.Sprint(chainID)).Set(0)
		return nil
	}

	if err := s.scanRange(ctx, chainID, from, latest); err != nil {
		return err
	}
	if err := s.state.SetScanCheckpoint(ctx, int64(chainID), int64(latest)); err != nil {
		return err
	}
	metrics.ScanLag.WithLabelValues(fmt.Sprint(chainID)).Set(0)
	return nil
}

// ScanRange re-scans an explicit block window without moving the checkpoint.
// Used by the admin endpoint and gap recovery.
func (s *Scanner) ScanRange(ctx context.Context, chainID, from, to uint64) error {
	lock, ok := s.locks[chainID]
	if !ok {
		return fmt.Errorf("no deployments configured for chain %d", chainID)
	}
	lock.Lock()
	defer lock.Unlock()

	if from > to {
		return fmt.Errorf("invalid range %d-%d", from, to)
	}
	return s.scanRange(ctx, chainID, from, to)
}

func (s *Scanner) nextBlock(ctx context.Context, chainID uint64) (uint64, error) {
	checkpoint, err := s.state.GetScanCheckpoint(ctx, int64(chainID))
	if err != nil {
		return 0, err
	}
	if checkpoint != nil {
		return uint64(checkpoint.LastBlock) + 1, nil
	}
	if cfg := s.cfg.Chain(chainID); cfg != nil && cfg.StartBlock > 0 {
		return cfg.StartBlock, nil
	}
	deployments := s.deployments.Deployments(chainID)
	if len(deployments) == 0 {
		return 0, fmt.Errorf("no deployments configured for chain %d", chainID)
	}
	return deployments[0].StartBlock, nil
}

func (s *Scanner) scanRange(ctx context.Context, chainID, from, to uint64) error {
	querier := s.queriers[chainID]
	start := time.Now()

	deposits, swaps, err := querier.Deposits(ctx, from, to)
	if err != nil {
		return fmt.Errorf("deposit scan: %w", err)
	}
	if err := s.pipe.IngestDeposits(ctx, chainID, deposits, swaps); err != nil {
		return fmt.Errorf("deposit ingest: %w", err)
	}

	fills, err := querier.Fills(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fill scan: %w", err)
	}
	if err := s.pipe.IngestFills(ctx, fills); err != nil {
		return fmt.Errorf("fill ingest: %w", err)
	}

	speedUps, err := querier.SpeedUps(ctx, from, to)
	if err != nil {
		return fmt.Errorf("speed-up scan: %w", err)
	}
	if err := s.pipe.IngestSpeedUps(ctx, chainID, speedUps); err != nil {
		return fmt.Errorf("speed-up ingest: %w", err)
	}

	if distributor, ok := s.deployments.Distributor(chainID); ok {
		claims, err := querier.Claims(ctx, distributor, from, to)
		if err != nil {
			return fmt.Errorf("claim scan: %w", err)
		}
		if err := s.pipe.IngestClaims(ctx, chainID, claims); err != nil {
			return fmt.Errorf("claim ingest: %w", err)
		}
	}

	metrics.BlocksScanned.WithLabelValues(fmt.Sprint(chainID)).Add(float64(to - from + 1))
	s.logger.Debug("scanned range",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("deposits", len(deposits)),
		zap.Int("fills", len(fills)),
		zap.Duration("took", time.Since(start)))
	return nil
}
