package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// StateStore persists scanner and cron progress checkpoints plus queue depth
// snapshots.
type StateStore struct {
	db *bun.DB
}

// NewStateStore creates a new state store.
func NewStateStore(db *bun.DB) *StateStore {
	return &StateStore{db: db}
}

// GetScanCheckpoint returns the last scanned block for a chain, or nil when
// the chain has never been scanned.
func (s *StateStore) GetScanCheckpoint(ctx context.Context, chainID int64) (*dao.ScanCheckpointDao, error) {
	checkpoint := new(dao.ScanCheckpointDao)
	err := s.db.NewSelect().
		Model(checkpoint).
		Where("chain_id = ?", chainID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan checkpoint: %w", err)
	}
	return checkpoint, nil
}

// SetScanCheckpoint upserts the last scanned block for a chain.
func (s *StateStore) SetScanCheckpoint(ctx context.Context, chainID, lastBlock int64) error {
	checkpoint := &dao.ScanCheckpointDao{ChainID: chainID, LastBlock: lastBlock}
	_, err := s.db.NewInsert().
		Model(checkpoint).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("last_block = EXCLUDED.last_block").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set scan checkpoint: %w", err)
	}
	return nil
}

// GetGapCheckpoint returns the gap detection checkpoint for a chain, or nil
// when the chain has never been gap-checked.
func (s *StateStore) GetGapCheckpoint(ctx context.Context, chainID int64) (*dao.GapCheckpointDao, error) {
	checkpoint := new(dao.GapCheckpointDao)
	err := s.db.NewSelect().
		Model(checkpoint).
		Where("chain_id = ?", chainID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gap checkpoint: %w", err)
	}
	return checkpoint, nil
}

// SetGapCheckpoint upserts the gap detection checkpoint for a chain.
func (s *StateStore) SetGapCheckpoint(ctx context.Context, checkpoint *dao.GapCheckpointDao) error {
	_, err := s.db.NewInsert().
		Model(checkpoint).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("gap_check_pass_deposit_id = EXCLUDED.gap_check_pass_deposit_id").
		Set("last_deposit_id = EXCLUDED.last_deposit_id").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set gap checkpoint: %w", err)
	}
	return nil
}

// InsertQueueSnapshots persists one depth sample per stage.
func (s *StateStore) InsertQueueSnapshots(ctx context.Context, snapshots []*dao.QueueSnapshotDao) error {
	if len(snapshots) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&snapshots).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert queue snapshots: %w", err)
	}
	return nil
}
