package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// RewardStore provides access to reward rows and distributor claims.
type RewardStore struct {
	db *bun.DB
}

// NewRewardStore creates a new reward store.
func NewRewardStore(db *bun.DB) *RewardStore {
	return &RewardStore{db: db}
}

// Insert inserts a reward row. A duplicate (recipient, reward_type,
// deposit_pk) is absorbed: reward creation runs behind retryable pipeline
// stages and must be idempotent.
func (s *RewardStore) Insert(ctx context.Context, reward *dao.RewardDao) (bool, error) {
	res, err := s.db.NewInsert().
		Model(reward).
		On("CONFLICT (recipient, reward_type, deposit_pk) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert reward: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// ListByRecipient returns a recipient's rewards, newest first.
func (s *RewardStore) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*dao.RewardDao, error) {
	var rewards []*dao.RewardDao
	err := s.db.NewSelect().
		Model(&rewards).
		Where("recipient = ?", recipient).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

// MarkClaimed marks all unclaimed rewards of an account within a window as
// claimed.
func (s *RewardStore) MarkClaimed(ctx context.Context, account string, windowIndex int64, claimedAt time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*dao.RewardDao)(nil)).
		Set("claimed = TRUE").
		Set("claimed_at = ?", claimedAt).
		Set("updated_at = NOW()").
		Where("recipient = ?", account).
		Where("window_index = ?", windowIndex).
		Where("claimed = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark rewards claimed: %w", err)
	}
	return nil
}

// InsertClaim records a distributor claim event. Duplicate (tx_hash,
// log_index) rows are absorbed.
func (s *RewardStore) InsertClaim(ctx context.Context, claim *dao.ClaimDao) (bool, error) {
	res, err := s.db.NewInsert().
		Model(claim).
		On("CONFLICT (tx_hash, log_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// LatestClaimSince returns the most recent claim by an account at or after
// the given time, or nil when none exists. Sticky referral propagation uses
// this to decide whether attribution was reset.
func (s *RewardStore) LatestClaimSince(ctx context.Context, account string, since time.Time) (*dao.ClaimDao, error) {
	claim := new(dao.ClaimDao)
	err := s.db.NewSelect().
		Model(claim).
		Where("account = ?", account).
		Where("claimed_at >= ?", since).
		Order("claimed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest claim: %w", err)
	}
	return claim, nil
}

// ClaimsForAccount returns an account's claims ordered by claim time
// ascending.
func (s *RewardStore) ClaimsForAccount(ctx context.Context, account string) ([]*dao.ClaimDao, error) {
	var claims []*dao.ClaimDao
	err := s.db.NewSelect().
		Model(&claims).
		Where("account = ?", account).
		Order("claimed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	return claims, nil
}
