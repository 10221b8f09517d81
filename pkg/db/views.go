package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ViewStore refreshes the aggregate views consumed by the reward and
// reporting layers. The views themselves are defined in migrations; this
// store only drives refreshes.
type ViewStore struct {
	db *bun.DB
}

// NewViewStore creates a new view store.
func NewViewStore(db *bun.DB) *ViewStore {
	return &ViewStore{db: db}
}

// RefreshReferralStats recomputes the per-depositor referral statistics view.
// Must complete before RefreshDepositsMV since deposits_mv joins against it.
func (s *ViewStore) RefreshReferralStats(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY deposit_referral_stats`)
	if err != nil {
		return fmt.Errorf("failed to refresh deposit_referral_stats: %w", err)
	}
	return nil
}

// RefreshDepositsMV recomputes the deposits materialized view, including the
// referral rate tier and the time-based reward multiplier per row.
func (s *ViewStore) RefreshDepositsMV(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY deposits_mv`)
	if err != nil {
		return fmt.Errorf("failed to refresh deposits_mv: %w", err)
	}
	return nil
}

// ReferralRow is one row of the filtered referral view consumed by the read
// API.
type ReferralRow struct {
	DepositID          int64     `bun:"deposit_id"`
	OriginChainID      int64     `bun:"origin_chain_id"`
	DepositorAddr      string    `bun:"depositor_addr"`
	ReferralAddress    string    `bun:"referral_address"`
	DepositDate        time.Time `bun:"deposit_date"`
	AmountUsd          *string   `bun:"amount_usd"`
	ReferralRate       *string   `bun:"referral_rate"`
	Multiplier         *int64    `bun:"multiplier"`
	RewardsWindowIndex *int64    `bun:"rewards_window_index"`
}

// ListReferrals returns mv rows attributed to a referral address, newest
// first. Attribution is the sticky referral when set, else the extracted one.
func (s *ViewStore) ListReferrals(ctx context.Context, referralAddress string, limit int) ([]*ReferralRow, error) {
	var rows []*ReferralRow
	err := s.db.NewSelect().
		TableExpr("deposits_mv").
		ColumnExpr("deposit_id, origin_chain_id, depositor_addr, attribution_address AS referral_address, deposit_date, amount_usd, referral_rate, multiplier, rewards_window_index").
		Where("attribution_address = ?", referralAddress).
		OrderExpr("deposit_date DESC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return rows, nil
}

// ReferralTier returns the mv tier fields for a deposit row, used when
// creating referral rewards.
func (s *ViewStore) ReferralTier(ctx context.Context, depositPK int64) (*ReferralRow, error) {
	row := new(ReferralRow)
	err := s.db.NewSelect().
		TableExpr("deposits_mv").
		ColumnExpr("deposit_id, origin_chain_id, depositor_addr, attribution_address AS referral_address, deposit_date, amount_usd, referral_rate, multiplier, rewards_window_index").
		Where("id = ?", depositPK).
		Limit(1).
		Scan(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral tier for deposit %d: %w", depositPK, err)
	}
	return row, nil
}
