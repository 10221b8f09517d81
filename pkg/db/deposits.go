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

// Deposit statuses.
const (
	StatusPending = "pending"
	StatusFilled  = "filled"
)

// ErrDepositNotFound is returned when a deposit lookup matches no row.
var ErrDepositNotFound = errors.New("deposit not found")

// DepositStore provides access to the deposits ledger.
type DepositStore struct {
	db *bun.DB
}

// NewDepositStore creates a new deposit store.
func NewDepositStore(db *bun.DB) *DepositStore {
	return &DepositStore{db: db}
}

// Insert inserts a new deposit row. Duplicate (deposit_id, origin_chain_id)
// rows are absorbed: the method reports false with no error so ingestion can
// be re-run over overlapping block ranges.
func (s *DepositStore) Insert(ctx context.Context, deposit *dao.DepositDao) (bool, error) {
	res, err := s.db.NewInsert().
		Model(deposit).
		On("CONFLICT (deposit_id, origin_chain_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert deposit: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// Get fetches a deposit by primary key.
func (s *DepositStore) Get(ctx context.Context, id int64) (*dao.DepositDao, error) {
	deposit := new(dao.DepositDao)
	err := s.db.NewSelect().
		Model(deposit).
		Where("d.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit %d: %w", id, err)
	}
	return deposit, nil
}

// GetWithRelations fetches a deposit with its token and price relations
// resolved.
func (s *DepositStore) GetWithRelations(ctx context.Context, id int64) (*dao.DepositDao, error) {
	deposit := new(dao.DepositDao)
	err := s.db.NewSelect().
		Model(deposit).
		Relation("Token").
		Relation("Price").
		Relation("OutputToken").
		Relation("OutputPrice").
		Where("d.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit %d: %w", id, err)
	}
	return deposit, nil
}

// GetByDepositID fetches a deposit by its chain-scoped contract id.
func (s *DepositStore) GetByDepositID(ctx context.Context, originChainID, depositID int64) (*dao.DepositDao, error) {
	deposit := new(dao.DepositDao)
	err := s.db.NewSelect().
		Model(deposit).
		Where("deposit_id = ?", depositID).
		Where("origin_chain_id = ?", originChainID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit %d/%d: %w", originChainID, depositID, err)
	}
	return deposit, nil
}

// DepositIDExists reports whether a deposit with the given contract id exists
// on a chain.
func (s *DepositStore) DepositIDExists(ctx context.Context, originChainID, depositID int64) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*dao.DepositDao)(nil)).
		Where("deposit_id = ?", depositID).
		Where("origin_chain_id = ?", originChainID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check deposit existence: %w", err)
	}
	return exists, nil
}

// MaxDepositID returns the highest deposit id seen on a chain, or -1 when the
// chain has no deposits yet.
func (s *DepositStore) MaxDepositID(ctx context.Context, originChainID int64) (int64, error) {
	var max sql.NullInt64
	err := s.db.NewSelect().
		Model((*dao.DepositDao)(nil)).
		ColumnExpr("MAX(deposit_id)").
		Where("origin_chain_id = ?", originChainID).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max deposit id: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// ListDepositIDs returns the distinct contract deposit ids seen on a chain
// within [fromID, toID], ascending. Used by gap detection.
func (s *DepositStore) ListDepositIDs(ctx context.Context, originChainID, fromID, toID int64) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().
		Model((*dao.DepositDao)(nil)).
		ColumnExpr("DISTINCT deposit_id").
		Where("origin_chain_id = ?", originChainID).
		Where("deposit_id >= ?", fromID).
		Where("deposit_id <= ?", toID).
		OrderExpr("deposit_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposit ids: %w", err)
	}
	return ids, nil
}

// SetDepositDate sets the deposit date once. A row whose date is already
// populated is left untouched.
func (s *DepositStore) SetDepositDate(ctx context.Context, id int64, date time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("deposit_date = ?", date).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("deposit_date IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set deposit date: %w", err)
	}
	return nil
}

// SetTokenID links the deposit to its resolved token row.
func (s *DepositStore) SetTokenID(ctx context.Context, id, tokenID int64) error {
	return s.setOnce(ctx, id, "token_id", tokenID)
}

// SetOutputTokenID links the deposit to its resolved output token row.
func (s *DepositStore) SetOutputTokenID(ctx context.Context, id, tokenID int64) error {
	return s.setOnce(ctx, id, "output_token_id", tokenID)
}

// SetPriceID links the deposit to its resolved historic price row.
func (s *DepositStore) SetPriceID(ctx context.Context, id, priceID int64) error {
	return s.setOnce(ctx, id, "price_id", priceID)
}

// SetOutputPriceID links the deposit to the output token's historic price row.
func (s *DepositStore) SetOutputPriceID(ctx context.Context, id, priceID int64) error {
	return s.setOnce(ctx, id, "output_price_id", priceID)
}

func (s *DepositStore) setOnce(ctx context.Context, id int64, column string, value any) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("? IS NULL", bun.Ident(column)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	return nil
}

// SetReferralAddress records the calldata-extracted referral address and the
// initial sticky attribution.
func (s *DepositStore) SetReferralAddress(ctx context.Context, id int64, address string) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("referral_address = ?", address).
		Set("sticky_referral_address = ?", address).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set referral address: %w", err)
	}
	return nil
}

// SetStickyReferralAddress overwrites the propagated sticky referral
// attribution.
func (s *DepositStore) SetStickyReferralAddress(ctx context.Context, id int64, address *string) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("sticky_referral_address = ?", address).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set sticky referral address: %w", err)
	}
	return nil
}

// SetSuggestedRelayerFeePct records the suggested fee estimate.
func (s *DepositStore) SetSuggestedRelayerFeePct(ctx context.Context, id int64, pct string) error {
	return s.setOnce(ctx, id, "suggested_relayer_fee_pct", pct)
}

// SetAcxUsdPrice records the ACX USD price snapshot used for reward valuation.
func (s *DepositStore) SetAcxUsdPrice(ctx context.Context, id int64, usd string) error {
	return s.setOnce(ctx, id, "acx_usd_price", usd)
}

// UpdateFills persists the result of appending a fill: the fill list, the
// cumulative filled amount, the derived status and the blended bridge fee.
// The caller computed these from the current row state (read-modify-write).
func (s *DepositStore) UpdateFills(ctx context.Context, id int64, fills []dao.FillTx, filled, status string, bridgeFeePct, realizedLpFeePct *string) error {
	query := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("fill_txs = ?", fills).
		Set("filled = ?", filled).
		Set("status = ?", status).
		Set("updated_at = NOW()").
		Where("id = ?", id)
	if bridgeFeePct != nil {
		query = query.Set("bridge_fee_pct = ?", *bridgeFeePct)
	}
	if realizedLpFeePct != nil {
		query = query.Set("realized_lp_fee_pct = ?", *realizedLpFeePct)
	}
	if _, err := query.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update fills: %w", err)
	}
	return nil
}

// UpdateFillDates persists backfilled per-fill dates and the terminal filled
// date.
func (s *DepositStore) UpdateFillDates(ctx context.Context, id int64, fills []dao.FillTx, filledDate time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("fill_txs = ?", fills).
		Set("filled_date = ?", filledDate).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update fill dates: %w", err)
	}
	return nil
}

// SetFeeBreakdown persists the structured fee breakdown.
func (s *DepositStore) SetFeeBreakdown(ctx context.Context, id int64, breakdown *dao.FeeBreakdown) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("fee_breakdown = ?", breakdown).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set fee breakdown: %w", err)
	}
	return nil
}

// SetBridgeFeePct overwrites the capped bridge fee.
func (s *DepositStore) SetBridgeFeePct(ctx context.Context, id int64, pct string) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("bridge_fee_pct = ?", pct).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set bridge fee pct: %w", err)
	}
	return nil
}

// PrependSpeedUp adds a speed-up request at the head of the list (newest
// first), skipping hashes already recorded.
func (s *DepositStore) PrependSpeedUp(ctx context.Context, id int64, speedUp dao.SpeedUp) error {
	deposit, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, existing := range deposit.SpeedUps {
		if existing.Hash == speedUp.Hash {
			return nil
		}
	}
	updated := append([]dao.SpeedUp{speedUp}, deposit.SpeedUps...)
	_, err = s.db.NewUpdate().
		Model((*dao.DepositDao)(nil)).
		Set("speed_ups = ?", updated).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepend speed up: %w", err)
	}
	return nil
}

// ListByDepositorOrdered returns a depositor's deposits with a populated
// deposit date, ordered by that date ascending. Rows whose date is not yet
// set are excluded: they are not orderable until resolved.
func (s *DepositStore) ListByDepositorOrdered(ctx context.Context, depositor string) ([]*dao.DepositDao, error) {
	var deposits []*dao.DepositDao
	err := s.db.NewSelect().
		Model(&deposits).
		Where("depositor_addr = ?", depositor).
		Where("deposit_date IS NOT NULL").
		Order("deposit_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits for depositor: %w", err)
	}
	return deposits, nil
}

// ListPendingForFillProbe returns pending V3 deposits older than the grace
// cutoff that have an output token set, the candidates for the missed-fill
// sweep.
func (s *DepositStore) ListPendingForFillProbe(ctx context.Context, cutoff time.Time, limit int) ([]*dao.DepositDao, error) {
	var deposits []*dao.DepositDao
	err := s.db.NewSelect().
		Model(&deposits).
		Where("status = ?", StatusPending).
		Where("contract_version = ?", "v3").
		Where("deposit_date IS NOT NULL").
		Where("deposit_date < ?", cutoff).
		Where("output_token_address IS NOT NULL").
		Order("deposit_date ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits for fill probe: %w", err)
	}
	return deposits, nil
}

// List returns recent deposits for the read API, newest first. Only enriched
// fields that exist are populated; callers see nulls for the rest.
func (s *DepositStore) List(ctx context.Context, depositor string, limit, offset int) ([]*dao.DepositDao, error) {
	var deposits []*dao.DepositDao
	query := s.db.NewSelect().
		Model(&deposits).
		Order("id DESC").
		Limit(limit).
		Offset(offset)
	if depositor != "" {
		query = query.Where("depositor_addr = ?", depositor)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return deposits, nil
}
