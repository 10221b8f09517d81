// Package rewards creates reward rows from enriched deposits and consumes
// on-chain claim events.
package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/oracle"
)

const (
	// OP rebate program: deposits landing on Optimism get a rebate of most
	// of the bridge fee, paid in OP.
	opRebateChainID = 10
	opSymbol        = "op"

	tokenUnit = 18
)

var opRebateRate = decimal.RequireFromString("0.95")

// Service computes reward rows. Creation is idempotent: the unique
// constraint on (recipient, reward_type, deposit_pk) absorbs replays.
type Service struct {
	deposits *db.DepositStore
	rewards  *db.RewardStore
	views    *db.ViewStore
	price    *oracle.PriceOracle
	cfg      *config.OraclesConfig
	logger   *zap.Logger
}

// NewService creates a reward service.
func NewService(deposits *db.DepositStore, rewards *db.RewardStore, views *db.ViewStore, price *oracle.PriceOracle, cfg *config.OraclesConfig, logger *zap.Logger) *Service {
	return &Service{
		deposits: deposits,
		rewards:  rewards,
		views:    views,
		price:    price,
		cfg:      cfg,
		logger:   logger,
	}
}

// tokenAmount converts a USD value into reward-token base units at the
// given unit price.
func tokenAmount(usd, unitPrice decimal.Decimal) (string, error) {
	if unitPrice.IsZero() {
		return "", fmt.Errorf("reward token price is zero")
	}
	return usd.Div(unitPrice).Shift(tokenUnit).Floor().String(), nil
}

// CreateOpRebate creates the OP rebate reward for a deposit whose fee
// breakdown is final. Deposits not landing on Optimism are a no-op.
func (s *Service) CreateOpRebate(ctx context.Context, depositPK int64) error {
	deposit, err := s.deposits.Get(ctx, depositPK)
	if err != nil {
		return err
	}
	if deposit.DestinationChainID != opRebateChainID {
		return nil
	}
	if deposit.FeeBreakdown == nil || deposit.FeeBreakdown.TotalBridgeFeeUsd == "" || deposit.DepositDate == nil {
		return fmt.Errorf("deposit %d has no fee breakdown for op rebate", depositPK)
	}

	feeUsd, err := decimal.NewFromString(deposit.FeeBreakdown.TotalBridgeFeeUsd)
	if err != nil {
		return fmt.Errorf("invalid bridge fee usd on deposit %d: %w", depositPK, err)
	}
	rewardUsd := feeUsd.Mul(opRebateRate)

	opPrice, err := s.price.HistoricPrice(ctx, opSymbol, priceDate(*deposit.DepositDate))
	if err != nil {
		return err
	}
	unitPrice, err := decimal.NewFromString(opPrice.USD)
	if err != nil {
		return fmt.Errorf("invalid op price: %w", err)
	}
	amount, err := tokenAmount(rewardUsd, unitPrice)
	if err != nil {
		return err
	}

	inserted, err := s.rewards.Insert(ctx, &dao.RewardDao{
		Recipient:  deposit.DepositorAddr,
		RewardType: dao.RewardTypeOpRebate,
		DepositPK:  depositPK,
		Amount:     amount,
		AmountUsd:  rewardUsd.StringFixed(8),
		Metadata: map[string]any{
			"rate":           opRebateRate.String(),
			"bridge_fee_usd": feeUsd.String(),
		},
		WindowIndex: deposit.RewardsWindowIndex,
	})
	if err != nil {
		return err
	}
	if inserted {
		metrics.RewardsCreated.WithLabelValues(dao.RewardTypeOpRebate).Inc()
	}
	return nil
}

// CreateReferralReward creates the referral reward for a deposit, using the
// rate tier and multiplier the materialized view computed for the referrer.
// Deposits without referral attribution are a no-op.
func (s *Service) CreateReferralReward(ctx context.Context, depositPK int64) error {
	deposit, err := s.deposits.Get(ctx, depositPK)
	if err != nil {
		return err
	}
	if deposit.StickyReferralAddress == nil || deposit.DepositDate == nil {
		return nil
	}
	if deposit.FeeBreakdown == nil || deposit.FeeBreakdown.TotalBridgeFeeUsd == "" {
		return fmt.Errorf("deposit %d has no fee breakdown for referral reward", depositPK)
	}

	tier, err := s.views.ReferralTier(ctx, depositPK)
	if err != nil {
		// The view only carries the row after the next refresh; retry.
		return fmt.Errorf("deposit %d not yet in deposits_mv: %w", depositPK, err)
	}
	if tier.ReferralRate == nil || tier.Multiplier == nil {
		return fmt.Errorf("deposit %d has no tier in deposits_mv", depositPK)
	}

	rate, err := decimal.NewFromString(*tier.ReferralRate)
	if err != nil {
		return fmt.Errorf("invalid referral rate on deposit %d: %w", depositPK, err)
	}
	feeUsd, err := decimal.NewFromString(deposit.FeeBreakdown.TotalBridgeFeeUsd)
	if err != nil {
		return fmt.Errorf("invalid bridge fee usd on deposit %d: %w", depositPK, err)
	}
	rewardUsd := feeUsd.Mul(rate).Mul(decimal.NewFromInt(*tier.Multiplier))

	acxPrice, err := s.price.HistoricPrice(ctx, s.cfg.AcxSymbol, priceDate(*deposit.DepositDate))
	if err != nil {
		return err
	}
	if deposit.AcxUsdPrice == nil {
		if err := s.deposits.SetAcxUsdPrice(ctx, depositPK, acxPrice.USD); err != nil {
			return err
		}
	}
	unitPrice, err := decimal.NewFromString(acxPrice.USD)
	if err != nil {
		return fmt.Errorf("invalid acx price: %w", err)
	}
	amount, err := tokenAmount(rewardUsd, unitPrice)
	if err != nil {
		return err
	}

	inserted, err := s.rewards.Insert(ctx, &dao.RewardDao{
		Recipient:  *deposit.StickyReferralAddress,
		RewardType: dao.RewardTypeReferral,
		DepositPK:  depositPK,
		Amount:     amount,
		AmountUsd:  rewardUsd.StringFixed(8),
		Metadata: map[string]any{
			"rate":       rate.String(),
			"multiplier": *tier.Multiplier,
			"depositor":  deposit.DepositorAddr,
		},
		WindowIndex: deposit.RewardsWindowIndex,
	})
	if err != nil {
		return err
	}
	if inserted {
		metrics.RewardsCreated.WithLabelValues(dao.RewardTypeReferral).Inc()
	}
	return nil
}

// ConsumeClaim records an on-chain rewards claim and marks the account's
// rewards for that window claimed. Idempotent by the (tx_hash, log_index)
// constraint.
func (s *Service) ConsumeClaim(ctx context.Context, claim *dao.ClaimDao) error {
	inserted, err := s.rewards.InsertClaim(ctx, claim)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	return s.rewards.MarkClaimed(ctx, claim.Account, claim.WindowIndex, claim.ClaimedAt)
}

// priceDate snapshots prices one day before the deposit to avoid same-day
// volatility feeding back into rewards.
func priceDate(depositDate time.Time) time.Time {
	return depositDate.AddDate(0, 0, -1).Truncate(24 * time.Hour)
}
