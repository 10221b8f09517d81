package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/referral"
)

// handleReferral extracts an embedded referral address from the deposit
// transaction's calldata, then triggers sticky propagation for the
// depositor. Propagation runs even when this deposit carries no referral:
// the new dated row may need to inherit an earlier one.
func (p *Pipeline) handleReferral(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.Get(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.DepositDate == nil {
		return Precondition(deposit.ID, "deposit_date")
	}

	if deposit.ReferralAddress == nil {
		tx, err := p.chains.GetTransaction(ctx, uint64(deposit.OriginChainID), deposit.DepositTxHash)
		if err != nil {
			return err
		}
		if addr, ok := referral.Extract(tx.Data); ok {
			if err := p.deposits.SetReferralAddress(ctx, deposit.ID, addr); err != nil {
				return err
			}
			p.logger.Debug("referral address extracted",
				zap.Int64("deposit_pk", deposit.ID),
				zap.String("referral", addr))
		}
	}

	return p.fanOut(ctx, StageReferral, StickyTask{Depositor: deposit.DepositorAddr})
}

// handleStickyReferral recomputes sticky attribution across the depositor's
// whole history. Runs with concurrency 1 so interleaved propagations cannot
// see half-written chains.
func (p *Pipeline) handleStickyReferral(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[StickyTask](payload)
	if err != nil {
		return err
	}
	return p.propagator.Propagate(ctx, task.Depositor)
}
