package pipeline

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// handleOpRebate creates the OP rebate reward once the fee breakdown is
// final.
func (p *Pipeline) handleOpRebate(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}
	return p.rewards.CreateOpRebate(ctx, task.DepositPK)
}

// handleReferralReward creates the referral reward from the tier the
// materialized view computed.
func (p *Pipeline) handleReferralReward(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}
	return p.rewards.CreateReferralReward(ctx, task.DepositPK)
}

// handleClaim consumes an on-chain rewards claim and re-propagates sticky
// referrals for the claiming account, since a claim resets its attribution
// chain. Runs with concurrency 1: claims reorder attribution across rows.
func (p *Pipeline) handleClaim(ctx context.Context, payload json.RawMessage) error {
	msg, err := decode[ClaimMessage](payload)
	if err != nil {
		return err
	}

	if err := p.rewards.ConsumeClaim(ctx, &dao.ClaimDao{
		Account:     msg.Account,
		WindowIndex: msg.WindowIndex,
		Amount:      msg.Amount,
		TxHash:      msg.TxHash,
		LogIndex:    msg.LogIndex,
		BlockNumber: int64(msg.BlockNumber),
		ClaimedAt:   msg.ClaimedAt,
	}); err != nil {
		return err
	}

	return p.queue.Enqueue(ctx, StageStickyReferral, StickyTask{Depositor: msg.Account})
}
