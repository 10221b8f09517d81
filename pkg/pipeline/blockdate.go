package pipeline

import (
	"context"
	"encoding/json"
)

// handleBlockDate resolves the deposit's block timestamp into depositDate.
// First stage after ingestion; unblocks token details, referral extraction
// and the suggested fee in parallel.
func (p *Pipeline) handleBlockDate(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.Get(ctx, task.DepositPK)
	if err != nil {
		return err
	}

	if deposit.DepositDate == nil {
		block, err := p.chains.GetBlock(ctx, uint64(deposit.OriginChainID), uint64(deposit.BlockNumber))
		if err != nil {
			return err
		}
		if err := p.deposits.SetDepositDate(ctx, deposit.ID, block.Timestamp); err != nil {
			return err
		}
	}

	return p.fanOut(ctx, StageBlockDate, task)
}
