package pipeline

import (
	"context"
	"encoding/json"

	"github.com/relaymesh/bridge-indexer/pkg/db"
)

// handleFilledDate backfills a date onto every fill tx lacking one, then
// sets filledDate to the latest fill date. A fill can never appear to
// precede its deposit: depositDate wins when clock skew puts it later.
func (p *Pipeline) handleFilledDate(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.Get(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.Status != db.StatusFilled {
		// Partial fill; nothing to finalize yet.
		return nil
	}
	if deposit.DepositDate == nil {
		return Precondition(deposit.ID, "deposit_date")
	}

	fills := deposit.FillTxs
	for i := range fills {
		if fills[i].Date != nil {
			continue
		}
		block, err := p.chains.GetBlock(ctx, uint64(deposit.DestinationChainID), uint64(fills[i].BlockNumber))
		if err != nil {
			return err
		}
		ts := block.Timestamp
		fills[i].Date = &ts
	}

	filledDate := *deposit.DepositDate
	for _, fill := range fills {
		if fill.Date != nil && fill.Date.After(filledDate) {
			filledDate = *fill.Date
		}
	}

	if err := p.deposits.UpdateFillDates(ctx, deposit.ID, fills, filledDate); err != nil {
		return err
	}
	return p.fanOut(ctx, StageFilledDate, task)
}
