package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/relaymesh/bridge-indexer/pkg/feemath"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

// handleSuggestedFee records what a relayer would quote for this transfer.
// The fee oracle only quotes current conditions, so deposits older than the
// recency window get a fixed 1bp fallback instead of a misleading quote.
func (p *Pipeline) handleSuggestedFee(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.Get(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.SuggestedRelayerFeePct != nil {
		return nil
	}
	if deposit.DepositDate == nil {
		return Precondition(deposit.ID, "deposit_date")
	}

	var pct *big.Int
	if time.Since(*deposit.DepositDate) <= p.cfg.SuggestedFeeWindow {
		amount, ok := new(big.Int).SetString(deposit.Amount, 10)
		if !ok {
			return queue.Permanent(fmt.Errorf("deposit %d has malformed amount", deposit.ID))
		}
		pct, err = p.feeOracle.SuggestedRelayerFeePct(ctx, amount, deposit.TokenAddr,
			uint64(deposit.OriginChainID), uint64(deposit.DestinationChainID))
		if err != nil {
			return err
		}
	} else {
		pct = new(big.Int).Set(feemath.SuggestedFeeFallbackPct)
	}

	return p.deposits.SetSuggestedRelayerFeePct(ctx, deposit.ID, pct.String())
}
