package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/feemath"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

// fillHandler builds the handler for one fill shape. All three shapes share
// the read-modify-write skeleton; the shape decides how cumulative fill and
// fees are derived.
func (p *Pipeline) fillHandler(stage string) queue.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		msg, err := decode[FillMessage](payload)
		if err != nil {
			return err
		}

		deposit, err := p.deposits.GetByDepositID(ctx, int64(msg.OriginChainID), int64(msg.DepositID))
		if errors.Is(err, db.ErrDepositNotFound) {
			// Fill observed before its deposit was ingested; wait for it.
			return Precondition(0, fmt.Sprintf("deposit %d on chain %d", msg.DepositID, msg.OriginChainID))
		}
		if err != nil {
			return err
		}

		for _, existing := range deposit.FillTxs {
			if sameFill(existing, msg) {
				return nil
			}
		}

		fill := dao.FillTx{
			Hash:              msg.TxHash,
			Shape:             msg.Shape,
			BlockNumber:       int64(msg.BlockNumber),
			FillAmount:        msg.FillAmount,
			TotalFilledAmount: msg.TotalFilledAmount,
			RealizedLpFeePct:  msg.RealizedLpFeePct,
			OutputAmount:      msg.OutputAmount,
			FillType:          msg.FillType,
		}
		switch contracts.FillShape(msg.Shape) {
		case contracts.FillShapeV2:
			fill.AppliedRelayerFeePct = msg.AppliedRelayerFeePct
		case contracts.FillShapeV25:
			fill.AppliedRelayerFeePct = msg.UpdatedRelayerFeePct
		}
		fills := append(deposit.FillTxs, fill)

		filled, status, err := cumulativeStatus(deposit, msg)
		if err != nil {
			return queue.Permanent(err)
		}

		var bridgeFeePct, realizedLp *string
		if contracts.FillShape(msg.Shape) != contracts.FillShapeV3 {
			bridgeFeePct, realizedLp, err = blendedFees(deposit, fills)
			if err != nil {
				return queue.Permanent(err)
			}
		}

		if err := p.deposits.UpdateFills(ctx, deposit.ID, fills, filled, status, bridgeFeePct, realizedLp); err != nil {
			return err
		}
		metrics.FillsProcessed.WithLabelValues(fmt.Sprint(msg.DestinationChainID), msg.Shape).Inc()

		return p.fanOut(ctx, stage, DepositTask{DepositPK: deposit.ID})
	}
}

// sameFill is the dedup predicate: v2/v2.5 fills repeat the hash with a new
// cumulative total on partial fills, v3 fills are one event per relay.
func sameFill(existing dao.FillTx, msg FillMessage) bool {
	if existing.Hash != msg.TxHash {
		return false
	}
	if contracts.FillShape(msg.Shape) == contracts.FillShapeV3 {
		return true
	}
	return existing.TotalFilledAmount == msg.TotalFilledAmount
}

// cumulativeStatus derives the new cumulative filled amount and status. The
// status only moves pending -> filled; later fills never flip it back.
func cumulativeStatus(deposit *dao.DepositDao, msg FillMessage) (string, string, error) {
	amount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return "", "", fmt.Errorf("deposit %d has malformed amount %q", deposit.ID, deposit.Amount)
	}

	if contracts.FillShape(msg.Shape) == contracts.FillShapeV3 {
		// A v3 fill settles the whole relay in one event.
		return amount.String(), db.StatusFilled, nil
	}

	total, ok := new(big.Int).SetString(msg.TotalFilledAmount, 10)
	if !ok {
		return "", "", fmt.Errorf("fill %s has malformed total %q", msg.TxHash, msg.TotalFilledAmount)
	}
	current, ok := new(big.Int).SetString(deposit.Filled, 10)
	if !ok {
		current = big.NewInt(0)
	}
	if total.Cmp(current) < 0 {
		// Out-of-order delivery; the later cumulative total wins.
		total = current
	}

	status := deposit.Status
	if status != db.StatusFilled && total.Cmp(amount) >= 0 {
		status = db.StatusFilled
	}
	return total.String(), status, nil
}

// blendedFees recomputes the volume-weighted relayer fee over all fills and
// the resulting capped bridge fee. The realized LP fee is taken from the
// fill with the greatest cumulative total, so an out-of-order earlier
// partial fill cannot overwrite the newer rate.
func blendedFees(deposit *dao.DepositDao, fills []dao.FillTx) (bridgeFeePct, realizedLp *string, err error) {
	amount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return nil, nil, fmt.Errorf("deposit %d has malformed amount %q", deposit.ID, deposit.Amount)
	}

	portions := make([]feemath.FillPortion, 0, len(fills))
	for _, fill := range fills {
		fillAmount, ok := new(big.Int).SetString(fill.FillAmount, 10)
		if !ok {
			continue
		}
		var feePct *big.Int
		if fill.AppliedRelayerFeePct != "" {
			feePct, _ = new(big.Int).SetString(fill.AppliedRelayerFeePct, 10)
		}
		portions = append(portions, feemath.FillPortion{
			FillAmount:    fillAmount,
			RelayerFeePct: feePct,
		})
	}

	blended := feemath.BlendedRelayerFeePct(portions, amount)

	lp := big.NewInt(0)
	if latest := latestFill(fills); latest != nil && latest.RealizedLpFeePct != "" {
		parsed, ok := new(big.Int).SetString(latest.RealizedLpFeePct, 10)
		if !ok {
			return nil, nil, fmt.Errorf("fill %s has malformed lp fee %q", latest.Hash, latest.RealizedLpFeePct)
		}
		lp = parsed
	}

	bridge := feemath.BridgeFeePct(blended, lp)
	bridgeStr := bridge.String()
	lpStr := lp.String()
	return &bridgeStr, &lpStr, nil
}

// latestFill picks the fill with the greatest cumulative total. Fills with
// unparseable totals are skipped.
func latestFill(fills []dao.FillTx) *dao.FillTx {
	var best *dao.FillTx
	bestTotal := new(big.Int)
	for i := range fills {
		total, ok := new(big.Int).SetString(fills[i].TotalFilledAmount, 10)
		if !ok {
			continue
		}
		if best == nil || total.Cmp(bestTotal) > 0 {
			best = &fills[i]
			bestTotal = total
		}
	}
	return best
}
