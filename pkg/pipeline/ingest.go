package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// IngestDeposits converts decoded deposit events into ledger rows. Re-runs
// over overlapping ranges are safe: the unique (deposit_id, origin_chain_id)
// constraint absorbs duplicates. Each new row enqueues the block-date stage.
func (p *Pipeline) IngestDeposits(ctx context.Context, chainID uint64, deposits []*contracts.DepositEvent, swaps []*contracts.SwapEvent) error {
	pairSwaps(deposits, swaps)

	for _, event := range deposits {
		row, err := p.depositRow(ctx, chainID, event)
		if err != nil {
			// Malformed events cannot heal on retry; log and move on.
			p.logger.Error("skipping unprocessable deposit event",
				zap.Uint64("chain_id", chainID),
				zap.Uint64("deposit_id", event.DepositID),
				zap.String("tx", event.Raw.TxHash.Hex()),
				zap.Error(err))
			continue
		}

		inserted, err := p.deposits.Insert(ctx, row)
		if err != nil {
			return err
		}
		if !inserted {
			metrics.DepositsDuplicate.WithLabelValues(fmt.Sprint(chainID)).Inc()
			continue
		}
		metrics.DepositsIngested.WithLabelValues(fmt.Sprint(chainID), row.ContractVersion).Inc()

		if err := p.queue.Enqueue(ctx, StageBlockDate, DepositTask{DepositPK: row.ID}); err != nil {
			return err
		}
	}
	return nil
}

// pairSwaps attaches each swap-before-bridge event to the deposit that
// follows it in the same transaction. Walking deposits in ascending log
// order, a deposit takes the unconsumed swap with the largest log index
// still below its own; each swap pairs at most once.
func pairSwaps(deposits []*contracts.DepositEvent, swaps []*contracts.SwapEvent) {
	if len(swaps) == 0 {
		return
	}
	byTx := make(map[common.Hash][]*contracts.SwapEvent)
	for _, swap := range swaps {
		byTx[swap.Raw.TxHash] = append(byTx[swap.Raw.TxHash], swap)
	}
	consumed := make(map[*contracts.SwapEvent]bool)

	for _, deposit := range deposits {
		var best *contracts.SwapEvent
		for _, swap := range byTx[deposit.Raw.TxHash] {
			if consumed[swap] || swap.Raw.Index >= deposit.Raw.Index {
				continue
			}
			if best == nil || swap.Raw.Index > best.Raw.Index {
				best = swap
			}
		}
		if best != nil {
			consumed[best] = true
			deposit.Swap = best
		}
	}
}

func (p *Pipeline) depositRow(ctx context.Context, chainID uint64, event *contracts.DepositEvent) (*dao.DepositDao, error) {
	depositor, err := p.unwrapDepositor(ctx, chainID, event)
	if err != nil {
		return nil, err
	}

	row := &dao.DepositDao{
		DepositID:          int64(event.DepositID),
		OriginChainID:      int64(event.OriginChainID),
		DestinationChainID: int64(event.DestinationChainID),
		DepositTxHash:      event.Raw.TxHash.Hex(),
		BlockNumber:        int64(event.Raw.BlockNumber),
		ContractVersion:    string(event.Version),
		DepositorAddr:      depositor,
		RecipientAddr:      event.Recipient.Hex(),
		TokenAddr:          event.InputToken.Hex(),
		Amount:             event.Amount.String(),
		Filled:             "0",
		Status:             db.StatusPending,
	}

	switch event.Version {
	case contracts.VersionV2, contracts.VersionV25:
		if event.RelayerFeePct != nil {
			pct := event.RelayerFeePct.String()
			row.DepositRelayerFeePct = &pct
			row.InitialRelayerFeePct = &pct
		}
	case contracts.VersionV3:
		output, err := p.resolveOutputToken(chainID, event)
		if err != nil {
			return nil, err
		}
		row.OutputTokenAddress = &output
		if event.OutputAmount != nil {
			amount := event.OutputAmount.String()
			row.OutputAmount = &amount
		}
		if event.FillDeadline != nil {
			deadline := time.Unix(int64(*event.FillDeadline), 0).UTC()
			row.FillDeadline = &deadline
		}
		if event.ExclusivityDeadline != nil && *event.ExclusivityDeadline > 0 {
			deadline := time.Unix(int64(*event.ExclusivityDeadline), 0).UTC()
			row.ExclusivityDeadline = &deadline
		}
		if event.ExclusiveRelayer != nil {
			relayer := event.ExclusiveRelayer.Hex()
			row.ExclusiveRelayer = &relayer
		}
		if len(event.Message) > 0 {
			row.Message = event.Message
		}
		if event.Swap != nil {
			swapToken := event.Swap.SwapToken.Hex()
			swapAmount := event.Swap.SwapTokenAmount.String()
			row.SwapTokenAddress = &swapToken
			row.SwapTokenAmount = &swapAmount
		}
	}
	return row, nil
}

// unwrapDepositor recovers the true depositor behind the verifier
// passthrough contract used by meta-transactions.
func (p *Pipeline) unwrapDepositor(ctx context.Context, chainID uint64, event *contracts.DepositEvent) (string, error) {
	depositor := event.Depositor.Hex()

	client, err := p.chains.Client(chainID)
	if err != nil {
		return "", err
	}
	verifier := client.Cfg.VerifierContract
	if verifier == "" || !strings.EqualFold(depositor, verifier) {
		return depositor, nil
	}

	receipt, err := p.chains.GetTransactionReceipt(ctx, chainID, event.Raw.TxHash.Hex())
	if err != nil {
		return "", err
	}
	return receipt.From, nil
}

// resolveOutputToken replaces a zero output token address with the canonical
// destination equivalent from the route table.
func (p *Pipeline) resolveOutputToken(chainID uint64, event *contracts.DepositEvent) (string, error) {
	if event.OutputToken == nil {
		return "", fmt.Errorf("v3 deposit without output token")
	}
	if *event.OutputToken != (common.Address{}) {
		return event.OutputToken.Hex(), nil
	}
	output, ok := p.routes.OutputToken(chainID, event.InputToken.Hex(), event.DestinationChainID)
	if !ok {
		return "", fmt.Errorf("no route for token %s from chain %d to %d",
			event.InputToken.Hex(), chainID, event.DestinationChainID)
	}
	return output, nil
}

// IngestFills enqueues decoded fill events to their shape-specific stages.
func (p *Pipeline) IngestFills(ctx context.Context, fills []*contracts.FillEvent) error {
	for _, event := range fills {
		msg := fillMessage(event)
		stage, err := fillStage(event.Shape)
		if err != nil {
			p.logger.Error("skipping fill with unknown shape",
				zap.String("tx", event.Raw.TxHash.Hex()), zap.Error(err))
			continue
		}
		if err := p.queue.Enqueue(ctx, stage, msg); err != nil {
			return err
		}
	}
	return nil
}

func fillStage(shape contracts.FillShape) (string, error) {
	switch shape {
	case contracts.FillShapeV2:
		return StageFillV2, nil
	case contracts.FillShapeV25:
		return StageFillV25, nil
	case contracts.FillShapeV3:
		return StageFillV3, nil
	default:
		return "", fmt.Errorf("unknown fill shape %q", shape)
	}
}

func fillMessage(event *contracts.FillEvent) FillMessage {
	msg := FillMessage{
		Shape:              string(event.Shape),
		OriginChainID:      event.OriginChainID,
		DestinationChainID: event.DestinationChainID,
		DepositID:          event.DepositID,
		TxHash:             event.Raw.TxHash.Hex(),
		BlockNumber:        event.Raw.BlockNumber,
	}
	if event.FillAmount != nil {
		msg.FillAmount = event.FillAmount.String()
	}
	if event.TotalFilledAmount != nil {
		msg.TotalFilledAmount = event.TotalFilledAmount.String()
	}
	if event.RealizedLpFeePct != nil {
		msg.RealizedLpFeePct = event.RealizedLpFeePct.String()
	}

	switch event.Shape {
	case contracts.FillShapeV2:
		if event.AppliedRelayerFeePct != nil {
			msg.AppliedRelayerFeePct = event.AppliedRelayerFeePct.String()
		}
	case contracts.FillShapeV25:
		if event.UpdatableRelayData != nil {
			if event.UpdatableRelayData.RelayerFeePct != nil {
				msg.UpdatedRelayerFeePct = event.UpdatableRelayData.RelayerFeePct.String()
			}
			slow := event.UpdatableRelayData.IsSlowRelay
			msg.IsSlowRelay = &slow
		}
	case contracts.FillShapeV3:
		if event.OutputAmount != nil {
			msg.OutputAmount = event.OutputAmount.String()
		}
		if event.RelayExecutionInfo != nil {
			if event.RelayExecutionInfo.UpdatedOutputAmount != nil {
				msg.UpdatedOutputAmount = event.RelayExecutionInfo.UpdatedOutputAmount.String()
			}
			fillType := event.RelayExecutionInfo.FillType
			msg.FillType = &fillType
		}
	}
	return msg
}

// IngestSpeedUps enqueues decoded speed-up events.
func (p *Pipeline) IngestSpeedUps(ctx context.Context, chainID uint64, speedUps []*contracts.SpeedUpEvent) error {
	for _, event := range speedUps {
		msg := SpeedUpMessage{
			Version:       string(event.Version),
			OriginChainID: chainID,
			DepositID:     event.DepositID,
			TxHash:        event.Raw.TxHash.Hex(),
			BlockNumber:   event.Raw.BlockNumber,
		}
		if event.NewRelayerFeePct != nil {
			msg.NewRelayerFeePct = event.NewRelayerFeePct.String()
		}
		if event.UpdatedOutputAmount != nil {
			msg.UpdatedOutputAmount = event.UpdatedOutputAmount.String()
		}
		if err := p.queue.Enqueue(ctx, StageSpeedUp, msg); err != nil {
			return err
		}
	}
	return nil
}

// IngestClaims resolves claim timestamps and enqueues claim consumption.
func (p *Pipeline) IngestClaims(ctx context.Context, chainID uint64, claims []*contracts.ClaimEvent) error {
	for _, event := range claims {
		block, err := p.chains.GetBlock(ctx, chainID, event.Raw.BlockNumber)
		if err != nil {
			return err
		}
		msg := ClaimMessage{
			ChainID:     chainID,
			Account:     event.Account.Hex(),
			WindowIndex: event.WindowIndex.Int64(),
			Amount:      event.Amount.String(),
			TxHash:      event.Raw.TxHash.Hex(),
			LogIndex:    int64(event.Raw.Index),
			BlockNumber: event.Raw.BlockNumber,
			ClaimedAt:   block.Timestamp,
		}
		if err := p.queue.Enqueue(ctx, StageClaim, msg); err != nil {
			return err
		}
	}
	return nil
}
