package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/feemath"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

// handleCappedFee computes the v3 bridge fee percentage from the USD value
// difference between input and output, clamped to the fee cap. v2/v2.5
// deposits get their bridge fee from the fill blend instead.
func (p *Pipeline) handleCappedFee(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.GetWithRelations(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.Status != db.StatusFilled {
		return Precondition(deposit.ID, "fills")
	}
	if deposit.Token == nil || deposit.Price == nil || deposit.OutputToken == nil || deposit.OutputPrice == nil {
		return Precondition(deposit.ID, "token/price relations")
	}
	if deposit.OutputAmount == nil {
		return queue.Permanent(fmt.Errorf("v3 deposit %d has no output amount", deposit.ID))
	}

	amount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return queue.Permanent(fmt.Errorf("deposit %d has malformed amount", deposit.ID))
	}
	outputAmount, ok := new(big.Int).SetString(*deposit.OutputAmount, 10)
	if !ok {
		return queue.Permanent(fmt.Errorf("deposit %d has malformed output amount", deposit.ID))
	}
	inputPrice, err := decimal.NewFromString(deposit.Price.USD)
	if err != nil {
		return queue.Permanent(err)
	}
	outputPrice, err := decimal.NewFromString(deposit.OutputPrice.USD)
	if err != nil {
		return queue.Permanent(err)
	}

	inputUsd := feemath.AmountUSD(amount, deposit.Token.Decimals, inputPrice)
	outputUsd := feemath.AmountUSD(outputAmount, deposit.OutputToken.Decimals, outputPrice)

	pct := big.NewInt(0)
	if inputUsd.IsPositive() {
		pct = inputUsd.Sub(outputUsd).Div(inputUsd).Mul(decimal.New(1, 18)).Floor().BigInt()
	}
	capped := feemath.CapBridgeFeePct(pct)

	if err := p.deposits.SetBridgeFeePct(ctx, deposit.ID, capped.String()); err != nil {
		return err
	}
	return p.fanOut(ctx, StageCappedFee, task)
}
