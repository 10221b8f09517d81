package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/feemath"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

// handleFeeBreakdown decomposes the bridge fee into its components. The two
// contract generations expose different raw material: v2.5 carries explicit
// percentage fields, v3 only lets us compare input and output USD value.
func (p *Pipeline) handleFeeBreakdown(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.GetWithRelations(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.Status != db.StatusFilled || len(deposit.FillTxs) == 0 {
		return Precondition(deposit.ID, "fills")
	}
	if deposit.DepositDate == nil {
		return Precondition(deposit.ID, "deposit_date")
	}
	if deposit.Token == nil || deposit.Price == nil {
		return Precondition(deposit.ID, "token/price relations")
	}

	var breakdown *dao.FeeBreakdown
	switch contracts.Version(deposit.ContractVersion) {
	case contracts.VersionV3:
		breakdown, err = p.v3Breakdown(ctx, deposit)
	default:
		breakdown, err = p.pctBreakdown(ctx, deposit)
	}
	if err != nil {
		return err
	}

	if err := p.deposits.SetFeeBreakdown(ctx, deposit.ID, breakdown); err != nil {
		return err
	}
	return p.fanOut(ctx, StageFeeBreakdown, task)
}

// pctBreakdown derives the v2/v2.5 breakdown from the percentage fields. The
// gas component is reconstructed from the first fill's receipt; the
// remainder of the relayer fee is capital.
func (p *Pipeline) pctBreakdown(ctx context.Context, deposit *dao.DepositDao) (*dao.FeeBreakdown, error) {
	if deposit.BridgeFeePct == nil || deposit.RealizedLpFeePct == nil {
		return nil, Precondition(deposit.ID, "bridge_fee_pct")
	}

	amount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed amount", deposit.ID))
	}
	unitPrice, err := decimal.NewFromString(deposit.Price.USD)
	if err != nil {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed price: %w", deposit.ID, err))
	}
	amountUsd := feemath.AmountUSD(amount, deposit.Token.Decimals, unitPrice)

	totalPct, ok := new(big.Int).SetString(*deposit.BridgeFeePct, 10)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed bridge fee", deposit.ID))
	}
	lpPct, ok := new(big.Int).SetString(*deposit.RealizedLpFeePct, 10)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed lp fee", deposit.ID))
	}

	relayPct := new(big.Int).Sub(totalPct, lpPct)
	if relayPct.Sign() < 0 {
		relayPct = big.NewInt(0)
	}

	gasUsd, err := p.fillGasUSD(ctx, deposit)
	if err != nil {
		return nil, err
	}
	gasPct := big.NewInt(0)
	if amountUsd.IsPositive() {
		gasPct = gasUsd.Div(amountUsd).Mul(decimal.New(1, 18)).Floor().BigInt()
	}
	if gasPct.Cmp(relayPct) > 0 {
		gasPct = relayPct
	}
	capitalPct := new(big.Int).Sub(relayPct, gasPct)

	pctUsd := func(pct *big.Int) decimal.Decimal {
		return feemath.PctToDecimal(pct).Mul(amountUsd)
	}
	return &dao.FeeBreakdown{
		LpFeePct:           lpPct.String(),
		LpFeeUsd:           pctUsd(lpPct).StringFixed(8),
		RelayCapitalFeePct: capitalPct.String(),
		RelayCapitalFeeUsd: pctUsd(capitalPct).StringFixed(8),
		RelayGasFeePct:     gasPct.String(),
		RelayGasFeeUsd:     pctUsd(gasPct).StringFixed(8),
		TotalBridgeFeePct:  totalPct.String(),
		TotalBridgeFeeUsd:  pctUsd(totalPct).StringFixed(8),
	}, nil
}

// v3Breakdown derives the bridge fee as the USD difference between what was
// sent and what was received. The per-component relayer fields stay empty
// since v3 does not expose them; only the gas cost is reported, in USD.
func (p *Pipeline) v3Breakdown(ctx context.Context, deposit *dao.DepositDao) (*dao.FeeBreakdown, error) {
	if deposit.OutputToken == nil || deposit.OutputPrice == nil {
		return nil, Precondition(deposit.ID, "output token/price relations")
	}
	if deposit.OutputAmount == nil {
		return nil, queue.Permanent(fmt.Errorf("v3 deposit %d has no output amount", deposit.ID))
	}

	amount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed amount", deposit.ID))
	}
	outputAmount, ok := new(big.Int).SetString(*deposit.OutputAmount, 10)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("deposit %d has malformed output amount", deposit.ID))
	}
	inputPrice, err := decimal.NewFromString(deposit.Price.USD)
	if err != nil {
		return nil, queue.Permanent(err)
	}
	outputPrice, err := decimal.NewFromString(deposit.OutputPrice.USD)
	if err != nil {
		return nil, queue.Permanent(err)
	}

	inputUsd := feemath.AmountUSD(amount, deposit.Token.Decimals, inputPrice)
	outputUsd := feemath.AmountUSD(outputAmount, deposit.OutputToken.Decimals, outputPrice)

	bridgeUsd := inputUsd.Sub(outputUsd)
	if bridgeUsd.IsNegative() {
		bridgeUsd = decimal.Zero
	}
	totalPct := big.NewInt(0)
	if inputUsd.IsPositive() {
		totalPct = bridgeUsd.Div(inputUsd).Mul(decimal.New(1, 18)).Floor().BigInt()
	}

	gasUsd, err := p.fillGasUSD(ctx, deposit)
	if err != nil {
		return nil, err
	}

	return &dao.FeeBreakdown{
		TotalBridgeFeePct: totalPct.String(),
		TotalBridgeFeeUsd: bridgeUsd.StringFixed(8),
		RelayGasFeeUsd:    gasUsd.StringFixed(8),
	}, nil
}

// fillGasUSD prices the first fill transaction's gas in USD via the
// destination chain's native token.
func (p *Pipeline) fillGasUSD(ctx context.Context, deposit *dao.DepositDao) (decimal.Decimal, error) {
	fill := deposit.FillTxs[0]

	receipt, err := p.chains.GetTransactionReceipt(ctx, uint64(deposit.DestinationChainID), fill.Hash)
	if err != nil {
		return decimal.Zero, err
	}
	gasPrice, err := decimal.NewFromString(receipt.EffectiveGasPrice)
	if err != nil {
		return decimal.Zero, queue.Permanent(fmt.Errorf("receipt %s has malformed gas price: %w", fill.Hash, err))
	}
	gasWei := gasPrice.Mul(decimal.NewFromInt(receipt.GasUsed))

	client, err := p.chains.Client(uint64(deposit.DestinationChainID))
	if err != nil {
		return decimal.Zero, err
	}
	nativePrice, err := p.priceOracle.HistoricPrice(ctx, client.Cfg.NativeSymbol, priceSnapshotDate(*deposit.DepositDate))
	if err != nil {
		return decimal.Zero, err
	}
	unitPrice, err := decimal.NewFromString(nativePrice.USD)
	if err != nil {
		return decimal.Zero, queue.Permanent(err)
	}

	return gasWei.Shift(-18).Mul(unitPrice), nil
}
