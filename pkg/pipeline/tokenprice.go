package pipeline

import (
	"context"
	"encoding/json"
	"time"
)

// handleTokenPrice resolves the token's USD price as of the day before the
// deposit. The one-day offset keeps same-day volatility out of fee math.
func (p *Pipeline) handleTokenPrice(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.GetWithRelations(ctx, task.DepositPK)
	if err != nil {
		return err
	}
	if deposit.DepositDate == nil {
		return Precondition(deposit.ID, "deposit_date")
	}
	if deposit.Token == nil {
		return Precondition(deposit.ID, "token relation")
	}

	date := priceSnapshotDate(*deposit.DepositDate)

	if deposit.PriceID == nil {
		price, err := p.priceOracle.HistoricPrice(ctx, deposit.Token.Symbol, date)
		if err != nil {
			return err
		}
		if err := p.deposits.SetPriceID(ctx, deposit.ID, price.ID); err != nil {
			return err
		}
	}

	if deposit.OutputToken != nil && deposit.OutputPriceID == nil {
		price, err := p.priceOracle.HistoricPrice(ctx, deposit.OutputToken.Symbol, date)
		if err != nil {
			return err
		}
		if err := p.deposits.SetOutputPriceID(ctx, deposit.ID, price.ID); err != nil {
			return err
		}
	}

	return p.fanOut(ctx, StageTokenPrice, task)
}

func priceSnapshotDate(depositDate time.Time) time.Time {
	return depositDate.UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
}
