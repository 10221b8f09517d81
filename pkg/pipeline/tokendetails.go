package pipeline

import (
	"context"
	"encoding/json"
)

// handleTokenDetails resolves the input token (and for v3 the output token)
// to cached token rows.
func (p *Pipeline) handleTokenDetails(ctx context.Context, payload json.RawMessage) error {
	task, err := decode[DepositTask](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.Get(ctx, task.DepositPK)
	if err != nil {
		return err
	}

	if deposit.TokenID == nil {
		token, err := p.chains.GetToken(ctx, uint64(deposit.OriginChainID), deposit.TokenAddr)
		if err != nil {
			return err
		}
		if err := p.deposits.SetTokenID(ctx, deposit.ID, token.ID); err != nil {
			return err
		}
	}

	if deposit.OutputTokenAddress != nil && deposit.OutputTokenID == nil {
		output, err := p.chains.GetToken(ctx, uint64(deposit.DestinationChainID), *deposit.OutputTokenAddress)
		if err != nil {
			return err
		}
		if err := p.deposits.SetOutputTokenID(ctx, deposit.ID, output.ID); err != nil {
			return err
		}
	}

	return p.fanOut(ctx, StageTokenDetails, task)
}
