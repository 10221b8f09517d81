package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// handleSpeedUp records a relayer-fee update request on its deposit,
// newest first.
func (p *Pipeline) handleSpeedUp(ctx context.Context, payload json.RawMessage) error {
	msg, err := decode[SpeedUpMessage](payload)
	if err != nil {
		return err
	}

	deposit, err := p.deposits.GetByDepositID(ctx, int64(msg.OriginChainID), int64(msg.DepositID))
	if errors.Is(err, db.ErrDepositNotFound) {
		return Precondition(0, fmt.Sprintf("deposit %d on chain %d", msg.DepositID, msg.OriginChainID))
	}
	if err != nil {
		return err
	}

	return p.deposits.PrependSpeedUp(ctx, deposit.ID, dao.SpeedUp{
		Hash:                msg.TxHash,
		BlockNumber:         int64(msg.BlockNumber),
		NewRelayerFeePct:    msg.NewRelayerFeePct,
		UpdatedOutputAmount: msg.UpdatedOutputAmount,
	})
}
