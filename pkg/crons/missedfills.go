package crons

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/chain"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/events"
	"github.com/relaymesh/bridge-indexer/pkg/pipeline"
)

// fillStatusFilled is the spoke pool's terminal fill status enum value.
const fillStatusFilled = 2

const probeBatchSize = 100

// FillQuerier is the slice of the scanner the sweep needs: a targeted log
// search on one chain.
type FillQuerier interface {
	Querier(chainID uint64) *events.Querier
}

// MissedFillSweep probes the destination chain's fill status for deposits
// stuck in pending past the grace period. The scanner can miss a fill when a
// provider drops logs; the on-chain status mapping is the ground truth.
type MissedFillSweep struct {
	cfg         *config.Config
	deposits    *db.DepositStore
	cache       *db.CacheStore
	chains      *chain.Registry
	deployments *contracts.DeploymentRegistry
	queriers    FillQuerier
	pipe        *pipeline.Pipeline
	logger      *zap.Logger
}

func NewMissedFillSweep(cfg *config.Config, deposits *db.DepositStore, cache *db.CacheStore, chains *chain.Registry, deployments *contracts.DeploymentRegistry, queriers FillQuerier, pipe *pipeline.Pipeline, logger *zap.Logger) *MissedFillSweep {
	return &MissedFillSweep{
		cfg:         cfg,
		deposits:    deposits,
		cache:       cache,
		chains:      chains,
		deployments: deployments,
		queriers:    queriers,
		pipe:        pipe,
		logger:      logger.Named("missed-fill-sweep"),
	}
}

// Run performs one sweep pass.
func (m *MissedFillSweep) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-m.cfg.Pipeline.MissedFillGrace)
	candidates, err := m.deposits.ListPendingForFillProbe(ctx, cutoff, probeBatchSize)
	if err != nil {
		return err
	}

	for _, deposit := range candidates {
		if err := m.probe(ctx, deposit); err != nil {
			m.logger.Warn("fill probe failed",
				zap.Int64("deposit_pk", deposit.ID),
				zap.Int64("deposit_id", deposit.DepositID),
				zap.Int64("origin_chain_id", deposit.OriginChainID),
				zap.Error(err))
		}
	}
	return nil
}

func (m *MissedFillSweep) probe(ctx context.Context, deposit *dao.DepositDao) error {
	destChainID := uint64(deposit.DestinationChainID)

	relayData, err := relayDataFromRow(deposit)
	if err != nil {
		return err
	}
	relayHash, err := contracts.V3RelayHash(relayData, destChainID)
	if err != nil {
		return err
	}

	spokePool, err := m.destSpokePool(destChainID)
	if err != nil {
		return err
	}
	status, err := m.chains.FillStatus(ctx, destChainID, spokePool, relayHash)
	if err != nil {
		return err
	}
	if status.Int64() != fillStatusFilled {
		return nil
	}

	// The status mapping says filled but no fill event reached us. Search the
	// window the fill must have landed in and re-feed it through ingestion.
	from, to, err := m.fillWindow(ctx, deposit)
	if err != nil {
		return err
	}

	event, err := m.findFill(ctx, destChainID, deposit, from, to)
	if err != nil {
		return err
	}
	if event == nil {
		event = synthesizeFill(deposit, to)
		m.logger.Warn("fill event not found in window, synthesizing from row state",
			zap.Int64("deposit_pk", deposit.ID),
			zap.Uint64("from_block", from),
			zap.Uint64("to_block", to))
	}

	if err := m.pipe.IngestFills(ctx, []*contracts.FillEvent{event}); err != nil {
		return err
	}
	metrics.MissedFills.WithLabelValues(fmt.Sprint(destChainID)).Inc()
	return nil
}

func relayDataFromRow(deposit *dao.DepositDao) (contracts.V3RelayData, error) {
	if deposit.OutputTokenAddress == nil || deposit.OutputAmount == nil || deposit.FillDeadline == nil {
		return contracts.V3RelayData{}, fmt.Errorf("deposit %d missing v3 relay fields", deposit.ID)
	}
	inputAmount, ok := new(big.Int).SetString(deposit.Amount, 10)
	if !ok {
		return contracts.V3RelayData{}, fmt.Errorf("invalid amount %q", deposit.Amount)
	}
	outputAmount, ok := new(big.Int).SetString(*deposit.OutputAmount, 10)
	if !ok {
		return contracts.V3RelayData{}, fmt.Errorf("invalid output amount %q", *deposit.OutputAmount)
	}

	data := contracts.V3RelayData{
		Depositor:     common.HexToAddress(deposit.DepositorAddr),
		Recipient:     common.HexToAddress(deposit.RecipientAddr),
		InputToken:    common.HexToAddress(deposit.TokenAddr),
		OutputToken:   common.HexToAddress(*deposit.OutputTokenAddress),
		InputAmount:   inputAmount,
		OutputAmount:  outputAmount,
		OriginChainID: big.NewInt(deposit.OriginChainID),
		DepositID:     uint32(deposit.DepositID),
		FillDeadline:  uint32(deposit.FillDeadline.Unix()),
		Message:       deposit.Message,
	}
	if deposit.ExclusiveRelayer != nil {
		data.ExclusiveRelayer = common.HexToAddress(*deposit.ExclusiveRelayer)
	}
	if deposit.ExclusivityDeadline != nil {
		data.ExclusivityDeadline = uint32(deposit.ExclusivityDeadline.Unix())
	}
	return data, nil
}

func (m *MissedFillSweep) destSpokePool(chainID uint64) (common.Address, error) {
	deployments := m.deployments.Deployments(chainID)
	if len(deployments) == 0 {
		return common.Address{}, fmt.Errorf("no deployments for chain %d", chainID)
	}
	return deployments[len(deployments)-1].Address, nil
}

// fillWindow bounds the log search by the cached blocks nearest the deposit
// date (below) and the fill deadline (above).
func (m *MissedFillSweep) fillWindow(ctx context.Context, deposit *dao.DepositDao) (uint64, uint64, error) {
	before, _, err := m.cache.NearestBlocks(ctx, deposit.DestinationChainID, *deposit.DepositDate)
	if err != nil {
		return 0, 0, err
	}
	_, after, err := m.cache.NearestBlocks(ctx, deposit.DestinationChainID, *deposit.FillDeadline)
	if err != nil {
		return 0, 0, err
	}

	var from uint64
	if before != nil {
		from = uint64(before.BlockNumber)
	} else {
		destDeployments := m.deployments.Deployments(uint64(deposit.DestinationChainID))
		if len(destDeployments) == 0 {
			return 0, 0, fmt.Errorf("no deployments for chain %d", deposit.DestinationChainID)
		}
		from = destDeployments[len(destDeployments)-1].StartBlock
	}

	var to uint64
	if after != nil {
		to = uint64(after.BlockNumber)
	} else {
		latest, err := m.chains.LatestBlock(ctx, uint64(deposit.DestinationChainID))
		if err != nil {
			return 0, 0, err
		}
		to = latest
	}
	if from > to {
		from, to = to, from
	}
	return from, to, nil
}

func (m *MissedFillSweep) findFill(ctx context.Context, chainID uint64, deposit *dao.DepositDao, from, to uint64) (*contracts.FillEvent, error) {
	querier := m.queriers.Querier(chainID)
	if querier == nil {
		return nil, fmt.Errorf("no querier for chain %d", chainID)
	}
	fills, err := querier.Fills(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, fill := range fills {
		if fill.DepositID == uint64(deposit.DepositID) && fill.OriginChainID == uint64(deposit.OriginChainID) {
			return fill, nil
		}
	}
	return nil, nil
}

// synthesizeFill builds a minimal fill event from row state when the logs are
// no longer retrievable. The output amount stands in for the executed amount;
// the fill date stage resolves the block timestamp as usual.
func synthesizeFill(deposit *dao.DepositDao, blockNumber uint64) *contracts.FillEvent {
	outputAmount, _ := new(big.Int).SetString(*deposit.OutputAmount, 10)
	return &contracts.FillEvent{
		Shape:              contracts.FillShapeV3,
		DepositID:          uint64(deposit.DepositID),
		OriginChainID:      uint64(deposit.OriginChainID),
		DestinationChainID: uint64(deposit.DestinationChainID),
		Depositor:          common.HexToAddress(deposit.DepositorAddr),
		Recipient:          common.HexToAddress(deposit.RecipientAddr),
		OutputAmount:       outputAmount,
		RelayExecutionInfo: &contracts.RelayExecutionInfo{
			UpdatedOutputAmount: outputAmount,
		},
		Raw: types.Log{
			TxHash:      common.Hash{},
			BlockNumber: blockNumber,
		},
	}
}
