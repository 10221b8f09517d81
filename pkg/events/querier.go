package events

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/bridge-indexer/pkg/contracts"
)

// LogFilterer is the subset of the RPC client the querier needs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Querier fetches spoke pool events for one chain. It routes a block window
// across deployments and shrinks its working range size when the provider
// rejects a query as too large. The shrink is monotonic within the querier's
// lifetime: once a provider refuses a range, larger ranges are never tried
// again.
type Querier struct {
	client   LogFilterer
	registry *contracts.DeploymentRegistry
	chainID  uint64
	logger   *zap.Logger

	// Working range size shared across concurrent sub-queries, updated by
	// compare-and-swap so parallel shrinks cannot re-grow it.
	rangeSize atomic.Uint64
}

// NewQuerier creates a querier for one chain. maxRange is the initial block
// window size offered to the provider.
func NewQuerier(client LogFilterer, registry *contracts.DeploymentRegistry, chainID, maxRange uint64, logger *zap.Logger) *Querier {
	if maxRange == 0 {
		maxRange = 10000
	}
	q := &Querier{
		client:   client,
		registry: registry,
		chainID:  chainID,
		logger:   logger,
	}
	q.rangeSize.Store(maxRange)
	return q
}

// rangeErrorFragments match the provider error classes that mean the query
// window or response was too large. Providers phrase this differently.
var rangeErrorFragments = []string{
	"block range",
	"query returned more than",
	"response size",
	"too large",
	"limit exceeded",
	"request entity too large",
	"query timeout",
}

func isRangeError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range rangeErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// shrink halves the working range size, but never below one block and never
// above what another goroutine already shrank it to. seen is the size the
// caller observed when its query failed.
func (q *Querier) shrink(seen uint64) uint64 {
	for {
		current := q.rangeSize.Load()
		if current < seen {
			// A concurrent query already shrank past our snapshot.
			return current
		}
		next := current / 2
		if next == 0 {
			next = 1
		}
		if q.rangeSize.CompareAndSwap(current, next) {
			q.logger.Warn("provider rejected block range, shrinking",
				zap.Uint64("chain_id", q.chainID),
				zap.Uint64("from_size", current),
				zap.Uint64("to_size", next))
			return next
		}
	}
}

// filterLogs queries [from, to], splitting into parallel sub-intervals of the
// current working range size and halving that size on provider range errors.
func (q *Querier) filterLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, from, to uint64) ([]types.Log, error) {
	for {
		snapshot := q.rangeSize.Load()
		if to-from+1 <= snapshot {
			logs, err := q.client.FilterLogs(ctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(from),
				ToBlock:   new(big.Int).SetUint64(to),
				Addresses: addresses,
				Topics:    topics,
			})
			if err == nil {
				return logs, nil
			}
			if !isRangeError(err) {
				return nil, fmt.Errorf("failed to filter logs on chain %d [%d, %d]: %w", q.chainID, from, to, err)
			}
			if snapshot == 1 {
				return nil, fmt.Errorf("provider rejected single-block query on chain %d at %d: %w", q.chainID, from, err)
			}
			q.shrink(snapshot)
			continue
		}

		// Window exceeds the working size: fan out over sub-intervals and
		// merge. Each sub-query may shrink the shared size further.
		var chunks [][2]uint64
		for start := from; start <= to; start += snapshot {
			end := start + snapshot - 1
			if end > to {
				end = to
			}
			chunks = append(chunks, [2]uint64{start, end})
		}

		results := make([][]types.Log, len(chunks))
		g, gctx := errgroup.WithContext(ctx)
		for i, chunk := range chunks {
			g.Go(func() error {
				logs, err := q.filterLogs(gctx, addresses, topics, chunk[0], chunk[1])
				if err != nil {
					return err
				}
				results[i] = logs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var merged []types.Log
		for _, logs := range results {
			merged = append(merged, logs...)
		}
		return merged, nil
	}
}

func sortLogs(logs []types.Log) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}

// Deposits fetches deposit events in [from, to], together with the
// swap-before-bridge events v3 pools emit in the same transactions. Both
// lists are ordered by block number then log index so swap pairing can
// consume them in emission order. Returns empty results when the window
// precedes the first deployment.
func (q *Querier) Deposits(ctx context.Context, from, to uint64) ([]*contracts.DepositEvent, []*contracts.SwapEvent, error) {
	ranges := SplitBlockRanges(q.registry.Deployments(q.chainID), from, to)

	var deposits []*contracts.DepositEvent
	var swaps []*contracts.SwapEvent
	for _, r := range ranges {
		topics := []common.Hash{contracts.DepositEventID(r.Deployment.Version)}
		if r.Deployment.Version == contracts.VersionV3 {
			topics = append(topics, contracts.SwapEventID())
		}
		logs, err := q.filterLogs(ctx, []common.Address{r.Deployment.Address}, [][]common.Hash{topics}, r.From, r.To)
		if err != nil {
			return nil, nil, err
		}
		sortLogs(logs)

		for _, log := range logs {
			switch log.Topics[0] {
			case contracts.SwapEventID():
				swap, err := contracts.ParseSwap(log)
				if err != nil {
					return nil, nil, err
				}
				swaps = append(swaps, swap)
			default:
				deposit, err := contracts.ParseDeposit(r.Deployment.Version, q.chainID, log)
				if err != nil {
					return nil, nil, err
				}
				deposits = append(deposits, deposit)
			}
		}
	}
	return deposits, swaps, nil
}

// Fills fetches relay-fill events in [from, to] on this chain as destination.
func (q *Querier) Fills(ctx context.Context, from, to uint64) ([]*contracts.FillEvent, error) {
	ranges := SplitBlockRanges(q.registry.Deployments(q.chainID), from, to)

	var fills []*contracts.FillEvent
	for _, r := range ranges {
		topics := [][]common.Hash{{contracts.FillEventID(r.Deployment.Version)}}
		logs, err := q.filterLogs(ctx, []common.Address{r.Deployment.Address}, topics, r.From, r.To)
		if err != nil {
			return nil, err
		}
		sortLogs(logs)

		for _, log := range logs {
			fill, err := contracts.ParseFill(r.Deployment.Version, q.chainID, log)
			if err != nil {
				return nil, err
			}
			fills = append(fills, fill)
		}
	}
	return fills, nil
}

// SpeedUps fetches relayer-fee speed-up events in [from, to].
func (q *Querier) SpeedUps(ctx context.Context, from, to uint64) ([]*contracts.SpeedUpEvent, error) {
	ranges := SplitBlockRanges(q.registry.Deployments(q.chainID), from, to)

	var speedUps []*contracts.SpeedUpEvent
	for _, r := range ranges {
		topics := [][]common.Hash{{contracts.SpeedUpEventID(r.Deployment.Version)}}
		logs, err := q.filterLogs(ctx, []common.Address{r.Deployment.Address}, topics, r.From, r.To)
		if err != nil {
			return nil, err
		}
		sortLogs(logs)

		for _, log := range logs {
			speedUp, err := contracts.ParseSpeedUp(r.Deployment.Version, log)
			if err != nil {
				return nil, err
			}
			speedUps = append(speedUps, speedUp)
		}
	}
	return speedUps, nil
}

// Claims fetches rewards-claimed events from the distributor contract. The
// distributor has a single deployment, so no version routing applies.
func (q *Querier) Claims(ctx context.Context, distributor common.Address, from, to uint64) ([]*contracts.ClaimEvent, error) {
	topics := [][]common.Hash{{contracts.ClaimEventID()}}
	logs, err := q.filterLogs(ctx, []common.Address{distributor}, topics, from, to)
	if err != nil {
		return nil, err
	}
	sortLogs(logs)

	claims := make([]*contracts.ClaimEvent, 0, len(logs))
	for _, log := range logs {
		claim, err := contracts.ParseClaim(log)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, nil
}
