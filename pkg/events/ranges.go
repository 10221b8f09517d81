// Package events fetches and decodes spoke pool logs across contract
// deployments. It owns the routing of a block window to the deployment
// active at each block and the adaptive shrinking of query ranges when a
// provider rejects a window as too large.
package events

import (
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
)

// BlockRange is a contiguous window of blocks served by a single deployment.
type BlockRange struct {
	From       uint64
	To         uint64
	Deployment contracts.Deployment
}

// SplitBlockRanges partitions [from, to] into contiguous sub-ranges, each
// assigned to the deployment whose start block is the latest one at or
// before the sub-range start. Deployments must be sorted ascending by start
// block. Returns nil when the window starts before the first deployment,
// since no contract can serve those blocks.
func SplitBlockRanges(deployments []contracts.Deployment, from, to uint64) []BlockRange {
	if len(deployments) == 0 || from > to {
		return nil
	}
	if from < deployments[0].StartBlock {
		return nil
	}

	var ranges []BlockRange
	for i, dep := range deployments {
		start := dep.StartBlock
		if start < from {
			start = from
		}
		if start > to {
			continue
		}
		end := to
		if i+1 < len(deployments) && deployments[i+1].StartBlock-1 < end {
			end = deployments[i+1].StartBlock - 1
		}
		if end < start {
			continue
		}
		ranges = append(ranges, BlockRange{From: start, To: end, Deployment: dep})
	}
	return ranges
}
