// Package pipeline implements the enrichment cascade that turns raw contract
// events into fully derived deposit rows. Each stage is an independent task
// queue consumer: it reads the row fresh, checks its prerequisites, persists
// only the fields it owns and enqueues the stages it unblocks.
package pipeline

// Stage names double as queue names.
const (
	StageBlockDate      = "block-date"
	StageTokenDetails   = "token-details"
	StageTokenPrice     = "token-price"
	StageReferral       = "referral"
	StageStickyReferral = "sticky-referral"
	StageFillV2         = "fill-v2"
	StageFillV25        = "fill-v2-5"
	StageFillV3         = "fill-v3"
	StageFilledDate     = "filled-date"
	StageFeeBreakdown   = "fee-breakdown"
	StageCappedFee      = "capped-fee"
	StageSuggestedFee   = "suggested-fee"
	StageSpeedUp        = "speed-up"
	StageOpRebate       = "op-rebate-reward"
	StageReferralReward = "referral-reward"
	StageClaim          = "claim"
)

// Topology is the directed graph of stage fan-out: completing a stage
// enqueues each listed downstream stage. Kept as data so the cascade shape
// is testable apart from stage logic.
var Topology = map[string][]string{
	StageBlockDate:      {StageTokenDetails, StageReferral, StageSuggestedFee},
	StageTokenDetails:   {StageTokenPrice},
	StageTokenPrice:     {},
	StageReferral:       {StageStickyReferral},
	StageStickyReferral: {},
	StageFillV2:         {StageFilledDate},
	StageFillV25:        {StageFilledDate, StageFeeBreakdown},
	StageFillV3:         {StageFilledDate, StageFeeBreakdown, StageCappedFee},
	StageFeeBreakdown:   {StageOpRebate, StageReferralReward},
	StageCappedFee:      {},
	StageFilledDate:     {},
	StageSuggestedFee:   {},
	StageSpeedUp:        {},
	StageOpRebate:       {},
	StageReferralReward: {},
	StageClaim:          {},
}

// DefaultConcurrency is the per-stage worker count when the deployment does
// not override it. Order-sensitive stages are pinned to one worker: sticky
// propagation and claim consumption rewrite attribution across rows and must
// not interleave per depositor.
var DefaultConcurrency = map[string]int{
	StageBlockDate:      50,
	StageTokenDetails:   10,
	StageTokenPrice:     10,
	StageReferral:       10,
	StageStickyReferral: 1,
	StageFillV2:         5,
	StageFillV25:        5,
	StageFillV3:         5,
	StageFilledDate:     10,
	StageFeeBreakdown:   5,
	StageCappedFee:      5,
	StageSuggestedFee:   10,
	StageSpeedUp:        5,
	StageOpRebate:       5,
	StageReferralReward: 5,
	StageClaim:          1,
}
