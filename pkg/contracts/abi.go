package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event-only ABI fragments for the three spoke pool generations plus the
// rewards distributor. Function fragments are limited to what the indexer
// actually calls.

const spokePoolV2ABIJSON = `[
{"type":"event","name":"FundsDeposited","inputs":[
  {"name":"amount","type":"uint256","indexed":false},
  {"name":"originChainId","type":"uint256","indexed":false},
  {"name":"destinationChainId","type":"uint256","indexed":false},
  {"name":"relayerFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"quoteTimestamp","type":"uint32","indexed":false},
  {"name":"originToken","type":"address","indexed":true},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"depositor","type":"address","indexed":true}]},
{"type":"event","name":"FilledRelay","inputs":[
  {"name":"amount","type":"uint256","indexed":false},
  {"name":"totalFilledAmount","type":"uint256","indexed":false},
  {"name":"fillAmount","type":"uint256","indexed":false},
  {"name":"repaymentChainId","type":"uint256","indexed":false},
  {"name":"originChainId","type":"uint256","indexed":true},
  {"name":"destinationChainId","type":"uint256","indexed":false},
  {"name":"relayerFeePct","type":"int64","indexed":false},
  {"name":"appliedRelayerFeePct","type":"int64","indexed":false},
  {"name":"realizedLpFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"destinationToken","type":"address","indexed":false},
  {"name":"relayer","type":"address","indexed":true},
  {"name":"depositor","type":"address","indexed":false},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"isSlowRelay","type":"bool","indexed":false}]},
{"type":"event","name":"RequestedSpeedUpDeposit","inputs":[
  {"name":"newRelayerFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"depositor","type":"address","indexed":true},
  {"name":"depositorSignature","type":"bytes","indexed":false}]}
]`

const spokePoolV25ABIJSON = `[
{"type":"event","name":"FundsDeposited","inputs":[
  {"name":"amount","type":"uint256","indexed":false},
  {"name":"originChainId","type":"uint256","indexed":false},
  {"name":"destinationChainId","type":"uint256","indexed":false},
  {"name":"relayerFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"quoteTimestamp","type":"uint32","indexed":false},
  {"name":"originToken","type":"address","indexed":true},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"depositor","type":"address","indexed":true},
  {"name":"message","type":"bytes","indexed":false}]},
{"type":"event","name":"FilledRelay","inputs":[
  {"name":"amount","type":"uint256","indexed":false},
  {"name":"totalFilledAmount","type":"uint256","indexed":false},
  {"name":"fillAmount","type":"uint256","indexed":false},
  {"name":"repaymentChainId","type":"uint256","indexed":false},
  {"name":"originChainId","type":"uint256","indexed":true},
  {"name":"destinationChainId","type":"uint256","indexed":false},
  {"name":"relayerFeePct","type":"int64","indexed":false},
  {"name":"realizedLpFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"destinationToken","type":"address","indexed":false},
  {"name":"relayer","type":"address","indexed":true},
  {"name":"depositor","type":"address","indexed":false},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"message","type":"bytes","indexed":false},
  {"name":"updatableRelayData","type":"tuple","indexed":false,"components":[
    {"name":"recipient","type":"address"},
    {"name":"message","type":"bytes"},
    {"name":"relayerFeePct","type":"int64"},
    {"name":"isSlowRelay","type":"bool"},
    {"name":"payoutAdjustmentPct","type":"int256"}]}]},
{"type":"event","name":"RequestedSpeedUpDeposit","inputs":[
  {"name":"newRelayerFeePct","type":"int64","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"depositor","type":"address","indexed":true},
  {"name":"depositorSignature","type":"bytes","indexed":false}]}
]`

const spokePoolV3ABIJSON = `[
{"type":"event","name":"V3FundsDeposited","inputs":[
  {"name":"inputToken","type":"address","indexed":false},
  {"name":"outputToken","type":"address","indexed":false},
  {"name":"inputAmount","type":"uint256","indexed":false},
  {"name":"outputAmount","type":"uint256","indexed":false},
  {"name":"destinationChainId","type":"uint256","indexed":true},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"quoteTimestamp","type":"uint32","indexed":false},
  {"name":"fillDeadline","type":"uint32","indexed":false},
  {"name":"exclusivityDeadline","type":"uint32","indexed":false},
  {"name":"depositor","type":"address","indexed":true},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"exclusiveRelayer","type":"address","indexed":false},
  {"name":"message","type":"bytes","indexed":false}]},
{"type":"event","name":"FilledV3Relay","inputs":[
  {"name":"inputToken","type":"address","indexed":false},
  {"name":"outputToken","type":"address","indexed":false},
  {"name":"inputAmount","type":"uint256","indexed":false},
  {"name":"outputAmount","type":"uint256","indexed":false},
  {"name":"repaymentChainId","type":"uint256","indexed":false},
  {"name":"originChainId","type":"uint256","indexed":true},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"fillDeadline","type":"uint32","indexed":false},
  {"name":"exclusivityDeadline","type":"uint32","indexed":false},
  {"name":"exclusiveRelayer","type":"address","indexed":false},
  {"name":"relayer","type":"address","indexed":true},
  {"name":"depositor","type":"address","indexed":false},
  {"name":"recipient","type":"address","indexed":false},
  {"name":"message","type":"bytes","indexed":false},
  {"name":"relayExecutionInfo","type":"tuple","indexed":false,"components":[
    {"name":"updatedRecipient","type":"address"},
    {"name":"updatedMessage","type":"bytes"},
    {"name":"updatedOutputAmount","type":"uint256"},
    {"name":"fillType","type":"uint8"}]}]},
{"type":"event","name":"SwapBeforeBridge","inputs":[
  {"name":"exchange","type":"address","indexed":false},
  {"name":"swapToken","type":"address","indexed":true},
  {"name":"acrossInputToken","type":"address","indexed":true},
  {"name":"swapTokenAmount","type":"uint256","indexed":false},
  {"name":"acrossInputAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"RequestedSpeedUpV3Deposit","inputs":[
  {"name":"updatedOutputAmount","type":"uint256","indexed":false},
  {"name":"depositId","type":"uint32","indexed":true},
  {"name":"depositor","type":"address","indexed":true},
  {"name":"updatedRecipient","type":"address","indexed":false},
  {"name":"updatedMessage","type":"bytes","indexed":false},
  {"name":"depositorSignature","type":"bytes","indexed":false}]},
{"type":"function","name":"fillStatuses","stateMutability":"view","inputs":[
  {"name":"relayHash","type":"bytes32"}],"outputs":[
  {"name":"status","type":"uint256"}]}
]`

const distributorABIJSON = `[
{"type":"event","name":"RewardsClaimed","inputs":[
  {"name":"windowIndex","type":"uint256","indexed":true},
  {"name":"account","type":"address","indexed":true},
  {"name":"accountIndex","type":"uint256","indexed":false},
  {"name":"amount","type":"uint256","indexed":false},
  {"name":"rewardToken","type":"address","indexed":false}]}
]`

const erc20ABIJSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	spokePoolV2ABI  = mustParseABI(spokePoolV2ABIJSON)
	spokePoolV25ABI = mustParseABI(spokePoolV25ABIJSON)
	spokePoolV3ABI  = mustParseABI(spokePoolV3ABIJSON)
	distributorABI  = mustParseABI(distributorABIJSON)
	erc20ABI        = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// SpokePoolABI returns the parsed ABI for a contract version.
func SpokePoolABI(version Version) abi.ABI {
	switch version {
	case VersionV2:
		return spokePoolV2ABI
	case VersionV25:
		return spokePoolV25ABI
	default:
		return spokePoolV3ABI
	}
}

// DistributorABI returns the parsed rewards distributor ABI.
func DistributorABI() abi.ABI {
	return distributorABI
}

// ERC20ABI returns the parsed minimal ERC20 metadata ABI.
func ERC20ABI() abi.ABI {
	return erc20ABI
}
