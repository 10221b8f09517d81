package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FillShape identifies which fill-event ABI shape a decoded fill came from.
// The shape decides which downstream fee math applies, so it is computed once
// here and never re-derived from field presence.
type FillShape string

const (
	FillShapeV2  FillShape = "v2"   // carries appliedRelayerFeePct
	FillShapeV25 FillShape = "v2.5" // carries updatableRelayData
	FillShapeV3  FillShape = "v3"   // carries relayExecutionInfo
)

// DepositEvent is the decoded form of a FundsDeposited-class event across all
// three contract generations. Version is the discriminant; pointer fields are
// nil for generations that do not emit them.
type DepositEvent struct {
	Version Version

	DepositID          uint64
	OriginChainID      uint64
	DestinationChainID uint64
	Depositor          common.Address
	Recipient          common.Address
	InputToken         common.Address
	Amount             *big.Int
	QuoteTimestamp     uint32
	Message            []byte

	// V2 / V2.5 only
	RelayerFeePct *big.Int

	// V3 only
	OutputToken         *common.Address
	OutputAmount        *big.Int
	FillDeadline        *uint32
	ExclusivityDeadline *uint32
	ExclusiveRelayer    *common.Address

	// Populated by same-transaction swap pairing during ingestion.
	Swap *SwapEvent

	Raw types.Log
}

// SwapEvent is a decoded SwapBeforeBridge event. It precedes a V3 deposit in
// the same transaction when the depositor swapped into the bridged token.
type SwapEvent struct {
	Exchange          common.Address
	SwapToken         common.Address
	AcrossInputToken  common.Address
	SwapTokenAmount   *big.Int
	AcrossInputAmount *big.Int

	Raw types.Log
}

// FillEvent is the decoded form of a fill event in any of the three shapes.
type FillEvent struct {
	Shape FillShape

	DepositID          uint64
	OriginChainID      uint64
	DestinationChainID uint64
	Relayer            common.Address
	Depositor          common.Address
	Recipient          common.Address

	// V2 / V2.5
	Amount            *big.Int
	TotalFilledAmount *big.Int
	FillAmount        *big.Int
	RealizedLpFeePct  *big.Int
	DestinationToken  common.Address

	// V2 only
	AppliedRelayerFeePct *big.Int

	// V2.5 only
	UpdatableRelayData *UpdatableRelayData

	// V3 only
	InputToken         common.Address
	OutputToken        common.Address
	InputAmount        *big.Int
	OutputAmount       *big.Int
	RelayExecutionInfo *RelayExecutionInfo

	Raw types.Log
}

// UpdatableRelayData mirrors the V2.5 fill tuple carrying any speed-up
// overrides applied by the relayer.
type UpdatableRelayData struct {
	Recipient           common.Address
	Message             []byte
	RelayerFeePct       *big.Int
	IsSlowRelay         bool
	PayoutAdjustmentPct *big.Int
}

// RelayExecutionInfo mirrors the V3 fill tuple. FillType distinguishes fast
// fills, replaced-deposit fills and slow fills.
type RelayExecutionInfo struct {
	UpdatedRecipient    common.Address
	UpdatedMessage      []byte
	UpdatedOutputAmount *big.Int
	FillType            uint8
}

// SpeedUpEvent is a decoded speed-up request in either generation's shape.
type SpeedUpEvent struct {
	Version Version

	DepositID uint64
	Depositor common.Address
	Signature []byte

	// V2 / V2.5
	NewRelayerFeePct *big.Int

	// V3
	UpdatedOutputAmount *big.Int
	UpdatedRecipient    *common.Address

	Raw types.Log
}

// ClaimEvent is a decoded RewardsClaimed event from the distributor.
type ClaimEvent struct {
	WindowIndex *big.Int
	Account     common.Address
	Amount      *big.Int
	RewardToken common.Address

	Raw types.Log
}
