package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// unpacker wraps a bound contract with no backend, used purely for log
// decoding.
func unpacker(parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(common.Address{}, parsed, nil, nil, nil)
}

var (
	v2Unpacker   = unpacker(spokePoolV2ABI)
	v25Unpacker  = unpacker(spokePoolV25ABI)
	v3Unpacker   = unpacker(spokePoolV3ABI)
	distUnpacker = unpacker(distributorABI)
)

// DepositEventID returns the topic hash of the deposit event for a version.
func DepositEventID(version Version) common.Hash {
	switch version {
	case VersionV2:
		return spokePoolV2ABI.Events["FundsDeposited"].ID
	case VersionV25:
		return spokePoolV25ABI.Events["FundsDeposited"].ID
	default:
		return spokePoolV3ABI.Events["V3FundsDeposited"].ID
	}
}

// FillEventID returns the topic hash of the fill event for a version.
func FillEventID(version Version) common.Hash {
	switch version {
	case VersionV2:
		return spokePoolV2ABI.Events["FilledRelay"].ID
	case VersionV25:
		return spokePoolV25ABI.Events["FilledRelay"].ID
	default:
		return spokePoolV3ABI.Events["FilledV3Relay"].ID
	}
}

// SpeedUpEventID returns the topic hash of the speed-up event for a version.
func SpeedUpEventID(version Version) common.Hash {
	switch version {
	case VersionV2:
		return spokePoolV2ABI.Events["RequestedSpeedUpDeposit"].ID
	case VersionV25:
		return spokePoolV25ABI.Events["RequestedSpeedUpDeposit"].ID
	default:
		return spokePoolV3ABI.Events["RequestedSpeedUpV3Deposit"].ID
	}
}

// SwapEventID returns the topic hash of the V3 SwapBeforeBridge event.
func SwapEventID() common.Hash {
	return spokePoolV3ABI.Events["SwapBeforeBridge"].ID
}

// ClaimEventID returns the topic hash of the distributor RewardsClaimed event.
func ClaimEventID() common.Hash {
	return distributorABI.Events["RewardsClaimed"].ID
}

type rawDepositV2 struct {
	Amount             *big.Int
	OriginChainId      *big.Int
	DestinationChainId *big.Int
	RelayerFeePct      int64
	DepositId          uint32
	QuoteTimestamp     uint32
	OriginToken        common.Address
	Recipient          common.Address
	Depositor          common.Address
	Message            []byte
}

type rawDepositV3 struct {
	InputToken          common.Address
	OutputToken         common.Address
	InputAmount         *big.Int
	OutputAmount        *big.Int
	DestinationChainId  *big.Int
	DepositId           uint32
	QuoteTimestamp      uint32
	FillDeadline        uint32
	ExclusivityDeadline uint32
	Depositor           common.Address
	Recipient           common.Address
	ExclusiveRelayer    common.Address
	Message             []byte
}

// ParseDeposit decodes a deposit log for the given contract version into the
// shared DepositEvent shape. originChainID is the chain the log was read from;
// V3 deposits do not carry the origin chain in the event body.
func ParseDeposit(version Version, originChainID uint64, log types.Log) (*DepositEvent, error) {
	switch version {
	case VersionV2, VersionV25:
		var raw rawDepositV2
		up := v2Unpacker
		if version == VersionV25 {
			up = v25Unpacker
		}
		if err := up.UnpackLog(&raw, "FundsDeposited", log); err != nil {
			return nil, fmt.Errorf("failed to decode %s FundsDeposited: %w", version, err)
		}
		return &DepositEvent{
			Version:            version,
			DepositID:          uint64(raw.DepositId),
			OriginChainID:      raw.OriginChainId.Uint64(),
			DestinationChainID: raw.DestinationChainId.Uint64(),
			Depositor:          raw.Depositor,
			Recipient:          raw.Recipient,
			InputToken:         raw.OriginToken,
			Amount:             raw.Amount,
			QuoteTimestamp:     raw.QuoteTimestamp,
			Message:            raw.Message,
			RelayerFeePct:      big.NewInt(raw.RelayerFeePct),
			Raw:                log,
		}, nil

	case VersionV3:
		var raw rawDepositV3
		if err := v3Unpacker.UnpackLog(&raw, "V3FundsDeposited", log); err != nil {
			return nil, fmt.Errorf("failed to decode V3FundsDeposited: %w", err)
		}
		outputToken := raw.OutputToken
		fillDeadline := raw.FillDeadline
		exclusivityDeadline := raw.ExclusivityDeadline
		exclusiveRelayer := raw.ExclusiveRelayer
		return &DepositEvent{
			Version:             version,
			DepositID:           uint64(raw.DepositId),
			OriginChainID:       originChainID,
			DestinationChainID:  raw.DestinationChainId.Uint64(),
			Depositor:           raw.Depositor,
			Recipient:           raw.Recipient,
			InputToken:          raw.InputToken,
			Amount:              raw.InputAmount,
			QuoteTimestamp:      raw.QuoteTimestamp,
			Message:             raw.Message,
			OutputToken:         &outputToken,
			OutputAmount:        raw.OutputAmount,
			FillDeadline:        &fillDeadline,
			ExclusivityDeadline: &exclusivityDeadline,
			ExclusiveRelayer:    &exclusiveRelayer,
			Raw:                 log,
		}, nil

	default:
		return nil, fmt.Errorf("unknown contract version %q", version)
	}
}

type rawFillV2 struct {
	Amount               *big.Int
	TotalFilledAmount    *big.Int
	FillAmount           *big.Int
	RepaymentChainId     *big.Int
	OriginChainId        *big.Int
	DestinationChainId   *big.Int
	RelayerFeePct        int64
	AppliedRelayerFeePct int64
	RealizedLpFeePct     int64
	DepositId            uint32
	DestinationToken     common.Address
	Relayer              common.Address
	Depositor            common.Address
	Recipient            common.Address
	IsSlowRelay          bool
}

type rawFillV25 struct {
	Amount             *big.Int
	TotalFilledAmount  *big.Int
	FillAmount         *big.Int
	RepaymentChainId   *big.Int
	OriginChainId      *big.Int
	DestinationChainId *big.Int
	RelayerFeePct      int64
	RealizedLpFeePct   int64
	DepositId          uint32
	DestinationToken   common.Address
	Relayer            common.Address
	Depositor          common.Address
	Recipient          common.Address
	Message            []byte
	UpdatableRelayData struct {
		Recipient           common.Address
		Message             []byte
		RelayerFeePct       int64
		IsSlowRelay         bool
		PayoutAdjustmentPct *big.Int
	}
}

type rawFillV3 struct {
	InputToken          common.Address
	OutputToken         common.Address
	InputAmount         *big.Int
	OutputAmount        *big.Int
	RepaymentChainId    *big.Int
	OriginChainId       *big.Int
	DepositId           uint32
	FillDeadline        uint32
	ExclusivityDeadline uint32
	ExclusiveRelayer    common.Address
	Relayer             common.Address
	Depositor           common.Address
	Recipient           common.Address
	Message             []byte
	RelayExecutionInfo  struct {
		UpdatedRecipient    common.Address
		UpdatedMessage      []byte
		UpdatedOutputAmount *big.Int
		FillType            uint8
	}
}

// ParseFill decodes a fill log for the given contract version. The fill shape
// discriminant is fixed here and never re-inferred downstream.
func ParseFill(version Version, destinationChainID uint64, log types.Log) (*FillEvent, error) {
	switch version {
	case VersionV2:
		var raw rawFillV2
		if err := v2Unpacker.UnpackLog(&raw, "FilledRelay", log); err != nil {
			return nil, fmt.Errorf("failed to decode v2 FilledRelay: %w", err)
		}
		return &FillEvent{
			Shape:                FillShapeV2,
			DepositID:            uint64(raw.DepositId),
			OriginChainID:        raw.OriginChainId.Uint64(),
			DestinationChainID:   raw.DestinationChainId.Uint64(),
			Relayer:              raw.Relayer,
			Depositor:            raw.Depositor,
			Recipient:            raw.Recipient,
			Amount:               raw.Amount,
			TotalFilledAmount:    raw.TotalFilledAmount,
			FillAmount:           raw.FillAmount,
			RealizedLpFeePct:     big.NewInt(raw.RealizedLpFeePct),
			DestinationToken:     raw.DestinationToken,
			AppliedRelayerFeePct: big.NewInt(raw.AppliedRelayerFeePct),
			Raw:                  log,
		}, nil

	case VersionV25:
		var raw rawFillV25
		if err := v25Unpacker.UnpackLog(&raw, "FilledRelay", log); err != nil {
			return nil, fmt.Errorf("failed to decode v2.5 FilledRelay: %w", err)
		}
		return &FillEvent{
			Shape:              FillShapeV25,
			DepositID:          uint64(raw.DepositId),
			OriginChainID:      raw.OriginChainId.Uint64(),
			DestinationChainID: raw.DestinationChainId.Uint64(),
			Relayer:            raw.Relayer,
			Depositor:          raw.Depositor,
			Recipient:          raw.Recipient,
			Amount:             raw.Amount,
			TotalFilledAmount:  raw.TotalFilledAmount,
			FillAmount:         raw.FillAmount,
			RealizedLpFeePct:   big.NewInt(raw.RealizedLpFeePct),
			DestinationToken:   raw.DestinationToken,
			UpdatableRelayData: &UpdatableRelayData{
				Recipient:           raw.UpdatableRelayData.Recipient,
				Message:             raw.UpdatableRelayData.Message,
				RelayerFeePct:       big.NewInt(raw.UpdatableRelayData.RelayerFeePct),
				IsSlowRelay:         raw.UpdatableRelayData.IsSlowRelay,
				PayoutAdjustmentPct: raw.UpdatableRelayData.PayoutAdjustmentPct,
			},
			Raw: log,
		}, nil

	case VersionV3:
		var raw rawFillV3
		if err := v3Unpacker.UnpackLog(&raw, "FilledV3Relay", log); err != nil {
			return nil, fmt.Errorf("failed to decode FilledV3Relay: %w", err)
		}
		return &FillEvent{
			Shape:              FillShapeV3,
			DepositID:          uint64(raw.DepositId),
			OriginChainID:      raw.OriginChainId.Uint64(),
			DestinationChainID: destinationChainID,
			Relayer:            raw.Relayer,
			Depositor:          raw.Depositor,
			Recipient:          raw.Recipient,
			InputToken:         raw.InputToken,
			OutputToken:        raw.OutputToken,
			InputAmount:        raw.InputAmount,
			OutputAmount:       raw.OutputAmount,
			RelayExecutionInfo: &RelayExecutionInfo{
				UpdatedRecipient:    raw.RelayExecutionInfo.UpdatedRecipient,
				UpdatedMessage:      raw.RelayExecutionInfo.UpdatedMessage,
				UpdatedOutputAmount: raw.RelayExecutionInfo.UpdatedOutputAmount,
				FillType:            raw.RelayExecutionInfo.FillType,
			},
			Raw: log,
		}, nil

	default:
		return nil, fmt.Errorf("unknown contract version %q", version)
	}
}

type rawSwap struct {
	Exchange          common.Address
	SwapToken         common.Address
	AcrossInputToken  common.Address
	SwapTokenAmount   *big.Int
	AcrossInputAmount *big.Int
}

// ParseSwap decodes a SwapBeforeBridge log.
func ParseSwap(log types.Log) (*SwapEvent, error) {
	var raw rawSwap
	if err := v3Unpacker.UnpackLog(&raw, "SwapBeforeBridge", log); err != nil {
		return nil, fmt.Errorf("failed to decode SwapBeforeBridge: %w", err)
	}
	return &SwapEvent{
		Exchange:          raw.Exchange,
		SwapToken:         raw.SwapToken,
		AcrossInputToken:  raw.AcrossInputToken,
		SwapTokenAmount:   raw.SwapTokenAmount,
		AcrossInputAmount: raw.AcrossInputAmount,
		Raw:               log,
	}, nil
}

type rawSpeedUpV2 struct {
	NewRelayerFeePct   int64
	DepositId          uint32
	Depositor          common.Address
	DepositorSignature []byte
}

type rawSpeedUpV3 struct {
	UpdatedOutputAmount *big.Int
	DepositId           uint32
	Depositor           common.Address
	UpdatedRecipient    common.Address
	UpdatedMessage      []byte
	DepositorSignature  []byte
}

// ParseSpeedUp decodes a speed-up request log for the given version.
func ParseSpeedUp(version Version, log types.Log) (*SpeedUpEvent, error) {
	switch version {
	case VersionV2, VersionV25:
		var raw rawSpeedUpV2
		up := v2Unpacker
		if version == VersionV25 {
			up = v25Unpacker
		}
		if err := up.UnpackLog(&raw, "RequestedSpeedUpDeposit", log); err != nil {
			return nil, fmt.Errorf("failed to decode RequestedSpeedUpDeposit: %w", err)
		}
		return &SpeedUpEvent{
			Version:          version,
			DepositID:        uint64(raw.DepositId),
			Depositor:        raw.Depositor,
			Signature:        raw.DepositorSignature,
			NewRelayerFeePct: big.NewInt(raw.NewRelayerFeePct),
			Raw:              log,
		}, nil

	case VersionV3:
		var raw rawSpeedUpV3
		if err := v3Unpacker.UnpackLog(&raw, "RequestedSpeedUpV3Deposit", log); err != nil {
			return nil, fmt.Errorf("failed to decode RequestedSpeedUpV3Deposit: %w", err)
		}
		recipient := raw.UpdatedRecipient
		return &SpeedUpEvent{
			Version:             version,
			DepositID:           uint64(raw.DepositId),
			Depositor:           raw.Depositor,
			Signature:           raw.DepositorSignature,
			UpdatedOutputAmount: raw.UpdatedOutputAmount,
			UpdatedRecipient:    &recipient,
			Raw:                 log,
		}, nil

	default:
		return nil, fmt.Errorf("unknown contract version %q", version)
	}
}

type rawClaim struct {
	WindowIndex  *big.Int
	Account      common.Address
	AccountIndex *big.Int
	Amount       *big.Int
	RewardToken  common.Address
}

// ParseClaim decodes a distributor RewardsClaimed log.
func ParseClaim(log types.Log) (*ClaimEvent, error) {
	var raw rawClaim
	if err := distUnpacker.UnpackLog(&raw, "RewardsClaimed", log); err != nil {
		return nil, fmt.Errorf("failed to decode RewardsClaimed: %w", err)
	}
	return &ClaimEvent{
		WindowIndex: raw.WindowIndex,
		Account:     raw.Account,
		Amount:      raw.Amount,
		RewardToken: raw.RewardToken,
		Raw:         log,
	}, nil
}

// PackFillStatuses encodes a fillStatuses(bytes32) call for the V3 spoke pool.
func PackFillStatuses(relayHash [32]byte) ([]byte, error) {
	return spokePoolV3ABI.Pack("fillStatuses", relayHash)
}

// UnpackFillStatuses decodes the fillStatuses return value. Zero means
// unfilled, non-zero means a fill (fast or slow) was recorded on chain.
func UnpackFillStatuses(data []byte) (*big.Int, error) {
	out, err := spokePoolV3ABI.Unpack("fillStatuses", data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fillStatuses result: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected fillStatuses result arity %d", len(out))
	}
	status, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected fillStatuses result type %T", out[0])
	}
	return status, nil
}
