package pipeline

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/relaymesh/bridge-indexer/pkg/contracts"
)

func depositAt(tx common.Hash, index uint) *contracts.DepositEvent {
	return &contracts.DepositEvent{
		Version: contracts.VersionV3,
		Raw:     types.Log{TxHash: tx, Index: index},
	}
}

func swapAt(tx common.Hash, index uint, amount int64) *contracts.SwapEvent {
	return &contracts.SwapEvent{
		SwapTokenAmount: big.NewInt(amount),
		Raw:             types.Log{TxHash: tx, Index: index},
	}
}

func TestPairSwaps_TakesNearestPrecedingSwap(t *testing.T) {
	tx := common.HexToHash("0x01")
	early := swapAt(tx, 2, 100)
	late := swapAt(tx, 5, 200)
	deposit := depositAt(tx, 7)

	pairSwaps([]*contracts.DepositEvent{deposit}, []*contracts.SwapEvent{early, late})

	if deposit.Swap != late {
		t.Fatalf("expected swap at index 5 paired, got %+v", deposit.Swap)
	}
}

func TestPairSwaps_IgnoresSwapAfterDeposit(t *testing.T) {
	tx := common.HexToHash("0x01")
	deposit := depositAt(tx, 3)
	swap := swapAt(tx, 8, 100)

	pairSwaps([]*contracts.DepositEvent{deposit}, []*contracts.SwapEvent{swap})

	if deposit.Swap != nil {
		t.Fatalf("swap emitted after the deposit must not pair, got %+v", deposit.Swap)
	}
}

func TestPairSwaps_EachSwapPairsOnce(t *testing.T) {
	tx := common.HexToHash("0x01")
	swap := swapAt(tx, 1, 100)
	first := depositAt(tx, 3)
	second := depositAt(tx, 6)

	pairSwaps([]*contracts.DepositEvent{first, second}, []*contracts.SwapEvent{swap})

	if first.Swap != swap {
		t.Fatalf("first deposit should consume the swap")
	}
	if second.Swap != nil {
		t.Fatalf("consumed swap paired twice: %+v", second.Swap)
	}
}

func TestPairSwaps_DoesNotCrossTransactions(t *testing.T) {
	swap := swapAt(common.HexToHash("0x01"), 1, 100)
	deposit := depositAt(common.HexToHash("0x02"), 5)

	pairSwaps([]*contracts.DepositEvent{deposit}, []*contracts.SwapEvent{swap})

	if deposit.Swap != nil {
		t.Fatalf("swap from another transaction paired: %+v", deposit.Swap)
	}
}

func TestFillStage_RoutesByShape(t *testing.T) {
	cases := []struct {
		shape contracts.FillShape
		want  string
	}{
		{contracts.FillShapeV2, StageFillV2},
		{contracts.FillShapeV25, StageFillV25},
		{contracts.FillShapeV3, StageFillV3},
	}
	for _, tc := range cases {
		got, err := fillStage(tc.shape)
		if err != nil {
			t.Fatalf("fillStage(%q): %v", tc.shape, err)
		}
		if got != tc.want {
			t.Fatalf("fillStage(%q) = %q, want %q", tc.shape, got, tc.want)
		}
	}
	if _, err := fillStage(contracts.FillShape("v9")); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}

func TestFillMessage_V2(t *testing.T) {
	event := &contracts.FillEvent{
		Shape:                contracts.FillShapeV2,
		DepositID:            42,
		OriginChainID:        1,
		DestinationChainID:   10,
		FillAmount:           big.NewInt(500),
		TotalFilledAmount:    big.NewInt(1000),
		RealizedLpFeePct:     big.NewInt(1e15),
		AppliedRelayerFeePct: big.NewInt(2e15),
		Raw:                  types.Log{TxHash: common.HexToHash("0xaa"), BlockNumber: 99},
	}

	msg := fillMessage(event)

	if msg.Shape != "v2" || msg.DepositID != 42 || msg.BlockNumber != 99 {
		t.Fatalf("unexpected message header: %+v", msg)
	}
	if msg.FillAmount != "500" || msg.TotalFilledAmount != "1000" {
		t.Fatalf("unexpected amounts: %+v", msg)
	}
	if msg.AppliedRelayerFeePct != "2000000000000000" {
		t.Fatalf("unexpected applied fee: %q", msg.AppliedRelayerFeePct)
	}
	if msg.IsSlowRelay != nil || msg.FillType != nil {
		t.Fatalf("v2 message carries other shapes' fields: %+v", msg)
	}
}

func TestFillMessage_V25CarriesRelayDataOverrides(t *testing.T) {
	event := &contracts.FillEvent{
		Shape:     contracts.FillShapeV25,
		DepositID: 7,
		UpdatableRelayData: &contracts.UpdatableRelayData{
			RelayerFeePct: big.NewInt(3e15),
			IsSlowRelay:   true,
		},
	}

	msg := fillMessage(event)

	if msg.UpdatedRelayerFeePct != "3000000000000000" {
		t.Fatalf("unexpected updated fee: %q", msg.UpdatedRelayerFeePct)
	}
	if msg.IsSlowRelay == nil || !*msg.IsSlowRelay {
		t.Fatalf("slow relay flag lost: %+v", msg.IsSlowRelay)
	}
}

func TestFillMessage_V3CarriesExecutionInfo(t *testing.T) {
	event := &contracts.FillEvent{
		Shape:        contracts.FillShapeV3,
		DepositID:    9,
		OutputAmount: big.NewInt(800),
		RelayExecutionInfo: &contracts.RelayExecutionInfo{
			UpdatedOutputAmount: big.NewInt(790),
			FillType:            2,
		},
	}

	msg := fillMessage(event)

	if msg.OutputAmount != "800" || msg.UpdatedOutputAmount != "790" {
		t.Fatalf("unexpected amounts: %+v", msg)
	}
	if msg.FillType == nil || *msg.FillType != 2 {
		t.Fatalf("fill type lost: %+v", msg.FillType)
	}
}
