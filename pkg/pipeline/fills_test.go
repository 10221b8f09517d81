package pipeline

import (
	"testing"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

func TestBlendedFeesTakesLpFromGreatestCumulativeFill(t *testing.T) {
	deposit := &dao.DepositDao{ID: 1, Amount: "1000"}

	newer := dao.FillTx{
		Hash:                 "0xaa",
		FillAmount:           "500",
		TotalFilledAmount:    "1000",
		RealizedLpFeePct:     "200000000000000",
		AppliedRelayerFeePct: "100000000000000",
	}
	older := dao.FillTx{
		Hash:                 "0xbb",
		FillAmount:           "500",
		TotalFilledAmount:    "500",
		RealizedLpFeePct:     "100000000000000",
		AppliedRelayerFeePct: "100000000000000",
	}

	// The completing fill is already stored and the earlier partial fill
	// arrives late, so it sits at the end of the slice. Its LP fee must not
	// win.
	for _, fills := range [][]dao.FillTx{
		{newer, older},
		{older, newer},
	} {
		bridge, lp, err := blendedFees(deposit, fills)
		if err != nil {
			t.Fatalf("blendedFees: %v", err)
		}
		if lp == nil || *lp != "200000000000000" {
			t.Fatalf("realized lp fee = %v, want the completing fill's 200000000000000", lp)
		}
		// blended relayer fee 1bp plus 2bp LP, under the cap.
		if bridge == nil || *bridge != "300000000000000" {
			t.Fatalf("bridge fee = %v, want 300000000000000", bridge)
		}
	}
}

func TestLatestFillSkipsMalformedTotals(t *testing.T) {
	fills := []dao.FillTx{
		{Hash: "0xaa", TotalFilledAmount: "bogus"},
		{Hash: "0xbb", TotalFilledAmount: "500"},
	}
	latest := latestFill(fills)
	if latest == nil || latest.Hash != "0xbb" {
		t.Fatalf("latestFill picked %+v, want the parseable fill", latest)
	}
	if latestFill(nil) != nil {
		t.Fatal("latestFill on no fills must return nil")
	}
}
