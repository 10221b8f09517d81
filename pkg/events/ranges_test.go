package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relaymesh/bridge-indexer/pkg/contracts"
)

func testDeployments() []contracts.Deployment {
	return []contracts.Deployment{
		{Address: common.HexToAddress("0x01"), StartBlock: 100, Version: contracts.VersionV2},
		{Address: common.HexToAddress("0x02"), StartBlock: 200, Version: contracts.VersionV25},
		{Address: common.HexToAddress("0x03"), StartBlock: 300, Version: contracts.VersionV3},
	}
}

func TestSplitBlockRanges_SpansAllDeployments(t *testing.T) {
	ranges := SplitBlockRanges(testDeployments(), 150, 350)
	if len(ranges) != 3 {
		t.Fatalf("expected 3 ranges, got %d", len(ranges))
	}

	want := []struct {
		from, to uint64
		version  contracts.Version
	}{
		{150, 199, contracts.VersionV2},
		{200, 299, contracts.VersionV25},
		{300, 350, contracts.VersionV3},
	}
	for i, w := range want {
		if ranges[i].From != w.from || ranges[i].To != w.to {
			t.Fatalf("range %d: expected [%d,%d], got [%d,%d]", i, w.from, w.to, ranges[i].From, ranges[i].To)
		}
		if ranges[i].Deployment.Version != w.version {
			t.Fatalf("range %d: expected version %s, got %s", i, w.version, ranges[i].Deployment.Version)
		}
	}
}

func TestSplitBlockRanges_WithinSingleDeployment(t *testing.T) {
	ranges := SplitBlockRanges(testDeployments(), 210, 250)
	if len(ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(ranges))
	}
	if ranges[0].From != 210 || ranges[0].To != 250 {
		t.Fatalf("expected [210,250], got [%d,%d]", ranges[0].From, ranges[0].To)
	}
	if ranges[0].Deployment.Version != contracts.VersionV25 {
		t.Fatalf("expected v2.5, got %s", ranges[0].Deployment.Version)
	}
}

func TestSplitBlockRanges_BeforeFirstDeployment(t *testing.T) {
	if ranges := SplitBlockRanges(testDeployments(), 2, 10); ranges != nil {
		t.Fatalf("expected nil for window before first deployment, got %v", ranges)
	}
	if ranges := SplitBlockRanges(testDeployments(), 50, 150); ranges != nil {
		t.Fatalf("expected nil when window starts before first deployment, got %v", ranges)
	}
}

func TestSplitBlockRanges_DegenerateInputs(t *testing.T) {
	if ranges := SplitBlockRanges(nil, 100, 200); ranges != nil {
		t.Fatalf("expected nil for no deployments, got %v", ranges)
	}
	if ranges := SplitBlockRanges(testDeployments(), 300, 200); ranges != nil {
		t.Fatalf("expected nil for inverted window, got %v", ranges)
	}
}

func TestSplitBlockRanges_SingleBlock(t *testing.T) {
	ranges := SplitBlockRanges(testDeployments(), 200, 200)
	if len(ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(ranges))
	}
	if ranges[0].From != 200 || ranges[0].To != 200 {
		t.Fatalf("expected [200,200], got [%d,%d]", ranges[0].From, ranges[0].To)
	}
}

func TestSplitBlockRanges_BoundaryBlock(t *testing.T) {
	// The last block served by v2 is one below the v2.5 start.
	ranges := SplitBlockRanges(testDeployments(), 199, 200)
	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(ranges))
	}
	if ranges[0].To != 199 || ranges[1].From != 200 {
		t.Fatalf("expected split at deployment boundary, got %v", ranges)
	}
}
