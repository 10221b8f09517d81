package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func registryFixture() *DeploymentRegistry {
	return NewDeploymentRegistry(map[uint64][]Deployment{
		1: {
			// Deliberately out of order to exercise sorting.
			{Address: common.HexToAddress("0x03"), StartBlock: 300, Version: VersionV3},
			{Address: common.HexToAddress("0x01"), StartBlock: 100, Version: VersionV2},
			{Address: common.HexToAddress("0x02"), StartBlock: 200, Version: VersionV25},
		},
		10: {
			{Address: common.HexToAddress("0x0a"), StartBlock: 50, Version: VersionV3},
		},
	})
}

func TestDeploymentsSortedByStartBlock(t *testing.T) {
	deployments := registryFixture().Deployments(1)
	if len(deployments) != 3 {
		t.Fatalf("got %d deployments, want 3", len(deployments))
	}
	for i := 1; i < len(deployments); i++ {
		if deployments[i-1].StartBlock >= deployments[i].StartBlock {
			t.Fatalf("deployments not sorted: %+v", deployments)
		}
	}
}

func TestActiveAt(t *testing.T) {
	registry := registryFixture()

	cases := []struct {
		block uint64
		want  Version
	}{
		{100, VersionV2},
		{199, VersionV2},
		{200, VersionV25},
		{300, VersionV3},
		{1_000_000, VersionV3},
	}
	for _, tc := range cases {
		active := registry.ActiveAt(1, tc.block)
		if active == nil {
			t.Fatalf("block %d: no active deployment", tc.block)
		}
		if active.Version != tc.want {
			t.Fatalf("block %d: version = %q, want %q", tc.block, active.Version, tc.want)
		}
	}

	if active := registry.ActiveAt(1, 99); active != nil {
		t.Fatalf("block before first deployment must have no active contract, got %+v", active)
	}
	if active := registry.ActiveAt(42161, 500); active != nil {
		t.Fatalf("unknown chain must have no active contract, got %+v", active)
	}
}

func TestChainIDsSorted(t *testing.T) {
	ids := registryFixture().ChainIDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 10 {
		t.Fatalf("chain ids = %v, want [1 10]", ids)
	}
}

func TestDistributorLookup(t *testing.T) {
	registry := registryFixture()
	if _, ok := registry.Distributor(1); ok {
		t.Fatalf("fixture has no distributors")
	}
}

func TestRouteRegistryLookupIsCaseInsensitive(t *testing.T) {
	usdcMainnet := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	usdcOptimism := "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"

	registry, err := NewRouteRegistry([]Route{{
		OriginChainID:      1,
		InputToken:         usdcMainnet,
		DestinationChainID: 10,
		OutputToken:        usdcOptimism,
	}})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	for _, input := range []string{
		usdcMainnet,
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48",
	} {
		output, ok := registry.OutputToken(1, input, 10)
		if !ok {
			t.Fatalf("route not found for input %s", input)
		}
		if output != common.HexToAddress(usdcOptimism).Hex() {
			t.Fatalf("output = %s, want %s", output, usdcOptimism)
		}
	}

	if _, ok := registry.OutputToken(1, usdcMainnet, 137); ok {
		t.Fatalf("unexpected route to unregistered destination")
	}
}

func TestRouteRegistryRejectsInvalidAddresses(t *testing.T) {
	_, err := NewRouteRegistry([]Route{{
		OriginChainID:      1,
		InputToken:         "not-an-address",
		DestinationChainID: 10,
		OutputToken:        "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
	}})
	if err == nil {
		t.Fatalf("expected error for invalid input token")
	}
}
