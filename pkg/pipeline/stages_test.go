package pipeline

import (
	"testing"
)

func TestTopology_EdgesReferenceKnownStages(t *testing.T) {
	for stage, downstream := range Topology {
		for _, next := range downstream {
			if _, ok := Topology[next]; !ok {
				t.Fatalf("stage %q fans out to unknown stage %q", stage, next)
			}
		}
	}
}

func TestTopology_CoversEveryStage(t *testing.T) {
	stages := []string{
		StageBlockDate, StageTokenDetails, StageTokenPrice,
		StageReferral, StageStickyReferral,
		StageFillV2, StageFillV25, StageFillV3,
		StageFilledDate, StageFeeBreakdown, StageCappedFee,
		StageSuggestedFee, StageSpeedUp,
		StageOpRebate, StageReferralReward, StageClaim,
	}
	for _, stage := range stages {
		if _, ok := Topology[stage]; !ok {
			t.Fatalf("stage %q missing from topology", stage)
		}
		if _, ok := DefaultConcurrency[stage]; !ok {
			t.Fatalf("stage %q missing a default concurrency", stage)
		}
	}
	if len(Topology) != len(stages) {
		t.Fatalf("topology has %d entries, expected %d", len(Topology), len(stages))
	}
}

func TestTopology_IsAcyclic(t *testing.T) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)

	var visit func(stage string) bool
	visit = func(stage string) bool {
		switch state[stage] {
		case visiting:
			return false
		case done:
			return true
		}
		state[stage] = visiting
		for _, next := range Topology[stage] {
			if !visit(next) {
				return false
			}
		}
		state[stage] = done
		return true
	}

	for stage := range Topology {
		if !visit(stage) {
			t.Fatalf("cycle detected through stage %q", stage)
		}
	}
}

func TestDefaultConcurrency_OrderSensitiveStagesAreSerialized(t *testing.T) {
	if DefaultConcurrency[StageStickyReferral] != 1 {
		t.Fatalf("sticky referral propagation must run single-worker, got %d",
			DefaultConcurrency[StageStickyReferral])
	}
	if DefaultConcurrency[StageClaim] != 1 {
		t.Fatalf("claim consumption must run single-worker, got %d",
			DefaultConcurrency[StageClaim])
	}
}

func TestTopology_BlockDateFansOutEnrichment(t *testing.T) {
	next := Topology[StageBlockDate]
	want := map[string]bool{
		StageTokenDetails: false,
		StageReferral:     false,
		StageSuggestedFee: false,
	}
	for _, stage := range next {
		if _, ok := want[stage]; !ok {
			t.Fatalf("unexpected downstream stage %q", stage)
		}
		want[stage] = true
	}
	for stage, seen := range want {
		if !seen {
			t.Fatalf("block-date must fan out to %q", stage)
		}
	}
}

func TestTopology_FeeBreakdownTriggersRewards(t *testing.T) {
	next := Topology[StageFeeBreakdown]
	seen := make(map[string]bool, len(next))
	for _, stage := range next {
		seen[stage] = true
	}
	if !seen[StageOpRebate] || !seen[StageReferralReward] {
		t.Fatalf("fee breakdown must trigger both reward stages, got %v", next)
	}
}
