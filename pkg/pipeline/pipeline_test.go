package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
)

type recordingDispatcher struct {
	concurrency map[string]int
}

func (d *recordingDispatcher) Enqueue(context.Context, string, any) error       { return nil }
func (d *recordingDispatcher) EnqueueBulk(context.Context, string, []any) error { return nil }
func (d *recordingDispatcher) Counts(context.Context, string) (queue.Counts, error) {
	return queue.Counts{}, nil
}

func (d *recordingDispatcher) RegisterHandler(stage string, concurrency int, _ queue.Handler) {
	d.concurrency[stage] = concurrency
}

func TestRegisterClampsSerializedStages(t *testing.T) {
	cfg := &config.PipelineConfig{Concurrency: map[string]int{
		StageStickyReferral: 8,
		StageClaim:          4,
		StageBlockDate:      3,
	}}
	p := New(nil, nil, nil, nil, nil, nil, nil, nil, cfg, zap.NewNop())

	d := &recordingDispatcher{concurrency: make(map[string]int)}
	p.Register(d)

	if got := d.concurrency[StageStickyReferral]; got != 1 {
		t.Fatalf("sticky referral concurrency = %d, config override must be clamped to 1", got)
	}
	if got := d.concurrency[StageClaim]; got != 1 {
		t.Fatalf("claim concurrency = %d, config override must be clamped to 1", got)
	}
	if got := d.concurrency[StageBlockDate]; got != 3 {
		t.Fatalf("block date concurrency = %d, want the configured 3", got)
	}
	if got := d.concurrency[StageTokenPrice]; got != DefaultConcurrency[StageTokenPrice] {
		t.Fatalf("token price concurrency = %d, want default %d", got, DefaultConcurrency[StageTokenPrice])
	}
}
