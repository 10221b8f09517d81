package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/chain"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/oracle"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
	"github.com/relaymesh/bridge-indexer/pkg/referral"
	"github.com/relaymesh/bridge-indexer/pkg/rewards"
)

// Dispatcher is the queue with handler registration, satisfied by the redis
// implementation.
type Dispatcher interface {
	queue.Queue
	RegisterHandler(stage string, concurrency int, handler queue.Handler)
}

// Pipeline wires every enrichment stage to its collaborators.
type Pipeline struct {
	deposits    *db.DepositStore
	chains      *chain.Registry
	routes      *contracts.RouteRegistry
	queue       queue.Queue
	priceOracle *oracle.PriceOracle
	feeOracle   *oracle.FeeOracle
	propagator  *referral.Propagator
	rewards     *rewards.Service
	cfg         *config.PipelineConfig
	logger      *zap.Logger
}

// New creates the pipeline.
func New(
	deposits *db.DepositStore,
	chains *chain.Registry,
	routes *contracts.RouteRegistry,
	q queue.Queue,
	priceOracle *oracle.PriceOracle,
	feeOracle *oracle.FeeOracle,
	propagator *referral.Propagator,
	rewardsSvc *rewards.Service,
	cfg *config.PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		deposits:    deposits,
		chains:      chains,
		routes:      routes,
		queue:       q,
		priceOracle: priceOracle,
		feeOracle:   feeOracle,
		propagator:  propagator,
		rewards:     rewardsSvc,
		cfg:         cfg,
		logger:      logger,
	}
}

// Register binds every stage handler to the dispatcher with its configured
// concurrency. Stages that rewrite attribution across rows are clamped to a
// single worker regardless of config: concurrent propagation walks over the
// same depositor would interleave stale sticky writes.
func (p *Pipeline) Register(d Dispatcher) {
	bind := func(stage string, handler queue.Handler) {
		concurrency := p.cfg.StageConcurrency(stage, DefaultConcurrency[stage])
		if stage == StageStickyReferral || stage == StageClaim {
			concurrency = 1
		}
		d.RegisterHandler(stage, concurrency, p.instrument(stage, handler))
	}

	bind(StageBlockDate, p.handleBlockDate)
	bind(StageTokenDetails, p.handleTokenDetails)
	bind(StageTokenPrice, p.handleTokenPrice)
	bind(StageReferral, p.handleReferral)
	bind(StageStickyReferral, p.handleStickyReferral)
	bind(StageFillV2, p.fillHandler(StageFillV2))
	bind(StageFillV25, p.fillHandler(StageFillV25))
	bind(StageFillV3, p.fillHandler(StageFillV3))
	bind(StageFilledDate, p.handleFilledDate)
	bind(StageFeeBreakdown, p.handleFeeBreakdown)
	bind(StageCappedFee, p.handleCappedFee)
	bind(StageSuggestedFee, p.handleSuggestedFee)
	bind(StageSpeedUp, p.handleSpeedUp)
	bind(StageOpRebate, p.handleOpRebate)
	bind(StageReferralReward, p.handleReferralReward)
	bind(StageClaim, p.handleClaim)
}

func (p *Pipeline) instrument(stage string, handler queue.Handler) queue.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		start := time.Now()
		err := handler(ctx, payload)
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			metrics.StageTasks.WithLabelValues(stage, "ok").Inc()
		case IsPrecondition(err):
			metrics.StageTasks.WithLabelValues(stage, "waiting").Inc()
			p.logger.Warn("stage waiting on prerequisite",
				zap.String("stage", stage), zap.Error(err))
		case queue.IsPermanent(err):
			metrics.StageTasks.WithLabelValues(stage, "failed").Inc()
		default:
			metrics.StageTasks.WithLabelValues(stage, "retry").Inc()
		}
		return err
	}
}

// fanOut enqueues the payload to every downstream stage of the completed
// one.
func (p *Pipeline) fanOut(ctx context.Context, stage string, payload any) error {
	for _, next := range Topology[stage] {
		if err := p.queue.Enqueue(ctx, next, payload); err != nil {
			return err
		}
	}
	return nil
}

func decode[T any](payload json.RawMessage) (T, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, queue.Permanent(fmt.Errorf("undecodable payload: %w", err))
	}
	return msg, nil
}
