package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/api"
	"github.com/relaymesh/bridge-indexer/pkg/chain"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/crons"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/oracle"
	"github.com/relaymesh/bridge-indexer/pkg/pgutil"
	"github.com/relaymesh/bridge-indexer/pkg/pipeline"
	"github.com/relaymesh/bridge-indexer/pkg/queue"
	"github.com/relaymesh/bridge-indexer/pkg/referral"
	"github.com/relaymesh/bridge-indexer/pkg/rewards"
	"github.com/relaymesh/bridge-indexer/pkg/scanner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "indexer failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting bridge indexer",
		zap.String("config", configPath),
		zap.Int("chains", len(cfg.Chains)))

	bunDB, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer bunDB.Close()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	depositStore := db.NewDepositStore(bunDB)
	cacheStore := db.NewCacheStore(bunDB)
	rewardStore := db.NewRewardStore(bunDB)
	stateStore := db.NewStateStore(bunDB)
	viewStore := db.NewViewStore(bunDB)

	deployments, err := contracts.LoadDeployments(cfg.Scanner.DeploymentsFile)
	if err != nil {
		return fmt.Errorf("load deployments: %w", err)
	}
	routes, err := contracts.LoadRoutes(cfg.Scanner.RoutesFile)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}

	chains, err := chain.NewRegistry(ctx, cfg.Chains, cacheStore, logger)
	if err != nil {
		return fmt.Errorf("connect chains: %w", err)
	}
	defer chains.Close()

	redisQueue, err := queue.NewRedisQueue(ctx, &cfg.Redis, &cfg.Pipeline, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisQueue.Close() }()

	priceOracle, err := oracle.NewPriceOracle(&cfg.Oracles, cacheStore, logger)
	if err != nil {
		return fmt.Errorf("setup price oracle: %w", err)
	}
	feeOracle := oracle.NewFeeOracle(&cfg.Oracles, logger)
	propagator := referral.NewPropagator(depositStore, rewardStore, logger)
	rewardsSvc := rewards.NewService(depositStore, rewardStore, viewStore, priceOracle, &cfg.Oracles, logger)

	pipe := pipeline.New(depositStore, chains, routes, redisQueue,
		priceOracle, feeOracle, propagator, rewardsSvc, &cfg.Pipeline, logger)
	pipe.Register(redisQueue)
	go redisQueue.Run(ctx)

	scan, err := scanner.New(cfg, chains, deployments, stateStore, pipe, logger)
	if err != nil {
		return fmt.Errorf("setup scanner: %w", err)
	}
	go func() {
		if err := scan.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scanner stopped", zap.Error(err))
		}
	}()

	runner := crons.NewRunner(ctx, logger)
	jobs := []struct {
		name     string
		schedule string
		job      crons.Job
	}{
		{"gap-detection", cfg.Crons.GapDetectionSchedule,
			crons.NewGapDetector(cfg, depositStore, stateStore, scan, logger)},
		{"missed-fill-sweep", cfg.Crons.MissedFillSchedule,
			crons.NewMissedFillSweep(cfg, depositStore, cacheStore, chains, deployments, scan, pipe, logger)},
		{"view-refresh", cfg.Crons.ViewRefreshSchedule,
			crons.NewViewRefresher(&cfg.Crons, viewStore, logger)},
		{"queue-monitor", cfg.Crons.QueueMonitorSchedule,
			crons.NewQueueMonitor(&cfg.Crons, redisQueue, stateStore, logger)},
	}
	for _, j := range jobs {
		if err := runner.Add(j.name, j.schedule, j.job); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	runner.Start()
	defer runner.Stop()

	handler := api.NewHandler(depositStore, rewardStore, viewStore, scan, logger)
	return api.ServeAndWait(ctx, handler.Router(), logger, &cfg.Server)
}
