package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/migrations/indexerdb"
	"github.com/relaymesh/bridge-indexer/pkg/oracle"
	"github.com/relaymesh/bridge-indexer/pkg/pgutil"
)

func setupPipelineDB(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	bdb, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := migrate.NewMigrator(bdb, indexerdb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("failed to init migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return bdb
}

func insertDatedDeposit(t *testing.T, deposits *db.DepositStore, depositID int64, date time.Time) *dao.DepositDao {
	t.Helper()
	deposit := &dao.DepositDao{
		DepositID:          depositID,
		OriginChainID:      1,
		DestinationChainID: 10,
		DepositTxHash:      "0x5e1f000000000000000000000000000000000000000000000000000000000001",
		BlockNumber:        1000,
		ContractVersion:    "v3",
		DepositorAddr:      "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		RecipientAddr:      "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		TokenAddr:          "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Amount:             "1000000000",
		Filled:             "0",
		Status:             db.StatusPending,
		DepositDate:        &date,
	}
	if _, err := deposits.Insert(context.Background(), deposit); err != nil {
		t.Fatalf("insert deposit: %v", err)
	}
	return deposit
}

func depositTaskPayload(t *testing.T, pk int64) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(DepositTask{DepositPK: pk})
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return payload
}

func TestHandleSuggestedFeeUsesFallbackOutsideWindow(t *testing.T) {
	bdb := setupPipelineDB(t)
	ctx := context.Background()
	deposits := db.NewDepositStore(bdb)

	// The oracle must never be consulted for a stale deposit. Any request
	// reaching this server fails the test.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("fee oracle queried for a deposit outside the recency window")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feeOracle := oracle.NewFeeOracle(&config.OraclesConfig{
		FeeURL:  server.URL,
		Timeout: time.Second,
	}, zap.NewNop())

	cfg := &config.PipelineConfig{SuggestedFeeWindow: time.Hour}
	p := New(deposits, nil, nil, nil, nil, feeOracle, nil, nil, cfg, zap.NewNop())

	deposit := insertDatedDeposit(t, deposits, 1, time.Now().UTC().Add(-48*time.Hour))
	if err := p.handleSuggestedFee(ctx, depositTaskPayload(t, deposit.ID)); err != nil {
		t.Fatalf("handleSuggestedFee: %v", err)
	}

	stored, err := deposits.Get(ctx, deposit.ID)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if stored.SuggestedRelayerFeePct == nil {
		t.Fatal("suggested fee not recorded")
	}
	if *stored.SuggestedRelayerFeePct != "100000000000000" {
		t.Fatalf("suggested fee = %s, want the 1bp fallback", *stored.SuggestedRelayerFeePct)
	}
}

func TestHandleSuggestedFeeQuotesOracleWithinWindow(t *testing.T) {
	bdb := setupPipelineDB(t)
	ctx := context.Background()
	deposits := db.NewDepositStore(bdb)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("amount"); got != "1000000000" {
			t.Errorf("fee oracle amount = %q, want 1000000000", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"relayer_fee_pct":"250000000000000"}`))
	}))
	defer server.Close()

	feeOracle := oracle.NewFeeOracle(&config.OraclesConfig{
		FeeURL:  server.URL,
		Timeout: time.Second,
	}, zap.NewNop())

	cfg := &config.PipelineConfig{SuggestedFeeWindow: 24 * time.Hour}
	p := New(deposits, nil, nil, nil, nil, feeOracle, nil, nil, cfg, zap.NewNop())

	deposit := insertDatedDeposit(t, deposits, 2, time.Now().UTC().Add(-time.Hour))
	if err := p.handleSuggestedFee(ctx, depositTaskPayload(t, deposit.ID)); err != nil {
		t.Fatalf("handleSuggestedFee: %v", err)
	}

	stored, err := deposits.Get(ctx, deposit.ID)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if stored.SuggestedRelayerFeePct == nil || *stored.SuggestedRelayerFeePct != "250000000000000" {
		t.Fatalf("suggested fee = %v, want the oracle quote", stored.SuggestedRelayerFeePct)
	}
}
