package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	"github.com/relaymesh/bridge-indexer/pkg/migrations/indexerdb"
	"github.com/relaymesh/bridge-indexer/pkg/pgutil"
)

func setupStoreDB(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, indexerdb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("failed to init migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func testDeposit(depositID, originChainID int64) *dao.DepositDao {
	return &dao.DepositDao{
		DepositID:          depositID,
		OriginChainID:      originChainID,
		DestinationChainID: 10,
		DepositTxHash:      "0x6b2c4f5a000000000000000000000000000000000000000000000000000000aa",
		BlockNumber:        1000 + depositID,
		ContractVersion:    "v3",
		DepositorAddr:      "0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D",
		RecipientAddr:      "0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D",
		TokenAddr:          "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Amount:             "1000000000",
		Filled:             "0",
		Status:             StatusPending,
	}
}

func TestDepositInsertIdempotent(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	inserted, err := store.Insert(ctx, testDeposit(1, 1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert reported duplicate")
	}

	inserted, err = store.Insert(ctx, testDeposit(1, 1))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate insert reported new row")
	}

	// Same contract id on another chain is a distinct deposit.
	inserted, err = store.Insert(ctx, testDeposit(1, 137))
	if err != nil {
		t.Fatalf("cross-chain insert: %v", err)
	}
	if !inserted {
		t.Fatalf("cross-chain insert absorbed as duplicate")
	}
}

func TestSetDepositDateIsSetOnce(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	row := testDeposit(1, 1)
	if _, err := store.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SetDepositDate(ctx, row.ID, first); err != nil {
		t.Fatalf("set deposit date: %v", err)
	}
	if err := store.SetDepositDate(ctx, row.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("second set deposit date: %v", err)
	}

	got, err := store.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DepositDate == nil || !got.DepositDate.Equal(first) {
		t.Fatalf("deposit date = %v, want %v", got.DepositDate, first)
	}
}

func TestGetByDepositIDNotFound(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))

	_, err := store.GetByDepositID(context.Background(), 1, 999)
	if !errors.Is(err, ErrDepositNotFound) {
		t.Fatalf("err = %v, want ErrDepositNotFound", err)
	}
}

func TestMaxDepositID(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	max, err := store.MaxDepositID(ctx, 1)
	if err != nil {
		t.Fatalf("max on empty chain: %v", err)
	}
	if max != -1 {
		t.Fatalf("max = %d, want -1 for empty chain", max)
	}

	for _, id := range []int64{3, 7, 5} {
		if _, err := store.Insert(ctx, testDeposit(id, 1)); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	if _, err := store.Insert(ctx, testDeposit(100, 137)); err != nil {
		t.Fatalf("insert other chain: %v", err)
	}

	max, err = store.MaxDepositID(ctx, 1)
	if err != nil {
		t.Fatalf("max: %v", err)
	}
	if max != 7 {
		t.Fatalf("max = %d, want 7", max)
	}
}

func TestListDepositIDs(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	for _, id := range []int64{0, 2, 5, 9} {
		if _, err := store.Insert(ctx, testDeposit(id, 1)); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}

	ids, err := store.ListDepositIDs(ctx, 1, 1, 8)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 5 {
		t.Fatalf("ids = %v, want [2 5]", ids)
	}
}

func TestReferralAttribution(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	row := testDeposit(1, 1)
	if _, err := store.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	referrer := "0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D"
	if err := store.SetReferralAddress(ctx, row.ID, referrer); err != nil {
		t.Fatalf("set referral: %v", err)
	}

	got, err := store.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReferralAddress == nil || *got.ReferralAddress != referrer {
		t.Fatalf("referral address = %v, want %s", got.ReferralAddress, referrer)
	}
	if got.StickyReferralAddress == nil || *got.StickyReferralAddress != referrer {
		t.Fatalf("sticky referral not seeded from the extracted referral")
	}

	// Sticky attribution is rewritten by propagation without touching the
	// extracted address.
	other := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	if err := store.SetStickyReferralAddress(ctx, row.ID, &other); err != nil {
		t.Fatalf("set sticky referral: %v", err)
	}
	got, err = store.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReferralAddress == nil || *got.ReferralAddress != referrer {
		t.Fatalf("extracted referral changed by sticky propagation")
	}
	if got.StickyReferralAddress == nil || *got.StickyReferralAddress != other {
		t.Fatalf("sticky referral = %v, want %s", got.StickyReferralAddress, other)
	}
}

func TestUpdateFillsTransitionsStatus(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	row := testDeposit(1, 1)
	if _, err := store.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	fee := "16000000000000000"
	fills := []dao.FillTx{{
		Hash:        "0x6b2c4f5a000000000000000000000000000000000000000000000000000000bb",
		Shape:       "v3",
		BlockNumber: 2000,
		FillAmount:  "1000000000",
	}}
	if err := store.UpdateFills(ctx, row.ID, fills, "1000000000", StatusFilled, &fee, nil); err != nil {
		t.Fatalf("update fills: %v", err)
	}

	got, err := store.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFilled {
		t.Fatalf("status = %q, want %q", got.Status, StatusFilled)
	}
	if got.Filled != "1000000000" {
		t.Fatalf("filled = %q, want 1000000000", got.Filled)
	}
	if len(got.FillTxs) != 1 || got.FillTxs[0].Hash != fills[0].Hash {
		t.Fatalf("fill txs = %+v", got.FillTxs)
	}
	if got.BridgeFeePct == nil || *got.BridgeFeePct != fee {
		t.Fatalf("bridge fee = %v, want %s", got.BridgeFeePct, fee)
	}
}

func TestPrependSpeedUpDeduplicates(t *testing.T) {
	store := NewDepositStore(setupStoreDB(t))
	ctx := context.Background()

	row := testDeposit(1, 1)
	if _, err := store.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first := dao.SpeedUp{Hash: "0x01", BlockNumber: 10, NewRelayerFeePct: "1"}
	second := dao.SpeedUp{Hash: "0x02", BlockNumber: 20, NewRelayerFeePct: "2"}
	for _, s := range []dao.SpeedUp{first, second, first} {
		if err := store.PrependSpeedUp(ctx, row.ID, s); err != nil {
			t.Fatalf("prepend %s: %v", s.Hash, err)
		}
	}

	got, err := store.Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.SpeedUps) != 2 {
		t.Fatalf("speed ups = %d, want 2 (duplicate absorbed)", len(got.SpeedUps))
	}
	if got.SpeedUps[0].Hash != second.Hash {
		t.Fatalf("newest speed up must come first, got %+v", got.SpeedUps)
	}
}
