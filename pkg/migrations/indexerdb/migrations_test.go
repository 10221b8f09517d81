package indexerdb

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/relaymesh/bridge-indexer/pkg/pgutil"
)

func TestMigrationsApply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("failed to init migrator: %v", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if group.IsZero() {
		t.Fatalf("no migrations were applied")
	}

	for _, table := range []string{
		"deposits",
		"tokens",
		"blocks",
		"transactions",
		"transaction_receipts",
		"historic_market_prices",
		"rewards",
		"reward_claims",
		"scan_checkpoints",
		"deposit_gap_checkpoints",
		"queue_snapshots",
	} {
		pgutil.AssertTableExists(t, db, table)
	}

	pgutil.AssertIndexExists(t, db, "idx_deposits_deposit_id_origin_chain_id")
}

func TestMigrationsRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("failed to init migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("failed to rollback: %v", err)
	}

	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'deposits')").
		Scan(ctx, &exists)
	if err != nil {
		t.Fatalf("failed to check deposits table: %v", err)
	}
	if exists {
		t.Errorf("deposits table still exists after rollback")
	}
}
