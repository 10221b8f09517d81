package indexerdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
	mghelper "github.com/relaymesh/bridge-indexer/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating deposits table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.DepositDao{}); err != nil {
			return err
		}
		// Idempotent ingestion relies on this composite key
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"deposits", "idx_deposits_deposit_id_origin_chain_id", "deposit_id, origin_chain_id"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.DepositDao{},
			"depositor_addr", "status", "deposit_date", "referral_address", "sticky_referral_address")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping deposits table...")
		return mghelper.DropTables(ctx, db, &dao.DepositDao{})
	})
}
