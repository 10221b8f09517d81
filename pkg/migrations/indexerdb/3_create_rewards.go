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
		log.Println("creating rewards tables...")
		if err := mghelper.CreateSchema(ctx, db, &dao.RewardDao{}, &dao.ClaimDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"rewards", "idx_rewards_recipient_type_deposit", "recipient, reward_type, deposit_pk"); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &dao.RewardDao{}, "recipient", "window_index"); err != nil {
			return err
		}
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"reward_claims", "idx_reward_claims_tx_hash_log_index", "tx_hash, log_index"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.ClaimDao{}, "account")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping rewards tables...")
		return mghelper.DropTables(ctx, db, &dao.RewardDao{}, &dao.ClaimDao{})
	})
}
