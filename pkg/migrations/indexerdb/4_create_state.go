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
		log.Println("creating scanner state tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&dao.ScanCheckpointDao{}, &dao.GapCheckpointDao{}, &dao.QueueSnapshotDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.QueueSnapshotDao{}, "stage")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping scanner state tables...")
		return mghelper.DropTables(ctx, db,
			&dao.ScanCheckpointDao{}, &dao.GapCheckpointDao{}, &dao.QueueSnapshotDao{})
	})
}
