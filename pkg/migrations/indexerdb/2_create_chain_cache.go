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
		log.Println("creating chain cache tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&dao.TokenDao{}, &dao.BlockDao{}, &dao.TransactionDao{}, &dao.ReceiptDao{}, &dao.HistoricPriceDao{}); err != nil {
			return err
		}
		// Each cache table is keyed by its natural chain identity so that
		// concurrent insert-or-fetch writers converge on a single row.
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"tokens", "idx_tokens_address_chain_id", "address, chain_id"); err != nil {
			return err
		}
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"blocks", "idx_blocks_chain_id_block_number", "chain_id, block_number"); err != nil {
			return err
		}
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"transactions", "idx_transactions_chain_id_hash", "chain_id, hash"); err != nil {
			return err
		}
		if err := mghelper.CreateUniqueIndex(ctx, db,
			"transaction_receipts", "idx_transaction_receipts_chain_id_hash", "chain_id, hash"); err != nil {
			return err
		}
		return mghelper.CreateUniqueIndex(ctx, db,
			"historic_market_prices", "idx_historic_market_prices_symbol_date", "symbol, date")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chain cache tables...")
		return mghelper.DropTables(ctx, db,
			&dao.TokenDao{}, &dao.BlockDao{}, &dao.TransactionDao{}, &dao.ReceiptDao{}, &dao.HistoricPriceDao{})
	})
}
