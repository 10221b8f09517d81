package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// CacheStore persists the immutable chain-data caches: blocks, tokens,
// transactions, receipts and historic prices. All writes follow the same
// insert-or-fetch pattern: insert with ON CONFLICT DO NOTHING, then read the
// row back, so concurrent writers race safely and at most one row per natural
// key survives.
type CacheStore struct {
	db *bun.DB
}

// NewCacheStore creates a new cache store.
func NewCacheStore(db *bun.DB) *CacheStore {
	return &CacheStore{db: db}
}

// GetBlock returns the cached block, or nil when absent.
func (s *CacheStore) GetBlock(ctx context.Context, chainID, blockNumber int64) (*dao.BlockDao, error) {
	block := new(dao.BlockDao)
	err := s.db.NewSelect().
		Model(block).
		Where("chain_id = ?", chainID).
		Where("block_number = ?", blockNumber).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d/%d: %w", chainID, blockNumber, err)
	}
	return block, nil
}

// PutBlock inserts a block row, returning the persisted row (the existing one
// on conflict).
func (s *CacheStore) PutBlock(ctx context.Context, block *dao.BlockDao) (*dao.BlockDao, error) {
	_, err := s.db.NewInsert().
		Model(block).
		On("CONFLICT (chain_id, block_number) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert block: %w", err)
	}
	stored, err := s.GetBlock(ctx, block.ChainID, block.BlockNumber)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("block %d/%d missing after insert", block.ChainID, block.BlockNumber)
	}
	return stored, nil
}

// NearestBlocks returns the closest cached blocks at or before and at or
// after the given timestamp on a chain. Either side may be nil.
func (s *CacheStore) NearestBlocks(ctx context.Context, chainID int64, at time.Time) (before, after *dao.BlockDao, err error) {
	before = new(dao.BlockDao)
	err = s.db.NewSelect().
		Model(before).
		Where("chain_id = ?", chainID).
		Where("timestamp <= ?", at).
		Order("timestamp DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		before = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to find block before %s: %w", at, err)
	}

	after = new(dao.BlockDao)
	err = s.db.NewSelect().
		Model(after).
		Where("chain_id = ?", chainID).
		Where("timestamp >= ?", at).
		Order("timestamp ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		after = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to find block after %s: %w", at, err)
	}

	return before, after, nil
}

// GetToken returns the cached token, or nil when absent.
func (s *CacheStore) GetToken(ctx context.Context, chainID int64, address string) (*dao.TokenDao, error) {
	token := new(dao.TokenDao)
	err := s.db.NewSelect().
		Model(token).
		Where("chain_id = ?", chainID).
		Where("address = ?", address).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token %d/%s: %w", chainID, address, err)
	}
	return token, nil
}

// PutToken inserts a token row, returning the persisted row.
func (s *CacheStore) PutToken(ctx context.Context, token *dao.TokenDao) (*dao.TokenDao, error) {
	_, err := s.db.NewInsert().
		Model(token).
		On("CONFLICT (chain_id, address) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert token: %w", err)
	}
	stored, err := s.GetToken(ctx, token.ChainID, token.Address)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("token %d/%s missing after insert", token.ChainID, token.Address)
	}
	return stored, nil
}

// GetTransaction returns the cached transaction, or nil when absent.
func (s *CacheStore) GetTransaction(ctx context.Context, chainID int64, hash string) (*dao.TransactionDao, error) {
	tx := new(dao.TransactionDao)
	err := s.db.NewSelect().
		Model(tx).
		Where("chain_id = ?", chainID).
		Where("hash = ?", hash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d/%s: %w", chainID, hash, err)
	}
	return tx, nil
}

// PutTransaction inserts a transaction row, returning the persisted row.
func (s *CacheStore) PutTransaction(ctx context.Context, tx *dao.TransactionDao) (*dao.TransactionDao, error) {
	_, err := s.db.NewInsert().
		Model(tx).
		On("CONFLICT (chain_id, hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	stored, err := s.GetTransaction(ctx, tx.ChainID, tx.Hash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("transaction %d/%s missing after insert", tx.ChainID, tx.Hash)
	}
	return stored, nil
}

// GetReceipt returns the cached receipt, or nil when absent.
func (s *CacheStore) GetReceipt(ctx context.Context, chainID int64, hash string) (*dao.ReceiptDao, error) {
	receipt := new(dao.ReceiptDao)
	err := s.db.NewSelect().
		Model(receipt).
		Where("chain_id = ?", chainID).
		Where("hash = ?", hash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt %d/%s: %w", chainID, hash, err)
	}
	return receipt, nil
}

// PutReceipt inserts a receipt row, returning the persisted row.
func (s *CacheStore) PutReceipt(ctx context.Context, receipt *dao.ReceiptDao) (*dao.ReceiptDao, error) {
	_, err := s.db.NewInsert().
		Model(receipt).
		On("CONFLICT (chain_id, hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert receipt: %w", err)
	}
	stored, err := s.GetReceipt(ctx, receipt.ChainID, receipt.Hash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("receipt %d/%s missing after insert", receipt.ChainID, receipt.Hash)
	}
	return stored, nil
}

// GetPrice returns the cached historic price for a symbol on a calendar day,
// or nil when absent.
func (s *CacheStore) GetPrice(ctx context.Context, symbol string, date time.Time) (*dao.HistoricPriceDao, error) {
	price := new(dao.HistoricPriceDao)
	err := s.db.NewSelect().
		Model(price).
		Where("symbol = ?", symbol).
		Where("date = ?", date.Format("2006-01-02")).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price %s/%s: %w", symbol, date.Format("2006-01-02"), err)
	}
	return price, nil
}

// PutPrice inserts a historic price row, returning the persisted row. Prices
// are immutable once written.
func (s *CacheStore) PutPrice(ctx context.Context, price *dao.HistoricPriceDao) (*dao.HistoricPriceDao, error) {
	_, err := s.db.NewInsert().
		Model(price).
		On("CONFLICT (symbol, date) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert price: %w", err)
	}
	stored, err := s.GetPrice(ctx, price.Symbol, price.Date)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("price %s/%s missing after insert", price.Symbol, price.Date.Format("2006-01-02"))
	}
	return stored, nil
}
