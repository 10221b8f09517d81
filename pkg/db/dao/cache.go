package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TokenDao maps to the 'tokens' table: immutable on-chain ERC20 metadata,
// unique on (address, chain_id), fetched once and cached forever.
type TokenDao struct {
	bun.BaseModel `bun:"table:tokens"`

	ID        int64     `json:"id" bun:",pk,autoincrement"`
	Address   string    `json:"address" bun:"address,notnull,type:VARCHAR(42)"`
	ChainID   int64     `json:"chain_id" bun:"chain_id,notnull"`
	Name      string    `json:"name" bun:"name,notnull"`
	Symbol    string    `json:"symbol" bun:"symbol,notnull,type:VARCHAR(32)"`
	Decimals  int32     `json:"decimals" bun:"decimals,notnull"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}

// BlockDao maps to the 'blocks' table: immutable cache of block timestamps,
// unique on (chain_id, block_number).
type BlockDao struct {
	bun.BaseModel `bun:"table:blocks"`

	ID          int64     `json:"id" bun:",pk,autoincrement"`
	ChainID     int64     `json:"chain_id" bun:"chain_id,notnull"`
	BlockNumber int64     `json:"block_number" bun:"block_number,notnull"`
	Timestamp   time.Time `json:"timestamp" bun:"timestamp,notnull"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}

// TransactionDao maps to the 'transactions' table: cached transaction payloads
// keyed by (chain_id, hash). Calldata is kept for referral extraction.
type TransactionDao struct {
	bun.BaseModel `bun:"table:transactions"`

	ID          int64     `json:"id" bun:",pk,autoincrement"`
	ChainID     int64     `json:"chain_id" bun:"chain_id,notnull"`
	Hash        string    `json:"hash" bun:"hash,notnull,type:VARCHAR(66)"`
	BlockNumber int64     `json:"block_number" bun:"block_number,notnull"`
	Data        string    `json:"data" bun:"data,notnull,type:TEXT"`
	From        string    `json:"from" bun:"from_addr,notnull,type:VARCHAR(42)"`
	To          *string   `json:"to,omitempty" bun:"to_addr,type:VARCHAR(42)"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}

// ReceiptDao maps to the 'transaction_receipts' table, keyed by
// (chain_id, hash). The effective sender is kept for meta-transaction
// unwrapping; gas fields feed the V3 fee breakdown.
type ReceiptDao struct {
	bun.BaseModel `bun:"table:transaction_receipts"`

	ID                int64     `json:"id" bun:",pk,autoincrement"`
	ChainID           int64     `json:"chain_id" bun:"chain_id,notnull"`
	Hash              string    `json:"hash" bun:"hash,notnull,type:VARCHAR(66)"`
	From              string    `json:"from" bun:"from_addr,notnull,type:VARCHAR(42)"`
	GasUsed           int64     `json:"gas_used" bun:"gas_used,notnull"`
	EffectiveGasPrice string    `json:"effective_gas_price" bun:"effective_gas_price,notnull,type:NUMERIC(78,0)"`
	CreatedAt         time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}

// HistoricPriceDao maps to the 'historic_market_prices' table: the USD price
// of a token symbol on a calendar day, unique on (symbol, date), immutable
// once written.
type HistoricPriceDao struct {
	bun.BaseModel `bun:"table:historic_market_prices"`

	ID        int64     `json:"id" bun:",pk,autoincrement"`
	Symbol    string    `json:"symbol" bun:"symbol,notnull,type:VARCHAR(32)"`
	Date      time.Time `json:"date" bun:"date,notnull,type:date"`
	USD       string    `json:"usd" bun:"usd,notnull,type:NUMERIC(24,8)"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}
