package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// RewardDao maps to the 'rewards' table: one row per
// (recipient, reward_type, deposit_pk), created once fee and valuation data
// are final.
type RewardDao struct {
	bun.BaseModel `bun:"table:rewards"`

	ID          int64          `json:"id" bun:",pk,autoincrement"`
	Recipient   string         `json:"recipient" bun:"recipient,notnull,type:VARCHAR(42)"`
	RewardType  string         `json:"reward_type" bun:"reward_type,notnull,type:VARCHAR(16)"`
	DepositPK   int64          `json:"deposit_pk" bun:"deposit_pk,notnull"`
	Amount      string         `json:"amount" bun:"amount,notnull,type:NUMERIC(78,0)"`
	AmountUsd   string         `json:"amount_usd" bun:"amount_usd,notnull,type:NUMERIC(24,8)"`
	Metadata    map[string]any `json:"metadata" bun:"metadata,type:jsonb"`
	WindowIndex *int64         `json:"window_index,omitempty" bun:"window_index"`

	Claimed   bool       `json:"claimed" bun:"claimed,notnull,default:false"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty" bun:"claimed_at"`

	CreatedAt time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,nullzero,default:now()"`
}

// Reward types.
const (
	RewardTypeOpRebate = "op-rebate"
	RewardTypeArb      = "arb-rebate"
	RewardTypeReferral = "referral"
)

// ClaimDao maps to the 'reward_claims' table: distributor claim events,
// unique on (tx_hash, log_index). Claims reset sticky referral attribution.
type ClaimDao struct {
	bun.BaseModel `bun:"table:reward_claims"`

	ID          int64     `json:"id" bun:",pk,autoincrement"`
	Account     string    `json:"account" bun:"account,notnull,type:VARCHAR(42)"`
	WindowIndex int64     `json:"window_index" bun:"window_index,notnull"`
	Amount      string    `json:"amount" bun:"amount,notnull,type:NUMERIC(78,0)"`
	TxHash      string    `json:"tx_hash" bun:"tx_hash,notnull,type:VARCHAR(66)"`
	LogIndex    int64     `json:"log_index" bun:"log_index,notnull"`
	BlockNumber int64     `json:"block_number" bun:"block_number,notnull"`
	ClaimedAt   time.Time `json:"claimed_at" bun:"claimed_at,notnull"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
}
