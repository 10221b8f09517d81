package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanCheckpointDao maps to the 'scan_checkpoints' table: the last block each
// chain's scanner has processed.
type ScanCheckpointDao struct {
	bun.BaseModel `bun:"table:scan_checkpoints"`

	ChainID   int64     `json:"chain_id" bun:"chain_id,pk"`
	LastBlock int64     `json:"last_block" bun:"last_block,notnull"`
	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,nullzero,default:now()"`
}

// GapCheckpointDao maps to the 'deposit_gap_checkpoints' table: per chain, the
// last deposit id confirmed gap-free and the highest deposit id seen by the
// gap detection cron.
type GapCheckpointDao struct {
	bun.BaseModel `bun:"table:deposit_gap_checkpoints"`

	ChainID               int64     `json:"chain_id" bun:"chain_id,pk"`
	GapCheckPassDepositID int64     `json:"gap_check_pass_deposit_id" bun:"gap_check_pass_deposit_id,notnull"`
	LastDepositID         int64     `json:"last_deposit_id" bun:"last_deposit_id,notnull"`
	UpdatedAt             time.Time `json:"updated_at" bun:"updated_at,nullzero,default:now()"`
}

// QueueSnapshotDao maps to the 'queue_snapshots' table: periodic task-queue
// depth samples per pipeline stage.
type QueueSnapshotDao struct {
	bun.BaseModel `bun:"table:queue_snapshots"`

	ID      int64     `json:"id" bun:",pk,autoincrement"`
	Stage   string    `json:"stage" bun:"stage,notnull,type:VARCHAR(40)"`
	Waiting int64     `json:"waiting" bun:"waiting,notnull"`
	Active  int64     `json:"active" bun:"active,notnull"`
	Delayed int64     `json:"delayed" bun:"delayed,notnull"`
	Failed  int64     `json:"failed" bun:"failed,notnull"`
	TakenAt time.Time `json:"taken_at" bun:"taken_at,notnull,default:now()"`
}
