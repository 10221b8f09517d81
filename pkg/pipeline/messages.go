package pipeline

import "time"

// DepositTask keys most stages: the primary key of the deposit row to
// enrich. Every handler re-reads the row, so the payload carries no state
// that could go stale in the queue.
type DepositTask struct {
	DepositPK int64 `json:"deposit_pk"`
}

// StickyTask triggers sticky referral propagation for one depositor's full
// history.
type StickyTask struct {
	Depositor string `json:"depositor"`
}

// FillMessage carries one decoded fill event to its shape-specific stage.
// Big integers travel as decimal strings.
type FillMessage struct {
	Shape              string `json:"shape"`
	OriginChainID      uint64 `json:"origin_chain_id"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	DepositID          uint64 `json:"deposit_id"`
	TxHash             string `json:"tx_hash"`
	BlockNumber        uint64 `json:"block_number"`

	FillAmount        string `json:"fill_amount,omitempty"`
	TotalFilledAmount string `json:"total_filled_amount,omitempty"`
	RealizedLpFeePct  string `json:"realized_lp_fee_pct,omitempty"`

	// v2
	AppliedRelayerFeePct string `json:"applied_relayer_fee_pct,omitempty"`

	// v2.5
	UpdatedRelayerFeePct string `json:"updated_relayer_fee_pct,omitempty"`
	IsSlowRelay          *bool  `json:"is_slow_relay,omitempty"`

	// v3
	OutputAmount        string `json:"output_amount,omitempty"`
	UpdatedOutputAmount string `json:"updated_output_amount,omitempty"`
	FillType            *uint8 `json:"fill_type,omitempty"`
}

// SpeedUpMessage carries one decoded speed-up event.
type SpeedUpMessage struct {
	Version             string `json:"version"`
	OriginChainID       uint64 `json:"origin_chain_id"`
	DepositID           uint64 `json:"deposit_id"`
	TxHash              string `json:"tx_hash"`
	BlockNumber         uint64 `json:"block_number"`
	NewRelayerFeePct    string `json:"new_relayer_fee_pct,omitempty"`
	UpdatedOutputAmount string `json:"updated_output_amount,omitempty"`
}

// ClaimMessage carries one decoded rewards-claimed event.
type ClaimMessage struct {
	ChainID     uint64    `json:"chain_id"`
	Account     string    `json:"account"`
	WindowIndex int64     `json:"window_index"`
	Amount      string    `json:"amount"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    int64     `json:"log_index"`
	BlockNumber uint64    `json:"block_number"`
	ClaimedAt   time.Time `json:"claimed_at"`
}
