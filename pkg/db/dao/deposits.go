package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// DepositDao maps directly to the 'deposits' table in PostgreSQL. One row per
// on-chain transfer initiation, unique on (deposit_id, origin_chain_id).
// Numeric fee fields hold 1e18 fixed-point integers serialized as strings.
type DepositDao struct {
	bun.BaseModel `bun:"table:deposits,alias:d"`

	ID                 int64  `json:"id" bun:",pk,autoincrement"`
	DepositID          int64  `json:"deposit_id" bun:"deposit_id,notnull"`
	OriginChainID      int64  `json:"origin_chain_id" bun:"origin_chain_id,notnull"`
	DestinationChainID int64  `json:"destination_chain_id" bun:"destination_chain_id,notnull"`
	DepositTxHash      string `json:"deposit_tx_hash" bun:"deposit_tx_hash,notnull,type:VARCHAR(66)"`
	BlockNumber        int64  `json:"block_number" bun:"block_number,notnull"`
	ContractVersion    string `json:"contract_version" bun:"contract_version,notnull,type:VARCHAR(8)"`

	DepositorAddr      string  `json:"depositor_addr" bun:"depositor_addr,notnull,type:VARCHAR(42)"`
	RecipientAddr      string  `json:"recipient_addr" bun:"recipient_addr,notnull,type:VARCHAR(42)"`
	TokenAddr          string  `json:"token_addr" bun:"token_addr,notnull,type:VARCHAR(42)"`
	OutputTokenAddress *string `json:"output_token_address,omitempty" bun:"output_token_address,type:VARCHAR(42)"`

	Amount       string  `json:"amount" bun:"amount,notnull,type:NUMERIC(78,0)"`
	Filled       string  `json:"filled" bun:"filled,notnull,type:NUMERIC(78,0),default:'0'"`
	OutputAmount *string `json:"output_amount,omitempty" bun:"output_amount,type:NUMERIC(78,0)"`

	Status              string     `json:"status" bun:"status,notnull,type:VARCHAR(10),default:'pending'"`
	DepositDate         *time.Time `json:"deposit_date,omitempty" bun:"deposit_date"`
	FilledDate          *time.Time `json:"filled_date,omitempty" bun:"filled_date"`
	FillDeadline        *time.Time `json:"fill_deadline,omitempty" bun:"fill_deadline"`
	ExclusivityDeadline *time.Time `json:"exclusivity_deadline,omitempty" bun:"exclusivity_deadline"`

	RealizedLpFeePct       *string       `json:"realized_lp_fee_pct,omitempty" bun:"realized_lp_fee_pct,type:NUMERIC(40,0)"`
	DepositRelayerFeePct   *string       `json:"deposit_relayer_fee_pct,omitempty" bun:"deposit_relayer_fee_pct,type:NUMERIC(40,0)"`
	InitialRelayerFeePct   *string       `json:"initial_relayer_fee_pct,omitempty" bun:"initial_relayer_fee_pct,type:NUMERIC(40,0)"`
	SuggestedRelayerFeePct *string       `json:"suggested_relayer_fee_pct,omitempty" bun:"suggested_relayer_fee_pct,type:NUMERIC(40,0)"`
	BridgeFeePct           *string       `json:"bridge_fee_pct,omitempty" bun:"bridge_fee_pct,type:NUMERIC(40,0)"`
	FeeBreakdown           *FeeBreakdown `json:"fee_breakdown,omitempty" bun:"fee_breakdown,type:jsonb"`

	TokenID       *int64  `json:"token_id,omitempty" bun:"token_id"`
	PriceID       *int64  `json:"price_id,omitempty" bun:"price_id"`
	OutputTokenID *int64  `json:"output_token_id,omitempty" bun:"output_token_id"`
	OutputPriceID *int64  `json:"output_price_id,omitempty" bun:"output_price_id"`
	AcxUsdPrice   *string `json:"acx_usd_price,omitempty" bun:"acx_usd_price,type:NUMERIC(24,8)"`

	ReferralAddress       *string `json:"referral_address,omitempty" bun:"referral_address,type:VARCHAR(42)"`
	StickyReferralAddress *string `json:"sticky_referral_address,omitempty" bun:"sticky_referral_address,type:VARCHAR(42)"`
	RewardsWindowIndex    *int64  `json:"rewards_window_index,omitempty" bun:"rewards_window_index"`

	SwapTokenAddress *string `json:"swap_token_address,omitempty" bun:"swap_token_address,type:VARCHAR(42)"`
	SwapTokenAmount  *string `json:"swap_token_amount,omitempty" bun:"swap_token_amount,type:NUMERIC(78,0)"`

	// V3 relay identity inputs, kept so the fill status key can be recomputed
	// for the missed-fill probe.
	ExclusiveRelayer *string `json:"exclusive_relayer,omitempty" bun:"exclusive_relayer,type:VARCHAR(42)"`
	Message          []byte  `json:"message,omitempty" bun:"message,type:BYTEA"`

	FillTxs  []FillTx  `json:"fill_txs" bun:"fill_txs,type:jsonb"`
	SpeedUps []SpeedUp `json:"speed_ups" bun:"speed_ups,type:jsonb"`

	Token       *TokenDao         `json:"token,omitempty" bun:"rel:belongs-to,join:token_id=id"`
	Price       *HistoricPriceDao `json:"price,omitempty" bun:"rel:belongs-to,join:price_id=id"`
	OutputToken *TokenDao         `json:"output_token,omitempty" bun:"rel:belongs-to,join:output_token_id=id"`
	OutputPrice *HistoricPriceDao `json:"output_price,omitempty" bun:"rel:belongs-to,join:output_price_id=id"`

	CreatedAt time.Time `json:"created_at" bun:"created_at,nullzero,default:now()"`
	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,nullzero,default:now()"`
}

// FillTx is one observed fill, stored as a JSONB array element on the deposit.
// Shape mirrors the fill event discriminant so downstream consumers never
// re-infer it.
type FillTx struct {
	Hash                 string     `json:"hash"`
	Shape                string     `json:"shape"`
	BlockNumber          int64      `json:"block_number"`
	FillAmount           string     `json:"fill_amount,omitempty"`
	TotalFilledAmount    string     `json:"total_filled_amount,omitempty"`
	AppliedRelayerFeePct string     `json:"applied_relayer_fee_pct,omitempty"`
	RealizedLpFeePct     string     `json:"realized_lp_fee_pct,omitempty"`
	OutputAmount         string     `json:"output_amount,omitempty"`
	FillType             *uint8     `json:"fill_type,omitempty"`
	Date                 *time.Time `json:"date,omitempty"`
}

// SpeedUp is one fee-update request, stored newest first.
type SpeedUp struct {
	Hash                string `json:"hash"`
	BlockNumber         int64  `json:"block_number"`
	NewRelayerFeePct    string `json:"new_relayer_fee_pct,omitempty"`
	UpdatedOutputAmount string `json:"updated_output_amount,omitempty"`
}

// FeeBreakdown carries the structured fee decomposition in both wei-pct and
// USD terms. V3 deposits leave the relayer component fields empty because the
// contract does not expose them per component.
type FeeBreakdown struct {
	LpFeePct           string `json:"lp_fee_pct,omitempty"`
	LpFeeUsd           string `json:"lp_fee_usd,omitempty"`
	RelayCapitalFeePct string `json:"relay_capital_fee_pct,omitempty"`
	RelayCapitalFeeUsd string `json:"relay_capital_fee_usd,omitempty"`
	RelayGasFeePct     string `json:"relay_gas_fee_pct,omitempty"`
	RelayGasFeeUsd     string `json:"relay_gas_fee_usd,omitempty"`
	TotalBridgeFeePct  string `json:"total_bridge_fee_pct,omitempty"`
	TotalBridgeFeeUsd  string `json:"total_bridge_fee_usd,omitempty"`
}
