package indexerdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"
)

// Referral rate tiers and the reward multiplier cutover are baked into the
// view definition so a refresh recomputes every row against the current
// aggregate stats. Attribution follows the sticky referral when one is set:
// later deposits of a referred depositor carry only sticky_referral_address,
// and they count toward the referrer's stats and rewards all the same.
const createReferralStatsSQL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS deposit_referral_stats AS
SELECT
	COALESCE(d.sticky_referral_address, d.referral_address) AS referral_address,
	COUNT(*) AS referral_count,
	COALESCE(SUM(d.amount::numeric / POWER(10, t.decimals) * p.usd), 0) AS referral_volume_usd
FROM deposits d
JOIN tokens t ON t.id = d.token_id
JOIN historic_market_prices p ON p.id = d.price_id
WHERE COALESCE(d.sticky_referral_address, d.referral_address) IS NOT NULL
	AND d.deposit_date IS NOT NULL
	AND d.status = 'filled'
GROUP BY COALESCE(d.sticky_referral_address, d.referral_address)
`

const createFilteredReferralsSQL = `
CREATE OR REPLACE VIEW deposits_filtered_referrals AS
SELECT
	d.*,
	COALESCE(d.sticky_referral_address, d.referral_address) AS attribution_address,
	d.amount::numeric / POWER(10, t.decimals) * p.usd AS amount_usd
FROM deposits d
JOIN tokens t ON t.id = d.token_id
JOIN historic_market_prices p ON p.id = d.price_id
WHERE COALESCE(d.sticky_referral_address, d.referral_address) IS NOT NULL
	AND d.deposit_date IS NOT NULL
	AND d.status = 'filled'
`

const createDepositsMVSQL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS deposits_mv AS
SELECT
	d.id,
	d.deposit_id,
	d.origin_chain_id,
	d.destination_chain_id,
	d.depositor_addr,
	d.referral_address,
	d.sticky_referral_address,
	d.attribution_address,
	d.deposit_date,
	d.rewards_window_index,
	d.acx_usd_price,
	d.bridge_fee_pct,
	d.amount_usd,
	CASE
		WHEN s.referral_count >= 20 OR s.referral_volume_usd >= 500000 THEN 0.8
		WHEN s.referral_count >= 10 OR s.referral_volume_usd >= 250000 THEN 0.75
		WHEN s.referral_count >= 5  OR s.referral_volume_usd >= 100000 THEN 0.7
		WHEN s.referral_count >= 3  OR s.referral_volume_usd >= 50000  THEN 0.6
		ELSE 0.4
	END AS referral_rate,
	CASE
		WHEN d.deposit_date < '2022-07-22'::date THEN 3
		ELSE 2
	END AS multiplier
FROM deposits_filtered_referrals d
LEFT JOIN deposit_referral_stats s ON s.referral_address = d.attribution_address
`

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating referral views...")
		if _, err := db.ExecContext(ctx, createReferralStatsSQL); err != nil {
			return err
		}
		// CONCURRENTLY refreshes require a unique index on each matview
		if _, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposit_referral_stats_address ON deposit_referral_stats (referral_address)`); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, createFilteredReferralsSQL); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, createDepositsMVSQL); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_mv_id ON deposits_mv (id)`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping referral views...")
		if _, err := db.ExecContext(ctx, `DROP MATERIALIZED VIEW IF EXISTS deposits_mv`); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `DROP VIEW IF EXISTS deposits_filtered_referrals`); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `DROP MATERIALIZED VIEW IF EXISTS deposit_referral_stats`)
		return err
	})
}
