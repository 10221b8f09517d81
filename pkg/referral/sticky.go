package referral

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/db"
)

// Propagator recomputes sticky referral attribution for one depositor.
// Propagation always walks the full history in deposit-date order, so the
// result is the same no matter which deposit triggered it or how tasks were
// interleaved. Deposits without a date yet are excluded; they get their turn
// once block-date resolution lands and re-triggers propagation.
type Propagator struct {
	deposits *db.DepositStore
	rewards  *db.RewardStore
	logger   *zap.Logger
}

// NewPropagator creates a propagator.
func NewPropagator(deposits *db.DepositStore, rewards *db.RewardStore, logger *zap.Logger) *Propagator {
	return &Propagator{deposits: deposits, rewards: rewards, logger: logger}
}

// Propagate walks a depositor's dated deposits ascending and assigns each
// one the nearest earlier referral address. A reward claim observed between
// two deposits resets the carried attribution, so post-claim deposits start
// a fresh chain.
func (p *Propagator) Propagate(ctx context.Context, depositor string) error {
	deposits, err := p.deposits.ListByDepositorOrdered(ctx, depositor)
	if err != nil {
		return err
	}
	if len(deposits) == 0 {
		return nil
	}

	claims, err := p.rewards.ClaimsForAccount(ctx, depositor)
	if err != nil {
		return err
	}

	var carry *string
	claimIdx := 0
	for _, deposit := range deposits {
		// Consume every claim that happened before this deposit; any such
		// claim settles the earlier chain and resets attribution.
		for claimIdx < len(claims) && deposit.DepositDate != nil &&
			!claims[claimIdx].ClaimedAt.After(*deposit.DepositDate) {
			carry = nil
			claimIdx++
		}

		if deposit.ReferralAddress != nil {
			addr := *deposit.ReferralAddress
			carry = &addr
		}

		if !equalPtr(deposit.StickyReferralAddress, carry) {
			if err := p.deposits.SetStickyReferralAddress(ctx, deposit.ID, carry); err != nil {
				return err
			}
			p.logger.Debug("sticky referral updated",
				zap.Int64("deposit_pk", deposit.ID),
				zap.String("depositor", depositor),
				zap.Stringp("sticky", carry))
		}
	}
	return nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
