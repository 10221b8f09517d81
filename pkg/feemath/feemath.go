// Package feemath implements the fixed-point percentage arithmetic used by
// the fee pipeline. Percentages are integers scaled by 1e18 ("wei-pct"):
// 1e18 is 100%, 1e16 is 1%.
package feemath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// OneHundredPct is the wei-pct fixed point scale (100% == 1e18).
	OneHundredPct = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// MaxBridgeFeePct is the protocol-wide bridge fee cap: 12 basis points,
	// 0.0012 * 1e18 in fixed point.
	MaxBridgeFeePct = big.NewInt(1_200_000_000_000_000)

	// SuggestedFeeFallbackPct is the fixed 1bp estimate used for deposits too
	// old to price through the fee oracle.
	SuggestedFeeFallbackPct = big.NewInt(100_000_000_000_000)
)

// PctOf returns amount * pct / 1e18, floored. It is the wei-pct analogue of
// "pct percent of amount".
func PctOf(amount, pct *big.Int) *big.Int {
	product := new(big.Int).Mul(amount, pct)
	return product.Quo(product, OneHundredPct)
}

// FillPortion is one fill's contribution to the blended relayer fee.
type FillPortion struct {
	FillAmount    *big.Int
	RelayerFeePct *big.Int
}

// BlendedRelayerFeePct computes the weighted relayer fee across fills:
// sum(fillAmount * feePct over fills with a non-zero fee) / depositAmount,
// floored toward zero. A zero deposit amount yields zero.
func BlendedRelayerFeePct(fills []FillPortion, depositAmount *big.Int) *big.Int {
	if depositAmount == nil || depositAmount.Sign() == 0 {
		return new(big.Int)
	}
	sum := new(big.Int)
	for _, fill := range fills {
		if fill.RelayerFeePct == nil || fill.RelayerFeePct.Sign() == 0 {
			continue
		}
		if fill.FillAmount == nil {
			continue
		}
		sum.Add(sum, new(big.Int).Mul(fill.FillAmount, fill.RelayerFeePct))
	}
	return sum.Quo(sum, depositAmount)
}

// CapBridgeFeePct clamps a bridge fee percentage to [0, MaxBridgeFeePct].
func CapBridgeFeePct(pct *big.Int) *big.Int {
	if pct == nil || pct.Sign() < 0 {
		return new(big.Int)
	}
	if pct.Cmp(MaxBridgeFeePct) > 0 {
		return new(big.Int).Set(MaxBridgeFeePct)
	}
	return new(big.Int).Set(pct)
}

// BridgeFeePct returns the capped total bridge fee: blended relayer fee plus
// the latest fill's realized LP fee, clamped to the protocol cap and floored
// at zero.
func BridgeFeePct(blendedRelayerFeePct, realizedLpFeePct *big.Int) *big.Int {
	total := new(big.Int)
	if blendedRelayerFeePct != nil {
		total.Add(total, blendedRelayerFeePct)
	}
	if realizedLpFeePct != nil {
		total.Add(total, realizedLpFeePct)
	}
	return CapBridgeFeePct(total)
}

// PctToDecimal converts a wei-pct value to a plain decimal fraction
// (1e16 -> 0.01).
func PctToDecimal(pct *big.Int) decimal.Decimal {
	if pct == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(pct, -18)
}

// TokenAmountToDecimal converts a raw token amount to its human units given
// the token's decimals.
func TokenAmountToDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// AmountUSD values a raw token amount in USD: amount scaled by token decimals,
// multiplied by the unit price.
func AmountUSD(amount *big.Int, decimals int32, unitPriceUSD decimal.Decimal) decimal.Decimal {
	return TokenAmountToDecimal(amount, decimals).Mul(unitPriceUSD)
}
