package feemath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func pct(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test value " + s)
	}
	return v
}

func TestPctOf(t *testing.T) {
	// 1% of 1000 tokens (18 decimals)
	amount := pct("1000000000000000000000")
	onePct := pct("10000000000000000")

	got := PctOf(amount, onePct)
	want := pct("10000000000000000000")
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestBlendedRelayerFeePct(t *testing.T) {
	// Two fills of 400 and 600 units at 1% and 2% blend to 1.6%.
	fills := []FillPortion{
		{FillAmount: big.NewInt(400), RelayerFeePct: pct("10000000000000000")},
		{FillAmount: big.NewInt(600), RelayerFeePct: pct("20000000000000000")},
	}
	got := BlendedRelayerFeePct(fills, big.NewInt(1000))
	want := pct("16000000000000000")
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestBlendedRelayerFeePct_SkipsZeroFeeFills(t *testing.T) {
	fills := []FillPortion{
		{FillAmount: big.NewInt(500), RelayerFeePct: big.NewInt(0)},
		{FillAmount: big.NewInt(500), RelayerFeePct: pct("10000000000000000")},
	}
	got := BlendedRelayerFeePct(fills, big.NewInt(1000))
	want := pct("5000000000000000")
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestBlendedRelayerFeePct_ZeroDepositAmount(t *testing.T) {
	fills := []FillPortion{
		{FillAmount: big.NewInt(100), RelayerFeePct: pct("10000000000000000")},
	}
	if got := BlendedRelayerFeePct(fills, big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
	if got := BlendedRelayerFeePct(fills, nil); got.Sign() != 0 {
		t.Fatalf("expected zero for nil amount, got %s", got)
	}
}

func TestCapBridgeFeePct(t *testing.T) {
	cases := []struct {
		name string
		in   *big.Int
		want *big.Int
	}{
		{"nil floors to zero", nil, big.NewInt(0)},
		{"negative floors to zero", big.NewInt(-5), big.NewInt(0)},
		{"below cap passes through", big.NewInt(1_000_000_000_000_000), big.NewInt(1_000_000_000_000_000)},
		{"at cap passes through", MaxBridgeFeePct, MaxBridgeFeePct},
		{"above cap clamps", pct("5000000000000000000"), MaxBridgeFeePct},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CapBridgeFeePct(tc.in)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCapBridgeFeePct_DoesNotAliasCap(t *testing.T) {
	got := CapBridgeFeePct(pct("9000000000000000000"))
	got.Add(got, big.NewInt(1))
	if MaxBridgeFeePct.Cmp(big.NewInt(1_200_000_000_000_000)) != 0 {
		t.Fatal("cap constant was mutated through a returned value")
	}
}

func TestBridgeFeePct(t *testing.T) {
	// 0.05bp relayer + 0.05bp lp = 0.1bp, below the 12bp cap.
	blended := big.NewInt(5_000_000_000_000)
	lp := big.NewInt(5_000_000_000_000)
	got := BridgeFeePct(blended, lp)
	if got.Cmp(big.NewInt(10_000_000_000_000)) != 0 {
		t.Fatalf("expected sum, got %s", got)
	}

	// Sum past the cap clamps.
	got = BridgeFeePct(MaxBridgeFeePct, MaxBridgeFeePct)
	if got.Cmp(MaxBridgeFeePct) != 0 {
		t.Fatalf("expected cap, got %s", got)
	}

	if got := BridgeFeePct(nil, nil); got.Sign() != 0 {
		t.Fatalf("expected zero for nil inputs, got %s", got)
	}
}

func TestPctToDecimal(t *testing.T) {
	got := PctToDecimal(pct("10000000000000000"))
	if !got.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected 0.01, got %s", got)
	}
	if !PctToDecimal(nil).IsZero() {
		t.Fatal("expected zero for nil")
	}
}

func TestAmountUSD(t *testing.T) {
	// 2.5 tokens at 6 decimals, $4 each.
	amount := big.NewInt(2_500_000)
	got := AmountUSD(amount, 6, decimal.RequireFromString("4"))
	if !got.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
}
