package oracle

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/config"
)

func testOracleConfig(priceURL, feeURL string) *config.OraclesConfig {
	return &config.OraclesConfig{
		PriceURL:  priceURL,
		FeeURL:    feeURL,
		Timeout:   5 * time.Second,
		AcxSymbol: "ACX",
		AcxLaunch: "2022-11-28",
		AcxPreUSD: "0.1",
	}
}

func TestPriceOracleFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WETH", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"usd":"3500.25"}`))
	}))
	defer server.Close()

	o, err := NewPriceOracle(testOracleConfig(server.URL, ""), nil, zap.NewNop())
	require.NoError(t, err)

	usd, err := o.fetch(context.Background(), "WETH", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "3500.25", usd)
}

func TestPriceOraclePreLaunchConstant(t *testing.T) {
	queried := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queried = true
		_, _ = w.Write([]byte(`{"usd":"1.23"}`))
	}))
	defer server.Close()

	o, err := NewPriceOracle(testOracleConfig(server.URL, ""), nil, zap.NewNop())
	require.NoError(t, err)

	usd, err := o.fetch(context.Background(), "ACX", time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "0.1", usd)
	assert.False(t, queried, "oracle queried for a pre-launch ACX price")

	// On and after the launch date the oracle is authoritative again.
	usd, err = o.fetch(context.Background(), "ACX", time.Date(2022, 11, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1.23", usd)
}

func TestPriceOracleRejectsNonNumericPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usd":"n/a"}`))
	}))
	defer server.Close()

	o, err := NewPriceOracle(testOracleConfig(server.URL, ""), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = o.fetch(context.Background(), "WETH", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestPriceOracleInvalidLaunchDate(t *testing.T) {
	cfg := testOracleConfig("http://localhost", "")
	cfg.AcxLaunch = "not-a-date"
	_, err := NewPriceOracle(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestFeeOracleSuggestedFee(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "1", r.URL.Query().Get("originChainId"))
		assert.Equal(t, "10", r.URL.Query().Get("destinationChainId"))
		_, _ = w.Write([]byte(`{"relayer_fee_pct":"100000000000000"}`))
	}))
	defer server.Close()

	o := NewFeeOracle(testOracleConfig("", server.URL), zap.NewNop())

	pct, err := o.SuggestedRelayerFeePct(context.Background(), big.NewInt(1_000_000),
		"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000", pct.String())
}

func TestFeeOracleErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	o := NewFeeOracle(testOracleConfig("", server.URL), zap.NewNop())

	_, err := o.SuggestedRelayerFeePct(context.Background(), big.NewInt(1), "0x00", 1, 10)
	assert.Error(t, err)
}
