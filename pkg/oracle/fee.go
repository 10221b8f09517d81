package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/config"
)

// FeeOracle suggests a relayer fee percentage for a route and amount.
type FeeOracle struct {
	cfg    *config.OraclesConfig
	client *http.Client
	logger *zap.Logger
}

// NewFeeOracle creates a fee oracle.
func NewFeeOracle(cfg *config.OraclesConfig, logger *zap.Logger) *FeeOracle {
	return &FeeOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type feeResponse struct {
	RelayerFeePct string `json:"relayer_fee_pct"`
}

// SuggestedRelayerFeePct returns the suggested relayer fee for a transfer as
// a wei-pct integer.
func (o *FeeOracle) SuggestedRelayerFeePct(ctx context.Context, amount *big.Int, tokenAddr string, originChainID, destinationChainID uint64) (*big.Int, error) {
	endpoint, err := url.Parse(o.cfg.FeeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid fee oracle url: %w", err)
	}
	query := endpoint.Query()
	query.Set("amount", amount.String())
	query.Set("token", tokenAddr)
	query.Set("originChainId", strconv.FormatUint(originChainID, 10))
	query.Set("destinationChainId", strconv.FormatUint(destinationChainID, 10))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("fee", "error").Inc()
		return nil, fmt.Errorf("fee oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.OracleRequests.WithLabelValues("fee", "error").Inc()
		return nil, fmt.Errorf("fee oracle returned status %d", resp.StatusCode)
	}

	var body feeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.OracleRequests.WithLabelValues("fee", "error").Inc()
		return nil, fmt.Errorf("failed to decode fee oracle response: %w", err)
	}

	pct, ok := new(big.Int).SetString(body.RelayerFeePct, 10)
	if !ok {
		metrics.OracleRequests.WithLabelValues("fee", "error").Inc()
		return nil, fmt.Errorf("fee oracle returned non-numeric fee %q", body.RelayerFeePct)
	}

	metrics.OracleRequests.WithLabelValues("fee", "ok").Inc()
	return pct, nil
}
