// Package oracle wraps the external HTTP oracles the pipeline consumes:
// historic token prices and suggested relayer fees.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/internal/metrics"
	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

const dateLayout = "2006-01-02"

// PriceOracle resolves historic daily USD prices, caching results in the
// historic price table.
type PriceOracle struct {
	cfg    *config.OraclesConfig
	client *http.Client
	cache  *db.CacheStore
	logger *zap.Logger

	acxLaunch time.Time
}

// NewPriceOracle creates a price oracle. The configured ACX launch date must
// parse; prices before it are served from the configured constant because no
// market existed yet.
func NewPriceOracle(cfg *config.OraclesConfig, cache *db.CacheStore, logger *zap.Logger) (*PriceOracle, error) {
	launch, err := time.Parse(dateLayout, cfg.AcxLaunch)
	if err != nil {
		return nil, fmt.Errorf("invalid acx launch date %q: %w", cfg.AcxLaunch, err)
	}
	return &PriceOracle{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		cache:     cache,
		logger:    logger,
		acxLaunch: launch,
	}, nil
}

type priceResponse struct {
	USD string `json:"usd"`
}

// HistoricPrice returns the USD price of a symbol on a given date, consulting
// the cache before the oracle.
func (o *PriceOracle) HistoricPrice(ctx context.Context, symbol string, date time.Time) (*dao.HistoricPriceDao, error) {
	cached, err := o.cache.GetPrice(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	usd, err := o.fetch(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	return o.cache.PutPrice(ctx, &dao.HistoricPriceDao{
		Symbol: symbol,
		Date:   date,
		USD:    usd,
	})
}

func (o *PriceOracle) fetch(ctx context.Context, symbol string, date time.Time) (string, error) {
	if symbol == o.cfg.AcxSymbol && date.Before(o.acxLaunch) {
		return o.cfg.AcxPreUSD, nil
	}

	endpoint, err := url.Parse(o.cfg.PriceURL)
	if err != nil {
		return "", fmt.Errorf("invalid price oracle url: %w", err)
	}
	query := endpoint.Query()
	query.Set("symbol", symbol)
	query.Set("date", date.Format(dateLayout))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("price", "error").Inc()
		return "", fmt.Errorf("price oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.OracleRequests.WithLabelValues("price", "error").Inc()
		return "", fmt.Errorf("price oracle returned status %d for %s@%s", resp.StatusCode, symbol, date.Format(dateLayout))
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.OracleRequests.WithLabelValues("price", "error").Inc()
		return "", fmt.Errorf("failed to decode price oracle response: %w", err)
	}

	usd, err := decimal.NewFromString(body.USD)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("price", "error").Inc()
		return "", fmt.Errorf("price oracle returned non-numeric price %q: %w", body.USD, err)
	}

	metrics.OracleRequests.WithLabelValues("price", "ok").Inc()
	return usd.String(), nil
}
