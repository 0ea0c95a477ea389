// Package detail serves per-ticker, per-range price history. US tickers
// are fetched directly from the series provider; Argentine tickers go
// through the aggregation function's single-ticker mode and get their
// sparkline re-sliced to the exact requested range.
package detail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/cache"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/series"
)

// SeriesClient is the US-market time-series surface.
// *external.AlphaVantageClient satisfies it.
type SeriesClient interface {
	IntradaySeries(ctx context.Context, symbol string) (map[string]any, error)
	DailySeries(ctx context.Context, symbol string, full bool) (map[string]any, error)
}

// MarketFunction is the Argentine aggregation entry point.
type MarketFunction interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

type Service struct {
	alpha  SeriesClient
	fn     MarketFunction
	cache  *cache.Store[models.StockDetail]
	logger *zap.Logger
	now    func() time.Time
}

func NewService(alpha SeriesClient, fn MarketFunction, ttl time.Duration, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		alpha:  alpha,
		fn:     fn,
		cache:  cache.New[models.StockDetail](ttl, now),
		logger: logger,
		now:    now,
	}
}

// Refresh drops every cached entry. The scheduler calls it after a
// background market refresh so stale details do not outlive new data.
func (s *Service) Refresh() {
	s.cache.Reset()
}

// Fetch returns the detail view for one ticker. Cache hits are always
// re-tagged CACHE, even when the underlying fetch was live, so the
// caller knows the value may be up to the TTL old.
func (s *Service) Fetch(ctx context.Context, market models.Market, ticker string, r models.Range) (models.StockDetail, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	key := fmt.Sprintf("%s:%s:%s", market, ticker, r)

	if d, ok := s.cache.Get(key); ok {
		d.Source = models.SourceCache
		return d, nil
	}

	var (
		d   models.StockDetail
		err error
	)
	if market == models.MarketUS {
		d, err = s.fetchUS(ctx, ticker, r)
	} else {
		d, err = s.fetchAR(ctx, ticker, r)
	}
	if err != nil {
		s.logger.Warn("detail fetch failed",
			zap.String("market", string(market)),
			zap.String("ticker", ticker),
			zap.String("range", string(r)),
			zap.Error(err))
		return models.StockDetail{}, err
	}

	s.cache.Set(key, d)
	return d, nil
}

func (s *Service) fetchUS(ctx context.Context, ticker string, r models.Range) (models.StockDetail, error) {
	var (
		payload map[string]any
		err     error
	)
	if r.IsIntraday() {
		payload, err = s.alpha.IntradaySeries(ctx, ticker)
	} else {
		payload, err = s.alpha.DailySeries(ctx, ticker, true)
	}
	if err != nil {
		return models.StockDetail{}, fmt.Errorf("us detail fetch for %s: %w", ticker, err)
	}

	var points []models.SparklinePoint
	if r.IsIntraday() {
		points = series.ParseIntraday(payload)
	} else {
		points = series.ParseDaily(payload)
	}

	sliced := series.SliceByRange(points, r, 0)
	if len(sliced) < 2 {
		return models.StockDetail{}, fmt.Errorf("insufficient detail data for %s in range %s", ticker, r)
	}

	return models.StockDetail{
		Ticker:        ticker,
		Market:        models.MarketUS,
		Price:         sliced[len(sliced)-1].Value,
		PercentChange: series.PercentChange(sliced),
		Series:        sliced,
		Range:         r,
		Source:        models.SourceLive,
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) fetchAR(ctx context.Context, ticker string, r models.Range) (models.StockDetail, error) {
	if s.fn == nil {
		return models.StockDetail{}, fmt.Errorf("argentina aggregation is not configured")
	}

	res, err := s.fn.Run(ctx, aggregator.Request{Timeframe: r, Ticker: ticker})
	if err != nil {
		return models.StockDetail{}, fmt.Errorf("ar detail fetch for %s: %w", ticker, err)
	}
	if len(res.Stocks) == 0 {
		return models.StockDetail{}, fmt.Errorf("no ar detail data for %s", ticker)
	}

	matched := res.Stocks[0]
	for _, stock := range res.Stocks {
		if strings.EqualFold(stock.Ticker, ticker) {
			matched = stock
			break
		}
	}

	sliced := series.SliceByRange(matched.Sparkline, r, 0)
	if len(sliced) == 0 {
		return models.StockDetail{}, fmt.Errorf("empty ar series for %s", ticker)
	}

	return models.StockDetail{
		Ticker:        strings.ToUpper(matched.Ticker),
		Market:        matched.Market,
		Price:         matched.Price,
		PercentChange: matched.PercentChange,
		Series:        sliced,
		Range:         r,
		Source:        detailSource(res.Source),
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

// detailSource maps the function's provenance vocabulary. Unlike the
// ranking client, an unrecognized label here means unavailable.
func detailSource(label string) models.Source {
	switch strings.ToLower(label) {
	case "live":
		return models.SourceLive
	case "cache", "cache_fallback":
		return models.SourceCache
	case "mock":
		return models.SourceMock
	default:
		return models.SourceUnavailable
	}
}
