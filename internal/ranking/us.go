// Package ranking builds "top gainers" lists for the US and Argentine
// markets. Each service degrades through the same ladder when the live
// path fails: stale cache, then mock rows (when enabled), then an
// explicit unavailable result. Callers always get a well-formed
// RankingResult; errors never escape the service boundary.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/cache"
	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/series"
)

const topN = 10

var errEmptyPool = errors.New("empty candidate pool")

// MarketDataClient is the US-market provider surface the service needs.
// *external.AlphaVantageClient satisfies it.
type MarketDataClient interface {
	TopMovers(ctx context.Context) (*external.TopMoversPayload, error)
	IntradaySeries(ctx context.Context, symbol string) (map[string]any, error)
	DailySeries(ctx context.Context, symbol string, full bool) (map[string]any, error)
}

// NameEnricher fills in company names for a ranked batch.
type NameEnricher interface {
	EnrichStocks(ctx context.Context, stocks []models.Stock, maxLookups int)
}

type USConfig struct {
	RankingTTL       time.Duration
	PoolTTL          time.Duration
	IntradayBudget   int
	DailyBudget      int
	NameLookupBudget int
	PoolSize         int
	AllowMock        bool
}

// candidate is one parsed row of the top-movers pool.
type candidate struct {
	Ticker        string
	Price         float64
	PercentChange float64
}

type USService struct {
	client   MarketDataClient
	names    NameEnricher
	cfg      USConfig
	logger   *zap.Logger
	rankings *cache.Store[models.RankingResult]
	pool     *cache.Store[[]candidate]
	now      func() time.Time
}

func NewUSService(client MarketDataClient, names NameEnricher, cfg USConfig, logger *zap.Logger, now func() time.Time) *USService {
	if now == nil {
		now = time.Now
	}
	return &USService{
		client:   client,
		names:    names,
		cfg:      cfg,
		logger:   logger,
		rankings: cache.New[models.RankingResult](cfg.RankingTTL, now),
		pool:     cache.New[[]candidate](cfg.PoolTTL, now),
		now:      now,
	}
}

// TopGainers returns the ranked top-10 for a timeframe. Live data is
// preferred; otherwise the result is served from the stale ranking
// cache, mock rows, or an explicit UNAVAILABLE marker, in that order.
func (s *USService) TopGainers(ctx context.Context, timeframe models.Range) models.RankingResult {
	if !models.IsRankingTimeframe(timeframe) {
		timeframe = models.Range1D
	}
	key := string(timeframe)

	if result, ok := s.rankings.Get(key); ok {
		result.Source = models.SourceCache
		return result
	}

	result, err := s.fetchLive(ctx, timeframe)
	if err == nil {
		s.rankings.Set(key, result)
		return result
	}
	s.logger.Warn("us ranking live fetch failed",
		zap.String("timeframe", string(timeframe)),
		zap.Error(err))

	if stale, ok, _ := s.rankings.Lookup(key); ok && len(stale.Stocks) > 0 {
		stale.Source = models.SourceCache
		stale.Stale = true
		return stale
	}
	if s.cfg.AllowMock {
		return models.RankingResult{Stocks: MockStocks(models.MarketUS, s.now()), Source: models.SourceMock}
	}
	return models.RankingResult{Stocks: []models.Stock{}, Source: models.SourceUnavailable, Stale: true}
}

func (s *USService) fetchLive(ctx context.Context, timeframe models.Range) (models.RankingResult, error) {
	pool, err := s.candidatePool(ctx)
	if err != nil {
		return models.RankingResult{}, err
	}

	// 1H gets the tighter intraday request budget. 1D is also served from
	// intraday bars but shares the daily budget with the longer windows.
	budget := s.cfg.DailyBudget
	if timeframe == models.Range1H {
		budget = s.cfg.IntradayBudget
	}
	if budget > len(pool) {
		budget = len(pool)
	}

	// Fan out per-ticker history fetches. The budget caps the number of
	// issued requests, not the number that succeed.
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		ranked  []models.Stock
		fetched = make(map[string]bool, budget)
	)
	for _, c := range pool[:budget] {
		wg.Add(1)
		go func(c candidate) {
			defer wg.Done()
			stock, err := s.fetchSnapshot(ctx, c.Ticker, timeframe)
			if err != nil {
				s.logger.Warn("ticker snapshot failed",
					zap.String("ticker", c.Ticker),
					zap.String("timeframe", string(timeframe)),
					zap.Error(err))
				return
			}
			mu.Lock()
			ranked = append(ranked, stock)
			fetched[c.Ticker] = true
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PercentChange > ranked[j].PercentChange
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	// Fill remaining slots from the pool's quote data, in pool order.
	for _, c := range pool {
		if len(ranked) >= topN {
			break
		}
		if fetched[c.Ticker] {
			continue
		}
		fetched[c.Ticker] = true
		snap := series.FromQuote(c.Price, c.PercentChange, s.now())
		ranked = append(ranked, models.Stock{
			ID:            c.Ticker,
			Ticker:        c.Ticker,
			Market:        models.MarketUS,
			Price:         snap.Price,
			PercentChange: snap.PercentChange,
			Sparkline:     snap.Sparkline,
		})
	}

	if len(ranked) == 0 {
		return models.RankingResult{}, errEmptyPool
	}

	nameBudget := s.cfg.NameLookupBudget
	if timeframe == models.Range1H {
		nameBudget = 0
	}
	if s.names != nil {
		s.names.EnrichStocks(ctx, ranked, nameBudget)
	}
	return models.RankingResult{Stocks: ranked, Source: models.SourceLive}, nil
}

func (s *USService) fetchSnapshot(ctx context.Context, ticker string, timeframe models.Range) (models.Stock, error) {
	var (
		payload map[string]any
		err     error
	)
	if timeframe.IsIntraday() {
		payload, err = s.client.IntradaySeries(ctx, ticker)
	} else {
		payload, err = s.client.DailySeries(ctx, ticker, needsFullHistory(timeframe))
	}
	if err != nil {
		return models.Stock{}, err
	}

	var points []models.SparklinePoint
	if timeframe.IsIntraday() {
		points = series.ParseIntraday(payload)
	} else {
		points = series.ParseDaily(payload)
	}

	snap, ok := series.FromSeries(points, timeframe, s.now().UnixMilli(), false)
	if !ok {
		return models.Stock{}, fmt.Errorf("insufficient series data for %s %s", ticker, timeframe)
	}
	return models.Stock{
		ID:            ticker,
		Ticker:        ticker,
		Market:        models.MarketUS,
		Price:         snap.Price,
		PercentChange: snap.PercentChange,
		Sparkline:     snap.Sparkline,
	}, nil
}

// candidatePool merges gainers, losers and most-active into one deduped
// list, cached briefly to limit provider load across timeframes.
func (s *USService) candidatePool(ctx context.Context) ([]candidate, error) {
	if pool, ok := s.pool.Get("pool"); ok {
		return pool, nil
	}

	movers, err := s.client.TopMovers(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var pool []candidate
	for _, rows := range [][]external.TopMoverRow{movers.TopGainers, movers.TopLosers, movers.MostActive} {
		for _, row := range rows {
			if len(pool) >= s.cfg.PoolSize {
				break
			}
			c, ok := parseCandidate(row)
			if !ok || seen[c.Ticker] {
				continue
			}
			seen[c.Ticker] = true
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, errEmptyPool
	}
	s.pool.Set("pool", pool)
	return pool, nil
}

// parseCandidate decodes the provider's string fields. Percent values
// arrive like "133.33%". Non-finite rows are dropped, never zero-filled.
func parseCandidate(row external.TopMoverRow) (candidate, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(row.Ticker))
	if ticker == "" {
		return candidate{}, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
	if err != nil || !isFinite(price) || price <= 0 {
		return candidate{}, false
	}
	pcRaw := strings.TrimSuffix(strings.TrimSpace(row.ChangePercentage), "%")
	pc, err := strconv.ParseFloat(pcRaw, 64)
	if err != nil || !isFinite(pc) {
		return candidate{}, false
	}
	return candidate{Ticker: ticker, Price: price, PercentChange: pc}, true
}

// needsFullHistory reports whether the compact daily window (about 100
// trading days) is too short for the timeframe.
func needsFullHistory(r models.Range) bool {
	switch r {
	case models.Range6M, models.Range1Y, models.RangeYTD:
		return true
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
