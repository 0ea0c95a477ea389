package ranking

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/repository"
)

// MarketFunction is the Argentine aggregation entry point. In-process it
// is *aggregator.MarketService; a thin HTTP client can satisfy it too.
type MarketFunction interface {
	Run(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

// CacheReader reads the persisted Argentine market cache table.
type CacheReader interface {
	TopByTimeframe(ctx context.Context, timeframe models.Range, limit int) ([]repository.MarketRow, error)
}

type ARService struct {
	fn        MarketFunction
	cacheRepo CacheReader
	allowMock bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewARService builds the Argentine ranking client. cacheRepo may be nil
// when no database is configured; the cache tier is then skipped.
func NewARService(fn MarketFunction, cacheRepo CacheReader, allowMock bool, logger *zap.Logger, now func() time.Time) *ARService {
	if now == nil {
		now = time.Now
	}
	return &ARService{fn: fn, cacheRepo: cacheRepo, allowMock: allowMock, logger: logger, now: now}
}

// TopGainers asks the aggregation function for the watch-list ranking and
// degrades through the persisted cache table, mock rows, and UNAVAILABLE.
func (s *ARService) TopGainers(ctx context.Context, timeframe models.Range) models.RankingResult {
	if !models.IsRankingTimeframe(timeframe) {
		timeframe = models.Range1D
	}

	if s.fn != nil {
		res, err := s.fn.Run(ctx, aggregator.Request{Timeframe: timeframe})
		if err == nil && res != nil && len(res.Stocks) > 0 {
			stocks := make([]models.Stock, len(res.Stocks))
			copy(stocks, res.Stocks)
			sort.SliceStable(stocks, func(i, j int) bool {
				return stocks[i].PercentChange > stocks[j].PercentChange
			})
			if len(stocks) > topN {
				stocks = stocks[:topN]
			}
			return models.RankingResult{
				Stocks: stocks,
				Source: s.mapSourceLabel(res.Source),
				Stale:  res.Stale,
			}
		}
		if err != nil {
			s.logger.Warn("ar aggregation function failed",
				zap.String("timeframe", string(timeframe)),
				zap.Error(err))
		}
	}

	if cached := s.fromCacheTable(ctx, timeframe); len(cached) > 0 {
		return models.RankingResult{Stocks: cached, Source: models.SourceCache, Stale: true}
	}
	if s.allowMock {
		return models.RankingResult{Stocks: MockStocks(models.MarketAR, s.now()), Source: models.SourceMock}
	}
	return models.RankingResult{Stocks: []models.Stock{}, Source: models.SourceUnavailable, Stale: true}
}

// mapSourceLabel folds the function's provenance vocabulary into the
// client's. Only an exact "live" counts as live; everything else,
// including labels we have never seen, is treated as cache.
func (s *ARService) mapSourceLabel(label string) models.Source {
	switch label {
	case "live":
		return models.SourceLive
	case "cache", "cache_fallback":
		return models.SourceCache
	default:
		s.logger.Debug("unrecognized ar source label", zap.String("label", label))
		return models.SourceCache
	}
}

func (s *ARService) fromCacheTable(ctx context.Context, timeframe models.Range) []models.Stock {
	if s.cacheRepo == nil {
		return nil
	}
	rows, err := s.cacheRepo.TopByTimeframe(ctx, timeframe, topN)
	if err != nil {
		s.logger.Warn("ar cache table read failed",
			zap.String("timeframe", string(timeframe)),
			zap.Error(err))
		return nil
	}

	stocks := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		if !isFinite(row.Price) || !isFinite(row.PercentChange) {
			continue
		}
		stocks = append(stocks, row.Stock())
	}
	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].PercentChange > stocks[j].PercentChange
	})
	if len(stocks) > topN {
		stocks = stocks[:topN]
	}
	return stocks
}
