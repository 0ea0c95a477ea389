package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/repository"
)

// ErrProfileUnavailable means every tier failed and no cached profile
// exists. The HTTP layer maps it to a 500.
var ErrProfileUnavailable = errors.New("company profile unavailable")

// ProfileResult mirrors the profile function's wire response.
type ProfileResult struct {
	Source  string                `json:"source"`
	Profile models.CompanyProfile `json:"profile"`
}

// SummaryClient is the quote surface the profile service fetches from.
// *external.YahooClient satisfies it.
type SummaryClient interface {
	QuoteSummary(ctx context.Context, symbol string, modules []string) (map[string]any, error)
	Quote(ctx context.Context, symbol string) (*external.Quote, error)
}

// ProfileStore is the persisted profile cache table.
type ProfileStore interface {
	Get(ctx context.Context, ticker string) (*repository.ProfileRow, error)
	Upsert(ctx context.Context, profile models.CompanyProfile, now time.Time) error
}

// ProfileService answers per-ticker company profile requests for the
// watch-list, layering quote-summary, basic-quote and the persisted
// cache in the same degrade order the market service uses.
type ProfileService struct {
	quotes    SummaryClient
	store     ProfileStore
	watchList []string
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewProfileService(quotes SummaryClient, store ProfileStore, watchList []string, cacheTTL time.Duration, logger *zap.Logger, now func() time.Time) *ProfileService {
	if now == nil {
		now = time.Now
	}
	return &ProfileService{
		quotes:    quotes,
		store:     store,
		watchList: watchList,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       now,
	}
}

func (s *ProfileService) Run(ctx context.Context, rawTicker string) (*ProfileResult, error) {
	requestID := uuid.NewString()
	started := s.now()

	ticker := strings.ToUpper(strings.TrimSpace(rawTicker))
	if ticker == "" || !s.supported(ticker) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	log := s.logger.With(
		zap.String("requestId", requestID),
		zap.String("ticker", ticker),
	)
	log.Info("argentina profile request started")

	cached := s.readCache(ctx, ticker, log)
	if cached != nil && s.now().Sub(cached.CachedAt) <= s.cacheTTL {
		log.Info("argentina profile served from cache",
			zap.Duration("elapsed", s.now().Sub(started)))
		return &ProfileResult{Source: "cache", Profile: cached.Profile()}, nil
	}

	profile, err := s.fromQuoteSummary(ctx, ticker)
	if err != nil {
		log.Warn("argentina profile quote summary failed", zap.Error(err))
		profile, err = s.fromQuote(ctx, ticker)
	}
	if err != nil {
		log.Warn("argentina profile live fetch failed", zap.Error(err))
		if cached != nil {
			return &ProfileResult{Source: "cache_fallback", Profile: cached.Profile()}, nil
		}
		return nil, ErrProfileUnavailable
	}

	if s.store != nil {
		if err := s.store.Upsert(ctx, profile, s.now()); err != nil {
			log.Warn("argentina profile cache upsert failed", zap.Error(err))
		}
	}
	log.Info("argentina profile request completed",
		zap.String("source", "live"),
		zap.Duration("elapsed", s.now().Sub(started)))
	return &ProfileResult{Source: "live", Profile: profile}, nil
}

func (s *ProfileService) supported(ticker string) bool {
	for _, t := range s.watchList {
		if t == ticker {
			return true
		}
	}
	return false
}

func (s *ProfileService) readCache(ctx context.Context, ticker string, log *zap.Logger) *repository.ProfileRow {
	if s.store == nil {
		return nil
	}
	row, err := s.store.Get(ctx, ticker)
	if err != nil {
		log.Warn("argentina profile cache read failed", zap.Error(err))
		return nil
	}
	return row
}

func (s *ProfileService) fromQuoteSummary(ctx context.Context, ticker string) (models.CompanyProfile, error) {
	summary, err := s.quotes.QuoteSummary(ctx, ticker+".BA",
		[]string{"price", "assetProfile", "summaryDetail", "defaultKeyStatistics"})
	if err != nil {
		return models.CompanyProfile{}, err
	}

	price := asMap(summary["price"])
	assetProfile := asMap(summary["assetProfile"])
	summaryDetail := asMap(summary["summaryDetail"])
	keyStats := asMap(summary["defaultKeyStatistics"])

	name := getString(price["longName"])
	if name == "" {
		name = getString(price["shortName"])
	}
	if name == "" {
		name = ticker
	}

	marketCap := getNumber(summaryDetail["marketCap"])
	if marketCap == 0 {
		marketCap = getNumber(keyStats["marketCap"])
	}
	exchange := getString(price["exchangeName"])
	if exchange == "" {
		exchange = getString(price["fullExchangeName"])
	}

	return models.CompanyProfile{
		Ticker:        ticker,
		Market:        models.MarketAR,
		CompanyName:   name,
		Description:   getString(assetProfile["longBusinessSummary"]),
		Sector:        getString(assetProfile["sector"]),
		Industry:      getString(assetProfile["industry"]),
		MarketCap:     marketCap,
		Exchange:      exchange,
		Country:       getString(assetProfile["country"]),
		Website:       getString(assetProfile["website"]),
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

// fromQuote is the degraded live path: a basic quote still yields a
// usable name, market cap and exchange.
func (s *ProfileService) fromQuote(ctx context.Context, ticker string) (models.CompanyProfile, error) {
	quote, err := s.quotes.Quote(ctx, ticker+".BA")
	if err != nil {
		return models.CompanyProfile{}, err
	}

	name := quote.CompanyName()
	if name == "" {
		name = ticker
	}
	var marketCap float64
	if quote.MarketCap != nil && !math.IsNaN(*quote.MarketCap) && !math.IsInf(*quote.MarketCap, 0) {
		marketCap = *quote.MarketCap
	}

	return models.CompanyProfile{
		Ticker:        ticker,
		Market:        models.MarketAR,
		CompanyName:   name,
		MarketCap:     marketCap,
		Exchange:      strings.TrimSpace(quote.Exchange),
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// getString accepts a plain string or the provider's {fmt: "..."} shape.
func getString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case map[string]any:
		if fmtVal, ok := s["fmt"].(string); ok {
			return strings.TrimSpace(fmtVal)
		}
	}
	return ""
}

// getNumber accepts a plain number, a thousands-separated string, or the
// provider's {raw: n} shape. Anything else yields 0.
func getNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0
		}
		return parsed
	case map[string]any:
		if raw, ok := n["raw"].(float64); ok && !math.IsNaN(raw) && !math.IsInf(raw, 0) {
			return raw
		}
	}
	return 0
}
