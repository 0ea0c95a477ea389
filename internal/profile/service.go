// Package profile serves company fundamentals for both markets with a
// long-lived cache, since this data changes slowly. It never returns an
// error: every failure degrades to the cached copy or a minimal profile
// tagged UNAVAILABLE.
package profile

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/cache"
	"github.com/alzas-app/alzas-backend/internal/models"
)

// OverviewClient is the US company-overview endpoint.
// *external.AlphaVantageClient satisfies it.
type OverviewClient interface {
	Overview(ctx context.Context, symbol string) (map[string]any, error)
}

// ProfileFunction is the Argentine profile function entry point.
type ProfileFunction interface {
	Run(ctx context.Context, ticker string) (*aggregator.ProfileResult, error)
}

type Service struct {
	alpha  OverviewClient
	fn     ProfileFunction
	cache  *cache.Store[models.CompanyProfile]
	logger *zap.Logger
	now    func() time.Time
}

func NewService(alpha OverviewClient, fn ProfileFunction, ttl time.Duration, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		alpha:  alpha,
		fn:     fn,
		cache:  cache.New[models.CompanyProfile](ttl, now),
		logger: logger,
		now:    now,
	}
}

// Fetch returns a profile for the ticker. fallbackName is the best name
// already known to the caller (usually from a ranking row) and is used
// whenever the upstream payload lacks one.
func (s *Service) Fetch(ctx context.Context, market models.Market, ticker, fallbackName string) models.CompanyProfile {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	key := fmt.Sprintf("%s:%s", market, ticker)

	if cached, ok := s.cache.Get(key); ok {
		cached.Source = models.SourceCache
		return cached
	}

	var (
		p   models.CompanyProfile
		err error
	)
	if market == models.MarketUS {
		p, err = s.fetchUS(ctx, ticker, fallbackName)
	} else {
		p, err = s.fetchAR(ctx, ticker, fallbackName)
	}
	if err != nil {
		s.logger.Warn("company profile fetch failed",
			zap.String("market", string(market)),
			zap.String("ticker", ticker),
			zap.Error(err))
		if stale, ok, _ := s.cache.Lookup(key); ok {
			stale.Source = models.SourceCache
			return stale
		}
		return s.minimalProfile(ticker, market, fallbackName)
	}

	if p.Source == models.SourceLive || p.Source == models.SourceCache {
		s.cache.Set(key, p)
	}
	return p
}

func (s *Service) fetchUS(ctx context.Context, ticker, fallbackName string) (models.CompanyProfile, error) {
	payload, err := s.alpha.Overview(ctx, ticker)
	if err != nil {
		return models.CompanyProfile{}, err
	}

	name := textField(payload["Name"])
	if name == "" {
		name = strings.TrimSpace(fallbackName)
	}
	if name == "" {
		name = ticker
	}

	return models.CompanyProfile{
		Ticker:        ticker,
		Market:        models.MarketUS,
		CompanyName:   name,
		Description:   textField(payload["Description"]),
		Sector:        textField(payload["Sector"]),
		Industry:      textField(payload["Industry"]),
		MarketCap:     numericField(payload["MarketCapitalization"]),
		Exchange:      textField(payload["Exchange"]),
		Country:       textField(payload["Country"]),
		Source:        models.SourceLive,
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) fetchAR(ctx context.Context, ticker, fallbackName string) (models.CompanyProfile, error) {
	if s.fn == nil {
		return models.CompanyProfile{}, fmt.Errorf("argentina profile function is not configured")
	}

	res, err := s.fn.Run(ctx, ticker)
	if err != nil {
		return models.CompanyProfile{}, err
	}

	p := res.Profile
	p.Ticker = ticker
	p.Market = models.MarketAR
	if strings.TrimSpace(p.CompanyName) == "" {
		if name := strings.TrimSpace(fallbackName); name != "" {
			p.CompanyName = name
		} else {
			p.CompanyName = ticker
		}
	}
	p.Source = mapFunctionSource(res.Source)
	if strings.TrimSpace(p.LastUpdatedAt) == "" {
		p.LastUpdatedAt = s.now().UTC().Format(time.RFC3339)
	}
	return p, nil
}

func (s *Service) minimalProfile(ticker string, market models.Market, fallbackName string) models.CompanyProfile {
	name := strings.TrimSpace(fallbackName)
	if name == "" {
		name = ticker
	}
	return models.CompanyProfile{
		Ticker:        ticker,
		Market:        market,
		CompanyName:   name,
		Source:        models.SourceUnavailable,
		LastUpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
}

func mapFunctionSource(label string) models.Source {
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

// textField keeps a trimmed non-empty string and drops everything else,
// so blank provider fields stay absent in the JSON output.
func textField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// numericField parses overview numbers, which arrive as strings and may
// carry thousands separators.
func numericField(v any) float64 {
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
	}
	return 0
}
