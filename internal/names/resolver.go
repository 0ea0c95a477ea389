// Package names resolves human-readable company names for tickers. The
// resolution ladder runs from free sources (a provider hint, a static
// table, a TTL cache) to network lookups, which are bounded by a per-batch
// budget so enrichment never overruns the upstream request quota.
package names

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/cache"
	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/models"
	"github.com/alzas-app/alzas-backend/internal/series"
)

// Searcher is the secondary-market symbol search used for name resolution.
type Searcher interface {
	Search(ctx context.Context, query string) ([]external.SearchQuote, error)
}

// OverviewFetcher is the last-resort company-overview endpoint.
type OverviewFetcher interface {
	Overview(ctx context.Context, symbol string) (map[string]any, error)
}

// Budget caps how many network lookups one enrichment batch may issue.
type Budget struct {
	remaining int
}

func NewBudget(n int) *Budget { return &Budget{remaining: n} }

// Take consumes one lookup slot, reporting false once exhausted.
func (b *Budget) Take() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

type Resolver struct {
	search   Searcher
	overview OverviewFetcher
	cache    *cache.Store[string]
	logger   *zap.Logger
}

func NewResolver(search Searcher, overview OverviewFetcher, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		search:   search,
		overview: overview,
		cache:    cache.New[string](ttl, nil),
		logger:   logger,
	}
}

// Resolve walks the ladder for one ticker. hint is a name already supplied
// by the ranking provider and short-circuits everything else. Every layer
// failure is recoverable; the ticker symbol itself is the final answer.
func (r *Resolver) Resolve(ctx context.Context, ticker, hint string, budget *Budget) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if name := strings.TrimSpace(hint); name != "" {
		return name
	}

	type strategy struct {
		name    string
		network bool
		resolve func(context.Context, string) (string, bool)
	}

	ladder := []strategy{
		{name: "static", resolve: r.fromStaticTable},
		{name: "cache", resolve: r.fromCache},
		{name: "search", network: true, resolve: r.fromSearch},
		{name: "overview", network: true, resolve: r.fromOverview},
	}

	for _, s := range ladder {
		if s.network && (budget == nil || !budget.Take()) {
			break
		}
		if name, ok := s.resolve(ctx, ticker); ok {
			if s.network {
				r.cache.Set(ticker, name)
			}
			return name
		}
	}
	return ticker
}

// EnrichStocks fills in CompanyName across a ranked batch, sharing one
// network budget. maxLookups == 0 skips network tiers entirely (the
// intraday path, where historical fetches must not be starved).
func (r *Resolver) EnrichStocks(ctx context.Context, stocks []models.Stock, maxLookups int) {
	budget := NewBudget(maxLookups)
	for i := range stocks {
		stocks[i].CompanyName = r.Resolve(ctx, stocks[i].Ticker, stocks[i].CompanyName, budget)
	}
}

func (r *Resolver) fromStaticTable(_ context.Context, ticker string) (string, bool) {
	name, ok := staticNames[ticker]
	return name, ok
}

func (r *Resolver) fromCache(_ context.Context, ticker string) (string, bool) {
	return r.cache.Get(ticker)
}

func (r *Resolver) fromSearch(ctx context.Context, ticker string) (string, bool) {
	if r.search == nil {
		return "", false
	}
	quotes, err := r.search.Search(ctx, ticker)
	if err != nil {
		r.logger.Warn("name search failed", zap.String("ticker", ticker), zap.Error(err))
		return "", false
	}
	for _, q := range quotes {
		if !strings.EqualFold(q.Symbol, ticker) {
			continue
		}
		switch strings.ToUpper(q.QuoteType) {
		case "OPTION", "CRYPTOCURRENCY":
			continue
		}
		if name := strings.TrimSpace(q.LongName); name != "" {
			return name, true
		}
		if name := strings.TrimSpace(q.ShortName); name != "" {
			return name, true
		}
	}
	return "", false
}

func (r *Resolver) fromOverview(ctx context.Context, ticker string) (string, bool) {
	if r.overview == nil {
		return "", false
	}
	payload, err := r.overview.Overview(ctx, ticker)
	if err != nil {
		r.logger.Warn("name overview lookup failed", zap.String("ticker", ticker), zap.Error(err))
		return "", false
	}
	if series.IsProviderError(payload) {
		return "", false
	}
	if name, ok := payload["Name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), true
	}
	return "", false
}

// staticNames covers frequently seen large caps and the BYMA watch-list:
// no I/O and no quota cost, so it always beats a network lookup.
var staticNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"GOOG":  "Alphabet Inc.",
	"AMZN":  "Amazon.com, Inc.",
	"NVDA":  "NVIDIA Corporation",
	"META":  "Meta Platforms, Inc.",
	"TSLA":  "Tesla, Inc.",
	"AMD":   "Advanced Micro Devices, Inc.",
	"NFLX":  "Netflix, Inc.",
	"INTC":  "Intel Corporation",
	"JPM":   "JPMorgan Chase & Co.",
	"V":     "Visa Inc.",
	"MA":    "Mastercard Incorporated",
	"DIS":   "The Walt Disney Company",
	"BA":    "The Boeing Company",
	"KO":    "The Coca-Cola Company",
	"PFE":   "Pfizer Inc.",
	"XOM":   "Exxon Mobil Corporation",
	"WMT":   "Walmart Inc.",
	"CRM":   "Salesforce, Inc.",
	"ORCL":  "Oracle Corporation",
	"AVGO":  "Broadcom Inc.",
	"QCOM":  "QUALCOMM Incorporated",
	"UBER":  "Uber Technologies, Inc.",
	"COIN":  "Coinbase Global, Inc.",
	"PLTR":  "Palantir Technologies Inc.",
	"GGAL":  "Grupo Financiero Galicia S.A.",
	"YPFD":  "YPF Sociedad Anónima",
	"PAMP":  "Pampa Energía S.A.",
	"TXAR":  "Ternium Argentina S.A.",
	"LOMA":  "Loma Negra C.I.A.S.A.",
	"CEPU":  "Central Puerto S.A.",
	"EDN":   "Edenor S.A.",
	"CRES":  "Cresud S.A.C.I.F. y A.",
	"SUPV":  "Grupo Supervielle S.A.",
	"BMA":   "Banco Macro S.A.",
}
