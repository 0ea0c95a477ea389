package names

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/models"
)

type fakeSearcher struct {
	calls  int
	quotes []external.SearchQuote
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]external.SearchQuote, error) {
	f.calls++
	return f.quotes, f.err
}

type fakeOverview struct {
	calls   int
	payload map[string]any
	err     error
}

func (f *fakeOverview) Overview(_ context.Context, _ string) (map[string]any, error) {
	f.calls++
	return f.payload, f.err
}

func newTestResolver(s *fakeSearcher, o *fakeOverview) *Resolver {
	return NewResolver(s, o, time.Hour, zap.NewNop())
}

func TestResolveHintWins(t *testing.T) {
	s := &fakeSearcher{}
	r := newTestResolver(s, &fakeOverview{})

	got := r.Resolve(context.Background(), "ZZZZ", "Zeta Corp", NewBudget(5))
	if got != "Zeta Corp" {
		t.Fatalf("got %q, want hint", got)
	}
	if s.calls != 0 {
		t.Fatalf("hint should not trigger network lookups, got %d", s.calls)
	}
}

func TestResolveStaticTable(t *testing.T) {
	s := &fakeSearcher{}
	r := newTestResolver(s, &fakeOverview{})

	if got := r.Resolve(context.Background(), "aapl", "", NewBudget(5)); got != "Apple Inc." {
		t.Fatalf("got %q", got)
	}
	if s.calls != 0 {
		t.Fatalf("static hit should not call search, got %d calls", s.calls)
	}
}

func TestResolveSearchExactSymbolOnly(t *testing.T) {
	s := &fakeSearcher{quotes: []external.SearchQuote{
		{Symbol: "ZZZZ240119C00100000", LongName: "Option Chain", QuoteType: "OPTION"},
		{Symbol: "ZZZZ", LongName: "Zeta Holdings", QuoteType: "EQUITY"},
	}}
	r := newTestResolver(s, &fakeOverview{})

	if got := r.Resolve(context.Background(), "ZZZZ", "", NewBudget(5)); got != "Zeta Holdings" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveOverviewFallback(t *testing.T) {
	s := &fakeSearcher{err: errors.New("search down")}
	o := &fakeOverview{payload: map[string]any{"Name": "Zeta Industries"}}
	r := newTestResolver(s, o)

	if got := r.Resolve(context.Background(), "ZZZZ", "", NewBudget(5)); got != "Zeta Industries" {
		t.Fatalf("got %q", got)
	}
	if o.calls != 1 {
		t.Fatalf("overview calls = %d, want 1", o.calls)
	}
}

func TestResolveExhaustedReturnsTicker(t *testing.T) {
	s := &fakeSearcher{}
	o := &fakeOverview{payload: map[string]any{"Note": "rate limited"}}
	r := newTestResolver(s, o)

	if got := r.Resolve(context.Background(), "ZZZZ", "", NewBudget(5)); got != "ZZZZ" {
		t.Fatalf("got %q, want ticker fallback", got)
	}
}

func TestResolveCachesNetworkResult(t *testing.T) {
	s := &fakeSearcher{quotes: []external.SearchQuote{{Symbol: "ZZZZ", LongName: "Zeta Holdings", QuoteType: "EQUITY"}}}
	r := newTestResolver(s, &fakeOverview{})

	r.Resolve(context.Background(), "ZZZZ", "", NewBudget(5))
	r.Resolve(context.Background(), "ZZZZ", "", NewBudget(5))
	if s.calls != 1 {
		t.Fatalf("search calls = %d, want 1 (second hit from cache)", s.calls)
	}
}

func TestEnrichStocksZeroBudgetSkipsNetwork(t *testing.T) {
	s := &fakeSearcher{}
	o := &fakeOverview{}
	r := newTestResolver(s, o)

	stocks := []models.Stock{
		{Ticker: "NVDA", Market: models.MarketUS},
		{Ticker: "ZZZZ", Market: models.MarketUS},
	}
	r.EnrichStocks(context.Background(), stocks, 0)

	if s.calls != 0 || o.calls != 0 {
		t.Fatalf("zero budget issued network lookups: search=%d overview=%d", s.calls, o.calls)
	}
	if stocks[0].CompanyName != "NVIDIA Corporation" {
		t.Fatalf("static name not applied: %q", stocks[0].CompanyName)
	}
	if stocks[1].CompanyName != "ZZZZ" {
		t.Fatalf("unknown ticker should fall back to symbol, got %q", stocks[1].CompanyName)
	}
}

func TestEnrichStocksSharedBudget(t *testing.T) {
	s := &fakeSearcher{err: errors.New("down")}
	o := &fakeOverview{err: errors.New("down")}
	r := newTestResolver(s, o)

	stocks := []models.Stock{
		{Ticker: "AAAA"}, {Ticker: "BBBB"}, {Ticker: "CCCC"},
	}
	r.EnrichStocks(context.Background(), stocks, 3)

	if total := s.calls + o.calls; total != 3 {
		t.Fatalf("network lookups = %d, want exactly the budget of 3", total)
	}
}
