package detail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alzas-app/alzas-backend/internal/aggregator"
	"github.com/alzas-app/alzas-backend/internal/models"
)

type fakeSeriesClient struct {
	calls   int
	daily   map[string]any
	payload map[string]any
	err     error
}

func (f *fakeSeriesClient) IntradaySeries(_ context.Context, _ string) (map[string]any, error) {
	f.calls++
	return f.payload, f.err
}

func (f *fakeSeriesClient) DailySeries(_ context.Context, _ string, _ bool) (map[string]any, error) {
	f.calls++
	if f.daily != nil {
		return f.daily, f.err
	}
	return f.payload, f.err
}

type fakeFunction struct {
	calls  int
	result *aggregator.Result
	err    error
}

func (f *fakeFunction) Run(_ context.Context, _ aggregator.Request) (*aggregator.Result, error) {
	f.calls++
	return f.result, f.err
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
}

func newService(alpha SeriesClient, fn MarketFunction) *Service {
	return NewService(alpha, fn, time.Minute, zap.NewNop(), fixedNow)
}

func dailySeriesPayload(closes map[int]float64) map[string]any {
	rows := map[string]any{}
	for daysAgo, close := range closes {
		date := fixedNow().AddDate(0, 0, -daysAgo).Format("2006-01-02")
		rows[date] = map[string]any{"4. close": fmt.Sprintf("%.2f", close)}
	}
	return map[string]any{"Time Series (Daily)": rows}
}

func TestFetchUSDaily(t *testing.T) {
	alpha := &fakeSeriesClient{daily: dailySeriesPayload(map[int]float64{
		40: 90, 20: 100, 5: 105, 0: 120,
	})}
	svc := newService(alpha, nil)

	d, err := svc.Fetch(context.Background(), models.MarketUS, "aapl", models.Range1M)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if d.Ticker != "AAPL" || d.Source != models.SourceLive {
		t.Fatalf("got ticker=%s source=%s", d.Ticker, d.Source)
	}
	if d.Price != 120 {
		t.Fatalf("price = %v, want 120 (latest close)", d.Price)
	}
	// The one-month window keeps the 100, 105 and 120 closes.
	if got, want := d.PercentChange, 20.0; got != want {
		t.Fatalf("percentChange = %v, want %v", got, want)
	}
	if len(d.Series) != 3 {
		t.Fatalf("series = %d points, want 3", len(d.Series))
	}
}

func TestFetchCacheHitRetagged(t *testing.T) {
	alpha := &fakeSeriesClient{daily: dailySeriesPayload(map[int]float64{5: 100, 0: 110})}
	svc := newService(alpha, nil)

	first, err := svc.Fetch(context.Background(), models.MarketUS, "AAPL", models.Range1W)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if first.Source != models.SourceLive {
		t.Fatalf("first source = %q, want LIVE", first.Source)
	}

	second, err := svc.Fetch(context.Background(), models.MarketUS, "AAPL", models.Range1W)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if second.Source != models.SourceCache {
		t.Fatalf("second source = %q, want CACHE", second.Source)
	}
	if alpha.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", alpha.calls)
	}
}

func TestFetchUSInsufficientData(t *testing.T) {
	alpha := &fakeSeriesClient{daily: dailySeriesPayload(map[int]float64{0: 110})}
	svc := newService(alpha, nil)

	if _, err := svc.Fetch(context.Background(), models.MarketUS, "AAPL", models.Range1W); err == nil {
		t.Fatal("expected error for a single-point series")
	}
}

func TestFetchUSProviderFailure(t *testing.T) {
	alpha := &fakeSeriesClient{err: errors.New("rate limited")}
	svc := newService(alpha, nil)

	if _, err := svc.Fetch(context.Background(), models.MarketUS, "AAPL", models.Range1D); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestFetchARMatchesTicker(t *testing.T) {
	spark := []models.SparklinePoint{
		{Timestamp: fixedNow().AddDate(0, 0, -6).UnixMilli(), Value: 4400},
		{Timestamp: fixedNow().AddDate(0, 0, -3).UnixMilli(), Value: 4450},
		{Timestamp: fixedNow().UnixMilli(), Value: 4500.5},
	}
	fn := &fakeFunction{result: &aggregator.Result{
		Source: "live",
		Stocks: []models.Stock{
			{Ticker: "BMA", Market: models.MarketAR, Price: 6200, PercentChange: 2.1, Sparkline: spark},
			{Ticker: "GGAL", Market: models.MarketAR, Price: 4500.5, PercentChange: 5.2, Sparkline: spark},
		},
	}}
	svc := newService(nil, fn)

	d, err := svc.Fetch(context.Background(), models.MarketAR, "ggal", models.Range1W)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if d.Ticker != "GGAL" || d.Price != 4500.5 || d.PercentChange != 5.2 {
		t.Fatalf("matched wrong row: %+v", d)
	}
	if d.Source != models.SourceLive {
		t.Fatalf("source = %q, want LIVE", d.Source)
	}
	if len(d.Series) != 3 {
		t.Fatalf("series = %d points, want 3", len(d.Series))
	}
}

func TestFetchARSourceMapping(t *testing.T) {
	spark := []models.SparklinePoint{
		{Timestamp: 1, Value: 100},
		{Timestamp: 2, Value: 110},
	}
	cases := []struct {
		label string
		want  models.Source
	}{
		{"live", models.SourceLive},
		{"cache", models.SourceCache},
		{"cache_fallback", models.SourceCache},
		{"weird", models.SourceUnavailable},
	}
	for _, tc := range cases {
		fn := &fakeFunction{result: &aggregator.Result{
			Source: tc.label,
			Stocks: []models.Stock{{Ticker: "GGAL", Market: models.MarketAR, Price: 100, PercentChange: 1, Sparkline: spark}},
		}}
		svc := newService(nil, fn)

		d, err := svc.Fetch(context.Background(), models.MarketAR, "GGAL", models.Range1D)
		if err != nil {
			t.Fatalf("label %q: %v", tc.label, err)
		}
		if d.Source != tc.want {
			t.Errorf("label %q: source = %q, want %q", tc.label, d.Source, tc.want)
		}
	}
}

func TestFetchARFunctionError(t *testing.T) {
	fn := &fakeFunction{err: errors.New("function down")}
	svc := newService(nil, fn)

	if _, err := svc.Fetch(context.Background(), models.MarketAR, "GGAL", models.Range1D); err == nil {
		t.Fatal("expected error when the function fails")
	}
}
