package external_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alzas-app/alzas-backend/internal/external"
	"github.com/alzas-app/alzas-backend/internal/series"
)

const testTimeout = 5 * time.Second

// ---------- AlphaVantageClient ----------

func TestAlphaVantageTopMovers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "TOP_GAINERS_LOSERS" {
			t.Errorf("unexpected function param: %s", got)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Errorf("unexpected apikey: %s", got)
		}
		w.Write([]byte(`{
			"top_gainers": [{"ticker":"AAA","price":"12.50","change_percentage":"8.25%","volume":"100000"}],
			"top_losers": [{"ticker":"BBB","price":"3.10","change_percentage":"-4.00%","volume":"50000"}],
			"most_actively_traded": [{"ticker":"CCC","price":"99.00","change_percentage":"0.50%","volume":"900000"}]
		}`))
	}))
	defer srv.Close()

	client := external.NewAlphaVantageClient(srv.URL, "test-key", testTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	movers, err := client.TopMovers(ctx)
	if err != nil {
		t.Fatalf("TopMovers: %v", err)
	}
	if len(movers.TopGainers) != 1 || movers.TopGainers[0].Ticker != "AAA" {
		t.Fatalf("unexpected gainers: %+v", movers.TopGainers)
	}
	if movers.TopGainers[0].ChangePercentage != "8.25%" {
		t.Fatalf("change percentage should stay raw: %q", movers.TopGainers[0].ChangePercentage)
	}
	if len(movers.TopLosers) != 1 || len(movers.MostActive) != 1 {
		t.Fatalf("unexpected payload: %+v", movers)
	}
}

func TestAlphaVantageSoftError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Quota exhaustion arrives as a 200 with a Note field.
		w.Write([]byte(`{"Note": "Thank you for using our API. Our standard API rate limit is 25 requests per day."}`))
	}))
	defer srv.Close()

	client := external.NewAlphaVantageClient(srv.URL, "test-key", testTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_, err := client.TopMovers(ctx)
	if err == nil {
		t.Fatal("expected error for provider note")
	}
	if !errors.Is(err, series.ErrProviderSoft) {
		t.Fatalf("expected ErrProviderSoft, got: %v", err)
	}

	_, err = client.IntradaySeries(ctx, "AAPL")
	if !errors.Is(err, series.ErrProviderSoft) {
		t.Fatalf("IntradaySeries: expected ErrProviderSoft, got: %v", err)
	}
}

func TestAlphaVantageDailySeriesParams(t *testing.T) {
	var gotSize, gotFunction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSize = r.URL.Query().Get("outputsize")
		gotFunction = r.URL.Query().Get("function")
		w.Write([]byte(`{"Time Series (Daily)": {}}`))
	}))
	defer srv.Close()

	client := external.NewAlphaVantageClient(srv.URL, "k", testTimeout)
	ctx := context.Background()

	if _, err := client.DailySeries(ctx, "AAPL", false); err != nil {
		t.Fatalf("DailySeries(compact): %v", err)
	}
	if gotSize != "compact" || gotFunction != "TIME_SERIES_DAILY" {
		t.Fatalf("unexpected params: size=%s function=%s", gotSize, gotFunction)
	}

	if _, err := client.DailySeries(ctx, "AAPL", true); err != nil {
		t.Fatalf("DailySeries(full): %v", err)
	}
	if gotSize != "full" {
		t.Fatalf("expected full outputsize, got %s", gotSize)
	}
}

func TestAlphaVantageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"top_gainers": [], "top_losers": [], "most_actively_traded": []}`))
	}))
	defer srv.Close()

	client := external.NewAlphaVantageClient(srv.URL, "k", testTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.TopMovers(ctx); err != nil {
		t.Fatalf("TopMovers after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

// ---------- YahooClient ----------

func TestYahooQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "GGAL.BA" {
			t.Errorf("unexpected symbols param: %s", got)
		}
		w.Write([]byte(`{"quoteResponse": {"result": [
			{"symbol": "GGAL.BA", "regularMarketPrice": 4500.5, "regularMarketChangePercent": 5.2, "longName": "Grupo Financiero Galicia"}
		]}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	quote, err := client.Quote(context.Background(), "GGAL.BA")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	price, ok := quote.BestPrice()
	if !ok || price != 4500.5 {
		t.Fatalf("BestPrice: got %f ok=%v", price, ok)
	}
	if quote.CompanyName() != "Grupo Financiero Galicia" {
		t.Fatalf("CompanyName: got %q", quote.CompanyName())
	}
}

func TestYahooQuoteBestPricePreference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No regular price; bid should win over ask.
		w.Write([]byte(`{"quoteResponse": {"result": [
			{"symbol": "X", "bid": 10.5, "ask": 10.8, "shortName": "X Corp"}
		]}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	quote, err := client.Quote(context.Background(), "X")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	price, ok := quote.BestPrice()
	if !ok || price != 10.5 {
		t.Fatalf("expected bid 10.5, got %f ok=%v", price, ok)
	}
	if quote.CompanyName() != "X Corp" {
		t.Fatalf("expected short-name fallback, got %q", quote.CompanyName())
	}
}

func TestYahooQuoteEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": []}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	if _, err := client.Quote(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestYahooChartSkipsNullBars(t *testing.T) {
	end := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -7)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The caller's window edges must reach the wire unchanged.
		if got := r.URL.Query().Get("period1"); got != fmt.Sprint(start.Unix()) {
			t.Errorf("period1 = %s, want %d", got, start.Unix())
		}
		if got := r.URL.Query().Get("period2"); got != fmt.Sprint(end.Unix()) {
			t.Errorf("period2 = %s, want %d", got, end.Unix())
		}
		// Out of order on purpose; nulls mid-series.
		w.Write([]byte(`{"chart": {"result": [{
			"timestamp": [1717200000, 1717113600, 1717027200],
			"indicators": {"quote": [{"close": [103.5, null, 101.0]}]}
		}]}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	points, err := client.Chart(context.Background(), "GGAL.BA", start, end, "1d")
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points after dropping null, got %d", len(points))
	}
	if points[0].Timestamp > points[1].Timestamp {
		t.Fatal("points not sorted ascending")
	}
	if points[0].Value != 101.0 || points[1].Value != 103.5 {
		t.Fatalf("unexpected values: %+v", points)
	}
	// Timestamps come back in milliseconds.
	if points[0].Timestamp != 1717027200000 {
		t.Fatalf("expected ms timestamp, got %d", points[0].Timestamp)
	}
}

func TestYahooChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	if _, err := client.Chart(context.Background(), "NOPE.BA", time.Now().Add(-time.Hour), time.Now(), "5m"); err == nil {
		t.Fatal("expected chart error")
	}
}

func TestYahooQuoteSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("modules"); got != "price,assetProfile" {
			t.Errorf("unexpected modules param: %s", got)
		}
		w.Write([]byte(`{"quoteSummary": {"result": [
			{"price": {"longName": "Pampa Energía"}, "assetProfile": {"sector": "Utilities"}}
		]}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	result, err := client.QuoteSummary(context.Background(), "PAMP.BA", []string{"price", "assetProfile"})
	if err != nil {
		t.Fatalf("QuoteSummary: %v", err)
	}
	price, ok := result["price"].(map[string]any)
	if !ok || price["longName"] != "Pampa Energía" {
		t.Fatalf("unexpected summary payload: %+v", result)
	}
}

func TestYahooSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "NVDA" {
			t.Errorf("unexpected query: %s", got)
		}
		w.Write([]byte(`{"quotes": [
			{"symbol": "NVDA", "longname": "NVIDIA Corporation", "quoteType": "EQUITY"},
			{"symbol": "NVDA240621C00100000", "quoteType": "OPTION"}
		]}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, testTimeout)
	quotes, err := client.Search(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(quotes) != 2 || quotes[0].LongName != "NVIDIA Corporation" {
		t.Fatalf("unexpected quotes: %+v", quotes)
	}
}

// ---------- FXClient ----------

func TestFXUSDARSRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base": "USD", "rates": {"ARS": 1320.45, "EUR": 0.92}}`))
	}))
	defer srv.Close()

	client := external.NewFXClient(srv.URL, testTimeout)
	rate, err := client.USDARSRate(context.Background())
	if err != nil {
		t.Fatalf("USDARSRate: %v", err)
	}
	if rate != 1320.45 {
		t.Fatalf("expected 1320.45, got %f", rate)
	}
}

func TestFXRejectsInvalidRate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing", `{"rates": {"EUR": 0.92}}`},
		{"zero", `{"rates": {"ARS": 0}}`},
		{"negative", `{"rates": {"ARS": -5}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := external.NewFXClient(srv.URL, testTimeout)
			if _, err := client.USDARSRate(context.Background()); err == nil {
				t.Fatal("expected error for invalid rate")
			}
		})
	}
}
