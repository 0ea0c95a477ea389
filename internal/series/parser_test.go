package series

import (
	"math"
	"testing"
	"time"
)

func TestParseDaily(t *testing.T) {
	payload := map[string]any{
		"Meta Data": map[string]any{"2. Symbol": "AAPL"},
		"Time Series (Daily)": map[string]any{
			"2025-06-13": map[string]any{"1. open": "118.00", "4. close": "120.00"},
			"2025-06-12": map[string]any{"4. close": "115.50"},
			"2025-06-11": map[string]any{"4. close": "100.00"},
			"not-a-date": map[string]any{"4. close": "50.00"},
			"2025-06-10": map[string]any{"4. close": "garbage"},
		},
	}

	points := ParseDaily(payload)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Value != 100.00 || points[2].Value != 120.00 {
		t.Fatalf("unexpected order or values: %+v", points)
	}

	// Date-only timestamps resolve to UTC midnight.
	want := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC).UnixMilli()
	if points[0].Timestamp != want {
		t.Fatalf("timestamp: got %d, want %d", points[0].Timestamp, want)
	}

	pc := PercentChange(points)
	if math.Abs(pc-20.0) > 1e-9 {
		t.Fatalf("expected 20%% change over the window, got %f", pc)
	}
}

func TestParseDailyMissingSeries(t *testing.T) {
	if points := ParseDaily(map[string]any{"Meta Data": map[string]any{}}); points != nil {
		t.Fatalf("expected nil for missing series, got %+v", points)
	}
}

func TestParseIntraday(t *testing.T) {
	payload := map[string]any{
		"Meta Data": map[string]any{},
		"Time Series (5min)": map[string]any{
			"2025-06-13 15:55:00": map[string]any{"4. close": "101.25"},
			"2025-06-13 16:00:00": map[string]any{"4. close": "101.75"},
			"2025-06-13 15:50:00": map[string]any{"4. close": "100.00"},
		},
	}

	points := ParseIntraday(payload)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Value != 100.00 || points[2].Value != 101.75 {
		t.Fatalf("unexpected order: %+v", points)
	}

	// Idempotent: reparsing the same payload yields the same series.
	again := ParseIntraday(payload)
	if len(again) != len(points) || again[0] != points[0] {
		t.Fatal("reparse diverged")
	}
}

func TestParseIntradayNoSeriesKey(t *testing.T) {
	if points := ParseIntraday(map[string]any{"Meta Data": map[string]any{}}); points != nil {
		t.Fatalf("expected nil, got %+v", points)
	}
}

func TestIsProviderError(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{"note", map[string]any{"Note": "rate limited"}, true},
		{"information", map[string]any{"Information": "premium endpoint"}, true},
		{"error message", map[string]any{"Error Message": "invalid symbol"}, true},
		{"empty note", map[string]any{"Note": ""}, false},
		{"data", map[string]any{"Time Series (Daily)": map[string]any{}}, false},
		{"empty", map[string]any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsProviderError(tc.payload); got != tc.want {
				t.Fatalf("IsProviderError = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	msg := ProviderErrorMessage(map[string]any{"Information": "premium endpoint"})
	if msg != "premium endpoint" {
		t.Fatalf("got %q", msg)
	}
	if ProviderErrorMessage(map[string]any{}) != "provider error" {
		t.Fatal("expected generic fallback message")
	}
}
