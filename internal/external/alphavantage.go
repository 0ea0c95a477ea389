package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alzas-app/alzas-backend/internal/httputil"
	"github.com/alzas-app/alzas-backend/internal/series"
)

// AlphaVantageClient talks to the US market-data provider. Endpoints are
// keyed by a `function` query parameter; quota exhaustion arrives as a 200
// response carrying a sentinel field, which surfaces here as an error
// wrapping series.ErrProviderSoft.
type AlphaVantageClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewAlphaVantageClient(baseURL, apiKey string, timeout time.Duration) *AlphaVantageClient {
	return &AlphaVantageClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

// TopMoverRow is one candidate from the TOP_GAINERS_LOSERS pool. Numeric
// fields arrive as strings ("123.45", "133.33%").
type TopMoverRow struct {
	Ticker           string `json:"ticker"`
	Price            string `json:"price"`
	ChangeAmount     string `json:"change_amount"`
	ChangePercentage string `json:"change_percentage"`
	Volume           string `json:"volume"`
}

type TopMoversPayload struct {
	TopGainers []TopMoverRow `json:"top_gainers"`
	TopLosers  []TopMoverRow `json:"top_losers"`
	MostActive []TopMoverRow `json:"most_actively_traded"`
}

func (c *AlphaVantageClient) TopMovers(ctx context.Context) (*TopMoversPayload, error) {
	body, err := c.get(ctx, url.Values{"function": {"TOP_GAINERS_LOSERS"}})
	if err != nil {
		return nil, err
	}
	var payload TopMoversPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode top movers: %w", err)
	}
	return &payload, nil
}

// IntradaySeries returns the raw 5-minute series payload; callers parse it
// with series.ParseIntraday.
func (c *AlphaVantageClient) IntradaySeries(ctx context.Context, symbol string) (map[string]any, error) {
	return c.getMap(ctx, url.Values{
		"function":   {"TIME_SERIES_INTRADAY"},
		"symbol":     {symbol},
		"interval":   {"5min"},
		"outputsize": {"compact"},
	})
}

// DailySeries returns the raw daily series payload. full requests the
// provider's full history instead of the compact window.
func (c *AlphaVantageClient) DailySeries(ctx context.Context, symbol string, full bool) (map[string]any, error) {
	size := "compact"
	if full {
		size = "full"
	}
	return c.getMap(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {size},
	})
}

// Overview returns the raw company-overview payload for a ticker.
func (c *AlphaVantageClient) Overview(ctx context.Context, symbol string) (map[string]any, error) {
	return c.getMap(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	})
}

func (c *AlphaVantageClient) getMap(ctx context.Context, params url.Values) (map[string]any, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func (c *AlphaVantageClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	endpoint := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("provider fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Soft errors arrive with a 200 and a sentinel field in place of data.
	var probe map[string]any
	if err := json.Unmarshal(body, &probe); err == nil && series.IsProviderError(probe) {
		return nil, fmt.Errorf("%w: %s", series.ErrProviderSoft, series.ProviderErrorMessage(probe))
	}

	return body, nil
}
