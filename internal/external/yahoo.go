package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/alzas-app/alzas-backend/internal/httputil"
	"github.com/alzas-app/alzas-backend/internal/models"
)

// YahooClient covers the endpoints the AR aggregation pipeline needs: a
// basic quote, a close-price chart, the richer quote-summary modules, and
// symbol search for company-name resolution.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	return &YahooClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

// Quote carries the subset of quote fields the pipeline reads. Pointers
// distinguish absent fields from genuine zeros.
type Quote struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	PostMarketPrice            *float64 `json:"postMarketPrice"`
	PreMarketPrice             *float64 `json:"preMarketPrice"`
	Bid                        *float64 `json:"bid"`
	Ask                        *float64 `json:"ask"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	LongName                   string   `json:"longName"`
	ShortName                  string   `json:"shortName"`
	Exchange                   string   `json:"exchange"`
	MarketCap                  *float64 `json:"marketCap"`
}

// BestPrice picks the first usable price candidate, in the same preference
// order the quote endpoint documents: regular, post-market, pre-market,
// bid, ask.
func (q *Quote) BestPrice() (float64, bool) {
	for _, candidate := range []*float64{
		q.RegularMarketPrice, q.PostMarketPrice, q.PreMarketPrice, q.Bid, q.Ask,
	} {
		if candidate != nil && *candidate > 0 {
			return *candidate, true
		}
	}
	return 0, false
}

// CompanyName returns the long name when present, else the short name.
func (q *Quote) CompanyName() string {
	if name := strings.TrimSpace(q.LongName); name != "" {
		return name
	}
	return strings.TrimSpace(q.ShortName)
}

func (c *YahooClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	var payload struct {
		QuoteResponse struct {
			Result []Quote `json:"result"`
			Error  *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote error: %s", payload.QuoteResponse.Error.Description)
	}
	if len(payload.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}
	return &payload.QuoteResponse.Result[0], nil
}

// Chart fetches close prices between start and end at the given interval
// ("1d", "1wk", "5m"). The caller supplies both window edges so its own
// clock governs the request. Null bars (holidays, halted sessions) are
// skipped and the result is sorted ascending.
func (c *YahooClient) Chart(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.SparklinePoint, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s",
		c.baseURL, url.PathEscape(symbol), start.Unix(), end.Unix(), interval)

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []any `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	points := make([]models.SparklinePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) {
			break
		}
		value := toFloat(closes[i])
		if value <= 0 {
			continue
		}
		points = append(points, models.SparklinePoint{Timestamp: ts * 1000, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

// QuoteSummary fetches the requested summary modules as a loosely-typed
// payload; the caller probes the module objects it needs.
func (c *YahooClient) QuoteSummary(ctx context.Context, symbol string, modules []string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), strings.Join(modules, ","))

	var payload struct {
		QuoteSummary struct {
			Result []map[string]any `json:"result"`
			Error  *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary error: %s", payload.QuoteSummary.Error.Description)
	}
	if len(payload.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no quote summary for %s", symbol)
	}
	return payload.QuoteSummary.Result[0], nil
}

// SearchQuote is one match from the symbol-search endpoint.
type SearchQuote struct {
	Symbol    string `json:"symbol"`
	LongName  string `json:"longname"`
	ShortName string `json:"shortname"`
	QuoteType string `json:"quoteType"`
}

func (c *YahooClient) Search(ctx context.Context, query string) ([]SearchQuote, error) {
	endpoint := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=6&newsCount=0", c.baseURL, url.QueryEscape(query))

	var payload struct {
		Quotes []SearchQuote `json:"quotes"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Quotes, nil
}

func (c *YahooClient) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
