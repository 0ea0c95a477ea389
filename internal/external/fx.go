package external

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/alzas-app/alzas-backend/internal/httputil"
)

// FXClient fetches the USD→ARS reference rate. A missing or non-positive
// rate is an error, never a defaulted number.
type FXClient struct {
	url        string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewFXClient(url string, timeout time.Duration) *FXClient {
	return &FXClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

func (c *FXClient) USDARSRate(ctx context.Context) (float64, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("fx fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fx request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("fx decode: %w", err)
	}

	rate, ok := payload.Rates["ARS"]
	if !ok || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("fx response missing valid ARS rate")
	}
	return rate, nil
}
