package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Upstream providers
	StockAPIKey     string
	AlphaVantageURL string
	YahooFinanceURL string
	FXRateURL       string
	SearchURL       string
	HTTPTimeoutSecs int

	// Persisted cache store (optional; absence degrades to "no cache")
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// API
	Port            int
	APIKey          string
	CORSAllowOrigin string

	// Behavior
	AllowMockFallback bool
	Debug             bool

	// Cache TTLs
	RankingCacheTTL time.Duration
	PoolCacheTTL    time.Duration
	DetailCacheTTL  time.Duration
	NameCacheTTL    time.Duration
	MarketCacheTTL  time.Duration
	ProfileCacheTTL time.Duration

	// Request budgets
	IntradayTickerBudget int
	DailyTickerBudget    int
	NameLookupBudget     int
	CandidatePoolSize    int

	// AR watch-list and background refresh
	WatchList   []string
	RefreshCron string
}

var defaultWatchList = []string{
	"GGAL", "YPFD", "PAMP", "TXAR", "LOMA",
	"CEPU", "EDN", "CRES", "SUPV", "BMA",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StockAPIKey:     envStr("STOCK_API_KEY", "demo"),
		AlphaVantageURL: envStr("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co"),
		YahooFinanceURL: envStr("YAHOO_FINANCE_BASE_URL", "https://query1.finance.yahoo.com"),
		FXRateURL:       envStr("FX_RATE_URL", "https://open.er-api.com/v6/latest/USD"),
		SearchURL:       envStr("SYMBOL_SEARCH_BASE_URL", "https://query1.finance.yahoo.com"),
		HTTPTimeoutSecs: envInt("HTTP_TIMEOUT_SECONDS", 10),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "alzas"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		Port:            envInt("PORT", 3001),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		AllowMockFallback: envBool("ALLOW_MOCK_FALLBACK", false),
		Debug:             envBool("DEBUG", false),

		RankingCacheTTL: envSeconds("RANKING_CACHE_TTL_SECONDS", 5*time.Minute),
		PoolCacheTTL:    envSeconds("TOP_MOVERS_CACHE_TTL_SECONDS", time.Minute),
		DetailCacheTTL:  envSeconds("DETAIL_CACHE_TTL_SECONDS", time.Minute),
		NameCacheTTL:    envSeconds("NAME_CACHE_TTL_SECONDS", 24*time.Hour),
		MarketCacheTTL:  envSeconds("ARGENTINA_CACHE_TTL_SECONDS", 5*time.Minute),
		ProfileCacheTTL: envSeconds("ARGENTINA_COMPANY_PROFILE_CACHE_TTL_SECONDS", 24*time.Hour),

		IntradayTickerBudget: envInt("INTRADAY_TICKER_BUDGET", 5),
		DailyTickerBudget:    envInt("DAILY_TICKER_BUDGET", 6),
		NameLookupBudget:     envInt("NAME_LOOKUP_BUDGET", 3),
		CandidatePoolSize:    envInt("CANDIDATE_POOL_SIZE", 24),

		WatchList:   envList("BYMA_WATCHLIST", defaultWatchList),
		RefreshCron: envStr("REFRESH_CRON", "*/5 * * * *"),
	}

	return cfg, nil
}

// DBConfigured reports whether the persisted cache store can be reached at
// all. When false every cache-table read degrades to "no cache available".
func (c *Config) DBConfigured() bool {
	return c.DBUser != ""
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

func (c *Config) Validate() error {
	var errs []string

	if c.StockAPIKey == "demo" {
		fmt.Println("[WARN] STOCK_API_KEY not set: using the provider demo key (heavily rate limited)")
	}
	if !c.DBConfigured() {
		fmt.Println("[WARN] DB_USER not set: persisted cache disabled, fallback tiers limited to in-memory data")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set: REST API has no authentication")
	}
	if c.AllowMockFallback {
		fmt.Println("[WARN] ALLOW_MOCK_FALLBACK enabled: empty results will be replaced with demo rows")
	}
	if len(c.WatchList) == 0 {
		errs = append(errs, "BYMA_WATCHLIST must not be empty")
	}
	if c.HTTPTimeoutSecs <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Alzas Market Backend Configuration ===")
	fmt.Printf("Port: %d\n", c.Port)
	fmt.Printf("Provider key: %s\n", boolLabel(c.StockAPIKey != "demo", "configured", "demo"))
	fmt.Printf("Persisted cache: %s\n", boolLabel(c.DBConfigured(), fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName), "disabled"))
	fmt.Printf("Mock fallback: %v\n", c.AllowMockFallback)
	fmt.Println("------------------------------------------")
	fmt.Printf("Ticker budgets: intraday=%d daily=%d\n", c.IntradayTickerBudget, c.DailyTickerBudget)
	fmt.Printf("Name lookup budget: %d\n", c.NameLookupBudget)
	fmt.Printf("Candidate pool size: %d\n", c.CandidatePoolSize)
	fmt.Printf("AR watch-list: %s\n", strings.Join(c.WatchList, ","))
	fmt.Printf("Background refresh: %s\n", c.RefreshCron)
	fmt.Println("==========================================")
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
