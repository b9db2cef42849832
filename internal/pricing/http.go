package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cryptobasis/internal/domain"
)

// historyResponse is the price API payload for one (symbol, day) lookup.
type historyResponse struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Close  string `json:"close"` // decimal string, never float
}

// HTTPOracle fetches daily closes from a JSON price API, caches results
// per (symbol, day), and rate-limits outbound requests. Daily closes are
// immutable, so cached entries never expire during a run.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
	limiter *rate.Limiter
}

// NewHTTPOracle creates an HTTPOracle against baseURL. The endpoint is
// GET {baseURL}/v1/history?symbol=BTC&date=2023-06-01.
func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		cache:   gocache.New(gocache.NoExpiration, 0),
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// GetPrice implements Oracle.
func (o *HTTPOracle) GetPrice(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	symbol = domain.NormalizeCoin(symbol)
	date := day.UTC().Format("2006-01-02")
	cacheKey := symbol + "|" + date

	if cached, ok := o.cache.Get(cacheKey); ok {
		return cached.(decimal.Decimal), nil
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return decimal.Decimal{}, err
	}

	u := fmt.Sprintf("%s/v1/history?symbol=%s&date=%s", o.baseURL, url.QueryEscape(symbol), date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build price request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch price %s@%s: %w", symbol, date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, ErrPriceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("price API returned %d for %s@%s", resp.StatusCode, symbol, date)
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode price response: %w", err)
	}
	price, err := decimal.NewFromString(payload.Close)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", payload.Close, err)
	}

	o.cache.Set(cacheKey, price, gocache.NoExpiration)
	return price, nil
}

var _ Oracle = (*HTTPOracle)(nil)
