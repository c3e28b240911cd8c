package price

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klemjul/cryptochat/internal/logger"
	"github.com/tidwall/gjson"
)

// ErrNoQuote is returned when the index has no usd price for a symbol.
var ErrNoQuote = errors.New("no quote in response")

type Quote struct {
	Symbol    string
	USD       float64
	Change24h float64
	UpdatedAt time.Time
}

// APIError represents a non-success response from the price index.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price API error [%d] at %s", e.StatusCode, e.Endpoint)
}

// Fetcher returns the current quote of one symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// Client queries the CoinGecko simple price endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

func (c *Client) Fetch(ctx context.Context, symbol string) (Quote, error) {
	query := url.Values{}
	query.Set("ids", symbol)
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("price request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		logger.L.Warn("price API returned non-success status", "status", res.StatusCode, "symbol", symbol)
		return Quote{}, &APIError{StatusCode: res.StatusCode, Endpoint: c.baseURL + "/simple/price"}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return Quote{}, fmt.Errorf("failed to read price response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return Quote{}, fmt.Errorf("%w: invalid JSON", ErrNoQuote)
	}

	entry := gjson.GetBytes(body, symbol)
	usd := entry.Get("usd")
	if !usd.Exists() {
		return Quote{}, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}

	return Quote{
		Symbol:    symbol,
		USD:       usd.Float(),
		Change24h: entry.Get("usd_24h_change").Float(),
		UpdatedAt: c.now(),
	}, nil
}
