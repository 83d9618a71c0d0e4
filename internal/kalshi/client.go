package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/logging"
)

const (
	defaultBaseURL   = "https://api.elections.kalshi.com/trade-api/v2"
	defaultPageSize  = 1000
	defaultBookDepth = 10
	defaultRPS       = 5.0
)

// Client talks to the Kalshi Trade API.
type Client struct {
	baseURL    string
	pageSize   int
	bookDepth  int
	maxMarkets int
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     *signer
}

// Config provides optional overrides.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	PageSize          int
	BookDepth         int
	// MaxMarkets stops pagination early; 0 lists everything.
	MaxMarkets int

	// APIKeyID and PrivateKeyPEM enable request signing. Public market data
	// does not require it.
	APIKeyID      string
	PrivateKeyPEM []byte
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	depth := cfg.BookDepth
	if depth <= 0 {
		depth = defaultBookDepth
	}

	c := &Client{
		baseURL:    base,
		pageSize:   pageSize,
		bookDepth:  depth,
		maxMarkets: cfg.MaxMarkets,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	if len(cfg.PrivateKeyPEM) > 0 {
		s, err := newSigner(cfg.APIKeyID, cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		c.signer = s
	}
	return c, nil
}

func (c *Client) Name() string {
	return "kalshi"
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenueKalshi
}

// ListMarkets pages through every open market by cursor.
func (c *Client) ListMarkets(ctx context.Context) ([]collectors.Market, error) {
	var out []collectors.Market
	cursor := ""
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("status", "open")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp marketsResponse
		if err := c.get(ctx, "/markets", q, &resp); err != nil {
			return nil, fmt.Errorf("list kalshi markets (page %d): %w", page, err)
		}
		for _, m := range resp.Markets {
			out = append(out, normalizeMarket(m))
		}
		logging.Debugf("[kalshi] page %d: %d markets (total %d)", page, len(resp.Markets), len(out))

		if c.maxMarkets > 0 && len(out) >= c.maxMarkets {
			out = out[:c.maxMarkets]
			break
		}
		cursor = resp.Cursor
		if cursor == "" || len(resp.Markets) == 0 {
			break
		}
	}
	return out, nil
}

// Orderbook reads the bid ladders for a market. Kalshi publishes bids only; a
// YES bid at p is a NO ask at 1-p, so the ask ladders are derived from the
// opposite side.
func (c *Client) Orderbook(ctx context.Context, m collectors.Market) (collectors.Orderbook, error) {
	if m.MarketID == "" {
		return collectors.Orderbook{}, fmt.Errorf("%w: kalshi market without ticker", collectors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("depth", strconv.Itoa(c.bookDepth))

	var resp orderbookResponse
	path := "/markets/" + url.PathEscape(m.MarketID) + "/orderbook"
	if err := c.get(ctx, path, q, &resp); err != nil {
		return collectors.Orderbook{}, fmt.Errorf("kalshi orderbook %s: %w", m.MarketID, err)
	}
	return buildOrderbook(m.MarketID, resp.Orderbook), nil
}

func buildOrderbook(ticker string, raw rawOrderbook) collectors.Orderbook {
	yesBids := convertLevels(raw.Yes)
	noBids := convertLevels(raw.No)
	ob := collectors.Orderbook{
		MarketID: ticker,
		YesBids:  yesBids,
		NoBids:   noBids,
		YesAsks:  deriveAsksFromOpposite(noBids),
		NoAsks:   deriveAsksFromOpposite(yesBids),
	}
	collectors.SortBook(&ob)
	return ob
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var attempt int
	for {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.signer != nil {
			// Signature covers the path without the query string.
			if err := c.signer.sign(req, http.MethodGet, signPath(c.baseURL, path)); err != nil {
				return err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && shouldRetry(attempt, 0) {
				if err := sleep(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) {
			logging.Debugf("[kalshi] %s returned %s, retry %d", path, resp.Status, attempt)
			if err := sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("kalshi API %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

// signPath returns the full request path Kalshi expects in the signature,
// e.g. /trade-api/v2/markets.
func signPath(baseURL, path string) string {
	if u, err := url.Parse(baseURL); err == nil {
		return strings.TrimRight(u.Path, "/") + path
	}
	return path
}

func normalizeMarket(m market) collectors.Market {
	var closeTime time.Time
	if m.CloseTime != "" {
		if ts, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
			closeTime = ts
		}
	}
	return collectors.Market{
		Venue:       collectors.VenueKalshi,
		MarketID:    m.Ticker,
		Title:       m.Title,
		CloseTime:   closeTime,
		EventTicker: m.EventTicker,
		YesAsk:      centsToFloat(m.YesAsk),
		NoAsk:       centsToFloat(m.NoAsk),
	}
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
}

func convertLevels(levels [][]float64) []collectors.OrderbookLevel {
	out := make([]collectors.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		out = append(out, collectors.OrderbookLevel{
			Price: lvl[0] / 100.0,
			Size:  lvl[1],
		})
	}
	return out
}

func deriveAsksFromOpposite(oppositeBids []collectors.OrderbookLevel) []collectors.OrderbookLevel {
	if len(oppositeBids) == 0 {
		return nil
	}
	asks := make([]collectors.OrderbookLevel, 0, len(oppositeBids))
	for _, lvl := range oppositeBids {
		asks = append(asks, collectors.OrderbookLevel{
			Price: (100 - math.Round(lvl.Price*100)) / 100,
			Size:  lvl.Size,
		})
	}
	return asks
}

type marketsResponse struct {
	Markets []market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	CloseTime   string `json:"close_time"`
	YesAsk      int64  `json:"yes_ask"`
	NoAsk       int64  `json:"no_ask"`
}

type orderbookResponse struct {
	Orderbook rawOrderbook `json:"orderbook"`
}

// Levels are [price_cents, size] pairs; either side may be null.
type rawOrderbook struct {
	Yes [][]float64 `json:"yes"`
	No  [][]float64 `json:"no"`
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= 5 {
		return false
	}
	if status == 0 {
		return true
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	return false
}

var backoffUnit = time.Second

func sleep(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt-1)) * backoffUnit
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
