package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/logging"
)

const (
	defaultGammaURL = "https://gamma-api.polymarket.com"
	defaultClobURL  = "https://clob.polymarket.com"
	pageSize        = 100
	defaultRPS      = 10.0
)

// Client combines the Gamma listing API with the CLOB book API.
type Client struct {
	gammaURL   string
	clobURL    string
	maxMarkets int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config controls optional overrides for the client.
type Config struct {
	GammaURL          string
	ClobURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// MaxMarkets stops pagination early; 0 lists everything.
	MaxMarkets int
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(cfg Config) *Client {
	gamma := strings.TrimRight(cfg.GammaURL, "/")
	if gamma == "" {
		gamma = defaultGammaURL
	}
	clob := strings.TrimRight(cfg.ClobURL, "/")
	if clob == "" {
		clob = defaultClobURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	return &Client{
		gammaURL:   gamma,
		clobURL:    clob,
		maxMarkets: cfg.MaxMarkets,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) Name() string {
	return "polymarket"
}

func (c *Client) Venue() collectors.Venue {
	return collectors.VenuePolymarket
}

// ListMarkets pages through active markets by offset and keeps the ones that
// accept orders on the CLOB and carry both outcome tokens.
func (c *Client) ListMarkets(ctx context.Context) ([]collectors.Market, error) {
	var out []collectors.Market
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("active", "true")
		q.Set("closed", "false")

		var page []gammaMarket
		if err := c.get(ctx, c.gammaURL+"/markets", q, &page); err != nil {
			return nil, fmt.Errorf("polymarket list markets (offset %d): %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if norm, ok := normalizeMarket(m); ok {
				out = append(out, norm)
			}
		}
		logging.Debugf("[polymarket] offset %d: %d listed, %d tradable so far", offset, len(page), len(out))

		if c.maxMarkets > 0 && len(out) >= c.maxMarkets {
			out = out[:c.maxMarkets]
			break
		}
		if len(page) < pageSize {
			break
		}
	}
	return out, nil
}

// Orderbook fetches the CLOB book of both outcome tokens. A token whose fetch
// fails contributes empty sides rather than failing the whole book.
func (c *Client) Orderbook(ctx context.Context, m collectors.Market) (collectors.Orderbook, error) {
	if m.YesTokenID == "" || m.NoTokenID == "" {
		return collectors.Orderbook{}, fmt.Errorf("%w: polymarket market %s without token ids", collectors.ErrInvalidInput, m.MarketID)
	}

	yes, yesErr := c.fetchBook(ctx, m.YesTokenID)
	if yesErr != nil {
		if ctx.Err() != nil {
			return collectors.Orderbook{}, ctx.Err()
		}
		logging.Warnf("[polymarket] yes book %s: %v", m.MarketID, yesErr)
	}
	no, noErr := c.fetchBook(ctx, m.NoTokenID)
	if noErr != nil {
		if ctx.Err() != nil {
			return collectors.Orderbook{}, ctx.Err()
		}
		logging.Warnf("[polymarket] no book %s: %v", m.MarketID, noErr)
	}

	ob := collectors.Orderbook{
		MarketID: m.MarketID,
		YesBids:  yes.bids,
		YesAsks:  yes.asks,
		NoBids:   no.bids,
		NoAsks:   no.asks,
	}
	collectors.SortBook(&ob)
	return ob, nil
}

type tokenBook struct {
	bids []collectors.OrderbookLevel
	asks []collectors.OrderbookLevel
}

func (c *Client) fetchBook(ctx context.Context, tokenID string) (tokenBook, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	var book clobBook
	if err := c.get(ctx, c.clobURL+"/book", q, &book); err != nil {
		return tokenBook{}, err
	}
	return tokenBook{bids: convertLevels(book.Bids), asks: convertLevels(book.Asks)}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, q url.Values, dst any) error {
	u := rawURL
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
			if err := sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("polymarket API %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func normalizeMarket(m gammaMarket) (collectors.Market, bool) {
	if !m.EnableOrderBook || !m.AcceptingOrders {
		return collectors.Market{}, false
	}
	ids := parseClobTokenIDs(m.ClobTokenIDs)
	if len(ids) < 2 || ids[0] == "" || ids[1] == "" {
		return collectors.Market{}, false
	}

	var closeTime time.Time
	if m.EndDate != "" {
		if ts, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			closeTime = ts
		}
	}
	var eventSlug string
	if len(m.Events) > 0 {
		eventSlug = m.Events[0].Slug
	}

	// First token is YES, second NO.
	return collectors.Market{
		Venue:      collectors.VenuePolymarket,
		MarketID:   m.ConditionID,
		Title:      m.Question,
		CloseTime:  closeTime,
		YesTokenID: ids[0],
		NoTokenID:  ids[1],
		Slug:       m.Slug,
		EventSlug:  eventSlug,
	}, true
}

// parseClobTokenIDs accepts both the JSON-encoded string Gamma usually returns
// and a plain array.
func parseClobTokenIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || strings.TrimSpace(encoded) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil
	}
	return ids
}

// convertLevels parses CLOB string prices exactly and drops unparseable levels.
func convertLevels(levels []clobLevel) []collectors.OrderbookLevel {
	out := make([]collectors.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		out = append(out, collectors.OrderbookLevel{
			Price: price.InexactFloat64(),
			Size:  size.InexactFloat64(),
		})
	}
	return out
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

type gammaMarket struct {
	ID              string          `json:"id"`
	ConditionID     string          `json:"conditionId"`
	Question        string          `json:"question"`
	Slug            string          `json:"slug"`
	EndDate         string          `json:"endDate"`
	EnableOrderBook bool            `json:"enableOrderBook"`
	AcceptingOrders bool            `json:"acceptingOrders"`
	ClobTokenIDs    json.RawMessage `json:"clobTokenIds"`
	Events          []gammaEvent    `json:"events"`
}

type gammaEvent struct {
	Slug string `json:"slug"`
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
