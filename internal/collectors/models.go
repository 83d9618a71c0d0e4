package collectors

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Venue identifies the platform a market belongs to.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Short returns the one-letter venue tag used in strategy strings.
func (v Venue) Short() string {
	switch v {
	case VenueKalshi:
		return "K"
	case VenuePolymarket:
		return "P"
	default:
		return "?"
	}
}

// Source is implemented by venue-specific clients (Kalshi, Polymarket).
// A source hands back complete snapshots; partial pages are an error.
type Source interface {
	Name() string
	Venue() Venue
	ListMarkets(ctx context.Context) ([]Market, error)
	Orderbook(ctx context.Context, m Market) (Orderbook, error)
}

// Market is the platform-agnostic record of one tradable market.
// Identity is (Venue, MarketID); the title is only used for similarity.
type Market struct {
	Venue     Venue     `json:"venue"`
	MarketID  string    `json:"market_id"`
	Title     string    `json:"title"`
	CloseTime time.Time `json:"close_time,omitempty"`

	// Kalshi cross-reference.
	EventTicker string `json:"event_ticker,omitempty"`

	// Polymarket cross-reference.
	YesTokenID string `json:"yes_token_id,omitempty"`
	NoTokenID  string `json:"no_token_id,omitempty"`
	Slug       string `json:"slug,omitempty"`
	EventSlug  string `json:"event_slug,omitempty"`

	// Top-of-book hints reported with the listing, zero when absent.
	YesAsk float64 `json:"yes_ask,omitempty"`
	NoAsk  float64 `json:"no_ask,omitempty"`
}

// Key is the identity of a market across venues.
func (m Market) Key() string {
	return fmt.Sprintf("%s:%s", m.Venue, m.MarketID)
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)

// NormalizedTitle lowercases the title, turns punctuation into whitespace and
// collapses runs of whitespace.
func (m Market) NormalizedTitle() string {
	return NormalizeTitle(m.Title)
}

// NormalizeTitle is the normalization behind Market.NormalizedTitle.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = nonWordRe.ReplaceAllString(t, " ")
	return strings.Join(strings.Fields(t), " ")
}

var seriesSuffixRe = regexp.MustCompile(`-\d`)

// URL returns the human-facing page for the market, or "" if unknown.
func (m Market) URL() string {
	switch m.Venue {
	case VenueKalshi:
		ticker := m.EventTicker
		if ticker == "" {
			ticker = m.MarketID
		}
		if ticker == "" {
			return ""
		}
		// KXFRENCHPRES-27 -> KXFRENCHPRES
		if loc := seriesSuffixRe.FindStringIndex(ticker); loc != nil {
			ticker = ticker[:loc[0]]
		}
		return "https://kalshi.com/markets/" + strings.ToLower(ticker)
	case VenuePolymarket:
		if m.EventSlug != "" {
			return "https://polymarket.com/event/" + m.EventSlug
		}
		if m.Slug != "" {
			return "https://polymarket.com/event/" + m.Slug
		}
	}
	return ""
}

// OrderbookLevel is a single price/size pair. Price is probability scaled.
type OrderbookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Validate reports ErrInvalidInput for sizes below zero, prices outside [0,1]
// and non-finite values.
func (l OrderbookLevel) Validate() error {
	if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price < 0 || l.Price > 1 {
		return fmt.Errorf("%w: price %v outside [0,1]", ErrInvalidInput, l.Price)
	}
	if math.IsNaN(l.Size) || math.IsInf(l.Size, 0) || l.Size < 0 {
		return fmt.Errorf("%w: negative or non-finite size %v", ErrInvalidInput, l.Size)
	}
	return nil
}

// Orderbook is one immutable read of a market's depth.
// Bids are descending by price, asks ascending.
type Orderbook struct {
	MarketID string           `json:"market_id"`
	YesBids  []OrderbookLevel `json:"yes_bids"`
	YesAsks  []OrderbookLevel `json:"yes_asks"`
	NoBids   []OrderbookLevel `json:"no_bids"`
	NoAsks   []OrderbookLevel `json:"no_asks"`
}

// Empty reports whether the book has no levels at all.
func (ob Orderbook) Empty() bool {
	return len(ob.YesBids) == 0 && len(ob.YesAsks) == 0 && len(ob.NoBids) == 0 && len(ob.NoAsks) == 0
}
