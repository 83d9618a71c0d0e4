package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/arbwatch/internal/collectors"
)

// Cycle is everything one polling cycle read from both venues. It is built
// once, handed to the engine, and discarded at the end of the cycle.
type Cycle struct {
	ID                string                          `json:"id"`
	StartedAt         time.Time                       `json:"started_at"`
	KalshiMarkets     []collectors.Market             `json:"kalshi_markets"`
	PolymarketMarkets []collectors.Market             `json:"polymarket_markets"`
	KalshiBooks       map[string]collectors.Orderbook `json:"kalshi_books"`
	PolymarketBooks   map[string]collectors.Orderbook `json:"polymarket_books"`
}

// NewCycle starts an empty cycle with a fresh id.
func NewCycle(startedAt time.Time) *Cycle {
	return &Cycle{
		ID:              uuid.NewString(),
		StartedAt:       startedAt.UTC(),
		KalshiBooks:     make(map[string]collectors.Orderbook),
		PolymarketBooks: make(map[string]collectors.Orderbook),
	}
}

// Books returns the book map for a venue.
func (c *Cycle) Books(v collectors.Venue) map[string]collectors.Orderbook {
	switch v {
	case collectors.VenueKalshi:
		return c.KalshiBooks
	case collectors.VenuePolymarket:
		return c.PolymarketBooks
	default:
		return nil
	}
}
