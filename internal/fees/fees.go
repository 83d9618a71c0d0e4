package fees

import (
	"fmt"
	"math"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

const (
	// DefaultKalshiCoefficient is k in ceil(k * contracts * p * (1-p) * 100) / 100.
	DefaultKalshiCoefficient = 0.07
	// DefaultPolymarketRate is the flat taker rate on notional.
	DefaultPolymarketRate = 0.0
)

type Config struct {
	KalshiCoefficient float64
	PolymarketRate    float64
}

// Model holds the per-venue taker fee formulas. It has no state beyond its
// coefficients and is safe for concurrent use.
type Model struct {
	kalshiK  float64
	polyRate float64
}

func New(cfg Config) (*Model, error) {
	if cfg.KalshiCoefficient < 0 || math.IsNaN(cfg.KalshiCoefficient) {
		return nil, fmt.Errorf("%w: kalshi fee coefficient %v", collectors.ErrInvalidInput, cfg.KalshiCoefficient)
	}
	if cfg.PolymarketRate < 0 || math.IsNaN(cfg.PolymarketRate) {
		return nil, fmt.Errorf("%w: polymarket fee rate %v", collectors.ErrInvalidInput, cfg.PolymarketRate)
	}
	return &Model{kalshiK: cfg.KalshiCoefficient, polyRate: cfg.PolymarketRate}, nil
}

// Default is the model with the published venue rates.
func Default() *Model {
	return &Model{kalshiK: DefaultKalshiCoefficient, polyRate: DefaultPolymarketRate}
}

func checkArgs(contracts int, price float64) error {
	if contracts <= 0 {
		return fmt.Errorf("%w: contracts %d must be positive", collectors.ErrInvalidInput, contracts)
	}
	if math.IsNaN(price) || price < 0 || price > 1 {
		return fmt.Errorf("%w: price %v outside [0,1]", collectors.ErrInvalidInput, price)
	}
	return nil
}

// KalshiTakerFee is ceil(k * contracts * price * (1-price) * 100) / 100 dollars.
// The fee always rounds up to the next cent.
func KalshiTakerFee(k float64, contracts int, price float64) (float64, error) {
	if err := checkArgs(contracts, price); err != nil {
		return 0, err
	}
	cents := math.Ceil(k * float64(contracts) * price * (1 - price) * 100)
	return cents / 100, nil
}

// PolymarketTakerFee is contracts * price * rate dollars.
func PolymarketTakerFee(rate float64, contracts int, price float64) (float64, error) {
	if err := checkArgs(contracts, price); err != nil {
		return 0, err
	}
	return float64(contracts) * price * rate, nil
}

// TakerFee dispatches on venue.
func (m *Model) TakerFee(v collectors.Venue, contracts int, price float64) (float64, error) {
	switch v {
	case collectors.VenueKalshi:
		return KalshiTakerFee(m.kalshiK, contracts, price)
	case collectors.VenuePolymarket:
		return PolymarketTakerFee(m.polyRate, contracts, price)
	default:
		return 0, fmt.Errorf("%w: unknown venue %q", collectors.ErrInvalidInput, v)
	}
}

// Breakdown is the fee owed to each venue for one two-legged trade.
type Breakdown struct {
	Kalshi     float64
	Polymarket float64
}

func (b Breakdown) Total() float64 {
	return b.Kalshi + b.Polymarket
}

// Estimate prices both legs of a level as taker orders of the given size.
func (m *Model) Estimate(l matches.Level, contracts int) (Breakdown, error) {
	var out Breakdown
	legs := []struct {
		venue collectors.Venue
		price float64
	}{
		{l.BuyYesVenue, l.BuyYesPrice},
		{l.BuyNoVenue, l.BuyNoPrice},
	}
	for _, leg := range legs {
		fee, err := m.TakerFee(leg.venue, contracts, leg.price)
		if err != nil {
			return Breakdown{}, err
		}
		switch leg.venue {
		case collectors.VenueKalshi:
			out.Kalshi += fee
		case collectors.VenuePolymarket:
			out.Polymarket += fee
		}
	}
	return out, nil
}

// Net deducts fees from the level's gross profit using its whole-contract
// quantity. ok is false when the level holds less than one contract.
func (m *Model) Net(l matches.Level) (matches.NetLevel, bool, error) {
	contracts := int(math.Floor(l.Quantity))
	if contracts < 1 {
		return matches.NetLevel{}, false, nil
	}
	b, err := m.Estimate(l, contracts)
	if err != nil {
		return matches.NetLevel{}, false, err
	}
	gross := float64(contracts) * l.ProfitPercentage
	return matches.NetLevel{
		Level:         l,
		Contracts:     contracts,
		KalshiFee:     b.Kalshi,
		PolymarketFee: b.Polymarket,
		GrossProfit:   gross,
		NetProfit:     gross - b.Total(),
	}, true, nil
}
