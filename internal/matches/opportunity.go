package matches

import "github.com/hetulpatel/arbwatch/internal/collectors"

type Direction string

const (
	DirectionNone                Direction = ""
	DirectionBuyYesKalshiBuyNoPM Direction = "BUY_YES_KALSHI_BUY_NO_PM"
	DirectionBuyYesPMBuyNoKalshi Direction = "BUY_YES_PM_BUY_NO_KALSHI"
)

// DirectionFor names the strategy given the venue supplying the YES leg.
func DirectionFor(yesVenue collectors.Venue) Direction {
	switch yesVenue {
	case collectors.VenueKalshi:
		return DirectionBuyYesKalshiBuyNoPM
	case collectors.VenuePolymarket:
		return DirectionBuyYesPMBuyNoKalshi
	default:
		return DirectionNone
	}
}

// Level is one profitable price-level combination. Profit is gross of fees.
type Level struct {
	BuyYesVenue      collectors.Venue `json:"buy_yes_venue"`
	BuyYesPrice      float64          `json:"buy_yes_price"`
	BuyNoVenue       collectors.Venue `json:"buy_no_venue"`
	BuyNoPrice       float64          `json:"buy_no_price"`
	Quantity         float64          `json:"quantity"`
	TotalCost        float64          `json:"total_cost"`
	ProfitPercentage float64          `json:"profit_percentage"`
	MaxProfitDollars float64          `json:"max_profit_dollars"`
}

func (l Level) Direction() Direction {
	return DirectionFor(l.BuyYesVenue)
}

// Opportunity groups every profitable level of one matched pair, best first.
// It only exists with at least one level.
type Opportunity struct {
	Kalshi     collectors.Market `json:"kalshi"`
	Polymarket collectors.Market `json:"polymarket"`
	MatchScore float64           `json:"match_score"`
	Levels     []Level           `json:"levels"`
}

func (o *Opportunity) Pair() Pair {
	return Pair{Kalshi: o.Kalshi, Polymarket: o.Polymarket, Score: o.MatchScore}
}

// BestLevel returns the first (most profitable) level.
func (o *Opportunity) BestLevel() (Level, bool) {
	if o == nil || len(o.Levels) == 0 {
		return Level{}, false
	}
	return o.Levels[0], true
}

func (o *Opportunity) TotalQuantity() float64 {
	var sum float64
	for _, l := range o.Levels {
		sum += l.Quantity
	}
	return sum
}

func (o *Opportunity) TotalMaxProfit() float64 {
	var sum float64
	for _, l := range o.Levels {
		sum += l.MaxProfitDollars
	}
	return sum
}

func (o *Opportunity) BestProfitPercentage() float64 {
	if best, ok := o.BestLevel(); ok {
		return best.ProfitPercentage
	}
	return 0
}
