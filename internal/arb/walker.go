package arb

import (
	"fmt"
	"math"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

// DefaultMinProfit is the 2% gross edge below which a level is not reported.
const DefaultMinProfit = 0.02

// Walker enumerates profitable level combinations of a YES ask ladder on one
// venue against a NO ask ladder on the other.
type Walker struct {
	minProfit float64
}

func NewWalker(minProfit float64) (*Walker, error) {
	if math.IsNaN(minProfit) || math.IsInf(minProfit, 0) || minProfit < 0 || minProfit > 1 {
		return nil, fmt.Errorf("%w: min profit %v outside [0,1]", collectors.ErrInvalidInput, minProfit)
	}
	return &Walker{minProfit: minProfit}, nil
}

// Walk consumes both ascending ladders at once. Each step prices the two heads,
// stops as soon as the gross edge drops under the minimum (cost only rises from
// there), emits min(remaining) contracts, and advances whichever head ran out.
// Levels come back in non-increasing profit order.
//
// Malformed input (negative size, price outside [0,1], unsorted asks) returns
// ErrInvalidInput instead of a silently wrong ranking.
func (w *Walker) Walk(yesAsks, noAsks []collectors.OrderbookLevel, yesVenue, noVenue collectors.Venue) ([]matches.Level, error) {
	if err := collectors.ValidateAsks(yesAsks); err != nil {
		return nil, fmt.Errorf("yes asks on %s: %w", yesVenue, err)
	}
	if err := collectors.ValidateAsks(noAsks); err != nil {
		return nil, fmt.Errorf("no asks on %s: %w", noVenue, err)
	}

	var levels []matches.Level
	yesIdx, noIdx := 0, 0
	var yesLeft, noLeft float64
	if len(yesAsks) > 0 {
		yesLeft = yesAsks[0].Size
	}
	if len(noAsks) > 0 {
		noLeft = noAsks[0].Size
	}

	for yesIdx < len(yesAsks) && noIdx < len(noAsks) {
		yesPrice := yesAsks[yesIdx].Price
		noPrice := noAsks[noIdx].Price

		totalCost := yesPrice + noPrice
		profit := 1 - totalCost
		if profit < w.minProfit {
			break
		}

		qty := math.Min(yesLeft, noLeft)
		if qty > 0 {
			levels = append(levels, matches.Level{
				BuyYesVenue:      yesVenue,
				BuyYesPrice:      yesPrice,
				BuyNoVenue:       noVenue,
				BuyNoPrice:       noPrice,
				Quantity:         qty,
				TotalCost:        totalCost,
				ProfitPercentage: profit,
				MaxProfitDollars: qty * profit,
			})
			yesLeft -= qty
			noLeft -= qty
		}

		if yesLeft <= 0 {
			yesIdx++
			if yesIdx < len(yesAsks) {
				yesLeft = yesAsks[yesIdx].Size
			}
		}
		if noLeft <= 0 {
			noIdx++
			if noIdx < len(noAsks) {
				noLeft = noAsks[noIdx].Size
			}
		}
	}
	return levels, nil
}
