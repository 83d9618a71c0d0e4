package collectors

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidInput marks a caller contract violation: malformed levels,
// unsorted ladders, non-positive fee quantities.
var ErrInvalidInput = errors.New("invalid input")

// ValidateAsks checks every level and that prices ascend.
func ValidateAsks(levels []OrderbookLevel) error {
	for i, lvl := range levels {
		if err := lvl.Validate(); err != nil {
			return fmt.Errorf("ask %d: %w", i, err)
		}
	}
	if !sort.SliceIsSorted(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price }) {
		return fmt.Errorf("%w: asks not ascending by price", ErrInvalidInput)
	}
	return nil
}

// SortBook orders bids descending and asks ascending in place.
// Venue clients call it before handing a book to the engine.
func SortBook(ob *Orderbook) {
	desc := func(levels []OrderbookLevel) {
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	}
	asc := func(levels []OrderbookLevel) {
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	}
	desc(ob.YesBids)
	desc(ob.NoBids)
	asc(ob.YesAsks)
	asc(ob.NoAsks)
}
