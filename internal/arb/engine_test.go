package arb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

func testPair(kID, pID string) matches.Pair {
	return matches.Pair{
		Kalshi:     collectors.Market{Venue: collectors.VenueKalshi, MarketID: kID, Title: "k " + kID},
		Polymarket: collectors.Market{Venue: collectors.VenuePolymarket, MarketID: pID, Title: "p " + pID},
		Score:      95,
	}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEvaluateBothDirections(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02})
	kb := collectors.Orderbook{
		MarketID: "K1",
		YesAsks:  []collectors.OrderbookLevel{lv(0.40, 10)},
		NoAsks:   []collectors.OrderbookLevel{lv(0.30, 5)},
	}
	pb := collectors.Orderbook{
		MarketID: "P1",
		YesAsks:  []collectors.OrderbookLevel{lv(0.60, 8)},
		NoAsks:   []collectors.OrderbookLevel{lv(0.55, 20)},
	}
	opp, err := e.Evaluate(testPair("K1", "P1"), kb, pb)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil || len(opp.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %+v", opp)
	}
	// YES on Polymarket at 0.60 + NO on Kalshi at 0.30 beats 0.40 + 0.55.
	if opp.Levels[0].Direction() != matches.DirectionBuyYesPMBuyNoKalshi {
		t.Fatalf("expected PM-yes level first, got %s", opp.Levels[0].Direction())
	}
	if opp.Levels[0].Quantity != 5 || opp.Levels[1].Quantity != 10 {
		t.Fatalf("unexpected quantities %v, %v", opp.Levels[0].Quantity, opp.Levels[1].Quantity)
	}
	if opp.MatchScore != 95 {
		t.Fatalf("expected match score carried, got %v", opp.MatchScore)
	}
}

func TestEvaluateNoEdge(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02})
	kb := collectors.Orderbook{
		YesAsks: []collectors.OrderbookLevel{lv(0.50, 10)},
		NoAsks:  []collectors.OrderbookLevel{lv(0.51, 10)},
	}
	pb := collectors.Orderbook{
		YesAsks: []collectors.OrderbookLevel{lv(0.49, 10)},
		NoAsks:  []collectors.OrderbookLevel{lv(0.50, 10)},
	}
	opp, err := e.Evaluate(testPair("K1", "P1"), kb, pb)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp != nil {
		t.Fatalf("expected no opportunity, got %+v", opp)
	}
}

func TestEvaluatePropagatesInvalidBook(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02})
	kb := collectors.Orderbook{YesAsks: []collectors.OrderbookLevel{lv(0.5, 10), lv(0.4, 10)}}
	_, err := e.Evaluate(testPair("K1", "P1"), kb, collectors.Orderbook{})
	if !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func aggregateFixture() ([]matches.Pair, map[string]collectors.Orderbook, map[string]collectors.Orderbook) {
	pairs := []matches.Pair{testPair("K1", "P1"), testPair("K2", "P2"), testPair("K3", "P3"), testPair("K4", "P4")}
	kBooks := map[string]collectors.Orderbook{
		"K1": {YesAsks: []collectors.OrderbookLevel{lv(0.45, 10)}},
		"K2": {YesAsks: []collectors.OrderbookLevel{lv(0.30, 10)}},
		"K3": {YesAsks: []collectors.OrderbookLevel{lv(0.10, 10)}},
		"K4": {YesAsks: []collectors.OrderbookLevel{lv(0.50, 10)}},
	}
	pBooks := map[string]collectors.Orderbook{
		"P1": {NoAsks: []collectors.OrderbookLevel{lv(0.50, 10)}},
		"P2": {NoAsks: []collectors.OrderbookLevel{lv(0.50, 10)}},
		// P3 missing: K3 is skipped.
		"P4": {NoAsks: []collectors.OrderbookLevel{lv(0.50, 10)}},
	}
	return pairs, kBooks, pBooks
}

func TestAggregateRanksAndSkipsMissingBooks(t *testing.T) {
	for _, workers := range []int{1, 4} {
		e := mustEngine(t, Config{MinProfit: 0.02, Workers: workers})
		pairs, kBooks, pBooks := aggregateFixture()
		opps, err := e.Aggregate(pairs, kBooks, pBooks)
		if err != nil {
			t.Fatalf("workers=%d: aggregate: %v", workers, err)
		}
		if len(opps) != 2 {
			t.Fatalf("workers=%d: expected 2 opportunities, got %d", workers, len(opps))
		}
		if opps[0].Kalshi.MarketID != "K2" || opps[1].Kalshi.MarketID != "K1" {
			t.Fatalf("workers=%d: unexpected order %s, %s", workers, opps[0].Kalshi.MarketID, opps[1].Kalshi.MarketID)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02})
	opps, err := e.Aggregate(nil, nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}

func TestAggregateStopsOnInvalidBook(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02, Workers: 2})
	pairs, kBooks, pBooks := aggregateFixture()
	kBooks["K2"] = collectors.Orderbook{YesAsks: []collectors.OrderbookLevel{lv(0.3, -5)}}
	if _, err := e.Aggregate(pairs, kBooks, pBooks); !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEvaluateEqualProfitKeepsKalshiYesFirst(t *testing.T) {
	e := mustEngine(t, Config{MinProfit: 0.02})
	kb := collectors.Orderbook{
		YesAsks: []collectors.OrderbookLevel{lv(0.40, 10)},
		NoAsks:  []collectors.OrderbookLevel{lv(0.50, 10)},
	}
	pb := collectors.Orderbook{
		YesAsks: []collectors.OrderbookLevel{lv(0.40, 10)},
		NoAsks:  []collectors.OrderbookLevel{lv(0.50, 10)},
	}
	opp, err := e.Evaluate(testPair("K1", "P1"), kb, pb)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil || len(opp.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %+v", opp)
	}
	if opp.Levels[0].ProfitPercentage != opp.Levels[1].ProfitPercentage {
		t.Fatalf("fixture should tie: %v vs %v", opp.Levels[0].ProfitPercentage, opp.Levels[1].ProfitPercentage)
	}
	if opp.Levels[0].Direction() != matches.DirectionBuyYesKalshiBuyNoPM ||
		opp.Levels[1].Direction() != matches.DirectionBuyYesPMBuyNoKalshi {
		t.Fatalf("expected kalshi-yes level first, got %s then %s", opp.Levels[0].Direction(), opp.Levels[1].Direction())
	}
}

func TestAggregateEqualProfitKeepsPairOrder(t *testing.T) {
	const n = 20
	pairs := make([]matches.Pair, 0, n)
	kBooks := make(map[string]collectors.Orderbook, n)
	pBooks := make(map[string]collectors.Orderbook, n)
	for i := 0; i < n; i++ {
		kID, pID := fmt.Sprintf("K%02d", i), fmt.Sprintf("P%02d", i)
		pairs = append(pairs, testPair(kID, pID))
		kBooks[kID] = collectors.Orderbook{YesAsks: []collectors.OrderbookLevel{lv(0.40, 10)}}
		pBooks[pID] = collectors.Orderbook{NoAsks: []collectors.OrderbookLevel{lv(0.50, 10)}}
	}

	for _, workers := range []int{1, 8} {
		e := mustEngine(t, Config{MinProfit: 0.02, Workers: workers})
		for run := 0; run < 3; run++ {
			opps, err := e.Aggregate(pairs, kBooks, pBooks)
			if err != nil {
				t.Fatalf("workers=%d: aggregate: %v", workers, err)
			}
			if len(opps) != n {
				t.Fatalf("workers=%d: expected %d opportunities, got %d", workers, n, len(opps))
			}
			for i, opp := range opps {
				if opp.Kalshi.MarketID != pairs[i].Kalshi.MarketID {
					t.Fatalf("workers=%d run=%d: position %d holds %s, want %s",
						workers, run, i, opp.Kalshi.MarketID, pairs[i].Kalshi.MarketID)
				}
			}
		}
	}
}
