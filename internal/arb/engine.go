package arb

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

type Config struct {
	// MinProfit is the minimum gross edge per contract, e.g. 0.02.
	MinProfit float64
	// Workers bounds concurrent per-pair evaluation; <=1 runs sequentially.
	Workers int
}

// Engine turns matched pairs and their books into ranked opportunities.
type Engine struct {
	walker  *Walker
	workers int
}

func NewEngine(cfg Config) (*Engine, error) {
	w, err := NewWalker(cfg.MinProfit)
	if err != nil {
		return nil, err
	}
	return &Engine{walker: w, workers: cfg.Workers}, nil
}

// Evaluate walks both strategies for one pair: YES on Kalshi with NO on
// Polymarket, and YES on Polymarket with NO on Kalshi. It returns nil when
// neither produces a level.
func (e *Engine) Evaluate(pair matches.Pair, kalshiBook, polyBook collectors.Orderbook) (*matches.Opportunity, error) {
	yesKalshi, err := e.walker.Walk(kalshiBook.YesAsks, polyBook.NoAsks, collectors.VenueKalshi, collectors.VenuePolymarket)
	if err != nil {
		return nil, fmt.Errorf("pair %s/%s: %w", pair.Kalshi.MarketID, pair.Polymarket.MarketID, err)
	}
	yesPoly, err := e.walker.Walk(polyBook.YesAsks, kalshiBook.NoAsks, collectors.VenuePolymarket, collectors.VenueKalshi)
	if err != nil {
		return nil, fmt.Errorf("pair %s/%s: %w", pair.Kalshi.MarketID, pair.Polymarket.MarketID, err)
	}

	levels := make([]matches.Level, 0, len(yesKalshi)+len(yesPoly))
	levels = append(levels, yesKalshi...)
	levels = append(levels, yesPoly...)
	if len(levels) == 0 {
		return nil, nil
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].ProfitPercentage > levels[j].ProfitPercentage
	})

	return &matches.Opportunity{
		Kalshi:     pair.Kalshi,
		Polymarket: pair.Polymarket,
		MatchScore: pair.Score,
		Levels:     levels,
	}, nil
}

// Aggregate evaluates every pair whose two books are present and ranks the
// opportunities by best level profit, descending. Pairs missing a book are
// skipped. Equal-profit opportunities keep pair order.
func (e *Engine) Aggregate(pairs []matches.Pair, kalshiBooks, polyBooks map[string]collectors.Orderbook) ([]matches.Opportunity, error) {
	results := make([]*matches.Opportunity, len(pairs))

	eval := func(i int) error {
		pair := pairs[i]
		kb, ok := kalshiBooks[pair.Kalshi.MarketID]
		if !ok {
			return nil
		}
		pb, ok := polyBooks[pair.Polymarket.MarketID]
		if !ok {
			return nil
		}
		opp, err := e.Evaluate(pair, kb, pb)
		if err != nil {
			return err
		}
		results[i] = opp
		return nil
	}

	if e.workers > 1 {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i := range pairs {
			g.Go(func() error { return eval(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range pairs {
			if err := eval(i); err != nil {
				return nil, err
			}
		}
	}

	var out []matches.Opportunity
	for _, opp := range results {
		if opp != nil {
			out = append(out, *opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BestProfitPercentage() > out[j].BestProfitPercentage()
	})
	return out, nil
}
