package bot

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/arbwatch/internal/arb"
	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/fees"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matcher"
	"github.com/hetulpatel/arbwatch/internal/matches"
	"github.com/hetulpatel/arbwatch/internal/models"
	"github.com/hetulpatel/arbwatch/internal/report"
	sqlstore "github.com/hetulpatel/arbwatch/internal/storage/sqlite"
)

// PairFilter drops matched pairs before books are fetched.
type PairFilter interface {
	Filter(ctx context.Context, pairs []matches.Pair) []matches.Pair
}

// Store persists cycle results.
type Store interface {
	UpsertCycle(ctx context.Context, c sqlstore.CycleStats) error
	InsertOpportunities(ctx context.Context, payloads []matches.Payload) error
}

// Publisher fans opportunities out to downstream consumers.
type Publisher interface {
	PublishOpportunities(ctx context.Context, payloads []matches.Payload) (int, error)
}

type Config struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
	// BookWorkers caps concurrent orderbook requests across both venues.
	BookWorkers int
	MinProfit   float64
}

// Deps are the collaborators of a Bot. Kalshi, Polymarket, Matcher, Engine and
// Fees are required; the rest are optional.
type Deps struct {
	Kalshi     collectors.Source
	Polymarket collectors.Source
	Matcher    *matcher.Matcher
	MatchLog   *matcher.Logger
	Engine     *arb.Engine
	Fees       *fees.Model
	Validator  PairFilter
	Store      Store
	Publisher  Publisher
	Out        io.Writer
	Now        func() time.Time
}

// Bot runs fetch, match, book and aggregate cycles.
type Bot struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) (*Bot, error) {
	switch {
	case deps.Kalshi == nil || deps.Polymarket == nil:
		return nil, fmt.Errorf("bot: both venue sources are required")
	case deps.Matcher == nil:
		return nil, fmt.Errorf("bot: matcher is required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("bot: engine is required")
	case deps.Fees == nil:
		return nil, fmt.Errorf("bot: fee model is required")
	}
	if cfg.BookWorkers <= 0 {
		cfg.BookWorkers = 8
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Bot{cfg: cfg, deps: deps}, nil
}

// Result is the outcome of one cycle.
type Result struct {
	Cycle         *models.Cycle
	Pairs         []matches.Pair
	Opportunities []matches.Opportunity
	Payloads      []matches.Payload
}

// Run repeats RunCycle every poll interval until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	logging.Infof("[arb-bot] polling every %s, min profit %s", b.cfg.PollInterval, report.Percent(b.cfg.MinProfit))
	collectors.RunLoop(ctx, "arb-bot", b.cfg.PollInterval, b.cfg.RetryDelay, func(ctx context.Context) error {
		_, err := b.RunCycle(ctx)
		return err
	})
	logging.Infof("[arb-bot] stopped")
}

// RunCycle performs a single fetch, match, evaluate, report pass.
func (b *Bot) RunCycle(ctx context.Context) (*Result, error) {
	cycle := models.NewCycle(b.deps.Now())

	if err := b.fetchMarkets(ctx, cycle); err != nil {
		return nil, err
	}
	logging.Infof("[arb-bot] cycle %s: %d kalshi markets, %d polymarket markets",
		cycle.ID, len(cycle.KalshiMarkets), len(cycle.PolymarketMarkets))

	pairs := b.deps.Matcher.Match(cycle.KalshiMarkets, cycle.PolymarketMarkets)
	b.deps.MatchLog.LogMatches(pairs, b.deps.Matcher.Threshold())
	if b.deps.Validator != nil && len(pairs) > 0 {
		pairs = b.deps.Validator.Filter(ctx, pairs)
	}
	logging.Infof("[arb-bot] %d matched pairs", len(pairs))

	if err := b.fetchBooks(ctx, cycle, pairs); err != nil {
		return nil, err
	}

	opps, err := b.deps.Engine.Aggregate(pairs, cycle.KalshiBooks, cycle.PolymarketBooks)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	detectedAt := b.deps.Now().UTC()
	netBest := make(map[string]*matches.NetLevel, len(opps))
	payloads := make([]matches.Payload, 0, len(opps))
	for _, opp := range opps {
		net := b.netBest(opp)
		payload := matches.NewPayload(cycle.ID, opp, net, detectedAt)
		netBest[payload.PairID] = net
		payloads = append(payloads, payload)
	}

	if b.deps.Out != nil {
		err := report.Render(b.deps.Out, report.Summary{
			KalshiMarkets:     len(cycle.KalshiMarkets),
			PolymarketMarkets: len(cycle.PolymarketMarkets),
			MatchedPairs:      len(pairs),
			MinProfit:         b.cfg.MinProfit,
			Opportunities:     opps,
			NetBest:           netBest,
			UpdatedAt:         detectedAt,
		})
		if err != nil {
			logging.Warnf("[arb-bot] render report: %v", err)
		}
	}

	b.persist(ctx, cycle, len(pairs), payloads)
	b.publish(ctx, payloads)

	return &Result{Cycle: cycle, Pairs: pairs, Opportunities: opps, Payloads: payloads}, nil
}

func (b *Bot) fetchMarkets(ctx context.Context, cycle *models.Cycle) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		markets, err := b.deps.Kalshi.ListMarkets(gctx)
		if err != nil {
			return fmt.Errorf("%s markets: %w", b.deps.Kalshi.Name(), err)
		}
		cycle.KalshiMarkets = markets
		return nil
	})
	g.Go(func() error {
		markets, err := b.deps.Polymarket.ListMarkets(gctx)
		if err != nil {
			return fmt.Errorf("%s markets: %w", b.deps.Polymarket.Name(), err)
		}
		cycle.PolymarketMarkets = markets
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	return nil
}

// fetchBooks loads both books of every pair. A failed or malformed book is
// logged and left out; Aggregate skips pairs with a missing side.
func (b *Bot) fetchBooks(ctx context.Context, cycle *models.Cycle, pairs []matches.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.BookWorkers)

	fetch := func(src collectors.Source, m collectors.Market) {
		g.Go(func() error {
			ob, err := src.Orderbook(gctx, m)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.Warnf("[arb-bot] %s book %s: %v", src.Name(), m.MarketID, err)
				return nil
			}
			if err := validateBook(ob); err != nil {
				logging.Warnf("[arb-bot] %s book %s rejected: %v", src.Name(), m.MarketID, err)
				return nil
			}
			mu.Lock()
			cycle.Books(src.Venue())[m.MarketID] = ob
			mu.Unlock()
			return nil
		})
	}
	for _, p := range pairs {
		fetch(b.deps.Kalshi, p.Kalshi)
		fetch(b.deps.Polymarket, p.Polymarket)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch books: %w", err)
	}
	logging.Infof("[arb-bot] got %d kalshi and %d polymarket books", len(cycle.KalshiBooks), len(cycle.PolymarketBooks))
	return nil
}

func validateBook(ob collectors.Orderbook) error {
	if err := collectors.ValidateAsks(ob.YesAsks); err != nil {
		return fmt.Errorf("yes asks: %w", err)
	}
	if err := collectors.ValidateAsks(ob.NoAsks); err != nil {
		return fmt.Errorf("no asks: %w", err)
	}
	return nil
}

func (b *Bot) netBest(opp matches.Opportunity) *matches.NetLevel {
	best, ok := opp.BestLevel()
	if !ok {
		return nil
	}
	net, ok, err := b.deps.Fees.Net(best)
	if err != nil {
		logging.Warnf("[arb-bot] fees for %s: %v", opp.Kalshi.MarketID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &net
}

func (b *Bot) persist(ctx context.Context, cycle *models.Cycle, matched int, payloads []matches.Payload) {
	if b.deps.Store == nil {
		return
	}
	stats := sqlstore.CycleStats{
		CycleID:           cycle.ID,
		StartedAt:         cycle.StartedAt,
		FinishedAt:        b.deps.Now().UTC(),
		KalshiMarkets:     len(cycle.KalshiMarkets),
		PolymarketMarkets: len(cycle.PolymarketMarkets),
		MatchedPairs:      matched,
		KalshiBooks:       len(cycle.KalshiBooks),
		PolymarketBooks:   len(cycle.PolymarketBooks),
		Opportunities:     len(payloads),
	}
	if err := b.deps.Store.UpsertCycle(ctx, stats); err != nil {
		logging.Errorf("[arb-bot] store cycle %s: %v", cycle.ID, err)
		return
	}
	if err := b.deps.Store.InsertOpportunities(ctx, payloads); err != nil {
		logging.Errorf("[arb-bot] store opportunities: %v", err)
	}
}

func (b *Bot) publish(ctx context.Context, payloads []matches.Payload) {
	if b.deps.Publisher == nil {
		return
	}
	n, err := b.deps.Publisher.PublishOpportunities(ctx, payloads)
	if err != nil {
		logging.Errorf("[arb-bot] publish: %v", err)
		return
	}
	logging.Debugf("[arb-bot] published %d of %d opportunities", n, len(payloads))
}
