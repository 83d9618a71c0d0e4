package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hetulpatel/arbwatch/internal/arb"
	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/fees"
	"github.com/hetulpatel/arbwatch/internal/matcher"
	"github.com/hetulpatel/arbwatch/internal/matches"
	sqlstore "github.com/hetulpatel/arbwatch/internal/storage/sqlite"
)

type fakeSource struct {
	venue    collectors.Venue
	markets  []collectors.Market
	books    map[string]collectors.Orderbook
	listErr  error
	bookErrs map[string]error
}

func (f *fakeSource) Name() string            { return string(f.venue) }
func (f *fakeSource) Venue() collectors.Venue { return f.venue }

func (f *fakeSource) ListMarkets(ctx context.Context) ([]collectors.Market, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.markets, nil
}

func (f *fakeSource) Orderbook(ctx context.Context, m collectors.Market) (collectors.Orderbook, error) {
	if err := f.bookErrs[m.MarketID]; err != nil {
		return collectors.Orderbook{}, err
	}
	return f.books[m.MarketID], nil
}

type fakeStore struct {
	mu       sync.Mutex
	cycles   []sqlstore.CycleStats
	payloads []matches.Payload
}

func (s *fakeStore) UpsertCycle(ctx context.Context, c sqlstore.CycleStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, c)
	return nil
}

func (s *fakeStore) InsertOpportunities(ctx context.Context, payloads []matches.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payloads...)
	return nil
}

type fakePublisher struct {
	payloads []matches.Payload
}

func (p *fakePublisher) PublishOpportunities(ctx context.Context, payloads []matches.Payload) (int, error) {
	p.payloads = append(p.payloads, payloads...)
	return len(payloads), nil
}

type rejectAll struct{}

func (rejectAll) Filter(ctx context.Context, pairs []matches.Pair) []matches.Pair { return nil }

func lvl(price, size float64) collectors.OrderbookLevel {
	return collectors.OrderbookLevel{Price: price, Size: size}
}

func venues() (*fakeSource, *fakeSource) {
	kalshi := &fakeSource{
		venue: collectors.VenueKalshi,
		markets: []collectors.Market{
			{Venue: collectors.VenueKalshi, MarketID: "KXBTC-25DEC31", Title: "Will Bitcoin close above $100k on Dec 31?"},
			{Venue: collectors.VenueKalshi, MarketID: "KXFED-26MAR", Title: "Fed cuts rates in March"},
		},
		books: map[string]collectors.Orderbook{
			"KXBTC-25DEC31": {MarketID: "KXBTC-25DEC31", YesAsks: []collectors.OrderbookLevel{lvl(0.40, 50)}, NoAsks: []collectors.OrderbookLevel{lvl(0.62, 50)}},
		},
	}
	poly := &fakeSource{
		venue: collectors.VenuePolymarket,
		markets: []collectors.Market{
			{Venue: collectors.VenuePolymarket, MarketID: "0xbtc", Title: "Will Bitcoin close above $100k on Dec 31?"},
			{Venue: collectors.VenuePolymarket, MarketID: "0xother", Title: "Who wins the Eurovision song contest"},
		},
		books: map[string]collectors.Orderbook{
			"0xbtc": {MarketID: "0xbtc", YesAsks: []collectors.OrderbookLevel{lvl(0.60, 50)}, NoAsks: []collectors.OrderbookLevel{lvl(0.55, 50)}},
		},
	}
	return kalshi, poly
}

func newBot(t *testing.T, kalshi, poly collectors.Source, deps Deps) *Bot {
	t.Helper()
	m, err := matcher.New(matcher.Config{Threshold: 80, Workers: 2})
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	engine, err := arb.NewEngine(arb.Config{MinProfit: 0.02, Workers: 2})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	deps.Kalshi = kalshi
	deps.Polymarket = poly
	deps.Matcher = m
	deps.Engine = engine
	deps.Fees = fees.Default()
	deps.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	b, err := New(Config{BookWorkers: 3, MinProfit: 0.02}, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestRunCycleFindsOpportunity(t *testing.T) {
	kalshi, poly := venues()
	store := &fakeStore{}
	pub := &fakePublisher{}
	var out bytes.Buffer
	b := newBot(t, kalshi, poly, Deps{Store: store, Publisher: pub, Out: &out})

	res, err := b.RunCycle(t.Context())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(res.Opportunities))
	}
	best, _ := res.Opportunities[0].BestLevel()
	if best.BuyYesVenue != collectors.VenueKalshi || best.Quantity != 50 {
		t.Fatalf("unexpected best level %+v", best)
	}
	if len(res.Payloads) != 1 || res.Payloads[0].CycleID != res.Cycle.ID {
		t.Fatalf("payloads not tied to cycle: %+v", res.Payloads)
	}
	if res.Payloads[0].PairID != res.Pairs[0].ID() {
		t.Fatalf("pair id mismatch")
	}

	if len(store.cycles) != 1 {
		t.Fatalf("expected 1 stored cycle, got %d", len(store.cycles))
	}
	c := store.cycles[0]
	if c.KalshiMarkets != 2 || c.PolymarketMarkets != 2 || c.MatchedPairs != 1 || c.Opportunities != 1 {
		t.Fatalf("unexpected cycle stats %+v", c)
	}
	if len(store.payloads) != 1 || len(pub.payloads) != 1 {
		t.Fatalf("store=%d publisher=%d payloads", len(store.payloads), len(pub.payloads))
	}
	if !strings.Contains(out.String(), "Bitcoin") {
		t.Fatalf("report missing opportunity:\n%s", out.String())
	}
}

func TestRunCycleMarketFetchFailure(t *testing.T) {
	kalshi, poly := venues()
	poly.listErr = errors.New("gamma down")
	store := &fakeStore{}
	b := newBot(t, kalshi, poly, Deps{Store: store})

	if _, err := b.RunCycle(t.Context()); err == nil || !strings.Contains(err.Error(), "gamma down") {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(store.cycles) != 0 {
		t.Fatalf("failed cycle should not be stored")
	}
}

func TestRunCycleDropsFailedBook(t *testing.T) {
	kalshi, poly := venues()
	poly.bookErrs = map[string]error{"0xbtc": errors.New("timeout")}
	b := newBot(t, kalshi, poly, Deps{})

	res, err := b.RunCycle(t.Context())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("expected the pair to survive matching")
	}
	if len(res.Opportunities) != 0 {
		t.Fatalf("pair without a polymarket book must be skipped")
	}
	if _, ok := res.Cycle.KalshiBooks["KXBTC-25DEC31"]; !ok {
		t.Fatalf("kalshi book should still be recorded")
	}
}

func TestRunCycleRejectsMalformedBook(t *testing.T) {
	kalshi, poly := venues()
	poly.books["0xbtc"] = collectors.Orderbook{
		MarketID: "0xbtc",
		NoAsks:   []collectors.OrderbookLevel{lvl(0.60, 10), lvl(0.50, 10)},
	}
	b := newBot(t, kalshi, poly, Deps{})

	res, err := b.RunCycle(t.Context())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Cycle.PolymarketBooks) != 0 || len(res.Opportunities) != 0 {
		t.Fatalf("malformed book should be dropped")
	}
}

func TestRunCycleValidatorFilters(t *testing.T) {
	kalshi, poly := venues()
	b := newBot(t, kalshi, poly, Deps{Validator: rejectAll{}})

	res, err := b.RunCycle(t.Context())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(res.Pairs) != 0 || len(res.Cycle.KalshiBooks) != 0 {
		t.Fatalf("rejected pairs should not have books fetched")
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatal("expected error without sources")
	}
}
