package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hetulpatel/arbwatch/internal/config"
	"github.com/hetulpatel/arbwatch/internal/kalshi"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matcher"
	"github.com/hetulpatel/arbwatch/internal/polymarket"
)

// match_dev lists both venues once and prints the committed pairs, without
// fetching books. Handy for tuning FUZZY_MATCH_THRESHOLD.
func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	asJSON := flag.Bool("json", false, "print pairs as JSON instead of the match log")
	near := flag.Float64("near", 0, "also list unmatched kalshi markets whose best score is within this many points of the threshold")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logging.Fatalf("[match-dev] config: %v", err)
	}
	logging.InitFromEnv()

	kalshiClient, err := kalshi.NewClient(kalshi.Config{
		BaseURL:           cfg.Kalshi.BaseURL,
		RequestsPerSecond: cfg.Kalshi.RequestsPerSecond,
		MaxMarkets:        cfg.Kalshi.MaxMarkets,
	})
	if err != nil {
		logging.Fatalf("[match-dev] kalshi client: %v", err)
	}
	polyClient := polymarket.NewClient(polymarket.Config{
		GammaURL:          cfg.Polymarket.GammaURL,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
		MaxMarkets:        cfg.Polymarket.MaxMarkets,
	})

	kMarkets, err := kalshiClient.ListMarkets(ctx)
	if err != nil {
		logging.Fatalf("[match-dev] kalshi markets: %v", err)
	}
	pMarkets, err := polyClient.ListMarkets(ctx)
	if err != nil {
		logging.Fatalf("[match-dev] polymarket markets: %v", err)
	}

	m, err := matcher.New(matcher.Config{Threshold: cfg.MatchThreshold, Workers: cfg.MatchWorkers})
	if err != nil {
		logging.Fatalf("[match-dev] matcher: %v", err)
	}
	pairs := m.Match(kMarkets, pMarkets)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pairs); err != nil {
			logging.Fatalf("[match-dev] encode: %v", err)
		}
		return
	}
	matcher.NewLogger(matcher.LogModeVerbose, cfg.MatchLogPath).LogMatches(pairs, m.Threshold())
	fmt.Printf("%d kalshi x %d polymarket markets -> %d pairs (threshold %.0f)\n",
		len(kMarkets), len(pMarkets), len(pairs), m.Threshold())

	if *near > 0 {
		for _, nm := range m.NearMisses(kMarkets, pMarkets, pairs, *near) {
			fmt.Printf("near miss %.1f  %s  <->  %s\n", nm.Score, nm.Kalshi.Title, nm.Polymarket.Title)
		}
	}
}
