package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hetulpatel/arbwatch/internal/matches"
)

const titleWidth = 43

// Summary is everything one cycle renders.
type Summary struct {
	KalshiMarkets     int
	PolymarketMarkets int
	MatchedPairs      int
	MinProfit         float64
	Opportunities     []matches.Opportunity
	// NetBest is keyed by pair id; missing entries print no net line.
	NetBest   map[string]*matches.NetLevel
	UpdatedAt time.Time
}

func (s Summary) levelCount() int {
	var n int
	for _, o := range s.Opportunities {
		n += len(o.Levels)
	}
	return n
}

// Render writes the ranked table followed by the status block.
func Render(w io.Writer, s Summary) error {
	fmt.Fprintln(w, "Kalshi / Polymarket arbitrage")
	fmt.Fprintln(w)

	if len(s.Opportunities) == 0 {
		fmt.Fprintf(w, "No arbitrage opportunities found (threshold: %s)\n\n", Percent(s.MinProfit))
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tMarket\tStrategy\tQty\tProfit\tMax $\t")
		for i, opp := range s.Opportunities {
			writeOpportunity(tw, i+1, opp, s.NetBest[opp.Pair().ID()])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Kalshi Markets\t%d\n", s.KalshiMarkets)
	fmt.Fprintf(tw, "Polymarket Markets\t%d\n", s.PolymarketMarkets)
	fmt.Fprintf(tw, "Matched Pairs\t%d\n", s.MatchedPairs)
	fmt.Fprintf(tw, "Markets w/ Arb (>=%s)\t%d\n", PercentWhole(s.MinProfit), len(s.Opportunities))
	fmt.Fprintf(tw, "Total Arb Levels\t%d\n", s.levelCount())
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	fmt.Fprintf(tw, "Last Update\t%s\n", updated.Format("15:04:05"))
	return tw.Flush()
}

func writeOpportunity(w io.Writer, rank int, opp matches.Opportunity, net *matches.NetLevel) {
	kURL := orNA(opp.Kalshi.URL())
	pURL := orNA(opp.Polymarket.URL())
	for i, lvl := range opp.Levels {
		rankCell, marketCell := "", ""
		if i == 0 {
			rankCell = fmt.Sprintf("%d", rank)
			marketCell = Truncate(opp.Kalshi.Title, titleWidth)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\t$%.2f\t\n",
			rankCell, marketCell, Strategy(lvl), lvl.Quantity, Percent(lvl.ProfitPercentage), lvl.MaxProfitDollars)
		switch i {
		case 0:
			fmt.Fprintf(w, "\tK: %s\t\t\t\t\t\n", kURL)
		case 1:
			fmt.Fprintf(w, "\tP: %s\t\t\t\t\t\n", pURL)
		}
	}
	if len(opp.Levels) == 1 {
		fmt.Fprintf(w, "\tP: %s\t\t\t\t\t\n", pURL)
	}
	if net != nil {
		fmt.Fprintf(w, "\t  net of fees\t%d contracts, fees K $%.2f P $%.2f\t\t\t$%.2f\t\n",
			net.Contracts, net.KalshiFee, net.PolymarketFee, net.NetProfit)
	}
}

// Strategy renders a level as YES@K(48.0%) + NO@P(50.0%).
func Strategy(l matches.Level) string {
	return fmt.Sprintf("YES@%s(%s) + NO@%s(%s)",
		l.BuyYesVenue.Short(), Percent(l.BuyYesPrice),
		l.BuyNoVenue.Short(), Percent(l.BuyNoPrice))
}

// Percent formats a fraction with one decimal, 0.05 -> 5.0%.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// PercentWhole formats a fraction with no decimals, 0.02 -> 2%.
func PercentWhole(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Truncate shortens titles longer than width to width-2 runes plus "..".
func Truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width < 2 {
		return s
	}
	return string(r[:width-2]) + ".."
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
