package matcher

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

// Scorer returns a 0-100 similarity between two normalized titles.
type Scorer func(a, b string) float64

type Config struct {
	// Threshold is the minimum score (0-100) for a pair to be committed.
	Threshold int
	// Workers bounds the goroutines scoring matrix rows; <=0 uses GOMAXPROCS.
	Workers int
	// Scorer overrides TokenSortRatio.
	Scorer Scorer
}

// Matcher pairs Kalshi markets with Polymarket markets by title similarity.
//
// Assignment is greedy, not a maximum-weight bipartite matching: each Kalshi
// market proposes only its single best Polymarket market, proposals are
// committed best score first, and a proposal whose target is already claimed
// is dropped even if that Kalshi market had another unclaimed candidate above
// the threshold.
type Matcher struct {
	threshold float64
	workers   int
	scorer    Scorer
}

func New(cfg Config) (*Matcher, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("%w: match threshold %d outside [0,100]", collectors.ErrInvalidInput, cfg.Threshold)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = TokenSortRatio
	}
	return &Matcher{
		threshold: float64(cfg.Threshold),
		workers:   workers,
		scorer:    scorer,
	}, nil
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

type candidate struct {
	row   int
	col   int
	score float64
}

// Match returns the committed pairs, highest score first.
func (m *Matcher) Match(kalshi, poly []collectors.Market) []matches.Pair {
	if len(kalshi) == 0 || len(poly) == 0 {
		return nil
	}

	best := m.bestPerRow(titles(kalshi), titles(poly))

	// Ties on score keep the lower Kalshi index first.
	sort.SliceStable(best, func(i, j int) bool {
		return best[i].score > best[j].score
	})

	claimed := make(map[int]struct{}, len(best))
	var out []matches.Pair
	for _, c := range best {
		if c.score < m.threshold {
			break
		}
		if _, taken := claimed[c.col]; taken {
			continue
		}
		claimed[c.col] = struct{}{}
		out = append(out, matches.Pair{
			Kalshi:     kalshi[c.row],
			Polymarket: poly[c.col],
			Score:      c.score,
		})
	}
	return out
}

// bestPerRow scores every cell and reduces each row to its argmax. Rows are
// independent, so they are spread across workers; ties keep the first column.
func (m *Matcher) bestPerRow(rows, cols []string) []candidate {
	best := make([]candidate, len(rows))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range rows {
		g.Go(func() error {
			c := candidate{row: i, col: 0, score: m.scorer(rows[i], cols[0])}
			for j := 1; j < len(cols); j++ {
				if s := m.scorer(rows[i], cols[j]); s > c.score {
					c.col, c.score = j, s
				}
			}
			best[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return best
}

// Matrix returns the full similarity matrix, rows Kalshi and columns Polymarket.
func (m *Matcher) Matrix(kalshi, poly []collectors.Market) [][]float64 {
	rows, cols := titles(kalshi), titles(poly)
	out := make([][]float64, len(rows))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range rows {
		g.Go(func() error {
			row := make([]float64, len(cols))
			for j := range cols {
				row[j] = m.scorer(rows[i], cols[j])
			}
			out[i] = row
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// NearMisses lists Kalshi markets left out of pairs whose best Polymarket
// candidate scored at least threshold-window, best first. Each entry carries
// that candidate and its score.
func (m *Matcher) NearMisses(kalshi, poly []collectors.Market, pairs []matches.Pair, window float64) []matches.Pair {
	if len(kalshi) == 0 || len(poly) == 0 || window <= 0 {
		return nil
	}
	paired := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		paired[p.Kalshi.Key()] = struct{}{}
	}
	floor := m.threshold - window

	var out []matches.Pair
	for i, row := range m.Matrix(kalshi, poly) {
		if _, ok := paired[kalshi[i].Key()]; ok {
			continue
		}
		best := 0
		for j := range row {
			if row[j] > row[best] {
				best = j
			}
		}
		if row[best] < floor {
			continue
		}
		out = append(out, matches.Pair{Kalshi: kalshi[i], Polymarket: poly[best], Score: row[best]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func titles(markets []collectors.Market) []string {
	out := make([]string, len(markets))
	for i, mk := range markets {
		out[i] = mk.NormalizedTitle()
	}
	return out
}
