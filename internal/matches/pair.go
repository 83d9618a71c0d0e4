package matches

import (
	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/hashutil"
)

// Pair is one committed cross-venue match. A market from either venue
// appears in at most one Pair per matching run.
type Pair struct {
	Kalshi     collectors.Market `json:"kalshi"`
	Polymarket collectors.Market `json:"polymarket"`
	Score      float64           `json:"match_score"`
}

// ID is the order-independent identity of the pair.
func (p Pair) ID() string {
	return hashutil.HashUnordered(p.Kalshi.Key(), p.Polymarket.Key())
}
