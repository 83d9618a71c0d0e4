package matches

import (
	"fmt"
	"sort"
	"time"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/hashutil"
)

func textDigest(m collectors.Market) string {
	closeTime := ""
	if !m.CloseTime.IsZero() {
		closeTime = m.CloseTime.UTC().Format(time.RFC3339)
	}
	return hashutil.Short(hashutil.HashStrings(m.Title, closeTime), 16)
}

// VerdictCacheKey builds an order-independent cache key for a pair based on
// venue, market, and a digest of the text the validator saw. Retitled markets
// get a fresh verdict.
func VerdictCacheKey(p Pair) string {
	if p.Kalshi.MarketID == "" || p.Polymarket.MarketID == "" {
		return ""
	}
	left := fmt.Sprintf("%s:%s", p.Kalshi.Key(), textDigest(p.Kalshi))
	right := fmt.Sprintf("%s:%s", p.Polymarket.Key(), textDigest(p.Polymarket))
	parts := []string{left, right}
	sort.Strings(parts)
	return fmt.Sprintf("%s|%s", parts[0], parts[1])
}

// ResolutionVerdict is the validator's answer for one pair.
type ResolutionVerdict struct {
	ValidResolution  bool   `json:"ValidResolution"`
	ResolutionReason string `json:"ResolutionReason"`
	Cached           bool   `json:"-"`
}
