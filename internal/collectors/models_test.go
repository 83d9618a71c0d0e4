package collectors

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Will BTC hit $100k?", "will btc hit 100k"},
		{"  Fed   rate-decision: March ", "fed rate decision march"},
		{"snake_case stays", "snake_case stays"},
		// Combining marks are word characters and survive.
		{"Pokémon Wins", "pokémon wins"},
		{"Pokémon Wins", "pokémon wins"},
		{"?!", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMarketURL(t *testing.T) {
	cases := []struct {
		m    Market
		want string
	}{
		{Market{Venue: VenueKalshi, MarketID: "KXFRENCHPRES-27-MLP", EventTicker: "KXFRENCHPRES-27"}, "https://kalshi.com/markets/kxfrenchpres"},
		{Market{Venue: VenueKalshi, MarketID: "KXFED"}, "https://kalshi.com/markets/kxfed"},
		{Market{Venue: VenuePolymarket, Slug: "m", EventSlug: "ev"}, "https://polymarket.com/event/ev"},
		{Market{Venue: VenuePolymarket, Slug: "m"}, "https://polymarket.com/event/m"},
		{Market{Venue: VenuePolymarket}, ""},
	}
	for _, tc := range cases {
		if got := tc.m.URL(); got != tc.want {
			t.Errorf("URL(%+v) = %q, want %q", tc.m, got, tc.want)
		}
	}
}
