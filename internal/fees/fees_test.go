package fees

import (
	"errors"
	"math"
	"testing"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestKalshiTakerFee(t *testing.T) {
	tests := []struct {
		name      string
		contracts int
		price     float64
		want      float64
	}{
		{"half price single contract rounds up", 1, 0.5, 0.02},
		{"sub-cent fee rounds up to one cent", 1, 0.1, 0.01},
		{"ten contracts", 10, 0.4, 0.17},
		{"hundred contracts", 100, 0.45, 1.74},
		{"zero price", 50, 0, 0},
		{"unit price", 50, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := KalshiTakerFee(DefaultKalshiCoefficient, tc.contracts, tc.price)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !approx(got, tc.want) {
				t.Fatalf("fee = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKalshiTakerFee_PeaksAtHalf(t *testing.T) {
	mid, _ := KalshiTakerFee(DefaultKalshiCoefficient, 1000, 0.5)
	for _, p := range []float64{0.05, 0.2, 0.35, 0.65, 0.8, 0.95} {
		fee, err := KalshiTakerFee(DefaultKalshiCoefficient, 1000, p)
		if err != nil {
			t.Fatalf("price %v: %v", p, err)
		}
		if fee > mid {
			t.Fatalf("fee at %v (%v) exceeds fee at 0.5 (%v)", p, fee, mid)
		}
	}
}

func TestTakerFee_InvalidInput(t *testing.T) {
	m := Default()
	cases := []struct {
		contracts int
		price     float64
	}{
		{0, 0.5},
		{-3, 0.5},
		{10, -0.01},
		{10, 1.01},
		{10, math.NaN()},
	}
	for _, v := range []collectors.Venue{collectors.VenueKalshi, collectors.VenuePolymarket} {
		for _, tc := range cases {
			if _, err := m.TakerFee(v, tc.contracts, tc.price); !errors.Is(err, collectors.ErrInvalidInput) {
				t.Errorf("%s %d@%v: expected ErrInvalidInput, got %v", v, tc.contracts, tc.price, err)
			}
		}
	}
	if _, err := m.TakerFee("bogus", 1, 0.5); !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown venue, got %v", err)
	}
}

func TestPolymarketTakerFee(t *testing.T) {
	got, err := PolymarketTakerFee(0.02, 10, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(got, 0.1) {
		t.Fatalf("fee = %v, want 0.1", got)
	}
	zero, _ := PolymarketTakerFee(DefaultPolymarketRate, 10, 0.5)
	if zero != 0 {
		t.Fatalf("expected zero default fee, got %v", zero)
	}
}

func TestNew_RejectsNegativeRates(t *testing.T) {
	if _, err := New(Config{KalshiCoefficient: -0.1}); !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := New(Config{KalshiCoefficient: 0.07, PolymarketRate: -1}); !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func level(yesVenue collectors.Venue, yes float64, noVenue collectors.Venue, no, qty float64) matches.Level {
	cost := yes + no
	return matches.Level{
		BuyYesVenue:      yesVenue,
		BuyYesPrice:      yes,
		BuyNoVenue:       noVenue,
		BuyNoPrice:       no,
		Quantity:         qty,
		TotalCost:        cost,
		ProfitPercentage: 1 - cost,
		MaxProfitDollars: qty * (1 - cost),
	}
}

func TestEstimate_SplitsByVenue(t *testing.T) {
	m, err := New(Config{KalshiCoefficient: 0.07, PolymarketRate: 0.01})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l := level(collectors.VenueKalshi, 0.45, collectors.VenuePolymarket, 0.5, 100)

	b, err := m.Estimate(l, 100)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !approx(b.Kalshi, 1.74) {
		t.Fatalf("kalshi fee = %v, want 1.74", b.Kalshi)
	}
	if !approx(b.Polymarket, 0.5) {
		t.Fatalf("polymarket fee = %v, want 0.5", b.Polymarket)
	}
	if !approx(b.Total(), 2.24) {
		t.Fatalf("total = %v", b.Total())
	}

	if _, err := m.Estimate(l, 0); !errors.Is(err, collectors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero contracts, got %v", err)
	}
}

func TestNet(t *testing.T) {
	m := Default()
	l := level(collectors.VenueKalshi, 0.45, collectors.VenuePolymarket, 0.5, 100.7)

	net, ok, err := m.Net(l)
	if err != nil || !ok {
		t.Fatalf("Net: ok=%v err=%v", ok, err)
	}
	if net.Contracts != 100 {
		t.Fatalf("contracts = %d, want 100", net.Contracts)
	}
	if !approx(net.GrossProfit, 100*l.ProfitPercentage) {
		t.Fatalf("gross = %v", net.GrossProfit)
	}
	if !approx(net.NetProfit, net.GrossProfit-1.74) {
		t.Fatalf("net = %v, gross = %v", net.NetProfit, net.GrossProfit)
	}

	if _, ok, err := m.Net(level(collectors.VenueKalshi, 0.45, collectors.VenuePolymarket, 0.5, 0.9)); ok || err != nil {
		t.Fatalf("fractional level: ok=%v err=%v", ok, err)
	}
}
