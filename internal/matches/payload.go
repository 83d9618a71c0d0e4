package matches

import (
	"time"
)

// NetLevel is a level with venue fees deducted for a whole number of contracts.
type NetLevel struct {
	Level         Level   `json:"level"`
	Contracts     int     `json:"contracts"`
	KalshiFee     float64 `json:"kalshi_fee"`
	PolymarketFee float64 `json:"polymarket_fee"`
	GrossProfit   float64 `json:"gross_profit"`
	NetProfit     float64 `json:"net_profit"`
}

// Payload is the envelope published per opportunity and consumed by the recorder.
type Payload struct {
	Version     int         `json:"version"`
	CycleID     string      `json:"cycle_id"`
	PairID      string      `json:"pair_id"`
	DetectedAt  time.Time   `json:"detected_at"`
	Opportunity Opportunity `json:"opportunity"`
	NetBest     *NetLevel   `json:"net_best,omitempty"`
}

const payloadVersion = 1

// NewPayload wraps an opportunity with its canonical pair ID.
func NewPayload(cycleID string, opp Opportunity, net *NetLevel, detectedAt time.Time) Payload {
	return Payload{
		Version:     payloadVersion,
		CycleID:     cycleID,
		PairID:      opp.Pair().ID(),
		DetectedAt:  detectedAt.UTC(),
		Opportunity: opp,
		NetBest:     net,
	}
}
