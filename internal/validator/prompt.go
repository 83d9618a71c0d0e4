package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

type promptPayload struct {
	PairID     string        `json:"pair_id"`
	MatchScore float64       `json:"match_score"`
	Kalshi     marketPayload `json:"kalshi"`
	Polymarket marketPayload `json:"polymarket"`
}

type marketPayload struct {
	Venue        string `json:"venue"`
	MarketID     string `json:"market_id"`
	Title        string `json:"title"`
	CloseTimeUTC string `json:"close_time_utc,omitempty"`
	URL          string `json:"url,omitempty"`
}

func buildPromptPayload(pair matches.Pair) promptPayload {
	return promptPayload{
		PairID:     pair.ID(),
		MatchScore: pair.Score,
		Kalshi:     buildMarketPayload(pair.Kalshi),
		Polymarket: buildMarketPayload(pair.Polymarket),
	}
}

func buildMarketPayload(m collectors.Market) marketPayload {
	return marketPayload{
		Venue:        string(m.Venue),
		MarketID:     m.MarketID,
		Title:        m.Title,
		CloseTimeUTC: formatTime(m.CloseTime),
		URL:          m.URL(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseResult pulls the first JSON object out of the reply; models sometimes
// wrap it in prose or code fences.
func parseResult(raw string) (*matches.ResolutionVerdict, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("validator: empty llm response")
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var res matches.ResolutionVerdict
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
