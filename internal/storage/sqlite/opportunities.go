package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hetulpatel/arbwatch/internal/collectors"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

// CycleStats is the per-cycle summary row.
type CycleStats struct {
	CycleID           string
	StartedAt         time.Time
	FinishedAt        time.Time
	KalshiMarkets     int
	PolymarketMarkets int
	MatchedPairs      int
	KalshiBooks       int
	PolymarketBooks   int
	Opportunities     int
}

// UpsertCycle records or updates a cycle summary.
func (s *Store) UpsertCycle(ctx context.Context, c CycleStats) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cycles (
	cycle_id, started_at, finished_at, kalshi_markets, polymarket_markets,
	matched_pairs, kalshi_books, polymarket_books, opportunities
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cycle_id) DO UPDATE SET
	finished_at=excluded.finished_at,
	kalshi_markets=excluded.kalshi_markets,
	polymarket_markets=excluded.polymarket_markets,
	matched_pairs=excluded.matched_pairs,
	kalshi_books=excluded.kalshi_books,
	polymarket_books=excluded.polymarket_books,
	opportunities=excluded.opportunities;
`,
		c.CycleID, formatTime(c.StartedAt), formatTime(c.FinishedAt),
		c.KalshiMarkets, c.PolymarketMarkets, c.MatchedPairs,
		c.KalshiBooks, c.PolymarketBooks, c.Opportunities,
	)
	return err
}

// GetCycle loads a cycle summary.
func (s *Store) GetCycle(ctx context.Context, cycleID string) (*CycleStats, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT cycle_id, started_at, COALESCE(finished_at, ''), kalshi_markets, polymarket_markets,
	matched_pairs, kalshi_books, polymarket_books, opportunities
FROM cycles WHERE cycle_id = ?`, cycleID)
	var c CycleStats
	var started, finished string
	err := row.Scan(&c.CycleID, &started, &finished, &c.KalshiMarkets, &c.PolymarketMarkets,
		&c.MatchedPairs, &c.KalshiBooks, &c.PolymarketBooks, &c.Opportunities)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.StartedAt = parseTime(started)
	c.FinishedAt = parseTime(finished)
	return &c, true, nil
}

// InsertOpportunities writes payloads and their levels in one transaction.
// A payload already stored for the same (cycle, pair) is replaced.
func (s *Store) InsertOpportunities(ctx context.Context, payloads []matches.Payload) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	if len(payloads) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	delLevels, err := tx.PrepareContext(ctx, `
DELETE FROM opportunity_levels WHERE opportunity_id IN (
	SELECT id FROM opportunities WHERE cycle_id = ? AND pair_id = ?
)`)
	if err != nil {
		return err
	}
	defer delLevels.Close()
	del, err := tx.PrepareContext(ctx, `DELETE FROM opportunities WHERE cycle_id = ? AND pair_id = ?`)
	if err != nil {
		return err
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, insertOpportunitySQL)
	if err != nil {
		return err
	}
	defer ins.Close()
	lvl, err := tx.PrepareContext(ctx, insertLevelSQL)
	if err != nil {
		return err
	}
	defer lvl.Close()

	for _, p := range payloads {
		if _, err := delLevels.ExecContext(ctx, p.CycleID, p.PairID); err != nil {
			return fmt.Errorf("replace levels %s: %w", p.PairID, err)
		}
		if _, err := del.ExecContext(ctx, p.CycleID, p.PairID); err != nil {
			return fmt.Errorf("replace %s: %w", p.PairID, err)
		}
		id, err := insertOpportunity(ctx, ins, p)
		if err != nil {
			return fmt.Errorf("insert %s: %w", p.PairID, err)
		}
		for i, l := range p.Opportunity.Levels {
			if _, err := lvl.ExecContext(ctx, id, i,
				string(l.BuyYesVenue), l.BuyYesPrice, string(l.BuyNoVenue), l.BuyNoPrice,
				l.Quantity, l.TotalCost, l.ProfitPercentage, l.MaxProfitDollars,
			); err != nil {
				return fmt.Errorf("insert level %d of %s: %w", i, p.PairID, err)
			}
		}
	}
	return tx.Commit()
}

const insertOpportunitySQL = `
INSERT INTO opportunities (
	cycle_id, pair_id, detected_at,
	kalshi_market_id, kalshi_title, kalshi_url,
	polymarket_market_id, polymarket_title, polymarket_url,
	match_score, best_direction, best_profit_pct, total_quantity, total_max_profit,
	net_contracts, net_kalshi_fee, net_polymarket_fee, net_profit
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertLevelSQL = `
INSERT INTO opportunity_levels (
	opportunity_id, level_index, buy_yes_venue, buy_yes_price, buy_no_venue, buy_no_price,
	quantity, total_cost, profit_pct, max_profit
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertOpportunity(ctx context.Context, stmt *sql.Stmt, p matches.Payload) (int64, error) {
	opp := p.Opportunity
	var direction string
	if best, ok := opp.BestLevel(); ok {
		direction = string(best.Direction())
	}
	var netContracts sql.NullInt64
	var netKalshi, netPoly, netProfit sql.NullFloat64
	if p.NetBest != nil {
		netContracts = sql.NullInt64{Int64: int64(p.NetBest.Contracts), Valid: true}
		netKalshi = sql.NullFloat64{Float64: p.NetBest.KalshiFee, Valid: true}
		netPoly = sql.NullFloat64{Float64: p.NetBest.PolymarketFee, Valid: true}
		netProfit = sql.NullFloat64{Float64: p.NetBest.NetProfit, Valid: true}
	}
	res, err := stmt.ExecContext(ctx,
		p.CycleID, p.PairID, formatTime(p.DetectedAt),
		opp.Kalshi.MarketID, opp.Kalshi.Title, opp.Kalshi.URL(),
		opp.Polymarket.MarketID, opp.Polymarket.Title, opp.Polymarket.URL(),
		opp.MatchScore, direction, opp.BestProfitPercentage(), opp.TotalQuantity(), opp.TotalMaxProfit(),
		netContracts, netKalshi, netPoly, netProfit,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// StoredOpportunity is an opportunity read back from the database.
type StoredOpportunity struct {
	ID          int64
	CycleID     string
	PairID      string
	DetectedAt  time.Time
	Opportunity matches.Opportunity
	NetProfit   sql.NullFloat64
}

// ListOpportunities returns the opportunities of a cycle, best profit first.
func (s *Store) ListOpportunities(ctx context.Context, cycleID string) ([]StoredOpportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, cycle_id, pair_id, detected_at,
	kalshi_market_id, COALESCE(kalshi_title, ''),
	polymarket_market_id, COALESCE(polymarket_title, ''),
	COALESCE(match_score, 0), net_profit
FROM opportunities
WHERE cycle_id = ?
ORDER BY best_profit_pct DESC, id ASC`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredOpportunity
	for rows.Next() {
		var so StoredOpportunity
		var detected string
		opp := &so.Opportunity
		opp.Kalshi.Venue = collectors.VenueKalshi
		opp.Polymarket.Venue = collectors.VenuePolymarket
		if err := rows.Scan(&so.ID, &so.CycleID, &so.PairID, &detected,
			&opp.Kalshi.MarketID, &opp.Kalshi.Title,
			&opp.Polymarket.MarketID, &opp.Polymarket.Title,
			&opp.MatchScore, &so.NetProfit,
		); err != nil {
			return nil, err
		}
		so.DetectedAt = parseTime(detected)
		out = append(out, so)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		levels, err := s.listLevels(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Opportunity.Levels = levels
	}
	return out, nil
}

func (s *Store) listLevels(ctx context.Context, opportunityID int64) ([]matches.Level, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT buy_yes_venue, buy_yes_price, buy_no_venue, buy_no_price,
	quantity, total_cost, profit_pct, max_profit
FROM opportunity_levels
WHERE opportunity_id = ?
ORDER BY level_index`, opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []matches.Level
	for rows.Next() {
		var l matches.Level
		var yesVenue, noVenue string
		if err := rows.Scan(&yesVenue, &l.BuyYesPrice, &noVenue, &l.BuyNoPrice,
			&l.Quantity, &l.TotalCost, &l.ProfitPercentage, &l.MaxProfitDollars); err != nil {
			return nil, err
		}
		l.BuyYesVenue = collectors.Venue(yesVenue)
		l.BuyNoVenue = collectors.Venue(noVenue)
		levels = append(levels, l)
	}
	return levels, rows.Err()
}
