package domain

import "time"

// PriceSnapshot is the most recent index value for a category.
type PriceSnapshot struct {
	Category  string    `json:"category"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// OutcomePool is a per-outcome pari-mutuel pool counter for a match market.
type OutcomePool struct {
	MatchID string `json:"match_id"`
	Outcome string `json:"outcome"`
	Volume  int64  `json:"volume"`
}

// MatchOdds holds the current dynamic odds per outcome for a match market,
// e.g. {"win_a": 2.05, "win_b": 3.10, "draw": 3.20}.
type MatchOdds struct {
	MatchID   string             `json:"match_id"`
	Outcomes  map[string]float64 `json:"outcomes"`
	UpdatedAt time.Time          `json:"updated_at"`
}
