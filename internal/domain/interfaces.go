package domain

import (
	"context"
	"time"
)

// PositionRepository defines read/insert access to positions outside the
// settlement transaction. Settled positions are read-only archival data.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	GetPosition(ctx context.Context, id string) (*Position, error)
	ListActivePositions(ctx context.Context) ([]*Position, error)
}

// UserRepository defines read access to user balance records.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*UserBalance, error)
	ListTeamMembers(ctx context.Context, teamID string) ([]*UserBalance, error)
}

// TeamRepository defines access to team aggregates.
type TeamRepository interface {
	GetTeam(ctx context.Context, id string) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	SetTeamTotal(ctx context.Context, id string, total int64) error
}

// SettlementStore runs a function inside one storage transaction. The
// transaction commits only if fn returns nil; any error rolls back every
// mutation made through the SettlementTx.
type SettlementStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx SettlementTx) error) error
}

// SettlementTx is the unit of work available inside a settlement
// transaction.
type SettlementTx interface {
	GetPosition(ctx context.Context, id string) (*Position, error)
	// MarkSettled flips the position ACTIVE -> SETTLED and writes the exit
	// fields. Returns ErrAlreadySettled if the position was not ACTIVE.
	MarkSettled(ctx context.Context, pos *Position) error
	GetUser(ctx context.Context, id string) (*UserBalance, error)
	// ApplyBalanceDelta performs a compare-and-swap balance mutation: it
	// succeeds only if the stored version equals expectedVersion, and then
	// increments the version by exactly 1. Returns ErrConcurrencyConflict
	// on a version mismatch.
	ApplyBalanceDelta(ctx context.Context, userID string, expectedVersion int64, ptsDelta int64, combo ComboState) (*UserBalance, error)
	AddTeamPts(ctx context.Context, teamID string, delta int64) error
}

// PriceLookup returns the most recent index value for a category.
type PriceLookup interface {
	Latest(ctx context.Context, category string) (*PriceSnapshot, error)
}

// ConfigStore resolves tunable engine constants, falling back to the
// compiled-in defaults when no override record exists.
type ConfigStore interface {
	CurrentComboConfig(ctx context.Context) (ComboConfig, error)
	CurrentPayoutConfig(ctx context.Context) (PayoutConfig, error)
}

// Commentator produces a short human-readable blurb for a settlement
// result. Best-effort; callers swallow failures.
type Commentator interface {
	Describe(ctx context.Context, result Result, profitPercent float64, reason ExitReason, locale string) (string, error)
}

// SettledEvent is pushed to the notification layer after a settlement
// commits.
type SettledEvent struct {
	PositionID    string     `json:"position_id"`
	UserID        string     `json:"user_id"`
	Result        Result     `json:"result"`
	Payout        int64      `json:"payout"`
	ExitPrice     float64    `json:"exit_price"`
	ExitReason    ExitReason `json:"exit_reason"`
	ProfitPercent float64    `json:"profit_percent"`
	Commentary    string     `json:"commentary,omitempty"`
	SettledAt     time.Time  `json:"settled_at"`
}

// Notifier receives fire-and-forget UI push events. Implementations must
// never block settlement; failures are dropped.
type Notifier interface {
	BalanceUpdated(userID string, newBalance int64)
	BetSettled(ev SettledEvent)
	MarginCall(positionID, userID string, profitPercent float64)
}

// PoolRepository stores pari-mutuel pool counters and dynamic odds for
// match-outcome markets.
type PoolRepository interface {
	AddToPool(ctx context.Context, matchID, outcome string, amount int64) error
	GetPools(ctx context.Context, matchID string) ([]*OutcomePool, error)
	GetOdds(ctx context.Context, matchID string) (*MatchOdds, error)
	SaveOdds(ctx context.Context, odds *MatchOdds) error
}

// SnapshotRepository persists the price series used as entry-price source
// and trigger comparison values.
type SnapshotRepository interface {
	SavePriceSnapshot(ctx context.Context, snap *PriceSnapshot) error
	LatestPriceSnapshot(ctx context.Context, category string) (*PriceSnapshot, error)
}
