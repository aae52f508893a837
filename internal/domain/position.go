package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type PositionStatus string

const (
	StatusActive  PositionStatus = "ACTIVE"
	StatusSettled PositionStatus = "SETTLED"
)

type Result string

const (
	ResultWin       Result = "WIN"
	ResultLose      Result = "LOSE"
	ResultBreakeven Result = "BREAKEVEN"
)

type ExitReason string

const (
	ReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ReasonStopLoss   ExitReason = "STOP_LOSS"
	ReasonExpired    ExitReason = "EXPIRED"
	ReasonManual     ExitReason = "MANUAL"
)

// Position represents a user's open stake against a price index or match
// outcome. A position transitions ACTIVE -> SETTLED exactly once; the
// settled-only fields (Result, ExitPrice, ExitReason, Payout, SettledAt)
// are never mutated afterwards.
type Position struct {
	ID         string
	UserID     string
	Category   string
	Side       Side
	Stake      int64
	EntryPrice float64

	// Optional triggers in percent units. Zero means not set.
	StopLossPct   float64
	TakeProfitPct float64

	HoldDuration string
	ExpiresAt    time.Time

	Status PositionStatus

	Result        Result
	ExitPrice     float64
	ExitReason    ExitReason
	Payout        int64
	ProfitPercent float64
	SettledAt     *time.Time

	CreatedAt time.Time
}

// ProfitPercentAt returns the direction-adjusted profit in percent units
// (+20 means +20%) at the given price. Shorts profit when the price falls.
func (p *Position) ProfitPercentAt(current float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	change := (current - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideShort {
		change = -change
	}
	return change
}

// Expired reports whether the position's hold duration has elapsed.
func (p *Position) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
