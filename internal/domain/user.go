package domain

import "time"

// UserBalance holds a user's points together with the combo/multiplier state
// and the version counter used for optimistic locking. Version increases by
// exactly 1 per successful mutation.
type UserBalance struct {
	ID         string
	TeamID     string
	Pts        int64
	Combo      int
	MaxCombo   int
	Multiplier float64
	Version    int64
	UpdatedAt  time.Time
}

// ComboState is the slice of UserBalance the combo calculator operates on.
type ComboState struct {
	Combo      int
	MaxCombo   int
	Multiplier float64
}

func (u *UserBalance) ComboState() ComboState {
	return ComboState{Combo: u.Combo, MaxCombo: u.MaxCombo, Multiplier: u.Multiplier}
}

// Team carries a denormalized sum of its members' balances. The total is
// updated additively on settlement and reconciled against the true sum on a
// fixed cadence, so transient drift is expected.
type Team struct {
	ID        string
	Name      string
	TotalPts  int64
	UpdatedAt time.Time
}
