package domain

// ComboConfig is the tunable constant set for the combo/multiplier system.
// It is resolved once per settlement call and passed in explicitly; there is
// no hidden global.
type ComboConfig struct {
	Increment       float64
	Base            float64
	Max             float64
	ResetCombo      int
	ResetMultiplier float64
	MaxComboCount   int
}

// DefaultComboConfig returns the compiled-in defaults used when no override
// record exists in storage.
func DefaultComboConfig() ComboConfig {
	return ComboConfig{
		Increment:       0.1,
		Base:            1.0,
		Max:             3.0,
		ResetCombo:      0,
		ResetMultiplier: 1.0,
		MaxComboCount:   20,
	}
}

// PayoutConfig holds the engine-level payout fractions. The take-profit
// bonus is independent of a position's trigger threshold.
type PayoutConfig struct {
	TakeProfitBonus float64
	StopLossPenalty float64
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{TakeProfitBonus: 0.3, StopLossPenalty: 0.2}
}

// NextComboState computes the combo state following a settlement result.
// Pure and side-effect free:
//   - WIN increments the combo (capped at MaxComboCount), records the max,
//     and derives the multiplier as Base + combo*Increment capped at Max.
//   - LOSE resets combo and multiplier.
//   - BREAKEVEN and any unknown result leave the state unchanged.
func NextComboState(result Result, st ComboState, cfg ComboConfig) ComboState {
	switch result {
	case ResultWin:
		combo := st.Combo + 1
		if combo > cfg.MaxComboCount {
			combo = cfg.MaxComboCount
		}
		maxCombo := st.MaxCombo
		if combo > maxCombo {
			maxCombo = combo
		}
		multiplier := cfg.Base + float64(combo)*cfg.Increment
		if multiplier > cfg.Max {
			multiplier = cfg.Max
		}
		return ComboState{Combo: combo, MaxCombo: maxCombo, Multiplier: multiplier}
	case ResultLose:
		return ComboState{Combo: cfg.ResetCombo, MaxCombo: st.MaxCombo, Multiplier: cfg.ResetMultiplier}
	case ResultBreakeven:
		return st
	default:
		return st
	}
}
