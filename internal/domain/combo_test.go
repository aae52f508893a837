package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/predictbet/internal/domain"
)

func TestNextComboState_WinIncrements(t *testing.T) {
	cfg := domain.DefaultComboConfig()

	st := domain.NextComboState(domain.ResultWin, domain.ComboState{Combo: 0, MaxCombo: 0, Multiplier: 1.0}, cfg)
	assert.Equal(t, 1, st.Combo)
	assert.Equal(t, 1, st.MaxCombo)
	assert.InDelta(t, 1.1, st.Multiplier, 1e-9)

	st = domain.NextComboState(domain.ResultWin, st, cfg)
	assert.Equal(t, 2, st.Combo)
	assert.InDelta(t, 1.2, st.Multiplier, 1e-9)
}

func TestNextComboState_MultiplierCapped(t *testing.T) {
	cfg := domain.DefaultComboConfig()

	// Combo 19 -> 20: base 1.0 + 20*0.1 = 3.0, exactly at the cap.
	st := domain.NextComboState(domain.ResultWin, domain.ComboState{Combo: 19, MaxCombo: 19, Multiplier: 2.9}, cfg)
	assert.Equal(t, 20, st.Combo)
	assert.InDelta(t, 3.0, st.Multiplier, 1e-9)

	// Further wins keep the combo at MaxComboCount and the multiplier at Max.
	st = domain.NextComboState(domain.ResultWin, st, cfg)
	assert.Equal(t, 20, st.Combo)
	assert.Equal(t, 20, st.MaxCombo)
	assert.InDelta(t, 3.0, st.Multiplier, 1e-9)
}

func TestNextComboState_LoseResets(t *testing.T) {
	cfg := domain.DefaultComboConfig()

	st := domain.NextComboState(domain.ResultLose, domain.ComboState{Combo: 7, MaxCombo: 7, Multiplier: 1.7}, cfg)
	assert.Equal(t, 0, st.Combo)
	assert.Equal(t, 7, st.MaxCombo) // high-water mark survives the reset
	assert.InDelta(t, 1.0, st.Multiplier, 1e-9)
}

func TestNextComboState_BreakevenUnchanged(t *testing.T) {
	cfg := domain.DefaultComboConfig()
	in := domain.ComboState{Combo: 4, MaxCombo: 6, Multiplier: 1.4}

	assert.Equal(t, in, domain.NextComboState(domain.ResultBreakeven, in, cfg))
	assert.Equal(t, in, domain.NextComboState(domain.Result("???"), in, cfg))
}

func TestNextComboState_BoundsOverSequences(t *testing.T) {
	cfg := domain.DefaultComboConfig()
	results := []domain.Result{
		domain.ResultWin, domain.ResultWin, domain.ResultLose,
		domain.ResultWin, domain.ResultBreakeven, domain.ResultWin,
		domain.ResultWin, domain.ResultLose, domain.ResultWin,
	}

	var st domain.ComboState
	st.Multiplier = cfg.Base
	for _, res := range results {
		st = domain.NextComboState(res, st, cfg)
		assert.GreaterOrEqual(t, st.Combo, 0)
		assert.LessOrEqual(t, st.Combo, cfg.MaxComboCount)
		assert.GreaterOrEqual(t, st.MaxCombo, st.Combo)
		assert.GreaterOrEqual(t, st.Multiplier, cfg.ResetMultiplier)
		assert.LessOrEqual(t, st.Multiplier, cfg.Max)
	}
}

func TestProfitPercentAt(t *testing.T) {
	long := domain.Position{Side: domain.SideLong, EntryPrice: 100}
	assert.InDelta(t, 11, long.ProfitPercentAt(111), 1e-9)
	assert.InDelta(t, -6, long.ProfitPercentAt(94), 1e-9)

	short := domain.Position{Side: domain.SideShort, EntryPrice: 100}
	assert.InDelta(t, -11, short.ProfitPercentAt(111), 1e-9)
	assert.InDelta(t, 6, short.ProfitPercentAt(94), 1e-9)

	// Unpriceable entries report no movement.
	free := domain.Position{Side: domain.SideLong, EntryPrice: 0}
	assert.Zero(t, free.ProfitPercentAt(50))
}
