package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/predictbet/internal/domain"
	"github.com/vitos/predictbet/internal/usecase"
	"go.uber.org/zap"
)

type mockPoolRepo struct {
	mu    sync.Mutex
	pools map[string]map[string]int64 // matchID -> outcome -> volume
	odds  map[string]*domain.MatchOdds
	saved int
}

func newMockPoolRepo() *mockPoolRepo {
	return &mockPoolRepo{
		pools: make(map[string]map[string]int64),
		odds:  make(map[string]*domain.MatchOdds),
	}
}

func (m *mockPoolRepo) AddToPool(ctx context.Context, matchID, outcome string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pools[matchID] == nil {
		m.pools[matchID] = make(map[string]int64)
	}
	m.pools[matchID][outcome] += amount
	return nil
}

func (m *mockPoolRepo) GetPools(ctx context.Context, matchID string) ([]*domain.OutcomePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutcomePool
	for outcome, vol := range m.pools[matchID] {
		out = append(out, &domain.OutcomePool{MatchID: matchID, Outcome: outcome, Volume: vol})
	}
	return out, nil
}

func (m *mockPoolRepo) GetOdds(ctx context.Context, matchID string) (*domain.MatchOdds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.odds[matchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := &domain.MatchOdds{MatchID: o.MatchID, Outcomes: make(map[string]float64), UpdatedAt: o.UpdatedAt}
	for k, v := range o.Outcomes {
		cp.Outcomes[k] = v
	}
	return cp, nil
}

func (m *mockPoolRepo) SaveOdds(ctx context.Context, odds *domain.MatchOdds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.odds[odds.MatchID] = odds
	m.saved++
	return nil
}

func newOddsService(pools domain.PoolRepository) *usecase.OddsService {
	return usecase.NewOddsService(pools, zap.NewNop())
}

func TestPlaceBet_AccumulatesPool(t *testing.T) {
	pools := newMockPoolRepo()
	svc := newOddsService(pools)

	require.NoError(t, svc.PlaceBet(context.Background(), "m1", "home", 50))
	require.NoError(t, svc.PlaceBet(context.Background(), "m1", "home", 30))

	assert.Equal(t, int64(80), pools.pools["m1"]["home"])
}

func TestPlaceBet_RejectsNonPositiveAmount(t *testing.T) {
	svc := newOddsService(newMockPoolRepo())

	assert.Error(t, svc.PlaceBet(context.Background(), "m1", "home", 0))
	assert.Error(t, svc.PlaceBet(context.Background(), "m1", "home", -5))
}

func TestOnMatchEvent_ShiftsTowardLeader(t *testing.T) {
	pools := newMockPoolRepo()
	pools.odds["m1"] = &domain.MatchOdds{
		MatchID:  "m1",
		Outcomes: map[string]float64{"home": 2.0, "away": 3.0, "draw": 3.5},
	}
	svc := newOddsService(pools)

	odds, err := svc.OnMatchEvent(context.Background(), "m1", "home")
	require.NoError(t, err)

	assert.InDelta(t, 1.90, odds.Outcomes["home"], 1e-9)
	assert.InDelta(t, 3.15, odds.Outcomes["away"], 1e-9)
	assert.InDelta(t, 3.675, odds.Outcomes["draw"], 1e-9)
	assert.False(t, odds.UpdatedAt.IsZero())
	assert.Equal(t, 1, pools.saved)
}

func TestOnMatchEvent_DampsOverweightOutcome(t *testing.T) {
	pools := newMockPoolRepo()
	pools.odds["m1"] = &domain.MatchOdds{
		MatchID:  "m1",
		Outcomes: map[string]float64{"home": 2.0, "away": 3.0},
	}
	// home holds 90% of the pool, well past the 40% threshold.
	pools.pools["m1"] = map[string]int64{"home": 900, "away": 100}
	svc := newOddsService(pools)

	odds, err := svc.OnMatchEvent(context.Background(), "m1", "away")
	require.NoError(t, err)

	// home: 2.0 * 1.05 (non-leader) * 0.98 (overweight)
	assert.InDelta(t, 2.0*1.05*0.98, odds.Outcomes["home"], 1e-9)
	assert.InDelta(t, 3.0*0.95, odds.Outcomes["away"], 1e-9)
}

func TestOnMatchEvent_ClampsAtFloor(t *testing.T) {
	pools := newMockPoolRepo()
	pools.odds["m1"] = &domain.MatchOdds{
		MatchID:  "m1",
		Outcomes: map[string]float64{"home": 1.02, "away": 5.0},
	}
	svc := newOddsService(pools)

	odds, err := svc.OnMatchEvent(context.Background(), "m1", "home")
	require.NoError(t, err)
	assert.Equal(t, 1.01, odds.Outcomes["home"])
}

func TestOnMatchEvent_UnknownMatch(t *testing.T) {
	svc := newOddsService(newMockPoolRepo())

	_, err := svc.OnMatchEvent(context.Background(), "missing", "home")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
