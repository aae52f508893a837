package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitos/predictbet/internal/domain"
)

// memStore is an in-memory SettlementStore with real transactional
// semantics: mutations are staged and applied only when the transaction
// function returns nil.
type memStore struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	users     map[string]*domain.UserBalance
	teams     map[string]*domain.Team

	// forceConflict makes every ApplyBalanceDelta fail with a version
	// mismatch.
	forceConflict bool
}

func newMemStore() *memStore {
	return &memStore{
		positions: make(map[string]*domain.Position),
		users:     make(map[string]*domain.UserBalance),
		teams:     make(map[string]*domain.Team),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.SettlementTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:       s,
		stagedPos:   make(map[string]*domain.Position),
		stagedUsers: make(map[string]*domain.UserBalance),
		teamDeltas:  make(map[string]int64),
	}
	if err := fn(ctx, tx); err != nil {
		return err // staged changes discarded
	}

	for id, p := range tx.stagedPos {
		s.positions[id] = p
	}
	for id, u := range tx.stagedUsers {
		s.users[id] = u
	}
	for id, delta := range tx.teamDeltas {
		if t, ok := s.teams[id]; ok {
			t.TotalPts += delta
		}
	}
	return nil
}

type memTx struct {
	store       *memStore
	stagedPos   map[string]*domain.Position
	stagedUsers map[string]*domain.UserBalance
	teamDeltas  map[string]int64
}

func (t *memTx) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	if p, ok := t.stagedPos[id]; ok {
		cp := *p
		return &cp, nil
	}
	p, ok := t.store.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) MarkSettled(ctx context.Context, p *domain.Position) error {
	current, ok := t.store.positions[p.ID]
	if !ok {
		return fmt.Errorf("position %s: %w", p.ID, domain.ErrNotFound)
	}
	if current.Status != domain.StatusActive {
		return domain.ErrAlreadySettled
	}
	cp := *p
	t.stagedPos[p.ID] = &cp
	return nil
}

func (t *memTx) GetUser(ctx context.Context, id string) (*domain.UserBalance, error) {
	if u, ok := t.stagedUsers[id]; ok {
		cp := *u
		return &cp, nil
	}
	u, ok := t.store.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) ApplyBalanceDelta(ctx context.Context, userID string, expectedVersion int64, ptsDelta int64, combo domain.ComboState) (*domain.UserBalance, error) {
	u, ok := t.store.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if t.store.forceConflict || u.Version != expectedVersion {
		return nil, fmt.Errorf("user %s version %d: %w", userID, expectedVersion, domain.ErrConcurrencyConflict)
	}
	updated := *u
	updated.Pts += ptsDelta
	updated.Combo = combo.Combo
	updated.MaxCombo = combo.MaxCombo
	updated.Multiplier = combo.Multiplier
	updated.Version++
	t.stagedUsers[userID] = &updated
	cp := updated
	return &cp, nil
}

func (t *memTx) AddTeamPts(ctx context.Context, teamID string, delta int64) error {
	if _, ok := t.store.teams[teamID]; !ok {
		return fmt.Errorf("team %s: %w", teamID, domain.ErrNotFound)
	}
	t.teamDeltas[teamID] += delta
	return nil
}

// PositionRepository view of memStore (for CloseManual and the monitor).

func (s *memStore) SavePosition(ctx context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListActivePositions(ctx context.Context) ([]*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Position
	for _, p := range s.positions {
		if p.Status == domain.StatusActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) user(id string) domain.UserBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) team(id string) domain.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.teams[id]
}

func (s *memStore) position(id string) domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.positions[id]
}

// mockPrices serves fixed latest values per category.
type mockPrices struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]error
}

func newMockPrices() *mockPrices {
	return &mockPrices{values: make(map[string]float64), errs: make(map[string]error)}
}

func (m *mockPrices) set(category string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[category] = value
}

func (m *mockPrices) fail(category string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[category] = err
}

func (m *mockPrices) Latest(ctx context.Context, category string) (*domain.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[category]; ok {
		return nil, err
	}
	v, ok := m.values[category]
	if !ok {
		return nil, domain.ErrUpstreamUnavailable
	}
	return &domain.PriceSnapshot{Category: category, Value: v}, nil
}

// mockNotifier records pushed events.
type mockNotifier struct {
	mu          sync.Mutex
	balances    []int64
	settled     []domain.SettledEvent
	marginCalls []string
}

func (m *mockNotifier) BalanceUpdated(userID string, newBalance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = append(m.balances, newBalance)
}

func (m *mockNotifier) BetSettled(ev domain.SettledEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = append(m.settled, ev)
}

func (m *mockNotifier) MarginCall(positionID, userID string, profitPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marginCalls = append(m.marginCalls, positionID)
}

func (m *mockNotifier) marginCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marginCalls)
}

// mockCommentator returns a fixed blurb or error.
type mockCommentator struct {
	text string
	err  error
}

func (m *mockCommentator) Describe(ctx context.Context, result domain.Result, profitPercent float64, reason domain.ExitReason, locale string) (string, error) {
	return m.text, m.err
}
