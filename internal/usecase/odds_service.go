package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

const (
	// eventShiftFactor moves odds toward the leading side after a
	// qualifying match event (e.g. a goal).
	eventShiftFactor = 0.05
	// overweightShare is the pool share past which an outcome's odds get
	// damped.
	overweightShare = 0.40
	overweightDamp  = 0.98
	minOdds         = 1.01
)

// OddsService is the pari-mutuel adjunct for match-outcome markets: bets
// increment per-outcome pools, and odds are repriced heuristically after
// qualifying events. Independent from the settlement state machine.
type OddsService struct {
	pools  domain.PoolRepository
	logger *zap.Logger
}

func NewOddsService(pools domain.PoolRepository, logger *zap.Logger) *OddsService {
	return &OddsService{pools: pools, logger: logger}
}

// PlaceBet adds a stake to the outcome's pool counter.
func (s *OddsService) PlaceBet(ctx context.Context, matchID, outcome string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("invalid bet amount %d", amount)
	}
	return s.pools.AddToPool(ctx, matchID, outcome, amount)
}

// Odds returns the current odds for a match.
func (s *OddsService) Odds(ctx context.Context, matchID string) (*domain.MatchOdds, error) {
	return s.pools.GetOdds(ctx, matchID)
}

// OnMatchEvent reprices the odds after a qualifying event: the leading
// side's odds shrink by the shift factor while the others grow, then any
// outcome holding more than 40% of total pool volume gets a further ~2%
// reduction. Odds never fall below minOdds.
func (s *OddsService) OnMatchEvent(ctx context.Context, matchID, leadingOutcome string) (*domain.MatchOdds, error) {
	odds, err := s.pools.GetOdds(ctx, matchID)
	if err != nil {
		return nil, err
	}

	for outcome, o := range odds.Outcomes {
		if outcome == leadingOutcome {
			o *= 1 - eventShiftFactor
		} else {
			o *= 1 + eventShiftFactor
		}
		odds.Outcomes[outcome] = clampOdds(o)
	}

	pools, err := s.pools.GetPools(ctx, matchID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range pools {
		total += p.Volume
	}
	if total > 0 {
		for _, p := range pools {
			share := float64(p.Volume) / float64(total)
			if share <= overweightShare {
				continue
			}
			if o, ok := odds.Outcomes[p.Outcome]; ok {
				odds.Outcomes[p.Outcome] = clampOdds(o * overweightDamp)
			}
		}
	}

	odds.UpdatedAt = time.Now()
	if err := s.pools.SaveOdds(ctx, odds); err != nil {
		return nil, err
	}

	s.logger.Info("odds repriced",
		zap.String("match_id", matchID),
		zap.String("leading_outcome", leadingOutcome),
	)
	return odds, nil
}

func clampOdds(o float64) float64 {
	if o < minOdds {
		return minOdds
	}
	return o
}
