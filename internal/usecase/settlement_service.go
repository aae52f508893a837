package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

// SettlementResult is returned to callers after a settlement commits.
type SettlementResult struct {
	ID            string
	PositionID    string
	UserID        string
	Result        domain.Result
	Payout        int64
	ExitPrice     float64
	ExitReason    domain.ExitReason
	ProfitPercent float64
	NewBalance    int64
	Combo         domain.ComboState
	Commentary    string
	SettledAt     time.Time
}

// SettlementService settles positions: it computes the payout for the exit
// reason, applies the win multiplier, and mutates position, user balance and
// team aggregate inside one storage transaction. Commentary and push events
// are best-effort side effects after the commit.
type SettlementService struct {
	store       domain.SettlementStore
	positions   domain.PositionRepository
	prices      domain.PriceLookup
	config      *ConfigCache
	commentator domain.Commentator
	notifier    domain.Notifier
	logger      *zap.Logger
}

func NewSettlementService(
	store domain.SettlementStore,
	positions domain.PositionRepository,
	prices domain.PriceLookup,
	config *ConfigCache,
	commentator domain.Commentator,
	notifier domain.Notifier,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		store:       store,
		positions:   positions,
		prices:      prices,
		config:      config,
		commentator: commentator,
		notifier:    notifier,
		logger:      logger,
	}
}

// Settle settles an ACTIVE position at exitPrice for the given reason.
// profitPercent is the direction-adjusted profit in percent units.
//
// Returns domain.ErrNotFound for a missing position or user,
// domain.ErrAlreadySettled when the position is not ACTIVE, and
// domain.ErrConcurrencyConflict when the balance write lost a race; in the
// conflict case nothing is applied and the position stays ACTIVE.
func (s *SettlementService) Settle(ctx context.Context, positionID string, exitPrice float64, reason domain.ExitReason, profitPercent float64) (*SettlementResult, error) {
	comboCfg := s.config.Combo(ctx)
	payoutCfg := s.config.Payout(ctx)

	var res *SettlementResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx domain.SettlementTx) error {
		pos, err := tx.GetPosition(ctx, positionID)
		if err != nil {
			return err
		}
		if pos.Status != domain.StatusActive {
			return domain.ErrAlreadySettled
		}

		result, payout := computePayout(reason, pos.Stake, profitPercent, payoutCfg)

		user, err := tx.GetUser(ctx, pos.UserID)
		if err != nil {
			return fmt.Errorf("load user %s: %w", pos.UserID, err)
		}

		// The multiplier reward applies strictly to winning settlements,
		// using the multiplier the user held before this settlement.
		if result == domain.ResultWin && user.Multiplier > 0 {
			payout = floorPayout(decimal.NewFromInt(payout).Mul(decimal.NewFromFloat(user.Multiplier)))
		}

		next := domain.NextComboState(result, user.ComboState(), comboCfg)

		now := time.Now()
		pos.Status = domain.StatusSettled
		pos.Result = result
		pos.ExitPrice = exitPrice
		pos.ExitReason = reason
		pos.Payout = payout
		pos.ProfitPercent = profitPercent
		pos.SettledAt = &now

		if err := tx.MarkSettled(ctx, pos); err != nil {
			return err
		}

		updated, err := tx.ApplyBalanceDelta(ctx, user.ID, user.Version, payout, next)
		if err != nil {
			return err
		}

		if user.TeamID != "" && payout != 0 {
			if err := tx.AddTeamPts(ctx, user.TeamID, payout); err != nil {
				return fmt.Errorf("team increment %s: %w", user.TeamID, err)
			}
		}

		res = &SettlementResult{
			ID:            uuid.NewString(),
			PositionID:    pos.ID,
			UserID:        user.ID,
			Result:        result,
			Payout:        payout,
			ExitPrice:     exitPrice,
			ExitReason:    reason,
			ProfitPercent: profitPercent,
			NewBalance:    updated.Pts,
			Combo:         next,
			SettledAt:     now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Commentary = s.describe(ctx, res)

	s.notifier.BalanceUpdated(res.UserID, res.NewBalance)
	s.notifier.BetSettled(domain.SettledEvent{
		PositionID:    res.PositionID,
		UserID:        res.UserID,
		Result:        res.Result,
		Payout:        res.Payout,
		ExitPrice:     res.ExitPrice,
		ExitReason:    res.ExitReason,
		ProfitPercent: res.ProfitPercent,
		Commentary:    res.Commentary,
		SettledAt:     res.SettledAt,
	})

	s.logger.Info("position settled",
		zap.String("position_id", res.PositionID),
		zap.String("user_id", res.UserID),
		zap.String("result", string(res.Result)),
		zap.String("reason", string(res.ExitReason)),
		zap.Int64("payout", res.Payout),
		zap.Float64("profit_pct", res.ProfitPercent),
	)

	return res, nil
}

// CloseManual settles a position at the latest index price on behalf of the
// user. Manual closes never apply the deep-loss wipe that expiry does.
func (s *SettlementService) CloseManual(ctx context.Context, positionID string) (*SettlementResult, error) {
	pos, err := s.positions.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.Status != domain.StatusActive {
		return nil, domain.ErrAlreadySettled
	}

	snap, err := s.prices.Latest(ctx, pos.Category)
	if err != nil {
		return nil, fmt.Errorf("price lookup for %s: %w", pos.Category, err)
	}

	return s.Settle(ctx, positionID, snap.Value, domain.ReasonManual, pos.ProfitPercentAt(snap.Value))
}

const commentaryTimeout = 2 * time.Second

func (s *SettlementService) describe(ctx context.Context, res *SettlementResult) string {
	if s.commentator == nil {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, commentaryTimeout)
	defer cancel()

	text, err := s.commentator.Describe(cctx, res.Result, res.ProfitPercent, res.ExitReason, "en")
	if err != nil {
		s.logger.Warn("commentary generation failed", zap.String("position_id", res.PositionID), zap.Error(err))
		return ""
	}
	return text
}

// computePayout applies the payout policy for an exit reason. EXPIRED caps
// the gain at 100% and wipes the stake below -50%; MANUAL pays the raw
// proportional amount floored at zero with no wipe rule.
func computePayout(reason domain.ExitReason, stake int64, profitPercent float64, cfg domain.PayoutConfig) (domain.Result, int64) {
	amount := decimal.NewFromInt(stake)

	switch reason {
	case domain.ReasonTakeProfit:
		return domain.ResultWin, floorPayout(amount.Mul(decimal.NewFromFloat(1 + cfg.TakeProfitBonus)))

	case domain.ReasonStopLoss:
		return domain.ResultLose, floorPayout(amount.Mul(decimal.NewFromFloat(1 - cfg.StopLossPenalty)))

	case domain.ReasonExpired:
		switch {
		case profitPercent > 0:
			gain := profitPercent
			if gain > 100 {
				gain = 100
			}
			return domain.ResultWin, floorPayout(amount.Mul(decimal.NewFromFloat(1 + gain/100)))
		case profitPercent < -50:
			return domain.ResultLose, 0
		case profitPercent < 0:
			return domain.ResultLose, floorPayout(amount.Mul(decimal.NewFromFloat(1 + profitPercent/100)))
		default:
			return domain.ResultBreakeven, stake
		}

	case domain.ReasonManual:
		switch {
		case profitPercent > 0:
			return domain.ResultWin, floorPayout(amount.Mul(decimal.NewFromFloat(1 + profitPercent/100)))
		case profitPercent == 0:
			return domain.ResultBreakeven, stake
		default:
			return domain.ResultLose, floorPayout(amount.Mul(decimal.NewFromFloat(1 + profitPercent/100)))
		}
	}

	// Unknown reason: refund the stake.
	return domain.ResultBreakeven, stake
}

func floorPayout(d decimal.Decimal) int64 {
	v := d.Floor().IntPart()
	if v < 0 {
		return 0
	}
	return v
}
