package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

// Settler settles a single position. Satisfied by *SettlementService.
type Settler interface {
	Settle(ctx context.Context, positionID string, exitPrice float64, reason domain.ExitReason, profitPercent float64) (*SettlementResult, error)
}

// marginCallBand: a warning fires when the loss sits between 80% and 100%
// of the stop-loss distance.
const marginCallBand = 0.8

// PositionMonitor periodically scans ACTIVE positions and evaluates the
// stop-loss/take-profit and expiry trigger families. Positions are drained
// by a bounded worker pool; a failure on one position never aborts the rest
// of the batch.
type PositionMonitor struct {
	positions domain.PositionRepository
	prices    domain.PriceLookup
	settler   Settler
	notifier  domain.Notifier
	logger    *zap.Logger
	interval  time.Duration
	workers   int

	mu     sync.Mutex
	warned map[string]bool // position IDs with an outstanding margin-call warning
}

func NewPositionMonitor(
	positions domain.PositionRepository,
	prices domain.PriceLookup,
	settler Settler,
	notifier domain.Notifier,
	logger *zap.Logger,
	interval time.Duration,
	workers int,
) *PositionMonitor {
	if workers <= 0 {
		workers = 8
	}
	return &PositionMonitor{
		positions: positions,
		prices:    prices,
		settler:   settler,
		notifier:  notifier,
		logger:    logger,
		interval:  interval,
		workers:   workers,
		warned:    make(map[string]bool),
	}
}

func (m *PositionMonitor) Start(ctx context.Context) {
	m.logger.Info("starting position monitor", zap.Duration("interval", m.interval), zap.Int("workers", m.workers))

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Scan(ctx)
			}
		}
	}()
}

// Scan evaluates every ACTIVE position once. Schema drift in storage skips
// the batch instead of crashing the scheduler.
func (m *PositionMonitor) Scan(ctx context.Context) {
	open, err := m.positions.ListActivePositions(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSchemaDrift) {
			m.logger.Warn("schema drift detected, skipping scan", zap.Error(err))
			return
		}
		m.logger.Error("failed to list active positions", zap.Error(err))
		return
	}
	if len(open) == 0 {
		return
	}

	now := time.Now()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, m.workers)
	for _, pos := range open {
		wg.Add(1)
		go func(pos *domain.Position) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			m.evaluate(ctx, pos, now)
		}(pos)
	}
	wg.Wait()
}

func (m *PositionMonitor) evaluate(ctx context.Context, pos *domain.Position, now time.Time) {
	snap, err := m.prices.Latest(ctx, pos.Category)
	if err != nil {
		// Position stays open and is retried next tick.
		m.logger.Warn("price lookup failed, skipping position",
			zap.String("position_id", pos.ID),
			zap.String("category", pos.Category),
			zap.Error(err),
		)
		return
	}

	profitPct := pos.ProfitPercentAt(snap.Value)

	if pos.Expired(now) {
		m.settle(ctx, pos, snap.Value, domain.ReasonExpired, profitPct)
		return
	}

	if pos.EntryPrice <= 0 {
		return
	}

	if pos.TakeProfitPct > 0 && profitPct >= pos.TakeProfitPct {
		m.settle(ctx, pos, snap.Value, domain.ReasonTakeProfit, profitPct)
		return
	}

	if pos.StopLossPct > 0 {
		if profitPct <= -pos.StopLossPct {
			m.settle(ctx, pos, snap.Value, domain.ReasonStopLoss, profitPct)
			return
		}
		if profitPct <= -marginCallBand*pos.StopLossPct {
			m.warnMarginCall(pos, profitPct)
			return
		}
	}

	m.clearWarned(pos.ID)
}

func (m *PositionMonitor) settle(ctx context.Context, pos *domain.Position, exitPrice float64, reason domain.ExitReason, profitPct float64) {
	_, err := m.settler.Settle(ctx, pos.ID, exitPrice, reason, profitPct)
	switch {
	case err == nil:
		m.clearWarned(pos.ID)
	case errors.Is(err, domain.ErrAlreadySettled):
		// Another tick won the race; nothing to do.
		m.logger.Debug("position settled concurrently", zap.String("position_id", pos.ID))
	case errors.Is(err, domain.ErrConcurrencyConflict):
		// Balance write lost a race; the position stays ACTIVE and is
		// re-evaluated on the next tick.
		m.logger.Debug("settlement conflict, will retry", zap.String("position_id", pos.ID))
	default:
		m.logger.Error("settlement failed",
			zap.String("position_id", pos.ID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
}

// warnMarginCall pushes a best-effort warning once per excursion into the
// band; no position state changes.
func (m *PositionMonitor) warnMarginCall(pos *domain.Position, profitPct float64) {
	m.mu.Lock()
	already := m.warned[pos.ID]
	if !already {
		m.warned[pos.ID] = true
	}
	m.mu.Unlock()

	if already {
		return
	}

	m.notifier.MarginCall(pos.ID, pos.UserID, profitPct)
	m.logger.Info("margin call warning",
		zap.String("position_id", pos.ID),
		zap.Float64("profit_pct", profitPct),
		zap.Float64("stop_loss_pct", pos.StopLossPct),
	)
}

func (m *PositionMonitor) clearWarned(positionID string) {
	m.mu.Lock()
	delete(m.warned, positionID)
	m.mu.Unlock()
}
