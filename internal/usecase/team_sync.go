package usecase

import (
	"context"
	"math"
	"time"

	"github.com/vitos/predictbet/internal/domain"
	"go.uber.org/zap"
)

// reconcileTolerance bounds acceptable drift between a team's denormalized
// total and the true sum of its members' balances.
const reconcileTolerance = 0.01

// TeamReconciler recomputes each team's total from its members on a fixed
// cadence and corrects drift beyond the tolerance. Idempotent: running it
// twice in a row changes nothing.
type TeamReconciler struct {
	teams    domain.TeamRepository
	users    domain.UserRepository
	logger   *zap.Logger
	interval time.Duration
}

func NewTeamReconciler(teams domain.TeamRepository, users domain.UserRepository, logger *zap.Logger, interval time.Duration) *TeamReconciler {
	return &TeamReconciler{teams: teams, users: users, logger: logger, interval: interval}
}

func (r *TeamReconciler) Start(ctx context.Context) {
	r.logger.Info("starting team reconciler", zap.Duration("interval", r.interval))

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Reconcile(ctx); err != nil {
					r.logger.Error("team reconciliation failed", zap.Error(err))
				}
			}
		}
	}()
}

// Reconcile corrects every team whose stored total drifted from the true
// member sum. A failure on one team does not abort the others.
func (r *TeamReconciler) Reconcile(ctx context.Context) error {
	teams, err := r.teams.ListTeams(ctx)
	if err != nil {
		return err
	}

	for _, team := range teams {
		members, err := r.users.ListTeamMembers(ctx, team.ID)
		if err != nil {
			r.logger.Error("failed to list team members", zap.String("team_id", team.ID), zap.Error(err))
			continue
		}

		var sum int64
		for _, m := range members {
			sum += m.Pts
		}

		if math.Abs(float64(team.TotalPts-sum)) <= reconcileTolerance {
			continue
		}

		if err := r.teams.SetTeamTotal(ctx, team.ID, sum); err != nil {
			r.logger.Error("failed to correct team total", zap.String("team_id", team.ID), zap.Error(err))
			continue
		}
		r.logger.Info("corrected team total drift",
			zap.String("team_id", team.ID),
			zap.Int64("stored", team.TotalPts),
			zap.Int64("actual", sum),
		)
	}

	return nil
}
