package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/predictbet/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			side TEXT NOT NULL,
			stake INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			stop_loss_pct REAL NOT NULL DEFAULT 0,
			take_profit_pct REAL NOT NULL DEFAULT 0,
			hold_duration TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			result TEXT NOT NULL DEFAULT '',
			exit_price REAL NOT NULL DEFAULT 0,
			exit_reason TEXT NOT NULL DEFAULT '',
			payout INTEGER NOT NULL DEFAULT 0,
			profit_pct REAL NOT NULL DEFAULT 0,
			settled_at DATETIME,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL DEFAULT '',
			pts INTEGER NOT NULL DEFAULT 0,
			combo INTEGER NOT NULL DEFAULT 0,
			max_combo INTEGER NOT NULL DEFAULT 0,
			multiplier REAL NOT NULL DEFAULT 1.0,
			version INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id);`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			total_pts INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS price_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			value REAL NOT NULL,
			ts DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_category_ts ON price_snapshots(category, ts);`,
		`CREATE TABLE IF NOT EXISTS outcome_pools (
			match_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (match_id, outcome)
		);`,
		`CREATE TABLE IF NOT EXISTS match_odds (
			match_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			odds REAL NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (match_id, outcome)
		);`,
		`CREATE TABLE IF NOT EXISTS engine_config (
			key TEXT PRIMARY KEY,
			value REAL NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Migration: profit_pct landed after the first release. Ignore the
	// error if the column already exists.
	_, _ = s.db.Exec(`ALTER TABLE positions ADD COLUMN profit_pct REAL NOT NULL DEFAULT 0`)

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// schemaErr turns a missing-column failure into a typed drift error so the
// scheduler can skip the batch instead of crashing mid-migration.
func schemaErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such column") {
		return fmt.Errorf("%w: %v", domain.ErrSchemaDrift, err)
	}
	return err
}

const positionColumns = `id, user_id, category, side, stake, entry_price, stop_loss_pct, take_profit_pct,
	hold_duration, expires_at, status, result, exit_price, exit_reason, payout, profit_pct, settled_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	var expiresAt, settledAt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.Category, &p.Side, &p.Stake, &p.EntryPrice,
		&p.StopLossPct, &p.TakeProfitPct, &p.HoldDuration, &expiresAt, &p.Status,
		&p.Result, &p.ExitPrice, &p.ExitReason, &p.Payout, &p.ProfitPercent, &settledAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		p.ExpiresAt = expiresAt.Time
	}
	if settledAt.Valid {
		t := settledAt.Time
		p.SettledAt = &t
	}
	return &p, nil
}

// PositionRepository implementation

func (s *SQLiteStore) SavePosition(ctx context.Context, p *domain.Position) error {
	query := `INSERT INTO positions (` + positionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var settledAt any
	if p.SettledAt != nil {
		settledAt = *p.SettledAt
	}
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Category, p.Side, p.Stake, p.EntryPrice,
		p.StopLossPct, p.TakeProfitPct, p.HoldDuration, p.ExpiresAt, p.Status,
		p.Result, p.ExitPrice, p.ExitReason, p.Payout, p.ProfitPercent, settledAt, p.CreatedAt)
	return err
}

func (s *SQLiteStore) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

func (s *SQLiteStore) ListActivePositions(ctx context.Context) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = ?`, domain.StatusActive)
	if err != nil {
		return nil, schemaErr(err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, schemaErr(err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UserRepository implementation

const userColumns = `id, team_id, pts, combo, max_combo, multiplier, version, updated_at`

func scanUser(row rowScanner) (*domain.UserBalance, error) {
	var u domain.UserBalance
	err := row.Scan(&u.ID, &u.TeamID, &u.Pts, &u.Combo, &u.MaxCombo, &u.Multiplier, &u.Version, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*domain.UserBalance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, err
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u *domain.UserBalance) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  team_id=excluded.team_id, pts=excluded.pts, combo=excluded.combo,
			  max_combo=excluded.max_combo, multiplier=excluded.multiplier,
			  version=excluded.version, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.TeamID, u.Pts, u.Combo, u.MaxCombo, u.Multiplier, u.Version, time.Now())
	return err
}

func (s *SQLiteStore) ListTeamMembers(ctx context.Context, teamID string) ([]*domain.UserBalance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE team_id = ?`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.UserBalance
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TeamRepository implementation

func (s *SQLiteStore) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, total_pts, updated_at FROM teams WHERE id = ?`, id)
	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.TotalPts, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, total_pts, updated_at FROM teams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.TotalPts, &t.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

func (s *SQLiteStore) SaveTeam(ctx context.Context, t *domain.Team) error {
	query := `INSERT INTO teams (id, name, total_pts, updated_at) VALUES (?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  name=excluded.name, total_pts=excluded.total_pts, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.TotalPts, time.Now())
	return err
}

func (s *SQLiteStore) SetTeamTotal(ctx context.Context, id string, total int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE teams SET total_pts = ?, updated_at = ? WHERE id = ?`, total, time.Now(), id)
	return err
}

// SnapshotRepository implementation

func (s *SQLiteStore) SavePriceSnapshot(ctx context.Context, snap *domain.PriceSnapshot) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_snapshots (category, value, ts) VALUES (?, ?, ?)`,
		snap.Category, snap.Value, snap.Timestamp)
	return err
}

func (s *SQLiteStore) LatestPriceSnapshot(ctx context.Context, category string) (*domain.PriceSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT category, value, ts FROM price_snapshots WHERE category = ? ORDER BY ts DESC LIMIT 1`, category)
	var snap domain.PriceSnapshot
	err := row.Scan(&snap.Category, &snap.Value, &snap.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no price for %s: %w", category, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// PoolRepository implementation

func (s *SQLiteStore) AddToPool(ctx context.Context, matchID, outcome string, amount int64) error {
	query := `INSERT INTO outcome_pools (match_id, outcome, volume) VALUES (?, ?, ?)
			  ON CONFLICT(match_id, outcome) DO UPDATE SET volume = volume + excluded.volume`
	_, err := s.db.ExecContext(ctx, query, matchID, outcome, amount)
	return err
}

func (s *SQLiteStore) GetPools(ctx context.Context, matchID string) ([]*domain.OutcomePool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT match_id, outcome, volume FROM outcome_pools WHERE match_id = ?`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*domain.OutcomePool
	for rows.Next() {
		var p domain.OutcomePool
		if err := rows.Scan(&p.MatchID, &p.Outcome, &p.Volume); err != nil {
			return nil, err
		}
		pools = append(pools, &p)
	}
	return pools, rows.Err()
}

func (s *SQLiteStore) GetOdds(ctx context.Context, matchID string) (*domain.MatchOdds, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, odds, updated_at FROM match_odds WHERE match_id = ?`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	odds := &domain.MatchOdds{MatchID: matchID, Outcomes: make(map[string]float64)}
	for rows.Next() {
		var outcome string
		var o float64
		var updatedAt time.Time
		if err := rows.Scan(&outcome, &o, &updatedAt); err != nil {
			return nil, err
		}
		odds.Outcomes[outcome] = o
		if updatedAt.After(odds.UpdatedAt) {
			odds.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(odds.Outcomes) == 0 {
		return nil, fmt.Errorf("odds for match %s: %w", matchID, domain.ErrNotFound)
	}
	return odds, nil
}

func (s *SQLiteStore) SaveOdds(ctx context.Context, odds *domain.MatchOdds) error {
	query := `INSERT INTO match_odds (match_id, outcome, odds, updated_at) VALUES (?, ?, ?, ?)
			  ON CONFLICT(match_id, outcome) DO UPDATE SET odds=excluded.odds, updated_at=excluded.updated_at`
	for outcome, o := range odds.Outcomes {
		if _, err := s.db.ExecContext(ctx, query, odds.MatchID, outcome, o, odds.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

// ConfigStore implementation

func (s *SQLiteStore) loadConfigValues(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM engine_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

func (s *SQLiteStore) CurrentComboConfig(ctx context.Context) (domain.ComboConfig, error) {
	cfg := domain.DefaultComboConfig()
	values, err := s.loadConfigValues(ctx)
	if err != nil {
		return cfg, err
	}
	if v, ok := values["combo_increment"]; ok {
		cfg.Increment = v
	}
	if v, ok := values["combo_base"]; ok {
		cfg.Base = v
	}
	if v, ok := values["combo_max_multiplier"]; ok {
		cfg.Max = v
	}
	if v, ok := values["combo_reset"]; ok {
		cfg.ResetCombo = int(v)
	}
	if v, ok := values["combo_reset_multiplier"]; ok {
		cfg.ResetMultiplier = v
	}
	if v, ok := values["combo_max_count"]; ok {
		cfg.MaxComboCount = int(v)
	}
	return cfg, nil
}

func (s *SQLiteStore) CurrentPayoutConfig(ctx context.Context) (domain.PayoutConfig, error) {
	cfg := domain.DefaultPayoutConfig()
	values, err := s.loadConfigValues(ctx)
	if err != nil {
		return cfg, err
	}
	if v, ok := values["payout_tp_bonus"]; ok {
		cfg.TakeProfitBonus = v
	}
	if v, ok := values["payout_sl_penalty"]; ok {
		cfg.StopLossPenalty = v
	}
	return cfg, nil
}

// SettlementStore implementation

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.SettlementTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stx := &settlementTx{tx: tx}
	if err := fn(ctx, stx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type settlementTx struct {
	tx *sql.Tx
}

func (t *settlementTx) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	return p, schemaErr(err)
}

// MarkSettled both checks and flips the ACTIVE status in one statement, so
// two racing settlements of the same position resolve to exactly one
// winner.
func (t *settlementTx) MarkSettled(ctx context.Context, p *domain.Position) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE positions SET status = ?, result = ?, exit_price = ?, exit_reason = ?, payout = ?, profit_pct = ?, settled_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusSettled, p.Result, p.ExitPrice, p.ExitReason, p.Payout, p.ProfitPercent, p.SettledAt,
		p.ID, domain.StatusActive)
	if err != nil {
		return schemaErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadySettled
	}
	return nil
}

func (t *settlementTx) GetUser(ctx context.Context, id string) (*domain.UserBalance, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, err
}

func (t *settlementTx) ApplyBalanceDelta(ctx context.Context, userID string, expectedVersion int64, ptsDelta int64, combo domain.ComboState) (*domain.UserBalance, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET pts = pts + ?, combo = ?, max_combo = ?, multiplier = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		ptsDelta, combo.Combo, combo.MaxCombo, combo.Multiplier, time.Now(), userID, expectedVersion)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a stale version from a missing user.
		var exists int
		if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("user %s version %d: %w", userID, expectedVersion, domain.ErrConcurrencyConflict)
	}
	return t.GetUser(ctx, userID)
}

func (t *settlementTx) AddTeamPts(ctx context.Context, teamID string, delta int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE teams SET total_pts = total_pts + ?, updated_at = ? WHERE id = ?`, delta, time.Now(), teamID)
	return err
}
