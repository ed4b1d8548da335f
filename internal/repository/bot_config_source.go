package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	"BtcTrader/pkg/config"
	applogger "BtcTrader/pkg/logger"
)

type pgxRows interface {
	Next() bool
	Close()
	Scan(dest ...interface{}) error
	Err() error
}

var _ pgxRows = (pgx.Rows)(nil)

// PGBotConfigSource reads bot configurations from Postgres. The newest row per
// owner wins.
type PGBotConfigSource struct {
	db      *pgxpool.Pool
	table   string
	timeout time.Duration
	l       *applogger.Logger
}

var _ domrepo.BotConfigSource = (*PGBotConfigSource)(nil)

func NewPGBotConfigSource(db *pgxpool.Pool, table string, timeout time.Duration, l *applogger.Logger) *PGBotConfigSource {
	if table == "" {
		table = "bot_configs"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PGBotConfigSource{db: db, table: table, timeout: timeout, l: l}
}

func latestPerOwnerSQL(table string) string {
	return fmt.Sprintf(`
        SELECT DISTINCT ON (owner_id)
            id::text, owner_id::text,
            COALESCE(selection_mode, ''), COALESCE(strategy_mode, ''),
            COALESCE(risk_preset, ''), COALESCE(operation_mode, ''),
            COALESCE(max_positions, 0),
            COALESCE(max_daily_drawdown_pct, 0)::float8,
            COALESCE(max_weekly_drawdown_pct, 0)::float8,
            COALESCE(auto_pick_top_n, 0),
            COALESCE(manual_markets, ''),
            ema_fast, ema_slow, rsi_period, atr_period, bb_period,
            bb_std_dev::float8, trend_threshold::float8, volatility_high::float8,
            trend_rsi_buy_min, trend_rsi_sell_max, range_rsi_buy_max, range_rsi_sell_min,
            created_at
        FROM %s
        ORDER BY owner_id, created_at DESC
    `, pgx.Identifier{table}.Sanitize())
}

func (s *PGBotConfigSource) LatestPerOwner(ctx context.Context) ([]models.BotConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.Query(ctx, latestPerOwnerSQL(s.table))
	if err != nil {
		if s.l != nil {
			s.l.Error("postgres bot_configs query error", applogger.String("table", s.table), applogger.Error(err))
		}
		return nil, fmt.Errorf("query bot configs: %w", err)
	}
	out, err := scanBotConfigs(rows)
	if err != nil {
		if s.l != nil {
			s.l.Error("postgres bot_configs scan error", applogger.String("table", s.table), applogger.Error(err))
		}
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("postgres bot_configs ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func scanBotConfigs(rows pgxRows) ([]models.BotConfig, error) {
	defer rows.Close()

	var out []models.BotConfig
	for rows.Next() {
		var (
			c         models.BotConfig
			selection string
		)
		o := &c.Overrides
		if err := rows.Scan(
			&c.ID, &c.UserID,
			&selection, &c.StrategyMode,
			&c.RiskPreset, &c.OperationMode,
			&c.MaxPositions,
			&c.MaxDailyDrawdownPct,
			&c.MaxWeeklyDrawdownPct,
			&c.AutoPickTopN,
			&c.ManualMarkets,
			&o.EmaFast, &o.EmaSlow, &o.RsiPeriod, &o.AtrPeriod, &o.BbPeriod,
			&o.BbStdDev, &o.TrendThreshold, &o.VolatilityHigh,
			&o.TrendRsiBuyMin, &o.TrendRsiSellMax, &o.RangeRsiBuyMax, &o.RangeRsiSellMin,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan bot config: %w", err)
		}
		c.SelectionMode = models.SelectionMode(strings.ToUpper(selection))
		out = append(out, withBotDefaults(c))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// StaticBotConfigSource serves bots declared in the YAML config.
type StaticBotConfigSource struct {
	bots []models.BotConfig
}

var _ domrepo.BotConfigSource = (*StaticBotConfigSource)(nil)

func NewStaticBotConfigSource(bots []config.BotConfig) *StaticBotConfigSource {
	latest := make(map[string]models.BotConfig, len(bots))
	order := make([]string, 0, len(bots))
	for i, b := range bots {
		if strings.TrimSpace(b.UserID) == "" {
			continue
		}
		c := models.BotConfig{
			ID:                   b.ID,
			UserID:               b.UserID,
			SelectionMode:        models.SelectionMode(strings.ToUpper(b.SelectionMode)),
			StrategyMode:         b.StrategyMode,
			RiskPreset:           b.RiskPreset,
			OperationMode:        b.OperationMode,
			MaxPositions:         b.MaxPositions,
			MaxDailyDrawdownPct:  b.MaxDailyDrawdownPct,
			MaxWeeklyDrawdownPct: b.MaxWeeklyDrawdownPct,
			AutoPickTopN:         b.AutoPickTopN,
			ManualMarkets:        b.ManualMarkets,
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("static-%d", i+1)
		}
		if _, seen := latest[c.UserID]; !seen {
			order = append(order, c.UserID)
		}
		// later entries for the same user replace earlier ones
		latest[c.UserID] = withBotDefaults(c)
	}
	sort.Strings(order)
	out := make([]models.BotConfig, 0, len(order))
	for _, u := range order {
		out = append(out, latest[u])
	}
	return &StaticBotConfigSource{bots: out}
}

func (s *StaticBotConfigSource) LatestPerOwner(context.Context) ([]models.BotConfig, error) {
	out := make([]models.BotConfig, len(s.bots))
	copy(out, s.bots)
	return out, nil
}

// withBotDefaults fills zero values from models.DefaultBotConfig. Unknown mode
// strings are left alone; the strategy layer resolves them.
func withBotDefaults(c models.BotConfig) models.BotConfig {
	d := models.DefaultBotConfig(c.UserID)
	if c.SelectionMode == "" {
		c.SelectionMode = d.SelectionMode
	}
	if c.StrategyMode == "" {
		c.StrategyMode = d.StrategyMode
	}
	if c.RiskPreset == "" {
		c.RiskPreset = d.RiskPreset
	}
	if c.OperationMode == "" {
		c.OperationMode = d.OperationMode
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = d.MaxPositions
	}
	if c.MaxDailyDrawdownPct <= 0 {
		c.MaxDailyDrawdownPct = d.MaxDailyDrawdownPct
	}
	if c.MaxWeeklyDrawdownPct <= 0 {
		c.MaxWeeklyDrawdownPct = d.MaxWeeklyDrawdownPct
	}
	if c.AutoPickTopN <= 0 {
		c.AutoPickTopN = d.AutoPickTopN
	}
	return c
}
