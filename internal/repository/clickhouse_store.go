package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"BtcTrader/internal/domain/models"
	domrepo "BtcTrader/internal/domain/repository"
	pkgch "BtcTrader/pkg/clickhouse"
	applogger "BtcTrader/pkg/logger"
)

const performanceTable = "paper_performance"

// PerformanceSchema returns the DDL for the performance snapshot table. The
// ReplacingMergeTree keeps the newest row per (user, period, date).
func PerformanceSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            user_id     String,
            period_type LowCardinality(String),
            period_date Date,
            equity      Float64,
            updated_at  DateTime64(3)
        )
        ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (user_id, period_type, period_date)
    `, database, performanceTable),
	}
}

// CHPerformanceStore implements PerformanceStore backed by ClickHouse.
type CHPerformanceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.PerformanceStore = (*CHPerformanceStore)(nil)

func NewCHPerformanceStore(ch *pkgch.Client, database string) *CHPerformanceStore {
	return &CHPerformanceStore{db: ch.DB(), table: database + "." + performanceTable}
}

// SetLogger injects a structured logger.
func (s *CHPerformanceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPerformanceStore) Upsert(ctx context.Context, snap models.PerformanceSnapshot) error {
	q := fmt.Sprintf("INSERT INTO %s (user_id, period_type, period_date, equity, updated_at) VALUES (?, ?, ?, ?, ?)", s.table)
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	// Date columns have no zone; keep the local calendar date
	date := time.Date(snap.PeriodDate.Year(), snap.PeriodDate.Month(), snap.PeriodDate.Day(), 0, 0, 0, 0, time.UTC)
	if _, err := s.db.ExecContext(ctx, q, snap.UserID, string(snap.PeriodType), date, snap.Equity, updated); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse performance upsert error",
				applogger.String("user_id", snap.UserID),
				applogger.String("period", string(snap.PeriodType)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert performance: %w", err)
	}
	return nil
}

func (s *CHPerformanceStore) List(ctx context.Context, userID string, period models.PeriodType, limit int) ([]models.PerformanceSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	const qtpl = `
        SELECT user_id, period_type, period_date, equity, updated_at
        FROM %s FINAL
        WHERE user_id = ? AND period_type = ?
        ORDER BY period_date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), userID, string(period), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse performance list error",
				applogger.String("user_id", userID),
				applogger.String("period", string(period)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("list performance: %w", err)
	}
	defer rows.Close()

	out := make([]models.PerformanceSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap models.PerformanceSnapshot
			pt   string
		)
		if err := rows.Scan(&snap.UserID, &pt, &snap.PeriodDate, &snap.Equity, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		snap.PeriodType = models.PeriodType(pt)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverseSnapshots(out)
	return out, nil
}

func reverseSnapshots(s []models.PerformanceSnapshot) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// CHCandleFeed reads minute candles aggregated into ClickHouse by the ticker pipeline.
type CHCandleFeed struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.CandleSource = (*CHCandleFeed)(nil)

func NewCHCandleFeed(ch *pkgch.Client, database, table string) *CHCandleFeed {
	if table == "" {
		table = "rt_candles_1m"
	}
	return &CHCandleFeed{db: ch.DB(), table: database + "." + table}
}

// SetLogger injects a structured logger.
func (f *CHCandleFeed) SetLogger(l *applogger.Logger) { f.l = l }

func (f *CHCandleFeed) LatestCandles(ctx context.Context, market string, n int) ([]models.Candle, error) {
	start := time.Now()
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := f.db.QueryContext(ctx, fmt.Sprintf(qtpl, f.table), market, n)
	if err != nil {
		if f.l != nil {
			f.l.Error("clickhouse latest_candles query error",
				applogger.String("table", f.table),
				applogger.String("market", market),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Market, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if f.l != nil {
		f.l.Debug("clickhouse latest_candles ok",
			applogger.String("market", market),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

// CHTickerStore appends ticker updates to the raw ticks table that feeds the
// minute candle view.
type CHTickerStore struct {
	db    *sql.DB
	table string
}

func NewCHTickerStore(ch *pkgch.Client, database string) *CHTickerStore {
	return &CHTickerStore{db: ch.DB(), table: database + ".rt_ticks_raw"}
}

// TickerSchema creates the raw ticks table and the 1m candle rollup.
func TickerSchema(database, candleTable string) []string {
	if candleTable == "" {
		candleTable = "rt_candles_1m"
	}
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.rt_ticks_raw (
            ts     DateTime64(3),
            symbol LowCardinality(String),
            price  Float64,
            volume Float64
        )
        ENGINE = MergeTree
        ORDER BY (symbol, ts)
        TTL toDateTime(ts) + INTERVAL 7 DAY
    `, database),
		fmt.Sprintf(`
        CREATE VIEW IF NOT EXISTS %[1]s.%[2]s AS
        SELECT
            toStartOfMinute(ts) AS bucket,
            symbol,
            argMin(price, ts) AS open,
            max(price) AS high,
            min(price) AS low,
            argMax(price, ts) AS close,
            max(volume) - min(volume) AS vol
        FROM %[1]s.rt_ticks_raw
        GROUP BY bucket, symbol
    `, database, candleTable),
	}
}

// StoreBatch inserts tickers in multi-row chunks.
func (s *CHTickerStore) StoreBatch(ctx context.Context, tickers []models.Ticker) error {
	const chunkSize = 2000
	for start := 0; start < len(tickers); start += chunkSize {
		end := min(start+chunkSize, len(tickers))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin ticks batch: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume)", s.table))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prepare ticks batch: %w", err)
		}
		for _, t := range tickers[start:end] {
			if t.Market == "" || t.TradePrice <= 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, t.Timestamp, t.Market, t.TradePrice, t.AccTradeVolume24h); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return fmt.Errorf("append tick: %w", err)
			}
		}
		_ = stmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit ticks batch: %w", err)
		}
	}
	return nil
}
