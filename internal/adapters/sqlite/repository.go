package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

const timeLayout = time.RFC3339Nano

var _ ports.ResultRepository = (*Repository)(nil)

// Repository implements ports.ResultRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Sweeps save from several goroutines; one connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite result store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		symbols TEXT NOT NULL,
		excluded_symbols TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		created_at TEXT NOT NULL,
		metrics TEXT NOT NULL,
		final_cash TEXT NOT NULL,
		final_positions TEXT NOT NULL,
		skipped_days TEXT NOT NULL,
		dropped_signals INTEGER NOT NULL,
		rejected_orders INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_trades (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		trade_id TEXT NOT NULL,
		trade_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		commission TEXT NOT NULL,
		notional TEXT NOT NULL,
		rationale TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS run_equity (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		snapshot_date TEXT NOT NULL,
		value TEXT NOT NULL,
		cash TEXT NOT NULL,
		positions TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs (created_at);
	CREATE INDEX IF NOT EXISTS idx_run_trades_symbol ON run_trades (run_id, symbol);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveResult writes the run header, trade log and equity curve in one transaction.
func (r *Repository) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("save result without run id: %w", ports.ErrInvalidRequest)
	}

	header, err := encodeHeader(result)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", result.RunID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w: %w", result.RunID, ports.ErrDBConnection, err)
	}
	defer tx.Rollback()

	const runQuery = `
	INSERT INTO backtest_runs (run_id, strategy, symbols, excluded_symbols, start_date, end_date, timeframe,
	                           created_at, metrics, final_cash, final_positions, skipped_days,
	                           dropped_signals, rejected_orders)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, runQuery,
		result.RunID, result.Strategy, header.symbols, header.excluded,
		formatTime(result.Start), formatTime(result.End), string(result.Timeframe),
		formatTime(result.CreatedAt), header.metrics, result.FinalPortfolio.Cash,
		header.positions, header.skipped, result.DroppedSignals, result.RejectedOrders); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("run %s: %w", result.RunID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert run %s: %w: %w", result.RunID, ports.ErrQueryFailed, err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_trades (run_id, seq, trade_id, trade_date, symbol, action, quantity, price, commission, notional, rationale)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tradeStmt.Close()
	for i, t := range result.Trades {
		if _, err := tradeStmt.ExecContext(ctx, result.RunID, i, t.ID, formatTime(t.Date), t.Symbol, string(t.Action),
			t.Quantity, t.Price, t.Commission, t.Notional, t.Rationale); err != nil {
			return fmt.Errorf("failed to insert trade %d of run %s: %w: %w", i, result.RunID, ports.ErrQueryFailed, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_equity (run_id, seq, snapshot_date, value, cash, positions)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer equityStmt.Close()
	for i, s := range result.EquityCurve {
		positions, err := json.Marshal(domain.CopyPositions(s.Positions))
		if err != nil {
			return fmt.Errorf("failed to encode positions on %s: %w", s.Date.Format(domain.DateLayout), err)
		}
		if _, err := equityStmt.ExecContext(ctx, result.RunID, i, formatTime(s.Date), s.Value, s.Cash, string(positions)); err != nil {
			return fmt.Errorf("failed to insert snapshot %d of run %s: %w: %w", i, result.RunID, ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w: %w", result.RunID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{
		"runID": result.RunID, "trades": len(result.Trades), "snapshots": len(result.EquityCurve),
	})
	return nil
}

const runColumns = `run_id, strategy, symbols, start_date, end_date, timeframe, created_at, metrics`

// FindRun retrieves a run header by ID. Returns nil, nil if not found.
func (r *Repository) FindRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found", map[string]interface{}{"runID": runID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first. A non-positive limit returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM backtest_runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]domain.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run during ListRuns: %w", err)
		}
		runs = append(runs, *run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// FindTrades retrieves a run's trade log in execution order.
func (r *Repository) FindTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
	SELECT trade_id, trade_date, symbol, action, quantity, price, commission, notional, rationale
	FROM run_trades WHERE run_id = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades of run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade of run %s: %w", runID, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// FindEquityCurve retrieves a run's equity curve in date order.
func (r *Repository) FindEquityCurve(ctx context.Context, runID string) ([]domain.EquitySnapshot, error) {
	const query = `SELECT snapshot_date, value, cash, positions FROM run_equity WHERE run_id = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve of run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	curve := make([]domain.EquitySnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot of run %s: %w", runID, err)
		}
		curve = append(curve, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity rows: %w", err)
	}
	return curve, nil
}

type encodedHeader struct {
	symbols, excluded, metrics, positions, skipped string
}

func encodeHeader(result *domain.BacktestResult) (encodedHeader, error) {
	var h encodedHeader
	fields := []struct {
		dst *string
		v   interface{}
	}{
		{&h.symbols, nonNil(result.Symbols)},
		{&h.excluded, nonNil(result.ExcludedSymbols)},
		{&h.metrics, result.Metrics},
		{&h.positions, domain.CopyPositions(result.FinalPortfolio.Positions)},
		{&h.skipped, result.SkippedDays},
	}
	for _, f := range fields {
		raw, err := json.Marshal(f.v)
		if err != nil {
			return h, err
		}
		*f.dst = string(raw)
	}
	return h, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a row into a domain.RunSummary.
func scanRun(s scanner) (*domain.RunSummary, error) {
	run := &domain.RunSummary{}
	var symbols, start, end, timeframe, created, metrics string
	if err := s.Scan(&run.RunID, &run.Strategy, &symbols, &start, &end, &timeframe, &created, &metrics); err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if err := json.Unmarshal([]byte(symbols), &run.Symbols); err != nil {
		return nil, fmt.Errorf("decoding symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	var err error
	if run.Start, err = parseTime(start); err != nil {
		return nil, err
	}
	if run.End, err = parseTime(end); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	run.Timeframe = domain.Timeframe(timeframe)
	return run, nil
}

// scanTrade scans a row into a domain.Trade. Decimal columns scan directly.
func scanTrade(s scanner) (domain.Trade, error) {
	var t domain.Trade
	var date, action string
	if err := s.Scan(&t.ID, &date, &t.Symbol, &action, &t.Quantity, &t.Price, &t.Commission, &t.Notional, &t.Rationale); err != nil {
		return t, err
	}
	parsed, err := parseTime(date)
	if err != nil {
		return t, err
	}
	t.Date = parsed
	t.Action = domain.Action(action)
	return t, nil
}

// scanSnapshot scans a row into a domain.EquitySnapshot.
func scanSnapshot(s scanner) (domain.EquitySnapshot, error) {
	var snap domain.EquitySnapshot
	var date, positions string
	if err := s.Scan(&date, &snap.Value, &snap.Cash, &positions); err != nil {
		return snap, err
	}
	parsed, err := parseTime(date)
	if err != nil {
		return snap, err
	}
	snap.Date = parsed
	if err := json.Unmarshal([]byte(positions), &snap.Positions); err != nil {
		return snap, fmt.Errorf("decoding positions: %w", err)
	}
	return snap, nil
}
