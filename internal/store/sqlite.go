package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite" // Pure-Go SQLite driver.
	sqlite3 "modernc.org/sqlite/lib"

	"quantmind/internal/backtest"
	"quantmind/internal/domain"
	"quantmind/internal/perf"
	"quantmind/internal/strategy"
	"quantmind/internal/sweep"
	"quantmind/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	created_at         TEXT NOT NULL,
	model              TEXT NOT NULL,
	threshold          REAL NOT NULL,
	final_balance      REAL NOT NULL,
	total_return_pct   REAL NOT NULL,
	max_drawdown       REAL NOT NULL,
	win_rate           REAL NOT NULL,
	profit_factor      REAL NOT NULL,
	sharpe_ratio       REAL NOT NULL,
	total_trades       INTEGER NOT NULL,
	closed_trades      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_trades (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	trade_id      TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	entry_date    TEXT NOT NULL,
	entry_price   REAL NOT NULL,
	exit_date     TEXT,
	exit_price    REAL NOT NULL,
	qty           INTEGER NOT NULL,
	pnl           REAL NOT NULL,
	pnl_pct       REAL NOT NULL,
	reason        TEXT NOT NULL,
	balance_after REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS leaderboards (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS leaderboard_entries (
	leaderboard_id TEXT NOT NULL REFERENCES leaderboards(id) ON DELETE CASCADE,
	rank           INTEGER NOT NULL,
	model          TEXT NOT NULL,
	display_name   TEXT NOT NULL,
	threshold      REAL NOT NULL,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	PRIMARY KEY (leaderboard_id, rank)
);
`

// Busy databases are retried with backoff before giving up.
const (
	busyAttempts = 5
	busyDelay    = 50 * time.Millisecond
)

// SQLiteStore persists backtest runs, their trade ledgers and leaderboards
// in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// RunSummary is a stored run without its trades.
type RunSummary struct {
	ID        string
	CreatedAt time.Time
	Model     strategy.ModelID
	Threshold float64
	perf.Metrics
}

// LeaderboardRow is one ranked entry of a stored leaderboard.
type LeaderboardRow struct {
	Rank               int
	Model              strategy.ModelID
	DisplayName        string
	Threshold          float64
	RunID              string
	TotalReturnPercent float64
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// SaveRun stores a backtest result and its trades under a new run id.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *backtest.Result) (string, error) {
	if res == nil {
		return "", errors.New("saving run: nil result")
	}
	id := uuid.NewString()
	created := s.now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertRun(ctx, tx, id, created, res)
	})
	if err != nil {
		return "", fmt.Errorf("saving run for %s: %w", res.Model, err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first, up to limit. A
// non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, model, threshold, final_balance, total_return_pct,
		       max_drawdown, win_rate, profit_factor, sharpe_ratio, total_trades, closed_trades
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			created string
			model   string
		)
		if err := rows.Scan(&r.ID, &created, &model, &r.Threshold, &r.FinalBalance,
			&r.TotalReturnPercent, &r.MaxDrawdown, &r.WinRate, &r.ProfitFactor,
			&r.SharpeRatio, &r.TotalTrades, &r.ClosedTrades); err != nil {
			return nil, err
		}
		r.Model = strategy.ModelID(model)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunTrades returns the trade ledger of a stored run in ledger order.
func (s *SQLiteStore) RunTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, symbol, entry_date, entry_price, exit_date, exit_price,
		       qty, pnl, pnl_pct, reason, balance_after
		FROM run_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t         domain.Trade
			entryDate string
			exitDate  sql.NullString
			reason    string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &entryDate, &t.EntryPrice, &exitDate,
			&t.ExitPrice, &t.Qty, &t.PnL, &t.PnLPercent, &reason, &t.BalanceAfter); err != nil {
			return nil, err
		}
		if t.EntryDate, err = domain.ParseDate(entryDate); err != nil {
			return nil, err
		}
		if exitDate.Valid {
			d, err := domain.ParseDate(exitDate.String)
			if err != nil {
				return nil, err
			}
			t.ExitDate = &d
		}
		t.Reason = domain.ExitReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Leaderboards
// ---------------------------------------------------------------------------

// SaveLeaderboard stores every entry's result as a run and records the
// ranking under a new leaderboard id, all in one transaction.
func (s *SQLiteStore) SaveLeaderboard(ctx context.Context, entries []sweep.Entry) (string, error) {
	id := uuid.NewString()
	created := s.now().UTC()
	runIDs := make([]string, len(entries))
	for i := range runIDs {
		runIDs[i] = uuid.NewString()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leaderboards (id, created_at) VALUES (?, ?)`,
			id, created.Format(time.RFC3339Nano)); err != nil {
			return err
		}
		for i, e := range entries {
			if e.Result == nil {
				return fmt.Errorf("entry %d (%s): nil result", i, e.Model)
			}
			if err := insertRun(ctx, tx, runIDs[i], created, e.Result); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO leaderboard_entries (leaderboard_id, rank, model, display_name, threshold, run_id)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, e.Rank, string(e.Model), e.DisplayName, e.Threshold, runIDs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("saving leaderboard: %w", err)
	}
	return id, nil
}

// LeaderboardRows returns the ranked entries of a stored leaderboard.
func (s *SQLiteStore) LeaderboardRows(ctx context.Context, leaderboardID string) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.rank, e.model, e.display_name, e.threshold, e.run_id, r.total_return_pct
		FROM leaderboard_entries e JOIN runs r ON r.id = e.run_id
		WHERE e.leaderboard_id = ? ORDER BY e.rank`, leaderboardID)
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard %s: %w", leaderboardID, err)
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var (
			r     LeaderboardRow
			model string
		)
		if err := rows.Scan(&r.Rank, &model, &r.DisplayName, &r.Threshold, &r.RunID, &r.TotalReturnPercent); err != nil {
			return nil, err
		}
		r.Model = strategy.ModelID(model)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func insertRun(ctx context.Context, tx *sql.Tx, id string, created time.Time, res *backtest.Result) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, model, threshold, final_balance, total_return_pct,
		                  max_drawdown, win_rate, profit_factor, sharpe_ratio, total_trades, closed_trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, created.Format(time.RFC3339Nano), string(res.Model), res.Threshold,
		res.FinalBalance, res.TotalReturnPercent, res.MaxDrawdown, res.WinRate,
		res.ProfitFactor, res.SharpeRatio, res.TotalTrades, res.ClosedTrades); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (run_id, seq, trade_id, symbol, entry_date, entry_price, exit_date,
		                        exit_price, qty, pnl, pnl_pct, reason, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range res.Trades {
		var exit sql.NullString
		if t.ExitDate != nil {
			exit = sql.NullString{String: domain.FormatDate(*t.ExitDate), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, t.ID, t.Symbol, domain.FormatDate(t.EntryDate),
			t.EntryPrice, exit, t.ExitPrice, t.Qty, t.PnL, t.PnLPercent, string(t.Reason),
			t.BalanceAfter); err != nil {
			return fmt.Errorf("trade %s: %w", t.ID, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, retrying the whole transaction while the
// database reports itself busy or locked.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return util.Retry(ctx, busyAttempts, busyDelay, isBusy, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
