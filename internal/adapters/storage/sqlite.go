package storage

// sqlite.go — trade log en SQLite (pure Go, sin CGo).
//
// Dos tablas:
//   - `paper_trades`: una fila por posición simulada, actualizada al cierre.
//   - `sessions`: resumen por mercado escrito en el settlement.
// Prune automático al arrancar: trades y sesiones > 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS paper_trades (
    id           TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    question     TEXT,
    outcome      TEXT NOT NULL,
    token_id     TEXT,
    entry_price  REAL NOT NULL,
    entry_time   DATETIME NOT NULL,
    size         REAL NOT NULL,
    cost         REAL NOT NULL,
    exit_price   REAL,
    exit_time    DATETIME,
    pnl          REAL,
    status       TEXT NOT NULL,
    close_reason TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    condition_id TEXT NOT NULL,
    question     TEXT,
    outcome      TEXT NOT NULL,
    settled_at   DATETIME NOT NULL,
    trades       INTEGER NOT NULL DEFAULT 0,
    wins         INTEGER NOT NULL DEFAULT 0,
    losses       INTEGER NOT NULL DEFAULT 0,
    total_pnl    REAL NOT NULL DEFAULT 0,
    win_rate     REAL NOT NULL DEFAULT 0,
    capital      REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_cond   ON paper_trades(condition_id);
CREATE INDEX IF NOT EXISTS idx_trades_entry  ON paper_trades(entry_time DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_at   ON sessions(settled_at DESC);
`

const retention = 30 * 24 * time.Hour

// SQLiteTradeLog implementa ports.TradeLog sobre SQLite.
type SQLiteTradeLog struct {
	db *sql.DB
}

// NewSQLiteTradeLog abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia datos antiguos.
func NewSQLiteTradeLog(path string) (*SQLiteTradeLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteTradeLog: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteTradeLog: apply schema: %w", err)
	}

	s := &SQLiteTradeLog{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SavePaperTrade inserta una posición recién abierta.
func (s *SQLiteTradeLog) SavePaperTrade(ctx context.Context, t domain.PaperTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_trades
			(id, condition_id, question, outcome, token_id,
			 entry_price, entry_time, size, cost, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ConditionID, t.Question, t.Outcome, t.TokenID,
		t.EntryPrice, t.EntryTime.UTC(), t.Size, t.Cost, string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePaperTrade: %w", err)
	}
	return nil
}

// UpdatePaperTradeClose registra el cierre de una posición existente.
func (s *SQLiteTradeLog) UpdatePaperTradeClose(ctx context.Context, t domain.PaperTrade) error {
	var exitTime any
	if t.ExitTime != nil {
		exitTime = t.ExitTime.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE paper_trades
		SET exit_price = ?, exit_time = ?, pnl = ?, status = ?, close_reason = ?
		WHERE id = ?`,
		t.ExitPrice, exitTime, t.PnL, string(t.Status), t.CloseReason, t.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePaperTradeClose: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdatePaperTradeClose: trade %s not found", t.ID)
	}
	return nil
}

// SaveSession persiste el resumen de un mercado liquidado.
func (s *SQLiteTradeLog) SaveSession(ctx context.Context, market domain.Market, outcome string, m domain.PaperMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
			(condition_id, question, outcome, settled_at,
			 trades, wins, losses, total_pnl, win_rate, capital)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		market.ConditionID, market.Question, outcome, time.Now().UTC(),
		m.ClosedTrades, m.Wins, m.Losses, m.TotalPnL, m.WinRate, m.Capital,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSession: %w", err)
	}
	return nil
}

// RecentSessions devuelve los últimos resúmenes de settlement, el más
// reciente primero.
func (s *SQLiteTradeLog) RecentSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, question, outcome, settled_at,
		       trades, wins, losses, total_pnl, win_rate, capital
		FROM sessions
		ORDER BY settled_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentSessions: query: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(
			&r.ConditionID, &r.Question, &r.Outcome, &r.SettledAt,
			&r.Trades, &r.Wins, &r.Losses, &r.TotalPnL, &r.WinRate, &r.Capital,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentSessions: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionRow es una fila de la tabla sessions.
type SessionRow struct {
	ConditionID string
	Question    string
	Outcome     string
	SettledAt   time.Time
	Trades      int
	Wins        int
	Losses      int
	TotalPnL    float64
	WinRate     float64
	Capital     float64
}

func (s *SQLiteTradeLog) Close() error {
	return s.db.Close()
}

// pruneOld borra trades y sesiones fuera de la ventana de retención.
// Best-effort: un fallo aquí no impide arrancar.
func (s *SQLiteTradeLog) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx, `DELETE FROM paper_trades WHERE entry_time < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM sessions WHERE settled_at < ?`, cutoff)
}
