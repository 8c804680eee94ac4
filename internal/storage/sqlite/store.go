package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dyike/CortexTrade/models"
)

type Store struct {
	db *sql.DB
}

// DecisionWithMeta is a stored decision plus its row cursor.
type DecisionWithMeta struct {
	models.Decision
	RowID int64 `json:"row_id"`
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    cycle_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    price REAL,
    action TEXT NOT NULL,
    phs REAL NOT NULL,
    tx_hash TEXT,
    buy_votes INTEGER NOT NULL,
    sell_votes INTEGER NOT NULL,
    hold_votes INTEGER NOT NULL,
    decided_at TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS votes (
    decision_id TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    agent TEXT NOT NULL,
    action TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    tx_hash TEXT,
    PRIMARY KEY(decision_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol, decided_at);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Record stores a decision and its votes in one transaction.
func (s *Store) Record(ctx context.Context, d models.Decision) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("decision id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var price sql.NullFloat64
	if d.Price != nil {
		price = sql.NullFloat64{Float64: *d.Price, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO decisions (id, cycle_id, symbol, price, action, phs, tx_hash, buy_votes, sell_votes, hold_votes, decided_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, d.ID, d.CycleID, d.Symbol, price, string(d.Action), d.PHS, nullString(d.TxHash),
		d.Votes.Buy, d.Votes.Sell, d.Votes.Hold, d.DecidedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	for i, v := range d.Explanations {
		_, err = tx.ExecContext(ctx, `
INSERT INTO votes (decision_id, seq, agent, action, explanation, tx_hash)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(decision_id, seq) DO NOTHING
`, d.ID, i+1, v.Agent, string(v.Action), v.Explanation, nullString(v.TxHash))
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision: %w", err)
	}
	return nil
}

// ListDecisions 按 rowid 倒序分页列出决策, symbol 为空时不过滤
func (s *Store) ListDecisions(ctx context.Context, symbol string, cursor int64, limit int) ([]DecisionWithMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, cycle_id, symbol, price, action, phs, tx_hash, buy_votes, sell_votes, hold_votes, decided_at
FROM decisions
WHERE (? = 0 OR rowid < ?) AND (? = '' OR symbol = ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionWithMeta
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions rows: %w", err)
	}

	for i := range out {
		votes, err := s.listVotes(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Explanations = votes
	}
	return out, nil
}

func (s *Store) GetDecision(ctx context.Context, id string) (*DecisionWithMeta, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("decision id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT rowid, id, cycle_id, symbol, price, action, phs, tx_hash, buy_votes, sell_votes, hold_votes, decided_at
FROM decisions
WHERE id = ?
LIMIT 1
`, id)
	rec, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	votes, err := s.listVotes(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Explanations = votes
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(row scanner) (DecisionWithMeta, error) {
	var (
		rec       DecisionWithMeta
		price     sql.NullFloat64
		txHash    sql.NullString
		action    string
		decidedAt string
	)
	err := row.Scan(&rec.RowID, &rec.ID, &rec.CycleID, &rec.Symbol, &price, &action, &rec.PHS, &txHash,
		&rec.Votes.Buy, &rec.Votes.Sell, &rec.Votes.Hold, &decidedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan decision: %w", err)
	}
	rec.Action = models.Action(action)
	if price.Valid {
		p := price.Float64
		rec.Price = &p
	}
	rec.TxHash = txHash.String
	if ts, err := time.Parse(time.RFC3339Nano, decidedAt); err == nil {
		rec.DecidedAt = ts
	}
	return rec, nil
}

func (s *Store) listVotes(ctx context.Context, decisionID string) ([]models.AgentVote, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT agent, action, explanation, tx_hash
FROM votes
WHERE decision_id = ?
ORDER BY seq ASC
`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []models.AgentVote
	for rows.Next() {
		var (
			v      models.AgentVote
			action string
			txHash sql.NullString
		)
		if err := rows.Scan(&v.Agent, &action, &v.Explanation, &txHash); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Action = models.Action(action)
		v.TxHash = txHash.String
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes rows: %w", err)
	}
	return votes, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
