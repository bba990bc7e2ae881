package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harun/taskgate/pkg/params"
)

// Recorder receives every decided request
type Recorder interface {
	Record(ctx context.Context, req Request) error
}

// Ledger is an append-only SQLite history of approval decisions
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger database at path
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			params_json TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			created_at INTEGER NOT NULL,
			decided_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_approvals_tool ON approvals(tool_name);
		CREATE INDEX IF NOT EXISTS idx_approvals_decided ON approvals(decided_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record stores a decided request. Pending requests are refused.
func (l *Ledger) Record(ctx context.Context, req Request) error {
	if !req.Status.Terminal() {
		return fmt.Errorf("request %s is not decided", req.ID)
	}

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO approvals (id, tool_name, params_json, status, reason, created_at, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ToolName, string(paramsJSON), string(req.Status), req.Reason,
		req.CreatedAt.UnixMilli(), req.DecidedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record approval %s: %w", req.ID, err)
	}
	return nil
}

// Recent returns up to limit decisions, newest first. An empty tool matches all tools.
func (l *Ledger) Recent(ctx context.Context, tool string, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, tool_name, params_json, status, reason, created_at, decided_at
		FROM approvals`
	args := []interface{}{}
	if tool != "" {
		query += ` WHERE tool_name = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY decided_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var (
			req        Request
			paramsJSON string
			status     string
			reason     sql.NullString
			created    int64
			decided    int64
		)
		if err := rows.Scan(&req.ID, &req.ToolName, &paramsJSON, &status, &reason, &created, &decided); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}

		var p params.Value
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return nil, fmt.Errorf("failed to decode params for %s: %w", req.ID, err)
		}

		req.Params = p
		req.Status = Status(status)
		req.Reason = reason.String
		req.CreatedAt = time.UnixMilli(created)
		req.DecidedAt = time.UnixMilli(decided)
		out = append(out, req)
	}

	return out, rows.Err()
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}
