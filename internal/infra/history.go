package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS force_stop_attempts (
	attempt_id  TEXT PRIMARY KEY,
	package     TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	attempted   INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS accept_decisions (
	attempt_id TEXT PRIMARY KEY,
	detector   TEXT NOT NULL,
	package    TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_force_stop_started ON force_stop_attempts(started_at);
CREATE INDEX IF NOT EXISTS idx_accept_at ON accept_decisions(at);
`

// HistoryStore persists flow outcomes in SQLite. With a key the file is
// SQLCipher encrypted; without one it is plaintext.
type HistoryStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

var _ domain.OutcomeStore = (*HistoryStore)(nil)

// NewHistoryStore opens or creates the database. Timestamps are stored
// as unix milliseconds.
func NewHistoryStore(path string, key []byte, logger *zap.Logger) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := path
	if len(key) > 0 {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096",
			path, hex.EncodeToString(key))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &HistoryStore{
		db:     db,
		path:   path,
		logger: logger.With(zap.String("component", "history")),
	}, nil
}

// RecordForceStop stores one force-stop attempt.
func (h *HistoryStore) RecordForceStop(ctx context.Context, rec domain.ForceStopRecord) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO force_stop_attempts
			(attempt_id, package, label, attempted, success, reason, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AttemptID, rec.Package, rec.Label,
		boolInt(rec.Attempted), boolInt(rec.Success), rec.Reason,
		rec.StartedAt.UnixMilli(), rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("record force stop: %w", err)
	}
	return nil
}

// RecordAccept stores one auto-accept decision.
func (h *HistoryStore) RecordAccept(ctx context.Context, rec domain.AcceptRecord) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accept_decisions
			(attempt_id, detector, package, action, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AttemptID, rec.Detector, rec.Package,
		rec.Action.String(), rec.Reason, rec.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record accept decision: %w", err)
	}
	return nil
}

// RecentOutcomes returns the newest outcomes across both flows, most
// recent first.
func (h *HistoryStore) RecentOutcomes(ctx context.Context, limit int) ([]domain.OutcomeRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT attempt_id, 'force_stop' AS flow, package, success, reason, started_at AS at
		FROM force_stop_attempts
		UNION ALL
		SELECT attempt_id, detector AS flow, package,
			CASE WHEN action = 'performed' THEN 1 ELSE 0 END, reason, at
		FROM accept_decisions
		ORDER BY at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.OutcomeRow
	for rows.Next() {
		var r domain.OutcomeRow
		var success int
		var atMilli int64
		if err := rows.Scan(&r.AttemptID, &r.Flow, &r.Package, &success, &r.Reason, &atMilli); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		r.Success = success != 0
		r.At = time.UnixMilli(atMilli)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// Close releases the database connection.
func (h *HistoryStore) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
