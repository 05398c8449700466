// Package storage keeps the crawl ledger: one row per run and one row per
// processed item. It exists for operator diagnostics only; the crawl itself
// never depends on it.
package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"ppls/internal"
)

type DB struct {
	conn *sql.DB
}

type RunRow struct {
	ID         int64
	TraceID    string
	InputPath  string
	OutputPath string
	StartedAt  string
	FinishedAt *string
	Processed  int
	Added      int
	Skipped    int
}

type SkipCount struct {
	Kind   internal.SkipKind
	Reason string
	Count  int
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  inputPath TEXT NOT NULL,
  outputPath TEXT NOT NULL,
  startedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  finishedAt TEXT,
  processed INTEGER NOT NULL DEFAULT 0,
  added INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  identifier TEXT NOT NULL,
  title TEXT,
  link TEXT,
  status TEXT NOT NULL,
  skipKind TEXT,
  reason TEXT,
  detail TEXT,
  docBytes INTEGER NOT NULL DEFAULT 0,
  textChars INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_items_run ON items(runId);
CREATE INDEX IF NOT EXISTS idx_items_status ON items(runId, status);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(traceID, inputPath, outputPath string) (int64, error) {
	res, err := d.conn.Exec(`
INSERT INTO runs (traceId, inputPath, outputPath) VALUES (?, ?, ?)
`, traceID, inputPath, outputPath)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) FinishRun(runID int64, processed, added, skipped int) error {
	_, err := d.conn.Exec(`
UPDATE runs SET finishedAt = CURRENT_TIMESTAMP, processed = ?, added = ?, skipped = ?
WHERE id = ?
`, processed, added, skipped, runID)
	return err
}

func (d *DB) InsertItem(runID int64, o internal.ItemOutcome) error {
	_, err := d.conn.Exec(`
INSERT INTO items (runId, position, identifier, title, link, status, skipKind, reason, detail, docBytes, textChars)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, runID, o.Position, o.Identifier, o.Title, o.Link, string(o.Status), string(o.SkipKind), o.Reason, o.Detail, o.DocBytes, o.TextChars)
	return err
}

func (d *DB) LastRun() (*RunRow, error) {
	return d.runBy(`SELECT id, traceId, inputPath, outputPath, startedAt, finishedAt, processed, added, skipped
FROM runs ORDER BY id DESC LIMIT 1`)
}

func (d *DB) RunByID(id int64) (*RunRow, error) {
	return d.runBy(`SELECT id, traceId, inputPath, outputPath, startedAt, finishedAt, processed, added, skipped
FROM runs WHERE id = `+"?", id)
}

func (d *DB) runBy(query string, args ...any) (*RunRow, error) {
	var row RunRow
	err := d.conn.QueryRow(query, args...).Scan(
		&row.ID, &row.TraceID, &row.InputPath, &row.OutputPath,
		&row.StartedAt, &row.FinishedAt, &row.Processed, &row.Added, &row.Skipped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ItemsByRun(runID int64) ([]internal.ItemOutcome, error) {
	rows, err := d.conn.Query(`
SELECT position, identifier, title, link, status, skipKind, reason, detail, docBytes, textChars
FROM items WHERE runId = ? ORDER BY position ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ItemOutcome
	for rows.Next() {
		var o internal.ItemOutcome
		var status, kind string
		if err := rows.Scan(&o.Position, &o.Identifier, &o.Title, &o.Link, &status, &kind, &o.Reason, &o.Detail, &o.DocBytes, &o.TextChars); err != nil {
			return nil, err
		}
		o.Status = internal.ItemStatus(status)
		o.SkipKind = internal.SkipKind(kind)
		out = append(out, o)
	}
	return out, rows.Err()
}

// SkipBreakdown aggregates skipped items by kind and reason for a run.
func (d *DB) SkipBreakdown(runID int64) ([]SkipCount, error) {
	rows, err := d.conn.Query(`
SELECT skipKind, reason, COUNT(*) FROM items
WHERE runId = ? AND status = ?
GROUP BY skipKind, reason
ORDER BY COUNT(*) DESC, skipKind, reason
`, runID, string(internal.StatusSkipped))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SkipCount
	for rows.Next() {
		var sc SkipCount
		var kind string
		if err := rows.Scan(&kind, &sc.Reason, &sc.Count); err != nil {
			return nil, err
		}
		sc.Kind = internal.SkipKind(kind)
		out = append(out, sc)
	}
	return out, rows.Err()
}
