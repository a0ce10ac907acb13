package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"ismparse/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Batch workers share one handle; SQLite takes one writer at a time.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
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
CREATE TABLE IF NOT EXISTS reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  monthYear TEXT NOT NULL,
  reportType TEXT NOT NULL,
  docKey TEXT NOT NULL DEFAULT '',
  docRef TEXT,
  runId TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(monthYear, reportType, docKey)
);

CREATE TABLE IF NOT EXISTS report_indices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reportId INTEGER NOT NULL,
  indexName TEXT NOT NULL,
  value REAL,
  direction TEXT NOT NULL,
  UNIQUE(reportId, indexName),
  FOREIGN KEY(reportId) REFERENCES reports(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS report_industries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reportId INTEGER NOT NULL,
  indexName TEXT NOT NULL,
  category TEXT NOT NULL,
  industry TEXT NOT NULL,
  position INTEGER NOT NULL,
  FOREIGN KEY(reportId) REFERENCES reports(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_report_industries_report ON report_industries(reportId, indexName);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  docRef TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// reportKey separates reports whose month could not be read; otherwise every
// such document would overwrite the same row.
func reportKey(runID, docRef string, rec internal.FlatRecord) string {
	if rec.MonthYear != internal.UnknownMonthYear {
		return ""
	}
	if docRef != "" {
		return docRef
	}
	return runID
}

// SaveReport replaces the stored rows for (month, type) with rec. Reports
// with an unknown month are kept per document.
func (d *DB) SaveReport(ctx context.Context, runID, docRef string, rec internal.FlatRecord) error {
	key := reportKey(runID, docRef, rec)
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO reports (monthYear, reportType, docKey, docRef, runId) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(monthYear, reportType, docKey) DO UPDATE SET
  docRef = excluded.docRef,
  runId = excluded.runId,
  updatedAt = CURRENT_TIMESTAMP
`, rec.MonthYear, rec.ReportType, key, docRef, runID); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}

	var reportID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM reports WHERE monthYear = ? AND reportType = ? AND docKey = ?`, rec.MonthYear, rec.ReportType, key).Scan(&reportID); err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_indices WHERE reportId = ?`, reportID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_industries WHERE reportId = ?`, reportID); err != nil {
		return err
	}

	indexStmt, err := tx.PrepareContext(ctx, `INSERT INTO report_indices (reportId, indexName, value, direction) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer indexStmt.Close()
	for _, idx := range rec.Indices {
		if _, err := indexStmt.ExecContext(ctx, reportID, idx.IndexName, idx.Value, idx.Direction); err != nil {
			return fmt.Errorf("insert index %s: %w", idx.IndexName, err)
		}
	}

	industryStmt, err := tx.PrepareContext(ctx, `INSERT INTO report_industries (reportId, indexName, category, industry, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer industryStmt.Close()
	for i, row := range rec.Industries {
		if _, err := industryStmt.ExecContext(ctx, reportID, row.IndexName, row.Category, row.Industry, i); err != nil {
			return fmt.Errorf("insert industry %s: %w", row.Industry, err)
		}
	}

	return tx.Commit()
}

// LoadReport returns nil when nothing is stored for (month, type). For the
// unknown month the most recently inserted report wins.
func (d *DB) LoadReport(ctx context.Context, monthYear, reportType string) (*internal.FlatRecord, error) {
	var reportID int64
	err := d.conn.QueryRowContext(ctx, `SELECT id FROM reports WHERE monthYear = ? AND reportType = ? ORDER BY id DESC LIMIT 1`, monthYear, reportType).Scan(&reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &internal.FlatRecord{MonthYear: monthYear, ReportType: reportType}

	rows, err := d.conn.QueryContext(ctx, `SELECT indexName, value, direction FROM report_indices WHERE reportId = ? ORDER BY indexName`, reportID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var idx internal.FlatIndex
		if err := rows.Scan(&idx.IndexName, &idx.Value, &idx.Direction); err != nil {
			_ = rows.Close()
			return nil, err
		}
		rec.Indices = append(rec.Indices, idx)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = d.conn.QueryContext(ctx, `SELECT indexName, category, industry FROM report_industries WHERE reportId = ? ORDER BY position`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var row internal.FlatIndustry
		if err := rows.Scan(&row.IndexName, &row.Category, &row.Industry); err != nil {
			return nil, err
		}
		rec.Industries = append(rec.Industries, row)
	}
	return rec, rows.Err()
}

func (d *DB) InsertRun(ctx context.Context, runID, docRef string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.ExecContext(ctx, `INSERT INTO runs (runId, docRef, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, runID, docRef, string(timingsJSON), string(countsJSON))
	return err
}

type RunRow struct {
	RunID     string
	DocRef    string
	Counts    map[string]int
	CreatedAt string
}

func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx, `SELECT runId, COALESCE(docRef, ''), countsJson, createdAt FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var countsJSON string
		if err := rows.Scan(&row.RunID, &row.DocRef, &countsJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}
