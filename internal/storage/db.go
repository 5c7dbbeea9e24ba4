package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"supportlog/internal"
)

// DB is the local sqlite store: analyses and their records, the mail staging area,
// processing runs and the synced technician catalog.
type DB struct {
	conn *sql.DB
}

var _ AnalysisStore = (*DB)(nil)

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
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS analyses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  createdAt TEXT NOT NULL,
  sourceName TEXT NOT NULL,
  totalRecords INTEGER NOT NULL,
  distinctTechnicians INTEGER NOT NULL,
  distinctClients INTEGER NOT NULL,
  distinctOrders INTEGER NOT NULL,
  categoriesJson TEXT,
  versionsJson TEXT,
  username TEXT NOT NULL DEFAULT 'admin',
  notes TEXT,
  emailId INTEGER,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_analyses_createdAt ON analyses(createdAt);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  analysisId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  date TEXT NOT NULL,
  serviceOrderId TEXT NOT NULL,
  client TEXT NOT NULL,
  technician TEXT NOT NULL,
  category TEXT NOT NULL,
  version TEXT,
  detail TEXT,
  rawSupport TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(analysisId) REFERENCES analyses(id)
);
CREATE INDEX IF NOT EXISTS idx_records_analysis ON records(analysisId, position);
CREATE INDEX IF NOT EXISTS idx_records_technician ON records(technician);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  analysisId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS catalog_rules (
  position INTEGER PRIMARY KEY,
  key TEXT NOT NULL,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_official (
  position INTEGER PRIMARY KEY,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SaveBatch(ctx context.Context, analysis internal.Analysis, records []internal.AttendanceRecord) (int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := analysis.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	user := analysis.User
	if user == "" {
		user = "admin"
	}
	categoriesJSON, _ := json.Marshal(analysis.Categories)
	versionsJSON, _ := json.Marshal(analysis.Versions)

	result, err := tx.ExecContext(ctx, `
INSERT INTO analyses (createdAt, sourceName, totalRecords, distinctTechnicians, distinctClients, distinctOrders,
                      categoriesJson, versionsJson, username, notes, emailId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, formatTime(createdAt), analysis.SourceName, analysis.TotalRecords, analysis.DistinctTechnicians,
		analysis.DistinctClients, analysis.DistinctOrders, string(categoriesJSON), string(versionsJSON),
		user, analysis.Notes, analysis.EmailID)
	if err != nil {
		return 0, fmt.Errorf("save analysis: %w", err)
	}
	analysisID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO records (analysisId, position, date, serviceOrderId, client, technician, category, version, detail, rawSupport)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			analysisID, i, r.Date, r.ServiceOrderID, r.Client, r.Technician, string(r.Category), r.Version, r.Detail, r.RawSupport,
		); err != nil {
			return 0, fmt.Errorf("save record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return analysisID, nil
}

const analysisColumns = `id, createdAt, sourceName, totalRecords, distinctTechnicians, distinctClients, distinctOrders,
       categoriesJson, versionsJson, username, notes, emailId`

func (d *DB) ListAnalyses(ctx context.Context, limit int) ([]internal.Analysis, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+analysisColumns+` FROM analyses ORDER BY createdAt DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) ListAnalysesByEmail(ctx context.Context, emailID int) ([]internal.Analysis, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE emailId = ? ORDER BY id ASC`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) GetAnalysis(ctx context.Context, id int64) (internal.Analysis, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Analysis{}, fmt.Errorf("analysis %d: %w", id, ErrNotFound)
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (internal.Analysis, error) {
	var a internal.Analysis
	var createdAt string
	var categoriesJSON, versionsJSON sql.NullString
	if err := row.Scan(
		&a.ID, &createdAt, &a.SourceName, &a.TotalRecords, &a.DistinctTechnicians, &a.DistinctClients, &a.DistinctOrders,
		&categoriesJSON, &versionsJSON, &a.User, &a.Notes, &a.EmailID,
	); err != nil {
		return internal.Analysis{}, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.Categories = map[internal.Category]int{}
	a.Versions = map[string]int{}
	if categoriesJSON.Valid {
		_ = json.Unmarshal([]byte(categoriesJSON.String), &a.Categories)
	}
	if versionsJSON.Valid {
		_ = json.Unmarshal([]byte(versionsJSON.String), &a.Versions)
	}
	return a, nil
}

const recordColumns = `date, serviceOrderId, client, technician, category, version, detail, rawSupport`

func (d *DB) RecordsByAnalysis(ctx context.Context, analysisID int64) ([]internal.AttendanceRecord, error) {
	return d.queryRecords(ctx, `SELECT `+recordColumns+` FROM records WHERE analysisId = ? ORDER BY position ASC`, analysisID)
}

func (d *DB) RecordsByTechnician(ctx context.Context, technician string, limit int) ([]internal.AttendanceRecord, error) {
	return d.queryRecords(ctx, `SELECT `+recordColumns+` FROM records WHERE technician = ? ORDER BY analysisId DESC, position ASC LIMIT ?`, technician, limit)
}

func (d *DB) RecordsByClient(ctx context.Context, client string, limit int) ([]internal.AttendanceRecord, error) {
	return d.queryRecords(ctx, `SELECT `+recordColumns+` FROM records WHERE lower(client) LIKE '%' || lower(?) || '%' ORDER BY analysisId DESC, position ASC LIMIT ?`, client, limit)
}

func (d *DB) queryRecords(ctx context.Context, query string, args ...any) ([]internal.AttendanceRecord, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.AttendanceRecord
	for rows.Next() {
		var r internal.AttendanceRecord
		var category string
		var version, detail, rawSupport sql.NullString
		if err := rows.Scan(&r.Date, &r.ServiceOrderID, &r.Client, &r.Technician, &category, &version, &detail, &rawSupport); err != nil {
			return nil, err
		}
		r.Category = internal.Category(category)
		r.Version = version.String
		r.Detail = detail.String
		r.RawSupport = rawSupport.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateNotes sets the free-text notes of an analysis. Empty notes leave it unchanged.
func (d *DB) UpdateNotes(ctx context.Context, id int64, notes string) error {
	if _, err := d.GetAnalysis(ctx, id); err != nil {
		return err
	}
	if notes == "" {
		return nil
	}
	_, err := d.conn.ExecContext(ctx, `UPDATE analyses SET notes = ? WHERE id = ?`, notes, id)
	return err
}

func (d *DB) DeleteAnalysis(ctx context.Context, id int64) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE analysisId = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (d *DB) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := formatTime(time.Now().AddDate(0, 0, -days))

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE analysisId IN (SELECT id FROM analyses WHERE createdAt < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE createdAt < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *DB) Stats(ctx context.Context) (internal.GlobalStats, error) {
	var s internal.GlobalStats
	err := d.conn.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM analyses),
  (SELECT COUNT(*) FROM records),
  (SELECT COUNT(DISTINCT technician) FROM records),
  (SELECT COUNT(DISTINCT client) FROM records)
`).Scan(&s.TotalAnalyses, &s.TotalRecords, &s.DistinctTechnicians, &s.DistinctClients)
	return s, err
}

func (d *DB) InsertRun(traceID string, analysisID int64, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	var aid *int64
	if analysisID > 0 {
		aid = &analysisID
	}
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, analysisId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, aid, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// timeLayout is fixed-width so createdAt sorts and compares lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
