package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportlog/internal"
)

// PGStore keeps analyses in PostgreSQL, for deployments where several analysts share
// one history.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ AnalysisStore = (*PGStore)(nil)

const pgSchema = `
CREATE TABLE IF NOT EXISTS analyses (
  id BIGSERIAL PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  source_name VARCHAR(255) NOT NULL,
  total_records INTEGER NOT NULL,
  distinct_technicians INTEGER NOT NULL,
  distinct_clients INTEGER NOT NULL,
  distinct_orders INTEGER NOT NULL,
  categories JSONB,
  versions JSONB,
  username VARCHAR(100) NOT NULL DEFAULT 'admin',
  notes TEXT,
  email_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);

CREATE TABLE IF NOT EXISTS records (
  id BIGSERIAL PRIMARY KEY,
  analysis_id BIGINT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  date VARCHAR(10) NOT NULL,
  service_order_id VARCHAR(20) NOT NULL,
  client VARCHAR(255) NOT NULL,
  technician VARCHAR(100) NOT NULL,
  category VARCHAR(50) NOT NULL,
  version VARCHAR(20),
  detail TEXT,
  raw_support VARCHAR(255),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_records_analysis ON records(analysis_id, position);
CREATE INDEX IF NOT EXISTS idx_records_technician ON records(technician);
`

// ConnectPostgres opens a pool, verifies it and applies the schema.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("missing DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGStore) SaveBatch(ctx context.Context, analysis internal.Analysis, records []internal.AttendanceRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

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

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO analyses (created_at, source_name, total_records, distinct_technicians, distinct_clients,
		                       distinct_orders, categories, versions, username, notes, email_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		createdAt, analysis.SourceName, analysis.TotalRecords, analysis.DistinctTechnicians, analysis.DistinctClients,
		analysis.DistinctOrders, categoriesJSON, versionsJSON, user, analysis.Notes, analysis.EmailID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save analysis: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for i, r := range records {
		rows = append(rows, []any{id, i, r.Date, r.ServiceOrderID, r.Client, r.Technician, string(r.Category), r.Version, r.Detail, r.RawSupport})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"records"},
		[]string{"analysis_id", "position", "date", "service_order_id", "client", "technician", "category", "version", "detail", "raw_support"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const pgAnalysisColumns = `id, created_at, source_name, total_records, distinct_technicians, distinct_clients,
       distinct_orders, categories, versions, username, notes, email_id`

func (s *PGStore) ListAnalyses(ctx context.Context, limit int) ([]internal.Analysis, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgAnalysisColumns+` FROM analyses ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []internal.Analysis
	for rows.Next() {
		a, err := scanPGAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) GetAnalysis(ctx context.Context, id int64) (internal.Analysis, error) {
	a, err := scanPGAnalysis(s.pool.QueryRow(ctx, `SELECT `+pgAnalysisColumns+` FROM analyses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return internal.Analysis{}, fmt.Errorf("analysis %d: %w", id, ErrNotFound)
	}
	return a, err
}

func scanPGAnalysis(row pgx.Row) (internal.Analysis, error) {
	var a internal.Analysis
	var categoriesJSON, versionsJSON []byte
	if err := row.Scan(
		&a.ID, &a.CreatedAt, &a.SourceName, &a.TotalRecords, &a.DistinctTechnicians, &a.DistinctClients,
		&a.DistinctOrders, &categoriesJSON, &versionsJSON, &a.User, &a.Notes, &a.EmailID,
	); err != nil {
		return internal.Analysis{}, err
	}
	a.Categories = map[internal.Category]int{}
	a.Versions = map[string]int{}
	if len(categoriesJSON) > 0 {
		_ = json.Unmarshal(categoriesJSON, &a.Categories)
	}
	if len(versionsJSON) > 0 {
		_ = json.Unmarshal(versionsJSON, &a.Versions)
	}
	return a, nil
}

const pgRecordColumns = `date, service_order_id, client, technician, category,
       COALESCE(version, ''), COALESCE(detail, ''), COALESCE(raw_support, '')`

func (s *PGStore) RecordsByAnalysis(ctx context.Context, analysisID int64) ([]internal.AttendanceRecord, error) {
	return s.queryRecords(ctx, `SELECT `+pgRecordColumns+` FROM records WHERE analysis_id = $1 ORDER BY position ASC`, analysisID)
}

func (s *PGStore) RecordsByTechnician(ctx context.Context, technician string, limit int) ([]internal.AttendanceRecord, error) {
	return s.queryRecords(ctx, `SELECT `+pgRecordColumns+` FROM records WHERE technician = $1 ORDER BY created_at DESC, position ASC LIMIT $2`, technician, limit)
}

func (s *PGStore) RecordsByClient(ctx context.Context, client string, limit int) ([]internal.AttendanceRecord, error) {
	return s.queryRecords(ctx, `SELECT `+pgRecordColumns+` FROM records WHERE client ILIKE '%' || $1 || '%' ORDER BY created_at DESC, position ASC LIMIT $2`, client, limit)
}

func (s *PGStore) queryRecords(ctx context.Context, query string, args ...any) ([]internal.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []internal.AttendanceRecord
	for rows.Next() {
		var r internal.AttendanceRecord
		var category string
		if err := rows.Scan(&r.Date, &r.ServiceOrderID, &r.Client, &r.Technician, &category, &r.Version, &r.Detail, &r.RawSupport); err != nil {
			return nil, err
		}
		r.Category = internal.Category(category)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateNotes(ctx context.Context, id int64, notes string) error {
	if _, err := s.GetAnalysis(ctx, id); err != nil {
		return err
	}
	if notes == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE analyses SET notes = $1 WHERE id = $2`, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteAnalysis(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("analysis %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PGStore) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge analyses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) Stats(ctx context.Context) (internal.GlobalStats, error) {
	var st internal.GlobalStats
	err := s.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM analyses),
  (SELECT COUNT(*) FROM records),
  (SELECT COUNT(DISTINCT technician) FROM records),
  (SELECT COUNT(DISTINCT client) FROM records)
`).Scan(&st.TotalAnalyses, &st.TotalRecords, &st.DistinctTechnicians, &st.DistinctClients)
	if err != nil {
		return internal.GlobalStats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return st, nil
}
