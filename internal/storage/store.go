package storage

import (
	"context"
	"errors"
	"fmt"

	"supportlog/internal"
)

var ErrNotFound = errors.New("not found")

// AnalysisStore persists parsed batches: one analysis row with its aggregate
// metadata plus the ordered records it produced.
type AnalysisStore interface {
	SaveBatch(ctx context.Context, analysis internal.Analysis, records []internal.AttendanceRecord) (int64, error)
	ListAnalyses(ctx context.Context, limit int) ([]internal.Analysis, error)
	GetAnalysis(ctx context.Context, id int64) (internal.Analysis, error)
	RecordsByAnalysis(ctx context.Context, analysisID int64) ([]internal.AttendanceRecord, error)
	RecordsByTechnician(ctx context.Context, technician string, limit int) ([]internal.AttendanceRecord, error)
	RecordsByClient(ctx context.Context, client string, limit int) ([]internal.AttendanceRecord, error)
	UpdateNotes(ctx context.Context, id int64, notes string) error
	DeleteAnalysis(ctx context.Context, id int64) error
	PurgeOlderThan(ctx context.Context, days int) (int, error)
	Stats(ctx context.Context) (internal.GlobalStats, error)
}

// OpenAnalysisStore returns the store selected by driver. For "sqlite" the local db is
// reused; "postgres" connects to databaseURL.
func OpenAnalysisStore(ctx context.Context, driver string, local *DB, databaseURL string) (AnalysisStore, func(), error) {
	switch driver {
	case "", "sqlite":
		return local, func() {}, nil
	case "postgres", "postgresql":
		pg, err := ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
