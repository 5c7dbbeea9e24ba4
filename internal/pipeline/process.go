package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"supportlog/internal"
	"supportlog/internal/config"
	"supportlog/internal/logging"
	"supportlog/internal/storage"
)

// ErrNoRecords is returned for a document that validates but yields no records.
var ErrNoRecords = errors.New("no records extracted")

// Email statuses in the staging table.
const (
	EmailFetched   = "fetched"
	EmailProcessed = "processed"
	EmailSkipped   = "skipped"
	EmailFailed    = "failed"
	EmailExported  = "exported"
)

// ProcessingService validates, parses and persists support logs. Analyses go to
// store; the local db keeps the mail staging table and the run log.
type ProcessingService struct {
	db     *storage.DB
	store  storage.AnalysisStore
	parser *Parser
	cfg    config.Config
	log    *zap.Logger
}

func NewProcessingService(db *storage.DB, store storage.AnalysisStore, parser *Parser, cfg config.Config, log *zap.Logger) *ProcessingService {
	if store == nil && db != nil {
		store = db
	}
	log = logging.OrNop(log)
	return &ProcessingService{db: db, store: store, parser: parser, cfg: cfg, log: log}
}

type ProcessResult struct {
	AnalysisID int64
	Analysis   internal.Analysis
	Records    []internal.AttendanceRecord
}

func (s *ProcessingService) ProcessDocument(ctx context.Context, doc internal.LogDocument) (ProcessResult, error) {
	return s.processDocument(ctx, doc, nil)
}

func (s *ProcessingService) processDocument(ctx context.Context, doc internal.LogDocument, emailID *int) (ProcessResult, error) {
	start := time.Now()
	if err := ValidateErr(doc.Text); err != nil {
		return ProcessResult{}, fmt.Errorf("%s: %w", doc.Name, err)
	}
	records := s.parser.Parse(doc.Text)
	parsedAt := time.Now()
	if len(records) == 0 {
		return ProcessResult{}, fmt.Errorf("%s: %w", doc.Name, ErrNoRecords)
	}
	return s.persist(ctx, doc.Name, records, emailID, start, parsedAt)
}

func (s *ProcessingService) persist(ctx context.Context, name string, records []internal.AttendanceRecord, emailID *int, start, parsedAt time.Time) (ProcessResult, error) {
	analysis := Summarize(name, records, s.cfg.AnalysisUser)
	analysis.EmailID = emailID

	id, err := s.store.SaveBatch(ctx, analysis, records)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%s: %w", name, err)
	}
	analysis.ID = id

	traceID := uuid.NewString()
	if s.db != nil {
		timings := map[string]float64{
			"parseMs": float64(parsedAt.Sub(start).Milliseconds()),
			"totalMs": float64(time.Since(start).Milliseconds()),
		}
		counts := map[string]int{"records": len(records), "technicians": analysis.DistinctTechnicians}
		if err := s.db.InsertRun(traceID, id, timings, counts); err != nil {
			s.log.Warn("record run", zap.String("trace", traceID), zap.Error(err))
		}
	}

	s.log.Info("analysis saved",
		zap.String("trace", traceID),
		zap.String("source", name),
		zap.Int64("analysis", id),
		zap.Int("records", len(records)),
		zap.Int("technicians", analysis.DistinctTechnicians),
	)
	return ProcessResult{AnalysisID: id, Analysis: analysis, Records: records}, nil
}

// SaveRecords persists records that did not come from parsing, such as an
// edited spreadsheet brought back with ImportXLSX.
func (s *ProcessingService) SaveRecords(ctx context.Context, name string, records []internal.AttendanceRecord) (ProcessResult, error) {
	if len(records) == 0 {
		return ProcessResult{}, fmt.Errorf("%s: %w", name, ErrNoRecords)
	}
	now := time.Now()
	return s.persist(ctx, name, records, nil, now, now)
}

type FileResult struct {
	Path string
	ProcessResult
	Err error
}

// ProcessFiles loads and parses paths concurrently, bounded by PARSE_WORKERS, then
// saves the batches one by one in input order. A failing file does not stop the
// others; its error is reported in its FileResult.
func (s *ProcessingService) ProcessFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	type parsed struct {
		name    string
		records []internal.AttendanceRecord
		start   time.Time
		done    time.Time
		err     error
	}
	slots := make([]parsed, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.ParseWorkers, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			doc, err := LoadDocument(path)
			if err != nil {
				slots[i] = parsed{err: err}
				return nil
			}
			if err := ValidateErr(doc.Text); err != nil {
				slots[i] = parsed{err: fmt.Errorf("%s: %w", doc.Name, err)}
				return nil
			}
			records := s.parser.Parse(doc.Text)
			if len(records) == 0 {
				slots[i] = parsed{err: fmt.Errorf("%s: %w", doc.Name, ErrNoRecords)}
				return nil
			}
			slots[i] = parsed{name: doc.Name, records: records, start: start, done: time.Now()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]FileResult, len(paths))
	for i, path := range paths {
		results[i].Path = path
		if slots[i].err != nil {
			results[i].Err = slots[i].err
			s.log.Warn("file rejected", zap.String("path", path), zap.Error(slots[i].err))
			continue
		}
		res, err := s.persist(ctx, slots[i].name, slots[i].records, nil, slots[i].start, slots[i].done)
		results[i].ProcessResult = res
		results[i].Err = err
	}
	return results, nil
}

type EmailResult struct {
	Email     internal.EmailRow
	Documents []ProcessResult
	Status    string
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (EmailResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return EmailResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes up to limit fetched emails, optionally only those of
// one provider.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) ([]EmailResult, error) {
	pending, err := s.db.ListEmailsByStatus(EmailFetched, provider, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EmailResult, 0, len(pending))
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// ProcessEmail parses every log carried by a staged email. The email ends up
// processed when at least one log was saved, skipped when none was usable and
// failed when the raw message cannot be read.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (EmailResult, error) {
	result := EmailResult{Email: email}

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, EmailFailed)
		return result, err
	}
	docs, _, err := ExtractLogsFromEmailRaw(raw)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, EmailFailed)
		return result, err
	}

	emailID := email.ID
	for _, doc := range docs {
		res, err := s.processDocument(ctx, doc, &emailID)
		var verr *ValidationError
		switch {
		case err == nil:
			result.Documents = append(result.Documents, res)
		case errors.As(err, &verr), errors.Is(err, ErrNoRecords):
			s.log.Info("email document skipped", zap.Int("email", email.ID), zap.String("document", doc.Name), zap.String("reason", err.Error()))
		default:
			return result, err
		}
	}

	result.Status = EmailSkipped
	if len(result.Documents) > 0 {
		result.Status = EmailProcessed
	}
	if err := s.db.UpdateEmailStatus(email.ID, result.Status); err != nil {
		return result, err
	}
	result.Email.Status = result.Status
	return result, nil
}
