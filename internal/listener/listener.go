// Package listener runs the unattended ingestion loops: polling a mailbox for
// emailed logs and watching an inbox directory for dropped files.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"supportlog/internal"
	"supportlog/internal/config"
	"supportlog/internal/connectors"
	gmailconnector "supportlog/internal/connectors/gmail"
	imapconnector "supportlog/internal/connectors/imap"
	"supportlog/internal/logging"
	"supportlog/internal/pipeline"
	"supportlog/internal/storage"
)

type Service struct {
	db        *storage.DB
	processor *pipeline.ProcessingService
	cfg       config.Config
	log       *zap.Logger

	// connector overrides the provider lookup when set.
	connector connectors.MailConnector
}

func NewService(db *storage.DB, processor *pipeline.ProcessingService, cfg config.Config, log *zap.Logger) *Service {
	log = logging.OrNop(log)
	return &Service{db: db, processor: processor, cfg: cfg, log: log}
}

// Run polls until ctx is done. A failed cycle is logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(max(s.cfg.MailListenerIntervalSec, 1)) * time.Second
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Analyses  int
	Exported  int
}

// RunCycle fetches new mail, processes every pending email and, when enabled,
// exports the records of each processed email to OUTPUT_DIR/listener.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}

	results, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return CycleResult{}, err
	}

	cycle := CycleResult{Fetched: fetchResult.Fetched, Stored: fetchResult.Stored, Processed: len(results)}
	for _, r := range results {
		cycle.Analyses += len(r.Documents)
	}

	if s.cfg.MailListenerAutoExport {
		exported, err := s.exportProcessed(results)
		cycle.Exported = exported
		if err != nil {
			return cycle, err
		}
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", cycle.Fetched),
		zap.Int("stored", cycle.Stored),
		zap.Int("processed", cycle.Processed),
		zap.Int("analyses", cycle.Analyses),
		zap.Int("exported", cycle.Exported),
	)
	return cycle, nil
}

func (s *Service) exportProcessed(results []pipeline.EmailResult) (int, error) {
	exported := 0
	for _, r := range results {
		if r.Status != pipeline.EmailProcessed {
			continue
		}
		var records []internal.AttendanceRecord
		for _, doc := range r.Documents {
			records = append(records, doc.Records...)
		}
		if len(records) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", r.Email.ID, sanitizeMessageID(r.Email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportFile(outputPath, records); err != nil {
			return exported, err
		}
		if err := s.db.UpdateEmailStatus(r.Email.ID, pipeline.EmailExported); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	if s.connector != nil {
		return s.connector, nil
	}
	return NewConnector(ctx, provider, s.cfg)
}

// NewConnector builds the mail connector for provider ("gmail" or "imap").
func NewConnector(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := strings.Trim(repl.Replace(input), "_")
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
