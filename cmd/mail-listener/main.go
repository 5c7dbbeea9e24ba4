package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"supportlog/internal/catalog"
	"supportlog/internal/config"
	"supportlog/internal/listener"
	"supportlog/internal/logging"
	"supportlog/internal/pipeline"
	"supportlog/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(run(ctx))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := storage.OpenAnalysisStore(ctx, cfg.StoreDriver, db, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeStore()

	cat, source, err := catalog.Resolve(ctx, cfg, db)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessingService(db, store, pipeline.NewParser(cat), cfg, log)
	svc := listener.NewService(db, processor, cfg, log)

	log.Info("mail listener started",
		zap.String("provider", cfg.MailListenerProvider),
		zap.String("label", cfg.MailListenerLabel),
		zap.String("catalog", source),
		zap.String("store", cfg.StoreDriver))
	return svc.Run(ctx)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
