package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"supportlog/internal/catalog"
	"supportlog/internal/config"
	"supportlog/internal/logging"
	"supportlog/internal/pipeline"
	"supportlog/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "supportlog",
	Short:         "Support log attendance analyzer",
	Long:          "supportlog turns technical-support logs into attendance records: one row per technician per service order, with client, category and software version.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what most commands need. Commands open it on demand so that
// pure ones (validate, parse) work without a database.
type app struct {
	cfg        config.Config
	log        *zap.Logger
	db         *storage.DB
	store      storage.AnalysisStore
	closeStore func()
	parser     *pipeline.Parser
	processor  *pipeline.ProcessingService
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, closeStore, err := storage.OpenAnalysisStore(ctx, cfg.StoreDriver, db, cfg.DatabaseURL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	cat, source, err := catalog.Resolve(ctx, cfg, db)
	if err != nil {
		closeStore()
		_ = db.Close()
		return nil, fmt.Errorf("load technician catalog: %w", err)
	}
	log.Debug("catalog in effect", zap.String("source", source), zap.Int("rules", len(cat.Rules)))

	parser := pipeline.NewParser(cat)
	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		store:      store,
		closeStore: closeStore,
		parser:     parser,
		processor:  pipeline.NewProcessingService(db, store, parser, cfg, log),
	}, nil
}

func (a *app) Close() {
	a.closeStore()
	_ = a.db.Close()
	_ = a.log.Sync()
}

// offlineParser resolves the catalog without touching the database.
func offlineParser() (*pipeline.Parser, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cat, _, err := catalog.Resolve(context.Background(), cfg, nil)
	if err != nil {
		return nil, err
	}
	return pipeline.NewParser(cat), nil
}
