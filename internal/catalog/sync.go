package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"supportlog/internal"
	"supportlog/internal/config"
	"supportlog/internal/logging"
	"supportlog/internal/storage"
)

const (
	metaLastSync = "catalog.last_sync"
	metaVersion  = "catalog.version"
)

type SyncService struct {
	db     *storage.DB
	client *Client
	log    *zap.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, log *zap.Logger) *SyncService {
	log = logging.OrNop(log)
	return &SyncService{db: db, client: NewClient(cfg), log: log}
}

// Sync replaces the stored catalog with the remote one and returns the rule count.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	cat, version, err := s.client.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.ReplaceCatalog(ctx, cat); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata(metaLastSync, time.Now().UTC().Format(time.RFC3339))
	if version != "" {
		_ = s.db.SetMetadata(metaVersion, version)
	}
	s.log.Info("catalog synced", zap.Int("rules", len(cat.Rules)), zap.Int("official", len(cat.Official)), zap.String("version", version))
	return len(cat.Rules), nil
}

// Resolve picks the catalog in effect: the synced copy in db, then CATALOG_PATH, then
// the built-in default. db may be nil.
func Resolve(ctx context.Context, cfg config.Config, db *storage.DB) (internal.TechnicianCatalog, string, error) {
	if db != nil {
		stored, err := db.LoadCatalog(ctx)
		if err != nil {
			return internal.TechnicianCatalog{}, "", err
		}
		if stored != nil {
			return *stored, "synced", nil
		}
	}
	if cfg.CatalogPath != "" {
		cat, err := LoadFile(cfg.CatalogPath)
		if err != nil {
			return internal.TechnicianCatalog{}, "", err
		}
		return cat, cfg.CatalogPath, nil
	}
	return Default(), "default", nil
}
