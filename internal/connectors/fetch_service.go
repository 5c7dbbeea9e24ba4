package connectors

import (
	"context"

	"go.uber.org/zap"

	"supportlog/internal/logging"
	"supportlog/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	log = logging.OrNop(log)
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

// FetchAndStore pulls up to max messages from label and stages the new ones.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, isNew, err := s.store.Store(msg)
		if err != nil {
			s.log.Warn("stage message", zap.String("provider", msg.Provider), zap.String("messageId", msg.MessageID), zap.Error(err))
			continue
		}
		if isNew {
			stored++
			s.log.Debug("message staged", zap.Int("email", row.ID), zap.String("subject", row.Subject))
		}
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
