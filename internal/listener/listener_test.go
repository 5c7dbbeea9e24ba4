package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportlog/internal"
	"supportlog/internal/catalog"
	"supportlog/internal/config"
	"supportlog/internal/pipeline"
	"supportlog/internal/storage"
)

const weeklyMail = "From: Suporte <suporte@example.com>\r\n" +
	"Subject: Log semanal\r\n" +
	"Message-ID: <weekly@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
	"111111 080124 08/01/2024\r\n" +
	"[SAMUEL LOJA AZUL\r\n" +
	"Suporte: Daniela e Jarbas\r\n" +
	"Atendimento: treinamento do modulo fiscal Internews: 3.3\r\n"

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

func testSetup(t *testing.T) (*storage.DB, *pipeline.ProcessingService, config.Config) {
	t.Helper()
	root := t.TempDir()
	db, err := storage.Open(filepath.Join(root, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RawMailDir:               filepath.Join(root, "raw"),
		OutputDir:                filepath.Join(root, "out"),
		InboxDir:                 filepath.Join(root, "inbox"),
		ParseWorkers:             2,
		AnalysisUser:             "listener",
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
	}
	proc := pipeline.NewProcessingService(db, nil, pipeline.NewParser(catalog.Default()), cfg, zap.NewNop())
	return db, proc, cfg
}

func TestRunCycle(t *testing.T) {
	db, proc, cfg := testSetup(t)
	svc := NewService(db, proc, cfg, zap.NewNop())
	svc.connector = stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<weekly@example.com>", Subject: "Log semanal", Raw: []byte(weeklyMail)},
		{Provider: "imap", MessageID: "<chat@example.com>", Subject: "oi", Raw: []byte("Subject: oi\r\n\r\nsem log\r\n")},
	}}

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Fetched: 2, Stored: 2, Processed: 2, Analyses: 1, Exported: 1}, res)

	out := filepath.Join(cfg.OutputDir, "listener")
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "weekly_example.com")

	exported, err := db.ListEmailsByStatus(pipeline.EmailExported, "", 10)
	require.NoError(t, err)
	assert.Len(t, exported, 1)
	skipped, err := db.ListEmailsByStatus(pipeline.EmailSkipped, "", 10)
	require.NoError(t, err)
	assert.Len(t, skipped, 1)

	again, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stored)
	assert.Equal(t, 0, again.Processed)
}

func TestNewConnectorUnknownProvider(t *testing.T) {
	_, err := NewConnector(context.Background(), "pop3", config.Config{})
	assert.Error(t, err)
}

func TestSanitizeMessageID(t *testing.T) {
	assert.Equal(t, "abc_example.com", sanitizeMessageID("<abc@example.com>"))
}
