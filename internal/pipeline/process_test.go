package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportlog/internal"
	"supportlog/internal/catalog"
	"supportlog/internal/config"
	"supportlog/internal/storage"
)

func newTestService(t *testing.T) (*ProcessingService, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{ParseWorkers: 2, AnalysisUser: "tester"}
	return NewProcessingService(db, nil, NewParser(catalog.Default()), cfg, zap.NewNop()), db
}

func TestProcessDocument(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	doc, err := LoadDocument(filepath.Join("testdata", "sample_log.txt"))
	require.NoError(t, err)

	res, err := svc.ProcessDocument(ctx, doc)
	require.NoError(t, err)
	assert.Positive(t, res.AnalysisID)
	assert.Len(t, res.Records, 6)

	stored, err := db.GetAnalysis(ctx, res.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "sample_log.txt", stored.SourceName)
	assert.Equal(t, "tester", stored.User)
	assert.Equal(t, 4, stored.DistinctOrders)

	records, err := db.RecordsByAnalysis(ctx, res.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, res.Records, records)

	runs, err := db.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestProcessDocumentRejectsInvalid(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.ProcessDocument(context.Background(), internal.LogDocument{Name: "bad.txt", Text: "hello"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, reasonNoMarker, verr.Reason)

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAnalyses)
}

func TestProcessFiles(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("no blocks here"), 0o644))
	paths := []string{
		filepath.Join("testdata", "sample_log.txt"),
		bad,
		filepath.Join(dir, "missing.txt"),
		filepath.Join("testdata", "weekly_log.eml"),
	}

	results, err := svc.ProcessFiles(ctx, paths)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Records, 6)
	var verr *ValidationError
	assert.ErrorAs(t, results[1].Err, &verr)
	assert.Error(t, results[2].Err)
	assert.NoError(t, results[3].Err)
	assert.Len(t, results[3].Records, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}

	list, err := db.ListAnalyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, results[3].AnalysisID, results[0].AnalysisID)
}

func TestProcessFilesCanceled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessFiles(ctx, []string{filepath.Join("testdata", "sample_log.txt")})
	assert.ErrorIs(t, err, context.Canceled)
}

func stageEmail(t *testing.T, db *storage.DB, fixture, messageID string) internal.EmailRow {
	t.Helper()
	blob, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	rawPath := filepath.Join(t.TempDir(), fixture)
	require.NoError(t, os.WriteFile(rawPath, blob, 0o644))

	email, err := db.UpsertEmail("imap", messageID, "Log", "suporte@example.com", "2024-01-08T12:00:00Z", "hash-"+messageID, rawPath, EmailFetched)
	require.NoError(t, err)
	return email
}

func TestProcessEmail(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	email := stageEmail(t, db, "weekly_log.eml", "<weekly@example.com>")

	res, err := svc.ProcessByProviderMessageID(ctx, "imap", "<weekly@example.com>")
	require.NoError(t, err)
	assert.Equal(t, EmailProcessed, res.Status)
	require.Len(t, res.Documents, 1)
	assert.Len(t, res.Documents[0].Records, 3)

	linked, err := db.ListAnalysesByEmail(ctx, email.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "semana.txt", linked[0].SourceName)

	row, err := db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailProcessed, row.Status)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	stageEmail(t, db, "weekly_log.eml", "<a@example.com>")
	stageEmail(t, db, "body_log.eml", "<b@example.com>")

	blob := "From: x@example.com\r\nSubject: oi\r\nContent-Type: text/plain\r\n\r\nnada por aqui\r\n"
	rawPath := filepath.Join(t.TempDir(), "plain.eml")
	require.NoError(t, os.WriteFile(rawPath, []byte(blob), 0o644))
	_, err := db.UpsertEmail("gmail", "<c@example.com>", "oi", "x@example.com", "2024-01-09T12:00:00Z", "hash-c", rawPath, EmailFetched)
	require.NoError(t, err)

	results, err := svc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	statuses := map[string]string{}
	for _, r := range results {
		statuses[r.Email.MessageID] = r.Status
	}
	assert.Equal(t, map[string]string{
		"<a@example.com>": EmailProcessed,
		"<b@example.com>": EmailProcessed,
		"<c@example.com>": EmailSkipped,
	}, statuses)

	again, err := svc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestProcessPendingLimitAppliesPerProvider(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	blob, err := os.ReadFile(filepath.Join("testdata", "body_log.eml"))
	require.NoError(t, err)
	dir := t.TempDir()
	for i, received := range []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"} {
		rawPath := filepath.Join(dir, fmt.Sprintf("gmail-%d.eml", i))
		require.NoError(t, os.WriteFile(rawPath, blob, 0o644))
		_, err := db.UpsertEmail("gmail", fmt.Sprintf("<g%d@example.com>", i), "", "", received, fmt.Sprintf("hash-g%d", i), rawPath, EmailFetched)
		require.NoError(t, err)
	}
	stageEmail(t, db, "weekly_log.eml", "<imap@example.com>")

	results, err := svc.ProcessPending(ctx, 1, "imap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "<imap@example.com>", results[0].Email.MessageID)

	pending, err := db.ListEmailsByStatus(EmailFetched, "gmail", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestProcessEmailMissingRaw(t *testing.T) {
	svc, db := newTestService(t)
	email, err := db.UpsertEmail("imap", "<gone@example.com>", "", "", "", "h", filepath.Join(t.TempDir(), "gone.eml"), EmailFetched)
	require.NoError(t, err)

	_, err = svc.ProcessEmail(context.Background(), email)
	assert.Error(t, err)

	row, err := db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailFailed, row.Status)
}

func TestSaveRecords(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	records := Parse(readFixture(t, "sample_log.txt"))
	res, err := svc.SaveRecords(ctx, "edited", records)
	require.NoError(t, err)
	assert.Equal(t, "edited", res.Analysis.SourceName)

	stored, err := db.RecordsByAnalysis(ctx, res.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, records, stored)

	_, err = svc.SaveRecords(ctx, "empty", nil)
	assert.ErrorIs(t, err, ErrNoRecords)
}
