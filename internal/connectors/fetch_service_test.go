package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportlog/internal"
	"supportlog/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	label    string
	max      int
}

func (s *stubConnector) FetchInbox(_ context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	s.label, s.max = label, max
	return s.messages, s.err
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFetchAndStore(t *testing.T) {
	db := openDB(t)
	rawDir := filepath.Join(t.TempDir(), "raw")
	stub := &stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@x>", Subject: "Log 1", Raw: []byte("Subject: Log 1\r\n\r\n123456 010124")},
		{Provider: "imap", MessageID: "<2@x>", Subject: "Log 2", Raw: []byte("Subject: Log 2\r\n\r\n654321 010124")},
		{Provider: "imap", MessageID: "<3@x>", Subject: "Empty"},
	}}

	svc := NewFetchService(db, rawDir, stub, nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 5)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Stored: 2}, res)
	assert.Equal(t, "INBOX", stub.label)
	assert.Equal(t, 5, stub.max)

	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	pending, err := db.ListEmailsByStatus("fetched", "", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	again, err := svc.FetchAndStore(context.Background(), "INBOX", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stored)
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	svc := NewFetchService(openDB(t), t.TempDir(), &stubConnector{err: errors.New("boom")}, nil)
	_, err := svc.FetchAndStore(context.Background(), "INBOX", 1)
	assert.EqualError(t, err, "boom")
}

func TestStoreKeepsStatusOfKnownMessage(t *testing.T) {
	db := openDB(t)
	store := NewMailStoreService(db, t.TempDir())
	msg := internal.FetchedMailMessage{Provider: "gmail", MessageID: "<k@x>", Raw: []byte("Subject: k\r\n\r\nbody")}

	row, isNew, err := store.Store(msg)
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NoError(t, db.UpdateEmailStatus(row.ID, "processed"))

	row2, isNew, err := store.Store(msg)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, row.ID, row2.ID)
	assert.Equal(t, "processed", row2.Status)
}
