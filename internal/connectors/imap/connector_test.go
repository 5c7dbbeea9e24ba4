package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportlog/internal/config"
)

func TestFormatAddresses(t *testing.T) {
	got := formatAddresses([]*imap.Address{
		{PersonalName: "Suporte", MailboxName: "suporte", HostName: "example.com"},
		nil,
		{MailboxName: "ops", HostName: "example.com"},
	})
	assert.Equal(t, "Suporte <suporte@example.com>, ops@example.com", got)
	assert.Equal(t, "", formatAddresses(nil))
}

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2024, 1, 8, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600)),
		Envelope:     &imap.Envelope{Subject: "Log", From: []*imap.Address{{MailboxName: "a", HostName: "b.com"}}},
	}
	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "Log", got.Subject)
	assert.Equal(t, "a@b.com", got.From)
	assert.Equal(t, "2024-01-08T12:00:00Z", got.ReceivedAt)
}

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "mail.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_USER")
}
