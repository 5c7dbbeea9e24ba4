package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMessage = "From: Suporte <suporte@example.com>\r\n" +
	"Subject: Log diario\r\n" +
	"Date: Mon, 08 Jan 2024 09:00:00 -0300\r\n" +
	"Message-ID: <diario-1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
	"123456 010124 08/01/2024\r\n"

func TestDecodeBase64URL(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte(rawMessage))
	raw := base64.RawURLEncoding.EncodeToString([]byte(rawMessage))

	for _, in := range []string{padded, raw} {
		got, err := decodeBase64URL(in)
		require.NoError(t, err)
		assert.Equal(t, rawMessage, string(got))
	}

	_, err := decodeBase64URL("***")
	assert.Error(t, err)
}

func TestToFetchedReadsHeaders(t *testing.T) {
	msg := toFetched("18c0ffee", 0, []byte(rawMessage))
	assert.Equal(t, "gmail", msg.Provider)
	assert.Equal(t, "<diario-1@example.com>", msg.MessageID)
	assert.Equal(t, "Log diario", msg.Subject)
	assert.Equal(t, "Suporte <suporte@example.com>", msg.From)
	assert.Equal(t, "2024-01-08T12:00:00Z", msg.ReceivedAt)
}

func TestToFetchedPrefersInternalDate(t *testing.T) {
	msg := toFetched("18c0ffee", 1704715200000, []byte(rawMessage))
	assert.Equal(t, "2024-01-08T12:00:00Z", msg.ReceivedAt)
}
