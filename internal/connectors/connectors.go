// Package connectors fetches emailed support logs from a mailbox and stages
// them locally for processing.
package connectors

import (
	"context"

	"supportlog/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
