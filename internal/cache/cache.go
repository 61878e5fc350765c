package cache

import (
	"context"
	"time"
)

// ReceiptCache remembers the transport's message id for each successful send.
type ReceiptCache interface {
	StoreSent(ctx context.Context, jobID, number, remoteMessageID string, sentAt time.Time) error
}
