// Package ingest streams and backfills whale transfer events from external
// data providers into the whale store, with provider failover, dedup and
// rate limiting.
package ingest

import (
	"context"
	"time"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// Provider is one whale-data source. StreamTransfers delivers live events
// until the context ends or the stream breaks (signalled on the error
// channel); Backfill fetches the historical window [from, to) over REST.
type Provider interface {
	Name() string
	StreamTransfers(ctx context.Context, chain string) (<-chan persistence.WhaleTransfer, <-chan error, error)
	Backfill(ctx context.Context, chain string, from, to time.Time) ([]persistence.WhaleTransfer, error)
}
