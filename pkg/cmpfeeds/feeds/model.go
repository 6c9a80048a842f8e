// Package feeds contains the ingesters that feed block records into a feed buffer:
// the flashblocks websocket stream and the pending block poller.
package feeds

import (
	"context"

	"flashcompare/pkg/blocks"
)

// Status is the connection status of a feed.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Sink is the owner of a feed buffer as seen by an ingester.
type Sink interface {
	// Paused reports whether the buffer currently drops records.
	Paused() bool
	// Ingest hands a decoded record to the buffer owner.
	Ingest(ctx context.Context, rec blocks.Record)
	// SetStatus reports a connection status transition.
	SetStatus(status Status)
}

// BlockSource returns the current pending block of a node.
type BlockSource interface {
	PendingBlock(ctx context.Context) (blocks.Record, error)
	Name() string
}
