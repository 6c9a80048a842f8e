package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flashcompare/pkg/blocks"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCSource fetches pending blocks with eth_getBlockByNumber.
type RPCSource struct {
	client *rpc.Client
	source blocks.Source
	uri    string
}

// DialRPCSource connects to a JSON-RPC endpoint. Records are tagged with source.
func DialRPCSource(ctx context.Context, uri string, source blocks.Source) (*RPCSource, error) {
	client, err := rpc.DialContext(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("cannot dial %s: %w", uri, err)
	}
	return NewRPCSource(client, uri, source), nil
}

// NewRPCSource wraps an existing client.
func NewRPCSource(client *rpc.Client, uri string, source blocks.Source) *RPCSource {
	return &RPCSource{client: client, source: source, uri: uri}
}

// PendingBlock requests the pending block including transactions.
func (s *RPCSource) PendingBlock(ctx context.Context) (blocks.Record, error) {
	var raw json.RawMessage
	if err := s.client.CallContext(ctx, &raw, "eth_getBlockByNumber", "pending", true); err != nil {
		return blocks.Record{}, fmt.Errorf("eth_getBlockByNumber on %s: %w", s.uri, err)
	}
	return blocks.DecodeRPCBlock(raw, s.source, time.Now())
}

func (s *RPCSource) Name() string {
	return fmt.Sprintf("%s(%s)", s.source, s.uri)
}

// Close closes the underlying client.
func (s *RPCSource) Close() {
	s.client.Close()
}
