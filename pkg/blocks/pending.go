package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"flashcompare/pkg/constant"
)

// RPCBlock is the block object returned by eth_getBlockByNumber. Transactions are
// either hashes or full transaction objects depending on the request.
type RPCBlock struct {
	Number        string            `json:"number"`
	Hash          string            `json:"hash"`
	ParentHash    string            `json:"parentHash"`
	StateRoot     string            `json:"stateRoot"`
	ReceiptsRoot  string            `json:"receiptsRoot"`
	Miner         string            `json:"miner"`
	Timestamp     string            `json:"timestamp"`
	GasUsed       string            `json:"gasUsed"`
	GasLimit      string            `json:"gasLimit"`
	BaseFeePerGas string            `json:"baseFeePerGas"`
	Transactions  []json.RawMessage `json:"transactions"`
}

// DecodeRPCBlock decodes a raw eth_getBlockByNumber result into a Record.
func DecodeRPCBlock(raw json.RawMessage, source Source, receivedAt time.Time) (Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Record{}, constant.EmptyResponseFromNode
	}

	var b RPCBlock
	if err := json.Unmarshal(raw, &b); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	return b.Record(source, receivedAt)
}

// Record converts the block into a Record.
func (b RPCBlock) Record(source Source, receivedAt time.Time) (Record, error) {
	number, err := ParseHexNum(b.Number)
	if err != nil {
		return Record{}, fmt.Errorf("%w: number %q: %v", ErrMalformedPayload, b.Number, err)
	}

	rec := Record{
		Seq:          FullBlockSeq(number, b.Hash),
		Source:       source,
		Number:       number,
		Hash:         b.Hash,
		ParentHash:   b.ParentHash,
		StateRoot:    b.StateRoot,
		ReceiptsRoot: b.ReceiptsRoot,
		Transactions: TxHashes(b.Transactions),
		ReceivedAt:   receivedAt,
	}

	// Optional quantities are left at zero when absent.
	rec.GasUsed, _ = ParseHexNum(b.GasUsed)
	rec.GasLimit, _ = ParseHexNum(b.GasLimit)
	rec.Timestamp, _ = ParseHexNum(b.Timestamp)

	return rec, nil
}

// TxHashes extracts transaction hashes from a block's transaction list, accepting
// both hash strings and objects carrying a hash field.
func TxHashes(txs []json.RawMessage) []string {
	hashes := make([]string, 0, len(txs))
	for _, raw := range txs {
		hashes = append(hashes, txHash(raw))
	}
	return hashes
}

func txHash(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Hash *string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Hash != nil {
		return *obj.Hash
	}

	return unknownFormat
}
