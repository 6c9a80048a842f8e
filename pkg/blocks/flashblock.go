package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedPayload is returned when a payload decodes but lacks required fields.
var ErrMalformedPayload = errors.New("malformed block payload")

// FlashblockMessage is one frame of the flashblocks websocket feed.
type FlashblockMessage struct {
	PayloadID string             `json:"payload_id"`
	Index     uint64             `json:"index"`
	Base      *FlashblockBase    `json:"base,omitempty"`
	Diff      FlashblockDiff     `json:"diff"`
	Metadata  FlashblockMetadata `json:"metadata"`
}

type FlashblockBase struct {
	ParentBeaconBlockRoot string `json:"parent_beacon_block_root"`
	ParentHash            string `json:"parent_hash"`
	FeeRecipient          string `json:"fee_recipient"`
	PrevRandao            string `json:"prev_randao"`
	BlockNumber           string `json:"block_number"`
	GasLimit              string `json:"gas_limit"`
	Timestamp             string `json:"timestamp"`
	ExtraData             string `json:"extra_data"`
	BaseFeePerGas         string `json:"base_fee_per_gas"`
}

type FlashblockDiff struct {
	StateRoot    string            `json:"state_root"`
	ReceiptsRoot string            `json:"receipts_root"`
	LogsBloom    string            `json:"logs_bloom"`
	GasUsed      string            `json:"gas_used"`
	BlockHash    string            `json:"block_hash"`
	Transactions []string          `json:"transactions"`
	Withdrawals  []json.RawMessage `json:"withdrawals"`
}

type FlashblockMetadata struct {
	BlockNumber        uint64                     `json:"block_number"`
	NewAccountBalances map[string]string          `json:"new_account_balances"`
	Receipts           map[string]json.RawMessage `json:"receipts"`
}

// DecodeFlashblock decodes a websocket frame into a Record. Frames are plain JSON or
// brotli compressed JSON.
func DecodeFlashblock(data []byte, receivedAt time.Time) (Record, error) {
	payload, err := inflate(data)
	if err != nil {
		return Record{}, err
	}

	var msg FlashblockMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal flashblock: %w", err)
	}

	return msg.Record(receivedAt)
}

// Record converts the message into a Record.
func (m FlashblockMessage) Record(receivedAt time.Time) (Record, error) {
	if m.PayloadID == "" {
		return Record{}, fmt.Errorf("%w: missing payload_id", ErrMalformedPayload)
	}

	gasUsed, err := ParseHexNum(m.Diff.GasUsed)
	if err != nil {
		return Record{}, fmt.Errorf("%w: gas_used %q: %v", ErrMalformedPayload, m.Diff.GasUsed, err)
	}

	rec := Record{
		Seq:          FlashblockSeq(m.PayloadID, m.Index),
		Source:       Flashblocks,
		Number:       m.Metadata.BlockNumber,
		Index:        m.Index,
		Hash:         m.Diff.BlockHash,
		StateRoot:    m.Diff.StateRoot,
		ReceiptsRoot: m.Diff.ReceiptsRoot,
		GasUsed:      gasUsed,
		Transactions: make([]string, 0, len(m.Diff.Transactions)),
		ReceivedAt:   receivedAt,
	}

	for _, raw := range m.Diff.Transactions {
		rec.Transactions = append(rec.Transactions, TxID(raw))
	}

	if m.Base != nil {
		base, err := m.Base.metadata()
		if err != nil {
			return Record{}, err
		}
		rec.IsBase = true
		rec.Base = base
		rec.ParentHash = base.ParentHash
		rec.GasLimit = base.GasLimit
		rec.Timestamp = base.Timestamp
		if rec.Number == 0 {
			rec.Number = base.BlockNumber
		}
	}

	return rec, nil
}

func (b FlashblockBase) metadata() (*BaseMetadata, error) {
	var (
		meta = &BaseMetadata{
			ParentHash:   b.ParentHash,
			FeeRecipient: b.FeeRecipient,
		}
		fields = []struct {
			name string
			raw  string
			dst  *uint64
		}{
			{"block_number", b.BlockNumber, &meta.BlockNumber},
			{"gas_limit", b.GasLimit, &meta.GasLimit},
			{"base_fee_per_gas", b.BaseFeePerGas, &meta.BaseFeePerGas},
			{"timestamp", b.Timestamp, &meta.Timestamp},
		}
	)

	for _, f := range fields {
		v, err := ParseHexNum(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: base %s %q: %v", ErrMalformedPayload, f.name, f.raw, err)
		}
		*f.dst = v
	}

	return meta, nil
}

// TxID returns the hash of a transaction given either as a hash or as its raw
// encoding. Entries that are neither are returned unchanged.
func TxID(raw string) string {
	if len(raw) == 2+2*32 {
		return raw
	}

	b, err := hexutil.Decode(raw)
	if err != nil || len(b) == 0 {
		return raw
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(b); err == nil {
		return tx.Hash().Hex()
	}

	// Transaction types unknown to the decoder, such as deposits, still hash as the
	// keccak of their envelope.
	return crypto.Keccak256Hash(b).Hex()
}

func inflate(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}

	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress flashblock frame: %w", err)
	}
	return out, nil
}
