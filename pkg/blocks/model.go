// Package blocks holds the block records observed on both feeds, the decoders that
// build them from wire payloads and the helpers that format them for display.
package blocks

import (
	"fmt"
	"time"
)

// Source names the feed a record was observed on.
type Source string

const (
	Flashblocks Source = "flashblocks"
	FullBlocks  Source = "fullblocks"
)

// SequenceID identifies a record within its feed. Flashblocks are keyed by
// (payload id, index) and full blocks by (number, hash).
type SequenceID struct {
	Key   string
	Index uint64
}

// FlashblockSeq builds the sequence id of a flashblock.
func FlashblockSeq(payloadID string, index uint64) SequenceID {
	return SequenceID{Key: payloadID, Index: index}
}

// FullBlockSeq builds the sequence id of a full block.
func FullBlockSeq(number uint64, hash string) SequenceID {
	return SequenceID{Key: hash, Index: number}
}

func (s SequenceID) String() string {
	return fmt.Sprintf("%s-%d", s.Key, s.Index)
}

// BaseMetadata is carried by the first flashblock of every block interval.
type BaseMetadata struct {
	ParentHash    string
	FeeRecipient  string
	BlockNumber   uint64
	GasLimit      uint64
	BaseFeePerGas uint64
	Timestamp     uint64
}

// Record is one block observed on a feed.
type Record struct {
	Seq    SequenceID
	Source Source

	Number uint64
	Index  uint64
	Hash   string

	ParentHash   string
	StateRoot    string
	ReceiptsRoot string

	GasUsed  uint64
	GasLimit uint64

	// Timestamp is the block timestamp in unix seconds, zero when unknown.
	Timestamp uint64

	Transactions []string

	IsBase bool
	Base   *BaseMetadata

	ReceivedAt time.Time
}

// TxCount returns the number of transactions in the record.
func (r Record) TxCount() int {
	return len(r.Transactions)
}

// Contains reports whether the record includes the transaction hash.
// Hashes are compared case-insensitively.
func (r Record) Contains(txHash string) bool {
	for _, tx := range r.Transactions {
		if equalHex(tx, txHash) {
			return true
		}
	}
	return false
}

// EffectiveGasLimit returns the gas limit to measure usage against, falling back to
// the supplied base record and finally to the default limit.
func (r Record) EffectiveGasLimit(lastBase *Record) uint64 {
	switch {
	case r.GasLimit != 0:
		return r.GasLimit
	case r.Base != nil && r.Base.GasLimit != 0:
		return r.Base.GasLimit
	case lastBase != nil && lastBase.Base != nil && lastBase.Base.GasLimit != 0:
		return lastBase.Base.GasLimit
	}
	return defaultGasLimit
}
