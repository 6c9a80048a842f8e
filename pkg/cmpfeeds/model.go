package cmpfeeds

import (
	"time"

	"flashcompare/pkg/blocks"
)

type handler func() error

// BlockView is a display-ready rendition of a block record.
type BlockView struct {
	Seq       string `json:"seq"`
	Number    uint64 `json:"number"`
	Index     uint64 `json:"index"`
	Hash      string `json:"hash"`
	ShortHash string `json:"short_hash"`

	GasUsed    uint64  `json:"gas_used"`
	GasLimit   uint64  `json:"gas_limit"`
	GasPercent float64 `json:"gas_percent"`
	Gas        string  `json:"gas"`

	TxCount      int      `json:"tx_count"`
	Transactions []string `json:"transactions"`

	IsBase    bool   `json:"is_base"`
	Timestamp string `json:"timestamp,omitempty"`

	ParentHash    string `json:"parent_hash,omitempty"`
	FeeRecipient  string `json:"fee_recipient,omitempty"`
	BaseFeePerGas string `json:"base_fee_per_gas,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// NewBlockView formats rec for display. Extended metadata missing from rec is taken
// from lastBase when it describes the same block.
func NewBlockView(rec blocks.Record, lastBase *blocks.Record, loc *time.Location) BlockView {
	limit := rec.EffectiveGasLimit(lastBase)

	v := BlockView{
		Seq:          rec.Seq.String(),
		Number:       rec.Number,
		Index:        rec.Index,
		Hash:         rec.Hash,
		ShortHash:    blocks.ShortHash(rec.Hash),
		GasUsed:      rec.GasUsed,
		GasLimit:     limit,
		GasPercent:   blocks.GasPercentage(rec.GasUsed, limit),
		Gas:          blocks.FormatGas(rec.GasUsed, limit),
		TxCount:      rec.TxCount(),
		Transactions: rec.Transactions,
		IsBase:       rec.IsBase,
		ParentHash:   rec.ParentHash,
		ReceivedAt:   rec.ReceivedAt,
	}

	base := rec.Base
	if base == nil && lastBase != nil && lastBase.Base != nil && lastBase.Number == rec.Number {
		base = lastBase.Base
	}
	if base != nil {
		v.ParentHash = base.ParentHash
		v.FeeRecipient = base.FeeRecipient
		v.BaseFeePerGas = blocks.FormatThousands(base.BaseFeePerGas)
		if rec.Timestamp == 0 {
			rec.Timestamp = base.Timestamp
		}
	}
	if rec.Timestamp != 0 {
		v.Timestamp = blocks.FormatTimestamp(rec.Timestamp, loc)
	}

	return v
}

// Snapshot is a consistent copy of a feed's state.
type Snapshot struct {
	Feed     string      `json:"feed"`
	Status   string      `json:"status"`
	Mode     string      `json:"mode"`
	Paused   bool        `json:"paused"`
	Selected string      `json:"selected,omitempty"`
	Current  *BlockView  `json:"current,omitempty"`
	LastBase *BlockView  `json:"last_base,omitempty"`
	Records  []BlockView `json:"records"`
}
