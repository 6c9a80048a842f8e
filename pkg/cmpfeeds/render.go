package cmpfeeds

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"flashcompare/pkg/blocks"
)

const renderTimeFormat = "15:04:05.000"

type renderRow struct {
	label string
	// feed rows describe the feed itself and are rendered without a current view.
	feed  bool
	value func(s Snapshot, v *BlockView) string
}

var renderRows = []renderRow{
	{"Status", true, func(s Snapshot, _ *BlockView) string { return s.Status }},
	{"Mode", true, func(s Snapshot, _ *BlockView) string {
		if s.Selected != "" {
			return fmt.Sprintf("%s (%s)", s.Mode, s.Selected)
		}
		return s.Mode
	}},
	{"Buffered", true, func(s Snapshot, _ *BlockView) string { return fmt.Sprintf("%d", len(s.Records)) }},
	{"Block", false, func(_ Snapshot, v *BlockView) string { return fmt.Sprintf("%d", v.Number) }},
	{"Index", false, func(_ Snapshot, v *BlockView) string {
		if v.IsBase {
			return fmt.Sprintf("%d (base)", v.Index)
		}
		return fmt.Sprintf("%d", v.Index)
	}},
	{"Hash", false, func(_ Snapshot, v *BlockView) string { return v.ShortHash }},
	{"Gas", false, func(_ Snapshot, v *BlockView) string { return v.Gas }},
	{"Transactions", false, func(_ Snapshot, v *BlockView) string { return fmt.Sprintf("%d", v.TxCount) }},
	{"Timestamp", false, func(_ Snapshot, v *BlockView) string { return v.Timestamp }},
	{"Parent", false, func(_ Snapshot, v *BlockView) string { return shortOrEmpty(v.ParentHash) }},
	{"Fee recipient", false, func(_ Snapshot, v *BlockView) string { return shortOrEmpty(v.FeeRecipient) }},
	{"Base fee", false, func(_ Snapshot, v *BlockView) string { return v.BaseFeePerGas }},
	{"Received", false, func(_ Snapshot, v *BlockView) string { return v.ReceivedAt.Format(renderTimeFormat) }},
}

func shortOrEmpty(hash string) string {
	if hash == "" {
		return ""
	}
	return blocks.ShortHash(hash)
}

// Render writes the current view of every snapshot as one column each.
func Render(w io.Writer, now time.Time, snapshots ...Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := make([]string, 0, len(snapshots)+1)
	header = append(header, now.Format(renderTimeFormat))
	for _, s := range snapshots {
		header = append(header, s.Feed)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range renderRows {
		cells := make([]string, 0, len(snapshots)+1)
		cells = append(cells, row.label)
		for _, s := range snapshots {
			switch {
			case s.Current != nil:
				cells = append(cells, row.value(s, s.Current))
			case row.feed:
				cells = append(cells, row.value(s, nil))
			default:
				cells = append(cells, "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}
