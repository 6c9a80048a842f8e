// Package feedbuffer keeps the bounded, deduplicated view of recently observed blocks
// for one feed, together with its live/paused/inspecting state.
//
// A Buffer is not safe for concurrent use. It is owned by a single goroutine (see
// cmpfeeds.Feed) which serializes every mutation.
package feedbuffer

import (
	"errors"
	"fmt"

	"flashcompare/internal/pkg/utils"
	"flashcompare/pkg/blocks"
)

// ErrUnknownSequence is returned when selecting a record that is not buffered.
var ErrUnknownSequence = errors.New("unknown sequence id")

// Mode is the update mode of a buffer.
type Mode int

const (
	// Live accepts new records.
	Live Mode = iota
	// Paused drops new records.
	Paused
	// Inspecting drops new records and shows the selected one.
	Inspecting
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Paused:
		return "paused"
	case Inspecting:
		return "inspecting"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// State is the update mode plus the selection it implies. A selection only exists
// while inspecting, so a selected-but-live buffer cannot be expressed.
type State struct {
	Mode     Mode
	Selected blocks.SequenceID
}

// IsPaused reports whether new records are dropped.
func (s State) IsPaused() bool {
	return s.Mode != Live
}

// Event is an input to the state transition function.
type Event int

const (
	EventPause Event = iota
	EventResume
	EventSelect
	EventClearSelection
)

// Transition returns the state that follows s on event ev. sel is only used by
// EventSelect.
func Transition(s State, ev Event, sel blocks.SequenceID) State {
	switch ev {
	case EventPause:
		if s.Mode == Live {
			return State{Mode: Paused}
		}
		return s
	case EventSelect:
		return State{Mode: Inspecting, Selected: sel}
	case EventResume, EventClearSelection:
		return State{Mode: Live}
	}
	return s
}

// Buffer holds at most capacity records, newest first.
type Buffer struct {
	capacity int
	records  []blocks.Record
	seen     utils.HashSet
	state    State
	lastBase *blocks.Record
}

// New creates an empty, live buffer.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		records:  make([]blocks.Record, 0, capacity),
		seen:     utils.NewHashSet(),
	}
}

// Ingest inserts rec at the front unless the buffer is paused or already holds a
// record with the same sequence id. It reports whether rec was accepted.
func (b *Buffer) Ingest(rec blocks.Record) bool {
	if b.state.IsPaused() {
		return false
	}

	if !b.seen.Add(rec.Seq.String()) {
		return false
	}

	b.records = append(b.records, blocks.Record{})
	copy(b.records[1:], b.records)
	b.records[0] = rec

	for len(b.records) > b.capacity {
		evicted := b.records[len(b.records)-1]
		b.seen.Remove(evicted.Seq.String())
		b.records = b.records[:len(b.records)-1]
	}

	if rec.IsBase {
		base := rec
		b.lastBase = &base
	}

	return true
}

// Select shows the record with the given sequence id and pauses the buffer.
func (b *Buffer) Select(seq blocks.SequenceID) error {
	if !b.seen.Contains(seq.String()) {
		return fmt.Errorf("%w: %s", ErrUnknownSequence, seq)
	}
	b.state = Transition(b.state, EventSelect, seq)
	return nil
}

// ClearSelection drops the selection and resumes live updates.
func (b *Buffer) ClearSelection() {
	b.state = Transition(b.state, EventClearSelection, blocks.SequenceID{})
}

// Pause stops accepting records without selecting one.
func (b *Buffer) Pause() {
	b.state = Transition(b.state, EventPause, blocks.SequenceID{})
}

// Resume accepts records again and drops any selection.
func (b *Buffer) Resume() {
	b.state = Transition(b.state, EventResume, blocks.SequenceID{})
}

// CurrentView returns the selected record while inspecting, otherwise the newest one.
func (b *Buffer) CurrentView() (blocks.Record, bool) {
	if b.state.Mode == Inspecting {
		if rec, ok := b.find(b.state.Selected); ok {
			return rec, true
		}
	}
	if len(b.records) == 0 {
		return blocks.Record{}, false
	}
	return b.records[0], true
}

func (b *Buffer) find(seq blocks.SequenceID) (blocks.Record, bool) {
	for _, rec := range b.records {
		if rec.Seq == seq {
			return rec, true
		}
	}
	return blocks.Record{}, false
}

// Records returns a copy of the buffered records, newest first.
func (b *Buffer) Records() []blocks.Record {
	out := make([]blocks.Record, len(b.records))
	copy(out, b.records)
	return out
}

// LastBase returns the most recent base record ever ingested, even if evicted.
func (b *Buffer) LastBase() (blocks.Record, bool) {
	if b.lastBase == nil {
		return blocks.Record{}, false
	}
	return *b.lastBase, true
}

func (b *Buffer) State() State {
	return b.state
}

func (b *Buffer) IsPaused() bool {
	return b.state.IsPaused()
}

func (b *Buffer) Len() int {
	return len(b.records)
}
