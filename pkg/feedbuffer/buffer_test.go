package feedbuffer

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"flashcompare/pkg/blocks"
)

func rec(id string) blocks.Record {
	return blocks.Record{Seq: blocks.FlashblockSeq(id, 1), Hash: id}
}

func baseRec(id string) blocks.Record {
	r := blocks.Record{Seq: blocks.FlashblockSeq(id, 0), Hash: id, IsBase: true}
	r.Base = &blocks.BaseMetadata{GasLimit: 60_000_000}
	return r
}

func seqs(b *Buffer) []string {
	var out []string
	for _, r := range b.Records() {
		out = append(out, r.Hash)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBufferSelectionScenario(t *testing.T) {
	b := New(20)

	for _, id := range []string{"A", "B", "C"} {
		if !b.Ingest(rec(id)) {
			t.Fatalf("record %s should be accepted", id)
		}
	}

	if cur, ok := b.CurrentView(); !ok || cur.Hash != "C" {
		t.Fatalf("expected current view C, got %+v", cur)
	}

	if err := b.Select(rec("A").Seq); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !b.IsPaused() {
		t.Fatal("selecting should pause the buffer")
	}
	if cur, _ := b.CurrentView(); cur.Hash != "A" {
		t.Fatalf("expected current view A, got %s", cur.Hash)
	}

	if b.Ingest(rec("D")) {
		t.Fatal("record D should be dropped while paused")
	}
	if got := seqs(b); !equal(got, []string{"C", "B", "A"}) {
		t.Fatalf("records changed while paused: %v", got)
	}
	if cur, _ := b.CurrentView(); cur.Hash != "A" {
		t.Fatalf("expected current view A, got %s", cur.Hash)
	}

	b.ClearSelection()
	if b.IsPaused() {
		t.Fatal("clearing the selection should resume the buffer")
	}
	if cur, _ := b.CurrentView(); cur.Hash != "C" {
		t.Fatalf("expected current view C after clearing, got %s", cur.Hash)
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New(20)

	for i := 0; i < 21; i++ {
		b.Ingest(rec(fmt.Sprintf("r%02d", i)))
	}

	if b.Len() != 20 {
		t.Fatalf("expected 20 records, got %d", b.Len())
	}

	got := seqs(b)
	for i := 0; i < 20; i++ {
		if want := fmt.Sprintf("r%02d", 20-i); got[i] != want {
			t.Fatalf("position %d: got %s, want %s", i, got[i], want)
		}
	}

	if !b.Ingest(rec("r00")) {
		t.Fatal("an evicted sequence id may be ingested again")
	}
}

func TestBufferDuplicateIsNoop(t *testing.T) {
	b := New(20)
	b.Ingest(rec("A"))
	b.Ingest(rec("B"))

	before := seqs(b)
	if b.Ingest(rec("A")) {
		t.Fatal("duplicate should not be accepted")
	}
	if got := seqs(b); !equal(got, before) {
		t.Fatalf("duplicate changed the buffer: %v -> %v", before, got)
	}
}

func TestBufferInvariantsUnderRandomOps(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	b := New(20)

	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("r%d", r.Intn(60))
		switch op := r.Intn(10); {
		case op < 6:
			before := seqs(b)
			paused := b.IsPaused()
			b.Ingest(rec(id))
			if paused && !equal(before, seqs(b)) {
				t.Fatal("ingest changed records while paused")
			}
		case op == 6:
			_ = b.Select(rec(id).Seq)
		case op == 7:
			b.ClearSelection()
		case op == 8:
			b.Pause()
		default:
			b.Resume()
		}

		if b.Len() > 20 {
			t.Fatalf("buffer exceeded capacity: %d", b.Len())
		}
		seen := map[blocks.SequenceID]bool{}
		for _, r := range b.Records() {
			if seen[r.Seq] {
				t.Fatalf("duplicate sequence id %s", r.Seq)
			}
			seen[r.Seq] = true
		}
		if s := b.State(); s.Mode == Inspecting && !s.IsPaused() {
			t.Fatal("inspecting buffer must be paused")
		}
	}
}

func TestBufferSelectUnknown(t *testing.T) {
	b := New(20)
	b.Ingest(rec("A"))

	if err := b.Select(rec("Z").Seq); !errors.Is(err, ErrUnknownSequence) {
		t.Fatalf("expected ErrUnknownSequence, got %v", err)
	}
	if b.IsPaused() {
		t.Fatal("failed select should not pause")
	}
}

func TestBufferPauseResume(t *testing.T) {
	b := New(20)
	b.Ingest(rec("A"))

	b.Pause()
	if s := b.State(); s.Mode != Paused {
		t.Fatalf("expected paused, got %s", s.Mode)
	}
	if b.Ingest(rec("B")) {
		t.Fatal("record should be dropped while paused")
	}

	if err := b.Select(rec("A").Seq); err != nil {
		t.Fatalf("select: %v", err)
	}
	b.Pause()
	if s := b.State(); s.Mode != Inspecting {
		t.Fatalf("pausing while inspecting should keep the selection, got %s", s.Mode)
	}

	b.Resume()
	if s := b.State(); s.Mode != Live || s.Selected != (blocks.SequenceID{}) {
		t.Fatalf("resume should clear the selection, got %+v", s)
	}
	if !b.Ingest(rec("B")) {
		t.Fatal("record should be accepted after resume")
	}
}

func TestBufferLastBaseSurvivesEviction(t *testing.T) {
	b := New(3)

	if _, ok := b.LastBase(); ok {
		t.Fatal("empty buffer has no base record")
	}

	b.Ingest(baseRec("base"))
	for i := 0; i < 5; i++ {
		b.Ingest(rec(fmt.Sprintf("r%d", i)))
	}

	for _, r := range b.Records() {
		if r.Hash == "base" {
			t.Fatal("base record should have been evicted")
		}
	}

	base, ok := b.LastBase()
	if !ok || base.Hash != "base" {
		t.Fatalf("last base should survive eviction, got %+v", base)
	}

	b.Ingest(rec("plain"))
	if base, _ := b.LastBase(); base.Hash != "base" {
		t.Fatal("non-base record should not replace the last base")
	}

	b.Ingest(baseRec("base2"))
	if base, _ := b.LastBase(); base.Hash != "base2" {
		t.Fatalf("expected base2, got %s", base.Hash)
	}
}

func TestBufferEmptyView(t *testing.T) {
	if _, ok := New(20).CurrentView(); ok {
		t.Fatal("empty buffer has no current view")
	}
}

func TestTransition(t *testing.T) {
	sel := blocks.FlashblockSeq("p", 2)

	tests := []struct {
		name string
		from State
		ev   Event
		want State
	}{
		{"pause live", State{Mode: Live}, EventPause, State{Mode: Paused}},
		{"pause paused", State{Mode: Paused}, EventPause, State{Mode: Paused}},
		{"select live", State{Mode: Live}, EventSelect, State{Mode: Inspecting, Selected: sel}},
		{"select paused", State{Mode: Paused}, EventSelect, State{Mode: Inspecting, Selected: sel}},
		{"resume inspecting", State{Mode: Inspecting, Selected: sel}, EventResume, State{Mode: Live}},
		{"clear inspecting", State{Mode: Inspecting, Selected: sel}, EventClearSelection, State{Mode: Live}},
		{"clear paused", State{Mode: Paused}, EventClearSelection, State{Mode: Live}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transition(tt.from, tt.ev, sel); got != tt.want {
				t.Fatalf("Transition(%+v, %d) = %+v, want %+v", tt.from, tt.ev, got, tt.want)
			}
		})
	}
}
