package cmptxspeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashcompare/pkg/blocks"
)

const testTxHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

// scheduledSource includes testTxHash in its pending block once after has passed
// since it was armed.
type scheduledSource struct {
	name  string
	after time.Duration

	mu      sync.Mutex
	armedAt time.Time
	fail    int
	calls   atomic.Int32
}

func (s *scheduledSource) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armedAt = time.Now()
}

func (s *scheduledSource) PendingBlock(ctx context.Context) (blocks.Record, error) {
	s.calls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail > 0 {
		s.fail--
		return blocks.Record{}, errors.New("connection refused")
	}

	rec := blocks.Record{Number: 42, Transactions: []string{"0xother"}}
	if !s.armedAt.IsZero() && time.Since(s.armedAt) >= s.after {
		rec.Transactions = append(rec.Transactions, testTxHash)
	}
	return rec, nil
}

func (s *scheduledSource) Name() string { return s.name }

func TestResultRatio(t *testing.T) {
	r := Result{
		Fast: Inclusion{Found: true, Elapsed: 210 * time.Millisecond},
		Slow: Inclusion{Found: true, Elapsed: 1900 * time.Millisecond},
	}

	ratio, ok := r.Ratio()
	if !ok {
		t.Fatal("expected ratio")
	}
	if ratio < 9.04 || ratio > 9.05 {
		t.Fatalf("unexpected ratio %f", ratio)
	}
	if got := blocks.FormatRatio(ratio); got != "9.0x" {
		t.Fatalf("unexpected formatted ratio %q", got)
	}
	if got := blocks.FormatElapsed(r.Fast.Elapsed); got != "0.21s" {
		t.Fatalf("unexpected elapsed %q", got)
	}

	r.Slow.Found = false
	if _, ok := r.Ratio(); ok {
		t.Fatal("ratio should need both inclusions")
	}
}

func TestProbeBothSources(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 20 * time.Millisecond, fail: 1}
	slow := &scheduledSource{name: "slow", after: 150 * time.Millisecond}
	fast.arm()
	slow.arm()

	p := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond})
	p.Start(context.Background(), testTxHash)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	r := p.Result()
	if !r.Complete() {
		t.Fatalf("expected both inclusions, got %+v", r)
	}
	if r.Fast.Elapsed >= r.Slow.Elapsed {
		t.Fatalf("fast source should win: fast %s slow %s", r.Fast.Elapsed, r.Slow.Elapsed)
	}
	if ratio, ok := r.Ratio(); !ok || ratio <= 1 {
		t.Fatalf("unexpected ratio %f", ratio)
	}

	// loops stop once they matched
	calls := fast.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if fast.calls.Load() != calls {
		t.Fatal("fast loop kept polling after the match")
	}
}

func TestProbeStopDiscardsResults(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 40 * time.Millisecond}
	slow := &scheduledSource{name: "slow", after: 40 * time.Millisecond}
	fast.arm()
	slow.arm()

	p := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond})
	p.Start(context.Background(), testTxHash)
	p.Stop()

	time.Sleep(80 * time.Millisecond)

	r := p.Result()
	if r.Fast.Found || r.Slow.Found {
		t.Fatalf("stopped probe recorded a result: %+v", r)
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait after stop: %v", err)
	}
}

func TestProbeRestartCancelsPrevious(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 10 * time.Millisecond}
	slow := &scheduledSource{name: "slow", after: time.Hour}
	fast.arm()
	slow.arm()

	p := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond})
	p.Start(context.Background(), "0x01")
	p.Start(context.Background(), testTxHash)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !p.Result().Fast.Found {
		if time.Now().After(deadline) {
			t.Fatal("fast source never matched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r := p.Result()
	if r.TxHash != testTxHash {
		t.Fatalf("result belongs to %s", r.TxHash)
	}
	if r.Slow.Found {
		t.Fatal("slow source should still be waiting")
	}
}

func TestProbeTimeout(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 10 * time.Millisecond}
	slow := &scheduledSource{name: "slow", after: time.Hour}
	fast.arm()
	slow.arm()

	p := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond, Timeout: 100 * time.Millisecond})
	p.Start(context.Background(), testTxHash)

	err := p.Wait(context.Background())
	if !errors.Is(err, ErrProbeTimeout) {
		t.Fatalf("expected ErrProbeTimeout, got %v", err)
	}

	r := p.Result()
	if !r.Fast.Found || r.Slow.Found {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestCalculatePercentiles(t *testing.T) {
	data := []time.Duration{
		500 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond,
		200 * time.Millisecond, 400 * time.Millisecond,
	}

	got := calculatePercentiles(data)
	want := "P10: 100ms P25: 200ms P50: 300ms P75: 400ms P90: 400ms"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if data[0] != 500*time.Millisecond {
		t.Fatal("input should not be reordered")
	}
	if calculatePercentiles(nil) != "" {
		t.Fatal("expected empty string for no data")
	}
}
