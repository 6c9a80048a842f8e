package cmpfeeds

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"flashcompare/internal/pkg/metrics"
	"flashcompare/pkg/blocks"
	"flashcompare/pkg/cmpfeeds/feeds"
	"flashcompare/pkg/feedbuffer"

	log "github.com/sirupsen/logrus"
)

// ErrFeedStopped is returned by feed operations once the feed loop has exited.
var ErrFeedStopped = errors.New("feed stopped")

// Feed owns one buffer. Every read and write of the buffer happens on the goroutine
// running Run, so ingestion order is the order records arrive on the channel.
type Feed struct {
	name   string
	buffer *feedbuffer.Buffer
	status feeds.Status
	loc    *time.Location

	records  chan blocks.Record
	handlers chan handler
	done     chan struct{}

	paused atomic.Bool

	metrics     *metrics.Feed
	onAccept    func(blocks.Record)
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// FeedOption customises a Feed.
type FeedOption func(*Feed)

// WithOnAccept registers a callback invoked on the feed goroutine for every record
// accepted by the buffer.
func WithOnAccept(fn func(blocks.Record)) FeedOption {
	return func(f *Feed) { f.onAccept = fn }
}

// WithLocation sets the time zone used for formatted timestamps.
func WithLocation(loc *time.Location) FeedOption {
	return func(f *Feed) { f.loc = loc }
}

// NewFeed creates a feed holding at most capacity records.
func NewFeed(name string, capacity int, opts ...FeedOption) *Feed {
	const bufSize = 64

	f := &Feed{
		name:     name,
		buffer:   feedbuffer.New(capacity),
		status:   feeds.StatusConnecting,
		loc:      time.Local,
		records:  make(chan blocks.Record, bufSize),
		handlers: make(chan handler),
		done:     make(chan struct{}),
		metrics:  metrics.NewFeed(name),

		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run processes records and handlers until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.done)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-f.handlers:
			if err := update(); err != nil {
				log.Errorf("error in %s update function: %v", f.name, err)
			}
		case rec := <-f.records:
			accepted := f.buffer.Ingest(rec)
			f.metrics.ObserveRecord(accepted)
			if !accepted {
				continue
			}
			if f.onAccept != nil {
				f.onAccept(rec)
			}
			f.changed()
		}
	}
}

func (f *Feed) changed() {
	f.paused.Store(f.buffer.IsPaused())
	if len(f.subscribers) == 0 {
		return
	}
	s := f.snapshot()
	for _, fn := range f.subscribers {
		fn(s)
	}
}

// do runs fn on the feed goroutine and waits for it.
func (f *Feed) do(fn func() error) error {
	errCh := make(chan error, 1)

	select {
	case f.handlers <- func() error {
		err := fn()
		errCh <- err
		return err
	}:
	case <-f.done:
		return ErrFeedStopped
	}

	return <-errCh
}

// Subscribe registers fn to be called on the feed goroutine with a fresh snapshot
// after every state change. fn must not block. The returned function removes it.
func (f *Feed) Subscribe(fn func(Snapshot)) (func(), error) {
	var id int
	err := f.do(func() error {
		id = f.nextSubID
		f.nextSubID++
		f.subscribers[id] = fn
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func() {
		_ = f.do(func() error {
			delete(f.subscribers, id)
			return nil
		})
	}, nil
}

// Metrics returns the collectors of the feed, shared with its ingester.
func (f *Feed) Metrics() *metrics.Feed {
	return f.metrics
}

// Name returns the feed name.
func (f *Feed) Name() string {
	return f.name
}

// Paused reports whether the buffer drops records. It is safe to call from any
// goroutine and reflects the last state change applied by the feed loop.
func (f *Feed) Paused() bool {
	return f.paused.Load()
}

// Ingest queues rec for the buffer.
func (f *Feed) Ingest(ctx context.Context, rec blocks.Record) {
	select {
	case f.records <- rec:
	case <-ctx.Done():
	case <-f.done:
	}
}

// SetStatus records the connection status reported by the ingester.
func (f *Feed) SetStatus(status feeds.Status) {
	_ = f.do(func() error {
		if f.status == status {
			return nil
		}
		f.status = status
		f.changed()
		return nil
	})
}

// Select pauses the feed on the buffered record whose sequence id renders as key.
func (f *Feed) Select(key string) error {
	return f.do(func() error {
		for _, rec := range f.buffer.Records() {
			if rec.Seq.String() == key {
				if err := f.buffer.Select(rec.Seq); err != nil {
					return err
				}
				f.changed()
				return nil
			}
		}
		return fmt.Errorf("%w: %s", feedbuffer.ErrUnknownSequence, key)
	})
}

// ClearSelection resumes live updates.
func (f *Feed) ClearSelection() error {
	return f.do(func() error {
		f.buffer.ClearSelection()
		f.changed()
		return nil
	})
}

// Pause stops accepting records.
func (f *Feed) Pause() error {
	return f.do(func() error {
		f.buffer.Pause()
		f.changed()
		return nil
	})
}

// Resume accepts records again and drops any selection.
func (f *Feed) Resume() error {
	return f.do(func() error {
		f.buffer.Resume()
		f.changed()
		return nil
	})
}

// Snapshot returns a copy of the feed state.
func (f *Feed) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := f.do(func() error {
		s = f.snapshot()
		return nil
	})
	return s, err
}

func (f *Feed) snapshot() Snapshot {
	state := f.buffer.State()

	s := Snapshot{
		Feed:   f.name,
		Status: string(f.status),
		Mode:   state.Mode.String(),
		Paused: state.IsPaused(),
	}
	if state.Mode == feedbuffer.Inspecting {
		s.Selected = state.Selected.String()
	}

	var lastBase *blocks.Record
	if base, ok := f.buffer.LastBase(); ok {
		lastBase = &base
		v := NewBlockView(base, nil, f.loc)
		s.LastBase = &v
	}

	if cur, ok := f.buffer.CurrentView(); ok {
		v := NewBlockView(cur, lastBase, f.loc)
		s.Current = &v
	}

	records := f.buffer.Records()
	s.Records = make([]BlockView, 0, len(records))
	for _, rec := range records {
		s.Records = append(s.Records, NewBlockView(rec, lastBase, f.loc))
	}

	return s
}
