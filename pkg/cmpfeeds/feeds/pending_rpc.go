package feeds

import (
	"context"
	"time"

	"flashcompare/internal/pkg/metrics"
	"flashcompare/pkg/constant"

	log "github.com/sirupsen/logrus"
)

// PendingBlocks polls a node for its pending block on a fixed interval.
//
// Polls run on a single goroutine and each request is bounded by the interval, so a
// tick that fires while a request is in flight is skipped rather than overlapped.
type PendingBlocks struct {
	source   BlockSource
	interval time.Duration
	metrics  *metrics.Feed
}

// NewPendingBlocks creates a poller. A zero interval uses constant.PollInterval.
func NewPendingBlocks(source BlockSource, interval time.Duration, m *metrics.Feed) *PendingBlocks {
	if interval <= 0 {
		interval = constant.PollInterval
	}
	if m == nil {
		m = metrics.NewFeed("fullblocks")
	}
	return &PendingBlocks{source: source, interval: interval, metrics: m}
}

// Receive polls until ctx is cancelled.
func (p *PendingBlocks) Receive(ctx context.Context, sink Sink) error {
	log.Infof("start polling %s every %s", p.Name(), p.interval)

	p.poll(ctx, sink)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("stop %s feed", p.Name())
			return nil
		case <-ticker.C:
			p.poll(ctx, sink)
		}
	}
}

func (p *PendingBlocks) poll(ctx context.Context, sink Sink) {
	if sink.Paused() {
		p.metrics.ObservePollSkipped()
		log.Debugf("skip polling %s while paused", p.Name())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	started := time.Now()
	rec, err := p.source.PendingBlock(reqCtx)
	p.metrics.ObservePoll(err, started)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Errorf("failed to fetch pending block from %s: %v", p.Name(), err)
		sink.SetStatus(StatusError)
		return
	}

	sink.SetStatus(StatusConnected)
	sink.Ingest(ctx, rec)
}

func (p *PendingBlocks) Name() string {
	return p.source.Name()
}
