package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashcompare/internal/pkg/clock"
	"flashcompare/internal/pkg/metrics"
	"flashcompare/internal/pkg/ws"
	"flashcompare/pkg/blocks"
	"flashcompare/pkg/constant"

	log "github.com/sirupsen/logrus"
)

// ErrReconnectsExhausted is returned once the configured reconnect limit is hit.
var ErrReconnectsExhausted = errors.New("reconnect attempts exhausted")

// FlashblocksConfig configures the flashblocks websocket ingester.
type FlashblocksConfig struct {
	URI        string
	AuthHeader string

	// ReconnectDelay is the fixed wait before reconnecting.
	ReconnectDelay time.Duration
	// ReconnectJitter adds a random [0, jitter) delay on top. Zero disables it.
	ReconnectJitter time.Duration
	// MaxReconnects bounds consecutive failed sessions. Zero means unbounded.
	MaxReconnects int
	// ReadTimeout fails a session that has seen no frame, pong included, for this
	// long. Zero uses constant.ReadTimeout, negative disables it.
	ReadTimeout time.Duration
}

// Flashblocks keeps one websocket connection to the flashblocks stream and
// reconnects whenever it drops.
type Flashblocks struct {
	cfg     FlashblocksConfig
	metrics *metrics.Feed
}

// NewFlashblocks creates the ingester, filling in defaults.
func NewFlashblocks(cfg FlashblocksConfig, m *metrics.Feed) *Flashblocks {
	if cfg.URI == "" {
		cfg.URI = constant.FlashblocksWSURI
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = constant.ReconnectDelay
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = constant.ReadTimeout
	}
	if m == nil {
		m = metrics.NewFeed(string(blocks.Flashblocks))
	}
	return &Flashblocks{cfg: cfg, metrics: m}
}

// Receive runs connection sessions until ctx is cancelled or the reconnect limit is
// reached.
func (f *Flashblocks) Receive(ctx context.Context, sink Sink) error {
	failures := 0

	for {
		f.setStatus(sink, StatusConnecting)
		log.Infof("Initiating connection to %s %v", f.Name(), f.cfg.URI)

		received, err := f.session(ctx, sink)
		if ctx.Err() != nil {
			log.Infof("stop %s feed", f.Name())
			return nil
		}

		switch {
		case err == nil, ws.IsClosed(err):
			f.setStatus(sink, StatusClosed)
			log.Warnf("%s connection closed, reconnecting in %s: %v", f.Name(), f.cfg.ReconnectDelay, err)
		default:
			f.setStatus(sink, StatusError)
			log.Errorf("%s connection error, reconnecting in %s: %v", f.Name(), f.cfg.ReconnectDelay, err)
		}

		if received {
			failures = 0
		}
		failures++
		if f.cfg.MaxReconnects > 0 && failures > f.cfg.MaxReconnects {
			return fmt.Errorf("%s: %w after %d attempts", f.Name(), ErrReconnectsExhausted, f.cfg.MaxReconnects)
		}

		if err := clock.SleepWithContext(ctx, clock.Jitter(f.cfg.ReconnectDelay, f.cfg.ReconnectJitter)); err != nil {
			log.Infof("stop %s feed", f.Name())
			return nil
		}
	}
}

// session reads one connection until it fails. It reports whether any message was
// received so that a healthy session resets the failure count.
func (f *Flashblocks) session(ctx context.Context, sink Sink) (bool, error) {
	conn, err := ws.NewConnection(ctx, f.cfg.URI, f.cfg.AuthHeader, f.cfg.ReadTimeout)
	if err != nil {
		return false, fmt.Errorf("cannot establish connection to %s: %w", f.cfg.URI, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			if err := conn.Close(); err != nil {
				log.Debugf("cannot close socket connection to %s: %v", f.cfg.URI, err)
			}
		}
	}()

	f.setStatus(sink, StatusConnected)
	log.Infof("%s connection to %s established", f.Name(), f.cfg.URI)

	received := false
	for {
		data, err := conn.NextMessage()
		if err != nil {
			return received, err
		}
		received = true

		rec, err := blocks.DecodeFlashblock(data, time.Now())
		if err != nil {
			f.metrics.ObserveDecodeError()
			log.Errorf("failed to decode %s message of %d bytes: %v", f.Name(), len(data), err)
			continue
		}

		if sink.Paused() {
			log.Debugf("skipping %s message while paused", f.Name())
			continue
		}

		sink.Ingest(ctx, rec)
	}
}

func (f *Flashblocks) setStatus(sink Sink, status Status) {
	f.metrics.ObserveStatus(string(status))
	sink.SetStatus(status)
}

func (f *Flashblocks) Name() string {
	return "FlashblocksWS"
}
