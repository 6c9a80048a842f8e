package cmptxspeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"flashcompare/internal/pkg/metrics"
	"flashcompare/pkg/blocks"
	"flashcompare/pkg/cmpfeeds/feeds"
	"flashcompare/pkg/constant"

	log "github.com/sirupsen/logrus"
)

// ErrProbeTimeout is returned by Wait when the probe deadline passed before both
// sources saw the transaction.
var ErrProbeTimeout = errors.New("probe timed out")

// Inclusion is the moment a source first showed the transaction.
type Inclusion struct {
	Found   bool
	At      time.Time
	Elapsed time.Duration
}

// Result is a snapshot of a probe.
type Result struct {
	TxHash string
	SentAt time.Time

	Fast Inclusion
	Slow Inclusion
}

// Complete reports whether both sources have seen the transaction.
func (r Result) Complete() bool {
	return r.Fast.Found && r.Slow.Found
}

// Ratio returns how many times faster the fast source was. ok is false until both
// sources have seen the transaction.
func (r Result) Ratio() (ratio float64, ok bool) {
	if !r.Complete() || r.Fast.Elapsed <= 0 {
		return 0, false
	}
	return float64(r.Slow.Elapsed) / float64(r.Fast.Elapsed), true
}

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	// Interval between pending block checks of each source.
	Interval time.Duration
	// Timeout bounds a probe. Zero waits until both sources saw the transaction.
	Timeout time.Duration
}

// Probe polls the pending block of a fast and a slow source until both include a
// transaction.
type Probe struct {
	fast feeds.BlockSource
	slow feeds.BlockSource
	cfg  ProbeConfig
	now  func() time.Time

	fastMetrics *metrics.Probe
	slowMetrics *metrics.Probe

	mu     sync.Mutex
	run    uint64
	result Result
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewProbe creates a probe over the two sources.
func NewProbe(fast, slow feeds.BlockSource, cfg ProbeConfig) *Probe {
	if cfg.Interval <= 0 {
		cfg.Interval = constant.ProbeInterval
	}
	return &Probe{
		fast:        fast,
		slow:        slow,
		cfg:         cfg,
		now:         time.Now,
		fastMetrics: metrics.NewProbe(fast.Name()),
		slowMetrics: metrics.NewProbe(slow.Name()),
	}
}

// Start cancels a running probe and starts watching for txHash. The send time is
// the moment Start is called.
func (p *Probe) Start(ctx context.Context, txHash string) {
	p.StartAt(ctx, txHash, p.now())
}

// StartAt is Start with an explicit send time.
func (p *Probe) StartAt(ctx context.Context, txHash string, sentAt time.Time) {
	p.Stop()

	var cancel context.CancelFunc
	if p.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	done := make(chan struct{})

	p.mu.Lock()
	p.run++
	run := p.run
	p.result = Result{TxHash: txHash, SentAt: sentAt}
	p.cancel = cancel
	p.done = done
	p.err = nil
	p.mu.Unlock()

	log.Infof("probing %s on %s and %s", txHash, p.fast.Name(), p.slow.Name())

	var wg sync.WaitGroup
	wg.Add(2)
	go p.watch(ctx, &wg, run, p.fast, p.fastMetrics, func(r *Result) *Inclusion { return &r.Fast })
	go p.watch(ctx, &wg, run, p.slow, p.slowMetrics, func(r *Result) *Inclusion { return &r.Slow })

	go func() {
		wg.Wait()

		p.mu.Lock()
		if p.run == run && !p.result.Complete() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.err = ErrProbeTimeout
		}
		p.mu.Unlock()

		cancel()
		close(done)
	}()
}

func (p *Probe) watch(
	ctx context.Context,
	wg *sync.WaitGroup,
	run uint64,
	source feeds.BlockSource,
	m *metrics.Probe,
	inclusion func(*Result) *Inclusion,
) {
	defer wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rec, err := source.PendingBlock(ctx)
		m.ObserveCheck(err)
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("error checking %s pending block: %v", source.Name(), err)
			}
			continue
		}

		txHash, found := p.matches(run, rec)
		if !found {
			continue
		}

		at := p.now()

		p.mu.Lock()
		if p.run != run || ctx.Err() != nil {
			p.mu.Unlock()
			return
		}
		inc := inclusion(&p.result)
		inc.Found = true
		inc.At = at
		inc.Elapsed = at.Sub(p.result.SentAt)
		elapsed := inc.Elapsed
		p.mu.Unlock()

		m.ObserveInclusion(elapsed)
		log.Infof("%s included in %s pending block %d after %s",
			txHash, source.Name(), rec.Number, blocks.FormatElapsed(elapsed))
		return
	}
}

func (p *Probe) matches(run uint64, rec blocks.Record) (string, bool) {
	p.mu.Lock()
	txHash := p.result.TxHash
	current := p.run == run
	p.mu.Unlock()

	return txHash, current && rec.Contains(txHash)
}

// Wait blocks until the running probe finished or ctx is done.
func (p *Probe) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop cancels the running probe and waits for its loops to exit. Checks still in
// flight are discarded.
func (p *Probe) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.run++
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Result returns a snapshot of the current or last probe.
func (p *Probe) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}
