package cmpfeeds

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"flashcompare/internal/pkg/flags"
	"flashcompare/pkg/blocks"
	"flashcompare/pkg/cmpfeeds/feeds"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const dumpTimestampFormat = "2006-01-02T15:04:05.000000"

// ViewerFunc serves the given feeds until ctx is cancelled.
type ViewerFunc func(ctx context.Context, addr string, origins []string, feeds ...*Feed) error

type receiver interface {
	Receive(ctx context.Context, sink feeds.Sink) error
	Name() string
}

// CompareBlocksService shows the flashblocks and full blocks feeds side by side.
type CompareBlocksService struct {
	accepted chan blocks.Record

	fast *Feed
	slow *Feed

	out      io.Writer
	dumpFile *csv.Writer

	viewer ViewerFunc
}

// NewCompareBlocksService creates the service. serveViewer may be nil, in which case
// --viewer-addr is ignored.
func NewCompareBlocksService(serveViewer ViewerFunc) *CompareBlocksService {
	const bufSize = 1000

	return &CompareBlocksService{
		accepted: make(chan blocks.Record, bufSize),
		out:      os.Stdout,
		viewer:   serveViewer,
	}
}

func (cs *CompareBlocksService) Run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d := c.Duration(flags.Duration.Name); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	loc := time.Local
	if c.Bool(flags.UTC.Name) {
		loc = time.UTC
	}

	capacity := c.Int(flags.FeedCapacity.Name)
	onAccept := WithOnAccept(func(rec blocks.Record) {
		select {
		case cs.accepted <- rec:
		default:
			log.Warnf("dump queue full, dropping %s record %s", rec.Source, rec.Seq)
		}
	})

	cs.fast = NewFeed(string(blocks.Flashblocks), capacity, onAccept, WithLocation(loc))
	cs.slow = NewFeed(string(blocks.FullBlocks), capacity, onAccept, WithLocation(loc))

	if fileName := c.String(flags.Dump.Name); fileName != "" {
		file, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("cannot open file %q: %v", fileName, err)
		}

		defer func() {
			if cs.dumpFile != nil {
				cs.dumpFile.Flush()
			}
			if err := file.Sync(); err != nil {
				log.Errorf("cannot sync contents of file %q: %v", fileName, err)
			}
			if err := file.Close(); err != nil {
				log.Errorf("cannot close file %q: %v", fileName, err)
			}
		}()

		cs.dumpFile = csv.NewWriter(file)
		if err := cs.dumpFile.Write(dumpHeader); err != nil {
			return fmt.Errorf("cannot write CSV header of file %q: %v", fileName, err)
		}
	}

	source, err := feeds.DialRPCSource(ctx, c.String(flags.FullBlocksRPCURI.Name), blocks.FullBlocks)
	if err != nil {
		return err
	}
	defer source.Close()

	fastIngester := feeds.NewFlashblocks(feeds.FlashblocksConfig{
		URI:             c.String(flags.FlashblocksWSURI.Name),
		AuthHeader:      c.String(flags.FlashblocksAuthHeader.Name),
		ReconnectDelay:  c.Duration(flags.ReconnectDelay.Name),
		ReconnectJitter: c.Duration(flags.ReconnectJitter.Name),
		MaxReconnects:   c.Int(flags.MaxReconnects.Name),
		ReadTimeout:     c.Duration(flags.ReadTimeout.Name),
	}, cs.fast.Metrics())
	slowIngester := feeds.NewPendingBlocks(source, c.Duration(flags.PollInterval.Name), cs.slow.Metrics())

	return cs.run(ctx, runConfig{
		fastIngester:   fastIngester,
		slowIngester:   slowIngester,
		renderInterval: c.Duration(flags.RenderInterval.Name),
		viewerAddr:     c.String(flags.ViewerAddr.Name),
		viewerOrigins:  c.StringSlice(flags.ViewerOrigins.Name),
	})
}

type runConfig struct {
	fastIngester   receiver
	slowIngester   receiver
	renderInterval time.Duration
	viewerAddr     string
	viewerOrigins  []string
}

func (cs *CompareBlocksService) run(ctx context.Context, cfg runConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		feedGroup    sync.WaitGroup
		readerGroup  sync.WaitGroup
		handleGroup  sync.WaitGroup
		ingestErr    error
		ingestErrMux sync.Mutex
	)

	feedGroup.Add(2)
	go func() {
		defer feedGroup.Done()
		cs.fast.Run(ctx)
	}()
	go func() {
		defer feedGroup.Done()
		cs.slow.Run(ctx)
	}()

	receive := func(r receiver, sink *Feed) {
		defer readerGroup.Done()

		log.Infof("starting %s for feed %s", r.Name(), sink.Name())
		err := r.Receive(ctx, sink)
		// anything returned after ctx is done is shutdown
		if err != nil && ctx.Err() == nil {
			log.Errorf("%s stopped: %v", r.Name(), err)
			ingestErrMux.Lock()
			if ingestErr == nil {
				ingestErr = fmt.Errorf("%s: %w", r.Name(), err)
			}
			ingestErrMux.Unlock()
			cancel()
		}
	}

	readerGroup.Add(2)
	go receive(cfg.fastIngester, cs.fast)
	go receive(cfg.slowIngester, cs.slow)

	if cfg.viewerAddr != "" && cs.viewer != nil {
		readerGroup.Add(1)
		go func() {
			defer readerGroup.Done()
			if err := cs.viewer(ctx, cfg.viewerAddr, cfg.viewerOrigins, cs.fast, cs.slow); err != nil {
				log.Errorf("viewer stopped: %v", err)
			}
		}()
	}

	handleGroup.Add(1)
	go cs.handleUpdates(ctx, &handleGroup, cfg.renderInterval)

	<-ctx.Done()

	readerGroup.Wait()
	handleGroup.Wait()
	feedGroup.Wait()
	cs.drainAccepted()

	return ingestErr
}

func (cs *CompareBlocksService) handleUpdates(ctx context.Context, wg *sync.WaitGroup, renderInterval time.Duration) {
	defer wg.Done()

	var tick <-chan time.Time
	if renderInterval > 0 {
		ticker := time.NewTicker(renderInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-cs.accepted:
			cs.dump(rec)
		case now := <-tick:
			cs.render(now)
		}
	}
}

func (cs *CompareBlocksService) render(now time.Time) {
	fast, err := cs.fast.Snapshot()
	if err != nil {
		return
	}
	slow, err := cs.slow.Snapshot()
	if err != nil {
		return
	}

	fmt.Fprintf(cs.out, "-----------------------------------------------------\n")
	if err := Render(cs.out, now, fast, slow); err != nil {
		log.Errorf("cannot render feeds: %v", err)
	}
}

func (cs *CompareBlocksService) drainAccepted() {
	for {
		select {
		case rec := <-cs.accepted:
			cs.dump(rec)
		default:
			return
		}
	}
}

var dumpHeader = []string{
	"Source", "Seq", "Block number", "Index", "Hash", "Gas used", "Gas limit", "Tx count", "Base", "Received",
}

func (cs *CompareBlocksService) dump(rec blocks.Record) {
	if cs.dumpFile == nil {
		return
	}

	row := []string{
		string(rec.Source),
		rec.Seq.String(),
		strconv.FormatUint(rec.Number, 10),
		strconv.FormatUint(rec.Index, 10),
		rec.Hash,
		strconv.FormatUint(rec.GasUsed, 10),
		strconv.FormatUint(rec.EffectiveGasLimit(nil), 10),
		strconv.Itoa(rec.TxCount()),
		strconv.FormatBool(rec.IsBase),
		rec.ReceivedAt.Format(dumpTimestampFormat),
	}
	if err := cs.dumpFile.Write(row); err != nil {
		log.Errorf("cannot add %s record %s to dump file: %v", rec.Source, rec.Seq, err)
	}
}
