package cmptxspeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"flashcompare/internal/pkg/clock"
	"flashcompare/internal/pkg/flags"
	"flashcompare/pkg/blocks"
	"flashcompare/pkg/cmpfeeds/feeds"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const reportTimeFormat = "15:04:05.000"

type sender interface {
	Address() common.Address
	CheckNetwork(ctx context.Context, expected int64) error
	SendSelfTransfer(ctx context.Context, value *big.Int) (common.Hash, error)
}

type roundResult struct {
	round  int
	result Result
	err    error
}

// TxSpeedCompareService sends test transactions and measures how long each takes to
// show up in a flashblock and in a full block.
type TxSpeedCompareService struct {
	out io.Writer
	loc *time.Location
}

// NewTxSpeedCompareService creates and initializes TxSpeedCompareService instance.
func NewTxSpeedCompareService() *TxSpeedCompareService {
	return &TxSpeedCompareService{out: os.Stdout, loc: time.Local}
}

// Run is an entry point to the TxSpeedCompareService.
func (s *TxSpeedCompareService) Run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool(flags.UTC.Name) {
		s.loc = time.UTC
	}

	var (
		fullBlocksURI = c.String(flags.FullBlocksRPCURI.Name)
		chainID       = c.Int64(flags.ChainID.Name)
		rounds        = c.Int(flags.Rounds.Name)
		delay         = c.Duration(flags.Delay.Name)
		value         = big.NewInt(c.Int64(flags.ValueWei.Name))
	)

	wallet, err := DialWallet(ctx, fullBlocksURI, c.String(flags.SenderPrivateKey.Name))
	if err != nil {
		if errors.Is(err, ErrNoWallet) {
			fmt.Fprintf(s.out, "A wallet is required to send test transactions, set --%s.\n", flags.SenderPrivateKey.Name)
		}
		return err
	}
	defer wallet.Close()

	probe, closeProbe, err := dialProbe(ctx, c)
	if err != nil {
		return err
	}
	defer closeProbe()

	var dump *csv.Writer
	if fileName := c.String(flags.Dump.Name); fileName != "" {
		file, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("cannot open file %q: %v", fileName, err)
		}
		defer func() {
			dump.Flush()
			if err := file.Close(); err != nil {
				log.Errorf("cannot close file %q: %v", fileName, err)
			}
		}()
		dump = csv.NewWriter(file)
	}

	results, err := s.run(ctx, wallet, probe, chainID, rounds, delay, value, dump)
	if err != nil {
		return err
	}

	s.summary(results)
	return nil
}

func dialProbe(ctx context.Context, c *cli.Context) (*Probe, func(), error) {
	fast, err := feeds.DialRPCSource(ctx, c.String(flags.FlashblocksRPCURI.Name), blocks.Flashblocks)
	if err != nil {
		return nil, nil, err
	}

	slow, err := feeds.DialRPCSource(ctx, c.String(flags.FullBlocksRPCURI.Name), blocks.FullBlocks)
	if err != nil {
		fast.Close()
		return nil, nil, err
	}

	probe := NewProbe(fast, slow, ProbeConfig{
		Interval: c.Duration(flags.ProbeInterval.Name),
		Timeout:  c.Duration(flags.ProbeTimeout.Name),
	})

	return probe, func() {
		probe.Stop()
		fast.Close()
		slow.Close()
	}, nil
}

func (s *TxSpeedCompareService) run(
	ctx context.Context,
	w sender,
	probe *Probe,
	chainID int64,
	rounds int,
	delay time.Duration,
	value *big.Int,
	dump *csv.Writer,
) ([]roundResult, error) {
	if err := w.CheckNetwork(ctx, chainID); err != nil {
		if errors.Is(err, ErrWrongNetwork) {
			fmt.Fprintf(s.out, "Switch the wallet endpoint to %s. Parameters to add the network:\n%s\n",
				BaseSepolia().Name, BaseSepolia())
		}
		return nil, err
	}

	fmt.Fprintf(s.out, "Sending %d test transactions from %s\n", rounds, w.Address())

	if dump != nil {
		if err := dump.Write(dumpHeader); err != nil {
			return nil, fmt.Errorf("cannot write CSV header: %v", err)
		}
	}

	results := make([]roundResult, 0, rounds)
	for i := 1; i <= rounds; i++ {
		res := s.round(ctx, w, probe, i, value)
		results = append(results, res)
		s.dump(dump, res)

		if ctx.Err() != nil {
			break
		}

		// Add a delay to all the rounds except for the last one
		if i < rounds {
			if err := clock.SleepWithContext(ctx, delay); err != nil {
				break
			}
		}
	}

	return results, nil
}

func (s *TxSpeedCompareService) round(ctx context.Context, w sender, probe *Probe, i int, value *big.Int) roundResult {
	fmt.Fprintf(s.out, "\n----------------------------------------------------------------\nRound %d\n", i)

	hash, err := w.SendSelfTransfer(ctx, value)
	if err != nil {
		log.Errorf("round %d: %v", i, err)
		return roundResult{round: i, err: err}
	}
	sentAt := time.Now()

	probe.StartAt(ctx, hash.Hex(), sentAt)
	err = probe.Wait(ctx)
	probe.Stop()

	res := roundResult{round: i, result: probe.Result(), err: err}
	if err != nil {
		log.Errorf("round %d: %v", i, err)
	}
	report(s.out, res.result, s.loc)

	return res
}

// report prints the timings of one probe.
func report(out io.Writer, r Result, loc *time.Location) {
	fmt.Fprintf(out, "Transaction hash: %s\n", r.TxHash)
	fmt.Fprintf(out, "Sent at: %s\n", r.SentAt.In(loc).Format(reportTimeFormat))

	for _, line := range []struct {
		name string
		inc  Inclusion
	}{
		{"Flashblock", r.Fast},
		{"Full block", r.Slow},
	} {
		if !line.inc.Found {
			fmt.Fprintf(out, "%s: not seen\n", line.name)
			continue
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", line.name, line.inc.At.In(loc).Format(reportTimeFormat), blocks.FormatElapsed(line.inc.Elapsed))
	}

	if ratio, ok := r.Ratio(); ok {
		fmt.Fprintf(out, "Speed improvement: %s faster with flashblocks\n", blocks.FormatRatio(ratio))
	}
}

func (s *TxSpeedCompareService) summary(results []roundResult) {
	var (
		fast, slow []time.Duration
		failed     int
		ratioSum   float64
		ratios     int
	)

	for _, res := range results {
		if res.err != nil && !res.result.Fast.Found && !res.result.Slow.Found {
			failed++
			continue
		}
		if res.result.Fast.Found {
			fast = append(fast, res.result.Fast.Elapsed)
		}
		if res.result.Slow.Found {
			slow = append(slow, res.result.Slow.Elapsed)
		}
		if ratio, ok := res.result.Ratio(); ok {
			ratioSum += ratio
			ratios++
		}
	}

	fmt.Fprintf(s.out, "\n----------------------------------------------------------------\n"+
		"Sent %d test transactions, %d failed\n"+
		"Flashblock inclusion (%d): %s\n"+
		"Full block inclusion (%d): %s\n",
		len(results), failed,
		len(fast), calculatePercentiles(fast),
		len(slow), calculatePercentiles(slow))

	if ratios > 0 {
		fmt.Fprintf(s.out, "Average speed improvement: %s\n", blocks.FormatRatio(ratioSum/float64(ratios)))
	}
}

var dumpHeader = []string{"Round", "Hash", "Sent", "Flashblock ms", "Full block ms", "Ratio", "Error"}

func (s *TxSpeedCompareService) dump(w *csv.Writer, res roundResult) {
	if w == nil {
		return
	}

	elapsed := func(inc Inclusion) string {
		if !inc.Found {
			return ""
		}
		return strconv.FormatInt(inc.Elapsed.Milliseconds(), 10)
	}

	var ratio, errText string
	if r, ok := res.result.Ratio(); ok {
		ratio = strconv.FormatFloat(r, 'f', 2, 64)
	}
	if res.err != nil {
		errText = res.err.Error()
	}

	sent := ""
	if !res.result.SentAt.IsZero() {
		sent = res.result.SentAt.UTC().Format(time.RFC3339Nano)
	}

	if err := w.Write([]string{
		strconv.Itoa(res.round),
		res.result.TxHash,
		sent,
		elapsed(res.result.Fast),
		elapsed(res.result.Slow),
		ratio,
		errText,
	}); err != nil {
		log.Errorf("cannot add round %d to dump file: %v", res.round, err)
	}
}

// ProbeService measures inclusion latency of an already submitted transaction.
type ProbeService struct {
	out io.Writer
	loc *time.Location
}

// NewProbeService creates a ProbeService.
func NewProbeService() *ProbeService {
	return &ProbeService{out: os.Stdout, loc: time.Local}
}

// Run is an entry point to the ProbeService.
func (s *ProbeService) Run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool(flags.UTC.Name) {
		s.loc = time.UTC
	}

	probe, closeProbe, err := dialProbe(ctx, c)
	if err != nil {
		return err
	}
	defer closeProbe()

	return s.run(ctx, probe, c.String(flags.TxHash.Name))
}

func (s *ProbeService) run(ctx context.Context, probe *Probe, txHash string) error {
	if len(txHash) != 66 {
		return fmt.Errorf("invalid transaction hash %q", txHash)
	}

	probe.Start(ctx, txHash)
	err := probe.Wait(ctx)
	probe.Stop()

	report(s.out, probe.Result(), s.loc)
	return err
}
