package cmptxspeed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"flashcompare/pkg/constant"

	"github.com/ethereum/go-ethereum/common"
)

type fakeSender struct {
	chainID int64
	failOn  map[int]bool
	sources []*scheduledSource
	calls   int
}

func (s *fakeSender) Address() common.Address {
	return common.HexToAddress("0x4200000000000000000000000000000000000011")
}

func (s *fakeSender) CheckNetwork(_ context.Context, expected int64) error {
	if s.chainID != expected {
		return fmt.Errorf("%w: connected to chain %d", ErrWrongNetwork, s.chainID)
	}
	return nil
}

func (s *fakeSender) SendSelfTransfer(_ context.Context, _ *big.Int) (common.Hash, error) {
	s.calls++
	if s.failOn[s.calls] {
		return common.Hash{}, errors.New("insufficient funds")
	}
	for _, src := range s.sources {
		src.arm()
	}
	return common.HexToHash(testTxHash), nil
}

func newTestTxSpeedService() (*TxSpeedCompareService, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &TxSpeedCompareService{out: out, loc: time.UTC}, out
}

func TestTxSpeedRounds(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 10 * time.Millisecond}
	slow := &scheduledSource{name: "slow", after: 60 * time.Millisecond}
	probe := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond, Timeout: 2 * time.Second})

	sender := &fakeSender{
		chainID: constant.BaseSepoliaChainID,
		failOn:  map[int]bool{2: true},
		sources: []*scheduledSource{fast, slow},
	}

	var dumpBuf bytes.Buffer
	dump := csv.NewWriter(&dumpBuf)

	s, out := newTestTxSpeedService()
	results, err := s.run(context.Background(), sender, probe, constant.BaseSepoliaChainID,
		3, time.Millisecond, big.NewInt(constant.TestTransferWei), dump)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(results))
	}
	if results[1].err == nil {
		t.Fatal("second round should have failed")
	}
	for _, i := range []int{0, 2} {
		if !results[i].result.Complete() {
			t.Fatalf("round %d incomplete: %+v", i+1, results[i].result)
		}
	}

	s.summary(results)

	text := out.String()
	for _, want := range []string{
		"Transaction hash: " + testTxHash,
		"Flashblock: ",
		"Full block: ",
		"Speed improvement: ",
		"Sent 3 test transactions, 1 failed",
		"Flashblock inclusion (2): P10: ",
		"Average speed improvement: ",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}

	dump.Flush()
	rows, err := csv.NewReader(&dumpBuf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if rows[2][6] != "insufficient funds" {
		t.Fatalf("failed round should carry the error, got %v", rows[2])
	}
	if rows[1][3] == "" || rows[1][4] == "" || rows[1][5] == "" {
		t.Fatalf("completed round should carry timings, got %v", rows[1])
	}
}

func TestTxSpeedWrongNetwork(t *testing.T) {
	fast := &scheduledSource{name: "fast"}
	slow := &scheduledSource{name: "slow"}
	probe := NewProbe(fast, slow, ProbeConfig{})

	s, out := newTestTxSpeedService()
	_, err := s.run(context.Background(), &fakeSender{chainID: 1}, probe, constant.BaseSepoliaChainID,
		1, 0, big.NewInt(1), nil)
	if !errors.Is(err, ErrWrongNetwork) {
		t.Fatalf("expected ErrWrongNetwork, got %v", err)
	}
	if !strings.Contains(out.String(), "chain id: 84532") || !strings.Contains(out.String(), constant.FullBlocksRPCURI) {
		t.Fatalf("add-network parameters missing:\n%s", out.String())
	}
	if fast.calls.Load() != 0 {
		t.Fatal("probe should not run on the wrong network")
	}
}

func TestProbeServiceRun(t *testing.T) {
	fast := &scheduledSource{name: "fast", after: 10 * time.Millisecond}
	slow := &scheduledSource{name: "slow", after: 30 * time.Millisecond}
	fast.arm()
	slow.arm()
	probe := NewProbe(fast, slow, ProbeConfig{Interval: 5 * time.Millisecond})

	out := &bytes.Buffer{}
	s := &ProbeService{out: out, loc: time.UTC}

	if err := s.run(context.Background(), probe, "0x1234"); err == nil {
		t.Fatal("expected error for malformed hash")
	}

	if err := s.run(context.Background(), probe, testTxHash); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Speed improvement: ") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

type staticChainID struct {
	id  int64
	err error
}

func (s staticChainID) ChainID(context.Context) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return big.NewInt(s.id), nil
}

func TestNetworkCheck(t *testing.T) {
	tests := []struct {
		name    string
		clients map[string]chainIDReader
		wantErr error
	}{
		{
			name: "both on base sepolia",
			clients: map[string]chainIDReader{
				"fast": staticChainID{id: constant.BaseSepoliaChainID},
				"slow": staticChainID{id: constant.BaseSepoliaChainID},
			},
		},
		{
			name: "wrong chain",
			clients: map[string]chainIDReader{
				"fast": staticChainID{id: constant.BaseSepoliaChainID},
				"slow": staticChainID{id: 8453},
			},
			wantErr: ErrWrongNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			s := &NetworkService{out: out}

			err := s.check(context.Background(), constant.BaseSepoliaChainID, []string{"fast", "slow"}, tt.clients)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(out.String(), "network name: Base Sepolia") {
				t.Fatalf("add-network parameters missing:\n%s", out.String())
			}
		})
	}

	s := &NetworkService{out: &bytes.Buffer{}}
	err := s.check(context.Background(), constant.BaseSepoliaChainID, []string{"down"},
		map[string]chainIDReader{"down": staticChainID{err: errors.New("dial tcp: refused")}})
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
