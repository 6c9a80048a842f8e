package cmptxspeed

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"flashcompare/internal/pkg/flags"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// NetworkService reports which chain each configured endpoint serves.
type NetworkService struct {
	out io.Writer
}

// NewNetworkService creates a NetworkService.
func NewNetworkService() *NetworkService {
	return &NetworkService{out: os.Stdout}
}

// Run is an entry point to the NetworkService.
func (s *NetworkService) Run(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	endpoints := []string{
		c.String(flags.FlashblocksRPCURI.Name),
		c.String(flags.FullBlocksRPCURI.Name),
	}

	clients := make(map[string]chainIDReader, len(endpoints))
	for _, uri := range endpoints {
		client, err := ethclient.DialContext(ctx, uri)
		if err != nil {
			return fmt.Errorf("cannot connect to %s: %w", uri, err)
		}
		defer client.Close()
		clients[uri] = client
	}

	return s.check(ctx, c.Int64(flags.ChainID.Name), endpoints, clients)
}

func (s *NetworkService) check(ctx context.Context, expected int64, endpoints []string, clients map[string]chainIDReader) error {
	var mismatch error

	for _, uri := range endpoints {
		chainID, err := clients[uri].ChainID(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(s.out, "%s: cannot get chain id: %v\n", uri, err)
			if mismatch == nil {
				mismatch = fmt.Errorf("%s: %w", uri, err)
			}
		case chainID.IsInt64() && chainID.Int64() == expected:
			fmt.Fprintf(s.out, "%s: chain id %s, ok\n", uri, chainID)
		default:
			fmt.Fprintf(s.out, "%s: chain id %s, expected %d\n", uri, chainID, expected)
			if mismatch == nil {
				mismatch = fmt.Errorf("%w: %s serves chain %s", ErrWrongNetwork, uri, chainID)
			}
		}
	}

	fmt.Fprintf(s.out, "\nParameters to add the network to a wallet:\n%s\n", BaseSepolia())
	return mismatch
}
