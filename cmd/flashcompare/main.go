package main

import (
	"errors"
	"io/fs"
	"os"

	"flashcompare/internal/pkg/flags"
	"flashcompare/internal/pkg/logger"
	"flashcompare/pkg/cmpfeeds"
	"flashcompare/pkg/cmptxspeed"
	"flashcompare/pkg/viewer"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	// values already in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("cannot load .env: %v", err)
	}

	var closeLog func() error

	app := &cli.App{
		Name:  "flashcompare",
		Usage: "compares Base flashblocks with full blocks",
		Flags: []cli.Flag{
			flags.LogLevel,
			flags.LogFile,
		},
		Before: func(c *cli.Context) error {
			var err error
			closeLog, err = logger.Setup(c.String(flags.LogLevel.Name), c.String(flags.LogFile.Name))
			return err
		},
		After: func(c *cli.Context) error {
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "blocks",
				Usage: "streams flashblocks and full blocks side by side",
				Flags: []cli.Flag{
					flags.FlashblocksWSURI,
					flags.FlashblocksAuthHeader,
					flags.FullBlocksRPCURI,
					flags.PollInterval,
					flags.ReconnectDelay,
					flags.ReconnectJitter,
					flags.MaxReconnects,
					flags.ReadTimeout,
					flags.FeedCapacity,
					flags.RenderInterval,
					flags.Duration,
					flags.UTC,
					flags.ViewerAddr,
					flags.ViewerOrigins,
					flags.Dump,
				},
				Action: cmpfeeds.NewCompareBlocksService(viewer.Serve).Run,
			},
			{
				Name: "txspeed",
				Usage: "sends test transactions to the sender's own address and measures " +
					"how long they take to appear in a flashblock and in a full block",
				Flags: []cli.Flag{
					flags.FlashblocksRPCURI,
					flags.FullBlocksRPCURI,
					flags.SenderPrivateKey,
					flags.ChainID,
					flags.Rounds,
					flags.Delay,
					flags.ValueWei,
					flags.ProbeInterval,
					flags.ProbeTimeout,
					flags.UTC,
					flags.Dump,
				},
				Action: cmptxspeed.NewTxSpeedCompareService().Run,
			},
			{
				Name:  "probe",
				Usage: "measures inclusion latency of an already submitted transaction",
				Flags: []cli.Flag{
					flags.FlashblocksRPCURI,
					flags.FullBlocksRPCURI,
					flags.TxHash,
					flags.ProbeInterval,
					flags.ProbeTimeout,
					flags.UTC,
				},
				Action: cmptxspeed.NewProbeService().Run,
			},
			{
				Name:  "network",
				Usage: "checks the chain id of both rpc endpoints and prints the parameters to add the network",
				Flags: []cli.Flag{
					flags.FlashblocksRPCURI,
					flags.FullBlocksRPCURI,
					flags.ChainID,
				},
				Action: cmptxspeed.NewNetworkService().Run,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
