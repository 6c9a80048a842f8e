package flags

import (
	"time"

	"flashcompare/pkg/constant"

	"github.com/urfave/cli/v2"
)

func env(name string) []string {
	return []string{"FLASHCOMPARE_" + name}
}

// CLI flags for flashcompare
var (
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level, possible values: 'trace', 'debug', 'info', 'warn', 'error'",
		Value:   "info",
		EnvVars: env("LOG_LEVEL"),
	}
	LogFile = &cli.StringFlag{
		Name:    "log-file",
		Usage:   "write logs to this file instead of stderr, 'auto' creates logs/logfile-<timestamp>.log",
		EnvVars: env("LOG_FILE"),
	}

	FlashblocksWSURI = &cli.StringFlag{
		Name:    "flashblocks-ws-uri",
		Usage:   "flashblocks websocket stream uri",
		Value:   constant.FlashblocksWSURI,
		EnvVars: env("FLASHBLOCKS_WS_URI"),
	}
	FlashblocksAuthHeader = &cli.StringFlag{
		Name:    "flashblocks-auth-header",
		Usage:   "authorization header sent when connecting to the flashblocks stream",
		EnvVars: env("FLASHBLOCKS_AUTH_HEADER"),
	}
	FlashblocksRPCURI = &cli.StringFlag{
		Name:    "flashblocks-rpc-uri",
		Usage:   "flashblocks aware (preconf) json-rpc uri",
		Value:   constant.FlashblocksRPCURI,
		EnvVars: env("FLASHBLOCKS_RPC_URI"),
	}
	FullBlocksRPCURI = &cli.StringFlag{
		Name:    "fullblocks-rpc-uri",
		Usage:   "json-rpc uri serving full blocks",
		Value:   constant.FullBlocksRPCURI,
		EnvVars: env("FULLBLOCKS_RPC_URI"),
	}

	PollInterval = &cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "interval between pending block requests of the full blocks feed",
		Value:   constant.PollInterval,
		EnvVars: env("POLL_INTERVAL"),
	}
	ReconnectDelay = &cli.DurationFlag{
		Name:    "reconnect-delay",
		Usage:   "delay before reconnecting to the flashblocks stream",
		Value:   constant.ReconnectDelay,
		EnvVars: env("RECONNECT_DELAY"),
	}
	ReconnectJitter = &cli.DurationFlag{
		Name:    "reconnect-jitter",
		Usage:   "random delay added to reconnect-delay, 0 disables it",
		EnvVars: env("RECONNECT_JITTER"),
	}
	MaxReconnects = &cli.IntFlag{
		Name:    "max-reconnects",
		Usage:   "give up after this many consecutive failed connections, 0 retries forever",
		EnvVars: env("MAX_RECONNECTS"),
	}
	ReadTimeout = &cli.DurationFlag{
		Name:    "read-timeout",
		Usage:   "reconnect when the flashblocks stream is silent this long, negative disables it",
		Value:   constant.ReadTimeout,
		EnvVars: env("READ_TIMEOUT"),
	}
	FeedCapacity = &cli.IntFlag{
		Name:    "feed-capacity",
		Usage:   "number of records kept per feed",
		Value:   constant.FeedCapacity,
		EnvVars: env("FEED_CAPACITY"),
	}
	RenderInterval = &cli.DurationFlag{
		Name:    "render-interval",
		Usage:   "interval between side by side renders, 0 disables terminal output",
		Value:   constant.RenderInterval,
		EnvVars: env("RENDER_INTERVAL"),
	}
	Duration = &cli.DurationFlag{
		Name:    "duration",
		Usage:   "stop after this long, 0 runs until interrupted",
		EnvVars: env("DURATION"),
	}
	UTC = &cli.BoolFlag{
		Name:    "utc",
		Usage:   "show timestamps in UTC instead of local time",
		EnvVars: env("UTC"),
	}
	ViewerAddr = &cli.StringFlag{
		Name:    "viewer-addr",
		Usage:   "listen address of the http viewer, empty disables it",
		EnvVars: env("VIEWER_ADDR"),
	}
	ViewerOrigins = &cli.StringSliceFlag{
		Name:    "viewer-origins",
		Usage:   "origins allowed to call the viewer",
		Value:   cli.NewStringSlice("*"),
		EnvVars: env("VIEWER_ORIGINS"),
	}
	Dump = &cli.StringFlag{
		Name:    "dump",
		Usage:   "write a csv file with every record or round to this path",
		EnvVars: env("DUMP"),
	}

	SenderPrivateKey = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "hex encoded private key of the wallet sending test transactions",
		EnvVars: env("PRIVATE_KEY"),
	}
	ChainID = &cli.Int64Flag{
		Name:    "chain-id",
		Usage:   "expected chain id",
		Value:   constant.BaseSepoliaChainID,
		EnvVars: env("CHAIN_ID"),
	}
	Rounds = &cli.IntFlag{
		Name:    "rounds",
		Usage:   "number of test transactions to send",
		Value:   1,
		EnvVars: env("ROUNDS"),
	}
	Delay = &cli.DurationFlag{
		Name:    "delay",
		Usage:   "delay between rounds",
		Value:   5 * time.Second,
		EnvVars: env("DELAY"),
	}
	ValueWei = &cli.Int64Flag{
		Name:    "value-wei",
		Usage:   "value of the self transfer in wei",
		Value:   constant.TestTransferWei,
		EnvVars: env("VALUE_WEI"),
	}
	ProbeInterval = &cli.DurationFlag{
		Name:    "probe-interval",
		Usage:   "interval between pending block checks while probing",
		Value:   constant.ProbeInterval,
		EnvVars: env("PROBE_INTERVAL"),
	}
	ProbeTimeout = &cli.DurationFlag{
		Name:    "probe-timeout",
		Usage:   "give up probing after this long, 0 waits until found",
		EnvVars: env("PROBE_TIMEOUT"),
	}
	TxHash = &cli.StringFlag{
		Name:     "tx-hash",
		Usage:    "hash of an already submitted transaction",
		Required: true,
		EnvVars:  env("TX_HASH"),
	}
)
