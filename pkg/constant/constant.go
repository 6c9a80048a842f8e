package constant

import (
	"errors"
	"time"
)

// Base Sepolia endpoints used by default.
const (
	FlashblocksWSURI   = "wss://sepolia.flashblocks.base.org/ws"
	FullBlocksRPCURI   = "https://sepolia.base.org"
	FlashblocksRPCURI  = "https://sepolia-preconf.base.org"
	BlockExplorerURI   = "https://sepolia.basescan.org/"
	NetworkName        = "Base Sepolia"
	BaseSepoliaChainID = 84532
)

const (
	FeedCapacity = 20

	ReconnectDelay = 5 * time.Second
	ReadTimeout    = 10 * time.Second
	PollInterval   = 2 * time.Second
	ProbeInterval  = 200 * time.Millisecond
	RenderInterval = 2 * time.Second

	// DefaultGasLimit is assumed when a flashblock carries no base gas limit.
	DefaultGasLimit = 30_000_000

	// TestTransferWei is 0.001 ETH.
	TestTransferWei = 1_000_000_000_000_000
)

var EmptyResponseFromNode = errors.New("got empty response from node")
