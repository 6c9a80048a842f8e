package cmptxspeed

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"flashcompare/pkg/constant"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	log "github.com/sirupsen/logrus"
)

const transferGas = params.TxGas

var (
	// ErrNoWallet is returned when no usable private key was configured.
	ErrNoWallet = errors.New("no wallet configured")
	// ErrWrongNetwork is returned when the endpoint serves a different chain.
	ErrWrongNetwork = errors.New("wrong network")
)

// NetworkParams are the values a wallet needs to add the network.
type NetworkParams struct {
	Name        string
	ChainID     int64
	RPCURI      string
	ExplorerURI string
	Currency    string
}

// BaseSepolia returns the add-network parameters of Base Sepolia.
func BaseSepolia() NetworkParams {
	return NetworkParams{
		Name:        constant.NetworkName,
		ChainID:     constant.BaseSepoliaChainID,
		RPCURI:      constant.FullBlocksRPCURI,
		ExplorerURI: constant.BlockExplorerURI,
		Currency:    "ETH",
	}
}

func (n NetworkParams) String() string {
	return fmt.Sprintf("network name: %s\nchain id: %d\nrpc url: %s\nblock explorer: %s\ncurrency: %s",
		n.Name, n.ChainID, n.RPCURI, n.ExplorerURI, n.Currency)
}

// Wallet signs and sends transactions from a local key.
type Wallet struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
}

// DialWallet connects to uri and loads the key.
func DialWallet(ctx context.Context, uri, hexKey string) (*Wallet, error) {
	key, err := makePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", uri, err)
	}

	return newWallet(client, key), nil
}

// NewWallet wraps an existing client.
func NewWallet(client *ethclient.Client, hexKey string) (*Wallet, error) {
	key, err := makePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return newWallet(client, key), nil
}

func newWallet(client *ethclient.Client, key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func makePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if key == "" {
		return nil, ErrNoWallet
	}

	secretKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", ErrNoWallet, err)
	}
	return secretKey, nil
}

// Address returns the sender address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// ChainID returns the chain id served by the endpoint.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	return w.client.ChainID(ctx)
}

// CheckNetwork returns ErrWrongNetwork unless the endpoint serves chain expected.
func (w *Wallet) CheckNetwork(ctx context.Context, expected int64) error {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("cannot get chain id: %w", err)
	}
	if !chainID.IsInt64() || chainID.Int64() != expected {
		return fmt.Errorf("%w: connected to chain %s, expected %d", ErrWrongNetwork, chainID, expected)
	}
	return nil
}

// SendSelfTransfer signs an EIP-1559 transfer of value to the sender's own address,
// submits it and returns its hash.
func (w *Wallet) SendSelfTransfer(ctx context.Context, value *big.Int) (common.Hash, error) {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot get chain id: %w", err)
	}

	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot get nonce: %w", err)
	}

	tip, err := w.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot get priority fee: %w", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot get gas price: %w", err)
	}

	// leave room for the base fee to double before inclusion
	feeCap := new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), tip)

	to := w.address
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGas,
		To:        &to,
		Value:     value,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("cannot send transaction: %w", err)
	}

	log.Debugf("sent self transfer %s from %s with nonce %d", signedTx.Hash(), w.address, nonce)
	return signedTx.Hash(), nil
}

// Close releases the client.
func (w *Wallet) Close() {
	w.client.Close()
}
