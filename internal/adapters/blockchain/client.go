package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// Backend is the part of ethclient.Client the adapter uses
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// DialFunc connects to an RPC endpoint
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// Client implements usecase.ChainClient on top of ethclient. The connection
// is opened on first use so commands that never touch the chain work offline.
type Client struct {
	network *config.Network
	timeout time.Duration
	dial    DialFunc
	log     *slog.Logger

	mu      sync.Mutex
	backend Backend
	chainID *big.Int
	auth    *bind.TransactOpts
}

// NewClient creates a chain client for the selected network
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	return &Client{
		network: cfg.Network,
		timeout: cfg.Timeout,
		dial: func(ctx context.Context, rpcURL string) (Backend, error) {
			return ethclient.DialContext(ctx, rpcURL)
		},
		log: log.With("component", "ChainClient"),
	}
}

// NewClientWithBackend creates a client over an already connected backend
func NewClientWithBackend(network *config.Network, backend Backend, log *slog.Logger) *Client {
	return &Client{
		network: network,
		dial: func(context.Context, string) (Backend, error) {
			return backend, nil
		},
		log: log.With("component", "ChainClient"),
	}
}

// connect dials the RPC and verifies the chain id, once
func (c *Client) connect(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}
	if c.network == nil {
		return nil, domain.PreconditionError{Operation: "connect", Reason: "no network selected"}
	}

	backend, err := c.dial(ctx, c.network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	networkChainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if c.network.ChainID != 0 && networkChainID.Uint64() != c.network.ChainID {
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", c.network.ChainID, networkChainID.Uint64())
	}

	c.backend = backend
	c.chainID = networkChainID
	c.log.Debug("connected", "network", c.network.Name, "chainId", networkChainID)
	return backend, nil
}

// transactor builds the keyed transactor for the deployer, once. It must be
// called after connect so the chain id is known.
func (c *Client) transactor() (*bind.TransactOpts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.auth != nil {
		return c.auth, nil
	}
	if c.network == nil || c.network.PrivateKey == "" {
		return nil, domain.PreconditionError{Operation: "send transaction", Reason: "no private key configured"}
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.network.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	c.auth = bind.NewKeyedTransactor(key, c.chainID)
	return c.auth, nil
}

// Deploy submits a contract creation transaction
func (c *Client) Deploy(ctx context.Context, initCode []byte) (*usecase.TxResult, error) {
	return c.transact(ctx, func(backend Backend, opts *bind.TransactOpts) (*types.Transaction, error) {
		_, tx, err := bind.DeployContract(opts, initCode, backend, nil)
		return tx, err
	})
}

// SendTransaction submits a call transaction to to
func (c *Client) SendTransaction(ctx context.Context, to common.Address, data []byte) (*usecase.TxResult, error) {
	return c.transact(ctx, func(backend Backend, opts *bind.TransactOpts) (*types.Transaction, error) {
		return bind.NewBoundContract(to, abi.ABI{}, backend, backend, backend).RawTransact(opts, data)
	})
}

// Call executes a read-only call against the latest block
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{To: &to, Data: data}
	if auth, err := c.transactor(); err == nil {
		msg.From = auth.From
	}

	ret, err := backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, asRevert("call", err)
	}
	return ret, nil
}

// CodeAt returns the runtime code at address
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	code, err := backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check code: %w", err)
	}
	return code, nil
}

// transact signs and sends one transaction through submit, then waits for
// its receipt
func (c *Client) transact(ctx context.Context, submit func(Backend, *bind.TransactOpts) (*types.Transaction, error)) (*usecase.TxResult, error) {
	backend, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	auth, err := c.transactor()
	if err != nil {
		return nil, err
	}

	opts := *auth
	opts.Context = ctx

	tx, err := submit(backend, &opts)
	if err != nil {
		// Nothing was sent when bind reports a revert: it comes from gas estimation
		var revert domain.RevertError
		if errors.As(asRevert("gas estimation", err), &revert) {
			return nil, revert
		}
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.log.Debug("transaction sent", "hash", tx.Hash().Hex(), "nonce", tx.Nonce(), "gas", tx.Gas())

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(ctx, backend, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}

	result := &usecase.TxResult{
		Hash:            receipt.TxHash,
		GasUsed:         receipt.GasUsed,
		Status:          receipt.Status,
		ContractAddress: receipt.ContractAddress,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// asRevert turns an RPC execution error into a domain.RevertError, decoding
// the Error(string) reason when the node returned revert data
func asRevert(operation string, err error) error {
	var dataErr interface {
		error
		ErrorData() interface{}
	}
	if !errors.As(err, &dataErr) {
		if strings.Contains(err.Error(), "execution reverted") {
			return domain.RevertError{Operation: operation, Reason: err.Error()}
		}
		return err
	}

	revert := domain.RevertError{Operation: operation, Reason: dataErr.Error()}
	if hexData, ok := dataErr.ErrorData().(string); ok {
		if raw, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
			if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
				revert.Reason = reason
			}
		}
	}
	return revert
}

var _ usecase.ChainClient = (*Client)(nil)
