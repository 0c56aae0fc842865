package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ava-labs/libevm"
	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/core/types"
	"github.com/ava-labs/libevm/ethclient"
	"github.com/ava-labs/libevm/rpc"
	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/ava-labs/bridge-relayer/internal/chainclient"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
)

const (
	DefaultCallTimeout = 10 * time.Second

	// one call plus one retry after reconnecting
	callAttempts = 2

	methodBlockNumber = "eth_blockNumber"
	methodGetLogs     = "eth_getLogs"
	methodChainID     = "eth_chainId"
)

// Client is a chainclient.Connector backed by a libevm ethclient.
//
// On any failed call the client drops its connection, re-dials once and
// retries the call once. It never loops beyond that; backoff is left to the
// caller's poll interval.
type Client struct {
	url         string
	callTimeout time.Duration
	log         *zap.SugaredLogger
	metrics     *metrics.Metrics // nil if metrics disabled

	mu      sync.Mutex
	eth     *ethclient.Client
	chainID *big.Int
}

var _ chainclient.Connector = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCallTimeout bounds every individual RPC call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// New dials the source node and verifies it answers eth_chainId.
// An unreachable node is reported as chainclient.ErrConnectivity.
func New(ctx context.Context, url string, log *zap.SugaredLogger, opts ...Option) (*Client, error) {
	c := &Client{
		url:         url,
		callTimeout: DefaultCallTimeout,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.log.Infow("connected to source chain", "chainID", c.ChainID())
	return c, nil
}

// ChainID returns the chain id reported by the node on the last successful connect.
func (c *Client) ChainID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID == nil {
		return 0
	}
	return c.chainID.Uint64()
}

// SetMetrics starts recording RPC metrics. It must be called before the client
// is shared between goroutines.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// BlockNumber returns the current head height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.withReconnect(ctx, methodBlockNumber, func(ctx context.Context, eth *ethclient.Client) error {
		var err error
		height, err = eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, chainclient.ErrConnectivity) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %w", chainclient.ErrConnectivity, methodBlockNumber, err)
	}
	return height, nil
}

// FilterLogs returns the logs matching q.
func (c *Client) FilterLogs(ctx context.Context, q chainclient.LogQuery) ([]types.Log, error) {
	filter := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.From),
		ToBlock:   new(big.Int).SetUint64(q.To),
		Addresses: []common.Address{q.Address},
		Topics:    [][]common.Hash{{q.Topic0}},
	}

	var logs []types.Log
	err := c.withReconnect(ctx, methodGetLogs, func(ctx context.Context, eth *ethclient.Client) error {
		var err error
		logs, err = eth.FilterLogs(ctx, filter)
		return err
	})
	if err != nil {
		return nil, classifyLogsError(err, q)
	}
	return logs, nil
}

// classifyLogsError reports a range as unavailable only when the node itself
// answered with an error. Timeouts, resets and any other transport failure
// mean the range was never read.
func classifyLogsError(err error, q chainclient.LogQuery) error {
	if errors.Is(err, chainclient.ErrConnectivity) {
		return err
	}
	var (
		rpcErr  rpc.Error
		httpErr rpc.HTTPError
	)
	if errors.As(err, &rpcErr) || errors.As(err, &httpErr) {
		return fmt.Errorf("%w: [%d, %d]: %w", chainclient.ErrRangeUnavailable, q.From, q.To, err)
	}
	return fmt.Errorf("%w: %s [%d, %d]: %w", chainclient.ErrConnectivity, methodGetLogs, q.From, q.To, err)
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

// withReconnect runs call, and on failure reconnects once and runs it again.
// A failed reconnect is returned wrapped in chainclient.ErrConnectivity.
func (c *Client) withReconnect(
	ctx context.Context,
	method string,
	call func(context.Context, *ethclient.Client) error,
) error {
	var reconnectErr error
	err := retry.Do(
		func() error {
			eth, err := c.current(ctx)
			if err != nil {
				reconnectErr = err
				return retry.Unrecoverable(err)
			}
			return c.observe(ctx, method, func(ctx context.Context) error {
				return call(ctx, eth)
			})
		},
		retry.Attempts(callAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warnw("rpc call failed, dropping connection",
				"method", method,
				"attempt", n+1,
				"error", err)
			c.Close()
		}),
	)
	if reconnectErr != nil {
		return reconnectErr
	}
	return err
}

// current returns the live client, dialing a new one if the previous one was dropped.
func (c *Client) current(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	eth := c.eth
	c.mu.Unlock()
	if eth != nil {
		return eth, nil
	}
	return c.connect(ctx)
}

// connect dials the node and probes it with eth_chainId. HTTP dials are lazy,
// so the probe is what proves the node is reachable.
func (c *Client) connect(ctx context.Context) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", chainclient.ErrConnectivity, c.url, err)
	}

	var chainID *big.Int
	err = c.observe(ctx, methodChainID, func(ctx context.Context) error {
		var err error
		chainID, err = eth.ChainID(ctx)
		return err
	})
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("%w: probe %s: %w", chainclient.ErrConnectivity, c.url, err)
	}

	c.mu.Lock()
	c.eth = eth
	c.chainID = chainID
	c.mu.Unlock()
	return eth, nil
}

// observe runs fn under the per-call timeout and records RPC metrics.
func (c *Client) observe(ctx context.Context, method string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())
	return err
}
