// Package rpc provides a read-only JSON-RPC client for Solana cluster
// endpoints. It is used for data fetches only (health, version, balances);
// the connector core never mutates chain state. Transaction construction
// and submission are delegated to external chain clients, which consume
// the active cluster's endpoint URL.
package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/solwire/solwire/pkg/errors"
	"github.com/solwire/solwire/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Config configures the RPC client transport.
type Config struct {
	// Endpoint is the cluster RPC URL
	Endpoint string

	// Connection settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeouts
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
	KeepAlive           time.Duration

	// EnableHTTP2 upgrades the transport when the endpoint supports it
	EnableHTTP2 bool

	// Breaker configures the circuit breaker; zero value uses defaults
	Breaker BreakerConfig
}

// DefaultConfig returns a transport configuration tuned for short,
// frequent JSON-RPC calls.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:            endpoint,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		RequestTimeout:      30 * time.Second,
		KeepAlive:           30 * time.Second,
		EnableHTTP2:         true,
		Breaker:             DefaultBreakerConfig(),
	}
}

// Client is a JSON-RPC client for one cluster endpoint.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
	breaker    *CircuitBreaker

	totalRequests  int64
	failedRequests int64
	requestID      int64
}

// NewClient creates a client for the configured endpoint.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "rpc endpoint is required")
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
	}

	return &Client{
		config: config,
		logger: logger.With(zap.String("component", "rpc_client"), zap.String("endpoint", config.Endpoint)),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.RequestTimeout,
		},
		breaker: NewCircuitBreaker(config.Breaker, logger),
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and unmarshals the result.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if err := c.breaker.Allow(); err != nil {
		metrics.RPCRequestsTotal.WithLabelValues(method, "failure").Inc()
		return err
	}

	atomic.AddInt64(&c.totalRequests, 1)

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.requestID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(method)
		return errors.Wrap(err, errors.ErrorTypeRPC, "rpc request failed").
			WithDetail("method", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail(method)
		return errors.Wrap(err, errors.ErrorTypeRPC, "failed to read rpc response").
			WithDetail("method", method)
	}
	if resp.StatusCode != http.StatusOK {
		c.fail(method)
		return errors.New(errors.ErrorTypeRPC, "unexpected rpc status").
			WithDetail("method", method).
			WithDetail("status", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		c.fail(method)
		return errors.Wrap(err, errors.ErrorTypeRPC, "failed to decode rpc response").
			WithDetail("method", method)
	}
	if rpcResp.Error != nil {
		c.fail(method)
		return errors.New(errors.ErrorTypeRPC, rpcResp.Error.Message).
			WithDetail("method", method).
			WithDetail("code", rpcResp.Error.Code)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			c.fail(method)
			return errors.Wrap(err, errors.ErrorTypeRPC, "failed to decode rpc result").
				WithDetail("method", method)
		}
	}

	c.breaker.MarkSuccess()
	metrics.RPCRequestsTotal.WithLabelValues(method, "success").Inc()
	return nil
}

func (c *Client) fail(method string) {
	atomic.AddInt64(&c.failedRequests, 1)
	c.breaker.MarkFailure()
	metrics.RPCRequestsTotal.WithLabelValues(method, "failure").Inc()
}

// GetHealth reports whether the cluster endpoint considers itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return errors.New(errors.ErrorTypeRPC, "cluster unhealthy").
			WithDetail("status", status)
	}
	return nil
}

// Version describes the node software serving the endpoint.
type Version struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint32 `json:"feature-set"`
}

// GetVersion returns the node version of the cluster endpoint.
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.call(ctx, "getVersion", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SignatureStatus is the confirmation state of one transaction signature.
// A nil entry in the result means the cluster does not know the signature.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

type signatureStatusResult struct {
	Value []*SignatureStatus `json:"value"`
}

// GetSignatureStatuses returns the confirmation status for each signature,
// in input order. Unknown signatures yield nil entries.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var res signatureStatusResult
	params := []interface{}{signatures, map[string]interface{}{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance returns the lamport balance of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := c.call(ctx, "getBalance", []interface{}{address}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// Stats returns total and failed request counters.
func (c *Client) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
