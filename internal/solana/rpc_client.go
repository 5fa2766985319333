package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fee-reinvestor/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrRateLimited is wrapped when the node answers 429 on every attempt.
var ErrRateLimited = errors.New("rpc rate limited")

// RPCError is a JSON-RPC error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// HTTPClient implements RPCClient over HTTP JSON-RPC 2.0 with retries on
// transport failures, 429 and 5xx.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	logger      *zap.Logger
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the first backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRPCLogger sets the logger used for retry diagnostics.
func WithRPCLogger(logger *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a ledger RPC client for endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		logger:      zap.NewNop(),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("rpc")
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// attemptError is a failed attempt. retryAfter is the server hint, if any.
type attemptError struct {
	err        error
	retryable  bool
	retryAfter time.Duration
}

func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	delay := c.retryDelay
	var last *attemptError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if last.retryAfter > wait {
				wait = min(last.retryAfter, c.maxDelay)
			}
			c.logger.Debug("retrying rpc call",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(last.err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = c.nextDelay(delay)
		}

		raw, aerr := c.attempt(ctx, body)
		if aerr == nil {
			if result != nil && raw != nil {
				if err := json.Unmarshal(raw, result); err != nil {
					return fmt.Errorf("unmarshal %s result: %w", method, err)
				}
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !aerr.retryable {
			return aerr.err
		}
		last = aerr
	}

	return fmt.Errorf("%s: max retries exceeded: %w", method, last.err)
}

// attempt performs one POST and classifies the outcome.
func (c *HTTPClient) attempt(ctx context.Context, body []byte) (json.RawMessage, *attemptError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("http request: %w", err), retryable: true}
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("read response: %w", err), retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &attemptError{
			err:        ErrRateLimited,
			retryable:  true,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, &attemptError{
			err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200)),
			retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &attemptError{err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, &attemptError{err: fmt.Errorf("unmarshal response: %w", err), retryable: true}
	}
	if rpcResp.Error != nil {
		return nil, &attemptError{err: rpcResp.Error}
	}
	return rpcResp.Result, nil
}

func (c *HTTPClient) nextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * c.backoffMult)
	if next > c.maxDelay {
		return c.maxDelay
	}
	return next
}

// parseRetryAfter reads a Retry-After value in seconds. Dates are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func commitmentConfig(c Commitment) map[string]interface{} {
	if c == "" {
		c = CommitmentConfirmed
	}
	return map[string]interface{}{"commitment": string(c)}
}

// GetBalance returns the lamport balance of address. An empty commitment
// reads at confirmed.
func (c *HTTPClient) GetBalance(ctx context.Context, address string, commitment Commitment) (uint64, error) {
	var result struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{address, commitmentConfig(commitment)}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetSlot returns the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var slot int64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}
