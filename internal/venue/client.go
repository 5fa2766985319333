package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/observability"
	"fee-reinvestor/internal/solana"
)

const (
	defaultBaseURL = "https://pumpportal.fun"
	defaultTimeout = 30 * time.Second

	actionCollectFee = "collectCreatorFee"
	actionBuy        = "buy"
	actionTransfer   = "transfer"
)

// ErrBelowMinimum is returned locally when an amount rounds below the
// minimum trade size. No request is sent.
var ErrBelowMinimum = errors.New("amount below minimum trade size")

// Config represents venue client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PriorityFee decimal.Decimal
	// Slippage is a percentage, sent as-is.
	Slippage    int
	MinTradeSOL decimal.Decimal
	ClaimPool   string
	BuyPool     string

	// RequestsPerSecond bounds calls across all wallets.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive transport or 5xx failures open the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns default venue configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		Timeout:           defaultTimeout,
		PriorityFee:       decimal.RequireFromString("0.0001"),
		Slippage:          15,
		MinTradeSOL:       decimal.RequireFromString("0.001"),
		ClaimPool:         "pump",
		BuyPool:           "auto",
		RequestsPerSecond: 5,
		Burst:             10,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
	}
}

// Client is the HTTP implementation of Venue.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// Compile-time interface check.
var _ Venue = (*Client)(nil)

// NewClient creates a new venue client. Zero fields in config take defaults.
func NewClient(config Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.MinTradeSOL.IsZero() {
		config.MinTradeSOL = def.MinTradeSOL
	}
	if config.ClaimPool == "" {
		config.ClaimPool = def.ClaimPool
	}
	if config.BuyPool == "" {
		config.BuyPool = def.BuyPool
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = def.BreakerFailures
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = def.BreakerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("venue")

	cbSettings := gobreaker.Settings{
		Name:        "venue",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("venue circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			observability.SetBreakerState(int(to))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:         logger,
	}
}

// CollectFee requests collection of accrued creator fees for mint.
func (c *Client) CollectFee(ctx context.Context, apiKey, mint string) domain.ClaimOutcome {
	payload := map[string]interface{}{
		"action":      actionCollectFee,
		"priorityFee": number(c.config.PriorityFee),
		"pool":        c.config.ClaimPool,
		"mint":        mint,
	}

	status, body, err := c.post(ctx, actionCollectFee, apiKey, payload)
	if err != nil {
		return domain.NewClaimOutcome(domain.ClaimFailed, "", err.Error())
	}

	switch ClassifyClaimResponse(status, body) {
	case domain.ClaimAccepted:
		var sig, amount string
		if r, _ := parseTrade(body); r != nil {
			sig = r.signature()
			amount = r.amount()
		}
		c.logger.Debug("fee claim accepted",
			zap.String("mint", mint),
			zap.String("signature", sig),
			zap.String("reported_amount", amount))
		return domain.NewClaimOutcome(domain.ClaimAccepted, sig, "")
	case domain.ClaimNothing:
		return domain.NewClaimOutcome(domain.ClaimNothing, "", errorBody(body))
	default:
		return domain.NewClaimOutcome(domain.ClaimFailed, "",
			fmt.Sprintf("status %d: %s", status, errorBody(body)))
	}
}

// Buy spends amountSOL on mint. The amount is rounded down to lot precision
// and rejected locally if it falls below the minimum trade size.
func (c *Client) Buy(ctx context.Context, apiKey, mint string, amountSOL decimal.Decimal) domain.TradeOutcome {
	amount := domain.RoundLot(amountSOL)
	out := domain.TradeOutcome{AmountSOL: amount, Mint: mint}
	if amount.LessThan(c.config.MinTradeSOL) {
		out.Error = fmt.Sprintf("%v: %s SOL", ErrBelowMinimum, amount)
		return out
	}

	payload := map[string]interface{}{
		"action":           actionBuy,
		"mint":             mint,
		"amount":           number(amount),
		"denominatedInSol": "true",
		"slippage":         c.config.Slippage,
		"priorityFee":      number(c.config.PriorityFee),
		"pool":             c.config.BuyPool,
	}
	return c.trade(ctx, actionBuy, apiKey, payload, out)
}

// Transfer sends amountSOL to destination with the same rounding and
// minimum as Buy. destination must be a signing wallet address.
func (c *Client) Transfer(ctx context.Context, apiKey, destination string, amountSOL decimal.Decimal) domain.TradeOutcome {
	amount := domain.RoundLot(amountSOL)
	out := domain.TradeOutcome{AmountSOL: amount}
	if amount.LessThan(c.config.MinTradeSOL) {
		out.Error = fmt.Sprintf("%v: %s SOL", ErrBelowMinimum, amount)
		return out
	}

	if err := solana.ValidateWalletAddress(destination); err != nil {
		out.Error = fmt.Sprintf("destination: %v", err)
		return out
	}

	payload := map[string]interface{}{
		"action":      actionTransfer,
		"destination": destination,
		"amount":      number(amount),
		"priorityFee": number(c.config.PriorityFee),
	}
	return c.trade(ctx, actionTransfer, apiKey, payload, out)
}

// trade posts a buy or transfer and parses the result into out.
func (c *Client) trade(ctx context.Context, action, apiKey string, payload map[string]interface{}, out domain.TradeOutcome) domain.TradeOutcome {
	status, body, err := c.post(ctx, action, apiKey, payload)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if status < 200 || status >= 300 {
		out.Error = fmt.Sprintf("status %d: %s", status, errorBody(body))
		return out
	}

	r, raw := parseTrade(body)
	if r == nil {
		out.Success = true
		out.Raw = raw
		return out
	}
	if len(r.errors()) > 0 {
		out.Error = r.errorText()
		return out
	}
	out.Success = true
	out.Signature = r.signature()
	return out
}

// post sends one request through the rate limiter and circuit breaker.
// Only transport errors and 5xx responses count against the breaker; the
// status and body are returned for every response that arrived.
func (c *Client) post(ctx context.Context, action, apiKey string, payload interface{}) (int, []byte, error) {
	start := time.Now()
	result := "error"
	defer func() {
		observability.RecordVenueRequest(action, result, time.Since(start).Seconds())
	}()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	var (
		status   int
		respBody []byte
	)
	_, err = c.circuitBreaker.Execute(func() (interface{}, error) {
		var reqErr error
		status, respBody, reqErr = c.do(ctx, apiKey, body)
		if reqErr != nil {
			return nil, reqErr
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error %d", status)
		}
		return nil, nil
	})
	if err != nil && status == 0 {
		c.logger.Warn("venue request failed",
			zap.String("action", action),
			zap.Error(err))
		return 0, nil, fmt.Errorf("%s: %w", action, err)
	}

	result = fmt.Sprintf("%dxx", status/100)
	return status, respBody, nil
}

func (c *Client) do(ctx context.Context, apiKey string, body []byte) (int, []byte, error) {
	endpoint := c.config.BaseURL + "/api/trade?api-key=" + url.QueryEscape(apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// number renders a decimal as a bare JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
