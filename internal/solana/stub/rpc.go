// Package stub provides scripted in-memory Solana clients for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"fee-reinvestor/internal/solana"
)

// ErrNoBalance is returned when an address has no scripted balance.
var ErrNoBalance = errors.New("no scripted balance")

// RPCClient implements solana.RPCClient over a scripted balance ledger.
// Each address holds a queue of readings; the last reading repeats once
// the queue is drained.
type RPCClient struct {
	mu       sync.Mutex
	balances map[string][]uint64
	errs     map[string][]error
	calls    map[string]int
	slot     int64
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		balances: make(map[string][]uint64),
		errs:     make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// SetBalance replaces the scripted readings for an address.
func (c *RPCClient) SetBalance(address string, readings ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = append([]uint64(nil), readings...)
}

// Credit appends a reading equal to the current tail plus lamports.
func (c *RPCClient) Credit(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.balances[address]
	var last uint64
	if len(q) > 0 {
		last = q[len(q)-1]
	}
	c.balances[address] = append(q, last+lamports)
}

// FailNext queues errors returned before any further reading of address.
func (c *RPCClient) FailNext(address string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[address] = append(c.errs[address], errs...)
}

// Calls returns how many balance reads were made for an address.
func (c *RPCClient) Calls(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[address]
}

// GetBalance pops the next scripted reading for address.
func (c *RPCClient) GetBalance(ctx context.Context, address string, _ solana.Commitment) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[address]++

	if errs := c.errs[address]; len(errs) > 0 {
		c.errs[address] = errs[1:]
		return 0, errs[0]
	}

	q, ok := c.balances[address]
	if !ok || len(q) == 0 {
		return 0, ErrNoBalance
	}
	v := q[0]
	if len(q) > 1 {
		c.balances[address] = q[1:]
	}
	return v, nil
}

// GetSlot returns a monotonically increasing slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot++
	return c.slot, nil
}
