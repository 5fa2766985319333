package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcHandler answers one decoded request. A non-zero status short-circuits
// the JSON body.
type rpcHandler func(req rpcRequest) (result interface{}, rpcErr *RPCError, status int)

func newRPCServer(t *testing.T, h rpcHandler) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rpcErr, status := h(req)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func balanceResult(lamports uint64) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": int64(5000)},
		"value":   lamports,
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server, _ := newRPCServer(t, func(req rpcRequest) (interface{}, *RPCError, int) {
		if req.Method != "getBalance" {
			t.Errorf("expected method getBalance, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != "walletaddr" {
			t.Errorf("unexpected params %v", req.Params)
		}
		opts, ok := req.Params[1].(map[string]interface{})
		if !ok || opts["commitment"] != "finalized" {
			t.Errorf("expected finalized commitment, got %v", req.Params[1])
		}
		return balanceResult(1_250_000_000), nil, 0
	})

	lamports, err := NewHTTPClient(server.URL).GetBalance(context.Background(), "walletaddr", CommitmentFinalized)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 1_250_000_000 {
		t.Errorf("expected 1250000000 lamports, got %d", lamports)
	}
}

func TestHTTPClient_GetBalance_DefaultCommitment(t *testing.T) {
	server, _ := newRPCServer(t, func(req rpcRequest) (interface{}, *RPCError, int) {
		opts, _ := req.Params[1].(map[string]interface{})
		if opts["commitment"] != "confirmed" {
			t.Errorf("expected confirmed commitment, got %v", opts["commitment"])
		}
		return balanceResult(0), nil, 0
	})

	lamports, err := NewHTTPClient(server.URL).GetBalance(context.Background(), "emptywallet", "")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 0 {
		t.Errorf("expected 0 lamports, got %d", lamports)
	}
}

func TestHTTPClient_ServerErrorExhaustsRetries(t *testing.T) {
	server, hits := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		return nil, nil, http.StatusBadGateway
	})

	client := NewHTTPClient(server.URL, WithMaxRetries(2), WithRetryDelay(5*time.Millisecond))
	if _, err := client.GetBalance(context.Background(), "walletaddr", CommitmentConfirmed); err == nil {
		t.Fatal("expected error after retries, got nil")
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	server, hits := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		return nil, nil, http.StatusUnauthorized
	})

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestHTTPClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server, _ := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		if calls.Add(1) < 3 {
			return nil, nil, http.StatusTooManyRequests
		}
		return int64(999), nil, 0
	})

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(10*time.Millisecond))
	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestHTTPClient_RateLimitExhausted(t *testing.T) {
	server, _ := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		return nil, nil, http.StatusTooManyRequests
	})

	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	_, err := client.GetSlot(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	server, hits := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		return nil, &RPCError{Code: -32600, Message: "Invalid Request"}, 0
	})

	_, err := NewHTTPClient(server.URL).GetSlot(context.Background())
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T (%v)", err, err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server, _ := newRPCServer(t, func(rpcRequest) (interface{}, *RPCError, int) {
		time.Sleep(100 * time.Millisecond)
		return int64(1), nil, 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPClient(server.URL).GetSlot(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":                              0,
		"2":                             2 * time.Second,
		"-1":                            0,
		"Wed, 21 Oct 2015 07:28:00 GMT": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
