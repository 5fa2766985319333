package solana

import "context"

// RPCClient defines the subset of the Solana RPC HTTP interface the service uses.
type RPCClient interface {
	// GetBalance returns the lamport balance of an address at the given commitment.
	GetBalance(ctx context.Context, address string, commitment Commitment) (uint64, error)

	// GetSlot returns the current slot. Used as a connectivity probe.
	GetSlot(ctx context.Context) (int64, error)
}
