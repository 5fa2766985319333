package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount subscribes to balance changes of an address.
	SubscribeAccount(ctx context.Context, address string) (*AccountSubscription, error)

	// Unsubscribe cancels a subscription and closes its channel.
	Unsubscribe(ctx context.Context, sub *AccountSubscription) error

	// Close closes the WebSocket connection.
	Close() error
}

// AccountSubscription is a live accountSubscribe stream.
type AccountSubscription struct {
	Address string
	C       <-chan AccountNotification

	key uint64
}
