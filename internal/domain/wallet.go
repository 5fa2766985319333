package domain

import "time"

// Wallet is a custodial wallet operated by the service.
// Corresponds to secure_wallets table in PostgreSQL.
type Wallet struct {
	ID        string     // PRIMARY KEY
	Address   string     // base58 ledger address
	APIKey    string     // venue credential, never logged
	IsActive  bool       // only active wallets take part in a pass
	LastRunAt *time.Time // last completed pass (nullable)
	CreatedAt time.Time
}

// Token is an issued token owned by at most one wallet.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	Mint     string // token mint address
	Name     string
	Symbol   string
	WalletID string // owning wallet
}

// ShortAddress returns the first 8 characters of an address for log output.
func ShortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8] + "..."
}
