package solana

// Commitment is the ledger confirmation level a read is evaluated at.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// IsValid checks if the commitment is a known value.
func (c Commitment) IsValid() bool {
	switch c {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return true
	}
	return false
}

// AccountNotification is pushed when a subscribed account changes.
type AccountNotification struct {
	Address  string
	Slot     int64
	Lamports uint64
}
