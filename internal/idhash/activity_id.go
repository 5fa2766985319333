package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"fee-reinvestor/internal/domain"
)

// ComputeActivityID computes a deterministic activity id using SHA256.
// Formula: SHA256(pass_id|wallet_id|activity_type|seq)
// Returns hex-encoded hash (64 characters).
// seq distinguishes repeated records of one type, e.g. the two halves of a split.
func ComputeActivityID(
	passID string,
	walletID string,
	activityType domain.ActivityType,
	seq int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		passID,
		walletID,
		string(activityType),
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
