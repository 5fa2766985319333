package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address validation errors.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrOffCurve       = errors.New("address is not on the ed25519 curve")
)

// DecodeAddress decodes a base58 address into its 32 raw bytes.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: decoded length %d, want 32", ErrInvalidAddress, len(raw))
	}
	return raw, nil
}

// ValidateMint checks that addr is a well-formed 32-byte address.
// Mints may be program derived, so the curve is not checked.
func ValidateMint(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// ValidateWalletAddress checks that addr is a well-formed address backed by an
// ed25519 key. Program derived addresses cannot sign and are rejected.
func ValidateWalletAddress(addr string) error {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("%w: %s", ErrOffCurve, addr)
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
