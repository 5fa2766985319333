package domain

import "github.com/shopspring/decimal"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LotPrecision is the number of decimal places amounts are rounded down to
// before they are sent to the venue.
const LotPrecision int32 = 6

// LamportsToSOL converts a lamport amount into SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}

// SOLToLamports converts SOL into lamports, truncating sub-lamport precision.
// Negative amounts convert to zero.
func SOLToLamports(sol decimal.Decimal) uint64 {
	if sol.Sign() <= 0 {
		return 0
	}
	return sol.Shift(9).Truncate(0).BigInt().Uint64()
}

// RoundLot rounds an amount down to lot precision.
func RoundLot(sol decimal.Decimal) decimal.Decimal {
	return sol.RoundFloor(LotPrecision)
}
