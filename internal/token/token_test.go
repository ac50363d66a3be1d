package token

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

func TestFormatUnits(t *testing.T) {
	t.Parallel()

	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	unknown := solana.MustPublicKeyFromBase58("MSPdQo5ZdrPh6rU1LsvUv5nRhAnj1mj6YQEqBUq8YwZ")

	tests := []struct {
		name     string
		amount   units.Amount
		mint     solana.PublicKey
		expected string
	}{
		{name: "SOL lamports", amount: units.FromUint64(1_500_000_000), mint: solana.SolMint, expected: "1.5"},
		{name: "USDC", amount: units.FromUint64(2_000_001), mint: usdc, expected: "2.000001"},
		{name: "unknown mint keeps raw units", amount: units.FromUint64(42), mint: unknown, expected: "42"},
		{name: "beyond 2^53", amount: units.MustParse("18446744073709551615"), mint: solana.SolMint, expected: "18446744073.709551615"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatUnits(tc.amount, tc.mint))
		})
	}
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "SOL", Symbol(solana.SolMint))
	assert.Equal(t, "MSPd..8YwZ", Symbol(solana.MustPublicKeyFromBase58("MSPdQo5ZdrPh6rU1LsvUv5nRhAnj1mj6YQEqBUq8YwZ")))
}

func TestFormatPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stored   uint64
		expected string
	}{
		{stored: 0, expected: "0"},
		{stored: 100_000, expected: "10"},
		{stored: 1_000_000, expected: "100"},
		{stored: 12_345, expected: "1.2345"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatPercent(tc.stored))
		})
	}
}
