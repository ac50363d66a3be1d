// Package token renders raw token units for people: mint symbols, decimal
// places and cliff percentages.
package token

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

// Mint describes a token mint well known enough to render without a lookup.
type Mint struct {
	Symbol   string
	Decimals int32
}

var knownMints = map[solana.PublicKey]Mint{
	solana.SolMint: {Symbol: "SOL", Decimals: 9},
	solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"): {Symbol: "USDC", Decimals: 6},
	solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"): {Symbol: "USDT", Decimals: 6},
}

// LookupMint returns the symbol and decimals of a well-known mint.
func LookupMint(mint solana.PublicKey) (Mint, bool) {
	m, ok := knownMints[mint]
	return m, ok
}

// Symbol returns the mint's symbol, or its shortened address when unknown
// (e.g. "EPjF..Dt1v").
func Symbol(mint solana.PublicKey) string {
	if m, ok := knownMints[mint]; ok {
		return m.Symbol
	}
	s := mint.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// UIAmount scales raw units down by the mint's decimals.
func UIAmount(amount units.Amount, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(amount.BigInt(), -decimals)
}

// FormatUnits renders raw units for a mint, falling back to the raw integer
// when the mint's decimals are unknown.
func FormatUnits(amount units.Amount, mint solana.PublicKey) string {
	m, ok := knownMints[mint]
	if !ok {
		return amount.String()
	}
	return UIAmount(amount, m.Decimals).String()
}

// cliff percentages are stored against a denominator of 1_000_000 (= 100%)
var percentScale = decimal.NewFromInt(10_000)

// FormatPercent renders a stored cliff percent as a human percentage,
// so 100000 becomes "10".
func FormatPercent(stored uint64) string {
	return decimal.NewFromBigInt(units.FromUint64(stored).BigInt(), 0).Div(percentScale).String()
}
