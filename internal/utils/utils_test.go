package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

var usdc = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

func TestExtractUniqueMints(t *testing.T) {
	streams := []models.Stream{
		{AssociatedToken: usdc},
		{AssociatedToken: solana.SolMint},
		{AssociatedToken: usdc},
	}

	mints := ExtractUniqueMints(streams)
	assert.Len(t, mints, 2)
	assert.ElementsMatch(t, []solana.PublicKey{usdc, solana.SolMint}, mints)
	assert.True(t, mints[0].String() < mints[1].String())
}

func TestDisplayStreams(t *testing.T) {
	var buf bytes.Buffer
	DisplayStreams(&buf, []models.Stream{{
		Name:                   "payroll",
		Status:                 models.StatusRunning,
		AssociatedToken:        usdc,
		AllocationAssigned:     units.FromUint64(1_500_000),
		WithdrawableAmount:     units.FromUint64(250_000),
		FundsLeftInStream:      units.FromUint64(1_250_000),
		EstimatedDepletionDate: time.Unix(1_700_000_000, 0).UTC(),
	}})

	out := buf.String()
	assert.Contains(t, out, "payroll")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "USDC")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "Tue, 14 Nov 2023 22:13:20 GMT")
}

func TestDisplayEmpty(t *testing.T) {
	var buf bytes.Buffer
	DisplayStreams(&buf, nil)
	DisplayTreasuries(&buf, nil)
	DisplayStreamActivity(&buf, solana.SolMint, nil)
	DisplayTreasuryActivity(&buf, solana.SolMint, nil)

	out := buf.String()
	assert.Contains(t, out, "No streams to display.")
	assert.Contains(t, out, "No treasuries to display.")
	assert.Contains(t, out, "No activity for stream")
	assert.Contains(t, out, "No activity for treasury")
}

func TestDisplayActivity(t *testing.T) {
	amount := units.FromUint64(2_000_000)
	mint := usdc
	stream := solana.SolMint

	var buf bytes.Buffer
	DisplayStreamActivity(&buf, stream, []models.StreamActivity{{
		Signature: "sig-1",
		Action:    models.ActionDeposited,
		Amount:    &amount,
		Mint:      &mint,
		UtcDate:   "Tue, 14 Nov 2023 22:13:20 GMT",
	}})
	DisplayTreasuryActivity(&buf, stream, []models.TreasuryActivity{{
		Signature: "sig-2",
		Action:    models.StreamAllocateFunds,
		Amount:    &amount,
		Stream:    &stream,
	}})

	out := buf.String()
	assert.Contains(t, out, "2 USDC")
	assert.Contains(t, out, "deposited")
	assert.Contains(t, out, "allocateFunds")
	assert.Contains(t, out, "2000000")
	assert.Contains(t, out, "sig-2")
}

func TestDisplayTreasuries(t *testing.T) {
	var buf bytes.Buffer
	DisplayTreasuries(&buf, []models.Treasury{{
		Name:         "vesting",
		TreasuryType: models.TreasuryTypeLocked,
		Category:     models.CategoryVesting,
		SubCategory:  models.SubCategoryTeam,
		Mint:         solana.SolMint,
		Balance:      units.FromUint64(3_000_000_000),
		TotalStreams: 4,
	}})

	out := buf.String()
	assert.Contains(t, out, "vesting/team")
	assert.Contains(t, out, "Locked")
	assert.Contains(t, out, "SOL")
	assert.Contains(t, out, " 3 ")
}

func TestDisplayMintTotals(t *testing.T) {
	var buf bytes.Buffer
	DisplayMintTotals(&buf, []models.Stream{
		{AssociatedToken: usdc, AllocationAssigned: units.FromUint64(1_500_000), WithdrawableAmount: units.FromUint64(250_000), FundsLeftInStream: units.FromUint64(1_250_000)},
		{AssociatedToken: solana.SolMint, AllocationAssigned: units.FromUint64(3_000_000_000), WithdrawableAmount: units.Zero(), FundsLeftInStream: units.FromUint64(3_000_000_000)},
		{AssociatedToken: usdc, AllocationAssigned: units.FromUint64(500_000), WithdrawableAmount: units.FromUint64(500_000), FundsLeftInStream: units.Zero()},
	})

	out := buf.String()
	assert.Contains(t, out, "Totals by Token")
	assert.Contains(t, out, usdc.String())
	assert.Contains(t, out, solana.SolMint.String())
	assert.Contains(t, out, " 2 ", "usdc allocation")
	assert.Contains(t, out, " 0.75 ", "usdc withdrawable")
	assert.Contains(t, out, " 3 ", "sol allocation")

	buf.Reset()
	DisplayMintTotals(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestDisplayTemplate(t *testing.T) {
	var buf bytes.Buffer
	DisplayTemplate(&buf, solana.SolMint, models.StreamTemplate{
		ID:                    usdc,
		StartUtc:              time.Unix(1_700_000_000, 0).UTC(),
		CliffVestPercent:      100_000,
		RateIntervalInSeconds: 2_629_750,
		DurationNumberOfUnits: 12,
		FeePayedByTreasurer:   true,
	})

	out := buf.String()
	assert.Contains(t, out, "Template for "+solana.SolMint.String())
	assert.Contains(t, out, usdc.String())
	assert.Contains(t, out, "Tue, 14 Nov 2023 22:13:20 GMT")
	assert.Contains(t, out, " 10 ")
	assert.Contains(t, out, "2629750")
	assert.Contains(t, out, "treasurer")
}
