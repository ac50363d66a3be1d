package models

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

func TestStreamPresentDoesNotChangeNumbers(t *testing.T) {
	s := Stream{
		ID:                 solana.MustPublicKeyFromBase58("MSPdQo5ZdrPh6rU1LsvUv5nRhAnj1mj6YQEqBUq8YwZ"),
		AllocationAssigned: units.MustParse("18446744073709551615"),
		WithdrawableAmount: units.FromUint64(10_000),
		CliffVestPercent:   250_000,
		Status:             StatusRunning,
		StartUtc:           time.Unix(1_645_224_519, 0),
	}

	raw, ok := s.Present(Raw).(Stream)
	assert.True(t, ok)
	assert.Equal(t, s, raw)

	view, ok := s.Present(Friendly).(StreamView)
	assert.True(t, ok)
	assert.Equal(t, "MSPdQo5ZdrPh6rU1LsvUv5nRhAnj1mj6YQEqBUq8YwZ", view.ID)
	assert.Equal(t, "18446744073709551615", view.AllocationAssigned)
	assert.Equal(t, "10000", view.WithdrawableAmount)
	assert.Equal(t, "25", view.CliffVestPercent)
	assert.Equal(t, "Running", view.Status)
	assert.Equal(t, "Fri, 18 Feb 2022 22:48:39 GMT", view.StartUtc)
	assert.Empty(t, view.CreatedOnUtc)
}

func TestTreasuryViewBlankAssociatedToken(t *testing.T) {
	view := Treasury{TreasuryType: TreasuryTypeLocked}.View()
	assert.Empty(t, view.AssociatedToken)
	assert.Equal(t, "Locked", view.TreasuryType)
}

func TestActivityViewOptionalFields(t *testing.T) {
	mint := solana.SolMint
	amount := units.FromUint64(5)

	view := TreasuryActivity{Action: StreamPause, Mint: &mint, Amount: &amount}.View()
	assert.Equal(t, "pauseStream", view.Action)
	assert.Equal(t, mint.String(), view.Mint)
	assert.Equal(t, "5", view.Amount)
	assert.Empty(t, view.Beneficiary)
	assert.Empty(t, view.Stream)

	sview := StreamActivity{Action: ActionWithdrew}.View()
	assert.Equal(t, "withdrew", sview.Action)
	assert.Empty(t, sview.Amount)
	assert.Empty(t, sview.Initializer)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Scheduled", StatusScheduled.String())
	assert.Equal(t, "Paused", StatusPaused.String())
	assert.Equal(t, "seed", SubCategorySeed.String())
	assert.Equal(t, "subcategory(42)", SubCategory(42).String())
	assert.Equal(t, "vesting", CategoryVesting.String())
	assert.Equal(t, "refreshTreasury", TreasuryRefresh.String())
}

func TestTreasuryActionText(t *testing.T) {
	t.Parallel()

	for a := TreasuryCreate; a <= TreasuryRefresh; a++ {
		text, err := a.MarshalText()
		require.NoError(t, err)

		var back TreasuryAction
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, a, back)
	}

	_, err := ParseTreasuryAction("mint")
	assert.Error(t, err)
}
