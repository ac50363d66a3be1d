// Package derivation computes the live economics of a stream from its ledger
// snapshot and a reference time in unix seconds. Every function is pure and
// total: subtractions saturate at zero and divisions by a possibly-zero
// divisor yield zero, so nothing here returns an error.
package derivation

import (
	"math/big"
	"strconv"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// CliffPercentDenominator is the on-chain scale of CliffVestPercent (100%).
const CliffPercentDenominator = 1_000_000

// Depletion times outside years 0..9999 cannot be rendered as RFC 3339 dates.
const (
	minRepresentableUnix = -62_167_219_200 // 0000-01-01T00:00:00Z
	maxRepresentableUnix = 253_402_300_799 // 9999-12-31T23:59:59Z
)

var cliffDenominator = units.FromUint64(CliffPercentDenominator)

// Now projects a reference time: current wall-clock seconds minus the drift
// recorded when a snapshot was taken.
func Now(current, timeDiff int64) int64 {
	return current - timeDiff
}

// StartUtcInSeconds resolves the stream start. A positive explicit override
// wins over the stored StartUtc.
func StartUtcInSeconds(raw models.RawStream) int64 {
	if raw.StartUtcInSeconds > 0 {
		return raw.StartUtcInSeconds
	}
	return NormalizeSeconds(raw.StartUtc)
}

// NormalizeSeconds cuts a timestamp with more than 10 decimal digits back to
// its leading 10 digits; such values were written in milliseconds.
func NormalizeSeconds(ts int64) int64 {
	digits := strconv.FormatInt(ts, 10)
	if len(digits) <= 10 {
		return ts
	}
	seconds, err := strconv.ParseInt(digits[:10], 10, 64)
	if err != nil {
		return ts
	}
	return seconds
}

// CliffAmount is the amount released at start. A positive cliff percent
// always overrides the absolute cliff amount.
func CliffAmount(raw models.RawStream) units.Amount {
	if raw.CliffVestPercent > 0 {
		return raw.AllocationAssignedUnits.
			Mul(units.FromUint64(raw.CliffVestPercent)).
			Div(cliffDenominator)
	}
	return raw.CliffVestAmountUnits
}

// UnitsPerSecond is the rate amount spread over its interval, truncated.
func UnitsPerSecond(raw models.RawStream) units.Amount {
	if raw.RateIntervalInSeconds == 0 {
		return units.Zero()
	}
	return raw.RateAmountUnits.Div(units.FromUint64(raw.RateIntervalInSeconds))
}

// IsManuallyPaused reports a stop newer than the last resume. A stop and a
// resume in the same second leave the stream running.
func IsManuallyPaused(raw models.RawStream) bool {
	if raw.LastManualStopBlockTime <= 0 {
		return false
	}
	return raw.LastManualStopBlockTime > raw.LastManualResumeBlockTime
}

// EntitledEarnings is what the beneficiary has accrued by now: the cliff plus
// linear accrual since start, minus what accrual would have paid while paused.
func EntitledEarnings(raw models.RawStream, now int64) units.Amount {
	ups := UnitsPerSecond(raw)
	elapsed := units.FromInt64(now - StartUtcInSeconds(raw))
	nonStop := CliffAmount(raw).Add(ups.Mul(elapsed))
	missed := ups.Mul(units.FromUint64(raw.LastKnownTotalSecondsInPausedStatus))
	return nonStop.SaturatingSub(missed)
}

// Status classifies the stream at now: scheduled before start, paused when
// manually stopped or out of funds, running otherwise.
func Status(raw models.RawStream, now int64) models.StreamStatus {
	if StartUtcInSeconds(raw) > now {
		return models.StatusScheduled
	}
	if IsManuallyPaused(raw) {
		return models.StatusPaused
	}
	if raw.AllocationAssignedUnits.GreaterThan(EntitledEarnings(raw, now)) {
		return models.StatusRunning
	}
	// ran out of funds
	return models.StatusPaused
}

// RemainingAllocation is the allocation not yet withdrawn.
func RemainingAllocation(raw models.RawStream) units.Amount {
	return raw.AllocationAssignedUnits.SaturatingSub(raw.TotalWithdrawalsUnits)
}

// WithdrawableWhilePaused is the manual-stop snapshot for a manually paused
// stream and the whole remaining allocation for an auto-paused one.
func WithdrawableWhilePaused(raw models.RawStream) units.Amount {
	if IsManuallyPaused(raw) {
		return raw.LastManualStopWithdrawableUnitsSnap
	}
	return RemainingAllocation(raw)
}

// WithdrawableAmount is what the beneficiary could withdraw at now, never more
// than the remaining allocation. A manually paused stream yields its stop
// snapshot clamped to the remaining allocation.
func WithdrawableAmount(raw models.RawStream, now int64) units.Amount {
	return withdrawable(raw, now, Status(raw, now))
}

func withdrawable(raw models.RawStream, now int64, status models.StreamStatus) units.Amount {
	remaining := RemainingAllocation(raw)
	if remaining.IsZero() {
		return units.Zero()
	}

	switch status {
	case models.StatusScheduled:
		return units.Zero()
	case models.StatusPaused:
		return units.Min(remaining, WithdrawableWhilePaused(raw))
	}

	if raw.RateAmountUnits.IsZero() || raw.RateIntervalInSeconds == 0 {
		return units.Zero()
	}
	earned := EntitledEarnings(raw, now).SaturatingSub(raw.TotalWithdrawalsUnits)
	return units.Min(remaining, earned)
}

// EstimatedDepletionTime is the unix second the allocation runs out at the
// current rate, counting time spent paused. Streams without a rate, and
// results outside the calendar range, report now.
func EstimatedDepletionTime(raw models.RawStream, now int64) int64 {
	if raw.RateIntervalInSeconds == 0 {
		return now
	}
	rate := UnitsPerSecond(raw)
	if rate.IsZero() {
		return now
	}

	streamable := raw.AllocationAssignedUnits.SaturatingSub(CliffAmount(raw))
	duration := streamable.Div(rate).Add(units.FromUint64(raw.LastKnownTotalSecondsInPausedStatus))

	depletion := new(big.Int).Add(big.NewInt(StartUtcInSeconds(raw)), duration.BigInt())
	if depletion.Cmp(big.NewInt(minRepresentableUnix)) < 0 || depletion.Cmp(big.NewInt(maxRepresentableUnix)) > 0 {
		return now
	}
	return depletion.Int64()
}

// FundsLeftInStream is the allocation neither withdrawn nor withdrawable.
func FundsLeftInStream(raw models.RawStream, now int64) units.Amount {
	return raw.AllocationAssignedUnits.
		SaturatingSub(raw.TotalWithdrawalsUnits).
		SaturatingSub(WithdrawableAmount(raw, now))
}

// FundsSentToBeneficiary counts withdrawals plus the withdrawable amount.
func FundsSentToBeneficiary(raw models.RawStream, now int64) units.Amount {
	return raw.TotalWithdrawalsUnits.Add(WithdrawableAmount(raw, now))
}

// SecondsSinceStart is zero until the stream starts.
func SecondsSinceStart(raw models.RawStream, now int64) int64 {
	elapsed := now - StartUtcInSeconds(raw)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// LastKnownStopBlockTime is the later of the auto and manual stop times.
func LastKnownStopBlockTime(raw models.RawStream) int64 {
	if raw.LastAutoStopBlockTime > raw.LastManualStopBlockTime {
		return raw.LastAutoStopBlockTime
	}
	return raw.LastManualStopBlockTime
}

// Derive evaluates every derived field at the same reference time.
func Derive(raw models.RawStream, now int64) models.StreamState {
	status := Status(raw, now)
	withdrawableAmount := withdrawable(raw, now, status)

	return models.StreamState{
		Status:                  status,
		StartUtcInSeconds:       StartUtcInSeconds(raw),
		SecondsSinceStart:       SecondsSinceStart(raw, now),
		CliffAmount:             CliffAmount(raw),
		UnitsPerSecond:          UnitsPerSecond(raw),
		IsManuallyPaused:        IsManuallyPaused(raw),
		RemainingAllocation:     RemainingAllocation(raw),
		WithdrawableAmount:      withdrawableAmount,
		WithdrawableWhilePaused: WithdrawableWhilePaused(raw),
		FundsLeftInStream: raw.AllocationAssignedUnits.
			SaturatingSub(raw.TotalWithdrawalsUnits).
			SaturatingSub(withdrawableAmount),
		FundsSentToBeneficiary: raw.TotalWithdrawalsUnits.Add(withdrawableAmount),
		EstimatedDepletionTime: EstimatedDepletionTime(raw, now),
		LastKnownStopBlockTime: LastKnownStopBlockTime(raw),
		ReferenceTime:          now,
	}
}
