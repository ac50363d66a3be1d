package models

import (
	"bytes"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

// RawStream is a stream account exactly as stored on the ledger. Times are
// unix seconds except StartUtc, which legacy accounts stored in milliseconds.
type RawStream struct {
	Version                    uint8            `json:"version"`
	Initialized                bool             `json:"initialized"`
	Name                       [32]byte         `json:"name"`
	TreasurerAddress           solana.PublicKey `json:"treasurerAddress"`
	RateAmountUnits            units.Amount     `json:"rateAmountUnits"`
	RateIntervalInSeconds      uint64           `json:"rateIntervalInSeconds"`
	StartUtc                   int64            `json:"startUtc"`
	CliffVestAmountUnits       units.Amount     `json:"cliffVestAmountUnits"`
	CliffVestPercent           uint64           `json:"cliffVestPercent"`
	BeneficiaryAddress         solana.PublicKey `json:"beneficiaryAddress"`
	BeneficiaryAssociatedToken solana.PublicKey `json:"beneficiaryAssociatedToken"`
	TreasuryAddress            solana.PublicKey `json:"treasuryAddress"`
	AllocationAssignedUnits    units.Amount     `json:"allocationAssignedUnits"`
	AllocationReservedUnits    units.Amount     `json:"allocationReservedUnits"`
	TotalWithdrawalsUnits      units.Amount     `json:"totalWithdrawalsUnits"`

	LastWithdrawalUnits     units.Amount `json:"lastWithdrawalUnits"`
	LastWithdrawalSlot      uint64       `json:"lastWithdrawalSlot"`
	LastWithdrawalBlockTime int64        `json:"lastWithdrawalBlockTime"`

	LastManualStopWithdrawableUnitsSnap units.Amount `json:"lastManualStopWithdrawableUnitsSnap"`
	LastManualStopSlot                  uint64       `json:"lastManualStopSlot"`
	LastManualStopBlockTime             int64        `json:"lastManualStopBlockTime"`

	LastManualResumeRemainingAllocationUnitsSnap units.Amount `json:"lastManualResumeRemainingAllocationUnitsSnap"`
	LastManualResumeSlot                         uint64       `json:"lastManualResumeSlot"`
	LastManualResumeBlockTime                    int64        `json:"lastManualResumeBlockTime"`

	LastKnownTotalSecondsInPausedStatus uint64      `json:"lastKnownTotalSecondsInPausedStatus"`
	LastAutoStopBlockTime               int64       `json:"lastAutoStopBlockTime"`
	FeePayedByTreasurer                 bool        `json:"feePayedByTreasurer"`
	StartUtcInSeconds                   int64       `json:"startUtcInSeconds"`
	CreatedOnUtc                        int64       `json:"createdOnUtc"`
	Category                            Category    `json:"category"`
	SubCategory                         SubCategory `json:"subCategory"`
}

// DisplayName trims the zero padding from the fixed-size name.
func (r RawStream) DisplayName() string {
	return string(bytes.TrimRight(r.Name[:], "\x00"))
}

// StreamState is everything derived from a RawStream at one reference time.
type StreamState struct {
	Status                  StreamStatus `json:"status"`
	StartUtcInSeconds       int64        `json:"startUtcInSeconds"`
	SecondsSinceStart       int64        `json:"secondsSinceStart"`
	CliffAmount             units.Amount `json:"cliffUnits"`
	UnitsPerSecond          units.Amount `json:"unitsPerSecond"`
	IsManuallyPaused        bool         `json:"isManualPause"`
	RemainingAllocation     units.Amount `json:"beneficiaryRemainingAllocation"`
	WithdrawableAmount      units.Amount `json:"beneficiaryWithdrawableAmount"`
	WithdrawableWhilePaused units.Amount `json:"withdrawableUnitsWhilePaused"`
	FundsLeftInStream       units.Amount `json:"fundsLeftInStream"`
	FundsSentToBeneficiary  units.Amount `json:"fundsSentToBeneficiary"`
	EstimatedDepletionTime  int64        `json:"estDepletionTime"`
	LastKnownStopBlockTime  int64        `json:"lastKnownStopBlockTime"`
	ReferenceTime           int64        `json:"currentBlockTime"`
}

// Stream is a stream account decoded and derived for callers. Data keeps the
// ledger snapshot so a later redisplay never has to fetch it again.
type Stream struct {
	ID                         solana.PublicKey `json:"id"`
	Version                    uint8            `json:"version"`
	Initialized                bool             `json:"initialized"`
	Name                       string           `json:"name"`
	StartUtc                   time.Time        `json:"startUtc"`
	Treasurer                  solana.PublicKey `json:"treasurer"`
	Treasury                   solana.PublicKey `json:"treasury"`
	Beneficiary                solana.PublicKey `json:"beneficiary"`
	AssociatedToken            solana.PublicKey `json:"associatedToken"`
	CliffVestAmount            units.Amount     `json:"cliffVestAmount"`
	CliffVestPercent           uint64           `json:"cliffVestPercent"`
	AllocationAssigned         units.Amount     `json:"allocationAssigned"`
	SecondsSinceStart          int64            `json:"secondsSinceStart"`
	EstimatedDepletionDate     time.Time        `json:"estimatedDepletionDate"`
	RateAmount                 units.Amount     `json:"rateAmount"`
	RateIntervalInSeconds      uint64           `json:"rateIntervalInSeconds"`
	TotalWithdrawalsAmount     units.Amount     `json:"totalWithdrawalsAmount"`
	FundsLeftInStream          units.Amount     `json:"fundsLeftInStream"`
	FundsSentToBeneficiary     units.Amount     `json:"fundsSentToBeneficiary"`
	RemainingAllocationAmount  units.Amount     `json:"remainingAllocationAmount"`
	WithdrawableAmount         units.Amount     `json:"withdrawableAmount"`
	StreamUnitsPerSecond       units.Amount     `json:"streamUnitsPerSecond"`
	IsManuallyPaused           bool             `json:"isManuallyPaused"`
	Status                     StreamStatus     `json:"status"`
	LastRetrievedBlockTime     int64            `json:"lastRetrievedBlockTime"`
	LastRetrievedTimeInSeconds int64            `json:"lastRetrievedTimeInSeconds"`
	FeePayedByTreasurer        bool             `json:"feePayedByTreasurer"`
	CreatedBlockTime           int64            `json:"createdBlockTime"`
	CreatedOnUtc               time.Time        `json:"createdOnUtc"`
	Category                   Category         `json:"category"`
	SubCategory                SubCategory      `json:"subCategory"`
	TransactionSignature       string           `json:"transactionSignature"`
	UpgradeRequired            bool             `json:"upgradeRequired"`
	State                      StreamState      `json:"state"`
	Data                       RawStream        `json:"data"`
}

// Present returns the stream itself for Raw and a StreamView for Friendly.
func (s Stream) Present(p Presentation) any {
	if p == Friendly {
		return s.View()
	}
	return s
}
