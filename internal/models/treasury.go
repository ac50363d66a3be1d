package models

import (
	"bytes"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

type RawTreasury struct {
	Initialized               bool             `json:"initialized"`
	Version                   uint8            `json:"version"`
	Bump                      uint8            `json:"bump"`
	Slot                      uint64           `json:"slot"`
	Name                      [32]byte         `json:"name"`
	TreasurerAddress          solana.PublicKey `json:"treasurerAddress"`
	AssociatedTokenAddress    solana.PublicKey `json:"associatedTokenAddress"`
	MintAddress               solana.PublicKey `json:"mintAddress"`
	LastKnownBalanceUnits     units.Amount     `json:"lastKnownBalanceUnits"`
	LastKnownBalanceSlot      uint64           `json:"lastKnownBalanceSlot"`
	LastKnownBalanceBlockTime int64            `json:"lastKnownBalanceBlockTime"`
	AllocationReservedUnits   units.Amount     `json:"allocationReservedUnits"`
	AllocationAssignedUnits   units.Amount     `json:"allocationAssignedUnits"`
	TotalWithdrawalsUnits     units.Amount     `json:"totalWithdrawalsUnits"`
	TotalStreams              uint64           `json:"totalStreams"`
	CreatedOnUtc              int64            `json:"createdOnUtc"`
	TreasuryType              TreasuryType     `json:"treasuryType"`
	AutoClose                 bool             `json:"autoClose"`
	SolFeePayedByTreasury     bool             `json:"solFeePayedByTreasury"`
	Category                  Category         `json:"category"`
	SubCategory               SubCategory      `json:"subCategory"`
}

func (r RawTreasury) DisplayName() string {
	return string(bytes.TrimRight(r.Name[:], "\x00"))
}

type Treasury struct {
	ID                 solana.PublicKey `json:"id"`
	Version            uint8            `json:"version"`
	Initialized        bool             `json:"initialized"`
	Name               string           `json:"name"`
	Bump               uint8            `json:"bump"`
	Slot               uint64           `json:"slot"`
	Mint               solana.PublicKey `json:"mint"`
	AutoClose          bool             `json:"autoClose"`
	CreatedOnUtc       time.Time        `json:"createdOnUtc"`
	TreasuryType       TreasuryType     `json:"treasuryType"`
	Treasurer          solana.PublicKey `json:"treasurer"`
	AssociatedToken    solana.PublicKey `json:"associatedToken"`
	Balance            units.Amount     `json:"balance"`
	AllocationReserved units.Amount     `json:"allocationReserved"`
	AllocationAssigned units.Amount     `json:"allocationAssigned"`
	TotalWithdrawals   units.Amount     `json:"totalWithdrawals"`
	TotalStreams       uint64           `json:"totalStreams"`
	Category           Category         `json:"category"`
	SubCategory        SubCategory      `json:"subCategory"`
	Data               RawTreasury      `json:"data"`
}

func (t Treasury) Present(p Presentation) any {
	if p == Friendly {
		return t.View()
	}
	return t
}

// RawStreamTemplate seeds the streams a vesting treasury creates.
type RawStreamTemplate struct {
	Version               uint8  `json:"version"`
	Bump                  uint8  `json:"bump"`
	StartUtcInSeconds     int64  `json:"startUtcInSeconds"`
	CliffVestPercent      uint64 `json:"cliffVestPercent"`
	RateIntervalInSeconds uint64 `json:"rateIntervalInSeconds"`
	DurationNumberOfUnits uint64 `json:"durationNumberOfUnits"`
	FeePayedByTreasurer   bool   `json:"feePayedByTreasurer"`
}

type StreamTemplate struct {
	ID                    solana.PublicKey `json:"id"`
	Version               uint8            `json:"version"`
	Bump                  uint8            `json:"bump"`
	DurationNumberOfUnits uint64           `json:"durationNumberOfUnits"`
	RateIntervalInSeconds uint64           `json:"rateIntervalInSeconds"`
	StartUtc              time.Time        `json:"startUtc"`
	CliffVestPercent      uint64           `json:"cliffVestPercent"`
	FeePayedByTreasurer   bool             `json:"feePayedByTreasurer"`
}

func (t StreamTemplate) Present(p Presentation) any {
	if p == Friendly {
		return t.View()
	}
	return t
}
