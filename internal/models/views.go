package models

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/token"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// StreamView is the display form of a Stream: base58 addresses, decimal
// amount strings and calendar dates.
type StreamView struct {
	ID                         string `json:"id"`
	Version                    uint8  `json:"version"`
	Initialized                bool   `json:"initialized"`
	Name                       string `json:"name"`
	StartUtc                   string `json:"startUtc"`
	Treasurer                  string `json:"treasurer"`
	Treasury                   string `json:"treasury"`
	Beneficiary                string `json:"beneficiary"`
	AssociatedToken            string `json:"associatedToken"`
	CliffVestAmount            string `json:"cliffVestAmount"`
	CliffVestPercent           string `json:"cliffVestPercent"`
	AllocationAssigned         string `json:"allocationAssigned"`
	SecondsSinceStart          int64  `json:"secondsSinceStart"`
	EstimatedDepletionDate     string `json:"estimatedDepletionDate"`
	RateAmount                 string `json:"rateAmount"`
	RateIntervalInSeconds      uint64 `json:"rateIntervalInSeconds"`
	TotalWithdrawalsAmount     string `json:"totalWithdrawalsAmount"`
	FundsLeftInStream          string `json:"fundsLeftInStream"`
	FundsSentToBeneficiary     string `json:"fundsSentToBeneficiary"`
	RemainingAllocationAmount  string `json:"remainingAllocationAmount"`
	WithdrawableAmount         string `json:"withdrawableAmount"`
	StreamUnitsPerSecond       string `json:"streamUnitsPerSecond"`
	IsManuallyPaused           bool   `json:"isManuallyPaused"`
	Status                     string `json:"status"`
	LastRetrievedBlockTime     int64  `json:"lastRetrievedBlockTime"`
	LastRetrievedTimeInSeconds int64  `json:"lastRetrievedTimeInSeconds"`
	FeePayedByTreasurer        bool   `json:"feePayedByTreasurer"`
	CreatedBlockTime           int64  `json:"createdBlockTime"`
	CreatedOnUtc               string `json:"createdOnUtc"`
	Category                   string `json:"category"`
	SubCategory                string `json:"subCategory"`
	UpgradeRequired            bool   `json:"upgradeRequired"`
}

func (s Stream) View() StreamView {
	return StreamView{
		ID:                         s.ID.String(),
		Version:                    s.Version,
		Initialized:                s.Initialized,
		Name:                       s.Name,
		StartUtc:                   formatDate(s.StartUtc),
		Treasurer:                  s.Treasurer.String(),
		Treasury:                   s.Treasury.String(),
		Beneficiary:                s.Beneficiary.String(),
		AssociatedToken:            s.AssociatedToken.String(),
		CliffVestAmount:            s.CliffVestAmount.String(),
		CliffVestPercent:           token.FormatPercent(s.CliffVestPercent),
		AllocationAssigned:         s.AllocationAssigned.String(),
		SecondsSinceStart:          s.SecondsSinceStart,
		EstimatedDepletionDate:     formatDate(s.EstimatedDepletionDate),
		RateAmount:                 s.RateAmount.String(),
		RateIntervalInSeconds:      s.RateIntervalInSeconds,
		TotalWithdrawalsAmount:     s.TotalWithdrawalsAmount.String(),
		FundsLeftInStream:          s.FundsLeftInStream.String(),
		FundsSentToBeneficiary:     s.FundsSentToBeneficiary.String(),
		RemainingAllocationAmount:  s.RemainingAllocationAmount.String(),
		WithdrawableAmount:         s.WithdrawableAmount.String(),
		StreamUnitsPerSecond:       s.StreamUnitsPerSecond.String(),
		IsManuallyPaused:           s.IsManuallyPaused,
		Status:                     s.Status.String(),
		LastRetrievedBlockTime:     s.LastRetrievedBlockTime,
		LastRetrievedTimeInSeconds: s.LastRetrievedTimeInSeconds,
		FeePayedByTreasurer:        s.FeePayedByTreasurer,
		CreatedBlockTime:           s.CreatedBlockTime,
		CreatedOnUtc:               formatDate(s.CreatedOnUtc),
		Category:                   s.Category.String(),
		SubCategory:                s.SubCategory.String(),
		UpgradeRequired:            s.UpgradeRequired,
	}
}

type TreasuryView struct {
	ID                 string `json:"id"`
	Version            uint8  `json:"version"`
	Initialized        bool   `json:"initialized"`
	Name               string `json:"name"`
	Bump               uint8  `json:"bump"`
	Slot               uint64 `json:"slot"`
	Mint               string `json:"mint"`
	AutoClose          bool   `json:"autoClose"`
	CreatedOnUtc       string `json:"createdOnUtc"`
	TreasuryType       string `json:"treasuryType"`
	Treasurer          string `json:"treasurer"`
	AssociatedToken    string `json:"associatedToken"`
	Balance            string `json:"balance"`
	AllocationReserved string `json:"allocationReserved"`
	AllocationAssigned string `json:"allocationAssigned"`
	TotalWithdrawals   string `json:"totalWithdrawals"`
	TotalStreams       uint64 `json:"totalStreams"`
	Category           string `json:"category"`
	SubCategory        string `json:"subCategory"`
}

func (t Treasury) View() TreasuryView {
	// an unset associated token renders empty rather than as the default key
	associatedToken := ""
	if !t.AssociatedToken.IsZero() {
		associatedToken = t.AssociatedToken.String()
	}
	return TreasuryView{
		ID:                 t.ID.String(),
		Version:            t.Version,
		Initialized:        t.Initialized,
		Name:               t.Name,
		Bump:               t.Bump,
		Slot:               t.Slot,
		Mint:               t.Mint.String(),
		AutoClose:          t.AutoClose,
		CreatedOnUtc:       formatDate(t.CreatedOnUtc),
		TreasuryType:       t.TreasuryType.String(),
		Treasurer:          t.Treasurer.String(),
		AssociatedToken:    associatedToken,
		Balance:            t.Balance.String(),
		AllocationReserved: t.AllocationReserved.String(),
		AllocationAssigned: t.AllocationAssigned.String(),
		TotalWithdrawals:   t.TotalWithdrawals.String(),
		TotalStreams:       t.TotalStreams,
		Category:           t.Category.String(),
		SubCategory:        t.SubCategory.String(),
	}
}

type StreamTemplateView struct {
	ID                    string `json:"id"`
	Version               uint8  `json:"version"`
	Bump                  uint8  `json:"bump"`
	DurationNumberOfUnits uint64 `json:"durationNumberOfUnits"`
	RateIntervalInSeconds uint64 `json:"rateIntervalInSeconds"`
	StartUtc              string `json:"startUtc"`
	CliffVestPercent      string `json:"cliffVestPercent"`
	FeePayedByTreasurer   bool   `json:"feePayedByTreasurer"`
}

func (t StreamTemplate) View() StreamTemplateView {
	return StreamTemplateView{
		ID:                    t.ID.String(),
		Version:               t.Version,
		Bump:                  t.Bump,
		DurationNumberOfUnits: t.DurationNumberOfUnits,
		RateIntervalInSeconds: t.RateIntervalInSeconds,
		StartUtc:              formatDate(t.StartUtc),
		CliffVestPercent:      token.FormatPercent(t.CliffVestPercent),
		FeePayedByTreasurer:   t.FeePayedByTreasurer,
	}
}

type StreamActivityView struct {
	Signature   string `json:"signature"`
	Initializer string `json:"initializer"`
	Action      string `json:"action"`
	Amount      string `json:"amount"`
	Mint        string `json:"mint"`
	BlockTime   int64  `json:"blockTime"`
	UtcDate     string `json:"utcDate"`
}

func (a StreamActivity) View() StreamActivityView {
	return StreamActivityView{
		Signature:   a.Signature,
		Initializer: keyString(a.Initializer),
		Action:      string(a.Action),
		Amount:      amountString(a.Amount),
		Mint:        keyString(a.Mint),
		BlockTime:   a.BlockTime,
		UtcDate:     a.UtcDate,
	}
}

type TreasuryActivityView struct {
	Signature               string `json:"signature"`
	Action                  string `json:"action"`
	Initializer             string `json:"initializer"`
	Mint                    string `json:"mint"`
	BlockTime               int64  `json:"blockTime"`
	Amount                  string `json:"amount"`
	Beneficiary             string `json:"beneficiary"`
	Destination             string `json:"destination"`
	Template                string `json:"template"`
	DestinationTokenAccount string `json:"destinationTokenAccount"`
	Stream                  string `json:"stream"`
	UtcDate                 string `json:"utcDate"`
}

func (a TreasuryActivity) View() TreasuryActivityView {
	return TreasuryActivityView{
		Signature:               a.Signature,
		Action:                  a.Action.String(),
		Initializer:             keyString(a.Initializer),
		Mint:                    keyString(a.Mint),
		BlockTime:               a.BlockTime,
		Amount:                  amountString(a.Amount),
		Beneficiary:             keyString(a.Beneficiary),
		Destination:             keyString(a.Destination),
		Template:                keyString(a.Template),
		DestinationTokenAccount: keyString(a.DestinationTokenAccount),
		Stream:                  keyString(a.Stream),
		UtcDate:                 a.UtcDate,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

func keyString(k *solana.PublicKey) string {
	if k == nil {
		return ""
	}
	return k.String()
}

func amountString(a *units.Amount) string {
	if a == nil {
		return ""
	}
	return a.String()
}
