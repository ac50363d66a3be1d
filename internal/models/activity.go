package models

import (
	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

// StreamActivity is one deposit or withdrawal decoded from a stream's history.
// BlockTime is in milliseconds. Optional fields are nil when the instruction
// did not carry them.
type StreamActivity struct {
	Signature   string            `json:"signature"`
	Initializer *solana.PublicKey `json:"initializer,omitempty"`
	Action      StreamAction      `json:"action"`
	Amount      *units.Amount     `json:"amount,omitempty"`
	Mint        *solana.PublicKey `json:"mint,omitempty"`
	BlockTime   int64             `json:"blockTime"`
	UtcDate     string            `json:"utcDate"`
}

func (a StreamActivity) Present(p Presentation) any {
	if p == Friendly {
		return a.View()
	}
	return a
}

// TreasuryActivity is one operation decoded from a vesting treasury's history.
type TreasuryActivity struct {
	Signature               string            `json:"signature"`
	Action                  TreasuryAction    `json:"action"`
	Initializer             *solana.PublicKey `json:"initializer,omitempty"`
	Mint                    *solana.PublicKey `json:"mint,omitempty"`
	Amount                  *units.Amount     `json:"amount,omitempty"`
	Template                *solana.PublicKey `json:"template,omitempty"`
	Beneficiary             *solana.PublicKey `json:"beneficiary,omitempty"`
	Destination             *solana.PublicKey `json:"destination,omitempty"`
	DestinationTokenAccount *solana.PublicKey `json:"destinationTokenAccount,omitempty"`
	Stream                  *solana.PublicKey `json:"stream,omitempty"`
	BlockTime               int64             `json:"blockTime"`
	UtcDate                 string            `json:"utcDate"`
}

func (a TreasuryActivity) Present(p Presentation) any {
	if p == Friendly {
		return a.View()
	}
	return a
}
