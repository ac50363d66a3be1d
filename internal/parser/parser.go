package parser

import (
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/derivation"
	"github.com/estensen/streamflow-pipeline/internal/models"
)

// StreamAccount pairs a stream account with its address.
type StreamAccount struct {
	Address solana.PublicKey
	Raw     models.RawStream
}

type TreasuryAccount struct {
	Address solana.PublicKey
	Raw     models.RawTreasury
}

// Parser turns raw account records into derived records. The clock only
// stamps when a stream was retrieved and projects cached streams forward.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

func NewParserWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// ParseStream derives a stream at blockTime, the ledger's current time in
// unix seconds. The raw record is kept verbatim in Data.
func (p *Parser) ParseStream(raw models.RawStream, address solana.PublicKey, blockTime int64) models.Stream {
	state := derivation.Derive(raw, blockTime)

	created := raw.CreatedOnUtc
	if created <= 0 {
		created = state.StartUtcInSeconds
	}

	return models.Stream{
		ID:                         address,
		Version:                    raw.Version,
		Initialized:                raw.Initialized,
		Name:                       raw.DisplayName(),
		StartUtc:                   unixUTC(state.StartUtcInSeconds),
		Treasurer:                  raw.TreasurerAddress,
		Treasury:                   raw.TreasuryAddress,
		Beneficiary:                raw.BeneficiaryAddress,
		AssociatedToken:            raw.BeneficiaryAssociatedToken,
		CliffVestAmount:            raw.CliffVestAmountUnits,
		CliffVestPercent:           raw.CliffVestPercent,
		AllocationAssigned:         raw.AllocationAssignedUnits,
		SecondsSinceStart:          state.SecondsSinceStart,
		EstimatedDepletionDate:     unixUTC(state.EstimatedDepletionTime),
		RateAmount:                 raw.RateAmountUnits,
		RateIntervalInSeconds:      raw.RateIntervalInSeconds,
		TotalWithdrawalsAmount:     raw.TotalWithdrawalsUnits,
		FundsLeftInStream:          state.FundsLeftInStream,
		FundsSentToBeneficiary:     state.FundsSentToBeneficiary,
		RemainingAllocationAmount:  state.RemainingAllocation,
		WithdrawableAmount:         state.WithdrawableAmount,
		StreamUnitsPerSecond:       state.UnitsPerSecond,
		IsManuallyPaused:           state.IsManuallyPaused,
		Status:                     state.Status,
		LastRetrievedBlockTime:     blockTime,
		LastRetrievedTimeInSeconds: p.now().Unix(),
		FeePayedByTreasurer:        raw.FeePayedByTreasurer,
		CreatedBlockTime:           created,
		CreatedOnUtc:               unixUTC(created),
		Category:                   raw.Category,
		SubCategory:                raw.SubCategory,
		State:                      state,
		Data:                       raw,
	}
}

// DecodeStream decodes account bytes and derives the stream at blockTime.
func (p *Parser) DecodeStream(data []byte, address solana.PublicKey, blockTime int64) (models.Stream, error) {
	raw, err := DecodeStreamAccount(data)
	if err != nil {
		return models.Stream{}, err
	}
	return p.ParseStream(raw, address, blockTime), nil
}

// ParseStreamCached re-derives a previously parsed stream without a fresh
// ledger read. The drift between wall clock and ledger time recorded at
// retrieval is assumed unchanged.
func (p *Parser) ParseStreamCached(prev models.Stream) models.Stream {
	timeDiff := prev.LastRetrievedTimeInSeconds - prev.LastRetrievedBlockTime
	blockTime := derivation.Now(p.now().Unix(), timeDiff)

	s := p.ParseStream(prev.Data, prev.ID, blockTime)
	s.CreatedBlockTime = prev.CreatedBlockTime
	return s
}

// ParseStreams derives every account at blockTime, newest first.
func (p *Parser) ParseStreams(accounts []StreamAccount, blockTime int64) []models.Stream {
	streams := make([]models.Stream, 0, len(accounts))
	for _, acc := range accounts {
		streams = append(streams, p.ParseStream(acc.Raw, acc.Address, blockTime))
	}
	sortByCreated(streams)
	return streams
}

func (p *Parser) ParseStreamsCached(prev []models.Stream) []models.Stream {
	streams := make([]models.Stream, 0, len(prev))
	for _, s := range prev {
		streams = append(streams, p.ParseStreamCached(s))
	}
	sortByCreated(streams)
	return streams
}

func sortByCreated(streams []models.Stream) {
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].CreatedBlockTime > streams[j].CreatedBlockTime
	})
}

func (p *Parser) ParseTreasury(raw models.RawTreasury, address solana.PublicKey) models.Treasury {
	return models.Treasury{
		ID:                 address,
		Version:            raw.Version,
		Initialized:        raw.Initialized,
		Name:               raw.DisplayName(),
		Bump:               raw.Bump,
		Slot:               raw.Slot,
		Mint:               raw.MintAddress,
		AutoClose:          raw.AutoClose,
		CreatedOnUtc:       unixUTC(derivation.NormalizeSeconds(raw.CreatedOnUtc)),
		TreasuryType:       raw.TreasuryType,
		Treasurer:          raw.TreasurerAddress,
		AssociatedToken:    raw.AssociatedTokenAddress,
		Balance:            raw.LastKnownBalanceUnits,
		AllocationReserved: raw.AllocationReservedUnits,
		AllocationAssigned: raw.AllocationAssignedUnits,
		TotalWithdrawals:   raw.TotalWithdrawalsUnits,
		TotalStreams:       raw.TotalStreams,
		Category:           raw.Category,
		SubCategory:        raw.SubCategory,
		Data:               raw,
	}
}

func (p *Parser) DecodeTreasury(data []byte, address solana.PublicKey) (models.Treasury, error) {
	raw, err := DecodeTreasuryAccount(data)
	if err != nil {
		return models.Treasury{}, err
	}
	return p.ParseTreasury(raw, address), nil
}

// ParseTreasuries parses every account, highest slot first.
func (p *Parser) ParseTreasuries(accounts []TreasuryAccount) []models.Treasury {
	treasuries := make([]models.Treasury, 0, len(accounts))
	for _, acc := range accounts {
		treasuries = append(treasuries, p.ParseTreasury(acc.Raw, acc.Address))
	}
	sort.SliceStable(treasuries, func(i, j int) bool {
		return treasuries[i].Slot > treasuries[j].Slot
	})
	return treasuries
}

func (p *Parser) ParseTemplate(raw models.RawStreamTemplate, address solana.PublicKey) models.StreamTemplate {
	return models.StreamTemplate{
		ID:                    address,
		Version:               raw.Version,
		Bump:                  raw.Bump,
		DurationNumberOfUnits: raw.DurationNumberOfUnits,
		RateIntervalInSeconds: raw.RateIntervalInSeconds,
		StartUtc:              unixUTC(raw.StartUtcInSeconds),
		CliffVestPercent:      raw.CliffVestPercent,
		FeePayedByTreasurer:   raw.FeePayedByTreasurer,
	}
}

func (p *Parser) DecodeTemplate(data []byte, address solana.PublicKey) (models.StreamTemplate, error) {
	raw, err := DecodeTemplateAccount(data)
	if err != nil {
		return models.StreamTemplate{}, err
	}
	return p.ParseTemplate(raw, address), nil
}

// FindStreamTemplateAddress derives the template account a vesting treasury
// owns, with its bump seed.
func FindStreamTemplateAddress(treasury, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("template"), treasury.Bytes()}, programID)
}

func unixUTC(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}
