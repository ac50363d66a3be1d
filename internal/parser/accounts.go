package parser

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

var (
	ErrAccountTooShort         = errors.New("account data too short")
	ErrUnexpectedDiscriminator = errors.New("unexpected account discriminator")
)

const (
	StreamAccountSize   = 341
	TreasuryAccountSize = 220
	TemplateAccountSize = 43

	discriminatorSize = 8
)

var (
	streamDiscriminator   = AccountDiscriminator("Stream")
	treasuryDiscriminator = AccountDiscriminator("Treasury")
	templateDiscriminator = AccountDiscriminator("StreamTemplate")
)

// AccountDiscriminator is the 8-byte prefix of every account of the named
// type: the first bytes of sha256("account:<Name>").
func AccountDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}

func checkHeader(data []byte, size int, want [discriminatorSize]byte) error {
	if len(data) < size {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrAccountTooShort, len(data), size)
	}
	if !bytes.Equal(data[:discriminatorSize], want[:]) {
		return fmt.Errorf("%w: %x", ErrUnexpectedDiscriminator, data[:discriminatorSize])
	}
	return nil
}

// fieldReader reads little-endian fields in order and keeps the first error.
type fieldReader struct {
	dec *bin.Decoder
	err error
}

func newFieldReader(data []byte) *fieldReader {
	return &fieldReader{dec: bin.NewBorshDecoder(data[discriminatorSize:])}
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.dec.ReadUint8()
	return v
}

func (r *fieldReader) boolean() bool {
	return r.u8() != 0
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = r.dec.ReadUint64(bin.LE)
	return v
}

func (r *fieldReader) i64() int64 {
	return int64(r.u64())
}

func (r *fieldReader) amount() units.Amount {
	return units.FromUint64(r.u64())
}

func (r *fieldReader) key() solana.PublicKey {
	return solana.PublicKeyFromBytes(r.bytes(solana.PublicKeyLength))
}

func (r *fieldReader) name() [32]byte {
	var out [32]byte
	copy(out[:], r.bytes(32))
	return out
}

func (r *fieldReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	var b []byte
	b, r.err = r.dec.ReadNBytes(n)
	return b
}

// DecodeStreamAccount reads a stream account's bytes.
func DecodeStreamAccount(data []byte) (models.RawStream, error) {
	if err := checkHeader(data, StreamAccountSize, streamDiscriminator); err != nil {
		return models.RawStream{}, fmt.Errorf("stream account: %w", err)
	}

	r := newFieldReader(data)
	s := models.RawStream{
		Version:                    r.u8(),
		Initialized:                r.boolean(),
		Name:                       r.name(),
		TreasurerAddress:           r.key(),
		RateAmountUnits:            r.amount(),
		RateIntervalInSeconds:      r.u64(),
		StartUtc:                   r.i64(),
		CliffVestAmountUnits:       r.amount(),
		CliffVestPercent:           r.u64(),
		BeneficiaryAddress:         r.key(),
		BeneficiaryAssociatedToken: r.key(),
		TreasuryAddress:            r.key(),
		AllocationAssignedUnits:    r.amount(),
		AllocationReservedUnits:    r.amount(),
		TotalWithdrawalsUnits:      r.amount(),

		LastWithdrawalUnits:     r.amount(),
		LastWithdrawalSlot:      r.u64(),
		LastWithdrawalBlockTime: r.i64(),

		LastManualStopWithdrawableUnitsSnap: r.amount(),
		LastManualStopSlot:                  r.u64(),
		LastManualStopBlockTime:             r.i64(),

		LastManualResumeRemainingAllocationUnitsSnap: r.amount(),
		LastManualResumeSlot:                         r.u64(),
		LastManualResumeBlockTime:                    r.i64(),

		LastKnownTotalSecondsInPausedStatus: r.u64(),
		LastAutoStopBlockTime:               r.i64(),
		FeePayedByTreasurer:                 r.boolean(),
		StartUtcInSeconds:                   r.i64(),
		CreatedOnUtc:                        r.i64(),
		Category:                            models.Category(r.u8()),
		SubCategory:                         models.SubCategory(r.u8()),
	}
	if r.err != nil {
		return models.RawStream{}, fmt.Errorf("stream account: %w", r.err)
	}
	return s, nil
}

// DecodeTreasuryAccount reads a treasury account's bytes.
func DecodeTreasuryAccount(data []byte) (models.RawTreasury, error) {
	if err := checkHeader(data, TreasuryAccountSize, treasuryDiscriminator); err != nil {
		return models.RawTreasury{}, fmt.Errorf("treasury account: %w", err)
	}

	r := newFieldReader(data)
	t := models.RawTreasury{
		Initialized:               r.boolean(),
		Version:                   r.u8(),
		Bump:                      r.u8(),
		Slot:                      r.u64(),
		Name:                      r.name(),
		TreasurerAddress:          r.key(),
		AssociatedTokenAddress:    r.key(),
		MintAddress:               r.key(),
		LastKnownBalanceUnits:     r.amount(),
		LastKnownBalanceSlot:      r.u64(),
		LastKnownBalanceBlockTime: r.i64(),
		AllocationReservedUnits:   r.amount(),
		AllocationAssignedUnits:   r.amount(),
		TotalWithdrawalsUnits:     r.amount(),
		TotalStreams:              r.u64(),
		CreatedOnUtc:              r.i64(),
		TreasuryType:              models.TreasuryType(r.u8()),
	}
	r.bytes(4) // reserved
	t.AutoClose = r.boolean()
	t.SolFeePayedByTreasury = r.boolean()
	t.Category = models.Category(r.u8())
	t.SubCategory = models.SubCategory(r.u8())
	if r.err != nil {
		return models.RawTreasury{}, fmt.Errorf("treasury account: %w", r.err)
	}
	return t, nil
}

// DecodeTemplateAccount reads a stream template account's bytes.
func DecodeTemplateAccount(data []byte) (models.RawStreamTemplate, error) {
	if err := checkHeader(data, TemplateAccountSize, templateDiscriminator); err != nil {
		return models.RawStreamTemplate{}, fmt.Errorf("template account: %w", err)
	}

	r := newFieldReader(data)
	t := models.RawStreamTemplate{
		Version:               r.u8(),
		Bump:                  r.u8(),
		StartUtcInSeconds:     r.i64(),
		CliffVestPercent:      r.u64(),
		RateIntervalInSeconds: r.u64(),
		DurationNumberOfUnits: r.u64(),
		FeePayedByTreasurer:   r.boolean(),
	}
	if r.err != nil {
		return models.RawStreamTemplate{}, fmt.Errorf("template account: %w", r.err)
	}
	return t, nil
}
