package parser

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

var ErrAmountOverflow = errors.New("amount does not fit in u64")

// fieldWriter is the write side of fieldReader.
type fieldWriter struct {
	buf *bytes.Buffer
	enc *bin.Encoder
	err error
}

func newFieldWriter(discriminator [discriminatorSize]byte, size int) *fieldWriter {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.Write(discriminator[:])
	return &fieldWriter{buf: buf, enc: bin.NewBorshEncoder(buf)}
}

func (w *fieldWriter) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *fieldWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *fieldWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, bin.LE)
	}
}

func (w *fieldWriter) i64(v int64) {
	w.u64(uint64(v))
}

func (w *fieldWriter) amount(a units.Amount) {
	v, ok := a.Uint64()
	if !ok && w.err == nil {
		w.err = fmt.Errorf("%w: %s", ErrAmountOverflow, a)
		return
	}
	w.u64(v)
}

func (w *fieldWriter) bytes(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *fieldWriter) key(k solana.PublicKey) {
	w.bytes(k[:])
}

func (w *fieldWriter) result() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// EncodeStreamAccount lays out a stream the way the program stores it.
func EncodeStreamAccount(s models.RawStream) ([]byte, error) {
	w := newFieldWriter(streamDiscriminator, StreamAccountSize)
	w.u8(s.Version)
	w.boolean(s.Initialized)
	w.bytes(s.Name[:])
	w.key(s.TreasurerAddress)
	w.amount(s.RateAmountUnits)
	w.u64(s.RateIntervalInSeconds)
	w.i64(s.StartUtc)
	w.amount(s.CliffVestAmountUnits)
	w.u64(s.CliffVestPercent)
	w.key(s.BeneficiaryAddress)
	w.key(s.BeneficiaryAssociatedToken)
	w.key(s.TreasuryAddress)
	w.amount(s.AllocationAssignedUnits)
	w.amount(s.AllocationReservedUnits)
	w.amount(s.TotalWithdrawalsUnits)
	w.amount(s.LastWithdrawalUnits)
	w.u64(s.LastWithdrawalSlot)
	w.i64(s.LastWithdrawalBlockTime)
	w.amount(s.LastManualStopWithdrawableUnitsSnap)
	w.u64(s.LastManualStopSlot)
	w.i64(s.LastManualStopBlockTime)
	w.amount(s.LastManualResumeRemainingAllocationUnitsSnap)
	w.u64(s.LastManualResumeSlot)
	w.i64(s.LastManualResumeBlockTime)
	w.u64(s.LastKnownTotalSecondsInPausedStatus)
	w.i64(s.LastAutoStopBlockTime)
	w.boolean(s.FeePayedByTreasurer)
	w.i64(s.StartUtcInSeconds)
	w.i64(s.CreatedOnUtc)
	w.u8(uint8(s.Category))
	w.u8(uint8(s.SubCategory))
	return w.result()
}

func EncodeTreasuryAccount(t models.RawTreasury) ([]byte, error) {
	w := newFieldWriter(treasuryDiscriminator, TreasuryAccountSize)
	w.boolean(t.Initialized)
	w.u8(t.Version)
	w.u8(t.Bump)
	w.u64(t.Slot)
	w.bytes(t.Name[:])
	w.key(t.TreasurerAddress)
	w.key(t.AssociatedTokenAddress)
	w.key(t.MintAddress)
	w.amount(t.LastKnownBalanceUnits)
	w.u64(t.LastKnownBalanceSlot)
	w.i64(t.LastKnownBalanceBlockTime)
	w.amount(t.AllocationReservedUnits)
	w.amount(t.AllocationAssignedUnits)
	w.amount(t.TotalWithdrawalsUnits)
	w.u64(t.TotalStreams)
	w.i64(t.CreatedOnUtc)
	w.u8(uint8(t.TreasuryType))
	w.bytes(make([]byte, 4))
	w.boolean(t.AutoClose)
	w.boolean(t.SolFeePayedByTreasury)
	w.u8(uint8(t.Category))
	w.u8(uint8(t.SubCategory))
	return w.result()
}

func EncodeTemplateAccount(t models.RawStreamTemplate) ([]byte, error) {
	w := newFieldWriter(templateDiscriminator, TemplateAccountSize)
	w.u8(t.Version)
	w.u8(t.Bump)
	w.i64(t.StartUtcInSeconds)
	w.u64(t.CliffVestPercent)
	w.u64(t.RateIntervalInSeconds)
	w.u64(t.DurationNumberOfUnits)
	w.boolean(t.FeePayedByTreasurer)
	return w.result()
}
