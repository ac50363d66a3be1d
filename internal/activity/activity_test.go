package activity_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estensen/streamflow-pipeline/internal/activity"
	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/schema"
)

func key(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

var (
	programID   = key(0xAA)
	stream      = key(0x11)
	otherStream = key(0x12)
	treasury    = key(0x13)
	treasurer   = key(0x14)
	beneficiary = key(0x15)
	mint        = key(0x16)
	template    = key(0x17)
	destination = key(0x18)
	destToken   = key(0x19)
	pauser      = key(0x1A)
)

func roles(streamKey solana.PublicKey) map[string]solana.PublicKey {
	return map[string]solana.PublicKey{
		"Stream":                    streamKey,
		"Treasury":                  treasury,
		"Treasurer":                 treasurer,
		"Beneficiary":               beneficiary,
		"Associated Token":          mint,
		"Template":                  template,
		"Destination Authority":     destination,
		"Destination Token Account": destToken,
		"Initializer":               pauser,
	}
}

type fixture struct {
	t        *testing.T
	registry *schema.Registry
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, registry: schema.NewRegistry()}
}

func (f *fixture) ix(v schema.Version, name string, args map[string]any) schema.Instruction {
	return f.ixFor(v, name, args, stream)
}

func (f *fixture) ixFor(v schema.Version, name string, args map[string]any, streamKey solana.PublicKey) schema.Instruction {
	f.t.Helper()
	def, err := f.registry.GetOrLoad(v)
	require.NoError(f.t, err)
	ix, err := def.Encode(programID, name, args, roles(streamKey))
	require.NoError(f.t, err)
	return ix
}

func (f *fixture) reconstructor(opts ...activity.Option) *activity.Reconstructor {
	return activity.NewReconstructor(schema.NewDecoder(programID, f.registry), opts...)
}

func amount(n uint64) map[string]any {
	return map[string]any{"amount": n}
}

func streamHistory(f *fixture) []activity.Transaction {
	before := schema.Cutover - 1000
	after := schema.Cutover + 1000

	foreign := f.ix(schema.V4, "withdraw", amount(9000))
	foreign.ProgramID = key(0xBB)

	return []activity.Transaction{
		{
			Signature: "legacy-allocation",
			BlockTime: before,
			Instructions: []schema.Instruction{
				f.ix(schema.LegacyBeforeCutover, "addFunds", map[string]any{"amount": uint64(500_000), "allocationType": uint8(1)}),
			},
		},
		{
			Signature: "legacy-topup",
			BlockTime: before + 10,
			Instructions: []schema.Instruction{
				f.ix(schema.LegacyBeforeCutover, "addFunds", map[string]any{"amount": uint64(500_000), "allocationType": uint8(0)}),
			},
		},
		{
			Signature: "legacy-after-allocate",
			BlockTime: after,
			Instructions: []schema.Instruction{
				f.ix(schema.LegacyAfterCutover, "allocate", amount(250_000)),
			},
		},
		{
			Signature: "template-create",
			BlockTime: after + 100,
			Instructions: []schema.Instruction{
				f.ix(schema.V2, "createStreamWithTemplate", map[string]any{"name": "seed round", "allocationAssignedUnits": uint64(1_000_000)}),
			},
		},
		{
			Signature: "withdraw-and-noise",
			BlockTime: after + 200,
			Instructions: []schema.Instruction{
				foreign,
				f.ixFor(schema.V4, "withdraw", amount(7000), otherStream),
				f.ix(schema.V4, "withdraw", amount(6000)),
				f.ix(schema.V4, "pauseStream", nil),
			},
		},
	}
}

func TestStreamActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	events, err := f.reconstructor().StreamActivity(context.Background(), stream, streamHistory(f))
	require.NoError(t, err)

	type row struct {
		signature   string
		action      models.StreamAction
		amount      string
		initializer solana.PublicKey
	}
	var got []row
	for _, e := range events {
		require.NotNil(t, e.Amount, e.Signature)
		require.NotNil(t, e.Initializer, e.Signature)
		require.NotNil(t, e.Mint, e.Signature)
		assert.True(t, e.Mint.Equals(mint))
		got = append(got, row{e.Signature, e.Action, e.Amount.String(), *e.Initializer})
	}

	assert.Equal(t, []row{
		{"withdraw-and-noise", models.ActionWithdrew, "6000", beneficiary},
		{"template-create", models.ActionDeposited, "1000000", treasurer},
		{"legacy-after-allocate", models.ActionDeposited, "250000", treasurer},
		{"legacy-allocation", models.ActionDeposited, "500000", treasurer},
	}, got)
}

func TestStreamActivityTimestamps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	txs := []activity.Transaction{{
		Signature:    "sig",
		BlockTime:    1700000000,
		Instructions: []schema.Instruction{f.ix(schema.V1, "withdraw", amount(10))},
	}}

	events, err := f.reconstructor().StreamActivity(context.Background(), stream, txs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1700000000000), events[0].BlockTime)
	assert.Equal(t, "Tue, 14 Nov 2023 22:13:20 GMT", events[0].UtcDate)
}

func TestStreamActivityKeepsInstructionOrderWithinABlock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	txs := []activity.Transaction{
		{Signature: "a", BlockTime: 1700000000, Instructions: []schema.Instruction{
			f.ix(schema.V3, "allocate", amount(100)),
			f.ix(schema.V3, "withdraw", amount(50)),
		}},
		{Signature: "b", BlockTime: 1700000000, Instructions: []schema.Instruction{
			f.ix(schema.V3, "withdraw", amount(25)),
		}},
	}

	events, err := f.reconstructor().StreamActivity(context.Background(), stream, txs)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "100", events[0].Amount.String())
	assert.Equal(t, "50", events[1].Amount.String())
	assert.Equal(t, "25", events[2].Amount.String())
}

func TestWorkersDoNotChangeOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var txs []activity.Transaction
	for i := 0; i < 64; i++ {
		// Repeated block times exercise the stable ordering.
		blockTime := schema.Cutover + int64(i%7)*60
		txs = append(txs, activity.Transaction{
			Signature: fmt.Sprintf("sig-%02d", i),
			BlockTime: blockTime,
			Instructions: []schema.Instruction{
				f.ix(schema.V4, "allocate", amount(uint64(1000+i*10))),
				f.ix(schema.V4, "withdraw", amount(uint64(2000+i*10))),
				f.ix(schema.V4, "pauseStream", nil),
			},
		})
	}

	ctx := context.Background()
	sequential, err := f.reconstructor().StreamActivity(ctx, stream, txs)
	require.NoError(t, err)
	concurrent, err := f.reconstructor(activity.WithWorkers(8)).StreamActivity(ctx, stream, txs)
	require.NoError(t, err)
	assert.Equal(t, sequential, concurrent)

	seqTreasury, err := f.reconstructor().TreasuryActivity(ctx, treasury, txs)
	require.NoError(t, err)
	conTreasury, err := f.reconstructor(activity.WithWorkers(8)).TreasuryActivity(ctx, treasury, txs)
	require.NoError(t, err)
	assert.Len(t, seqTreasury, 3*64)
	assert.Equal(t, seqTreasury, conTreasury)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			_, err := f.reconstructor(activity.WithWorkers(workers)).StreamActivity(ctx, stream, streamHistory(f))
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func treasuryHistory(f *fixture) []activity.Transaction {
	base := schema.Cutover + 10_000
	create := map[string]any{
		"name": "vesting", "treasuryType": uint8(1), "autoClose": false,
		"startUtc": uint64(base), "rateIntervalInSeconds": uint64(86400),
		"durationNumberOfUnits": uint64(12), "cliffVestPercent": uint64(100_000),
		"feePayedByTreasurer": true, "slot": uint64(123), "solFeePayedByTreasury": false,
		"category": uint8(1), "subCategory": uint8(4),
	}

	return []activity.Transaction{
		{Signature: "add-funds", BlockTime: base + 100, Instructions: []schema.Instruction{
			f.ix(schema.V4, "addFunds", amount(5_000_000)),
		}},
		// The create carries the latest block time yet must close the feed.
		{Signature: "create", BlockTime: base + 900, Instructions: []schema.Instruction{
			f.ix(schema.V4, "createTreasuryAndTemplate", create),
		}},
		{Signature: "stream", BlockTime: base + 200, Instructions: []schema.Instruction{
			f.ix(schema.V4, "createStreamWithTemplate", map[string]any{"name": "alice", "allocationAssignedUnits": uint64(1_200_000)}),
		}},
		{Signature: "pause", BlockTime: base + 300, Instructions: []schema.Instruction{
			f.ix(schema.V4, "pauseStream", nil),
		}},
		{Signature: "treasury-withdraw", BlockTime: base + 400, Instructions: []schema.Instruction{
			f.ix(schema.V4, "treasuryWithdraw", amount(3000)),
		}},
		{Signature: "refresh", BlockTime: base + 500, Instructions: []schema.Instruction{
			f.ix(schema.V4, "refreshTreasuryData", nil),
		}},
		{Signature: "legacy", BlockTime: base + 600, Instructions: []schema.Instruction{
			f.ix(schema.LegacyAfterCutover, "allocate", amount(250_000)),
		}},
	}
}

func TestTreasuryActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	events, err := f.reconstructor().TreasuryActivity(context.Background(), treasury, treasuryHistory(f))
	require.NoError(t, err)

	var actions []models.TreasuryAction
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []models.TreasuryAction{
		models.TreasuryRefresh,
		models.TreasuryWithdraw,
		models.StreamPause,
		models.StreamCreate,
		models.TreasuryAddFunds,
		models.TreasuryCreate,
	}, actions)

	byAction := make(map[models.TreasuryAction]models.TreasuryActivity)
	for _, e := range events {
		byAction[e.Action] = e
	}

	created := byAction[models.TreasuryCreate]
	require.NotNil(t, created.Template)
	assert.True(t, created.Template.Equals(template))
	assert.True(t, created.Initializer.Equals(treasurer))
	assert.True(t, created.Mint.Equals(mint))
	assert.Nil(t, created.Amount)

	streamCreated := byAction[models.StreamCreate]
	require.NotNil(t, streamCreated.Amount)
	assert.Equal(t, "1200000", streamCreated.Amount.String())
	assert.True(t, streamCreated.Stream.Equals(stream))
	assert.True(t, streamCreated.Beneficiary.Equals(beneficiary))

	withdrawn := byAction[models.TreasuryWithdraw]
	require.NotNil(t, withdrawn.Destination)
	require.NotNil(t, withdrawn.DestinationTokenAccount)
	assert.True(t, withdrawn.Destination.Equals(destination))
	assert.True(t, withdrawn.DestinationTokenAccount.Equals(destToken))
	assert.Equal(t, "3000", withdrawn.Amount.String())

	paused := byAction[models.StreamPause]
	assert.True(t, paused.Initializer.Equals(pauser))
	assert.Nil(t, paused.Mint)

	refreshed := byAction[models.TreasuryRefresh]
	assert.True(t, refreshed.Mint.Equals(mint))
	assert.Nil(t, refreshed.Stream)
}

func TestTreasuryActivityKeepsOnlyTheFirstCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	txs := treasuryHistory(f)
	dup := txs[1]
	dup.Signature = "create-again"
	dup.BlockTime -= 50
	txs = append(txs, dup)

	events, err := f.reconstructor().TreasuryActivity(context.Background(), treasury, txs)
	require.NoError(t, err)

	last := events[len(events)-1]
	assert.Equal(t, models.TreasuryCreate, last.Action)
	assert.Equal(t, "create", last.Signature)
	for _, e := range events[:len(events)-1] {
		assert.NotEqual(t, models.TreasuryCreate, e.Action)
	}
}

type recorderMock struct {
	mock.Mock
}

func (m *recorderMock) ObserveEvent(purpose schema.Purpose, action string) {
	m.Called(purpose, action)
}

func TestRecorderSeesEveryEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := new(recorderMock)
	rec.On("ObserveEvent", schema.PurposeStream, "deposited").Return().Times(3)
	rec.On("ObserveEvent", schema.PurposeStream, "withdrew").Return().Once()

	_, err := f.reconstructor(activity.WithRecorder(rec)).StreamActivity(context.Background(), stream, streamHistory(f))
	require.NoError(t, err)
	rec.AssertExpectations(t)
}
