package database_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estensen/streamflow-pipeline/internal/activity"
	"github.com/estensen/streamflow-pipeline/internal/database"
	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/schema"
)

type snapshotterMock struct {
	mock.Mock
}

func (m *snapshotterMock) SaveAll(ctx context.Context, streams []models.Stream) error {
	return m.Called(ctx, streams).Error(0)
}

func TestBatchJobRun(t *testing.T) {
	t.Parallel()

	programID := key(0xAA)
	stream, treasury := key(1), key(3)

	registry := schema.NewRegistry()
	def, err := registry.GetOrLoad(schema.V4)
	require.NoError(t, err)
	roles := map[string]solana.PublicKey{
		"Stream": stream, "Treasury": treasury, "Treasurer": key(4),
		"Beneficiary": key(5), "Associated Token": key(6),
	}
	withdraw, err := def.Encode(programID, "withdraw", map[string]any{"amount": uint64(900)}, roles)
	require.NoError(t, err)
	refresh, err := def.Encode(programID, "refreshTreasuryData", nil, roles)
	require.NoError(t, err)

	txs := []activity.Transaction{{
		Signature:    "sig",
		BlockTime:    schema.Cutover + 10,
		Instructions: []schema.Instruction{withdraw, refresh},
	}}
	reconstructor := activity.NewReconstructor(schema.NewDecoder(programID, registry))

	conn := new(connMock)
	selectSignatures(conn, database.StreamActivityTable)
	selectSignatures(conn, database.TreasuryActivityTable)
	streamBatch, treasuryBatch := &batchMock{}, &batchMock{}
	conn.On("PrepareBatch", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "INSERT INTO "+database.StreamActivityTable)
	})).Return(streamBatch, nil).Once()
	conn.On("PrepareBatch", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "INSERT INTO "+database.TreasuryActivityTable)
	})).Return(treasuryBatch, nil).Once()

	streams := []models.Stream{{ID: stream}}
	treasuries := []models.Treasury{
		{ID: treasury, Category: models.CategoryVesting},
		{ID: key(9), Category: models.CategoryDefault},
	}
	snapshots := new(snapshotterMock)
	snapshots.On("SaveAll", mock.Anything, streams).Return(nil).Once()

	job := database.NewBatchJob(reconstructor, database.NewActivityLoader(conn, nil, nil), snapshots, nil)
	result, err := job.Run(context.Background(), streams, treasuries, txs)
	require.NoError(t, err)
	assert.Equal(t, database.BatchResult{StreamRows: 1, TreasuryRows: 2}, result)
	assert.True(t, streamBatch.sent)
	assert.True(t, treasuryBatch.sent)

	conn.AssertExpectations(t)
	snapshots.AssertExpectations(t)
}

func TestBatchJobReportsArchiveFailure(t *testing.T) {
	t.Parallel()

	registry := schema.NewRegistry()
	reconstructor := activity.NewReconstructor(schema.NewDecoder(key(0xAA), registry))

	boom := errors.New("bucket gone")
	snapshots := new(snapshotterMock)
	snapshots.On("SaveAll", mock.Anything, mock.Anything).Return(boom)

	job := database.NewBatchJob(reconstructor, database.NewActivityLoader(new(connMock), nil, nil), snapshots, nil)
	_, err := job.Run(context.Background(), nil, nil, nil)
	require.ErrorIs(t, err, boom)
}
