package database_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estensen/streamflow-pipeline/internal/database"
	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

type connMock struct {
	mock.Mock
}

func (m *connMock) Exec(ctx context.Context, query string, args ...any) error {
	return m.Called(ctx, query).Error(0)
}

func (m *connMock) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	ret := m.Called(ctx, query, args)
	rows, _ := ret.Get(0).(driver.Rows)
	return rows, ret.Error(1)
}

func (m *connMock) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	ret := m.Called(ctx, query)
	batch, _ := ret.Get(0).(driver.Batch)
	return batch, ret.Error(1)
}

// batchMock records appended rows. Methods the loader never calls are left
// to the embedded nil interface.
type batchMock struct {
	driver.Batch
	rows    [][]any
	sent    bool
	aborted bool
	sendErr error
}

func (b *batchMock) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *batchMock) Send() error {
	b.sent = true
	return b.sendErr
}

func (b *batchMock) Abort() error {
	b.aborted = true
	return nil
}

type rowsMock struct {
	driver.Rows
	data [][]any
	pos  int
}

func (r *rowsMock) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *rowsMock) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("row has %d columns, scanned into %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **string:
			*p, _ = row[i].(*string)
		case *int64:
			*p = row[i].(int64)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func (r *rowsMock) Err() error   { return nil }
func (r *rowsMock) Close() error { return nil }

func key(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

func ptr[T any](v T) *T { return &v }

func selectSignatures(conn *connMock, table string, signatures ...string) {
	data := make([][]any, 0, len(signatures))
	for _, s := range signatures {
		data = append(data, []any{s})
	}
	conn.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "SELECT DISTINCT signature FROM "+table)
	}), mock.Anything).Return(&rowsMock{data: data}, nil).Once()
}

func TestLoadStreamActivitySkipsLoadedSignatures(t *testing.T) {
	t.Parallel()

	stream := key(1)
	events := []models.StreamActivity{
		{Signature: "new", Action: models.ActionWithdrew, Initializer: ptr(key(2)), Amount: ptr(units.FromUint64(500)), Mint: ptr(key(3)), BlockTime: 2000, UtcDate: "d2"},
		{Signature: "old", Action: models.ActionDeposited, Initializer: ptr(key(4)), BlockTime: 1000, UtcDate: "d1"},
	}

	conn := new(connMock)
	selectSignatures(conn, database.StreamActivityTable, "old")
	batch := &batchMock{}
	conn.On("PrepareBatch", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "INSERT INTO "+database.StreamActivityTable)
	})).Return(batch, nil).Once()

	rec := new(recorderMock)
	rec.On("ObserveLoaded", database.StreamActivityTable, 1).Once()

	rows, err := database.NewActivityLoader(conn, nil, rec).LoadStreamActivity(context.Background(), stream, events)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
	assert.True(t, batch.sent)

	require.Len(t, batch.rows, 1)
	amount := "500"
	assert.Equal(t, []any{stream.String(), "new", "withdrew", key(2).String(), &amount, key(3).String(), int64(2000), "d2", uint32(0)}, batch.rows[0])

	conn.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestLoadWithNothingNewAbortsTheBatch(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	selectSignatures(conn, database.TreasuryActivityTable, "only")
	batch := &batchMock{}
	conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(batch, nil).Once()

	events := []models.TreasuryActivity{{Signature: "only", Action: models.TreasuryRefresh}}
	rows, err := database.NewActivityLoader(conn, nil, nil).LoadTreasuryActivity(context.Background(), key(5), events)
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.True(t, batch.aborted)
	assert.False(t, batch.sent)
}

func TestLoadTreasuryActivityColumns(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	selectSignatures(conn, database.TreasuryActivityTable)
	batch := &batchMock{}
	conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(batch, nil).Once()

	events := []models.TreasuryActivity{{
		Signature:               "w",
		Action:                  models.TreasuryWithdraw,
		Initializer:             ptr(key(2)),
		Mint:                    ptr(key(3)),
		Amount:                  ptr(units.FromUint64(7)),
		Destination:             ptr(key(6)),
		DestinationTokenAccount: ptr(key(7)),
		BlockTime:               5000,
		UtcDate:                 "d",
	}}
	_, err := database.NewActivityLoader(conn, nil, nil).LoadTreasuryActivity(context.Background(), key(5), events)
	require.NoError(t, err)

	require.Len(t, batch.rows, 1)
	row := batch.rows[0]
	assert.Equal(t, "withdrawFromTreasury", row[2])
	assert.Equal(t, "", row[6], "template")
	assert.Equal(t, key(6).String(), row[8])
	assert.Equal(t, key(7).String(), row[9])
	assert.Equal(t, "", row[10], "stream")
	assert.Equal(t, uint32(0), row[13])
}

func TestLoadKeepsRepeatedActionsOfOneTransaction(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	selectSignatures(conn, database.TreasuryActivityTable)
	batch := &batchMock{}
	conn.On("PrepareBatch", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "ix_index")
	})).Return(batch, nil).Once()

	events := []models.TreasuryActivity{
		{Signature: "same", Action: models.StreamCreate, Stream: ptr(key(7)), BlockTime: 3000},
		{Signature: "same", Action: models.StreamCreate, Stream: ptr(key(8)), BlockTime: 3000},
		{Signature: "earlier", Action: models.TreasuryAddFunds, BlockTime: 1000},
	}
	rows, err := database.NewActivityLoader(conn, nil, nil).LoadTreasuryActivity(context.Background(), key(5), events)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	require.Len(t, batch.rows, 3)
	for i, row := range batch.rows {
		assert.Equal(t, uint32(i), row[13], "row %d", i)
	}
	assert.Equal(t, batch.rows[0][:10], batch.rows[1][:10])
	assert.NotEqual(t, batch.rows[0][10], batch.rows[1][10], "stream")
}

func TestReaderOrdersTiesByPosition(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	conn.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "ORDER BY block_time DESC, ix_index ASC")
	}), mock.Anything).Return(&rowsMock{}, nil).Twice()

	r := database.NewReader(conn)
	_, err := r.StreamActivity(context.Background(), key(1))
	require.NoError(t, err)
	_, err = r.TreasuryActivity(context.Background(), key(5))
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*connMock)
	}{
		{
			name: "signature query",
			setup: func(c *connMock) {
				c.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)
			},
		},
		{
			name: "prepare",
			setup: func(c *connMock) {
				selectSignatures(c, database.StreamActivityTable)
				c.On("PrepareBatch", mock.Anything, mock.Anything).Return(nil, boom)
			},
		},
		{
			name: "send",
			setup: func(c *connMock) {
				selectSignatures(c, database.StreamActivityTable)
				c.On("PrepareBatch", mock.Anything, mock.Anything).Return(&batchMock{sendErr: boom}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := new(connMock)
			tt.setup(conn)
			events := []models.StreamActivity{{Signature: "s", Action: models.ActionWithdrew}}
			_, err := database.NewActivityLoader(conn, nil, nil).LoadStreamActivity(context.Background(), key(1), events)
			require.ErrorIs(t, err, boom)
		})
	}
}

func TestReaderStreamActivity(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	conn.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "FROM "+database.StreamActivityTable)
	}), []any{key(1).String()}).Return(&rowsMock{data: [][]any{
		{"b", "withdrew", key(2).String(), ptr("250"), key(3).String(), int64(2000), "d2"},
		{"a", "deposited", key(4).String(), (*string)(nil), "", int64(1000), "d1"},
	}}, nil).Once()

	events, err := database.NewReader(conn).StreamActivity(context.Background(), key(1))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.ActionWithdrew, events[0].Action)
	require.NotNil(t, events[0].Amount)
	assert.Equal(t, "250", events[0].Amount.String())
	assert.True(t, events[0].Mint.Equals(key(3)))

	assert.Nil(t, events[1].Amount)
	assert.Nil(t, events[1].Mint)
	assert.True(t, events[1].Initializer.Equals(key(4)))
}

func TestReaderTreasuryActivityKeepsCreateLast(t *testing.T) {
	t.Parallel()

	row := func(sig, action string, blockTime int64) []any {
		return []any{sig, action, key(2).String(), key(3).String(), (*string)(nil), "", "", "", "", "", blockTime, "d"}
	}
	conn := new(connMock)
	conn.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&rowsMock{data: [][]any{
		row("create", "createTreasury", 900),
		row("refresh", "refreshTreasury", 500),
		row("fund", "addFunds", 100),
	}}, nil).Once()

	events, err := database.NewReader(conn).TreasuryActivity(context.Background(), key(5))
	require.NoError(t, err)

	var signatures []string
	for _, e := range events {
		signatures = append(signatures, e.Signature)
	}
	assert.Equal(t, []string{"refresh", "fund", "create"}, signatures)
	assert.Equal(t, models.TreasuryAddFunds, events[1].Action)
	assert.Nil(t, events[0].Template)
}

func TestReaderRejectsCorruptRows(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	conn.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&rowsMock{data: [][]any{
		{"a", "deposited", "not-base58!", (*string)(nil), "", int64(1), "d"},
	}}, nil).Once()

	_, err := database.NewReader(conn).StreamActivity(context.Background(), key(1))
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	conn := new(connMock)
	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "CREATE TABLE IF NOT EXISTS") &&
			strings.Contains(q, "signature, action, ix_index)")
	})).Return(nil).Twice()
	require.NoError(t, database.EnsureSchema(context.Background(), conn))
	conn.AssertExpectations(t)

	failing := new(connMock)
	failing.On("Exec", mock.Anything, mock.Anything).Return(errors.New("readonly"))
	require.Error(t, database.EnsureSchema(context.Background(), failing))
}

type recorderMock struct {
	mock.Mock
}

func (m *recorderMock) ObserveLoaded(table string, rows int) {
	m.Called(table, rows)
}
