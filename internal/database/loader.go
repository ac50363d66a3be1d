package database

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// Recorder counts rows sent per table.
type Recorder interface {
	ObserveLoaded(table string, rows int)
}

// ActivityLoader appends reconstructed activity to ClickHouse. Signatures
// already stored for an address are skipped, so reloading is harmless.
type ActivityLoader struct {
	Conn     Conn
	logger   *zap.Logger
	recorder Recorder
}

func NewActivityLoader(conn Conn, logger *zap.Logger, recorder Recorder) *ActivityLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityLoader{Conn: conn, logger: logger, recorder: recorder}
}

func (l *ActivityLoader) LoadStreamActivity(ctx context.Context, stream solana.PublicKey, events []models.StreamActivity) (int, error) {
	seen, err := l.loadedSignatures(ctx, StreamActivityTable, "stream", stream)
	if err != nil {
		return 0, err
	}

	batch, err := l.Conn.PrepareBatch(ctx, "INSERT INTO "+StreamActivityTable+
		" (stream, signature, action, initializer, amount, mint, block_time, utc_date, ix_index)")
	if err != nil {
		return 0, fmt.Errorf("error preparing ClickHouse batch: %w", err)
	}

	rows := 0
	for i, e := range events {
		if _, ok := seen[e.Signature]; ok {
			continue
		}
		err := batch.Append(
			stream.String(),
			e.Signature,
			string(e.Action),
			keyColumn(e.Initializer),
			amountColumn(e.Amount),
			keyColumn(e.Mint),
			e.BlockTime,
			e.UtcDate,
			uint32(i),
		)
		if err != nil {
			return 0, fmt.Errorf("error appending to ClickHouse batch: %w", err)
		}
		rows++
	}

	return rows, l.send(batch, StreamActivityTable, stream, rows)
}

func (l *ActivityLoader) LoadTreasuryActivity(ctx context.Context, treasury solana.PublicKey, events []models.TreasuryActivity) (int, error) {
	seen, err := l.loadedSignatures(ctx, TreasuryActivityTable, "treasury", treasury)
	if err != nil {
		return 0, err
	}

	batch, err := l.Conn.PrepareBatch(ctx, "INSERT INTO "+TreasuryActivityTable+
		" (treasury, signature, action, initializer, mint, amount, template, beneficiary,"+
		" destination, destination_token_account, stream, block_time, utc_date, ix_index)")
	if err != nil {
		return 0, fmt.Errorf("error preparing ClickHouse batch: %w", err)
	}

	rows := 0
	for i, e := range events {
		if _, ok := seen[e.Signature]; ok {
			continue
		}
		err := batch.Append(
			treasury.String(),
			e.Signature,
			e.Action.String(),
			keyColumn(e.Initializer),
			keyColumn(e.Mint),
			amountColumn(e.Amount),
			keyColumn(e.Template),
			keyColumn(e.Beneficiary),
			keyColumn(e.Destination),
			keyColumn(e.DestinationTokenAccount),
			keyColumn(e.Stream),
			e.BlockTime,
			e.UtcDate,
			uint32(i),
		)
		if err != nil {
			return 0, fmt.Errorf("error appending to ClickHouse batch: %w", err)
		}
		rows++
	}

	return rows, l.send(batch, TreasuryActivityTable, treasury, rows)
}

type sender interface {
	Send() error
	Abort() error
}

func (l *ActivityLoader) send(batch sender, table string, address solana.PublicKey, rows int) error {
	if rows == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("error sending batch to ClickHouse: %w", err)
	}
	if l.recorder != nil {
		l.recorder.ObserveLoaded(table, rows)
	}
	l.logger.Info("loaded activity", zap.String("table", table), zap.Stringer("address", address), zap.Int("rows", rows))
	return nil
}

func (l *ActivityLoader) loadedSignatures(ctx context.Context, table, column string, address solana.PublicKey) (map[string]struct{}, error) {
	rows, err := l.Conn.Query(ctx, "SELECT DISTINCT signature FROM "+table+" WHERE "+column+" = ?", address.String())
	if err != nil {
		return nil, fmt.Errorf("error querying ClickHouse: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var signature string
		if err := rows.Scan(&signature); err != nil {
			return nil, fmt.Errorf("error scanning signature row: %w", err)
		}
		seen[signature] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signature rows: %w", err)
	}
	return seen, nil
}

func keyColumn(k *solana.PublicKey) string {
	if k == nil {
		return ""
	}
	return k.String()
}

func amountColumn(a *units.Amount) *string {
	if a == nil {
		return nil
	}
	s := a.String()
	return &s
}
