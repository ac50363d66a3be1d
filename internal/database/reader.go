package database

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// Reader reads stored activity back, newest first. Events sharing a block
// time keep the order they were loaded in.
type Reader struct {
	Conn Conn
}

func NewReader(conn Conn) *Reader {
	return &Reader{Conn: conn}
}

func (r *Reader) StreamActivity(ctx context.Context, stream solana.PublicKey) ([]models.StreamActivity, error) {
	query := `
	SELECT signature, action, initializer, amount, mint, block_time, utc_date
	FROM ` + StreamActivityTable + ` FINAL
	WHERE stream = ?
	ORDER BY block_time DESC, ix_index ASC`

	rows, err := r.Conn.Query(ctx, query, stream.String())
	if err != nil {
		return nil, fmt.Errorf("error executing stream activity query: %w", err)
	}
	defer rows.Close()

	var events []models.StreamActivity
	for rows.Next() {
		var (
			e           models.StreamActivity
			action      string
			initializer string
			amount      *string
			mint        string
		)
		if err := rows.Scan(&e.Signature, &action, &initializer, &amount, &mint, &e.BlockTime, &e.UtcDate); err != nil {
			return nil, fmt.Errorf("error scanning stream activity row: %w", err)
		}
		e.Action = models.StreamAction(action)
		if e.Initializer, err = keyFromColumn(initializer); err != nil {
			return nil, err
		}
		if e.Mint, err = keyFromColumn(mint); err != nil {
			return nil, err
		}
		if e.Amount, err = amountFromColumn(amount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stream activity rows: %w", err)
	}
	return events, nil
}

func (r *Reader) TreasuryActivity(ctx context.Context, treasury solana.PublicKey) ([]models.TreasuryActivity, error) {
	query := `
	SELECT signature, action, initializer, mint, amount, template, beneficiary,
	       destination, destination_token_account, stream, block_time, utc_date
	FROM ` + TreasuryActivityTable + ` FINAL
	WHERE treasury = ?
	ORDER BY block_time DESC, ix_index ASC`

	rows, err := r.Conn.Query(ctx, query, treasury.String())
	if err != nil {
		return nil, fmt.Errorf("error executing treasury activity query: %w", err)
	}
	defer rows.Close()

	var events []models.TreasuryActivity
	for rows.Next() {
		var (
			e      models.TreasuryActivity
			action string
			amount *string
			keys   [7]string
		)
		err := rows.Scan(&e.Signature, &action, &keys[0], &keys[1], &amount, &keys[2], &keys[3],
			&keys[4], &keys[5], &keys[6], &e.BlockTime, &e.UtcDate)
		if err != nil {
			return nil, fmt.Errorf("error scanning treasury activity row: %w", err)
		}
		if e.Action, err = models.ParseTreasuryAction(action); err != nil {
			return nil, err
		}
		targets := []**solana.PublicKey{
			&e.Initializer, &e.Mint, &e.Template, &e.Beneficiary,
			&e.Destination, &e.DestinationTokenAccount, &e.Stream,
		}
		for i, target := range targets {
			if *target, err = keyFromColumn(keys[i]); err != nil {
				return nil, err
			}
		}
		if e.Amount, err = amountFromColumn(amount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating treasury activity rows: %w", err)
	}
	return moveCreateLast(events), nil
}

// moveCreateLast keeps the treasury creation at the end of the feed, as the
// reconstructor orders it.
func moveCreateLast(events []models.TreasuryActivity) []models.TreasuryActivity {
	for i, e := range events {
		if e.Action != models.TreasuryCreate || i == len(events)-1 {
			continue
		}
		out := append(append(events[:i:i], events[i+1:]...), e)
		return out
	}
	return events
}

func keyFromColumn(s string) (*solana.PublicKey, error) {
	if s == "" {
		return nil, nil
	}
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q in ClickHouse row: %w", s, err)
	}
	return &k, nil
}

func amountFromColumn(s *string) (*units.Amount, error) {
	if s == nil {
		return nil, nil
	}
	a, err := units.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in ClickHouse row: %w", *s, err)
	}
	return &a, nil
}
