package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/activity"
	"github.com/estensen/streamflow-pipeline/internal/models"
)

// Snapshotter archives derived streams.
type Snapshotter interface {
	SaveAll(ctx context.Context, streams []models.Stream) error
}

// BatchJob reconstructs activity for a set of accounts, loads it into
// ClickHouse and archives the derived streams.
type BatchJob struct {
	Reconstructor *activity.Reconstructor
	Loader        *ActivityLoader
	Snapshots     Snapshotter
	logger        *zap.Logger
}

// NewBatchJob creates a BatchJob. snapshots may be nil.
func NewBatchJob(reconstructor *activity.Reconstructor, loader *ActivityLoader, snapshots Snapshotter, logger *zap.Logger) *BatchJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchJob{
		Reconstructor: reconstructor,
		Loader:        loader,
		Snapshots:     snapshots,
		logger:        logger,
	}
}

// BatchResult counts the rows each table received.
type BatchResult struct {
	StreamRows   int
	TreasuryRows int
}

func (b *BatchJob) Run(ctx context.Context, streams []models.Stream, treasuries []models.Treasury, txs []activity.Transaction) (BatchResult, error) {
	var result BatchResult

	for _, stream := range streams {
		events, err := b.Reconstructor.StreamActivity(ctx, stream.ID, txs)
		if err != nil {
			return result, fmt.Errorf("reconstructing stream %s: %w", stream.ID, err)
		}
		rows, err := b.Loader.LoadStreamActivity(ctx, stream.ID, events)
		if err != nil {
			return result, fmt.Errorf("loading stream %s: %w", stream.ID, err)
		}
		result.StreamRows += rows
	}

	for _, treasury := range treasuries {
		if treasury.Category != models.CategoryVesting {
			continue
		}
		events, err := b.Reconstructor.TreasuryActivity(ctx, treasury.ID, txs)
		if err != nil {
			return result, fmt.Errorf("reconstructing treasury %s: %w", treasury.ID, err)
		}
		rows, err := b.Loader.LoadTreasuryActivity(ctx, treasury.ID, events)
		if err != nil {
			return result, fmt.Errorf("loading treasury %s: %w", treasury.ID, err)
		}
		result.TreasuryRows += rows
	}

	if b.Snapshots != nil {
		if err := b.Snapshots.SaveAll(ctx, streams); err != nil {
			return result, fmt.Errorf("archiving stream snapshots: %w", err)
		}
	}

	b.logger.Info("batch job completed",
		zap.Int("streams", len(streams)),
		zap.Int("treasuries", len(treasuries)),
		zap.Int("streamRows", result.StreamRows),
		zap.Int("treasuryRows", result.TreasuryRows),
	)
	return result, nil
}
