package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/config"
)

const (
	StreamActivityTable   = "stream_activity"
	TreasuryActivityTable = "treasury_activity"
)

// Conn is the part of a ClickHouse connection the pipeline uses.
// clickhouse.Conn satisfies it.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// NewClickHouseConnection opens and pings a ClickHouse connection.
func NewClickHouseConnection(ctx context.Context, cfg config.ClickHouse, logger *zap.Logger) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	logger.Info("connected to ClickHouse", zap.String("addr", cfg.Addr), zap.String("database", cfg.Database))
	return conn, nil
}

// ix_index is an event's position in the reconstructed feed. It keeps
// same-action events of one transaction apart and orders ties on block_time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + StreamActivityTable + ` (
		stream      String,
		signature   String,
		action      LowCardinality(String),
		initializer String,
		amount      Nullable(String),
		mint        String,
		block_time  Int64,
		utc_date    String,
		ix_index    UInt32
	) ENGINE = ReplacingMergeTree
	ORDER BY (stream, block_time, signature, action, ix_index)`,
	`CREATE TABLE IF NOT EXISTS ` + TreasuryActivityTable + ` (
		treasury                  String,
		signature                 String,
		action                    LowCardinality(String),
		initializer               String,
		mint                      String,
		amount                    Nullable(String),
		template                  String,
		beneficiary               String,
		destination               String,
		destination_token_account String,
		stream                    String,
		block_time                Int64,
		utc_date                  String,
		ix_index                  UInt32
	) ENGINE = ReplacingMergeTree
	ORDER BY (treasury, block_time, signature, action, ix_index)`,
}

// EnsureSchema creates the activity tables when they are missing.
func EnsureSchema(ctx context.Context, conn Conn) error {
	for _, stmt := range schemaStatements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error creating ClickHouse table: %w", err)
		}
	}
	return nil
}
