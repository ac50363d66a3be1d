package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/activity"
	"github.com/estensen/streamflow-pipeline/internal/api"
	"github.com/estensen/streamflow-pipeline/internal/config"
	"github.com/estensen/streamflow-pipeline/internal/database"
	"github.com/estensen/streamflow-pipeline/internal/ledger"
	"github.com/estensen/streamflow-pipeline/internal/metrics"
	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/parser"
	"github.com/estensen/streamflow-pipeline/internal/schema"
	"github.com/estensen/streamflow-pipeline/internal/storage"
	"github.com/estensen/streamflow-pipeline/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	exportPath string
	treasurer  string
	serve      bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "optional YAML config overlay")
	flag.StringVar(&f.exportPath, "export", "", "JSON ledger export to process (required)")
	flag.StringVar(&f.treasurer, "treasurer", "", "only show streams and treasuries owned by this address")
	flag.BoolVar(&f.serve, "serve", false, "keep serving the API after the run")
	flag.Parse()
	return f
}

func run() error {
	f := parseFlags()
	if f.exportPath == "" {
		return errors.New("-export is required")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	decoder := schema.NewDecoder(cfg.Program(), schema.NewRegistry(),
		schema.WithLogger(logger.Named("decoder")),
		schema.WithRecorder(m),
	)
	reconstructor := activity.NewReconstructor(decoder,
		activity.WithLogger(logger.Named("activity")),
		activity.WithRecorder(m),
		activity.WithWorkers(cfg.Workers),
	)
	p := parser.NewParser()

	export, err := ledger.Load(f.exportPath)
	if err != nil {
		return err
	}
	l, err := ledger.New(export, p, reconstructor, logger.Named("ledger"))
	if err != nil {
		return err
	}

	var streamFilter parser.StreamFilter
	var treasuryFilter parser.TreasuryFilter
	if f.treasurer != "" {
		owner, err := solana.PublicKeyFromBase58(f.treasurer)
		if err != nil {
			return fmt.Errorf("-treasurer: %w", err)
		}
		streamFilter.Treasurer = &owner
		treasuryFilter.Treasurer = &owner
	}

	streams := l.Streams(streamFilter)
	treasuries := l.Treasuries(treasuryFilter)
	m.SetStreamsParsed(len(streams))

	utils.DisplayStreams(os.Stdout, streams)
	utils.DisplayMintTotals(os.Stdout, streams)
	utils.DisplayTreasuries(os.Stdout, treasuries)
	for _, s := range streams {
		events, err := l.StreamActivity(ctx, s.ID)
		if err != nil {
			return err
		}
		utils.DisplayStreamActivity(os.Stdout, s.ID, events)
	}
	for _, t := range treasuries {
		if t.Category != models.CategoryVesting {
			continue
		}
		tmpl, err := l.Template(t.ID)
		switch {
		case err == nil:
			utils.DisplayTemplate(os.Stdout, t.ID, tmpl)
		case errors.Is(err, api.ErrNotFound):
			logger.Warn("vesting treasury has no template", zap.Stringer("treasury", t.ID))
		default:
			return err
		}
		events, err := l.TreasuryActivity(ctx, t.ID)
		if err != nil {
			return err
		}
		utils.DisplayTreasuryActivity(os.Stdout, t.ID, events)
	}

	var (
		snapshots database.Snapshotter
		apiOpts   = []api.Option{
			api.WithLogger(logger.Named("api")),
			api.WithGatherer(reg),
			api.WithFriendly(cfg.Friendly),
			api.WithLister(l),
		}
	)
	if cfg.MinIO.Enabled {
		objects, err := storage.NewMinIOStorage(ctx, cfg.MinIO, logger.Named("minio"))
		if err != nil {
			return err
		}
		store := storage.NewSnapshotStore(objects, logger.Named("snapshots"), m)
		snapshots = store
		apiOpts = append(apiOpts, api.WithArchive(store))
		if !cfg.ClickHouse.Enabled {
			if err := store.SaveAll(ctx, streams); err != nil {
				return err
			}
		}
	}

	var activitySource api.ActivitySource = l
	if cfg.ClickHouse.Enabled {
		conn, err := database.NewClickHouseConnection(ctx, cfg.ClickHouse, logger.Named("clickhouse"))
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := database.EnsureSchema(ctx, conn); err != nil {
			return err
		}
		loader := database.NewActivityLoader(conn, logger.Named("loader"), m)
		job := database.NewBatchJob(reconstructor, loader, snapshots, logger.Named("batch"))
		if _, err := job.Run(ctx, streams, treasuries, l.Transactions); err != nil {
			return err
		}
		activitySource = database.NewReader(conn)
	}

	logger.Info("pipeline completed", zap.Int("streams", len(streams)), zap.Int("treasuries", len(treasuries)))
	if !f.serve {
		return nil
	}

	server := api.NewServer(l, activitySource, p, apiOpts...)
	return api.StartServer(ctx, cfg.APIAddr, server.Handler(), logger.Named("api"))
}
