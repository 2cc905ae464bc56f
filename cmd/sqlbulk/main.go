// sqlbulk - bulk reconciliation of demo rows into SQL Server.
//
// Usage:
//
//	sqlbulk [--config path] [--op upsert] [--rows 10000] [--workers 4] [--setup]
//	sqlbulk --create-config sqlbulk.yaml
//
// Flags:
//
//	--config         Path to sqlbulk.yaml (default: sqlbulk.yaml)
//	--create-config  Write a sample config and exit
//	--op             insert | upsert | update | delete
//	--rows           Number of generated rows
//	--workers        Override workers from config
//	--setup          Create the destination table if missing
//
// Every worker commits its share of rows on its own connection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/bulk"
	"github.com/ruslano69/sqlbulk/pkg/retry"
)

func main() {
	configPath := flag.String("config", "sqlbulk.yaml", "path to config file")
	createConfig := flag.String("create-config", "", "write a sample config to this path and exit")
	op := flag.String("op", "upsert", "operation: insert, upsert, update, delete")
	rows := flag.Int("rows", 10000, "number of generated rows")
	workers := flag.Int("workers", 0, "concurrent commits (overrides config)")
	setup := flag.Bool("setup", false, "create the destination table if missing")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *createConfig != "" {
		if err := SaveConfig(*createConfig, CreateSampleConfig()); err != nil {
			log.Fatal().Err(err).Msg("failed to write config")
		}
		log.Info().Str("config", *createConfig).Msg("sample config written")
		return
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("config load failed")
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := mssql.Open(ctx, cfg.Database.BuildDSN())
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Database.Host).Msg("connection failed")
	}
	defer adapter.Close()

	info := adapter.Server()
	log.Info().
		Str("server", info.Name()).
		Str("version", info.Version).
		Int("compat_level", info.CompatLevel).
		Msg("connected")

	if *setup {
		if err := createProducts(ctx, adapter.DB(), cfg.Table); err != nil {
			log.Fatal().Err(err).Msg("setup failed")
		}
	}

	started := time.Now()
	total, err := run(ctx, adapter, cfg, *op, generateProducts(*rows, started.UTC()))
	if err != nil {
		var be *bulk.Error
		if errors.As(err, &be) {
			log.Error().
				Err(err).
				Str("state", be.State.String()).
				Int32("code", be.Code).
				Int64("rows", be.Rows).
				Msg("bulk operation failed")
		} else {
			log.Error().Err(err).Msg("bulk operation failed")
		}
		os.Exit(1)
	}

	log.Info().
		Str("op", *op).
		Int64("rows", total).
		Dur("elapsed", time.Since(started)).
		Msg("done")
}

// run splits rows between workers. Deadlock victims and lock timeouts
// are retried; the first permanent failure cancels the remaining commits,
// finished ones stay committed.
func run(ctx context.Context, adapter *mssql.Adapter, cfg *Config, op string, rows []product) (int64, error) {
	retryCfg := cfg.Retry
	retryCfg.Retryable = bulk.Retryable
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying commit")
	}
	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := retryer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to save rejects")
		}
	}()

	size := max(1, (len(rows)+cfg.Workers-1)/cfg.Workers)

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for chunk := range slices.Chunk(rows, size) {
		g.Go(func() error {
			b, err := builder(op, chunk, cfg)
			if err != nil {
				return err
			}
			operation, err := b.Build()
			if err != nil {
				return err
			}

			source := fmt.Sprintf("%s %s", operation.Kind(), operation.Table())
			return retryer.DoWithData(gctx, func(ctx context.Context) error {
				conn, err := adapter.Conn(ctx)
				if err != nil {
					return err
				}
				defer conn.Close()

				n, err := operation.Commit(ctx, conn)
				total.Add(n)
				return err
			}, source, skus(chunk))
		})
	}
	err = g.Wait()
	return total.Load(), err
}

func skus(rows []product) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.SKU.String()
	}
	return out
}

func builder(op string, rows []product, cfg *Config) (*bulk.Builder[product], error) {
	b := bulk.For(rows).
		WithTable(cfg.Table).
		WithSettings(cfg.Bulk).
		WithLogger(log.Logger).
		AddAllColumns()

	switch op {
	case "insert":
		return b.SetIdentityColumn("ID", bulk.InputOutput).Insert(), nil
	case "upsert":
		return b.SetIdentityColumn("ID", bulk.InputOutput).
			Upsert().
			MatchTargetOn("SKU").
			ExcludeColumnFromUpdate("Stock"), nil
	case "update":
		return b.RemoveColumn("ID").
			Update().
			MatchTargetOn("SKU").
			UpdateWhen("Discontinued = ?", false), nil
	case "delete":
		return b.SetIdentityColumn("ID", bulk.InputOutput).
			Delete().
			MatchTargetOn("SKU").
			DeleteWhen("Discontinued = ?", true), nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}
