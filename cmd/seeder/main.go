// Command seeder replays a catalog dump (JSON Lines, one import batch per
// line) into the database through the regular import pipeline. It is
// intended to be run offline, not as part of the main server.
//
// Flags:
//
//	--data           path to the dump (overrides SEEDER_DATA_PATH)
//	--dry-run        parse the dump without writing to DB
//	--seeder-config  path to seeder YAML config file
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/snapshot"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/unit"
	"github.com/heartmarshall/shop-catalog-backend/internal/app"
	"github.com/heartmarshall/shop-catalog-backend/internal/app/seeder"
	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/service/shop"
)

func main() {
	dataFlag := flag.String("data", "", "path to the catalog dump")
	dryRunFlag := flag.Bool("dry-run", false, "parse the dump without writing to DB")
	seederConfigFlag := flag.String("seeder-config", "", "path to seeder YAML config file")
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger, logCloser := app.NewLogger(appCfg.Log)
	defer logCloser.Close()

	seederCfg, err := seeder.LoadConfig(*seederConfigFlag)
	if err != nil {
		logger.Error("load seeder config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// CLI flags override config.
	if *dataFlag != "" {
		seederCfg.DataPath = *dataFlag
	}
	if *dryRunFlag {
		seederCfg.DryRun = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, appCfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool,
		postgres.WithSerializationRetries(appCfg.Import.SerializationRetries, appCfg.Import.RetryBaseDelay),
	)
	svc := shop.NewService(logger, unit.New(pool), snapshot.New(pool), txm, appCfg.Import)

	res, err := seeder.NewPipeline(logger, svc, *seederCfg).Run(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if res.Failed > 0 {
		logger.Warn("seeding completed with rejected batches", slog.Int("failed", res.Failed))
		os.Exit(1)
	}
}
