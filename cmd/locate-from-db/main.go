// Command locate-from-db runs the active-geolocation pipeline against a
// database of previously collected measurement batches, producing one
// output region file per (batch, algorithm-variant) pair.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/location-microservice/internal/config"
	"github.com/location-microservice/internal/domain/calibration"
	"github.com/location-microservice/internal/domain/constraint"
	"github.com/location-microservice/internal/domain/disk"
	"github.com/location-microservice/internal/domain/geodesic"
	"github.com/location-microservice/internal/domain/preprocess"
	"github.com/location-microservice/internal/domain/region"
	"github.com/location-microservice/internal/pkg/logger"
	"github.com/location-microservice/internal/repository/postgres"
	"github.com/location-microservice/internal/runner"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting locate-from-db",
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("workers", cfg.Worker.NumWorkers))

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Fatal("cannot create output directory", zap.Error(err))
	}

	basemap, err := region.LoadBaseMap(cfg.BasemapFile)
	if err != nil {
		log.Fatal("cannot load base map", zap.Error(err))
	}

	calib, err := calibration.Load(cfg.CalibrationFile)
	if err != nil {
		log.Fatal("cannot load calibration file", zap.Error(err))
	}

	db, err := postgres.New(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("cannot connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", zap.Error(err))
		}
	}()

	landmarkRepo := postgres.NewLandmarkRepository(db, log)
	batchRepo := postgres.NewBatchRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	landmarks, err := landmarkRepo.All(ctx)
	if err != nil {
		log.Fatal("cannot load landmark table", zap.Error(err))
	}
	log.Info("loaded landmark table", zap.Int("count", len(landmarks)))

	kit := geodesic.New()
	builder := disk.NewBuilder(kit)

	deps := runner.Deps{
		Batches:   batchRepo,
		Landmarks: landmarks,
		Calib:     calib,
		BaseMap:   basemap,
		Builder:   builder,
		Preproc:   preprocess.New(log),
		Engine:    constraint.New(builder, log),
		OutputDir: cfg.OutputDir,
		Logger:    log,
	}

	r := runner.New(cfg.Worker.NumWorkers, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal, cancelling remaining work")
		cancel()
	}()

	outcomes, err := r.Run(ctx, cfg.Selector)
	if err != nil {
		log.Fatal("run failed", zap.Error(err))
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		succeeded++
	}
	log.Info("run complete", zap.Int("succeeded", succeeded), zap.Int("failed", failed))
}
