// Command trainerd is the training daemon. It polls the record store for
// pending datasets and trains and uploads a patch classifier for each one.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"patch-trainer/internal/config"
	"patch-trainer/internal/extractor"
	"patch-trainer/internal/pipeline"
	"patch-trainer/internal/scheduler"
	"patch-trainer/internal/store"
	"patch-trainer/internal/version"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := log.New()
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := store.New(cfg.StoreURL)
	if err := client.Authenticate(ctx, cfg.AdminEmail, cfg.AdminPass); err != nil {
		logger.WithError(err).Fatal("store authentication failed")
	}

	ext, err := extractor.NewORT(cfg.ExtractorPath)
	if err != nil {
		logger.WithError(err).Fatal("could not load feature extractor")
	}
	defer ext.Close()

	runner := &pipeline.Runner{
		Config:    cfg,
		Extractor: ext,
		Store:     client,
		Log:       logger,
	}
	sched := &scheduler.Scheduler{
		Store:    client,
		Run:      runner.Run,
		Interval: cfg.PollInterval,
		Batch:    cfg.PendingBatchSize,
		Parallel: cfg.MaxConcurrentRuns,
		Log:      logger,
	}

	logger.WithFields(log.Fields{
		"version": version.String(),
		"store":   cfg.StoreURL,
	}).Info("trainer daemon started")
	if err := sched.Start(ctx); err != nil {
		logger.WithError(err).Fatal("scheduler stopped")
	}
	logger.Info("trainer daemon stopped")
}
