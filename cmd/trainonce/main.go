// Command trainonce trains the classifier for a single dataset record and
// exits. Useful for re-running a failed record or testing a deployment.
//
// Usage: trainonce <record-id>
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"patch-trainer/internal/config"
	"patch-trainer/internal/extractor"
	"patch-trainer/internal/pipeline"
	"patch-trainer/internal/store"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <record-id>\n", os.Args[0])
		os.Exit(1)
	}
	recordID := os.Args[1]

	logger := log.New()
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	client := store.New(cfg.StoreURL)
	if err := client.Authenticate(ctx, cfg.AdminEmail, cfg.AdminPass); err != nil {
		fmt.Fprintf(os.Stderr, "Store authentication failed: %v\n", err)
		os.Exit(1)
	}

	ext, err := extractor.NewORT(cfg.ExtractorPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load feature extractor: %v\n", err)
		os.Exit(1)
	}
	defer ext.Close()

	runner := &pipeline.Runner{
		Config:    cfg,
		Extractor: ext,
		Store:     client,
		Log:       logger,
	}
	if err := runner.Run(ctx, recordID); err != nil {
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Record %s trained and uploaded\n", recordID)
}
