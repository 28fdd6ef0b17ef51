// Package config holds the immutable configuration for a training run and
// the surrounding service. A Config is populated once at startup and passed
// into components explicitly; nothing reads the environment after that.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects every tunable of the training service. The zero value is
// not usable; start from Default.
type Config struct {
	// PatchSize is the stride and kernel of the patch grid in pixels.
	PatchSize int

	// ImageSize is the target long edge of the patch grid in pixels.
	// Resized images span ImageSize/PatchSize patch rows.
	ImageSize int

	// Mean and Std are the per-channel (R, G, B) normalization constants
	// applied to resized images before feature extraction.
	Mean [3]float32
	Std  [3]float32

	// KeepBelow and KeepAbove bound the soft labels considered unambiguous.
	// A patch survives filtering when label < KeepBelow or label > KeepAbove.
	KeepBelow float64
	KeepAbove float64

	// Regularization is the inverse L2 penalty (sklearn-style C) of the
	// classifier. MaxIterations and Tolerance bound the solver.
	Regularization float64
	MaxIterations  int
	Tolerance      float64

	// ExtractorPath locates the frozen feature-extractor ONNX model.
	ExtractorPath string

	// Record store connection.
	StoreURL   string
	AdminEmail string
	AdminPass  string

	// Scheduler behavior.
	PollInterval      time.Duration
	MaxConcurrentRuns int
	PendingBatchSize  int
}

// Default returns the fixed defaults: ImageNet normalization constants,
// a 16-pixel patch stride on a 768-pixel grid, and the solver settings the
// classifier was tuned with.
func Default() Config {
	return Config{
		PatchSize:         16,
		ImageSize:         768,
		Mean:              [3]float32{0.485, 0.456, 0.406},
		Std:               [3]float32{0.229, 0.224, 0.225},
		KeepBelow:         0.01,
		KeepAbove:         0.99,
		Regularization:    1.0,
		MaxIterations:     1000,
		Tolerance:         1e-4,
		ExtractorPath:     "assets/feature_extractor.onnx",
		StoreURL:          "http://127.0.0.1:8090",
		PollInterval:      10 * time.Second,
		MaxConcurrentRuns: 2,
		PendingBatchSize:  10,
	}
}

// FromEnv builds a Config from the environment on top of Default. A .env
// file in the working directory is loaded first if present, matching how
// the service is deployed.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("STORE_URL"); v != "" {
		cfg.StoreURL = v
	}
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.AdminPass = os.Getenv("ADMIN_PASS")
	if v := os.Getenv("EXTRACTOR_MODEL_PATH"); v != "" {
		cfg.ExtractorPath = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parse POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("MAX_CONCURRENT_RUNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse MAX_CONCURRENT_RUNS: %w", err)
		}
		cfg.MaxConcurrentRuns = n
	}
	return cfg, nil
}
