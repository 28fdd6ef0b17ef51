package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"patch-trainer/internal/config"
	"patch-trainer/internal/extractor"
	"patch-trainer/internal/store"
)

// ArtifactName is the file name the exported classifier is stored under.
const ArtifactName = "classifier.onnx"

// RecordStore is the slice of the dataset-record collaborator the runner
// needs. *store.Client satisfies it.
type RecordStore interface {
	Record(ctx context.Context, id string) (*store.Record, error)
	SetStatus(ctx context.Context, id, status string) error
	DownloadImage(ctx context.Context, rec *store.Record, filename string) ([]byte, error)
	UploadArtifact(ctx context.Context, id, filename string, data []byte) error
}

// Runner executes complete training runs against the record store. Each
// run owns its tables and classifier exclusively; runners are safe for
// concurrent use across distinct records.
type Runner struct {
	Config    config.Config
	Extractor extractor.Extractor
	Store     RecordStore
	Log       *log.Logger
}

// Run trains the classifier for one dataset record: mark it training,
// download its images, run the pipeline, and upload the artifact. Any
// fatal error marks the record failed and is returned to the caller; no
// partial artifact is ever written.
func (r *Runner) Run(ctx context.Context, recordID string) error {
	logger := r.Log.WithField("record", recordID)
	logger.Info("starting training run")

	rec, err := r.Store.Record(ctx, recordID)
	if err != nil {
		return fmt.Errorf("fetch record: %w", err)
	}
	if err := r.Store.SetStatus(ctx, recordID, store.StatusTraining); err != nil {
		return fmt.Errorf("mark training: %w", err)
	}

	artifact, stats, err := r.train(ctx, rec)
	if err != nil {
		logger.WithError(err).Error("training run failed")
		if ferr := r.Store.SetStatus(context.WithoutCancel(ctx), recordID, store.StatusFailed); ferr != nil {
			logger.WithError(ferr).Warn("could not mark record failed")
		}
		return err
	}

	if err := r.Store.UploadArtifact(ctx, recordID, ArtifactName, artifact); err != nil {
		logger.WithError(err).Error("artifact upload failed")
		if ferr := r.Store.SetStatus(context.WithoutCancel(ctx), recordID, store.StatusFailed); ferr != nil {
			logger.WithError(ferr).Warn("could not mark record failed")
		}
		return fmt.Errorf("upload artifact: %w", err)
	}

	logger.WithFields(log.Fields{
		"images":  stats.Images,
		"skipped": stats.Skipped,
		"patches": stats.Patches,
		"clean":   stats.Clean,
		"bytes":   len(artifact),
	}).Info("training run complete")
	return nil
}

func (r *Runner) train(ctx context.Context, rec *store.Record) ([]byte, RunStats, error) {
	blobs := make([][]byte, 0, len(rec.Images))
	for _, filename := range rec.Images {
		blob, err := r.Store.DownloadImage(ctx, rec, filename)
		if err != nil {
			return nil, RunStats{}, fmt.Errorf("download images: %w", err)
		}
		blobs = append(blobs, blob)
	}
	return Train(ctx, r.Config, r.Extractor, blobs)
}
