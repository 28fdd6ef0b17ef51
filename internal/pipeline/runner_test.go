package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"

	"patch-trainer/internal/store"
)

// fakeStore is an in-memory RecordStore tracking status transitions.
type fakeStore struct {
	record   *store.Record
	blobs    map[string][]byte
	statuses []string
	artifact []byte
}

func (f *fakeStore) Record(ctx context.Context, id string) (*store.Record, error) {
	if f.record == nil || f.record.ID != id {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return f.record, nil
}

func (f *fakeStore) SetStatus(ctx context.Context, id, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) DownloadImage(ctx context.Context, rec *store.Record, filename string) ([]byte, error) {
	blob, ok := f.blobs[filename]
	if !ok {
		return nil, fmt.Errorf("file %s not found", filename)
	}
	return blob, nil
}

func (f *fakeStore) UploadArtifact(ctx context.Context, id, filename string, data []byte) error {
	f.artifact = data
	f.statuses = append(f.statuses, store.StatusReady)
	return nil
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunnerHappyPath(t *testing.T) {
	cfg := testConfig()
	blob := halfAndHalf(t)
	fs := &fakeStore{
		record: &store.Record{ID: "rec1", Status: store.StatusPending, Images: []string{"a.png", "b.png"}},
		blobs:  map[string][]byte{"a.png": blob, "b.png": blob},
	}
	r := &Runner{
		Config:    cfg,
		Extractor: &meanExtractor{patchSize: cfg.PatchSize},
		Store:     fs,
		Log:       quietLogger(),
	}

	if err := r.Run(context.Background(), "rec1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{store.StatusTraining, store.StatusReady}
	if len(fs.statuses) != 2 || fs.statuses[0] != want[0] || fs.statuses[1] != want[1] {
		t.Fatalf("status transitions %v, want %v", fs.statuses, want)
	}
	if len(fs.artifact) == 0 {
		t.Fatal("no artifact uploaded")
	}
}

func TestRunnerMarksFailedOnFatalError(t *testing.T) {
	cfg := testConfig()
	fs := &fakeStore{
		// Record with no images: the run has nothing to train on.
		record: &store.Record{ID: "rec2", Status: store.StatusPending},
		blobs:  map[string][]byte{},
	}
	r := &Runner{
		Config:    cfg,
		Extractor: &meanExtractor{patchSize: cfg.PatchSize},
		Store:     fs,
		Log:       quietLogger(),
	}

	err := r.Run(context.Background(), "rec2")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	want := []string{store.StatusTraining, store.StatusFailed}
	if len(fs.statuses) != 2 || fs.statuses[0] != want[0] || fs.statuses[1] != want[1] {
		t.Fatalf("status transitions %v, want %v", fs.statuses, want)
	}
	if fs.artifact != nil {
		t.Fatal("failed run must not upload an artifact")
	}
}

func TestRunnerUnknownRecord(t *testing.T) {
	r := &Runner{
		Config:    testConfig(),
		Extractor: &meanExtractor{patchSize: 16},
		Store:     &fakeStore{},
		Log:       quietLogger(),
	}
	if err := r.Run(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown record")
	}
}
