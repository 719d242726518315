package superres

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"go_superres/history"
	"go_superres/refiner"
)

func TestRun_FolderBatch(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	c := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	writeImage(t, in, "a.png", 12, 12, c)
	writeImage(t, in, "b.png", 20, 10, c)
	writeImage(t, in, "SR_old.png", 12, 12, c)
	touch(t, in, "readme.txt", "ignored")

	rec := &fakeRecorder{}
	cfg := testConfig(out)
	job, err := NewJob(cfg, refiner.Identity{}, nil, WithRecorder(rec), WithWorkers(2))
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	res, err := job.Run(context.Background(), "", in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.BatchID == "" {
		t.Error("BatchID is empty")
	}
	if res.Succeeded() != 2 || res.Failed() != 0 || res.Skipped() != 0 {
		t.Errorf("succeeded/failed/skipped = %d/%d/%d, want 2/0/0", res.Succeeded(), res.Failed(), res.Skipped())
	}
	for _, name := range []string{"SR_a.png", "SR_b.png"} {
		assertUniform(t, filepath.Join(out, name), cfg.TargetSize, c)
	}
	if _, err := os.Stat(filepath.Join(out, "SR_SR_old.png")); !os.IsNotExist(err) {
		t.Error("previous output was reprocessed")
	}

	if got := rec.byStatus()[history.StatusSuccess]; got != 2 {
		t.Errorf("recorded %d successes, want 2", got)
	}
	for _, e := range rec.entries {
		if e.BatchID != res.BatchID || e.Backend != "identity" || e.TargetSize != 40 || e.TileSize != 24 || e.Seed != 42 {
			t.Errorf("entry = %+v", e)
		}
	}
}

func TestRun_FailuresDoNotStopBatch(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	c := color.NRGBA{R: 200, A: 255}
	writeImage(t, in, "a.png", 8, 8, c)
	writeImage(t, in, "b.png", 8, 8, c)
	touch(t, in, "c.png", "corrupt")

	// The third refinement call, which belongs to a.png, fails.
	calls := 0
	r := refiner.Func(func(_ context.Context, tile image.Image, _ refiner.Params) (image.Image, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("out of memory")
		}
		return tile, nil
	})

	rec := &fakeRecorder{}
	job, err := NewJob(testConfig(out), r, nil, WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	res, err := job.Run(context.Background(), "", in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Images) != 3 {
		t.Fatalf("Images = %d, want 3", len(res.Images))
	}
	if res.Succeeded() != 1 || res.Failed() != 2 {
		t.Errorf("succeeded/failed = %d/%d, want 1/2", res.Succeeded(), res.Failed())
	}

	if !errors.Is(res.Images[0].Err, refiner.ErrInference) {
		t.Errorf("a.png error = %v, want inference error", res.Images[0].Err)
	}
	if res.Images[1].Err != nil {
		t.Errorf("b.png error = %v", res.Images[1].Err)
	}
	if !errors.Is(res.Images[2].Err, ErrImageRead) {
		t.Errorf("c.png error = %v, want read error", res.Images[2].Err)
	}

	if _, err := os.Stat(filepath.Join(out, "SR_a.png")); !os.IsNotExist(err) {
		t.Error("SR_a.png written despite inference failure")
	}
	if _, err := os.Stat(filepath.Join(out, "SR_b.png")); err != nil {
		t.Errorf("SR_b.png missing: %v", err)
	}

	want := map[string]int{
		history.StatusSuccess:        1,
		history.StatusInferenceError: 1,
		history.StatusReadError:      1,
	}
	got := rec.byStatus()
	for status, n := range want {
		if got[status] != n {
			t.Errorf("status %s recorded %d times, want %d", status, got[status], n)
		}
	}
	for _, e := range rec.entries {
		if e.Status != history.StatusSuccess && e.ErrorMessage == "" {
			t.Errorf("entry %s has no error message", e.SourcePath)
		}
	}
}

func TestRun_WriteError(t *testing.T) {
	in := t.TempDir()
	src := writeImage(t, in, "a.png", 8, 8, color.NRGBA{A: 255})

	// A regular file where the output directory should be.
	blocker := touch(t, t.TempDir(), "blocked", "x")

	rec := &fakeRecorder{}
	job, err := NewJob(testConfig(filepath.Join(blocker, "out")), refiner.Identity{}, nil, WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	res, err := job.Run(context.Background(), src, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed() != 1 || !errors.Is(res.Images[0].Err, ErrImageWrite) {
		t.Fatalf("result = %+v, want one write failure", res.Images)
	}
	if rec.byStatus()[history.StatusWriteError] != 1 {
		t.Errorf("write_error not recorded: %v", rec.byStatus())
	}
}

func TestRun_NoInput(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "notes.txt", "x")

	job, err := NewJob(testConfig(t.TempDir()), refiner.Identity{}, nil)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	tests := []struct {
		name   string
		file   string
		folder string
	}{
		{"empty folder", "", dir},
		{"missing file", filepath.Join(dir, "missing.png"), ""},
		{"nothing", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := job.Run(context.Background(), tt.file, tt.folder)
			if !errors.Is(err, ErrNoInput) {
				t.Fatalf("Run() error = %v, want ErrNoInput", err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}
}

func TestRun_CancelledSkipsRemaining(t *testing.T) {
	in := t.TempDir()
	c := color.NRGBA{A: 255}
	writeImage(t, in, "a.png", 8, 8, c)
	writeImage(t, in, "b.png", 8, 8, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel after the first image is fully refined.
	calls := 0
	r := refiner.Func(func(_ context.Context, tile image.Image, _ refiner.Params) (image.Image, error) {
		calls++
		if calls == 4 {
			cancel()
		}
		return tile, nil
	})

	rec := &fakeRecorder{}
	job, err := NewJob(testConfig(t.TempDir()), r, nil, WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	res, err := job.Run(ctx, "", in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("Run() returned nil result on cancellation")
	}
	if !res.Images[1].Skipped {
		t.Errorf("b.png not skipped: %+v", res.Images[1])
	}
	if res.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", res.Failed())
	}
	if calls != 4 {
		t.Errorf("refiner called %d times, want 4", calls)
	}
}
