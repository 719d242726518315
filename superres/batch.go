package superres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go_superres/history"
	"go_superres/logging"
)

// ImageResult is the outcome for one source image.
type ImageResult struct {
	Source   string
	Output   string // Empty unless Err is nil
	Err      error
	Skipped  bool // Not started because the batch was cancelled
	Duration time.Duration
}

// BatchResult summarises one Run.
type BatchResult struct {
	BatchID  string
	Images   []ImageResult // In target order
	Duration time.Duration
}

// Succeeded returns the number of images written.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Images {
		if !r.Skipped && r.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of images that errored.
func (b *BatchResult) Failed() int {
	n := 0
	for _, r := range b.Images {
		if !r.Skipped && r.Err != nil {
			n++
		}
	}
	return n
}

// Skipped returns the number of images never started.
func (b *BatchResult) Skipped() int {
	n := 0
	for _, r := range b.Images {
		if r.Skipped {
			n++
		}
	}
	return n
}

// Run processes the targets resolved from filePath and folderPath.
//
// It returns a *NoInputError when nothing resolves. Per-image read and
// inference failures are logged, recorded and reported in the result;
// they never stop the batch. When ctx is cancelled, images not yet started
// are marked skipped and Run returns the partial result with ctx.Err().
func (j *Job) Run(ctx context.Context, filePath, folderPath string) (*BatchResult, error) {
	start := time.Now()

	targets, discoverErr := DiscoverTargets(filePath, folderPath)
	if len(targets) == 0 {
		return nil, &NoInputError{File: filePath, Folder: folderPath, Cause: discoverErr}
	}
	if discoverErr != nil {
		j.logger.Warn("some inputs could not be resolved", zap.Error(discoverErr))
	}

	result := &BatchResult{
		BatchID: uuid.NewString(),
		Images:  make([]ImageResult, len(targets)),
	}
	log := j.logger.With(zap.String(logging.KeyBatchID, result.BatchID))
	log.Info("batch started",
		zap.Int("images", len(targets)),
		zap.Int("workers", j.workers),
		zap.String(logging.KeyBackend, j.backend),
		zap.String("output_dir", j.outputDir))

	var g errgroup.Group
	g.SetLimit(j.workers)
	for i, target := range targets {
		g.Go(func() error {
			result.Images[i] = j.runOne(ctx, log, result.BatchID, target)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	log.Info("batch finished",
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", result.Failed()),
		zap.Int("skipped", result.Skipped()),
		zap.Duration("duration", result.Duration))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (j *Job) runOne(ctx context.Context, log *logging.Logger, batchID, target string) ImageResult {
	if ctx.Err() != nil {
		return ImageResult{Source: target, Skipped: true}
	}

	start := time.Now()
	out, err := j.ProcessImage(ctx, target)
	res := ImageResult{Source: target, Output: out, Err: err, Duration: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		// Interrupted mid-image: nothing was written.
		res.Skipped = true
		log.Warn("image interrupted", logging.JobFields(batchID, target)...)
		return res
	}

	status := statusFor(err)
	if err != nil {
		log.Error("image failed", append(logging.JobFields(batchID, target),
			zap.String("status", status), zap.Error(err))...)
	}
	j.record(ctx, log, history.Entry{
		BatchID:      batchID,
		Mode:         history.ModeSR,
		SourcePath:   target,
		OutputPath:   out,
		Status:       status,
		Backend:      j.backend,
		TargetSize:   j.geometry.TargetSize,
		TileSize:     j.geometry.TileSize,
		Seed:         j.params.Seed,
		Duration:     res.Duration,
		ErrorMessage: errorText(err),
	})
	return res
}

func (j *Job) record(ctx context.Context, log *logging.Logger, e history.Entry) {
	if j.recorder == nil {
		return
	}
	// Record even if the batch is being cancelled.
	if _, err := j.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("history record failed", zap.String(logging.KeyImage, e.SourcePath), zap.Error(err))
	}
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return history.StatusSuccess
	case errors.Is(err, ErrImageRead):
		return history.StatusReadError
	case errors.Is(err, ErrImageWrite):
		return history.StatusWriteError
	default:
		return history.StatusInferenceError
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
