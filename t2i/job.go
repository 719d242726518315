package t2i

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go_superres/core"
	"go_superres/history"
	"go_superres/logging"
	"go_superres/refiner"
	"go_superres/sdruntime"
	"go_superres/superres"
)

// Stages of one generated image.
const (
	StageBase   = "base"
	StageRefine = "refine"
)

// StageError reports a failed pass for one generated image.
// errors.Is(err, refiner.ErrInference) holds for every StageError.
type StageError struct {
	Image string // Label such as "#01 seed 1234"
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s pass failed for %s: %v", e.Stage, e.Image, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is makes every StageError match refiner.ErrInference.
func (e *StageError) Is(target error) bool {
	return target == refiner.ErrInference
}

// Job generates images with one configuration.
type Job struct {
	settings  core.T2IConfig
	prompts   core.PromptSet
	base      Generator
	refiner   refiner.Refiner
	backend   string
	outputDir string
	seeds     func() uint64
	logger    *logging.Logger
	recorder  superres.Recorder
}

// Option configures a Job.
type Option func(*Job)

// WithRecorder stores one history entry per generated image.
func WithRecorder(r superres.Recorder) Option {
	return func(j *Job) {
		j.recorder = r
	}
}

// WithOutputDir overrides cfg.T2I.OutputDir.
func WithOutputDir(dir string) Option {
	return func(j *Job) {
		if dir != "" {
			j.outputDir = dir
		}
	}
}

// WithSeeds replaces the random seed source.
func WithSeeds(next func() uint64) Option {
	return func(j *Job) {
		if next != nil {
			j.seeds = next
		}
	}
}

// RandomSeed returns a seed in [0, 2^32).
func RandomSeed() uint64 {
	return uint64(sdruntime.RandomSeed()) & 0xFFFFFFFF
}

// NewJob validates the text-to-image settings in cfg. Invalid settings
// return a *core.ConfigError.
func NewJob(cfg *core.Config, base Generator, r refiner.Refiner, logger *logging.Logger, opts ...Option) (*Job, error) {
	if err := cfg.ValidateT2I(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	j := &Job{
		settings:  cfg.T2I,
		prompts:   cfg.Prompts,
		base:      base,
		refiner:   r,
		backend:   cfg.Backend,
		outputDir: cfg.T2I.OutputDir,
		seeds:     RandomSeed,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// OutputPath returns where the index-th image (zero based) is written.
func (j *Job) OutputPath(index int) string {
	return filepath.Join(j.outputDir, fmt.Sprintf("%s_%02d_final.png", j.settings.FilePrefix, index+1))
}

// Run generates count images one after another. Each image draws a fresh
// seed used by both passes. A failed image is logged, recorded and
// reported; it never stops the run. When ctx is cancelled, images not yet
// started are marked skipped and Run returns the partial result with
// ctx.Err().
func (j *Job) Run(ctx context.Context, count int) (*superres.BatchResult, error) {
	if count < 1 {
		return nil, core.ErrInvalidParams("count", fmt.Sprintf("%d must be at least 1", count))
	}
	start := time.Now()

	result := &superres.BatchResult{
		BatchID: uuid.NewString(),
		Images:  make([]superres.ImageResult, count),
	}
	log := j.logger.With(zap.String(logging.KeyBatchID, result.BatchID))
	log.Info("generation started",
		zap.Int("images", count),
		zap.Int("width", j.settings.Width),
		zap.Int("height", j.settings.Height),
		zap.String(logging.KeyBackend, j.backend),
		zap.String("output_dir", j.outputDir))

	for i := range count {
		result.Images[i] = j.runOne(ctx, log, result.BatchID, i)
	}

	result.Duration = time.Since(start)
	log.Info("generation finished",
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", result.Failed()),
		zap.Int("skipped", result.Skipped()),
		zap.Duration("duration", result.Duration))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (j *Job) runOne(ctx context.Context, log *logging.Logger, batchID string, index int) superres.ImageResult {
	if ctx.Err() != nil {
		return superres.ImageResult{Source: fmt.Sprintf("#%02d", index+1), Skipped: true}
	}

	seed := j.seeds()
	label := fmt.Sprintf("#%02d seed %d", index+1, seed)
	start := time.Now()
	out, err := j.generate(ctx, log, label, index, seed)
	res := superres.ImageResult{Source: label, Output: out, Err: err, Duration: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		res.Skipped = true
		log.Warn("image interrupted", logging.JobFields(batchID, label)...)
		return res
	}

	status := statusFor(err)
	if err != nil {
		log.Error("image failed", append(logging.JobFields(batchID, label),
			zap.String("status", status), zap.Error(err))...)
	}
	j.record(ctx, log, history.Entry{
		BatchID:      batchID,
		Mode:         history.ModeT2I,
		SourcePath:   label,
		OutputPath:   out,
		Status:       status,
		Backend:      j.backend,
		TargetSize:   max(j.settings.Width, j.settings.Height),
		Seed:         seed,
		Duration:     res.Duration,
		ErrorMessage: errorText(err),
	})
	return res
}

// generate runs both passes for one image and writes the result. Nothing is
// written when either pass fails.
func (j *Job) generate(ctx context.Context, log *logging.Logger, label string, index int, seed uint64) (string, error) {
	t := j.settings

	start := time.Now()
	base, err := j.base.Generate(ctx, BaseParams{
		Prompt:         j.prompts.Base,
		NegativePrompt: j.prompts.Negative,
		Width:          t.Width,
		Height:         t.Height,
		Steps:          t.BaseSteps,
		GuidanceScale:  t.BaseGuidance,
		Seed:           seed,
	})
	if err == nil {
		err = checkSize(base, t.Width, t.Height)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &StageError{Image: label, Stage: StageBase, Err: err}
	}
	log.Debug("base generated", zap.String(logging.KeyImage, label),
		logging.RefineMetrics{Backend: j.backend, Position: StageBase, Steps: t.BaseSteps,
			Seed: seed, Duration: time.Since(start)}.Field())

	start = time.Now()
	refined, err := j.refiner.Refine(ctx, base, refiner.Params{
		Prompt:         j.prompts.Refine,
		NegativePrompt: j.prompts.Negative,
		Strength:       t.RefineStrength,
		GuidanceScale:  t.RefineGuidance,
		Steps:          t.RefineSteps,
		Seed:           seed,
	})
	if err == nil {
		err = refiner.CheckDimensions(base, refined)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &StageError{Image: label, Stage: StageRefine, Err: err}
	}
	log.Debug("texture refined", zap.String(logging.KeyImage, label),
		logging.RefineMetrics{Backend: j.backend, Position: StageRefine, Steps: t.RefineSteps,
			Strength: t.RefineStrength, Seed: seed, Duration: time.Since(start)}.Field())

	path := j.OutputPath(index)
	if err := superres.SaveImage(refined, path); err != nil {
		return "", err
	}
	log.Info("image written", zap.String(logging.KeyImage, label), zap.String(logging.KeyOutput, path))
	return path, nil
}

func checkSize(img image.Image, w, h int) error {
	if img == nil {
		return fmt.Errorf("%w: generator returned no image", refiner.ErrDimensionMismatch)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", refiner.ErrDimensionMismatch, b.Dx(), b.Dy(), w, h)
	}
	return nil
}

func (j *Job) record(ctx context.Context, log *logging.Logger, e history.Entry) {
	if j.recorder == nil {
		return
	}
	if _, err := j.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("history record failed", zap.String(logging.KeyImage, e.SourcePath), zap.Error(err))
	}
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return history.StatusSuccess
	case errors.Is(err, superres.ErrImageWrite):
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
