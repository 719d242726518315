// Package superres upscales source images to a square canvas, refines
// four overlapping tiles with a diffusion Refiner and blends them back
// into one seamless output.
package superres

import (
	"context"
	"image"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"go_superres/core"
	"go_superres/history"
	"go_superres/logging"
	"go_superres/refiner"
	"go_superres/tiling"
)

// Recorder persists the outcome of each processed image.
// *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// Job holds everything needed to super-resolve images with one
// configuration. The geometry and masks are computed once in NewJob and
// shared by every image.
type Job struct {
	geometry  tiling.Geometry
	tiles     []tiling.TileSpec
	masks     map[tiling.Position]*tiling.Mask
	refiner   refiner.Refiner
	params    refiner.Params
	outputDir string
	workers   int
	backend   string
	logger    *logging.Logger
	recorder  Recorder
}

// Option configures a Job.
type Option func(*Job)

// WithRecorder stores one history entry per processed image.
func WithRecorder(r Recorder) Option {
	return func(j *Job) {
		j.recorder = r
	}
}

// WithOutputDir overrides cfg.OutputDir.
func WithOutputDir(dir string) Option {
	return func(j *Job) {
		if dir != "" {
			j.outputDir = dir
		}
	}
}

// WithWorkers overrides cfg.Workers. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(j *Job) {
		if n >= 1 {
			j.workers = n
		}
	}
}

// NewJob validates the geometry and refinement parameters in cfg and
// precomputes the tile plan and masks. Invalid settings return a
// *core.ConfigError before any image is touched.
func NewJob(cfg *core.Config, r refiner.Refiner, logger *logging.Logger, opts ...Option) (*Job, error) {
	geometry, err := tiling.NewGeometry(cfg.TargetSize, cfg.TileSize)
	if err != nil {
		return nil, err
	}

	params := refiner.ParamsFromConfig(cfg)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	j := &Job{
		geometry:  geometry,
		tiles:     geometry.Plan(),
		masks:     make(map[tiling.Position]*tiling.Mask, 4),
		refiner:   r,
		params:    params,
		outputDir: cfg.OutputDir,
		workers:   max(cfg.Workers, 1),
		backend:   cfg.Backend,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(j)
	}

	for _, spec := range j.tiles {
		mask, err := tiling.BuildMask(geometry.TileSize, geometry.Overlap, spec.Seams)
		if err != nil {
			return nil, err
		}
		j.masks[spec.Position] = mask
	}

	return j, nil
}

// Geometry returns the validated tiling geometry.
func (j *Job) Geometry() tiling.Geometry {
	return j.geometry
}

// OutputDir returns the directory outputs are written to.
func (j *Job) OutputDir() string {
	return j.outputDir
}

// OutputPath returns where the result for src is written.
func (j *Job) OutputPath(src string) string {
	return filepath.Join(j.outputDir, OutputName(src))
}

// ProcessImage super-resolves one image and returns the output path.
//
// The stages run strictly in order: upsample, plan, then for each tile
// crop, refine and accumulate, then normalize and save. A refinement
// failure returns an *refiner.InferenceError and nothing is written.
// Cancellation of ctx is returned as ctx.Err().
func (j *Job) ProcessImage(ctx context.Context, path string) (string, error) {
	log := j.logger.With(zap.String(logging.KeyImage, path))

	src, err := loadImage(path)
	if err != nil {
		return "", err
	}

	canvas := Upscale(src, j.geometry.TargetSize)
	log.Debug("upsampled",
		zap.Int("source_width", src.Bounds().Dx()),
		zap.Int("source_height", src.Bounds().Dy()),
		zap.Int("target_size", j.geometry.TargetSize))

	comp := tiling.NewCompositor(j.geometry.TargetSize)
	for _, spec := range j.tiles {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := j.refineTile(ctx, log, path, canvas, comp, spec); err != nil {
			return "", err
		}
	}

	out := comp.Normalize()
	outPath := j.OutputPath(path)
	if err := SaveImage(out, outPath); err != nil {
		return "", err
	}

	log.Info("saved", zap.String(logging.KeyOutput, outPath))
	return outPath, nil
}

func (j *Job) refineTile(ctx context.Context, log *logging.Logger, path string, canvas image.Image, comp *tiling.Compositor, spec tiling.TileSpec) error {
	tile := imaging.Crop(canvas, spec.Rect())

	start := time.Now()
	refined, err := j.refiner.Refine(ctx, tile, j.params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &refiner.InferenceError{Image: path, Position: spec.Position.String(), Err: err}
	}
	if err := refiner.CheckDimensions(tile, refined); err != nil {
		return &refiner.InferenceError{Image: path, Position: spec.Position.String(), Err: err}
	}

	log.Info("tile refined", append(logging.TileFields(spec), logging.RefineMetrics{
		Backend:  j.backend,
		Position: spec.Position.String(),
		Steps:    j.params.Steps,
		Strength: j.params.Strength,
		Seed:     j.params.Seed,
		Duration: time.Since(start),
	}.Field())...)

	if err := comp.Accumulate(spec, refined, j.masks[spec.Position]); err != nil {
		return &refiner.InferenceError{Image: path, Position: spec.Position.String(), Err: err}
	}
	return nil
}
