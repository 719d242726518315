package sdruntime

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// DefaultTimeout bounds a single generation call including pool acquisition.
const DefaultTimeout = 10 * time.Minute

// Engine runs img2img and txt2img generations over a ContextPool.
type Engine struct {
	pool    *ContextPool
	timeout time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine verifies the model file and creates a pool of poolSize contexts.
// Contexts are loaded lazily on first use.
func NewEngine(poolSize int, modelPath string, opts ...EngineOption) (*Engine, error) {
	if err := VerifyModelChecksum(modelPath); err != nil {
		return nil, err
	}

	pool, err := NewContextPool(poolSize, modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create context pool: %w", err)
	}

	e := &Engine{pool: pool, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Img2Img refines params.InitImage and returns an image of identical size.
//
// Errors: ErrInvalidParams, ErrAcquireTimeout, ErrContextPoolClosed,
// ErrGenerationFailed, ErrGenerationTimeout, ErrOutOfVRAM, ErrEngineNotLinked.
func (e *Engine) Img2Img(ctx context.Context, params Img2ImgParams) (image.Image, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	params.Seed = ResolveSeed(params.Seed)

	in := params.InitImage.Bounds()
	return e.run(ctx, in.Dx(), in.Dy(), func(sd *SDContext) (*GenerateResult, error) {
		return Img2Img(sd, params)
	})
}

// Txt2Img generates a params.Width x params.Height image.
//
// Errors: as Img2Img.
func (e *Engine) Txt2Img(ctx context.Context, params Txt2ImgParams) (image.Image, error) {
	if err := ValidateTxt2ImgParams(params); err != nil {
		return nil, err
	}
	params.Seed = ResolveSeed(params.Seed)

	return e.run(ctx, params.Width, params.Height, func(sd *SDContext) (*GenerateResult, error) {
		return Txt2Img(sd, params)
	})
}

// run holds one pooled context for the duration of generate and checks
// that the decoded output is width x height.
func (e *Engine) run(ctx context.Context, width, height int, generate func(*SDContext) (*GenerateResult, error)) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	pc, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.Release(pc)

	result, err := generate(pc.SDContext)
	if err != nil {
		return nil, err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: exceeded %s", ErrGenerationTimeout, e.timeout)
	}

	if err := ValidateImageData(result.ImageData); err != nil {
		return nil, fmt.Errorf("engine output validation failed: %w", err)
	}
	out, err := DecodePNG(result.ImageData)
	if err != nil {
		return nil, err
	}

	if out.Bounds().Dx() != width || out.Bounds().Dy() != height {
		return nil, fmt.Errorf("%w: output %dx%d, want %dx%d", ErrGenerationFailed,
			out.Bounds().Dx(), out.Bounds().Dy(), width, height)
	}
	return out, nil
}

// Close releases all pooled contexts. It is safe to call more than once.
func (e *Engine) Close() error {
	return e.pool.Close()
}
