// Package refiner defines the single capability the super-resolution
// pipeline needs from a diffusion engine: refine one tile under a prompt
// and return a tile of the same size.
package refiner

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"go_superres/core"
)

// Params are the per-tile refinement inputs. Every tile of a job shares
// the same Params, including the seed.
type Params struct {
	Prompt         string
	NegativePrompt string
	Strength       float64 // (0, 1]; low values keep the upsampled structure
	GuidanceScale  float64
	Steps          int
	Seed           uint64
}

// ParamsFromConfig builds the job-wide Params from the loaded configuration.
func ParamsFromConfig(cfg *core.Config) Params {
	return Params{
		Prompt:         cfg.Prompts.Positive,
		NegativePrompt: cfg.Prompts.Negative,
		Strength:       cfg.Strength,
		GuidanceScale:  cfg.GuidanceScale,
		Steps:          cfg.Steps,
		Seed:           cfg.Seed,
	}
}

// Validate reports the first out-of-range field as a *core.ConfigError.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return core.ErrInvalidParams("prompt", "must not be empty")
	}
	if p.Strength <= 0 || p.Strength > 1 {
		return core.ErrInvalidParams("strength", fmt.Sprintf("%.2f must be in (0, 1]", p.Strength))
	}
	if p.GuidanceScale < 1 {
		return core.ErrInvalidParams("guidance_scale", fmt.Sprintf("%.2f must be at least 1.0", p.GuidanceScale))
	}
	if p.Steps < 1 {
		return core.ErrInvalidParams("steps", fmt.Sprintf("%d must be at least 1", p.Steps))
	}
	return nil
}

// Refiner refines one tile. Implementations must return an image with the
// same dimensions as tile and must not retain tile after returning.
type Refiner interface {
	Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error)
}

// Func adapts an ordinary function to the Refiner interface.
type Func func(ctx context.Context, tile image.Image, p Params) (image.Image, error)

// Refine calls f.
func (f Func) Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error) {
	return f(ctx, tile, p)
}

// Identity returns every tile unchanged. It backs --dry-run and tests.
type Identity struct{}

// Refine returns tile.
func (Identity) Refine(ctx context.Context, tile image.Image, _ Params) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tile, nil
}

// Exclusive serializes calls to the wrapped Refiner. The diffusion engine is
// a single shared device, so concurrent jobs queue here.
type Exclusive struct {
	mu    sync.Mutex
	inner Refiner
}

// NewExclusive wraps r.
func NewExclusive(r Refiner) *Exclusive {
	return &Exclusive{inner: r}
}

// Refine holds the lock for the duration of the wrapped call.
func (e *Exclusive) Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.inner.Refine(ctx, tile, p)
}

// Close closes the wrapped Refiner if it holds resources.
func (e *Exclusive) Close() error {
	return Close(e.inner)
}

// Timeout bounds every call to r by d. A non-positive d returns r unchanged.
func Timeout(r Refiner, d time.Duration) Refiner {
	if d <= 0 {
		return r
	}
	return &timeoutRefiner{inner: r, timeout: d}
}

type timeoutRefiner struct {
	inner   Refiner
	timeout time.Duration
}

func (t *timeoutRefiner) Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Refine(ctx, tile, p)
}

func (t *timeoutRefiner) Close() error {
	return Close(t.inner)
}

// Close releases r if it implements io.Closer.
func Close(r Refiner) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
