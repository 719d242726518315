package refiner

import (
	"context"
	"image"
	"math"
	"path/filepath"

	"go_superres/core"
	"go_superres/sdruntime"
)

// img2imgEngine is the part of sdruntime.Engine that Local drives.
type img2imgEngine interface {
	Img2Img(ctx context.Context, params sdruntime.Img2ImgParams) (image.Image, error)
	Close() error
}

// Local refines tiles with the in-process img2img engine.
type Local struct {
	engine img2imgEngine
}

// NewLocal verifies the model at cfg.ModelPath and prepares a single
// context engine. The model itself loads on the first Refine call.
func NewLocal(cfg *core.Config) (*Local, error) {
	engine, err := OpenEngine(cfg)
	if err != nil {
		return nil, err
	}
	return NewLocalWithEngine(engine), nil
}

// OpenEngine returns the single-context engine for cfg.ModelPath, checked
// against cfg.ModelSHA256 when set.
func OpenEngine(cfg *core.Config) (*sdruntime.Engine, error) {
	if cfg.ModelSHA256 != "" {
		sdruntime.RegisterModelChecksum(filepath.Base(cfg.ModelPath), cfg.ModelSHA256)
	}
	return sdruntime.NewEngine(1, cfg.ModelPath, sdruntime.WithTimeout(cfg.Timeout))
}

// NewLocalWithEngine refines on an engine shared with other callers.
// Closing the Local closes the engine.
func NewLocalWithEngine(engine *sdruntime.Engine) *Local {
	return &Local{engine: engine}
}

// Refine runs one img2img pass over tile.
func (l *Local) Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error) {
	out, err := l.engine.Img2Img(ctx, sdruntime.Img2ImgParams{
		InitImage:      tile,
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Strength:       p.Strength,
		Steps:          p.Steps,
		CFGScale:       p.GuidanceScale,
		Seed:           int64(p.Seed & math.MaxInt64),
	})
	if err != nil {
		return nil, err
	}
	if err := CheckDimensions(tile, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the engine's contexts.
func (l *Local) Close() error {
	return l.engine.Close()
}
