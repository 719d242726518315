package refiner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"go_superres/core"
	"go_superres/sdruntime"
)

type fakeEngine struct {
	got    sdruntime.Img2ImgParams
	out    image.Image
	err    error
	closed bool
}

func (f *fakeEngine) Img2Img(ctx context.Context, p sdruntime.Img2ImgParams) (image.Image, error) {
	f.got = p
	return f.out, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func TestLocal_Refine(t *testing.T) {
	tile := solidTile(64, color.NRGBA{R: 50, A: 255})
	engine := &fakeEngine{out: solidTile(64, color.NRGBA{R: 60, A: 255})}
	l := &Local{engine: engine}

	p := validParams()
	p.NegativePrompt = "blur"
	p.Seed = math.MaxUint64

	out, err := l.Refine(context.Background(), tile, p)
	if err != nil {
		t.Fatalf("Refine() error: %v", err)
	}
	if out != engine.out {
		t.Error("Refine() should return the engine output")
	}

	got := engine.got
	if got.InitImage != image.Image(tile) || got.Prompt != p.Prompt || got.NegativePrompt != "blur" {
		t.Errorf("engine params = %+v", got)
	}
	if got.Strength != p.Strength || got.Steps != p.Steps || got.CFGScale != p.GuidanceScale {
		t.Errorf("engine numeric params = %+v", got)
	}
	if got.Seed < 0 {
		t.Errorf("Seed = %d, want non-negative", got.Seed)
	}

	if err := l.Close(); err != nil || !engine.closed {
		t.Errorf("Close() = %v, closed = %v", err, engine.closed)
	}
}

func TestLocal_RefineErrors(t *testing.T) {
	tile := solidTile(64, color.NRGBA{})

	failing := &Local{engine: &fakeEngine{err: sdruntime.ErrGenerationFailed}}
	if _, err := failing.Refine(context.Background(), tile, validParams()); !errors.Is(err, sdruntime.ErrGenerationFailed) {
		t.Errorf("Refine() error = %v, want ErrGenerationFailed", err)
	}

	resized := &Local{engine: &fakeEngine{out: solidTile(32, color.NRGBA{})}}
	if _, err := resized.Refine(context.Background(), tile, validParams()); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Refine() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestNewLocal_MissingModel(t *testing.T) {
	_, err := NewLocal(&core.Config{ModelPath: "/nonexistent/model.safetensors"})
	if !errors.Is(err, sdruntime.ErrModelNotFound) {
		t.Errorf("NewLocal() error = %v, want ErrModelNotFound", err)
	}
}
