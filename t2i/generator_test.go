package t2i

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"go_superres/core"
	"go_superres/refiner"
	"go_superres/sdruntime"
)

func baseParams(seed uint64) BaseParams {
	return BaseParams{
		Prompt:        "portrait photo",
		Width:         64,
		Height:        48,
		Steps:         30,
		GuidanceScale: 7,
		Seed:          seed,
	}
}

func TestPlaceholder_Generate(t *testing.T) {
	ctx := context.Background()

	a, err := Placeholder{}.Generate(ctx, baseParams(7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if b := a.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("size = %dx%d, want 64x48", b.Dx(), b.Dy())
	}

	again, _ := Placeholder{}.Generate(ctx, baseParams(7))
	if !bytes.Equal(a.(*image.NRGBA).Pix, again.(*image.NRGBA).Pix) {
		t.Error("same seed produced different images")
	}
	other, _ := Placeholder{}.Generate(ctx, baseParams(8))
	if bytes.Equal(a.(*image.NRGBA).Pix, other.(*image.NRGBA).Pix) {
		t.Error("different seeds produced the same image")
	}
	if got := a.(*image.NRGBA).NRGBAAt(10, 10).A; got != 255 {
		t.Errorf("alpha = %d, want 255", got)
	}
}

func TestPlaceholder_Errors(t *testing.T) {
	p := baseParams(1)
	p.Width = 0
	if _, err := (Placeholder{}).Generate(context.Background(), p); err == nil {
		t.Error("Generate(0 width) expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Placeholder{}).Generate(ctx, baseParams(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Generate(cancelled) error = %v, want context.Canceled", err)
	}
}

type fakeTxt2Img struct {
	params sdruntime.Txt2ImgParams
	closed int
}

func (f *fakeTxt2Img) Txt2Img(_ context.Context, p sdruntime.Txt2ImgParams) (image.Image, error) {
	f.params = p
	return image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height)), nil
}

func (f *fakeTxt2Img) Close() error {
	f.closed++
	return nil
}

func TestLocal_Generate(t *testing.T) {
	engine := &fakeTxt2Img{}
	l := &Local{engine: engine}

	p := baseParams(math.MaxUint64)
	p.NegativePrompt = "blurry"
	if _, err := l.Generate(context.Background(), p); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := sdruntime.Txt2ImgParams{
		Prompt:         "portrait photo",
		NegativePrompt: "blurry",
		Width:          64,
		Height:         48,
		Steps:          30,
		CFGScale:       7,
		Seed:           math.MaxInt64,
	}
	if engine.params != want {
		t.Errorf("params = %+v, want %+v", engine.params, want)
	}

	if err := Close(l); err != nil || engine.closed != 1 {
		t.Errorf("Close() = %v, closed %d times", err, engine.closed)
	}
}

type fakeCreator struct {
	req      openai.ImageRequest
	response openai.ImageResponse
	err      error
}

func (f *fakeCreator) CreateImage(_ context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	f.req = req
	return f.response, f.err
}

func b64PNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestGenerationSize(t *testing.T) {
	tests := map[int]string{
		64:   openai.CreateImageSize256x256,
		256:  openai.CreateImageSize256x256,
		300:  openai.CreateImageSize512x512,
		1024: openai.CreateImageSize1024x1024,
		2048: openai.CreateImageSize1024x1024,
	}
	for side, want := range tests {
		if got := generationSize(side); got != want {
			t.Errorf("generationSize(%d) = %s, want %s", side, got, want)
		}
	}
}

func TestOpenAI_Generate(t *testing.T) {
	creator := &fakeCreator{response: openai.ImageResponse{
		Data: []openai.ImageResponseDataInner{{B64JSON: b64PNG(t, 512, 512)}},
	}}
	o := &OpenAI{client: creator, model: "dall-e-2"}

	p := baseParams(3)
	p.Width, p.Height = 400, 240
	p.NegativePrompt = "text"
	img, err := o.Generate(context.Background(), p)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 240 {
		t.Errorf("size = %dx%d, want 400x240", b.Dx(), b.Dy())
	}
	if creator.req.Size != openai.CreateImageSize512x512 || creator.req.N != 1 || creator.req.Model != "dall-e-2" {
		t.Errorf("request = %+v", creator.req)
	}
	if !strings.Contains(creator.req.Prompt, "Avoid: text") {
		t.Errorf("prompt %q does not carry the negative prompt", creator.req.Prompt)
	}
	if creator.req.ResponseFormat != openai.CreateImageResponseFormatB64JSON {
		t.Errorf("ResponseFormat = %q", creator.req.ResponseFormat)
	}
}

func TestOpenAI_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		creator *fakeCreator
	}{
		{"request fails", &fakeCreator{err: errors.New("503")}},
		{"no data", &fakeCreator{}},
		{"bad base64", &fakeCreator{response: openai.ImageResponse{
			Data: []openai.ImageResponseDataInner{{B64JSON: "%%%"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &OpenAI{client: tt.creator}
			if _, err := o.Generate(context.Background(), baseParams(1)); err == nil {
				t.Error("Generate() expected error")
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		g, r, err := NewFromConfig(&core.Config{Backend: core.BackendIdentity})
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if _, ok := g.(Placeholder); !ok {
			t.Errorf("generator = %T, want Placeholder", g)
		}
		if _, ok := r.(*refiner.Exclusive); !ok {
			t.Errorf("refiner = %T, want *refiner.Exclusive", r)
		}
	})

	t.Run("openai", func(t *testing.T) {
		g, r, err := NewFromConfig(&core.Config{Backend: core.BackendOpenAI, OpenAIAPIKey: "sk-test"})
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if o, ok := g.(*OpenAI); !ok || o.model != core.DefaultOpenAIModel {
			t.Errorf("generator = %#v", g)
		}
		if r == nil {
			t.Error("refiner is nil")
		}
	})

	t.Run("openai without key", func(t *testing.T) {
		if _, _, err := NewFromConfig(&core.Config{Backend: core.BackendOpenAI}); err == nil {
			t.Error("NewFromConfig() expected error")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, _, err := NewFromConfig(&core.Config{Backend: "gpu-farm"}); err == nil {
			t.Error("NewFromConfig() expected error")
		}
	})
}

func TestStageError(t *testing.T) {
	cause := errors.New("out of memory")
	err := error(&StageError{Image: "#02 seed 9", Stage: StageRefine, Err: cause})

	if !errors.Is(err, refiner.ErrInference) || !errors.Is(err, cause) {
		t.Errorf("errors.Is failed for %v", err)
	}
	if got := err.Error(); got != "refine pass failed for #02 seed 9: out of memory" {
		t.Errorf("Error() = %q", got)
	}
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
