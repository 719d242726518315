// Package t2i generates images from text in two passes: a structure pass
// that composes the image from the base prompt, then a texture pass that
// re-diffuses it at low strength through a refiner.Refiner.
package t2i

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/sashabaranov/go-openai"

	"go_superres/core"
	"go_superres/refiner"
	"go_superres/sdruntime"
)

// BaseParams drives the structure pass.
type BaseParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	GuidanceScale  float64
	Seed           uint64
}

// Generator composes a new image from a prompt. Implementations must return
// an image of exactly Width x Height.
type Generator interface {
	Generate(ctx context.Context, p BaseParams) (image.Image, error)
}

// NewFromConfig returns the structure and texture stages for cfg.Backend.
// The local backend shares one engine between both stages, so the model is
// loaded once. Release both with Close.
func NewFromConfig(cfg *core.Config) (Generator, refiner.Refiner, error) {
	switch cfg.Backend {
	case core.BackendIdentity:
		r, err := refiner.NewFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return Placeholder{}, r, nil
	case core.BackendLocal:
		engine, err := refiner.OpenEngine(cfg)
		if err != nil {
			return nil, nil, err
		}
		r := refiner.NewExclusive(refiner.Timeout(refiner.NewLocalWithEngine(engine), cfg.Timeout))
		return &Local{engine: engine}, r, nil
	case core.BackendOpenAI:
		g, err := NewOpenAI(cfg)
		if err != nil {
			return nil, nil, err
		}
		r, err := refiner.NewFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		return g, r, nil
	default:
		return nil, nil, core.ErrUnknownBackend(cfg.Backend)
	}
}

// Close releases g if it implements io.Closer.
func Close(g Generator) error {
	if c, ok := g.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Placeholder paints a diagonal gradient between two colours drawn from the
// seed. It backs --dry-run and the identity backend.
type Placeholder struct{}

// Generate returns the gradient for p.Seed.
func (Placeholder) Generate(ctx context.Context, p BaseParams) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Width < 1 || p.Height < 1 {
		return nil, core.ErrInvalidParams("size", fmt.Sprintf("%dx%d must be positive", p.Width, p.Height))
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	from := color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
	to := color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}

	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	span := float64(p.Width + p.Height - 2)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			t := 0.0
			if span > 0 {
				t = float64(x+y) / span
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: lerp(from.R, to.R, t),
				G: lerp(from.G, to.G, t),
				B: lerp(from.B, to.B, t),
				A: 255,
			})
		}
	}
	return img, nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// txt2imgEngine is the part of sdruntime.Engine that Local drives.
type txt2imgEngine interface {
	Txt2Img(ctx context.Context, params sdruntime.Txt2ImgParams) (image.Image, error)
	Close() error
}

// Local composes images with the in-process txt2img engine.
type Local struct {
	engine txt2imgEngine
}

// Generate runs one txt2img pass.
func (l *Local) Generate(ctx context.Context, p BaseParams) (image.Image, error) {
	return l.engine.Txt2Img(ctx, sdruntime.Txt2ImgParams{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		CFGScale:       p.GuidanceScale,
		Seed:           int64(p.Seed & math.MaxInt64),
	})
}

// Close releases the engine. The texture stage shares it, and a second
// Close is a no-op.
func (l *Local) Close() error {
	return l.engine.Close()
}

// imageCreator is the part of openai.Client that OpenAI drives.
type imageCreator interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// OpenAI composes images through an OpenAI-compatible generation endpoint.
// The image is requested at the nearest supported square size and cropped
// to fill Width x Height. Steps, guidance and seed are not sent.
type OpenAI struct {
	client imageCreator
	model  string
}

// NewOpenAI builds a client from cfg.OpenAIAPIKey and cfg.OpenAIURL.
func NewOpenAI(cfg *core.Config) (*OpenAI, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, core.ErrMissingAuth("openai")
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIURL != "" {
		clientConfig.BaseURL = cfg.OpenAIURL
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = core.DefaultOpenAIModel
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func generationSize(side int) string {
	switch {
	case side <= 256:
		return openai.CreateImageSize256x256
	case side <= 512:
		return openai.CreateImageSize512x512
	default:
		return openai.CreateImageSize1024x1024
	}
}

// Generate requests one image and fits it to p.Width x p.Height.
func (o *OpenAI) Generate(ctx context.Context, p BaseParams) (image.Image, error) {
	prompt := p.Prompt
	if p.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Avoid: %s", p.Prompt, p.NegativePrompt)
	}

	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.model,
		N:              1,
		Size:           generationSize(max(p.Width, p.Height)),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation request: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image generation returned no image data")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image generation payload: %w", err)
	}
	generated, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return imaging.Fill(generated, p.Width, p.Height, imaging.Center, imaging.Lanczos), nil
}
