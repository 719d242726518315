package refiner

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/sashabaranov/go-openai"

	"go_superres/core"
)

// imageEditor is the part of openai.Client that OpenAI drives.
type imageEditor interface {
	CreateEditImage(ctx context.Context, request openai.ImageEditRequest) (openai.ImageResponse, error)
}

// OpenAI refines tiles through an OpenAI-compatible image edit endpoint.
// The tile is sent as PNG at the nearest supported square size and the
// result is resized back to the tile size. Strength, steps and seed have
// no equivalent in the edit API and are not sent.
type OpenAI struct {
	client imageEditor
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

// editSize picks the smallest supported edit size that is not smaller
// than the tile, capped at 1024.
func editSize(tileSize int) (string, int) {
	switch {
	case tileSize <= 256:
		return openai.CreateImageSize256x256, 256
	case tileSize <= 512:
		return openai.CreateImageSize512x512, 512
	default:
		return openai.CreateImageSize1024x1024, 1024
	}
}

// Refine sends tile as an image edit and returns the edited tile.
func (o *OpenAI) Refine(ctx context.Context, tile image.Image, p Params) (image.Image, error) {
	b := tile.Bounds()
	size, side := editSize(max(b.Dx(), b.Dy()))

	upload, err := writeEditImage(imaging.Resize(tile, side, side, imaging.Lanczos))
	if err != nil {
		return nil, err
	}
	defer os.Remove(upload.Name())
	defer upload.Close()

	prompt := p.Prompt
	if p.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Avoid: %s", p.Prompt, p.NegativePrompt)
	}

	resp, err := o.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          upload,
		Prompt:         prompt,
		Model:          o.model,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image edit request: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image edit returned no image data")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image edit payload: %w", err)
	}
	edited, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode edited image: %w", err)
	}

	out := imaging.Resize(edited, b.Dx(), b.Dy(), imaging.Lanczos)
	if err := CheckDimensions(tile, out); err != nil {
		return nil, err
	}
	return out, nil
}

// writeEditImage stores img as a PNG temp file positioned at its start.
func writeEditImage(img image.Image) (*os.File, error) {
	f, err := os.CreateTemp("", "sr-tile-*.png")
	if err != nil {
		return nil, fmt.Errorf("create edit upload: %w", err)
	}
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("encode edit upload: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewind edit upload: %w", err)
	}
	return f, nil
}
