package sdruntime

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

// writeModel creates a placeholder model file; the stub bindings only
// check that it exists.
func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.safetensors")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing model file: %v", err)
	}
	return path
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func validParams() Img2ImgParams {
	return Img2ImgParams{
		InitImage: solidImage(64, 64, color.NRGBA{R: 10, G: 20, B: 30, A: 255}),
		Prompt:    "sharp natural texture",
		Strength:  0.35,
		Steps:     40,
		CFGScale:  5.0,
		Seed:      42,
	}
}

func validTxt2ImgParams() Txt2ImgParams {
	return Txt2ImgParams{
		Prompt:   "raw photo, natural light",
		Width:    64,
		Height:   64,
		Steps:    30,
		CFGScale: 7.0,
		Seed:     7,
	}
}
