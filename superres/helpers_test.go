package superres

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"go_superres/core"
	"go_superres/history"
)

// testConfig returns a small valid configuration writing into dir.
func testConfig(dir string) *core.Config {
	return &core.Config{
		TargetSize:    40,
		TileSize:      24,
		Strength:      0.35,
		GuidanceScale: 5,
		Steps:         10,
		Seed:          42,
		Prompts:       core.PromptSet{Positive: "sharp detailed photo", Negative: "blurry"},
		Backend:       core.BackendIdentity,
		Workers:       1,
		OutputDir:     dir,
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// writeImage saves a solid image at dir/name and returns its path.
func writeImage(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(solidImage(w, h, c), path); err != nil {
		t.Fatalf("Save(%s) error = %v", name, err)
	}
	return path
}

func touch(t *testing.T, dir, name string, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

// fakeRecorder keeps entries in memory.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeRecorder) Record(_ context.Context, e history.Entry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func (f *fakeRecorder) byStatus() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := make(map[string]int)
	for _, e := range f.entries {
		m[e.Status]++
	}
	return m
}
