package tiling

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/draw"
)

// Epsilon is the weight floor applied during normalization.
const Epsilon = 1e-5

// channels is the number of color channels accumulated (RGB).
const channels = 3

// Compositor errors
var (
	ErrTileSize   = errors.New("tiling: tile size does not match its spec")
	ErrTileBounds = errors.New("tiling: tile lies outside the canvas")
	ErrMaskSize   = errors.New("tiling: mask size does not match the tile")
)

// Compositor accumulates weighted tiles onto a square float canvas and
// normalizes the result.
//
// Accumulate is pure summation, so tiles may be added in any order and from
// several goroutines. All Accumulate calls must return before Normalize.
type Compositor struct {
	mu     sync.Mutex
	size   int
	color  []float64 // size*size*channels, row-major RGB
	weight []float64 // size*size
}

// NewCompositor allocates zero-filled color and weight canvases.
func NewCompositor(size int) *Compositor {
	return &Compositor{
		size:   size,
		color:  make([]float64, size*size*channels),
		weight: make([]float64, size*size),
	}
}

// Size returns the canvas side length.
func (c *Compositor) Size() int {
	return c.size
}

// Accumulate adds tile*mask into the color canvas and mask into the weight
// canvas over the region described by spec.
func (c *Compositor) Accumulate(spec TileSpec, tile image.Image, mask *Mask) error {
	b := tile.Bounds()
	if b.Dx() != spec.Size || b.Dy() != spec.Size {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d",
			ErrTileSize, spec.Position, b.Dx(), b.Dy(), spec.Size, spec.Size)
	}
	if mask.Size() != spec.Size {
		return fmt.Errorf("%w: mask %d, tile %d", ErrMaskSize, mask.Size(), spec.Size)
	}
	if !spec.Rect().In(image.Rect(0, 0, c.size, c.size)) {
		return fmt.Errorf("%w: %s at %v on a %d canvas", ErrTileBounds, spec.Position, spec.Rect(), c.size)
	}

	px := toNRGBA(tile)

	c.mu.Lock()
	defer c.mu.Unlock()

	for y := 0; y < spec.Size; y++ {
		row := mask.Row(y)
		src := px.Pix[y*px.Stride:]
		base := (spec.Y+y)*c.size + spec.X
		for x := 0; x < spec.Size; x++ {
			w := row[x]
			i := base + x
			s := x * 4
			c.color[i*channels] += float64(src[s]) * w
			c.color[i*channels+1] += float64(src[s+1]) * w
			c.color[i*channels+2] += float64(src[s+2]) * w
			c.weight[i] += w
		}
	}
	return nil
}

// Normalize divides the color canvas by max(weight, Epsilon), clamps to
// [0,255] and returns the quantized opaque image. The normalized values are
// written back and the weights reset to 1, so calling Normalize again
// returns the same image.
func (c *Compositor) Normalize() *image.NRGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewNRGBA(image.Rect(0, 0, c.size, c.size))
	for i, w := range c.weight {
		w = math.Max(w, Epsilon)
		o := i * 4
		for ch := 0; ch < channels; ch++ {
			v := clamp255(c.color[i*channels+ch] / w)
			c.color[i*channels+ch] = v
			out.Pix[o+ch] = uint8(math.Round(v))
		}
		out.Pix[o+3] = 0xff
		c.weight[i] = 1
	}
	return out
}

// Weight returns the accumulated weight at canvas coordinate (x, y).
func (c *Compositor) Weight(x, y int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight[y*c.size+x]
}

func clamp255(v float64) float64 {
	switch {
	case v < 0, math.IsNaN(v):
		return 0
	case v > 255:
		return 255
	default:
		return v
	}
}

// toNRGBA returns the tile as a zero-origin NRGBA image, converting only
// when needed. Alpha is ignored by the compositor.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
