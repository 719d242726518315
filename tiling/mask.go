package tiling

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"go_superres/core"
)

// Mask is a per-tile blend weight matrix with values in [0,1].
// Rows are indexed by y and columns by x.
type Mask struct {
	size    int
	weights *mat.Dense
}

// BuildMask builds the blend mask for a tile with the given seams.
//
// Every weight starts at 1. A leading seam (top or left) ramps 0 -> 1 across
// the first overlap samples, a trailing seam (bottom or right) ramps 1 -> 0
// across the last overlap samples. The mask is the outer product of the
// vertical and horizontal profiles, so a corner between two seams is
// attenuated by both.
func BuildMask(tileSize, overlap int, seams Seams) (*Mask, error) {
	if tileSize <= 0 {
		return nil, core.ErrInvalidGeometry(0, tileSize, "tile size must be positive")
	}
	if overlap < 1 || overlap > tileSize {
		return nil, core.ErrInvalidGeometry(0, tileSize,
			fmt.Sprintf("overlap %d must be between 1 and the tile size", overlap))
	}

	rows := edgeProfile(tileSize, overlap, seams.Top, seams.Bottom)
	cols := edgeProfile(tileSize, overlap, seams.Left, seams.Right)

	weights := mat.NewDense(tileSize, tileSize, nil)
	weights.Outer(1, mat.NewVecDense(tileSize, rows), mat.NewVecDense(tileSize, cols))

	return &Mask{size: tileSize, weights: weights}, nil
}

// edgeProfile returns the 1-D weights along one axis.
func edgeProfile(size, overlap int, leading, trailing bool) []float64 {
	p := make([]float64, size)
	for i := range p {
		p[i] = 1
	}
	if leading {
		for i := 0; i < overlap; i++ {
			p[i] *= fadeIn(i, overlap)
		}
	}
	if trailing {
		start := size - overlap
		for i := 0; i < overlap; i++ {
			p[start+i] *= fadeOut(i, overlap)
		}
	}
	return p
}

// fadeIn is the weight at index i of an n-sample band entered from the
// canvas edge: 0 at the edge, 1 at the innermost sample.
// A single-sample band is split evenly.
func fadeIn(i, n int) float64 {
	if n == 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

// fadeOut mirrors fadeIn so that fadeIn(i, n) + fadeOut(i, n) == 1.
func fadeOut(i, n int) float64 {
	if n == 1 {
		return 0.5
	}
	return float64(n-1-i) / float64(n-1)
}

// Size returns the side length of the mask.
func (m *Mask) Size() int {
	return m.size
}

// At returns the weight at tile coordinate (x, y).
func (m *Mask) At(x, y int) float64 {
	return m.weights.At(y, x)
}

// Row returns the weights of row y. The slice aliases the mask and must not
// be modified.
func (m *Mask) Row(y int) []float64 {
	return m.weights.RawRowView(y)
}
