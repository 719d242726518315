// Package tiling lays out, masks, and recombines the overlapping tiles of a
// super-resolution canvas.
//
// The canvas is a square of TargetSize pixels covered by four TileSize
// squares anchored at its corners. Neighbouring tiles share a band of
// Overlap = 2*TileSize - TargetSize pixels. Each tile is weighted by a mask
// that fades to zero along its interior seams and stays at 1 along the
// canvas border, so that the weights of every pixel sum to 1.
package tiling

import (
	"fmt"
	"image"

	"go_superres/core"
)

// Position identifies one of the four fixed tiles.
type Position int

const (
	TopLeft Position = iota
	TopRight
	BottomLeft
	BottomRight
)

// positions is the fixed processing order.
var positions = [...]Position{TopLeft, TopRight, BottomLeft, BottomRight}

// String returns the short tile name used in logs and errors.
func (p Position) String() string {
	switch p {
	case TopLeft:
		return "TL"
	case TopRight:
		return "TR"
	case BottomLeft:
		return "BL"
	case BottomRight:
		return "BR"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// Seams records which tile edges are interior seams (true) and which lie on
// the canvas boundary (false).
type Seams struct {
	Top    bool
	Bottom bool
	Left   bool
	Right  bool
}

// Count returns the number of seam edges.
func (s Seams) Count() int {
	n := 0
	for _, edge := range [...]bool{s.Top, s.Bottom, s.Left, s.Right} {
		if edge {
			n++
		}
	}
	return n
}

// seamTable is indexed by Position. Each tile fades toward its two
// neighbours and stays opaque on the two canvas edges it touches.
var seamTable = [...]Seams{
	TopLeft:     {Bottom: true, Right: true},
	TopRight:    {Bottom: true, Left: true},
	BottomLeft:  {Top: true, Right: true},
	BottomRight: {Top: true, Left: true},
}

// Seams returns the seam flags for the position.
func (p Position) Seams() Seams {
	if p < 0 || int(p) >= len(seamTable) {
		return Seams{}
	}
	return seamTable[p]
}

// TileSpec is the placement of one tile on the canvas.
type TileSpec struct {
	Position Position
	X, Y     int // top-left corner on the canvas
	Size     int
	Seams    Seams
}

// Rect returns the canvas region covered by the tile.
func (t TileSpec) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Size, t.Y+t.Size)
}

// Geometry holds validated canvas and tile sizes.
type Geometry struct {
	TargetSize int
	TileSize   int
	Overlap    int
}

// NewGeometry validates the sizes for a 2x2 overlapping layout and derives
// the overlap. It returns a *core.ConfigError when TileSize < TargetSize <
// 2*TileSize does not hold.
func NewGeometry(targetSize, tileSize int) (Geometry, error) {
	if tileSize <= 0 || targetSize <= 0 {
		return Geometry{}, core.ErrInvalidGeometry(targetSize, tileSize, "sizes must be positive")
	}
	if targetSize <= tileSize {
		return Geometry{}, core.ErrInvalidGeometry(targetSize, tileSize, "target must be larger than the tile")
	}

	overlap := 2*tileSize - targetSize
	if overlap <= 0 {
		return Geometry{}, core.ErrInvalidGeometry(targetSize, tileSize,
			fmt.Sprintf("tiles leave a gap (overlap %d)", overlap))
	}
	if overlap > tileSize {
		return Geometry{}, core.ErrInvalidGeometry(targetSize, tileSize,
			fmt.Sprintf("overlap %d exceeds tile size", overlap))
	}

	return Geometry{
		TargetSize: targetSize,
		TileSize:   tileSize,
		Overlap:    overlap,
	}, nil
}

// Offset is the coordinate of the right and bottom tiles.
func (g Geometry) Offset() int {
	return g.TargetSize - g.TileSize
}

// Plan returns the four tiles in processing order.
func (g Geometry) Plan() []TileSpec {
	off := g.Offset()
	origins := [...]image.Point{
		TopLeft:     {0, 0},
		TopRight:    {off, 0},
		BottomLeft:  {0, off},
		BottomRight: {off, off},
	}

	specs := make([]TileSpec, 0, len(positions))
	for _, p := range positions {
		specs = append(specs, TileSpec{
			Position: p,
			X:        origins[p].X,
			Y:        origins[p].Y,
			Size:     g.TileSize,
			Seams:    p.Seams(),
		})
	}
	return specs
}
