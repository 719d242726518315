package refiner

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInference marks any failure of the refinement stage.
	ErrInference = errors.New("refiner: inference failed")

	// ErrDimensionMismatch is returned when a refiner changes the tile size.
	ErrDimensionMismatch = errors.New("refiner: output dimensions differ from input")
)

// InferenceError reports a refinement failure for one tile of one image.
// errors.Is(err, ErrInference) holds for every InferenceError.
type InferenceError struct {
	Image    string // Source image path, empty when unknown
	Position string // Tile position (TL, TR, BL, BR)
	Err      error
}

func (e *InferenceError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("inference failed for %s tile %s: %v", e.Image, e.Position, e.Err)
	}
	return fmt.Sprintf("inference failed for tile %s: %v", e.Position, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is makes every InferenceError match ErrInference.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

// CheckDimensions returns ErrDimensionMismatch unless out has the same
// width and height as in.
func CheckDimensions(in, out image.Image) error {
	if out == nil {
		return fmt.Errorf("%w: refiner returned no image", ErrDimensionMismatch)
	}
	ib, ob := in.Bounds(), out.Bounds()
	if ib.Dx() != ob.Dx() || ib.Dy() != ob.Dy() {
		return fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrDimensionMismatch, ob.Dx(), ob.Dy(), ib.Dx(), ib.Dy())
	}
	return nil
}
