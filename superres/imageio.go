package superres

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Upscale resamples img to a size x size square with a Lanczos filter.
// Non-square sources are stretched; the canvas is always square.
func Upscale(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, imaging.Lanczos)
}

// loadImage decodes a source image, applying any EXIF orientation, and
// drops its alpha channel.
func loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageReadError{Path: path, Err: err}
	}
	return opaque(img), nil
}

// opaque returns img with every alpha set to 255 and colour kept as stored.
// Resampling weights colour by alpha, so transparent pixels would otherwise
// bleed black into their neighbours.
func opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// SaveImage writes img to path, creating the parent directory. The format
// follows the extension. The image is encoded to a temporary file in the
// same directory and renamed into place, so a failed write leaves no
// partial output and keeps any previous file at path.
func SaveImage(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return &ImageWriteError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ImageWriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &ImageWriteError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	err = imaging.Encode(tmp, img, format, imaging.JPEGQuality(95))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0644)
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return &ImageWriteError{Path: path, Err: err}
	}
	return nil
}
