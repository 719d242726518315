package sdruntime

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// PNG magic bytes for file identification
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Image validation errors
var (
	ErrImageEmpty       = errors.New("sdruntime: image data is empty")
	ErrImageNotPNG      = errors.New("sdruntime: image data is not a valid PNG")
	ErrImageTooSmall    = errors.New("sdruntime: image data too small to be valid")
	ErrImageDecodeFail  = errors.New("sdruntime: failed to decode image")
	ErrImageInvalidSize = errors.New("sdruntime: invalid image dimensions")
)

// rgbChannels is the pixel layout exchanged with the engine.
const rgbChannels = 3

// IsPNG checks if the given data starts with PNG magic bytes.
func IsPNG(data []byte) bool {
	if len(data) < len(pngMagic) {
		return false
	}
	return bytes.Equal(data[:len(pngMagic)], pngMagic)
}

// ValidateImageData validates that data is a decodable PNG.
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return ErrImageEmpty
	}

	// 8 (signature) + 25 (IHDR) + 12 (IEND)
	if len(data) < 45 {
		return ErrImageTooSmall
	}

	if !IsPNG(data) {
		return ErrImageNotPNG
	}

	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}

	return nil
}

// RGBBytes flattens img into packed 8-bit RGB, row-major from its bounds'
// origin. This is the init-image layout the engine consumes.
func RGBBytes(img image.Image) []byte {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	out := make([]byte, 0, b.Dx()*b.Dy()*rgbChannels)
	for i := 0; i < len(nrgba.Pix); i += 4 {
		out = append(out, nrgba.Pix[i], nrgba.Pix[i+1], nrgba.Pix[i+2])
	}
	return out
}

// EncodeToPNG encodes packed RGB pixels (3 bytes per pixel) as an opaque PNG.
func EncodeToPNG(pixels []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrImageInvalidSize, width, height)
	}

	expectedLen := ImageDataSize(width, height)
	if len(pixels) != expectedLen {
		return nil, fmt.Errorf("%w: expected %d bytes for %dx%d RGB, got %d",
			ErrImageInvalidSize, expectedLen, width, height, len(pixels))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for src, dst := 0, 0; src < len(pixels); src, dst = src+rgbChannels, dst+4 {
		img.Pix[dst] = pixels[src]
		img.Pix[dst+1] = pixels[src+1]
		img.Pix[dst+2] = pixels[src+2]
		img.Pix[dst+3] = 0xff
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}

	return buf.Bytes(), nil
}

// DecodePNG decodes PNG bytes produced by the engine.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}
	return img, nil
}

// ImageDataSize returns the byte size of packed RGB data.
func ImageDataSize(width, height int) int {
	return width * height * rgbChannels
}
