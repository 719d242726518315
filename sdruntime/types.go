package sdruntime

import (
	"fmt"
	"image"
)

// Img2ImgParams holds the inputs of one img2img call.
type Img2ImgParams struct {
	InitImage      image.Image // Required: the tile to refine
	Prompt         string      // Required: positive prompt
	NegativePrompt string      // Optional
	Strength       float64     // Noise strength in (0, 1]
	Steps          int         // Inference steps
	CFGScale       float64     // Classifier-free guidance scale
	Seed           int64       // -1 for random
}

// Parameter validation constants
const (
	MinImageSize      = 64
	MaxImageSize      = 2048
	ImageSizeMultiple = 8 // Latent space downsamples by 8

	MinSteps = 1
	MaxSteps = 150

	MinCFGScale = 1.0
	MaxCFGScale = 30.0

	MaxPromptLength = 1000
)

// Txt2ImgParams holds the inputs of one txt2img call.
type Txt2ImgParams struct {
	Prompt         string  // Required: positive prompt
	NegativePrompt string  // Optional
	Width          int     // Output width, a multiple of 8
	Height         int     // Output height, a multiple of 8
	Steps          int     // Inference steps
	CFGScale       float64 // Classifier-free guidance scale
	Seed           int64   // -1 for random
}

// ValidateParams validates img2img parameters.
// This is a pure function with no side effects.
func ValidateParams(p Img2ImgParams) error {
	if err := ValidatePrompt(p.Prompt); err != nil {
		return err
	}

	if p.InitImage == nil {
		return fmt.Errorf("%w: init image is required", ErrInvalidParams)
	}
	b := p.InitImage.Bounds()
	if err := validateDimension("width", b.Dx()); err != nil {
		return err
	}
	if err := validateDimension("height", b.Dy()); err != nil {
		return err
	}

	if p.Strength <= 0 || p.Strength > 1 {
		return fmt.Errorf("%w: strength %.2f must be in (0, 1]", ErrInvalidParams, p.Strength)
	}

	if err := validateSampling(p.Steps, p.CFGScale); err != nil {
		return err
	}

	if len(p.NegativePrompt) > MaxPromptLength {
		return fmt.Errorf("%w: negative prompt length %d exceeds maximum %d",
			ErrInvalidParams, len(p.NegativePrompt), MaxPromptLength)
	}

	return nil
}

// ValidateTxt2ImgParams validates txt2img parameters.
func ValidateTxt2ImgParams(p Txt2ImgParams) error {
	if err := ValidatePrompt(p.Prompt); err != nil {
		return err
	}
	if err := validateDimension("width", p.Width); err != nil {
		return err
	}
	if err := validateDimension("height", p.Height); err != nil {
		return err
	}
	if err := validateSampling(p.Steps, p.CFGScale); err != nil {
		return err
	}
	if len(p.NegativePrompt) > MaxPromptLength {
		return fmt.Errorf("%w: negative prompt length %d exceeds maximum %d",
			ErrInvalidParams, len(p.NegativePrompt), MaxPromptLength)
	}
	return nil
}

func validateSampling(steps int, cfg float64) error {
	if steps < MinSteps || steps > MaxSteps {
		return fmt.Errorf("%w: steps %d must be between %d and %d",
			ErrInvalidParams, steps, MinSteps, MaxSteps)
	}
	if cfg < MinCFGScale || cfg > MaxCFGScale {
		return fmt.Errorf("%w: CFGScale %.2f must be between %.1f and %.1f",
			ErrInvalidParams, cfg, MinCFGScale, MaxCFGScale)
	}
	return nil
}

func validateDimension(name string, v int) error {
	if v < MinImageSize || v > MaxImageSize {
		return fmt.Errorf("%w: %s %d must be between %d and %d",
			ErrInvalidParams, name, v, MinImageSize, MaxImageSize)
	}
	if v%ImageSizeMultiple != 0 {
		return fmt.Errorf("%w: %s %d must be divisible by %d",
			ErrInvalidParams, name, v, ImageSizeMultiple)
	}
	return nil
}
