package core

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptSet holds every prompt a run sends. Positive goes with each SR
// tile; Base and Refine drive the two text-to-image passes. Negative is
// shared by all of them.
type PromptSet struct {
	Positive string `yaml:"positive"`
	Negative string `yaml:"negative"`
	Base     string `yaml:"base"`
	Refine   string `yaml:"refine"`
}

// Built-in prompts. SR refinement leans on texture terms so the upscale adds
// detail rather than smoothing it out.
const (
	defaultPositivePrompt = "highly detailed, sharp focus, natural skin texture, visible pores, " +
		"fine fabric weave, film grain, raw photo, 8k"
	defaultNegativePrompt = "blurry, smooth, airbrushed, plastic, cartoon, 3d render, painting, " +
		"oversharpened, jpeg artifacts, low quality, text, watermark"
	defaultBasePrompt = "raw photo, candid portrait, natural window light, 35mm lens, " +
		"shallow depth of field, realistic proportions"
	defaultRefinePrompt = "highly detailed skin texture, visible pores, fine hair strands, " +
		"film grain, sharp focus"
)

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() PromptSet {
	return PromptSet{
		Positive: defaultPositivePrompt,
		Negative: defaultNegativePrompt,
		Base:     defaultBasePrompt,
		Refine:   defaultRefinePrompt,
	}
}

// LoadPromptFile reads a YAML prompt file of the form:
//
//	positive: >
//	  highly detailed, ...
//	negative: blurry, ...
//	base: raw photo, ...
//	refine: detailed skin texture, ...
//
// Missing keys fall back to the built-in prompts.
func LoadPromptFile(path string) (PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptSet{}, ErrPromptFile(path, err.Error())
	}

	var loaded PromptSet
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return PromptSet{}, ErrPromptFile(path, err.Error())
	}

	prompts := DefaultPrompts()
	if p := strings.TrimSpace(loaded.Positive); p != "" {
		prompts.Positive = p
	}
	if n := strings.TrimSpace(loaded.Negative); n != "" {
		prompts.Negative = n
	}
	if b := strings.TrimSpace(loaded.Base); b != "" {
		prompts.Base = b
	}
	if r := strings.TrimSpace(loaded.Refine); r != "" {
		prompts.Refine = r
	}
	return prompts, nil
}
