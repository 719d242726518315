package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values for the SR job.
const (
	DefaultTargetSize    = 1920
	DefaultTileSize      = 1024
	DefaultStrength      = 0.35
	DefaultGuidanceScale = 5.0
	DefaultSteps         = 40
	DefaultSeed          = 42
	DefaultOutputDir     = "output/sr"
	DefaultBackend       = "local"
	DefaultWorkers       = 1
	DefaultTimeout       = 600 // seconds, per tile
	DefaultOpenAIModel   = "dall-e-2"
	DefaultHistoryPath   = "data/sr_history.db"
	DefaultLogFile       = "sr.log"
)

// Defaults for the two-pass text-to-image mode.
const (
	DefaultT2ICount          = 1
	DefaultT2IWidth          = 1024
	DefaultT2IHeight         = 1024
	DefaultT2IBaseSteps      = 30
	DefaultT2IBaseGuidance   = 7.0
	DefaultT2IRefineSteps    = 50
	DefaultT2IRefineGuidance = 4.0
	DefaultT2IRefineStrength = 0.4
	DefaultT2IOutputDir      = "output/txt2img"
	DefaultT2IFilePrefix     = "t2i"
)

// Refiner backend names accepted in SR_BACKEND.
const (
	BackendIdentity = "identity"
	BackendLocal    = "local"
	BackendOpenAI   = "openai"
)

// Config holds all configuration values for one SR run.
// It is built once at startup and passed down explicitly; nothing reads
// environment variables after ReadConfig returns.
type Config struct {
	// Geometry
	TargetSize int // Side of the upscaled square canvas in pixels
	TileSize   int // Side of each of the four refinement tiles

	// Per-tile refinement parameters
	Strength      float64 // img2img denoising strength (0-1]
	GuidanceScale float64 // CFG scale
	Steps         int     // Inference steps
	Seed          uint64  // Shared by every tile of a job
	Prompts       PromptSet

	// Runtime
	Backend   string        // identity, local, or openai
	Workers   int           // Images processed in parallel (default 1)
	Timeout   time.Duration // Upper bound for one refinement call (0 = none)
	OutputDir string        // Where SR_<name> files are written

	// Local engine
	ModelPath   string
	ModelSHA256 string // Optional expected checksum of ModelPath

	// Remote engine
	OpenAIAPIKey string
	OpenAIURL    string
	OpenAIModel  string

	// Text-to-image
	T2I T2IConfig

	// Ambient
	HistoryPath string // SQLite job history; empty disables it
	LogFile     string
	DevMode     bool
}

// T2IConfig drives `sr t2i`: a txt2img structure pass followed by an
// img2img texture pass over the whole image.
type T2IConfig struct {
	Count          int // Images per run
	Width          int
	Height         int
	BaseSteps      int
	BaseGuidance   float64
	RefineSteps    int
	RefineGuidance float64
	RefineStrength float64
	OutputDir      string
	FilePrefix     string // Outputs are <prefix>_<NN>_final.png
}

// ReadConfig reads the configuration from environment variables without
// validating it, so callers can apply command-line overrides first and then
// call Validate or ValidateT2I. Call godotenv.Load() beforehand to pick up
// a .env file.
//
// Prompts come from SR_PROMPT_FILE (YAML) when set, otherwise the built-in
// defaults. SR_PROMPT, SR_NEGATIVE_PROMPT, SR_T2I_PROMPT and
// SR_T2I_REFINE_PROMPT override individual entries.
func ReadConfig() (*Config, error) {
	prompts := DefaultPrompts()
	if path := GetEnvOrDefault("SR_PROMPT_FILE", ""); path != "" {
		loaded, err := LoadPromptFile(path)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}
	prompts.Positive = GetEnvOrDefault("SR_PROMPT", prompts.Positive)
	prompts.Negative = GetEnvOrDefault("SR_NEGATIVE_PROMPT", prompts.Negative)
	prompts.Base = GetEnvOrDefault("SR_T2I_PROMPT", prompts.Base)
	prompts.Refine = GetEnvOrDefault("SR_T2I_REFINE_PROMPT", prompts.Refine)

	return &Config{
		TargetSize:    ParseIntEnv("SR_TARGET_SIZE", DefaultTargetSize),
		TileSize:      ParseIntEnv("SR_TILE_SIZE", DefaultTileSize),
		Strength:      ParseFloat64Env("SR_STRENGTH", DefaultStrength),
		GuidanceScale: ParseFloat64Env("SR_GUIDANCE_SCALE", DefaultGuidanceScale),
		Steps:         ParseIntEnv("SR_INFERENCE_STEPS", DefaultSteps),
		Seed:          ParseUint64Env("SR_SEED", DefaultSeed),
		Prompts:       prompts,

		Backend:   strings.ToLower(GetEnvOrDefault("SR_BACKEND", DefaultBackend)),
		Workers:   ParseIntEnv("SR_WORKERS", DefaultWorkers),
		Timeout:   ParseDurationEnv("SR_TIMEOUT_SECONDS", DefaultTimeout),
		OutputDir: GetEnvOrDefault("SR_OUTPUT_DIR", DefaultOutputDir),

		ModelPath:   GetEnvOrDefault("SR_MODEL_PATH", filepath.Join("mod", "model.safetensors")),
		ModelSHA256: GetEnvOrDefault("SR_MODEL_SHA256", ""),

		OpenAIAPIKey: GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIURL:    GetEnvOrDefault("SR_OPENAI_URL", "https://api.openai.com/v1"),
		OpenAIModel:  GetEnvOrDefault("SR_OPENAI_MODEL", DefaultOpenAIModel),

		T2I: T2IConfig{
			Count:          ParseIntEnv("SR_T2I_NUMS", DefaultT2ICount),
			Width:          ParseIntEnv("SR_T2I_WIDTH", DefaultT2IWidth),
			Height:         ParseIntEnv("SR_T2I_HEIGHT", DefaultT2IHeight),
			BaseSteps:      ParseIntEnv("SR_T2I_BASE_STEPS", DefaultT2IBaseSteps),
			BaseGuidance:   ParseFloat64Env("SR_T2I_BASE_GUIDANCE", DefaultT2IBaseGuidance),
			RefineSteps:    ParseIntEnv("SR_T2I_REFINE_STEPS", DefaultT2IRefineSteps),
			RefineGuidance: ParseFloat64Env("SR_T2I_REFINE_GUIDANCE", DefaultT2IRefineGuidance),
			RefineStrength: ParseFloat64Env("SR_T2I_REFINE_STRENGTH", DefaultT2IRefineStrength),
			OutputDir:      GetEnvOrDefault("SR_T2I_OUTPUT_DIR", DefaultT2IOutputDir),
			FilePrefix:     GetEnvOrDefault("SR_T2I_PREFIX", DefaultT2IFilePrefix),
		},

		HistoryPath: GetEnvOrDefault("SR_HISTORY_DB", DefaultHistoryPath),
		LogFile:     GetEnvOrDefault("SR_LOG_FILE", DefaultLogFile),
		DevMode:     ParseBoolEnv("DEV_MODE", false),
	}, nil
}

// Validate checks the non-geometry fields used by super-resolution.
// Geometry is validated by tiling.NewGeometry so the rules live next to the layout.
func (c *Config) Validate() error {
	if c.Strength <= 0 || c.Strength > 1 {
		return ErrInvalidParams("SR_STRENGTH", fmt.Sprintf("%.2f must be in (0, 1]", c.Strength))
	}
	if c.GuidanceScale < 1 || c.GuidanceScale > 30 {
		return ErrInvalidParams("SR_GUIDANCE_SCALE", fmt.Sprintf("%.2f must be between 1.0 and 30.0", c.GuidanceScale))
	}
	if c.Steps < 1 || c.Steps > 150 {
		return ErrInvalidParams("SR_INFERENCE_STEPS", fmt.Sprintf("%d must be between 1 and 150", c.Steps))
	}
	if c.Workers < 1 {
		return ErrInvalidParams("SR_WORKERS", fmt.Sprintf("%d must be at least 1", c.Workers))
	}
	if strings.TrimSpace(c.Prompts.Positive) == "" {
		return ErrMissingConfig("SR_PROMPT")
	}
	if c.OutputDir == "" {
		return ErrMissingConfig("SR_OUTPUT_DIR")
	}
	return c.validateBackend()
}

// ValidateT2I checks the settings used by the text-to-image mode.
func (c *Config) ValidateT2I() error {
	t := c.T2I
	if t.Count < 1 {
		return ErrInvalidParams("SR_T2I_NUMS", fmt.Sprintf("%d must be at least 1", t.Count))
	}
	for _, dim := range []struct {
		name string
		v    int
	}{{"SR_T2I_WIDTH", t.Width}, {"SR_T2I_HEIGHT", t.Height}} {
		if dim.v < 64 || dim.v > 2048 || dim.v%8 != 0 {
			return ErrInvalidParams(dim.name, fmt.Sprintf("%d must be a multiple of 8 between 64 and 2048", dim.v))
		}
	}
	if t.BaseSteps < 1 || t.BaseSteps > 150 {
		return ErrInvalidParams("SR_T2I_BASE_STEPS", fmt.Sprintf("%d must be between 1 and 150", t.BaseSteps))
	}
	if t.RefineSteps < 1 || t.RefineSteps > 150 {
		return ErrInvalidParams("SR_T2I_REFINE_STEPS", fmt.Sprintf("%d must be between 1 and 150", t.RefineSteps))
	}
	if t.BaseGuidance < 1 || t.BaseGuidance > 30 {
		return ErrInvalidParams("SR_T2I_BASE_GUIDANCE", fmt.Sprintf("%.2f must be between 1.0 and 30.0", t.BaseGuidance))
	}
	if t.RefineGuidance < 1 || t.RefineGuidance > 30 {
		return ErrInvalidParams("SR_T2I_REFINE_GUIDANCE", fmt.Sprintf("%.2f must be between 1.0 and 30.0", t.RefineGuidance))
	}
	if t.RefineStrength <= 0 || t.RefineStrength > 1 {
		return ErrInvalidParams("SR_T2I_REFINE_STRENGTH", fmt.Sprintf("%.2f must be in (0, 1]", t.RefineStrength))
	}
	if strings.TrimSpace(c.Prompts.Base) == "" {
		return ErrMissingConfig("SR_T2I_PROMPT")
	}
	if strings.TrimSpace(c.Prompts.Refine) == "" {
		return ErrMissingConfig("SR_T2I_REFINE_PROMPT")
	}
	if t.OutputDir == "" {
		return ErrMissingConfig("SR_T2I_OUTPUT_DIR")
	}
	if t.FilePrefix == "" || strings.ContainsAny(t.FilePrefix, `/\`) {
		return ErrInvalidParams("SR_T2I_PREFIX", fmt.Sprintf("%q must be a plain file name prefix", t.FilePrefix))
	}
	return c.validateBackend()
}

func (c *Config) validateBackend() error {
	switch c.Backend {
	case BackendIdentity:
	case BackendLocal:
		if c.ModelPath == "" {
			return ErrMissingConfig("SR_MODEL_PATH")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrMissingAuth("openai")
		}
	default:
		return ErrUnknownBackend(c.Backend)
	}

	return nil
}
