package sdruntime

import "errors"

// Sentinel errors for engine operations.
var (
	// Model-related errors
	ErrModelNotFound   = errors.New("sdruntime: model file not found")
	ErrModelLoadFailed = errors.New("sdruntime: failed to load model")
	ErrModelCorrupted  = errors.New("sdruntime: model file is corrupted or invalid")

	// Generation errors
	ErrGenerationFailed  = errors.New("sdruntime: generation failed")
	ErrGenerationTimeout = errors.New("sdruntime: generation timed out")
	ErrOutOfVRAM         = errors.New("sdruntime: out of VRAM")
	ErrEngineNotLinked   = errors.New("sdruntime: no stable-diffusion engine linked")

	// Input validation errors
	ErrInvalidPrompt = errors.New("sdruntime: invalid prompt")
	ErrInvalidParams = errors.New("sdruntime: invalid generation parameters")

	// Context pool errors
	ErrContextPoolClosed = errors.New("sdruntime: context pool is closed")
	ErrAcquireTimeout    = errors.New("sdruntime: timeout acquiring context from pool")
)
