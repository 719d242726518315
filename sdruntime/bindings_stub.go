//go:build !sd || !cgo

// Stub bindings for builds without stable-diffusion.cpp.
// Build with -tags sd and CGO_ENABLED=1 to link the real engine.

package sdruntime

import (
	"fmt"
	"os"
	"sync/atomic"
)

const engineLinked = false

// stubContextCounter generates unique IDs for stub contexts
var stubContextCounter uint64

// loadModelImpl checks that the model file exists but loads nothing.
func loadModelImpl(modelPath string) (*SDContext, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	} else if err != nil {
		return nil, fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	return &SDContext{
		id:        atomic.AddUint64(&stubContextCounter, 1),
		modelPath: modelPath,
		valid:     true,
	}, nil
}

// img2imgImpl validates its inputs and then reports that no engine is linked.
func img2imgImpl(ctx *SDContext, rgb []byte, width, height int, params Img2ImgParams) (*GenerateResult, error) {
	if ctx == nil || !ctx.valid {
		return nil, fmt.Errorf("%w: context is nil or invalid", ErrGenerationFailed)
	}
	if len(rgb) != ImageDataSize(width, height) {
		return nil, fmt.Errorf("%w: init image has %d bytes, want %d",
			ErrGenerationFailed, len(rgb), ImageDataSize(width, height))
	}
	return nil, fmt.Errorf("%w: rebuild with -tags sd", ErrEngineNotLinked)
}

func txt2imgImpl(ctx *SDContext, params Txt2ImgParams) (*GenerateResult, error) {
	if ctx == nil || !ctx.valid {
		return nil, fmt.Errorf("%w: context is nil or invalid", ErrGenerationFailed)
	}
	return nil, fmt.Errorf("%w: rebuild with -tags sd", ErrEngineNotLinked)
}

func freeContextImpl(ctx *SDContext) {
	if ctx == nil {
		return
	}
	ctx.valid = false
}

func getBackendInfoImpl() string {
	return "stub (no stable-diffusion engine linked)"
}
