//go:build sd && cgo

// Bindings to stable-diffusion.cpp.
//
// Build with:
//
//	CGO_CFLAGS="-I${SD_CPP_PATH}/include" \
//	CGO_LDFLAGS="-L${SD_CPP_PATH}/build/bin -Wl,-rpath,${SD_CPP_PATH}/build/bin" \
//	go build -tags sd

package sdruntime

/*
#cgo LDFLAGS: -lstable-diffusion
#include <stdlib.h>
#include <stdint.h>
#include <stable-diffusion.h>

static sd_ctx_t* sr_new_ctx(const char* model_path, int n_threads) {
	sd_ctx_params_t p;
	sd_ctx_params_init(&p);
	p.model_path = model_path;
	p.n_threads = n_threads;
	p.vae_decode_only = false;
	return new_sd_ctx(&p);
}

// init_rgb == NULL selects txt2img.
static sd_image_t* sr_generate(sd_ctx_t* ctx, const char* prompt, const char* negative,
                               uint8_t* init_rgb, int width, int height,
                               float strength, int steps, float cfg, int64_t seed) {
	sd_img_gen_params_t p;
	sd_img_gen_params_init(&p);
	p.prompt = prompt;
	p.negative_prompt = negative;
	p.width = width;
	p.height = height;
	p.sample_params.sample_steps = steps;
	p.sample_params.guidance.txt_cfg = cfg;
	p.seed = seed;
	p.batch_count = 1;
	if (init_rgb != NULL) {
		p.init_image.width = (uint32_t)width;
		p.init_image.height = (uint32_t)height;
		p.init_image.channel = 3;
		p.init_image.data = init_rgb;
		p.strength = strength;
	}
	return generate_image(ctx, &p);
}

static void sr_free_image(sd_image_t* img) {
	if (img == NULL) {
		return;
	}
	free(img->data);
	free(img);
}
*/
import "C"

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

const engineLinked = true

var (
	contextCounter uint64

	// nativeContexts maps SDContext.id to its *C.sd_ctx_t.
	nativeContexts sync.Map
)

func loadModelImpl(modelPath string) (*SDContext, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	} else if err != nil {
		return nil, fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	cCtx := C.sr_new_ctx(cPath, C.int(runtime.NumCPU()))
	if cCtx == nil {
		return nil, fmt.Errorf("%w: engine rejected %s", ErrModelLoadFailed, modelPath)
	}

	id := atomic.AddUint64(&contextCounter, 1)
	nativeContexts.Store(id, cCtx)
	return &SDContext{id: id, modelPath: modelPath, valid: true}, nil
}

func nativeContext(ctx *SDContext) (*C.sd_ctx_t, error) {
	if ctx == nil || !ctx.valid {
		return nil, fmt.Errorf("%w: context is nil or invalid", ErrGenerationFailed)
	}
	v, ok := nativeContexts.Load(ctx.id)
	if !ok {
		return nil, fmt.Errorf("%w: no native context for id %d", ErrGenerationFailed, ctx.id)
	}
	return v.(*C.sd_ctx_t), nil
}

func img2imgImpl(ctx *SDContext, rgb []byte, width, height int, params Img2ImgParams) (*GenerateResult, error) {
	cCtx, err := nativeContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(rgb) != ImageDataSize(width, height) {
		return nil, fmt.Errorf("%w: init image has %d bytes, want %d",
			ErrGenerationFailed, len(rgb), ImageDataSize(width, height))
	}

	// The engine keeps no reference to the init image after returning.
	initRGB := C.CBytes(rgb)
	defer C.free(initRGB)

	return generate(cCtx, params.Prompt, params.NegativePrompt, (*C.uint8_t)(initRGB),
		width, height, params.Strength, params.Steps, params.CFGScale, params.Seed)
}

func txt2imgImpl(ctx *SDContext, params Txt2ImgParams) (*GenerateResult, error) {
	cCtx, err := nativeContext(ctx)
	if err != nil {
		return nil, err
	}
	return generate(cCtx, params.Prompt, params.NegativePrompt, nil,
		params.Width, params.Height, 0, params.Steps, params.CFGScale, params.Seed)
}

func generate(cCtx *C.sd_ctx_t, prompt, negative string, initRGB *C.uint8_t,
	width, height int, strength float64, steps int, cfg float64, seed int64) (*GenerateResult, error) {
	cPrompt := C.CString(prompt)
	defer C.free(unsafe.Pointer(cPrompt))
	cNegative := C.CString(negative)
	defer C.free(unsafe.Pointer(cNegative))

	img := C.sr_generate(cCtx, cPrompt, cNegative, initRGB,
		C.int(width), C.int(height), C.float(strength), C.int(steps), C.float(cfg), C.int64_t(seed))
	if img == nil {
		return nil, fmt.Errorf("%w: engine returned no image", ErrGenerationFailed)
	}
	defer C.sr_free_image(img)
	if img.data == nil {
		return nil, fmt.Errorf("%w: engine returned empty pixel data", ErrGenerationFailed)
	}

	outW, outH := int(img.width), int(img.height)
	if int(img.channel) != rgbChannels {
		return nil, fmt.Errorf("%w: engine returned %d channels, want %d",
			ErrGenerationFailed, int(img.channel), rgbChannels)
	}

	pixels := C.GoBytes(unsafe.Pointer(img.data), C.int(ImageDataSize(outW, outH)))
	data, err := EncodeToPNG(pixels, outW, outH)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return &GenerateResult{ImageData: data, Width: outW, Height: outH, Seed: seed}, nil
}

func freeContextImpl(ctx *SDContext) {
	if ctx == nil {
		return
	}
	if v, ok := nativeContexts.LoadAndDelete(ctx.id); ok {
		C.free_sd_ctx(v.(*C.sd_ctx_t))
	}
	ctx.valid = false
}

func getBackendInfoImpl() string {
	return "stable-diffusion.cpp: " + C.GoString(C.sd_get_system_info())
}
