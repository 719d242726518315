package sdruntime

// SDContext is an opaque handle to a loaded engine context.
// The linked implementation keys its native sd_ctx_t by id; the stub
// tracks the id only.
type SDContext struct {
	id        uint64
	modelPath string
	valid     bool
}

// isValid reports whether this context is still usable.
func (c *SDContext) isValid() bool {
	if c == nil {
		return false
	}
	return c.valid
}

// GenerateResult holds the output of one img2img or txt2img call.
type GenerateResult struct {
	// ImageData contains PNG bytes
	ImageData []byte
	Width     int
	Height    int
	// Seed actually used
	Seed int64
}

// EngineLinked reports whether this binary was built against
// stable-diffusion.cpp (-tags sd with cgo). Without it every generation
// fails with ErrEngineNotLinked.
func EngineLinked() bool {
	return engineLinked
}

// LoadModel loads a model file and returns a context for generation.
// The returned context must be released with FreeContext.
//
// Errors: ErrModelNotFound when modelPath does not exist,
// ErrModelLoadFailed when the engine rejects it.
func LoadModel(modelPath string) (*SDContext, error) {
	return loadModelImpl(modelPath)
}

// Img2Img refines params.InitImage on ctx. The init image is handed to the
// engine as packed RGB; the result is PNG bytes of the same dimensions.
//
// Errors: ErrInvalidParams, ErrGenerationFailed, ErrOutOfVRAM,
// ErrEngineNotLinked.
func Img2Img(ctx *SDContext, params Img2ImgParams) (*GenerateResult, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	b := params.InitImage.Bounds()
	return img2imgImpl(ctx, RGBBytes(params.InitImage), b.Dx(), b.Dy(), params)
}

// Txt2Img generates a params.Width x params.Height image from the prompt.
//
// Errors: ErrInvalidParams, ErrGenerationFailed, ErrOutOfVRAM,
// ErrEngineNotLinked.
func Txt2Img(ctx *SDContext, params Txt2ImgParams) (*GenerateResult, error) {
	if err := ValidateTxt2ImgParams(params); err != nil {
		return nil, err
	}
	return txt2imgImpl(ctx, params)
}

// FreeContext releases ctx. Nil or already-freed contexts are a no-op.
func FreeContext(ctx *SDContext) {
	freeContextImpl(ctx)
}

// GetBackendInfo describes the linked compute backend.
func GetBackendInfo() string {
	return getBackendInfoImpl()
}
