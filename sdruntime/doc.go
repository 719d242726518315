// Package sdruntime is the in-process boundary to stable-diffusion.cpp:
// img2img for tile refinement and txt2img for generated base images.
//
// The package is layered the same way throughout:
//
//   - Pure helpers: ValidateParams, ValidateTxt2ImgParams, ValidatePrompt,
//     ResolveSeed, RGBBytes, EncodeToPNG, ValidateImageData.
//   - Bindings: LoadModel, Img2Img, Txt2Img, FreeContext, GetBackendInfo.
//     Built with -tags sd and cgo they call stable-diffusion.cpp
//     (bindings_sd.go). Otherwise a stub loads nothing and every
//     generation fails with ErrEngineNotLinked; EngineLinked reports which.
//   - ContextPool: lazily created contexts, bounded by the pool size,
//     acquired with context deadlines.
//   - Engine: verifies the model checksum, owns the pool and turns one
//     init image into one refined image of the same size, or a prompt
//     into a new image.
//
// # Usage
//
//	engine, err := sdruntime.NewEngine(1, "mod/model.safetensors")
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	out, err := engine.Img2Img(ctx, sdruntime.Img2ImgParams{
//	    InitImage: tile,
//	    Prompt:    "sharp natural texture",
//	    Strength:  0.35,
//	    Steps:     40,
//	    CFGScale:  5.0,
//	    Seed:      42,
//	})
//
// # Thread Safety
//
// Engine and ContextPool are safe for concurrent use. Each context runs
// one generation at a time; the pool size bounds concurrent generations.
package sdruntime
