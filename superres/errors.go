package superres

import (
	"errors"
	"fmt"
)

var (
	// ErrImageRead marks a source image that cannot be opened or decoded.
	ErrImageRead = errors.New("superres: cannot read source image")

	// ErrImageWrite marks an output image that cannot be written.
	ErrImageWrite = errors.New("superres: cannot write output image")

	// ErrNoInput is returned by Run when no target image resolves.
	ErrNoInput = errors.New("superres: no input images")
)

// ImageReadError reports a source image that cannot be decoded.
// The image is skipped; the batch continues.
type ImageReadError struct {
	Path string
	Err  error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("cannot read image %s: %v", e.Path, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }

// Is makes every ImageReadError match ErrImageRead.
func (e *ImageReadError) Is(target error) bool { return target == ErrImageRead }

// ImageWriteError reports an output file that cannot be written.
type ImageWriteError struct {
	Path string
	Err  error
}

func (e *ImageWriteError) Error() string {
	return fmt.Sprintf("cannot write image %s: %v", e.Path, e.Err)
}

func (e *ImageWriteError) Unwrap() error { return e.Err }

// Is makes every ImageWriteError match ErrImageWrite.
func (e *ImageWriteError) Is(target error) bool { return target == ErrImageWrite }

// NoInputError reports that neither the file nor the folder argument
// resolved to a target image. Cause holds discovery problems, if any.
type NoInputError struct {
	File   string
	Folder string
	Cause  error
}

func (e *NoInputError) Error() string {
	msg := fmt.Sprintf("no images to process (file=%q, folder=%q)", e.File, e.Folder)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NoInputError) Unwrap() error { return e.Cause }

// Is makes every NoInputError match ErrNoInput.
func (e *NoInputError) Is(target error) bool { return target == ErrNoInput }
