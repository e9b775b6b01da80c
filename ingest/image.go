package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/lookatitude/videogen/core"
)

const (
	// maxImageBytes is spec §6.1's 10 MiB upload cap for the image field.
	maxImageBytes = 10 << 20

	// maxPixelsPerByte mirrors backgroundremover's decompression-bomb ratio
	// (spec §4.3.2) so an oversized-dimensions upload is rejected at the
	// submission gate rather than after a GPU ticket has already been spent
	// decoding it.
	maxPixelsPerByte = 1000
)

// ImageValidator rejects image uploads that are too large, not a recognized
// format, or a decompression bomb (pixel-count/file-size ratio too high). It
// uses image.DecodeConfig rather than a full Decode: the submission gate
// only needs dimensions, and decoding the full pixel grid for every upload
// before the job even exists would waste CPU on uploads this check rejects.
type ImageValidator struct{}

// NewImageValidator creates an ImageValidator.
func NewImageValidator() *ImageValidator { return &ImageValidator{} }

// Name returns "image".
func (ImageValidator) Name() string { return "image" }

// Validate checks sub.ImageBytes per the rules documented on ImageValidator.
func (ImageValidator) Validate(_ context.Context, sub Submission) (Result, error) {
	if len(sub.ImageBytes) == 0 {
		return Result{Allowed: false, Reason: "image is required", Code: core.ErrInvalidInput}, nil
	}
	if len(sub.ImageBytes) > maxImageBytes {
		return Result{Allowed: false, Reason: fmt.Sprintf("image exceeds %d byte limit", maxImageBytes), Code: core.ErrFileTooLarge}, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(sub.ImageBytes))
	if err != nil {
		return Result{Allowed: false, Reason: "image is not a decodable jpeg or png: " + err.Error(), Code: core.ErrInvalidInput}, nil
	}
	if format != "jpeg" && format != "png" {
		return Result{Allowed: false, Reason: "unsupported image format " + format, Code: core.ErrInvalidInput}, nil
	}

	ratio := float64(cfg.Width*cfg.Height) / float64(len(sub.ImageBytes))
	if ratio > maxPixelsPerByte {
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("pixel-count/file-size ratio %.1f exceeds limit %d", ratio, maxPixelsPerByte),
			Code:    core.ErrInvalidInput,
		}, nil
	}

	return Result{Allowed: true}, nil
}

func init() {
	Register("image", func(cfg map[string]any) (Validator, error) {
		return NewImageValidator(), nil
	})
}
