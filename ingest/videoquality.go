package ingest

import (
	"context"

	"github.com/lookatitude/videogen/core"
)

// Recognized video_quality values (spec §9: the enum's mapping to provider
// parameters is implementation-defined; these three tiers are this repo's
// choice).
const (
	VideoQualityDraft    = "draft"
	VideoQualityStandard = "standard"
	VideoQualityHigh     = "high"
)

var knownVideoQualities = map[string]bool{
	VideoQualityDraft:    true,
	VideoQualityStandard: true,
	VideoQualityHigh:     true,
}

// VideoQualityValidator rejects an unrecognized video_quality value. An
// empty value is allowed and defaults to VideoQualityStandard downstream.
type VideoQualityValidator struct{}

// NewVideoQualityValidator creates a VideoQualityValidator.
func NewVideoQualityValidator() *VideoQualityValidator { return &VideoQualityValidator{} }

// Name returns "video_quality".
func (VideoQualityValidator) Name() string { return "video_quality" }

// Validate checks sub.VideoQuality against the recognized enum.
func (VideoQualityValidator) Validate(_ context.Context, sub Submission) (Result, error) {
	if sub.VideoQuality == "" {
		return Result{Allowed: true}, nil
	}
	if !knownVideoQualities[sub.VideoQuality] {
		return Result{Allowed: false, Reason: "unrecognized video_quality " + sub.VideoQuality, Code: core.ErrInvalidInput}, nil
	}
	return Result{Allowed: true}, nil
}

func init() {
	Register("video_quality", func(cfg map[string]any) (Validator, error) {
		return NewVideoQualityValidator(), nil
	})
}
