package ingest

import (
	"context"

	"github.com/lookatitude/videogen/core"
)

// AudioTextValidator enforces spec §6.1's either/or: a submission supplies
// pre-recorded audio, or it supplies text plus a voice selector for
// TTSSynthesizer to speak. Neither alone (or both absent) is rejected.
type AudioTextValidator struct{}

// NewAudioTextValidator creates an AudioTextValidator.
func NewAudioTextValidator() *AudioTextValidator { return &AudioTextValidator{} }

// Name returns "audio_text".
func (AudioTextValidator) Name() string { return "audio_text" }

// Validate checks that sub carries either AudioBytes, or Text with a
// non-empty Voice.Provider and (ID or ProfileID).
func (AudioTextValidator) Validate(_ context.Context, sub Submission) (Result, error) {
	if len(sub.AudioBytes) > 0 {
		return Result{Allowed: true}, nil
	}

	if sub.Text == "" {
		return Result{Allowed: false, Reason: "either audio or text must be supplied", Code: core.ErrInvalidInput}, nil
	}
	if sub.Voice.Provider == "" {
		return Result{Allowed: false, Reason: "voice.provider is required when audio is not supplied", Code: core.ErrInvalidInput}, nil
	}
	if sub.Voice.ID == "" && sub.Voice.ProfileID == "" {
		return Result{Allowed: false, Reason: "voice.id or voice.profile_id is required when audio is not supplied", Code: core.ErrInvalidInput}, nil
	}
	return Result{Allowed: true}, nil
}

func init() {
	Register("audio_text", func(cfg map[string]any) (Validator, error) {
		return NewAudioTextValidator(), nil
	})
}
