// Package ingest validates a pipeline submission at the point it enters the
// system (spec §6.1), before a Job is ever created. It runs a configurable
// set of Validators in order over the decoded multipart fields; the first
// Validator that blocks stops the chain and its reason becomes the
// INVALID_INPUT (or FILE_TOO_LARGE) error the client sees.
//
// The HTTP layer decodes the multipart fields into plain structs without
// struct-tag validation, so every check happens here: image size, format
// and decompression-bomb ratio, cross-field requiredness between audio and
// text/voice, text length, prosody preset and bounds, and the video-quality
// enum.
package ingest

import (
	"context"

	"github.com/lookatitude/videogen/core"
)

// Validator checks one aspect of a Submission. Implementations must be safe
// for concurrent use.
type Validator interface {
	// Name identifies this validator in logs and in a blocking Result.
	Name() string

	// Validate inspects sub and reports whether it is allowed through.
	Validate(ctx context.Context, sub Submission) (Result, error)
}

// VoiceSelector mirrors the submission's voice JSON field.
type VoiceSelector struct {
	Provider  string
	ID        string
	ProfileID string
}

// Submission carries every field spec §6.1's multipart POST accepts, decoded
// but not yet validated.
type Submission struct {
	ClientFingerprint string

	ImageBytes      []byte
	ImageFilename   string
	AudioBytes      []byte // optional; when empty, Text/Voice are required
	Text            string
	Voice           VoiceSelector
	ProsodyPreset   string // optional
	ProsodyPitch    float64
	ProsodyTempo    float64
	ProsodyEnergy   float64
	BGMID           string // optional
	Smoothing       bool
	VideoQuality    string
}

// Result conveys the outcome of a Validator.Validate call.
type Result struct {
	// Allowed is true when the submission passes this validator.
	Allowed bool

	// Reason explains why the submission was rejected. Empty when Allowed.
	Reason string

	// Code is the error envelope code (spec §6.5) the rejection maps to:
	// INVALID_INPUT for malformed/out-of-bounds content, FILE_TOO_LARGE for
	// oversized uploads.
	Code core.ErrorCode

	// ValidatorName identifies which validator produced a blocking result.
	ValidatorName string
}
