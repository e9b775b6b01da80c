package ingest

import (
	"context"
	"testing"

	"github.com/lookatitude/videogen/core"
)

type allowValidator struct{ name string }

func (v *allowValidator) Name() string { return v.name }
func (v *allowValidator) Validate(_ context.Context, _ Submission) (Result, error) {
	return Result{Allowed: true}, nil
}

type blockValidator struct {
	name   string
	reason string
	code   core.ErrorCode
}

func (v *blockValidator) Name() string { return v.name }
func (v *blockValidator) Validate(_ context.Context, _ Submission) (Result, error) {
	return Result{Allowed: false, Reason: v.reason, Code: v.code}, nil
}

func TestGate_AllAllow(t *testing.T) {
	g := NewGate(&allowValidator{name: "v1"}, &allowValidator{name: "v2"})

	result, err := g.Check(context.Background(), Submission{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !result.Allowed {
		t.Fatal("Check() Allowed = false, want true")
	}
}

func TestGate_FirstBlockStops(t *testing.T) {
	g := NewGate(
		&allowValidator{name: "v1"},
		&blockValidator{name: "v2", reason: "nope", code: core.ErrInvalidInput},
		&allowValidator{name: "v3"},
	)

	result, err := g.Check(context.Background(), Submission{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Check() Allowed = true, want false")
	}
	if result.ValidatorName != "v2" {
		t.Fatalf("ValidatorName = %q, want v2", result.ValidatorName)
	}
	if result.Code != core.ErrInvalidInput {
		t.Fatalf("Code = %q, want INVALID_INPUT", result.Code)
	}
}

func TestGate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGate(&allowValidator{name: "v1"})
	_, err := g.Check(ctx, Submission{})
	if err == nil {
		t.Fatal("Check() error = nil, want context.Canceled")
	}
}

func validJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	return encodeJPEG(t, width, height)
}

func TestDefaultGate_HappyPath(t *testing.T) {
	g := DefaultGate()
	sub := Submission{
		ImageBytes:    validJPEG(t, 64, 64),
		Text:          "congrats!",
		Voice:         VoiceSelector{Provider: "elevenlabs", ID: "voice-1"},
		ProsodyPreset: "celebration",
		VideoQuality:  VideoQualityStandard,
	}

	result, err := g.Check(context.Background(), sub)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Check() rejected a valid submission: %s (%s)", result.Reason, result.ValidatorName)
	}
}

func TestDefaultGate_RejectsMissingVoice(t *testing.T) {
	g := DefaultGate()
	sub := Submission{
		ImageBytes: validJPEG(t, 64, 64),
		Text:       "congrats!",
	}

	result, err := g.Check(context.Background(), sub)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Check() Allowed = true, want false (missing voice)")
	}
	if result.ValidatorName != "audio_text" {
		t.Fatalf("ValidatorName = %q, want audio_text", result.ValidatorName)
	}
}
