package ingest

import (
	"context"
	"testing"

	"github.com/lookatitude/videogen/core"
)

func TestAudioTextValidator_AllowsAudioAlone(t *testing.T) {
	v := NewAudioTextValidator()
	result, err := v.Validate(context.Background(), Submission{AudioBytes: []byte("wav-bytes")})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Allowed = false, want true: %s", result.Reason)
	}
}

func TestAudioTextValidator_AllowsTextWithVoiceID(t *testing.T) {
	v := NewAudioTextValidator()
	sub := Submission{Text: "hello", Voice: VoiceSelector{Provider: "elevenlabs", ID: "voice-1"}}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Allowed = false, want true: %s", result.Reason)
	}
}

func TestAudioTextValidator_AllowsTextWithProfileID(t *testing.T) {
	v := NewAudioTextValidator()
	sub := Submission{Text: "hello", Voice: VoiceSelector{Provider: "elevenlabs", ProfileID: "profile-1"}}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Allowed = false, want true: %s", result.Reason)
	}
}

func TestAudioTextValidator_RejectsNeitherAudioNorText(t *testing.T) {
	v := NewAudioTextValidator()
	result, err := v.Validate(context.Background(), Submission{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false")
	}
	if result.Code != core.ErrInvalidInput {
		t.Fatalf("Code = %q, want INVALID_INPUT", result.Code)
	}
}

func TestAudioTextValidator_RejectsTextWithoutProvider(t *testing.T) {
	v := NewAudioTextValidator()
	sub := Submission{Text: "hello", Voice: VoiceSelector{ID: "voice-1"}}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false (missing voice.provider)")
	}
}

func TestAudioTextValidator_RejectsTextWithoutIDOrProfile(t *testing.T) {
	v := NewAudioTextValidator()
	sub := Submission{Text: "hello", Voice: VoiceSelector{Provider: "elevenlabs"}}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false (missing voice.id/profile_id)")
	}
}
