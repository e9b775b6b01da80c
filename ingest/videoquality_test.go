package ingest

import (
	"context"
	"testing"

	"github.com/lookatitude/videogen/core"
)

func TestVideoQualityValidator_AllowsEmpty(t *testing.T) {
	v := NewVideoQualityValidator()
	result, err := v.Validate(context.Background(), Submission{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatal("Allowed = false, want true for empty video_quality")
	}
}

func TestVideoQualityValidator_AllowsKnownValues(t *testing.T) {
	v := NewVideoQualityValidator()
	for _, q := range []string{VideoQualityDraft, VideoQualityStandard, VideoQualityHigh} {
		result, err := v.Validate(context.Background(), Submission{VideoQuality: q})
		if err != nil {
			t.Fatalf("Validate(%q) error = %v", q, err)
		}
		if !result.Allowed {
			t.Fatalf("Validate(%q) Allowed = false, want true", q)
		}
	}
}

func TestVideoQualityValidator_RejectsUnknownValue(t *testing.T) {
	v := NewVideoQualityValidator()
	result, err := v.Validate(context.Background(), Submission{VideoQuality: "ultra"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false for unrecognized video_quality")
	}
	if result.Code != core.ErrInvalidInput {
		t.Fatalf("Code = %q, want INVALID_INPUT", result.Code)
	}
}
