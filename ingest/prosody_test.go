package ingest

import (
	"context"
	"testing"

	"github.com/lookatitude/videogen/core"
)

func TestProsodyValidator_AllowsKnownPreset(t *testing.T) {
	v := NewProsodyValidator()
	result, err := v.Validate(context.Background(), Submission{ProsodyPreset: "celebration"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Allowed = false, want true: %s", result.Reason)
	}
}

func TestProsodyValidator_RejectsUnknownPreset(t *testing.T) {
	v := NewProsodyValidator()
	result, err := v.Validate(context.Background(), Submission{ProsodyPreset: "ecstatic"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false for unrecognized preset")
	}
	if result.Code != core.ErrInvalidInput {
		t.Fatalf("Code = %q, want INVALID_INPUT", result.Code)
	}
}

func TestProsodyValidator_AllowsOmittedShifts(t *testing.T) {
	v := NewProsodyValidator()
	result, err := v.Validate(context.Background(), Submission{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatal("Allowed = false, want true when all shift fields are zero")
	}
}

func TestProsodyValidator_AllowsInBoundsShifts(t *testing.T) {
	v := NewProsodyValidator()
	sub := Submission{ProsodyPitch: 1.1, ProsodyTempo: 1.0, ProsodyEnergy: 1.1}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Allowed {
		t.Fatalf("Allowed = false, want true: %s", result.Reason)
	}
}

func TestProsodyValidator_RejectsPitchOutOfBounds(t *testing.T) {
	v := NewProsodyValidator()
	sub := Submission{ProsodyPitch: 1.5, ProsodyTempo: 1.0, ProsodyEnergy: 1.1}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false for pitch above 1.25")
	}
}

func TestProsodyValidator_RejectsTempoOutOfBounds(t *testing.T) {
	v := NewProsodyValidator()
	sub := Submission{ProsodyPitch: 1.0, ProsodyTempo: 0.5, ProsodyEnergy: 1.1}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false for tempo below 0.95")
	}
}

func TestProsodyValidator_RejectsEnergyOutOfBounds(t *testing.T) {
	v := NewProsodyValidator()
	sub := Submission{ProsodyPitch: 1.0, ProsodyTempo: 1.0, ProsodyEnergy: 0.5}
	result, err := v.Validate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Allowed = true, want false for energy below 1.00")
	}
}
