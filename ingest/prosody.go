package ingest

import (
	"context"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/prosody"
)

var knownPresets = map[string]bool{
	string(prosody.PresetCelebration): true,
	string(prosody.PresetEnergetic):   true,
	string(prosody.PresetJoyful):      true,
	string(prosody.PresetCalm):        true,
	string(prosody.PresetNeutral):     true,
}

// ProsodyValidator rejects a prosody field naming an unrecognized preset, or
// giving explicit pitch/tempo/energy shifts outside the hard bounds
// prosody.Params.resolve enforces. This is distinct from the engine's own
// low-confidence fallback: an unknown preset name or an out-of-bounds number
// is a malformed request, not a degraded-quality adjustment, so it is
// rejected here rather than silently falling back deep in the pipeline.
type ProsodyValidator struct{}

// NewProsodyValidator creates a ProsodyValidator.
func NewProsodyValidator() *ProsodyValidator { return &ProsodyValidator{} }

// Name returns "prosody".
func (ProsodyValidator) Name() string { return "prosody" }

// Validate checks sub's prosody fields per the rules on ProsodyValidator.
func (ProsodyValidator) Validate(_ context.Context, sub Submission) (Result, error) {
	if sub.ProsodyPreset != "" {
		if !knownPresets[sub.ProsodyPreset] {
			return Result{Allowed: false, Reason: "unrecognized prosody preset " + sub.ProsodyPreset, Code: core.ErrInvalidInput}, nil
		}
		return Result{Allowed: true}, nil
	}

	// No preset named: explicit shifts, if any, must be non-zero and
	// within prosody's hard bounds. Zero values mean "omitted" (the caller
	// asked for no prosody adjustment at all) and pass through unchecked.
	if sub.ProsodyPitch == 0 && sub.ProsodyTempo == 0 && sub.ProsodyEnergy == 0 {
		return Result{Allowed: true}, nil
	}
	if sub.ProsodyPitch < 0.90 || sub.ProsodyPitch > 1.25 {
		return Result{Allowed: false, Reason: "prosody pitch must be in [0.90,1.25]", Code: core.ErrInvalidInput}, nil
	}
	if sub.ProsodyTempo < 0.95 || sub.ProsodyTempo > 1.15 {
		return Result{Allowed: false, Reason: "prosody tempo must be in [0.95,1.15]", Code: core.ErrInvalidInput}, nil
	}
	if sub.ProsodyEnergy < 1.00 || sub.ProsodyEnergy > 1.30 {
		return Result{Allowed: false, Reason: "prosody energy must be in [1.00,1.30]", Code: core.ErrInvalidInput}, nil
	}
	return Result{Allowed: true}, nil
}

func init() {
	Register("prosody", func(cfg map[string]any) (Validator, error) {
		return NewProsodyValidator(), nil
	})
}
