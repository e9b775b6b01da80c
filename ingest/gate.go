package ingest

import (
	"context"

	"github.com/lookatitude/videogen/core"
)

// Gate runs a submission through a fixed ordered set of Validators — one
// stage, unlike the teacher's three-stage input/output/tool pipeline, since
// a pipeline submission has exactly one validation point (spec §6.1 names
// no output or tool-call surface for videogen to police).
type Gate struct {
	validators []Validator
}

// NewGate creates a Gate that runs validators in the given order.
func NewGate(validators ...Validator) *Gate {
	return &Gate{validators: validators}
}

// Check runs every validator in order against sub. It returns the first
// blocking Result, or an Allowed result if every validator passes.
func (g *Gate) Check(ctx context.Context, sub Submission) (Result, error) {
	for _, v := range g.validators {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		result, err := v.Validate(ctx, sub)
		if err != nil {
			return Result{}, core.NewError("ingest.Check", core.ErrInternal, "validator "+v.Name()+" failed", err)
		}
		if !result.Allowed {
			result.ValidatorName = v.Name()
			return result, nil
		}
	}
	return Result{Allowed: true}, nil
}

// DefaultGate returns the Gate spec §6.1's submission endpoint runs: image
// size/format/bomb-ratio, audio/text-voice requiredness, text length,
// prosody, and video quality.
func DefaultGate() *Gate {
	return NewGate(
		NewImageValidator(),
		NewAudioTextValidator(),
		NewTextLengthValidator(100),
		NewProsodyValidator(),
		NewVideoQualityValidator(),
	)
}
