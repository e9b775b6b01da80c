// Package prosody implements the Prosody Engine (C4): it makes synthesized
// speech sound more celebratory while guaranteeing no degradation of the
// user experience. Every path — a successful adjustment or an internal
// failure — returns usable audio; the caller never sees a terminal
// "prosody failed" error (spec §4.4).
package prosody

import (
	"context"
	"math"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/wavcodec"
)

// Preset names a recognized celebratory preset (spec §4.4's table).
type Preset string

const (
	PresetCelebration Preset = "celebration"
	PresetEnergetic   Preset = "energetic"
	PresetJoyful      Preset = "joyful"
	PresetCalm        Preset = "calm"
	PresetNeutral     Preset = "neutral"
)

// shifts is one preset's or explicit request's resolved pitch/tempo/energy
// multipliers.
type shifts struct {
	Pitch, Tempo, Energy float64
}

// presetTable holds the documented preset values. calm's energy value
// (0.85) falls outside the explicit-parameter energy bound [1.00, 1.30] by
// design (spec §4.4: "calm preset maps energy 0.85 internally"), so preset
// lookups bypass Params.resolve's bound check entirely.
var presetTable = map[Preset]shifts{
	PresetCelebration: {Pitch: 1.15, Tempo: 1.10, Energy: 1.20},
	PresetEnergetic:   {Pitch: 1.10, Tempo: 1.15, Energy: 1.25},
	PresetJoyful:      {Pitch: 1.20, Tempo: 1.05, Energy: 1.15},
	PresetCalm:        {Pitch: 0.95, Tempo: 0.90, Energy: 0.85},
	PresetNeutral:     {Pitch: 1.00, Tempo: 1.00, Energy: 1.00},
}

// Params selects either a named Preset or explicit pitch/tempo/energy
// shifts (spec §4.4).
type Params struct {
	Preset      Preset
	PitchShift  float64
	TempoShift  float64
	EnergyShift float64
}

// resolve returns the shifts to apply: the preset table entry when Preset
// is set, else the explicit fields after enforcing the hard bounds.
func (p Params) resolve() (shifts, error) {
	if p.Preset != "" {
		v, ok := presetTable[p.Preset]
		if !ok {
			return shifts{}, core.NewError("prosody.Params.resolve", core.ErrInvalidInput, "unrecognized preset", nil)
		}
		return v, nil
	}
	if p.PitchShift < 0.90 || p.PitchShift > 1.25 {
		return shifts{}, core.NewError("prosody.Params.resolve", core.ErrInvalidInput, "pitch_shift must be in [0.90,1.25]", nil)
	}
	if p.TempoShift < 0.95 || p.TempoShift > 1.15 {
		return shifts{}, core.NewError("prosody.Params.resolve", core.ErrInvalidInput, "tempo_shift must be in [0.95,1.15]", nil)
	}
	if p.EnergyShift < 1.00 || p.EnergyShift > 1.30 {
		return shifts{}, core.NewError("prosody.Params.resolve", core.ErrInvalidInput, "energy_shift must be in [1.00,1.30]", nil)
	}
	return shifts{Pitch: p.PitchShift, Tempo: p.TempoShift, Energy: p.EnergyShift}, nil
}

// Predicate decides whether an adjustment's confidence is high enough to
// accept, given the confidence score and the measured detail that produced
// it. The default requires confidence >= 0.7 (spec §4.4); callers may
// install a stricter or more lenient predicate.
type Predicate func(confidence float64, detail map[string]float64) bool

// DefaultPredicate implements spec §4.4's acceptance threshold.
func DefaultPredicate(confidence float64, _ map[string]float64) bool {
	return confidence >= 0.7
}

// Config configures an Engine.
type Config struct {
	// Predicate overrides the accept/fallback decision. Nil uses DefaultPredicate.
	Predicate Predicate
}

// Engine adjusts synthesized speech for celebratory affect.
type Engine struct {
	predicate Predicate
}

// New creates an Engine.
func New(cfg Config) *Engine {
	predicate := cfg.Predicate
	if predicate == nil {
		predicate = DefaultPredicate
	}
	return &Engine{predicate: predicate}
}

// Adjust applies pitch, tempo, and energy modification to audio per params,
// scores the result's confidence, and either returns the adjusted audio or
// falls back to the original audio unchanged. It never returns a non-nil
// error: every failure mode (unparseable params, undecodable audio, a
// rejected predicate) resolves to a fallback result instead (spec §4.4).
func (e *Engine) Adjust(_ context.Context, audio *artifact.Artifact, params Params) (*artifact.Artifact, *artifact.ProsodyResult) {
	resolved, err := params.resolve()
	if err != nil {
		return e.fallback(audio, 0, map[string]float64{})
	}

	samples, sampleRate, err := wavcodec.DecodeMono(audio.Bytes)
	if err != nil {
		return e.fallback(audio, 0, map[string]float64{})
	}

	pitchShifted := shiftPitch(samples, resolved.Pitch)
	tempoAdjusted := stretchTempo(pitchShifted, resolved.Tempo)
	energyAdjusted, peak := applyEnergy(tempoAdjusted, resolved.Energy)

	measuredPitch := zcrRatio(pitchShifted, samples)
	measuredTempo := measuredRatio(len(samples), len(tempoAdjusted))

	detail := map[string]float64{
		"pitch_ratio":    measuredPitch,
		"tempo_ratio":    measuredTempo,
		"peak_amplitude": peak,
	}

	confidence := 1.0
	if measuredPitch < 0.90 || measuredPitch > 1.25 {
		confidence *= 0.3
	}
	if peak > 0.99 {
		confidence *= 0.5
	}
	if measuredTempo < 0.95 || measuredTempo > 1.15 {
		confidence *= 0.6
	}

	if !e.predicate(confidence, detail) {
		return e.fallback(audio, confidence, detail)
	}

	encoded, err := wavcodec.EncodeMono(energyAdjusted, sampleRate)
	if err != nil {
		return e.fallback(audio, confidence, detail)
	}

	out := &artifact.Artifact{
		Kind:       artifact.KindAudio,
		Bytes:      encoded,
		SampleRate: sampleRate,
		DurationMS: int64(float64(len(energyAdjusted)) / float64(sampleRate) * 1000),
	}
	result := &artifact.ProsodyResult{
		Confidence: confidence,
		Detail:     detail,
	}
	return out, result
}

// fallback returns the original audio unchanged with was_fallback set, per
// spec §4.4's "caller must never see a prosody failed error" guarantee.
func (e *Engine) fallback(audio *artifact.Artifact, confidence float64, detail map[string]float64) (*artifact.Artifact, *artifact.ProsodyResult) {
	return audio, &artifact.ProsodyResult{
		Confidence:  confidence,
		Detail:      detail,
		WasFallback: true,
	}
}

// resampleLinear resamples samples to newLen using linear interpolation.
func resampleLinear(samples []float32, newLen int) []float32 {
	if newLen <= 0 {
		return []float32{}
	}
	if len(samples) == 0 {
		return make([]float32, newLen)
	}
	if newLen == 1 || len(samples) == 1 {
		out := make([]float32, newLen)
		for i := range out {
			out[i] = samples[0]
		}
		return out
	}

	out := make([]float32, newLen)
	scale := float64(len(samples)-1) / float64(newLen-1)
	for i := range out {
		srcPos := float64(i) * scale
		i0 := int(srcPos)
		i1 := i0 + 1
		if i1 >= len(samples) {
			i1 = len(samples) - 1
		}
		frac := float32(srcPos - float64(i0))
		out[i] = samples[i0]*(1-frac) + samples[i1]*frac
	}
	return out
}

// shiftPitch changes perceived pitch while preserving duration: it
// resamples to a compressed/expanded length (raising or lowering frequency
// content) then stretches back to the original sample count, the classic
// resample-and-restretch pitch shift.
func shiftPitch(samples []float32, pitchShift float64) []float32 {
	if len(samples) == 0 {
		return samples
	}
	compressedLen := int(math.Round(float64(len(samples)) / pitchShift))
	if compressedLen < 1 {
		compressedLen = 1
	}
	compressed := resampleLinear(samples, compressedLen)
	return resampleLinear(compressed, len(samples))
}

// stretchTempo changes playback duration by tempoShift via resampling.
func stretchTempo(samples []float32, tempoShift float64) []float32 {
	if len(samples) == 0 {
		return samples
	}
	newLen := int(math.Round(float64(len(samples)) / tempoShift))
	if newLen < 1 {
		newLen = 1
	}
	return resampleLinear(samples, newLen)
}

// applyEnergy scales samples by energyShift and peak-normalizes to 0.95
// amplitude if clipping would otherwise occur (spec §4.4).
func applyEnergy(samples []float32, energyShift float64) ([]float32, float64) {
	out := make([]float32, len(samples))
	peak := 0.0
	for i, s := range samples {
		v := float64(s) * energyShift
		out[i] = float32(v)
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	if peak > 1.0 {
		scale := float32(0.95 / peak)
		for i := range out {
			out[i] *= scale
		}
		peak = 0.95
	}
	return out, peak
}

// zeroCrossingRate approximates a signal's fundamental frequency content as
// the fraction of adjacent samples that cross zero.
func zeroCrossingRate(s []float32) float64 {
	if len(s) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(s); i++ {
		if (s[i-1] >= 0) != (s[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(s)-1)
}

// zcrRatio measures the achieved pitch shift as the ratio of zero-crossing
// rates between the pitch-shifted and original signal. Near-silent
// originals (zcr ~ 0) cannot be measured meaningfully and are treated as
// neutral (ratio 1.0) rather than penalized.
func zcrRatio(adjusted, original []float32) float64 {
	zcrOrig := zeroCrossingRate(original)
	if zcrOrig < 1e-9 {
		return 1.0
	}
	return zeroCrossingRate(adjusted) / zcrOrig
}

// measuredRatio reports the actual length ratio achieved after
// length-rounding, which can differ minutely from the requested tempo
// shift on very short audio.
func measuredRatio(originalLen, adjustedLen int) float64 {
	if adjustedLen == 0 {
		return 1.0
	}
	return float64(originalLen) / float64(adjustedLen)
}
