package prosody

import (
	"context"
	"math"
	"testing"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/internal/wavcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(n int, cyclesPerSample float64, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*cyclesPerSample*float64(i)))
	}
	return out
}

func wavArtifact(t *testing.T, samples []float32, sampleRate int) *artifact.Artifact {
	t.Helper()
	data, err := wavcodec.EncodeMono(samples, sampleRate)
	require.NoError(t, err)
	return &artifact.Artifact{Kind: artifact.KindAudio, Bytes: data, SampleRate: sampleRate}
}

func TestParams_resolve_Presets(t *testing.T) {
	cases := []struct {
		preset Preset
		want   shifts
	}{
		{PresetCelebration, shifts{1.15, 1.10, 1.20}},
		{PresetEnergetic, shifts{1.10, 1.15, 1.25}},
		{PresetJoyful, shifts{1.20, 1.05, 1.15}},
		{PresetCalm, shifts{0.95, 0.90, 0.85}},
		{PresetNeutral, shifts{1.00, 1.00, 1.00}},
	}
	for _, c := range cases {
		got, err := (Params{Preset: c.preset}).resolve()
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParams_resolve_UnknownPreset(t *testing.T) {
	_, err := (Params{Preset: "made_up"}).resolve()
	require.Error(t, err)
}

func TestParams_resolve_ExplicitBounds(t *testing.T) {
	valid := Params{PitchShift: 1.0, TempoShift: 1.0, EnergyShift: 1.1}
	_, err := valid.resolve()
	require.NoError(t, err)

	cases := []Params{
		{PitchShift: 0.5, TempoShift: 1.0, EnergyShift: 1.1},
		{PitchShift: 1.3, TempoShift: 1.0, EnergyShift: 1.1},
		{PitchShift: 1.0, TempoShift: 0.5, EnergyShift: 1.1},
		{PitchShift: 1.0, TempoShift: 1.2, EnergyShift: 1.1},
		{PitchShift: 1.0, TempoShift: 1.0, EnergyShift: 0.9},
		{PitchShift: 1.0, TempoShift: 1.0, EnergyShift: 1.5},
	}
	for _, c := range cases {
		_, err := c.resolve()
		require.Error(t, err)
	}
}

func TestResampleLinear_PreservesEndpointsAndLength(t *testing.T) {
	in := []float32{0, 1, 2, 3, 4}
	out := resampleLinear(in, 9)
	require.Len(t, out, 9)
	assert.InDelta(t, in[0], out[0], 1e-6)
	assert.InDelta(t, in[len(in)-1], out[len(out)-1], 1e-6)
}

func TestApplyEnergy_PeakNormalizesOnClip(t *testing.T) {
	samples := []float32{0.9, -0.9, 0.5}
	out, peak := applyEnergy(samples, 1.3)
	assert.InDelta(t, 0.95, peak, 1e-6)
	for _, v := range out {
		assert.LessOrEqual(t, math.Abs(float64(v)), 0.95+1e-6)
	}
}

func TestApplyEnergy_NoClipNoRenormalize(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.2}
	out, peak := applyEnergy(samples, 1.1)
	assert.InDelta(t, 0.22, peak, 1e-6)
	assert.InDelta(t, 0.11, out[0], 1e-6)
}

func TestZeroCrossingRate_AlternatingSignal(t *testing.T) {
	s := []float32{1, -1, 1, -1, 1}
	assert.InDelta(t, 1.0, zeroCrossingRate(s), 1e-6)
}

func TestZeroCrossingRate_ConstantSignal(t *testing.T) {
	s := []float32{1, 1, 1, 1}
	assert.Equal(t, 0.0, zeroCrossingRate(s))
}

func TestZcrRatio_NearSilentOriginalIsNeutral(t *testing.T) {
	silent := make([]float32, 10)
	adjusted := tone(10, 0.1, 0.5)
	assert.Equal(t, 1.0, zcrRatio(adjusted, silent))
}

func TestAdjust_Success_NeutralPreset(t *testing.T) {
	samples := tone(2000, 0.02, 0.5)
	audio := wavArtifact(t, samples, 22050)

	engine := New(Config{})
	out, result := engine.Adjust(context.Background(), audio, Params{Preset: PresetNeutral})

	require.NoError(t, result.Validate())
	assert.False(t, result.WasFallback)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
	assert.Equal(t, artifact.KindAudio, out.Kind)
	assert.Equal(t, 22050, out.SampleRate)
}

func TestAdjust_FallbackOnInvalidParams(t *testing.T) {
	samples := tone(500, 0.05, 0.4)
	audio := wavArtifact(t, samples, 22050)

	engine := New(Config{})
	out, result := engine.Adjust(context.Background(), audio, Params{PitchShift: 5.0, TempoShift: 1.0, EnergyShift: 1.1})

	require.NoError(t, result.Validate())
	assert.True(t, result.WasFallback)
	assert.Equal(t, audio, out)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestAdjust_FallbackOnUndecodableAudio(t *testing.T) {
	audio := &artifact.Artifact{Kind: artifact.KindAudio, Bytes: []byte("not a wav file")}

	engine := New(Config{})
	out, result := engine.Adjust(context.Background(), audio, Params{Preset: PresetNeutral})

	require.NoError(t, result.Validate())
	assert.True(t, result.WasFallback)
	assert.Equal(t, audio, out)
}

func TestAdjust_FallbackWhenPredicateRejects(t *testing.T) {
	samples := tone(2000, 0.02, 0.5)
	audio := wavArtifact(t, samples, 22050)

	engine := New(Config{Predicate: func(float64, map[string]float64) bool { return false }})
	out, result := engine.Adjust(context.Background(), audio, Params{Preset: PresetCelebration})

	require.NoError(t, result.Validate())
	assert.True(t, result.WasFallback)
	assert.Equal(t, audio, out)
}

func TestDefaultPredicate(t *testing.T) {
	assert.True(t, DefaultPredicate(0.7, nil))
	assert.True(t, DefaultPredicate(0.9, nil))
	assert.False(t, DefaultPredicate(0.69, nil))
}
