// Package bgmmixer implements the optional BGMMixer stage operator
// (spec §4.3.4): mixes a background-music track under synthesized speech
// with gain control and side-chain ducking, looping or truncating the BGM
// track to match the speech duration.
package bgmmixer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/wavcodec"
)

const (
	operatorID = "bgmmixer"
	vramCostMB = 0 // pure CPU-side PCM mixing, no model inference
	resultTTL  = 24 * time.Hour

	// duckThreshold is the speech amplitude above which ducking kicks in.
	duckThreshold = 0.02
)

// Params holds BGMMixer's recognized parameter set.
type Params struct {
	BGMGainDB float64
	DuckRatio float64
}

// DefaultParams returns a conservative default mix.
func DefaultParams() Params {
	return Params{BGMGainDB: -10, DuckRatio: 0.5}
}

// Validate enforces the hard parameter bounds.
func (p Params) Validate() error {
	if p.BGMGainDB < -20 || p.BGMGainDB > 0 {
		return core.NewError("bgmmixer.Validate", core.ErrInvalidInput, "bgm_gain_db must be in [-20,0]", nil)
	}
	if p.DuckRatio < 0.3 || p.DuckRatio > 1.0 {
		return core.NewError("bgmmixer.Validate", core.ErrInvalidInput, "duck_ratio must be in [0.3,1.0]", nil)
	}
	return nil
}

func (p Params) fingerprintParams() []string {
	return artifact.SortedParams(map[string]float64{
		"bgm_gain_db": p.BGMGainDB,
		"duck_ratio":  p.DuckRatio,
	})
}

// Operator implements operator.Operator for BGM mixing. It has no external
// model dependency; Execute runs entirely in-process.
type Operator struct {
	version string
}

// Config configures an Operator instance.
type Config struct {
	OperatorVersion string
}

// New creates a bgmmixer Operator.
func New(cfg Config) *Operator {
	version := cfg.OperatorVersion
	if version == "" {
		version = "v1"
	}
	return &Operator{version: version}
}

func (o *Operator) ID() string         { return operatorID }
func (o *Operator) VRAMCost() int      { return vramCostMB }
func (o *Operator) TTL() time.Duration { return resultTTL }

// Fingerprint computes the content address for one invocation.
func (o *Operator) Fingerprint(inputRefs []string, params []string) string {
	return artifact.Fingerprint(operatorID, o.version, inputRefs, params)
}

// Execute mixes inputs[1] (BGM) under inputs[0] (speech), per spec §4.3.4.
func (o *Operator) Execute(_ context.Context, inputs []*artifact.Artifact, rawParams map[string]any) (*artifact.Artifact, error) {
	if len(inputs) < 2 {
		panic("bgmmixer: Execute requires speech and bgm audio inputs")
	}
	speechArt, bgmArt := inputs[0], inputs[1]

	params, err := paramsFromMap(rawParams)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	speech, sampleRate, err := wavcodec.DecodeMono(speechArt.Bytes)
	if err != nil {
		return nil, core.NewError("bgmmixer.Execute", core.ErrInvalidInput, "speech audio is not decodable", err)
	}
	bgm, bgmSampleRate, err := wavcodec.DecodeMono(bgmArt.Bytes)
	if err != nil {
		return nil, core.NewError("bgmmixer.Execute", core.ErrInvalidInput, "bgm audio is not decodable", err)
	}
	if bgmSampleRate != sampleRate {
		return nil, core.NewError("bgmmixer.Execute", core.ErrInvalidInput, fmt.Sprintf("bgm sample rate %d does not match speech sample rate %d", bgmSampleRate, sampleRate), nil)
	}

	bgmFit := loopOrTruncate(bgm, len(speech))
	mixed := mix(speech, bgmFit, params.BGMGainDB, params.DuckRatio)

	wavBytes, err := wavcodec.EncodeMono(mixed, sampleRate)
	if err != nil {
		return nil, core.NewError("bgmmixer.Execute", core.ErrInternal, "failed to encode mixed wav", err)
	}

	durationMS := int64(float64(len(mixed)) / float64(sampleRate) * 1000)
	if durationMS < speechArt.DurationMS {
		durationMS = speechArt.DurationMS
	}

	return &artifact.Artifact{
		Kind:       artifact.KindAudio,
		Bytes:      wavBytes,
		SampleRate: sampleRate,
		DurationMS: durationMS,
	}, nil
}

func paramsFromMap(raw map[string]any) (Params, error) {
	p := DefaultParams()
	if v, ok := raw["bgm_gain_db"].(float64); ok {
		p.BGMGainDB = v
	}
	if v, ok := raw["duck_ratio"].(float64); ok {
		p.DuckRatio = v
	}
	return p, nil
}

// loopOrTruncate returns bgm resized to exactly length samples, looping the
// track from the start if it is shorter, and truncating if it is longer.
func loopOrTruncate(bgm []float32, length int) []float32 {
	if len(bgm) == 0 {
		return make([]float32, length)
	}
	out := make([]float32, length)
	for i := range out {
		out[i] = bgm[i%len(bgm)]
	}
	return out
}

// mix sums speech and gain-adjusted, ducked bgm sample-by-sample, clamping
// to the valid PCM range.
func mix(speech, bgm []float32, gainDB, duckRatio float64) []float32 {
	gainLinear := float32(math.Pow(10, gainDB/20))
	duck := float32(duckRatio)

	out := make([]float32, len(speech))
	for i, s := range speech {
		factor := gainLinear
		if float64(abs32(s)) > duckThreshold {
			factor *= duck
		}
		v := s + bgm[i]*factor
		out[i] = clamp32(v, -1, 1)
	}
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
