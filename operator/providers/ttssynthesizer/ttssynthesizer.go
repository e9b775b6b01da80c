// Package ttssynthesizer implements the TTSSynthesizer stage operator
// (spec §4.3.3): a black-box HTTP speech synthesis model producing a
// 16-bit PCM, mono, 22.05 kHz WAV artifact from text and a voice selector.
package ttssynthesizer

import (
	"context"
	"encoding/base64"
	"time"
	"unicode/utf8"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/internal/httpclient"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/resilience"
)

const (
	operatorID = "ttssynthesizer"
	vramCostMB = 1500
	resultTTL  = 1 * time.Hour

	maxTextChars = 100

	outputSampleRate = 22050
	outputBitDepth   = 16
)

// VoiceProvider selects which family of voice a VoiceSelector resolves
// against (spec §4.3.3).
type VoiceProvider string

const (
	VoiceProviderPreset VoiceProvider = "preset"
	VoiceProviderClone  VoiceProvider = "clone"
)

// VoiceSelector identifies the voice to synthesize with: either a built-in
// preset (ID) or a previously enrolled clone profile (ProfileID).
type VoiceSelector struct {
	Provider  VoiceProvider
	ID        string
	ProfileID string
}

// Validate checks the selector names a provider and carries the field that
// provider requires.
func (v VoiceSelector) Validate() error {
	switch v.Provider {
	case VoiceProviderPreset:
		if v.ID == "" {
			return core.NewError("ttssynthesizer.VoiceSelector.Validate", core.ErrInvalidInput, "preset voice selector requires id", nil)
		}
	case VoiceProviderClone:
		if v.ProfileID == "" {
			return core.NewError("ttssynthesizer.VoiceSelector.Validate", core.ErrInvalidInput, "clone voice selector requires profile_id", nil)
		}
	default:
		return core.NewError("ttssynthesizer.VoiceSelector.Validate", core.ErrInvalidInput, "voice selector provider must be preset or clone", nil)
	}
	return nil
}

// Params holds TTSSynthesizer's recognized parameter set. Bounds are the
// provider-wide defaults (spec §4.3.3 leaves exact per-provider ranges to
// the provider; these are the ranges enforced here).
type Params struct {
	Speed      float64
	Pitch      float64
	Intonation float64
	Volume     float64
}

// DefaultParams returns neutral synthesis parameters.
func DefaultParams() Params {
	return Params{Speed: 1.0, Pitch: 1.0, Intonation: 0.5, Volume: 1.0}
}

// Validate enforces the hard parameter bounds.
func (p Params) Validate() error {
	if p.Speed < 0.5 || p.Speed > 2.0 {
		return core.NewError("ttssynthesizer.Validate", core.ErrInvalidInput, "speed must be in [0.5,2.0]", nil)
	}
	if p.Pitch < 0.5 || p.Pitch > 2.0 {
		return core.NewError("ttssynthesizer.Validate", core.ErrInvalidInput, "pitch must be in [0.5,2.0]", nil)
	}
	if p.Intonation < 0 || p.Intonation > 1 {
		return core.NewError("ttssynthesizer.Validate", core.ErrInvalidInput, "intonation must be in [0,1]", nil)
	}
	if p.Volume < 0 || p.Volume > 1 {
		return core.NewError("ttssynthesizer.Validate", core.ErrInvalidInput, "volume must be in [0,1]", nil)
	}
	return nil
}

func (p Params) fingerprintParams() []string {
	return artifact.SortedParams(map[string]float64{
		"speed":      p.Speed,
		"pitch":      p.Pitch,
		"intonation": p.Intonation,
		"volume":     p.Volume,
	})
}

// Config configures an Operator instance.
type Config struct {
	Client          *httpclient.Client
	OperatorVersion string
}

// Operator implements operator.Operator for speech synthesis.
type Operator struct {
	client  *httpclient.Client
	version string
}

// New creates a ttssynthesizer Operator.
func New(cfg Config) *Operator {
	version := cfg.OperatorVersion
	if version == "" {
		version = "v1"
	}
	return &Operator{client: cfg.Client, version: version}
}

func (o *Operator) ID() string         { return operatorID }
func (o *Operator) VRAMCost() int      { return vramCostMB }
func (o *Operator) TTL() time.Duration { return resultTTL }

// Fingerprint computes the content address for one invocation.
func (o *Operator) Fingerprint(inputRefs []string, params []string) string {
	return artifact.Fingerprint(operatorID, o.version, inputRefs, params)
}

type synthesizeRequest struct {
	Text          string  `json:"text"`
	VoiceProvider string  `json:"voice_provider"`
	VoiceID       string  `json:"voice_id,omitempty"`
	VoiceProfile  string  `json:"voice_profile_id,omitempty"`
	Speed         float64 `json:"speed"`
	Pitch         float64 `json:"pitch"`
	Intonation    float64 `json:"intonation"`
	Volume        float64 `json:"volume"`
}

type synthesizeResponse struct {
	WAVBase64  string `json:"wav_base64"`
	DurationMS int64  `json:"duration_ms"`
	Healthy    bool   `json:"healthy"`
}

// Request bundles the text and voice selector Execute needs; these are not
// Artifacts (they have no cacheable byte payload of their own) so they
// travel through the params map rather than the inputs slice.
type Request struct {
	Text  string
	Voice VoiceSelector
}

// Execute synthesizes speech for req, encoded in params["request"], per
// spec §4.3.3.
func (o *Operator) Execute(ctx context.Context, _ []*artifact.Artifact, rawParams map[string]any) (*artifact.Artifact, error) {
	req, ok := rawParams["request"].(Request)
	if !ok {
		panic("ttssynthesizer: Execute requires params[\"request\"] of type Request")
	}
	if n := utf8.RuneCountInString(req.Text); n == 0 || n > maxTextChars {
		return nil, core.NewError("ttssynthesizer.Execute", core.ErrInvalidInput, "text must be 1..100 chars", nil)
	}
	if err := req.Voice.Validate(); err != nil {
		return nil, err
	}

	params, err := paramsFromMap(rawParams)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	resp, err := resilience.Retry(ctx, operator.DefaultRetryPolicy(), func(ctx context.Context) (synthesizeResponse, error) {
		r, err := httpclient.DoJSON[synthesizeResponse](ctx, o.client, "POST", "/v1/synthesize", synthesizeRequest{
			Text:          req.Text,
			VoiceProvider: string(req.Voice.Provider),
			VoiceID:       req.Voice.ID,
			VoiceProfile:  req.Voice.ProfileID,
			Speed:         params.Speed,
			Pitch:         params.Pitch,
			Intonation:    params.Intonation,
			Volume:        params.Volume,
		})
		if err != nil {
			return synthesizeResponse{}, operator.ClassifyHTTPError(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, core.NewError("ttssynthesizer.Execute", core.ErrUpstreamFailed, "synthesis request failed", err)
	}
	if !resp.Healthy {
		return nil, core.NewError("ttssynthesizer.Execute", core.ErrUpstreamFailed, "ProviderUnavailable", nil)
	}

	wav, err := decodeBase64WAV(resp.WAVBase64)
	if err != nil {
		return nil, core.NewError("ttssynthesizer.Execute", core.ErrUpstreamFailed, "wav payload is not valid base64", err)
	}

	return &artifact.Artifact{
		Kind:       artifact.KindAudio,
		Bytes:      wav,
		SampleRate: outputSampleRate,
		DurationMS: resp.DurationMS,
	}, nil
}

func decodeBase64WAV(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func paramsFromMap(raw map[string]any) (Params, error) {
	p := DefaultParams()
	if v, ok := raw["speed"].(float64); ok {
		p.Speed = v
	}
	if v, ok := raw["pitch"].(float64); ok {
		p.Pitch = v
	}
	if v, ok := raw["intonation"].(float64); ok {
		p.Intonation = v
	}
	if v, ok := raw["volume"].(float64); ok {
		p.Volume = v
	}
	return p, nil
}
