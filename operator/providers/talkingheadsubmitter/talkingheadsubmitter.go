// Package talkingheadsubmitter adapts talkinghead.Client to the operator.Operator
// contract (spec §4.3, §4.5) so the pipeline orchestrator can drive it through
// the same admission/fingerprint/cache plumbing as the GPU-bound stages.
package talkingheadsubmitter

import (
	"context"
	"time"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/talkinghead"
)

const (
	operatorID = "talkingheadsubmitter"
	// vramCostMB is zero: this stage drives an external provider over HTTP
	// and holds no local model weights.
	vramCostMB = 0
	resultTTL  = 24 * time.Hour
)

// Config configures an Operator instance.
type Config struct {
	Client          *talkinghead.Client
	OperatorVersion string
}

// Operator wraps a talkinghead.Client as a Stage Operator.
type Operator struct {
	client  *talkinghead.Client
	version string
}

// New creates a talkingheadsubmitter Operator.
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

// Execute submits inputs[0] (image) and inputs[1] (audio) to the talking-head
// provider and waits for the resulting video, per spec §4.5. Both inputs
// must already be cached (have a non-empty Ref) since the provider addresses
// them by reference, not by inline bytes.
func (o *Operator) Execute(ctx context.Context, inputs []*artifact.Artifact, _ map[string]any) (*artifact.Artifact, error) {
	if len(inputs) < 2 {
		panic("talkingheadsubmitter: Execute requires image and audio inputs")
	}
	imageArt, audioArt := inputs[0], inputs[1]
	if imageArt.Ref == "" || audioArt.Ref == "" {
		return nil, core.NewError("talkingheadsubmitter.Execute", core.ErrInvalidInput, "talking-head submission requires cached image and audio references", nil)
	}

	result, err := o.client.Submit(ctx, talkinghead.SubmitRequest{
		ImageRef: imageArt.Ref,
		AudioRef: audioArt.Ref,
	})
	if err != nil {
		return nil, err
	}

	return &artifact.Artifact{
		Kind:       artifact.KindVideo,
		Bytes:      result.VideoBytes,
		DurationMS: result.DurationMS,
		Meta:       map[string]string{"container_format": result.ContainerFormat},
	}, nil
}
