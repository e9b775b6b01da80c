// Package pipeline implements the Pipeline Orchestrator (C6): a Temporal
// workflow driving the two-branch DAG (image: PersonDetector ->
// BackgroundRemover; audio: TTSSynthesizer -> ProsodyAdjuster -> BGMMixer)
// that merges at TalkingHeadSubmitter, plus the activities each stage runs
// through (cache consult, admission acquire, operator execute, cache put).
package pipeline

import (
	"time"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/prosody"
	"github.com/lookatitude/videogen/registry"
)

// Stage name constants, used as both registry.Job.Stages keys and OTel
// metric labels.
const (
	StageDetect      = "persondetector"
	StageRemoveBG    = "backgroundremover"
	StageSynthesize  = "ttssynthesizer"
	StageProsody     = "prosodyadjuster"
	StageMixBGM      = "bgmmixer"
	StageTalkingHead = "talkingheadsubmitter"
)

// Activity name constants. The worker registers each Activities method,
// bound to a live instance, under these explicit names (see NewWorker), and
// the workflow refers to them by name rather than by method value since it
// never owns an Activities instance of its own.
const (
	ActivityDetectPerson      = "DetectPerson"
	ActivityRemoveBackground  = "RemoveBackground"
	ActivitySynthesize        = "Synthesize"
	ActivityAdjustProsody     = "AdjustProsody"
	ActivityMixBGM            = "MixBGM"
	ActivitySubmitTalkingHead = "SubmitTalkingHead"
)

// Config carries the per-stage timeouts and overall job deadline spec §5
// names, plus the Temporal task queue the worker and workflow share.
type Config struct {
	TaskQueue string

	DetectionTimeout        time.Duration
	BackgroundRemovalTimeout time.Duration
	TTSTimeout              time.Duration
	ProsodyTimeout          time.Duration
	TalkingHeadTimeout      time.Duration
	BGMMixTimeout           time.Duration

	// JobDeadline is the outer bound (default 180s) that forces the job to
	// Cancelled regardless of individual stage progress.
	JobDeadline time.Duration
}

// DefaultConfig returns the timeouts spec §5 names.
func DefaultConfig(taskQueue string) Config {
	return Config{
		TaskQueue:                taskQueue,
		DetectionTimeout:         30 * time.Second,
		BackgroundRemovalTimeout: 30 * time.Second,
		TTSTimeout:               30 * time.Second,
		ProsodyTimeout:           10 * time.Second,
		TalkingHeadTimeout:       120 * time.Second,
		BGMMixTimeout:            15 * time.Second,
		JobDeadline:              180 * time.Second,
	}
}

// VoiceSelector mirrors ttssynthesizer.VoiceSelector without importing that
// package into the workflow-visible type surface (Temporal serializes
// workflow inputs, so keeping them as plain structs of primitives avoids
// coupling the workflow's replay-determinism to an operator package's
// internal layout).
type VoiceSelector struct {
	Provider  string
	ID        string
	ProfileID string
}

// JobInput is the JobWorkflow's input: artifact refs already materialized
// in the cache by the ingestion layer, plus the recognized parameter set
// per stage (spec §6.1).
type JobInput struct {
	JobID             string
	ClientFingerprint string

	ImageRef string

	// AudioRef is set when the caller supplied pre-recorded audio
	// directly; otherwise Text/Voice drive TTSSynthesizer.
	AudioRef string
	Text     string
	Voice    VoiceSelector

	DetectConfThreshold float64
	DetectMaxPersons    int
	DetectIoUThreshold  float64
	DetectKeypoints     bool

	RemoveBackground bool
	Smoothing        bool

	TTSSpeed      float64
	TTSPitch      float64
	TTSIntonation float64
	TTSVolume     float64

	Prosody prosody.Params

	BGMRef       string
	BGMGainDB    float64
	BGMDuckRatio float64
}

// JobResult is the JobWorkflow's terminal output, mirrored into the
// registry.Job snapshot by the activities as they run.
type JobResult struct {
	VideoRef     string
	State        registry.JobState
	ErrorCode    core.ErrorCode
	ErrorMessage string
}
