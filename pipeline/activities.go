package pipeline

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/lookatitude/videogen/admission"
	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/cache"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/metrics"
	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/operator/providers/ttssynthesizer"
	"github.com/lookatitude/videogen/prosody"
	"github.com/lookatitude/videogen/registry"
)

// toActivityError wraps err as a Temporal ApplicationError carrying its
// core.ErrorCode as the error type, so JobWorkflow can recover the code
// after Temporal's error envelope round-trips it through history. Every
// stage activity's ActivityOptions sets MaximumAttempts: 1, since each
// retriable condition (transient upstream failures, OOM re-queues) is
// already exhausted inside operator.RunWithAdmission/resilience.Retry
// before an activity returns.
func toActivityError(err error) error {
	if err == nil {
		return nil
	}
	return temporal.NewApplicationError(err.Error(), string(core.Code(err)), err)
}

// Activities bundles the dependencies every stage activity needs: the
// result cache, the admission controller, the stage operator registry, the
// job registry, and the prosody engine (which runs in-process rather than
// through an Operator, since its contract never returns an error). Methods
// on Activities are registered as Temporal activities by the worker.
type Activities struct {
	Cache     *cache.ResultCache
	Admission *admission.Controller
	Operators *operator.Registry
	Registry  registry.Registry
	Prosody   *prosody.Engine
}


// loadArtifact fetches the artifact stored under ref and stamps its Ref
// field with the lookup key. The cache serializes artifacts before an
// operator's fingerprint key is known, so a round-tripped Get never carries
// its own ref; callers that hand artifacts on to a downstream operator
// (talkingheadsubmitter addresses inputs by ref, not by inline bytes) depend
// on this stamp.
func (a *Activities) loadArtifact(ctx context.Context, ref string) (*artifact.Artifact, error) {
	art, found, err := a.Cache.Get(ctx, ref)
	if err != nil || !found {
		return nil, core.NewError("pipeline.loadArtifact", core.ErrNotFound, "referenced artifact is not in the cache", err)
	}
	art.Ref = ref
	return art, nil
}

// stageDeadline derives an admission deadline from the activity context's
// own deadline (Temporal sets this from ActivityOptions.StartToCloseTimeout),
// falling back to a conservative default when none is set.
func stageDeadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}

// markRunning transitions stage to Running in the job's registry entry.
func (a *Activities) markRunning(ctx context.Context, jobID, stage string) {
	_ = a.Registry.Update(ctx, jobID, func(j *registry.Job) {
		j.Stages[stage] = &registry.StageStatus{State: registry.StageRunning, StartedAt: time.Now()}
	})
}

// markDone records the stage's terminal substate and, on success, the
// artifact ref it produced.
func (a *Activities) markDone(ctx context.Context, jobID, stage string, ref string, cached bool, err error) {
	_ = a.Registry.Update(ctx, jobID, func(j *registry.Job) {
		st, ok := j.Stages[stage]
		if !ok {
			st = &registry.StageStatus{}
			j.Stages[stage] = st
		}
		st.EndedAt = time.Now()
		st.Attempts++
		if err != nil {
			st.State = registry.StageFailed
			st.LastErrorCode = core.Code(err)
			return
		}
		if cached {
			st.State = registry.StageCached
		} else {
			st.State = registry.StageSucceeded
		}
		st.ArtifactFingerprint = ref
		if j.ArtifactRefs == nil {
			j.ArtifactRefs = map[string]string{}
		}
		j.ArtifactRefs[stage] = ref
	})
}

// runStage is the shared fingerprint -> cache -> admission -> operator ->
// cache-put sequence every GPU-bound or HTTP-bound stage follows (spec
// §4.6's execution contract). fallbackTimeout bounds the admission wait
// when the activity's own context carries no deadline (e.g. in tests).
func (a *Activities) runStage(ctx context.Context, jobID, stage string, op operator.Operator, inputs []*artifact.Artifact, rawParams map[string]any, fingerprintParams []string, fallbackTimeout time.Duration) (*artifact.Artifact, error) {
	logger := o11y.FromContext(ctx)
	ctx, span := o11y.StartSpan(ctx, "pipeline.stage", o11y.Attrs{
		o11y.AttrJobID:      jobID,
		o11y.AttrStageName:  stage,
		o11y.AttrOperatorID: op.ID(),
	})
	defer span.End()
	a.markRunning(ctx, jobID, stage)

	inputRefs := make([]string, len(inputs))
	for i, in := range inputs {
		if in != nil {
			inputRefs[i] = in.Ref
		}
	}
	key := op.Fingerprint(inputRefs, fingerprintParams)

	start := time.Now()
	art, hit, err := a.Cache.GetOrProduce(ctx, key, op.TTL(), func(ctx context.Context) (*artifact.Artifact, error) {
		deadline := stageDeadline(ctx, fallbackTimeout)
		return operator.RunWithAdmission(ctx, a.Admission, op, inputs, rawParams, deadline)
	})
	metrics.StageLatency(ctx, stage, float64(time.Since(start).Milliseconds()))
	metrics.CacheResult(ctx, stage, hit)
	span.SetAttributes(o11y.Attrs{o11y.AttrCacheHit: hit})

	if err != nil {
		metrics.StageError(ctx, stage, string(core.Code(err)))
		logger.Warn(ctx, "pipeline stage failed", "stage", stage, "job_id", jobID, "error", err)
		span.RecordError(err)
		span.SetStatus(o11y.StatusError, err.Error())
		a.markDone(ctx, jobID, stage, "", false, err)
		return nil, err
	}
	if art.Ref == "" {
		art.Ref = key
	}
	span.SetStatus(o11y.StatusOK, "")
	a.markDone(ctx, jobID, stage, art.Ref, hit, nil)
	return art, nil
}

// DetectRequest/DetectResponse carry the PersonDetector activity's inputs
// and the resulting detection artifact ref.
type DetectRequest struct {
	JobID           string
	ImageRef        string
	ConfThreshold   float64
	MaxPersons      int
	IoUThreshold    float64
	ReturnKeypoints bool
}

type DetectResponse struct {
	DetectionRef string
}

// DetectPerson runs the PersonDetector stage.
func (a *Activities) DetectPerson(ctx context.Context, req DetectRequest) (DetectResponse, error) {
	op, ok := a.Operators.Get(StageDetect)
	if !ok {
		return DetectResponse{}, toActivityError(core.NewError("pipeline.DetectPerson", core.ErrInternal, "persondetector operator not registered", nil))
	}
	image, err := a.loadArtifact(ctx, req.ImageRef)
	if err != nil {
		return DetectResponse{}, toActivityError(err)
	}

	keypointsFlag := 0.0
	if req.ReturnKeypoints {
		keypointsFlag = 1.0
	}
	params := artifact.SortedParams(map[string]float64{
		"conf_threshold":   req.ConfThreshold,
		"max_persons":      float64(req.MaxPersons),
		"iou_threshold":    req.IoUThreshold,
		"return_keypoints": keypointsFlag,
	})
	rawParams := map[string]any{
		"conf_threshold":   req.ConfThreshold,
		"max_persons":      float64(req.MaxPersons),
		"iou_threshold":    req.IoUThreshold,
		"return_keypoints": req.ReturnKeypoints,
	}

	art, err := a.runStage(ctx, req.JobID, StageDetect, op, []*artifact.Artifact{image}, rawParams, params, 30*time.Second)
	if err != nil {
		return DetectResponse{}, toActivityError(err)
	}
	return DetectResponse{DetectionRef: art.Ref}, nil
}

// RemoveBackgroundRequest/RemoveBackgroundResponse carry the
// BackgroundRemover activity's inputs and output image ref.
type RemoveBackgroundRequest struct {
	JobID        string
	ImageRef     string
	DetectionRef string // optional bbox hint
	Smoothing    bool
}

type RemoveBackgroundResponse struct {
	ImageRef string
}

// RemoveBackground runs the BackgroundRemover stage.
func (a *Activities) RemoveBackground(ctx context.Context, req RemoveBackgroundRequest) (RemoveBackgroundResponse, error) {
	op, ok := a.Operators.Get(StageRemoveBG)
	if !ok {
		return RemoveBackgroundResponse{}, toActivityError(core.NewError("pipeline.RemoveBackground", core.ErrInternal, "backgroundremover operator not registered", nil))
	}
	image, err := a.loadArtifact(ctx, req.ImageRef)
	if err != nil {
		return RemoveBackgroundResponse{}, toActivityError(err)
	}

	inputs := []*artifact.Artifact{image}
	if req.DetectionRef != "" {
		det, err := a.loadArtifact(ctx, req.DetectionRef)
		if err == nil {
			inputs = append(inputs, det)
		}
	}

	smoothingFlag := 0.0
	if req.Smoothing {
		smoothingFlag = 1.0
	}
	params := artifact.SortedParams(map[string]float64{"smoothing": smoothingFlag})
	rawParams := map[string]any{"smoothing": req.Smoothing}

	art, err := a.runStage(ctx, req.JobID, StageRemoveBG, op, inputs, rawParams, params, 30*time.Second)
	if err != nil {
		return RemoveBackgroundResponse{}, toActivityError(err)
	}
	return RemoveBackgroundResponse{ImageRef: art.Ref}, nil
}

// SynthesizeRequest/SynthesizeResponse carry the TTSSynthesizer activity's
// inputs and output audio ref.
type SynthesizeRequest struct {
	JobID         string
	Text          string
	VoiceProvider string
	VoiceID       string
	VoiceProfile  string
	Speed         float64
	Pitch         float64
	Intonation    float64
	Volume        float64
}

type SynthesizeResponse struct {
	AudioRef string
}

// Synthesize runs the TTSSynthesizer stage. Text and voice carry no
// cacheable byte payload of their own, so they are folded into the
// fingerprint's input-ref list (hashed like any other ref) rather than the
// inputs slice, which stays empty.
func (a *Activities) Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResponse, error) {
	op, ok := a.Operators.Get(StageSynthesize)
	if !ok {
		return SynthesizeResponse{}, toActivityError(core.NewError("pipeline.Synthesize", core.ErrInternal, "ttssynthesizer operator not registered", nil))
	}

	params := artifact.SortedParams(map[string]float64{
		"speed":      req.Speed,
		"pitch":      req.Pitch,
		"intonation": req.Intonation,
		"volume":     req.Volume,
	})
	inputRefs := []string{"text:" + req.Text, "voice:" + req.VoiceProvider + ":" + req.VoiceID + ":" + req.VoiceProfile}

	rawParams := map[string]any{
		"request": ttssynthesizer.Request{
			Text: req.Text,
			Voice: ttssynthesizer.VoiceSelector{
				Provider:  ttssynthesizer.VoiceProvider(req.VoiceProvider),
				ID:        req.VoiceID,
				ProfileID: req.VoiceProfile,
			},
		},
		"speed":      req.Speed,
		"pitch":      req.Pitch,
		"intonation": req.Intonation,
		"volume":     req.Volume,
	}

	// runStage's generic path derives its fingerprint input-refs from the
	// inputs slice, which TTSSynthesizer never populates (text/voice have no
	// cacheable byte payload of their own); call the shared sequence here
	// with the synthesized ref list instead.
	art, err := a.runSynthesisStage(ctx, req.JobID, op, rawParams, inputRefs, params)
	if err != nil {
		return SynthesizeResponse{}, toActivityError(err)
	}
	return SynthesizeResponse{AudioRef: art.Ref}, nil
}

func (a *Activities) runSynthesisStage(ctx context.Context, jobID string, op operator.Operator, rawParams map[string]any, inputRefs, params []string) (*artifact.Artifact, error) {
	logger := o11y.FromContext(ctx)
	ctx, span := o11y.StartSpan(ctx, "pipeline.stage", o11y.Attrs{
		o11y.AttrJobID:      jobID,
		o11y.AttrStageName:  StageSynthesize,
		o11y.AttrOperatorID: op.ID(),
	})
	defer span.End()
	a.markRunning(ctx, jobID, StageSynthesize)

	key := op.Fingerprint(inputRefs, params)
	start := time.Now()
	art, hit, err := a.Cache.GetOrProduce(ctx, key, op.TTL(), func(ctx context.Context) (*artifact.Artifact, error) {
		deadline := stageDeadline(ctx, 30*time.Second)
		return operator.RunWithAdmission(ctx, a.Admission, op, nil, rawParams, deadline)
	})
	metrics.StageLatency(ctx, StageSynthesize, float64(time.Since(start).Milliseconds()))
	metrics.CacheResult(ctx, StageSynthesize, hit)
	span.SetAttributes(o11y.Attrs{o11y.AttrCacheHit: hit})

	if err != nil {
		metrics.StageError(ctx, StageSynthesize, string(core.Code(err)))
		logger.Warn(ctx, "pipeline stage failed", "stage", StageSynthesize, "job_id", jobID, "error", err)
		span.RecordError(err)
		span.SetStatus(o11y.StatusError, err.Error())
		a.markDone(ctx, jobID, StageSynthesize, "", false, err)
		return nil, err
	}
	if art.Ref == "" {
		art.Ref = key
	}
	span.SetStatus(o11y.StatusOK, "")
	a.markDone(ctx, jobID, StageSynthesize, art.Ref, hit, nil)
	return art, nil
}

// ProsodyRequest/ProsodyResponse carry the ProsodyAdjuster activity's
// inputs and output.
type ProsodyRequest struct {
	JobID    string
	AudioRef string
	Params   prosody.Params
}

type ProsodyResponse struct {
	AudioRef    string
	Confidence  float64
	WasFallback bool
}

// AdjustProsody runs the Prosody Engine (C4). The engine itself never
// fails: it guarantees a usable audio artifact on every invocation, falling
// back to the unmodified input on low confidence or internal failure (spec
// §4.4). The activity returns an error only when the input audio ref
// cannot be loaded from the cache.
func (a *Activities) AdjustProsody(ctx context.Context, req ProsodyRequest) (ProsodyResponse, error) {
	a.markRunning(ctx, req.JobID, StageProsody)

	audio, err := a.loadArtifact(ctx, req.AudioRef)
	if err != nil {
		a.markDone(ctx, req.JobID, StageProsody, "", false, err)
		return ProsodyResponse{}, toActivityError(err)
	}

	start := time.Now()
	adjusted, result := a.Prosody.Adjust(ctx, audio, req.Params)
	metrics.StageLatency(ctx, StageProsody, float64(time.Since(start).Milliseconds()))

	fpParams := artifact.SortedParams(map[string]float64{
		"pitch_shift":  req.Params.PitchShift,
		"tempo_shift":  req.Params.TempoShift,
		"energy_shift": req.Params.EnergyShift,
	})
	key := artifact.Fingerprint(StageProsody, "v1", []string{audio.Ref, "preset:" + string(req.Params.Preset)}, fpParams)
	adjusted.Ref = key
	result.AdjustedAudioRef = key
	if result.WasFallback {
		result.AdjustedAudioRef = audio.Ref
		adjusted.Ref = audio.Ref
	}
	result.InputAudioRef = audio.Ref

	if putErr := a.Cache.Put(ctx, key, adjusted, 1*time.Hour); putErr != nil && putErr != cache.ErrTooLarge {
		o11y.FromContext(ctx).Warn(ctx, "prosody result not cached", "job_id", req.JobID, "error", putErr)
	}

	a.markDone(ctx, req.JobID, StageProsody, adjusted.Ref, false, nil)
	return ProsodyResponse{AudioRef: adjusted.Ref, Confidence: result.Confidence, WasFallback: result.WasFallback}, nil
}

// MixBGMRequest/MixBGMResponse carry the BGMMixer activity's inputs and
// output audio ref.
type MixBGMRequest struct {
	JobID          string
	SpeechAudioRef string
	BGMRef         string
	GainDB         float64
	DuckRatio      float64
}

type MixBGMResponse struct {
	AudioRef string
}

// MixBGM runs the optional BGMMixer stage.
func (a *Activities) MixBGM(ctx context.Context, req MixBGMRequest) (MixBGMResponse, error) {
	op, ok := a.Operators.Get(StageMixBGM)
	if !ok {
		return MixBGMResponse{}, toActivityError(core.NewError("pipeline.MixBGM", core.ErrInternal, "bgmmixer operator not registered", nil))
	}
	speech, err := a.loadArtifact(ctx, req.SpeechAudioRef)
	if err != nil {
		return MixBGMResponse{}, toActivityError(err)
	}
	bgm, err := a.loadArtifact(ctx, req.BGMRef)
	if err != nil {
		return MixBGMResponse{}, toActivityError(err)
	}

	params := artifact.SortedParams(map[string]float64{
		"bgm_gain_db": req.GainDB,
		"duck_ratio":  req.DuckRatio,
	})
	rawParams := map[string]any{"bgm_gain_db": req.GainDB, "duck_ratio": req.DuckRatio}

	art, err := a.runStage(ctx, req.JobID, StageMixBGM, op, []*artifact.Artifact{speech, bgm}, rawParams, params, 15*time.Second)
	if err != nil {
		return MixBGMResponse{}, toActivityError(err)
	}
	return MixBGMResponse{AudioRef: art.Ref}, nil
}

// TalkingHeadRequest/TalkingHeadResponse carry the TalkingHeadSubmitter
// activity's merged image/audio inputs and the resulting video ref.
type TalkingHeadRequest struct {
	JobID    string
	ImageRef string
	AudioRef string
}

type TalkingHeadResponse struct {
	VideoRef string
}

// SubmitTalkingHead runs the merge-point TalkingHeadSubmitter stage.
func (a *Activities) SubmitTalkingHead(ctx context.Context, req TalkingHeadRequest) (TalkingHeadResponse, error) {
	op, ok := a.Operators.Get(StageTalkingHead)
	if !ok {
		return TalkingHeadResponse{}, toActivityError(core.NewError("pipeline.SubmitTalkingHead", core.ErrInternal, "talkingheadsubmitter operator not registered", nil))
	}
	image, err := a.loadArtifact(ctx, req.ImageRef)
	if err != nil {
		return TalkingHeadResponse{}, toActivityError(err)
	}
	audio, err := a.loadArtifact(ctx, req.AudioRef)
	if err != nil {
		return TalkingHeadResponse{}, toActivityError(err)
	}

	art, err := a.runStage(ctx, req.JobID, StageTalkingHead, op, []*artifact.Artifact{image, audio}, nil, nil, 120*time.Second)
	if err != nil {
		return TalkingHeadResponse{}, toActivityError(err)
	}
	return TalkingHeadResponse{VideoRef: art.Ref}, nil
}
