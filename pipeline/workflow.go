package pipeline

import (
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/registry"
)

// branchResult carries one branch's terminal artifact ref, or the error
// that cancelled it, back to JobWorkflow's merge point.
type branchResult struct {
	ref string
	err error
}

// JobWorkflow drives the two-branch DAG spec §4.5 describes: an image
// branch (PersonDetector -> BackgroundRemover) and an audio branch
// (TTSSynthesizer -> ProsodyAdjuster -> optional BGMMixer) running
// concurrently, merging at TalkingHeadSubmitter. A failure in either branch
// cancels the derived workflow context, which propagates to the sibling
// branch's in-flight activity (and any admission wait it is blocked on).
// An outer timer forces the job to JobCancelled if the whole DAG has not
// finished within Config.JobDeadline.
func JobWorkflow(ctx workflow.Context, cfg Config, input JobInput) (JobResult, error) {
	logger := workflow.GetLogger(ctx)
	branchCtx, cancelBranches := workflow.WithCancel(ctx)

	imageDone := workflow.NewChannel(ctx)
	audioDone := workflow.NewChannel(ctx)

	workflow.Go(branchCtx, func(ctx workflow.Context) {
		ref, err := runImageBranch(ctx, cfg, input)
		if err != nil {
			logger.Warn("image branch failed, cancelling sibling branch", "job_id", input.JobID, "error", err)
			cancelBranches()
		}
		imageDone.Send(ctx, branchResult{ref: ref, err: err})
	})

	workflow.Go(branchCtx, func(ctx workflow.Context) {
		ref, err := runAudioBranch(ctx, cfg, input)
		if err != nil {
			logger.Warn("audio branch failed, cancelling sibling branch", "job_id", input.JobID, "error", err)
			cancelBranches()
		}
		audioDone.Send(ctx, branchResult{ref: ref, err: err})
	})

	var imageResult, audioResult branchResult
	imageReceived, audioReceived := false, false

	deadlineTimer := workflow.NewTimer(ctx, cfg.JobDeadline)
	selector := workflow.NewSelector(ctx)
	selector.AddReceive(imageDone, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &imageResult)
		imageReceived = true
	})
	selector.AddReceive(audioDone, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &audioResult)
		audioReceived = true
	})

	timedOut := false
	selector.AddFuture(deadlineTimer, func(workflow.Future) {
		timedOut = true
		cancelBranches()
	})

	for !timedOut && (!imageReceived || !audioReceived) {
		selector.Select(ctx)
	}

	if timedOut {
		return JobResult{State: registry.JobCancelled, ErrorCode: core.ErrTimeout, ErrorMessage: "job deadline exceeded"}, nil
	}

	// Both branches may have been signalled to cancel together; drain
	// whichever channel hasn't delivered yet so its goroutine isn't left
	// blocked on a send past workflow completion.
	for !imageReceived || !audioReceived {
		selector.Select(ctx)
	}

	if imageResult.err != nil || audioResult.err != nil {
		return failureResult(originatingBranchError(imageResult.err, audioResult.err)), nil
	}

	activityCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.TalkingHeadTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var headResp TalkingHeadResponse
	err := workflow.ExecuteActivity(activityCtx, ActivitySubmitTalkingHead, TalkingHeadRequest{
		JobID:    input.JobID,
		ImageRef: imageResult.ref,
		AudioRef: audioResult.ref,
	}).Get(ctx, &headResp)
	if err != nil {
		return failureResult(err), nil
	}

	return JobResult{VideoRef: headResp.VideoRef, State: registry.JobSucceeded}, nil
}

// runImageBranch executes PersonDetector then BackgroundRemover, returning
// the final image ref the merge point consumes.
func runImageBranch(ctx workflow.Context, cfg Config, input JobInput) (string, error) {
	detectCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.DetectionTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var detectResp DetectResponse
	err := workflow.ExecuteActivity(detectCtx, ActivityDetectPerson, DetectRequest{
		JobID:           input.JobID,
		ImageRef:        input.ImageRef,
		ConfThreshold:   input.DetectConfThreshold,
		MaxPersons:      input.DetectMaxPersons,
		IoUThreshold:    input.DetectIoUThreshold,
		ReturnKeypoints: input.DetectKeypoints,
	}).Get(ctx, &detectResp)
	if err != nil {
		return "", err
	}

	if !input.RemoveBackground {
		return input.ImageRef, nil
	}

	removeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.BackgroundRemovalTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var removeResp RemoveBackgroundResponse
	err = workflow.ExecuteActivity(removeCtx, ActivityRemoveBackground, RemoveBackgroundRequest{
		JobID:        input.JobID,
		ImageRef:     input.ImageRef,
		DetectionRef: detectResp.DetectionRef,
		Smoothing:    input.Smoothing,
	}).Get(ctx, &removeResp)
	if err != nil {
		return "", err
	}
	return removeResp.ImageRef, nil
}

// runAudioBranch executes TTSSynthesizer (or passes through a pre-recorded
// clip), then ProsodyAdjuster, then the optional BGMMixer, returning the
// final audio ref the merge point consumes.
func runAudioBranch(ctx workflow.Context, cfg Config, input JobInput) (string, error) {
	audioRef := input.AudioRef
	if audioRef == "" {
		synthCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: cfg.TTSTimeout,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		var synthResp SynthesizeResponse
		err := workflow.ExecuteActivity(synthCtx, ActivitySynthesize, SynthesizeRequest{
			JobID:         input.JobID,
			Text:          input.Text,
			VoiceProvider: input.Voice.Provider,
			VoiceID:       input.Voice.ID,
			VoiceProfile:  input.Voice.ProfileID,
			Speed:         input.TTSSpeed,
			Pitch:         input.TTSPitch,
			Intonation:    input.TTSIntonation,
			Volume:        input.TTSVolume,
		}).Get(ctx, &synthResp)
		if err != nil {
			return "", err
		}
		audioRef = synthResp.AudioRef
	}

	prosodyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.ProsodyTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var prosodyResp ProsodyResponse
	err := workflow.ExecuteActivity(prosodyCtx, ActivityAdjustProsody, ProsodyRequest{
		JobID:    input.JobID,
		AudioRef: audioRef,
		Params:   input.Prosody,
	}).Get(ctx, &prosodyResp)
	if err != nil {
		return "", err
	}
	audioRef = prosodyResp.AudioRef

	// BGMMixer is placed here, inside the audio branch before the merge,
	// rather than after TalkingHeadSubmitter: it operates on WAV PCM and
	// has no way to touch a rendered video.
	if input.BGMRef == "" {
		return audioRef, nil
	}

	mixCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.BGMMixTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var mixResp MixBGMResponse
	err = workflow.ExecuteActivity(mixCtx, ActivityMixBGM, MixBGMRequest{
		JobID:          input.JobID,
		SpeechAudioRef: audioRef,
		BGMRef:         input.BGMRef,
		GainDB:         input.BGMGainDB,
		DuckRatio:      input.BGMDuckRatio,
	}).Get(ctx, &mixResp)
	if err != nil {
		return "", err
	}
	return mixResp.AudioRef, nil
}

// originatingBranchError picks which of the two branches' errors caused the
// job to fail. Whichever branch fails first calls cancelBranches, so the
// sibling's in-flight activity typically returns a *temporal.CanceledError
// that is a side effect, not the cause. If exactly one of imgErr/audioErr is
// a CanceledError, the other one is the originating failure; otherwise
// (both cancelled, or both genuine failures) imgErr is reported, matching
// the order branches are declared in.
func originatingBranchError(imgErr, audioErr error) error {
	imgCancelled := isCanceledError(imgErr)
	audioCancelled := isCanceledError(audioErr)

	if imgCancelled && !audioCancelled && audioErr != nil {
		return audioErr
	}
	if audioCancelled && !imgCancelled && imgErr != nil {
		return imgErr
	}
	if imgErr != nil {
		return imgErr
	}
	return audioErr
}

func isCanceledError(err error) bool {
	var cancelErr *temporal.CanceledError
	return errors.As(err, &cancelErr)
}

// failureResult maps a branch or merge-point error into a terminal
// JobResult. Activity errors arrive wrapped in Temporal's ActivityError and
// ApplicationError envelopes; unwrapping to the ApplicationError recovers
// the core.ErrorCode an activity set as its error type, so the client sees
// the actual cause rather than a generic activity failure. A caller-issued
// client.CancelWorkflow propagates as a *temporal.CanceledError once it
// reaches a branch's activity context, distinct from the deadline-timer
// path above (which already returns JobCancelled directly); that case maps
// to JobCancelled/ErrCancelled here rather than falling through to
// JobFailed/ErrInternal.
func failureResult(err error) JobResult {
	var cancelErr *temporal.CanceledError
	if errors.As(err, &cancelErr) {
		return JobResult{
			State:        registry.JobCancelled,
			ErrorCode:    core.ErrCancelled,
			ErrorMessage: "job cancelled",
		}
	}

	code := core.Code(err)
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		code = core.ErrorCode(appErr.Type())
	}
	return JobResult{
		State:        registry.JobFailed,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	}
}
