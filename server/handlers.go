package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lookatitude/videogen/artifact"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/ingest"
	"github.com/lookatitude/videogen/operator/providers/bgmmixer"
	"github.com/lookatitude/videogen/operator/providers/persondetector"
	"github.com/lookatitude/videogen/operator/providers/ttssynthesizer"
	"github.com/lookatitude/videogen/pipeline"
	"github.com/lookatitude/videogen/prosody"
	"github.com/lookatitude/videogen/registry"
	"github.com/lookatitude/videogen/talkinghead"
	"go.temporal.io/sdk/client"
)

const (
	maxUploadBytes = 12 << 20 // headroom above the 10 MiB image cap for multipart overhead

	// inputArtifactTTL matches the operator providers' own resultTTL
	// convention (e.g. persondetector.resultTTL): these are user-supplied
	// bytes, not an operator's output, but they are cached under the same
	// content-addressed scheme so the workflow can address them by ref.
	inputArtifactTTL = 24 * time.Hour
)

type voiceRequest struct {
	Provider  string `json:"provider"`
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`
}

type prosodyRequest struct {
	Preset string  `json:"preset"`
	Pitch  float64 `json:"pitch"`
	Tempo  float64 `json:"tempo"`
	Energy float64 `json:"energy"`
}

type generateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	PollURL string `json:"poll_url"`
}

// handleGenerate implements POST /pipeline/generate (spec §6.1): validates
// the submission, materializes its raw inputs into the cache, starts the
// workflow, and acknowledges with 202 before the job does any real work.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fingerprint := clientFingerprint(r)

	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(fingerprint) {
		writeError(w, core.ErrRateLimited, "submission rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, core.ErrInvalidInput, "request body is not a valid multipart form or exceeds the size limit")
		return
	}

	imageBytes, _, err := readFormFile(r, "image")
	if err != nil {
		writeError(w, core.ErrInvalidInput, "image field is required")
		return
	}
	audioBytes, _, _ := readFormFile(r, "audio")

	var voice voiceRequest
	if raw := r.FormValue("voice"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &voice); err != nil {
			writeError(w, core.ErrInvalidInput, "voice field is not valid JSON")
			return
		}
	}

	var prosodyReq prosodyRequest
	if raw := r.FormValue("prosody"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prosodyReq); err != nil {
			writeError(w, core.ErrInvalidInput, "prosody field is not valid JSON")
			return
		}
	}

	smoothing := true
	if raw := r.FormValue("smoothing"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, core.ErrInvalidInput, "smoothing field must be a boolean")
			return
		}
		smoothing = parsed
	}

	sub := ingest.Submission{
		ClientFingerprint: fingerprint,
		ImageBytes:        imageBytes,
		AudioBytes:        audioBytes,
		Text:              r.FormValue("text"),
		Voice: ingest.VoiceSelector{
			Provider:  voice.Provider,
			ID:        voice.ID,
			ProfileID: voice.ProfileID,
		},
		ProsodyPreset: prosodyReq.Preset,
		ProsodyPitch:  prosodyReq.Pitch,
		ProsodyTempo:  prosodyReq.Tempo,
		ProsodyEnergy: prosodyReq.Energy,
		BGMID:         r.FormValue("bgm_id"),
		Smoothing:     smoothing,
		VideoQuality:  r.FormValue("video_quality"),
	}

	result, err := s.deps.Gate.Check(ctx, sub)
	if err != nil {
		s.logger.Error(ctx, "ingestion gate check failed", "error", err)
		writeError(w, core.ErrInternal, "submission could not be validated")
		return
	}
	if !result.Allowed {
		writeError(w, result.Code, result.Reason)
		return
	}

	imageRef, err := s.storeInput(ctx, artifact.KindImage, imageBytes)
	if err != nil {
		s.logger.Error(ctx, "failed to cache image input", "error", err)
		writeError(w, core.ErrInternal, "could not store submission")
		return
	}
	var audioRef string
	if len(audioBytes) > 0 {
		audioRef, err = s.storeInput(ctx, artifact.KindAudio, audioBytes)
		if err != nil {
			s.logger.Error(ctx, "failed to cache audio input", "error", err)
			writeError(w, core.ErrInternal, "could not store submission")
			return
		}
	}

	jobID := uuid.New().String()
	detectParams := persondetector.DefaultParams()
	ttsParams := ttssynthesizer.DefaultParams()
	bgmParams := bgmmixer.DefaultParams()

	input := pipeline.JobInput{
		JobID:             jobID,
		ClientFingerprint: fingerprint,
		ImageRef:          imageRef,
		AudioRef:          audioRef,
		Text:              sub.Text,
		Voice: pipeline.VoiceSelector{
			Provider:  voice.Provider,
			ID:        voice.ID,
			ProfileID: voice.ProfileID,
		},
		DetectConfThreshold: detectParams.ConfThreshold,
		DetectMaxPersons:    detectParams.MaxPersons,
		DetectIoUThreshold:  detectParams.IoUThreshold,
		DetectKeypoints:     detectParams.ReturnKeypoints,
		RemoveBackground:    true,
		Smoothing:           smoothing,
		TTSSpeed:            ttsParams.Speed,
		TTSPitch:            ttsParams.Pitch,
		TTSIntonation:       ttsParams.Intonation,
		TTSVolume:           ttsParams.Volume,
		Prosody: prosody.Params{
			Preset:      prosody.Preset(prosodyReq.Preset),
			PitchShift:  prosodyReq.Pitch,
			TempoShift:  prosodyReq.Tempo,
			EnergyShift: prosodyReq.Energy,
		},
		BGMRef:       sub.BGMID,
		BGMGainDB:    bgmParams.BGMGainDB,
		BGMDuckRatio: bgmParams.DuckRatio,
	}

	job := &registry.Job{
		ID:                jobID,
		SubmittedAt:       time.Now(),
		ClientFingerprint: fingerprint,
		State:             registry.JobSubmitted,
		Stages:            map[string]*registry.StageStatus{},
		ArtifactRefs:      map[string]string{},
		Deadline:          time.Now().Add(s.deps.Pipeline.JobDeadline),
	}
	if err := s.deps.Registry.Create(ctx, job); err != nil {
		s.logger.Error(ctx, "failed to create job", "job_id", jobID, "error", err)
		writeError(w, core.ErrInternal, "could not create job")
		return
	}

	we, err := s.deps.Temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        jobID,
		TaskQueue: s.deps.Pipeline.TaskQueue,
	}, pipeline.JobWorkflow, s.deps.Pipeline, input)
	if err != nil {
		s.logger.Error(ctx, "failed to start workflow", "job_id", jobID, "error", err)
		writeError(w, core.ErrInternal, "could not start pipeline job")
		return
	}

	go s.awaitCompletion(jobID, we)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(generateResponse{
		TaskID:  jobID,
		Status:  "processing",
		PollURL: "/pipeline/status/" + jobID,
	})
}

// awaitCompletion blocks on the workflow's terminal result and mirrors it
// into the Job Registry, the one place GET /pipeline/status reads from.
// It runs detached from the request that started the job, bounded by the
// job's own deadline plus a fixed grace period so a stuck Temporal
// connection cannot leak the goroutine indefinitely.
func (s *Server) awaitCompletion(jobID string, we client.WorkflowRun) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Pipeline.JobDeadline+30*time.Second)
	defer cancel()

	var result pipeline.JobResult
	if err := we.Get(ctx, &result); err != nil {
		s.logger.Error(ctx, "workflow did not complete", "job_id", jobID, "error", err)
		_ = s.deps.Registry.Update(ctx, jobID, func(j *registry.Job) {
			j.State = registry.JobFailed
			j.ErrorCode = core.ErrInternal
		})
		return
	}

	_ = s.deps.Registry.Update(ctx, jobID, func(j *registry.Job) {
		j.State = result.State
		j.ErrorCode = result.ErrorCode
		j.ResultRef = result.VideoRef
	})
}

type statusResponse struct {
	State         registry.JobState            `json:"state"`
	PerStageStatus map[string]stageStatusView  `json:"per_stage_status"`
	ProgressPct   float64                       `json:"progress_pct"`
	CreatedAt     time.Time                     `json:"created_at"`
	UpdatedAt     time.Time                     `json:"updated_at"`
	ResultURL     string                        `json:"result_url,omitempty"`
	Error         *statusError                  `json:"error,omitempty"`
}

type stageStatusView struct {
	State    registry.StageState `json:"state"`
	Attempts int                 `json:"attempts"`
}

type statusError struct {
	Kind    core.ErrorCode `json:"kind"`
	Message string         `json:"message"`
}

// handleStatus implements GET /pipeline/status/{task_id} (spec §6.2).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := mux.Vars(r)["task_id"]

	job, err := s.deps.Registry.Get(ctx, taskID)
	if err != nil {
		writeError(w, core.Code(err), "job not found")
		return
	}

	resp := statusResponse{
		State:          job.State,
		PerStageStatus: map[string]stageStatusView{},
		CreatedAt:      job.SubmittedAt,
		UpdatedAt:      job.SubmittedAt,
	}

	var completed, total int
	for name, st := range job.Stages {
		resp.PerStageStatus[name] = stageStatusView{State: st.State, Attempts: st.Attempts}
		total++
		if st.State == registry.StageSucceeded || st.State == registry.StageCached || st.State == registry.StageSkipped {
			completed++
		}
		if st.EndedAt.After(resp.UpdatedAt) {
			resp.UpdatedAt = st.EndedAt
		}
	}
	if total > 0 {
		resp.ProgressPct = 100 * float64(completed) / float64(total)
	}
	if !job.TerminalAt.IsZero() {
		resp.UpdatedAt = job.TerminalAt
		resp.ProgressPct = 100
	}

	if job.ResultRef != "" {
		resp.ResultURL = "/pipeline/artifacts/" + job.ResultRef
	}
	if job.ErrorCode != "" {
		resp.Error = &statusError{Kind: job.ErrorCode, Message: string(job.ErrorCode)}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type cancelResponse struct {
	TaskID string           `json:"task_id"`
	State  registry.JobState `json:"state"`
}

// handleCancel implements DELETE /pipeline/tasks/{task_id} (spec §6.3):
// idempotent, and returns 202 with a terminal-state promise rather than
// waiting for the workflow to actually observe the cancellation.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := mux.Vars(r)["task_id"]

	job, err := s.deps.Registry.Get(ctx, taskID)
	if err != nil {
		writeError(w, core.Code(err), "job not found")
		return
	}

	if job.State.IsTerminal() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(cancelResponse{TaskID: taskID, State: job.State})
		return
	}

	_ = s.deps.Registry.Update(ctx, taskID, func(j *registry.Job) {
		j.Cancelled = true
	})

	if err := s.deps.Temporal.CancelWorkflow(ctx, taskID, ""); err != nil {
		s.logger.Warn(ctx, "failed to cancel workflow", "job_id", taskID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(cancelResponse{TaskID: taskID, State: job.State})
}

// containerContentType maps the container_format an operator stamped onto
// a video artifact's Meta to an HTTP content type.
func containerContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// handleArtifact serves a cached artifact's raw bytes by ref, backing the
// result_url the status endpoint returns.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := mux.Vars(r)["ref"]

	art, found, err := s.deps.Cache.Get(ctx, ref)
	if err != nil || !found {
		writeError(w, core.ErrNotFound, "artifact not found")
		return
	}

	w.Header().Set("Content-Type", containerContentType(art.Meta["container_format"]))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Bytes)))
	_, _ = w.Write(art.Bytes)
}

type webhookRequest struct {
	ProviderTaskID  string `json:"provider_task_id"`
	Status          string `json:"status"`
	VideoBase64     string `json:"video_base64"`
	ContainerFormat string `json:"container_format"`
	DurationMS      int64  `json:"duration_ms"`
	ErrorMessage    string `json:"error_message"`
}

// handleWebhook implements POST /webhooks/talking-head (spec §6.4):
// ack-then-process. The response is written before reconciliation runs, so
// a slow or stuck in-process waiter can never hold the provider's callback
// past its own timeout.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, core.ErrInvalidInput, "could not read webhook body")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, core.ErrInvalidInput, "webhook body is not valid JSON")
		return
	}

	w.WriteHeader(http.StatusOK)

	cb := talkinghead.Callback{
		ProviderTaskID:  req.ProviderTaskID,
		Status:          talkinghead.Status(req.Status),
		VideoBase64:     req.VideoBase64,
		ContainerFormat: req.ContainerFormat,
		DurationMS:      req.DurationMS,
		ErrorMessage:    req.ErrorMessage,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.deps.TalkingHead.HandleWebhook(ctx, cb); err != nil {
			s.logger.Warn(ctx, "webhook reconciliation failed", "provider_task_id", req.ProviderTaskID, "error", err)
		}
	}()
}

// readFormFile reads the named multipart field into memory, returning
// (nil, "", err) if the field was not supplied.
func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// clientFingerprint identifies the submitting client for rate limiting
// (spec §4.8: "IP or API key"). An X-API-Key header takes precedence over
// the remote address so a known client isn't penalized for sharing a NAT
// with others.
func clientFingerprint(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// storeInput content-addresses raw upload bytes and caches them as an
// artifact so the workflow can consume them by ref, the same way every
// operator-produced artifact is addressed.
func (s *Server) storeInput(ctx context.Context, kind artifact.Kind, data []byte) (string, error) {
	ref := contentRef(data)
	art := &artifact.Artifact{Ref: ref, Kind: kind, Bytes: data}
	if err := s.deps.Cache.Put(ctx, ref, art, inputArtifactTTL); err != nil {
		return "", fmt.Errorf("server: cache input artifact: %w", err)
	}
	return ref, nil
}

func contentRef(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
