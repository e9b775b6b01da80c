// Package registry implements the Job Registry (C7): the authoritative
// in-memory index of live jobs, their per-stage status, and their expiry.
package registry

import (
	"context"
	"time"

	"github.com/lookatitude/videogen/core"
)

// JobState is a job's top-level lifecycle state. Submitted -> Running ->
// {Succeeded, Failed, Cancelled}; the terminal states are sticky (spec §4.6).
type JobState string

const (
	JobSubmitted JobState = "Submitted"
	JobRunning   JobState = "Running"
	JobSucceeded JobState = "Succeeded"
	JobFailed    JobState = "Failed"
	JobCancelled JobState = "Cancelled"
)

// IsTerminal reports whether s is one of the sticky terminal states.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// StageState is a single stage's substate within a job.
type StageState string

const (
	StagePending   StageState = "Pending"
	StageCached    StageState = "Cached"
	StageRunning   StageState = "Running"
	StageSucceeded StageState = "Succeeded"
	StageFailed    StageState = "Failed"
	StageSkipped   StageState = "Skipped"
)

// StageStatus tracks one stage's progress within a job.
type StageStatus struct {
	State               StageState
	StartedAt           time.Time
	EndedAt             time.Time
	Attempts            int
	LastErrorCode       core.ErrorCode
	ArtifactFingerprint string
}

// Job is the registry's unit of record: a submitted video-generation
// request and its current state (spec §3). Create, Get, and Update are the
// registry's only mutation surface; callers never hold a Job pointer across
// a mutation boundary — Get returns an independent snapshot.
type Job struct {
	ID                string
	SubmittedAt       time.Time
	ClientFingerprint string
	State             JobState
	Stages            map[string]*StageStatus
	ArtifactRefs      map[string]string
	Cancelled         bool
	Deadline          time.Time
	ErrorCode         core.ErrorCode
	ResultRef         string

	// TerminalAt is stamped by the registry the moment State first becomes
	// terminal; Reap uses it to find jobs past their retention window.
	TerminalAt time.Time
}

// Clone returns a deep, independent copy of j so a reader's snapshot is
// never torn by a concurrent mutation of the original (spec §4.7's
// invariant: "a snapshot returned to readers is a stable copy").
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Stages = make(map[string]*StageStatus, len(j.Stages))
	for k, v := range j.Stages {
		stageCopy := *v
		cp.Stages[k] = &stageCopy
	}
	cp.ArtifactRefs = make(map[string]string, len(j.ArtifactRefs))
	for k, v := range j.ArtifactRefs {
		cp.ArtifactRefs[k] = v
	}
	return &cp
}

// Registry is the Job Registry's operation set (spec §4.7).
type Registry interface {
	// Create registers a new job. Returns core.ErrInvalidInput if a job
	// with the same ID already exists.
	Create(ctx context.Context, job *Job) error

	// Get returns a stable snapshot of the job with the given id, or
	// core.ErrNotFound if no such job exists (or it has been reaped).
	Get(ctx context.Context, id string) (*Job, error)

	// Update applies mutate to the job under its per-job lock, enforcing
	// that a job already in a terminal state never transitions again:
	// mutate is not invoked for jobs already Succeeded, Failed, or
	// Cancelled, so e.g. cancelling an already-terminal job is a silent
	// no-op per spec §6.3. Returns core.ErrNotFound if the job does not exist.
	Update(ctx context.Context, id string, mutate func(*Job)) error

	// Reap removes jobs whose terminal state was reached more than
	// retention ago, returning the count removed.
	Reap(ctx context.Context, retention time.Duration) (int, error)
}
