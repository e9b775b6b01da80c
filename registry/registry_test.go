package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobState_IsTerminal(t *testing.T) {
	cases := map[JobState]bool{
		JobSubmitted: false,
		JobRunning:   false,
		JobSucceeded: true,
		JobFailed:    true,
		JobCancelled: true,
	}
	for state, want := range cases {
		assert.Equal(t, want, state.IsTerminal(), "state %s", state)
	}
}

func TestJob_Clone_IsIndependent(t *testing.T) {
	original := &Job{
		ID:    "job-1",
		State: JobRunning,
		Stages: map[string]*StageStatus{
			"persondetector": {State: StageRunning, StartedAt: time.Now()},
		},
		ArtifactRefs: map[string]string{"input_image": "abc123"},
	}

	clone := original.Clone()
	clone.State = JobFailed
	clone.Stages["persondetector"].State = StageFailed
	clone.Stages["new"] = &StageStatus{State: StagePending}
	clone.ArtifactRefs["input_image"] = "mutated"
	clone.ArtifactRefs["extra"] = "added"

	assert.Equal(t, JobRunning, original.State)
	assert.Equal(t, StageRunning, original.Stages["persondetector"].State)
	assert.Len(t, original.Stages, 1)
	assert.Equal(t, "abc123", original.ArtifactRefs["input_image"])
	assert.Len(t, original.ArtifactRefs, 1)
}

func TestJob_Clone_Nil(t *testing.T) {
	var j *Job
	assert.Nil(t, j.Clone())
}
