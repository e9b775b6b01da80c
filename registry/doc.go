package registry

// Example usage:
//
//	reg := inmemory.New()
//	reg.Create(ctx, &registry.Job{ID: jobID, State: registry.JobSubmitted, SubmittedAt: now})
//	reg.Update(ctx, jobID, func(j *registry.Job) {
//	    j.State = registry.JobRunning
//	    j.Stages["persondetector"] = &registry.StageStatus{State: registry.StageRunning, StartedAt: now}
//	})
//	snapshot, err := reg.Get(ctx, jobID)
