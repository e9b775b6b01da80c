package pipeline

// Example worker setup, run once per process alongside the HTTP ingestion
// surface:
//
//	temporalClient, _ := client.Dial(client.Options{HostPort: cfg.TemporalAddr})
//	defer temporalClient.Close()
//
//	w, err := pipeline.NewWorker(temporalClient, pipeline.DefaultConfig("videogen-tasks"), pipeline.Deps{
//	    Cache:     resultCache,
//	    Admission: admissionController,
//	    Operators: operatorRegistry,
//	    Registry:  jobRegistry,
//	    Prosody:   prosodyEngine,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Run(worker.InterruptCh()); err != nil {
//	    log.Fatal(err)
//	}
//
// Starting a job from the ingestion layer:
//
//	we, err := temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
//	    ID:        job.ID,
//	    TaskQueue: cfg.TaskQueue,
//	}, pipeline.JobWorkflow, cfg, input)
