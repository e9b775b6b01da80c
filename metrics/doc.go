package metrics

// Example usage from within a stage operator wrapper:
//
//	start := time.Now()
//	result, err := op.Execute(ctx, inputs, params)
//	metrics.StageLatency(ctx, op.ID(), float64(time.Since(start).Milliseconds()))
//	if err != nil {
//	    metrics.StageError(ctx, op.ID(), string(core.Code(err)))
//	}
