package ingest

// Example usage from the HTTP submission handler, before a Job is created:
//
//	result, err := ingest.DefaultGate().Check(ctx, ingest.Submission{
//	    ImageBytes: imageBytes,
//	    Text:       req.Text,
//	    Voice:      ingest.VoiceSelector{Provider: req.Voice.Provider, ID: req.Voice.ID},
//	})
//	if err != nil {
//	    return core.NewError("handler.Generate", core.ErrInternal, "ingest check failed", err)
//	}
//	if !result.Allowed {
//	    return core.NewError("handler.Generate", result.Code, result.Reason, nil)
//	}
