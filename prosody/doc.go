package prosody

// Example usage:
//
//	engine := prosody.New(prosody.Config{})
//	adjusted, result := engine.Adjust(ctx, speechArtifact, prosody.Params{Preset: prosody.PresetCelebration})
//	if result.WasFallback {
//	    log.Warn("prosody adjustment rejected, using original audio", "confidence", result.Confidence)
//	}
//	// caller stores `adjusted` in the result cache and fills in result.AdjustedAudioRef/InputAudioRef
//	// from the resulting content-hash refs before persisting the ProsodyResult.
