// Package ttssynthesizer doc.
//
// # Usage
//
//	op := ttssynthesizer.New(ttssynthesizer.Config{Client: httpClient})
//	art, err := operator.RunWithAdmission(ctx, ctrl, op, nil, map[string]any{
//	    "request": ttssynthesizer.Request{
//	        Text:  "congratulations!",
//	        Voice: ttssynthesizer.VoiceSelector{Provider: ttssynthesizer.VoiceProviderPreset, ID: "narrator-1"},
//	    },
//	    "speed": 1.1,
//	}, deadline)
package ttssynthesizer
