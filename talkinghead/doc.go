package talkinghead

// Example usage:
//
//	client := talkinghead.New(talkinghead.Config{Client: httpClient})
//
//	// POST /webhooks/talking-head handler:
//	func handleWebhook(w http.ResponseWriter, r *http.Request) {
//	    var cb talkinghead.Callback
//	    json.NewDecoder(r.Body).Decode(&cb)
//	    client.HandleWebhook(r.Context(), cb) // always 200, even for unknown ids
//	    w.WriteHeader(http.StatusOK)
//	}
//
//	// orchestrator activity:
//	result, err := client.Submit(ctx, talkinghead.SubmitRequest{ImageRef: imgRef, AudioRef: audioRef})
