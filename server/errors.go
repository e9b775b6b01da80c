package server

import (
	"encoding/json"
	"net/http"

	"github.com/lookatitude/videogen/core"
)

// errorEnvelope is the response shape spec §6.5 names for every non-2xx
// response.
type errorEnvelope struct {
	Success bool       `json:"success"`
	Error   errorBody  `json:"error"`
}

type errorBody struct {
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// httpStatusFor maps a core.ErrorCode to the HTTP status the error envelope
// is written under.
func httpStatusFor(code core.ErrorCode) int {
	switch code {
	case core.ErrInvalidInput:
		return http.StatusBadRequest
	case core.ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case core.ErrRateLimited:
		return http.StatusTooManyRequests
	case core.ErrResourceExhausted:
		return http.StatusServiceUnavailable
	case core.ErrUpstreamFailed:
		return http.StatusBadGateway
	case core.ErrTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCancelled:
		return http.StatusConflict
	case core.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error envelope for code/message at its mapped HTTP
// status. Internal details never reach the response body (spec §7):
// callers pass only a human-safe message here; anything more specific
// belongs in a log line, not details.
func writeError(w http.ResponseWriter, code core.ErrorCode, message string) {
	writeErrorDetails(w, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, code core.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(code))
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success: false,
		Error:   errorBody{Code: code, Message: message, Details: details},
	})
}
