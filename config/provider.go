package config

import "time"

// ProviderConfig holds common configuration for any external operator
// backend (talking-head provider, TTS service, detection/matting model
// server). Provider-specific options live in the Options map.
//
// Example JSON:
//
//	{
//	  "provider": "d-id",
//	  "api_key": "sk-...",
//	  "model": "talking-head-v2",
//	  "base_url": "https://api.d-id.com",
//	  "timeout": 120000000000,
//	  "options": {"video_quality": "standard"}
//	}
type ProviderConfig struct {
	// Provider is the registered provider name (e.g. "d-id", "voicevox").
	Provider string `json:"provider" required:"true"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key"`

	// Model is the model/voice identifier the provider should use.
	Model string `json:"model"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `json:"base_url"`

	// Timeout is the maximum duration for a single request.
	Timeout time.Duration `json:"timeout" default:"30000000000"`

	// Options holds provider-specific key-value configuration.
	Options map[string]any `json:"options"`
}

// GetOption retrieves a typed value from the provider's Options map.
// It returns the value and true if the key exists and the type assertion
// succeeds, or the zero value of T and false otherwise.
//
// Usage:
//
//	temp, ok := config.GetOption[float64](cfg, "temperature")
func GetOption[T any](cfg ProviderConfig, key string) (T, bool) {
	var zero T
	if cfg.Options == nil {
		return zero, false
	}
	v, ok := cfg.Options[key]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
