// Package config provides configuration loading and validation, provider
// configuration, and file watching for the videogen pipeline orchestrator.
//
// # Loading Configuration
//
// [LoadConfig] reads a YAML file named "config" from ".", "/etc/videogen/",
// "$HOME/.videogen" and any extra search paths given, applies built-in
// defaults for unset keys, applies VIDEOGEN_-prefixed environment variable
// overrides (nested keys joined with "_", e.g. VIDEOGEN_CACHE_BACKEND), and
// unmarshals the result into [Cfg]. A missing config file is not an error.
//
//	if err := config.LoadConfig(); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.Cfg
//
// # Validation
//
// [Config.Validate] checks the enumerated backend choices
// (cache.backend, jobs.backend), the connection settings each backend
// choice needs, and that gpu.vram_budget_mb and the rate limit are
// positive. LoadConfig calls it before returning.
//
// The package has no generic struct-tag loader or validator: there is no
// JSON file loader, no default/required/min/max tag handling, and no
// environment-only loader for arbitrary struct types.
//
// # Provider Configuration
//
// [ProviderConfig] holds common configuration for any external provider
// (LLM, embedding, vector store, etc.), including provider name, API key,
// model identifier, base URL, timeout, and a flexible Options map for
// provider-specific settings. [GetOption] retrieves typed values from the
// Options map:
//
//	temp, ok := config.GetOption[float64](cfg, "temperature")
//
// # File Watching
//
// The [Watcher] interface abstracts configuration change detection.
// [FileWatcher] polls a file at regular intervals using SHA-256 content
// hashing, invoking a callback when changes are detected:
//
//	watcher := config.NewFileWatcher("config.json", 5*time.Second)
//	err := watcher.Watch(ctx, func(newConfig any) {
//	    data := newConfig.([]byte)
//	    // re-parse and apply configuration
//	})
package config
