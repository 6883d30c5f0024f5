package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultUserAgent mimics a desktop browser; the catalog serves a
// reduced page to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Settings holds all configuration options.
//
// Settings are loaded once at startup and validated immediately, so an
// out-of-range value fails the run before any network traffic happens.
type Settings struct {
	// OutputDirectory is where downloaded audiobooks are written.
	OutputDirectory string `json:"output_directory"`

	// MaxConcurrentDownloads caps simultaneously in-flight item
	// pipelines. Must be at least 1.
	MaxConcurrentDownloads int `json:"max_concurrent_downloads"`

	// RetryAttempts is the number of retries after a failed fetch
	// (the fetch itself always gets one attempt). Must be >= 0.
	RetryAttempts int `json:"retry_attempts"`

	// DelayBetweenRequests is the pause in seconds applied after each
	// item pipeline releases its concurrency slot. Must be >= 0.
	DelayBetweenRequests float64 `json:"delay_between_requests"`

	// AudioQuality is "best", "worst", or a numeric bitrate string
	// such as "128".
	AudioQuality string `json:"audio_quality"`

	// EmbedMetadata enables ID3 tagging of downloaded files.
	EmbedMetadata bool `json:"embed_metadata"`

	// SkipExisting skips items whose target file already exists.
	SkipExisting bool `json:"skip_existing"`

	// UserAgent is sent on every HTTP request.
	UserAgent string `json:"user_agent"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		OutputDirectory:        "downloads",
		MaxConcurrentDownloads: 3,
		RetryAttempts:          3,
		DelayBetweenRequests:   1.0,
		AudioQuality:           "best",
		EmbedMetadata:          true,
		SkipExisting:           true,
		UserAgent:              DefaultUserAgent,
	}
}

// Load reads settings from a JSON file. A missing file is not an
// error: defaults are returned. A present but unreadable or invalid
// file is an error, as is any setting outside its allowed range.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file, creating parent directories as
// needed.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks numeric bounds and the audio quality selector.
// Violations surface at load time, not at first use.
func (s *Settings) Validate() error {
	if s.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("max_concurrent_downloads must be at least 1, got %d", s.MaxConcurrentDownloads)
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative, got %d", s.RetryAttempts)
	}
	if s.DelayBetweenRequests < 0 {
		return fmt.Errorf("delay_between_requests must be non-negative, got %g", s.DelayBetweenRequests)
	}
	if !validQuality(s.AudioQuality) {
		return fmt.Errorf("audio_quality must be \"best\", \"worst\" or a bitrate, got %q", s.AudioQuality)
	}
	return nil
}

func validQuality(q string) bool {
	switch q {
	case "best", "worst", "high", "medium", "low":
		return true
	}
	n, err := strconv.Atoi(q)
	return err == nil && n > 0
}

// Headers returns the HTTP request headers used for all catalog
// traffic.
//
// Accept-Encoding is deliberately absent: the transport only
// decompresses gzip responses transparently when it negotiated the
// encoding itself.
func (s *Settings) Headers() map[string]string {
	return map[string]string{
		"User-Agent":                s.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "fr-CA,fr;q=0.9,en;q=0.8",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}
