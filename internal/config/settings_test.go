package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, settings.MaxConcurrentDownloads)
	assert.Equal(t, "best", settings.AudioQuality)
	assert.True(t, settings.SkipExisting)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"output_directory": "/tmp/books",
		"max_concurrent_downloads": 1,
		"audio_quality": "128"
	}`), 0644))

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/books", settings.OutputDirectory)
	assert.Equal(t, 1, settings.MaxConcurrentDownloads)
	assert.Equal(t, "128", settings.AudioQuality)
	// untouched fields keep defaults
	assert.Equal(t, 3, settings.RetryAttempts)
}

func TestLoad_ValidationFailsAtLoadTime(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero concurrency", `{"max_concurrent_downloads": 0}`},
		{"negative retries", `{"retry_attempts": -1}`},
		{"negative delay", `{"delay_between_requests": -0.5}`},
		{"bad quality", `{"audio_quality": "loud"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	settings := DefaultSettings()
	settings.OutputDirectory = "/audio"
	settings.SkipExisting = false
	require.NoError(t, settings.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestHeadersCarryUserAgent(t *testing.T) {
	settings := DefaultSettings()
	settings.UserAgent = "test-agent"

	headers := settings.Headers()
	assert.Equal(t, "test-agent", headers["User-Agent"])
	assert.Contains(t, headers["Accept-Language"], "fr-CA")

	// Setting Accept-Encoding by hand would disable the transport's
	// transparent gzip decompression.
	assert.NotContains(t, headers, "Accept-Encoding")
}
