package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	content := []byte(`
granularity: 1h
concurrency: 8
clear_cache: true
fetch:
  requests_per_second: 2.5
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1h", cfg.Granularity)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.ClearCache)
	assert.Equal(t, 2.5, cfg.Fetch.RequestsPerSecond)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().BaseURL, cfg.BaseURL)
	assert.Equal(t, Default().Quote, cfg.Quote)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("granularity: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults_valid", mutate: func(*Config) {}},
		{name: "unknown_granularity", mutate: func(c *Config) { c.Granularity = "9m" }, wantErr: true},
		{name: "zero_concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "empty_base_url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "empty_quote", mutate: func(c *Config) { c.Quote = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, faults.IsConfiguration(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
