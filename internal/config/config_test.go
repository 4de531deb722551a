package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.APIURL)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.Equal(t, 150*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 5*time.Second, cfg.SurveyDelay)
	assert.Equal(t, 2*time.Second, cfg.SurveyAck)
	assert.NoError(t, cfg.Validate())
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("API_URL", "https://api.foodiepass.example")
	t.Setenv("SCAN_TIMEOUT", "90s")
	t.Setenv("IMAGE_STRATEGY", "passthrough")
	t.Setenv("LOCALE", "en")
	t.Setenv("DB_PATH", "")

	cfg := Load()

	assert.Equal(t, "https://api.foodiepass.example", cfg.APIURL)
	assert.Equal(t, 90*time.Second, cfg.ScanTimeout)
	assert.Equal(t, "passthrough", cfg.ImageStrategy)
	assert.Equal(t, "en", cfg.Locale)
	assert.Empty(t, cfg.DBPath)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("SURVEY_DELAY", "soon")
	assert.Equal(t, 5*time.Second, Load().SurveyDelay)
}

func TestLoadFileOverlay(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	path := filepath.Join(t.TempDir(), "foodiepass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://backend:8080\nscan_timeout: 30s\nlog_format: text\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8080", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.ScanTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_timeout: [1, 2"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative url", mutate: func(c *Config) { c.APIURL = "/api" }},
		{name: "ftp url", mutate: func(c *Config) { c.APIURL = "ftp://host" }},
		{name: "zero timeout", mutate: func(c *Config) { c.ScanTimeout = 0 }},
		{name: "zero catalog timeout", mutate: func(c *Config) { c.CatalogTimeout = 0 }},
		{name: "negative delay", mutate: func(c *Config) { c.SurveyDelay = -time.Second }},
		{name: "bad strategy", mutate: func(c *Config) { c.ImageStrategy = "sepia" }},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
