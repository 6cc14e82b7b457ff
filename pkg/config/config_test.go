package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, cfg.Corpus.Source)
	assert.Equal(t, IndexModePhrase, cfg.Corpus.IndexMode)
	assert.Equal(t, 100, cfg.Search.DefaultLimit)
	assert.Equal(t, 8, cfg.Search.PreviewSize)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
server:
  port: 7000
  writeTimeout: 3s
corpus:
  source: json
  path: /srv/recipes.json
  indexPath: /srv/recipes.ridx
  indexMode: words
search:
  defaultLimit: 20
  maxResults: 40
redis:
  enabled: true
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("RR_REDIS_ADDR", "cache:6379")
	t.Setenv("RR_LOGGING_LEVEL", "debug")
	t.Setenv("RR_ADMIN_TOKEN", "ops-token")
	t.Setenv("RR_RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.RateLimit.TrustedProxies)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, SourceJSON, cfg.Corpus.Source)
	assert.Equal(t, "/srv/recipes.ridx", cfg.Corpus.IndexPath)
	assert.Equal(t, IndexModeWords, cfg.Corpus.IndexMode)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "ops-token", cfg.Server.AdminToken)
	// untouched sections keep their defaults
	assert.Equal(t, 8, cfg.Search.PreviewSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown source", func(c *Config) { c.Corpus.Source = "s3" }, "unknown corpus.source"},
		{"missing path", func(c *Config) { c.Corpus.Path = "" }, "corpus.path is required"},
		{"unknown mode", func(c *Config) { c.Corpus.IndexMode = "stems" }, "unknown corpus.indexMode"},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }, "defaultLimit must be positive"},
		{"max below default", func(c *Config) { c.Search.MaxResults = 10 }, "maxResults"},
		{"rate limit without rate", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.RequestsPerMinute = 0
		}, "requestsPerMinute"},
		{"bad trusted proxy", func(c *Config) {
			c.Server.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "proxy.internal"}
		}, "trustedProxies"},
		{"snapshots without schedule", func(c *Config) {
			c.Analytics.SnapshotEnabled = true
			c.Analytics.SnapshotSchedule = " "
		}, "snapshotSchedule"},
		{"postgres without table", func(c *Config) {
			c.Corpus.Source = SourcePostgres
			c.Corpus.Table = ""
		}, "corpus.table is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
