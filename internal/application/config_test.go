package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, "hunter:", config.Redis.KeyPrefix)
	assert.Equal(t, time.Minute, config.Feed.PageTTL())
	assert.Equal(t, 5*time.Minute, config.Feed.EligibilityTTL())
	assert.Equal(t, []string{"ethereum"}, config.Ingest.Chains)
	assert.Equal(t, "alchemy", config.Ingest.PrimaryProvider)
	assert.Equal(t, 24*time.Hour, config.Ingest.BackfillWindow())
}

func TestLoadConfig_FileValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
redis:
  addr: redis.internal:6379
feed:
  page_ttl_seconds: 15
ingest:
  chains: [ethereum, polygon]
  primary_provider: moralis
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "redis.internal:6379", config.Redis.Addr)
	assert.Equal(t, 15*time.Second, config.Feed.PageTTL())
	assert.Equal(t, []string{"ethereum", "polygon"}, config.Ingest.Chains)
	assert.Equal(t, "moralis", config.Ingest.PrimaryProvider)
	assert.Equal(t, "127.0.0.1", config.Server.Host, "unset fields still default")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("PG_DSN", "postgres://hunter:hunter@db/hunter")
	t.Setenv("ALCHEMY_API_KEY", "test-key")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "postgres://hunter:hunter@db/hunter", config.Database.DSN)
	assert.Equal(t, "test-key", config.Ingest.Alchemy.APIKey)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
