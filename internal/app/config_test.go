package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Reflect.OutputMode)
	assert.Equal(t, 30*time.Second, cfg.Reflect.GenerateTimeout)
	assert.Equal(t, 5*time.Second, cfg.Reflect.StoreTimeout)
	assert.EqualValues(t, 64*1024, cfg.Reflect.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, cfg.Server.Heartbeat)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mindtrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  cors_origins: ["https://a.example", "https://b.example"]
db:
  driver: sqlite
reflect:
  output_mode: structured
  generate_timeout: 12s
openai:
  model: gpt-4.1-mini
`), 0o600))

	t.Setenv("REFLECT_GENERATE_TIMEOUT", "3s")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "structured", cfg.Reflect.OutputMode)
	assert.Equal(t, 3*time.Second, cfg.Reflect.GenerateTimeout, "env overrides file")
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.NoError(t, cfg.RequireServe())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REFLECT_OUTPUT_MODE", "xml")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigPostgresNeedsDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestRequireServe(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireServe())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "reflect.output_mode", envKey("REFLECT_OUTPUT_MODE"))
	assert.Equal(t, "redis.addr", envKey("REDIS_ADDR"))
	assert.Equal(t, "", envKey("PATH"))
	assert.Equal(t, "", envKey("HOME_DIR"))
}
