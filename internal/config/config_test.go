package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, cfg.LLM.BaseURL, cfg.LLM.EmbeddingBaseURL)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 10, cfg.RAG.EmbeddingBatchSize)
	assert.Equal(t, 5, cfg.Worker.MaxJobs)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9000

[llm]
provider = "mistral"
api_key = "from-file"
model = "mistral-small-latest"

[upload]
max_pages_per_tenant = 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("RAG_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "mistral", cfg.LLM.Provider)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "from-env", cfg.LLM.EmbeddingAPIKey)
	assert.Equal(t, 42, cfg.Upload.MaxPagesPerTenant)
	assert.False(t, cfg.RAG.Enabled)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errIs  error
	}{
		{
			name:   "missing jwt secret",
			mutate: func(c *Config) { c.Auth.JWTSecret = "" },
			errIs:  ErrMissingSetting,
		},
		{
			name: "hosted provider without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "mistral"
				c.LLM.APIKey = ""
			},
			errIs: ErrMissingSetting,
		},
		{
			name:   "gcs without bucket",
			mutate: func(c *Config) { c.Storage.Backend = "gcs" },
			errIs:  ErrMissingSetting,
		},
		{
			name:   "pgvector on mysql",
			mutate: func(c *Config) { c.Database.Driver = "mysql" },
		},
		{
			name:   "overlap not smaller than size",
			mutate: func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.resolveProvider()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			if tc.errIs != nil {
				assert.ErrorIs(t, err, tc.errIs)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "host=127.0.0.1 port=5432 user=postgres password=postgres dbname=tenantrag sslmode=disable TimeZone=UTC", cfg.DatabaseDSN())

	cfg.Database = DatabaseConfig{
		Driver: "mysql", Host: "db", Port: 3306, User: "root", Password: "pw", DB: "rag", Params: "parseTime=true",
	}
	assert.Equal(t, "root:pw@tcp(db:3306)/rag?parseTime=true", cfg.DatabaseDSN())
}
