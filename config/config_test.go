package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "langchain-bucket", cfg.MinIO.Bucket)
	assert.Equal(t, "http://weaviate:8080", cfg.Weaviate.Endpoint)
	assert.Equal(t, "MarkdownDocument", cfg.Weaviate.Class)
	assert.Equal(t, 10, cfg.Dispatch.MaxTurns)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("TEST_BUCKET", "reports")
	t.Setenv("WEAVIATE_ENDPOINT", "http://localhost:8081")
	t.Setenv("DOCMESH_MAX_TURNS", "4")

	yml := `
minio:
  bucket: ${TEST_BUCKET}
dispatch:
  max_tool_rounds: 3
sandbox:
  timeout: 5s
workers:
  - name: researcher
    description: Research things.
    tools: [minio]
`
	path := filepath.Join(dir, "docmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reports", cfg.MinIO.Bucket)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "http://localhost:8081", cfg.Weaviate.Endpoint)
	assert.Equal(t, 4, cfg.Dispatch.MaxTurns)
	assert.Equal(t, 3, cfg.Dispatch.MaxToolRounds)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	require.Len(t, cfg.Workers, 1)
	assert.Equal(t, []string{"minio"}, cfg.Workers[0].Tools)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if _, ok := os.LookupEnv("MINIO_SECRET_KEY"); ok {
		t.Skip("MINIO_SECRET_KEY already set; .env never overrides the environment")
	}
	t.Cleanup(func() { _ = os.Unsetenv("MINIO_SECRET_KEY") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MINIO_SECRET_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.MinIO.SecretKey)
}

func TestLoad_MalformedEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("DOCMESH_MAX_TURNS", "ten")
	t.Setenv("DOCMESH_MAX_CONCURRENT_RUNS", "4x")
	t.Setenv("MINIO_SECURE", "maybe")

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Dispatch.MaxTurns)
	assert.False(t, cfg.MinIO.Secure)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `DOCMESH_MAX_TURNS: invalid integer "ten"`)
	assert.Contains(t, err.Error(), `DOCMESH_MAX_CONCURRENT_RUNS: invalid integer "4x"`)
	assert.Contains(t, err.Error(), `MINIO_SECURE: invalid boolean "maybe"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero max turns", func(c *Config) { c.Dispatch.MaxTurns = 0 }},
		{"unknown provider", func(c *Config) { c.Model.Provider = "llama" }},
		{"unknown backend", func(c *Config) { c.MinIO.Backend = "s3" }},
		{"empty worker name", func(c *Config) { c.Workers = []WorkerConfig{{Name: ""}} }},
		{"reserved worker name", func(c *Config) { c.Workers = []WorkerConfig{{Name: "FINISH"}} }},
		{"duplicate worker", func(c *Config) { c.Workers = []WorkerConfig{{Name: "a"}, {Name: "a"}} }},
		{"bad cron", func(c *Config) { c.Ingest.Schedule = "every day" }},
		{"unknown summarizer", func(c *Config) { c.Ingest.Summarizer = "magic" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParse_ExampleFile(t *testing.T) {
	data, err := os.ReadFile("docmesh.example.yaml")
	require.NoError(t, err)

	cfg := Default()
	require.NoError(t, Parse(data, cfg))
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Workers, 5)
	assert.Equal(t, "automation", cfg.Workers[2].Name)
	assert.Equal(t, []string{"python_repl"}, cfg.Workers[2].Tools)
	assert.Empty(t, cfg.Workers[4].Tools)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, SummarizerModel, cfg.Ingest.Summarizer)
}
