// Package config loads docmesh settings from YAML, an optional .env file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendMinIO    = "minio"
	BackendWeaviate = "weaviate"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Summarizers used by ingestion.
const (
	SummarizerNone  = "none"
	SummarizerModel = "model"
	SummarizerTeam  = "team"
)

// finish mirrors the reserved routing option.
const finish = "FINISH"

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Weaviate  WeaviateConfig  `yaml:"weaviate"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Workers   []WorkerConfig  `yaml:"workers"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	NATS      NATSConfig      `yaml:"nats"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`

	// envErrs holds environment overrides that could not be parsed.
	envErrs []error
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

type MinIOConfig struct {
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

type WeaviateConfig struct {
	Backend    string `yaml:"backend"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Class      string `yaml:"class"`
	Vectorizer string `yaml:"vectorizer"`
}

type DispatchConfig struct {
	MaxTurns          int `yaml:"max_turns"`
	MaxToolRounds     int `yaml:"max_tool_rounds"`
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// WorkerConfig declares one roster entry.
type WorkerConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
	Instruction string   `yaml:"instruction"`
}

type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

type SandboxConfig struct {
	Enabled bool          `yaml:"enabled"`
	Image   string        `yaml:"image"`
	Memory  int64         `yaml:"memory"`
	Timeout time.Duration `yaml:"timeout"`
}

type LedgerConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	// URL of an external server; empty with Embedded false disables NATS.
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	// BucketSubject is the subject MinIO publishes bucket notifications to.
	BucketSubject string `yaml:"bucket_subject"`
}

type IngestConfig struct {
	// Schedule is a cron expression; empty disables periodic ingestion.
	Schedule   string `yaml:"schedule"`
	Summarizer string `yaml:"summarizer"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Model: ModelConfig{
			Provider: ProviderOpenAI,
			Name:     "gpt-4o-mini",
		},
		MinIO: MinIOConfig{
			Backend:  BackendMinIO,
			Endpoint: "minio:9000",
			Bucket:   "langchain-bucket",
		},
		Weaviate: WeaviateConfig{
			Backend:    BackendWeaviate,
			Endpoint:   "http://weaviate:8080",
			Class:      "MarkdownDocument",
			Vectorizer: "none",
		},
		Dispatch: DispatchConfig{
			MaxTurns:          10,
			MaxToolRounds:     8,
			MaxConcurrentRuns: 4,
		},
		Workspace: WorkspaceConfig{Dir: "data/workspace"},
		Sandbox: SandboxConfig{
			Image:   "python:3.12-slim",
			Memory:  256 * 1024 * 1024,
			Timeout: 30 * time.Second,
		},
		Ledger: LedgerConfig{Path: "data/docmesh.db"},
		NATS: NATSConfig{
			BucketSubject: "docmesh.bucket.events",
		},
		Ingest: IngestConfig{Summarizer: SummarizerModel},
		Server: ServerConfig{Addr: ":8000"},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaults()
	return &cfg
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present. The YAML path is path, DOCMESH_CONFIG, or
// config/docmesh.yaml; a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()

	if path == "" {
		path = os.Getenv("DOCMESH_CONFIG")
	}
	if path == "" {
		path = "config/docmesh.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := Parse(data, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)

	return &cfg, nil
}

// Parse expands environment variables in data and decodes it over cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				cfg.envErrs = append(cfg.envErrs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}

	setString(&cfg.Log.Level, "DOCMESH_LOG_LEVEL")
	setString(&cfg.Model.Provider, "DOCMESH_MODEL_PROVIDER")
	setString(&cfg.Model.Name, "DOCMESH_MODEL")

	switch cfg.Model.Provider {
	case ProviderOpenAI:
		setString(&cfg.Model.APIKey, "OPENAI_API_KEY")
	case ProviderAnthropic:
		setString(&cfg.Model.APIKey, "ANTHROPIC_API_KEY")
	case ProviderGemini:
		setString(&cfg.Model.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}

	setString(&cfg.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinIO.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinIO.Bucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinIO.Secure = b
		} else {
			cfg.envErrs = append(cfg.envErrs, fmt.Errorf("MINIO_SECURE: invalid boolean %q", v))
		}
	}

	setString(&cfg.Weaviate.Endpoint, "WEAVIATE_ENDPOINT")
	setString(&cfg.Weaviate.APIKey, "WEAVIATE_API_KEY")
	setString(&cfg.Weaviate.Class, "WEAVIATE_CLASS")

	setInt(&cfg.Dispatch.MaxTurns, "DOCMESH_MAX_TURNS")
	setInt(&cfg.Dispatch.MaxConcurrentRuns, "DOCMESH_MAX_CONCURRENT_RUNS")

	setString(&cfg.Ledger.Path, "DOCMESH_LEDGER_PATH")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Ingest.Schedule, "DOCMESH_INGEST_SCHEDULE")
	setString(&cfg.Server.Addr, "DOCMESH_ADDR")
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)

	if c.Dispatch.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_turns must be positive, got %d", c.Dispatch.MaxTurns))
	}
	if c.Dispatch.MaxConcurrentRuns <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_concurrent_runs must be positive, got %d", c.Dispatch.MaxConcurrentRuns))
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}

	switch c.MinIO.Backend {
	case BackendMinIO, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("minio.backend: unknown backend %q", c.MinIO.Backend))
	}
	if c.MinIO.Bucket == "" {
		errs = append(errs, errors.New("minio.bucket is required"))
	}

	switch c.Weaviate.Backend {
	case BackendWeaviate, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("weaviate.backend: unknown backend %q", c.Weaviate.Backend))
	}
	if c.Weaviate.Class == "" {
		errs = append(errs, errors.New("weaviate.class is required"))
	}

	seen := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		name := strings.TrimSpace(w.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("workers[%d]: name is required", i))
		case name == finish:
			errs = append(errs, fmt.Errorf("workers[%d]: name %q is reserved", i, finish))
		case seen[name]:
			errs = append(errs, fmt.Errorf("workers[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
	}

	if c.Ingest.Schedule != "" && !gronx.New().IsValid(c.Ingest.Schedule) {
		errs = append(errs, fmt.Errorf("ingest.schedule: invalid cron expression %q", c.Ingest.Schedule))
	}

	switch c.Ingest.Summarizer {
	case SummarizerNone, SummarizerModel, SummarizerTeam:
	default:
		errs = append(errs, fmt.Errorf("ingest.summarizer: unknown summarizer %q", c.Ingest.Summarizer))
	}

	return errors.Join(errs...)
}
