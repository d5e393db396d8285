// Package config loads the application configuration from a YAML file, a .env file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdfrag/internal/chunker"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               string `yaml:"port"`
	GinMode            string `yaml:"gin_mode"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	DefaultK           int    `yaml:"default_k"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	BatchSize         int    `yaml:"batch_size"`
	Concurrency       int    `yaml:"concurrency"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// OpenAILLMConfig configures the chat completions provider.
type OpenAILLMConfig struct {
	BaseURL           string   `yaml:"base_url"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	Model             string   `yaml:"model"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

// GeminiLLMConfig configures the Gemini provider.
type GeminiLLMConfig struct {
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxOutputTokens   int32   `yaml:"max_output_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

// LLMConfig selects and configures the language-model provider.
type LLMConfig struct {
	Type   string           `yaml:"type"`
	OpenAI *OpenAILLMConfig `yaml:"openai,omitempty"`
	Gemini *GeminiLLMConfig `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// MinioConfig holds connection details for a MinIO snapshot bucket.
type MinioConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Secure       bool   `yaml:"secure"`
}

// S3Config holds the bucket for S3 snapshots. Credentials come from the AWS default chain.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// StorageConfig selects where index snapshots are kept.
type StorageConfig struct {
	Type       string       `yaml:"type"`
	PersistDir string       `yaml:"persist_dir"`
	Minio      *MinioConfig `yaml:"minio,omitempty"`
	S3         *S3Config    `yaml:"s3,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type        string        `yaml:"type"`
	Compression string        `yaml:"compression"`
	Storage     StorageConfig `yaml:"storage"`
	Qdrant      *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	LLM         LLMConfig         `yaml:"llm"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault loads .env when present, then tries ./config.yaml and
// ~/.config/pdfrag/config.yaml. If neither exists, it writes defaults to the user path.
func LoadDefault() (*AppConfig, string, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); errors.Is(err, os.ErrNotExist) {
		if err := Save(userPath, defaultConfig()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// LoadDotEnv loads variables from path into the environment when the file exists.
// Variables already set are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the application cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Chunker.Type {
	case "recursive":
		if err := chunker.ValidateParams(c.Chunker.ChunkSize, c.Chunker.ChunkOverlap); err != nil {
			errs = append(errs, err)
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 {
			errs = append(errs, fmt.Errorf("sentences_per_chunk must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chunker type %q", c.Chunker.Type))
	}
	switch c.Embedder.Type {
	case "hashing", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.LLM.Type {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown llm type %q", c.LLM.Type))
	}
	switch c.VectorStore.Type {
	case "flat":
		switch c.VectorStore.Storage.Type {
		case "local":
			if c.VectorStore.Storage.PersistDir == "" {
				errs = append(errs, fmt.Errorf("vector_store.storage.persist_dir is required"))
			}
		case "minio":
			if m := c.VectorStore.Storage.Minio; m == nil || m.Endpoint == "" || m.Bucket == "" {
				errs = append(errs, fmt.Errorf("minio storage needs endpoint and bucket"))
			}
		case "s3":
			if s := c.VectorStore.Storage.S3; s == nil || s.Bucket == "" {
				errs = append(errs, fmt.Errorf("s3 storage needs a bucket"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown storage type %q", c.VectorStore.Storage.Type))
		}
		switch c.VectorStore.Compression {
		case "none", "lz4", "zstd":
		default:
			errs = append(errs, fmt.Errorf("unknown compression %q", c.VectorStore.Compression))
		}
	case "qdrant":
		if q := c.VectorStore.Qdrant; q == nil || q.URL == "" {
			errs = append(errs, fmt.Errorf("qdrant vector store needs a url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector store type %q", c.VectorStore.Type))
	}
	if c.Summarizer.Type != "frequency" {
		errs = append(errs, fmt.Errorf("unknown summarizer type %q", c.Summarizer.Type))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Port: "8000", GinMode: "release", MaxUploadMB: 32, RequestTimeoutSecs: 180, DefaultK: 3},
		Log:      LogConfig{Level: "info", Format: "text"},
		Embedder: EmbedderConfig{Type: "openai"},
		LLM:      LLMConfig{Type: "openai"},
		Chunker:  ChunkerConfig{Type: "recursive", ChunkSize: 1000, ChunkOverlap: 200, SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{
			Type:        "flat",
			Compression: "zstd",
			Storage:     StorageConfig{Type: "local", PersistDir: "./rag_store"},
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 5},
	}
}

// applyEnv overrides file values with the variables the deployment sets.
func applyEnv(cfg *AppConfig) {
	cfg.VectorStore.Storage.PersistDir = getEnv("PERSIST_DIR", cfg.VectorStore.Storage.PersistDir)
	cfg.Chunker.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.Chunker.ChunkSize)
	cfg.Chunker.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", cfg.Chunker.ChunkOverlap)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAILLMConfig{}
		}
		cfg.LLM.OpenAI.Model = model
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.DefaultK <= 0 {
		cfg.Server.DefaultK = 3
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "text-embedding-004"
		}
	}
	if cfg.LLM.Type == "openai" {
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAILLMConfig{}
		}
		o := cfg.LLM.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 120
		}
	}
	if cfg.LLM.Type == "gemini" {
		if cfg.LLM.Gemini == nil {
			cfg.LLM.Gemini = &GeminiLLMConfig{}
		}
		if cfg.LLM.Gemini.APIKeyEnv == "" {
			cfg.LLM.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.LLM.Gemini.Model == "" {
			cfg.LLM.Gemini.Model = "gemini-2.0-flash"
		}
	}
	if q := cfg.VectorStore.Qdrant; q != nil && q.Collection == "" {
		q.Collection = "pdfrag"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
