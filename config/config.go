package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is tried when no --config flag is given.
const DefaultPath = "studybuddy.yaml"

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               string `yaml:"port"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	// SessionIdleMinutes ends sessions unused for this long; negative keeps them forever.
	SessionIdleMinutes int `yaml:"session_idle_minutes"`
}

// LoaderConfig bounds URL fetches.
type LoaderConfig struct {
	FetchTimeoutSecs int   `yaml:"fetch_timeout_secs"`
	MaxBodyBytes     int64 `yaml:"max_body_bytes"`
}

// RetrievalConfig controls chunking and how many chunks feed an answer.
type RetrievalConfig struct {
	Splitter     string `yaml:"splitter"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap *int   `yaml:"chunk_overlap,omitempty"`
	TopK         int    `yaml:"top_k"`
	Collection   string `yaml:"collection"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Dimension   int    `yaml:"dimension"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	APIKey string `yaml:"-"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Type      string `yaml:"type"`
	ChromaURL string `yaml:"chroma_url"`
}

// CompletionConfig selects and configures the completion backend.
type CompletionConfig struct {
	Type          string   `yaml:"type"`
	BaseURL       string   `yaml:"base_url"`
	Path          string   `yaml:"path"`
	Model         string   `yaml:"model"`
	ResponseShape string   `yaml:"response_shape"`
	APIKeyEnv     string   `yaml:"api_key_env"`
	TimeoutSecs   int      `yaml:"timeout_secs"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   *float64 `yaml:"temperature,omitempty"`
	TopP          *float64 `yaml:"top_p,omitempty"`
	Stop          []string `yaml:"stop,omitempty"`

	APIKey string `yaml:"-"`
}

// HistoryConfig selects where task and emotion events are persisted.
type HistoryConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	MongoURI   string `yaml:"mongo_uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// MoodConfig tunes the trailing-window mood evaluation.
type MoodConfig struct {
	WindowMinutes    int     `yaml:"window_minutes"`
	ThresholdPercent float64 `yaml:"threshold_percent"`
}

// LoggingConfig optionally tees log output to a file.
type LoggingConfig struct {
	File string `yaml:"file"`

	// FileOnly drops stderr output, for commands that own the terminal.
	FileOnly bool `yaml:"-"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Loader     LoaderConfig     `yaml:"loader"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Index      IndexConfig      `yaml:"index"`
	Completion CompletionConfig `yaml:"completion"`
	History    HistoryConfig    `yaml:"history"`
	Mood       MoodConfig       `yaml:"mood"`
	Logging    LoggingConfig    `yaml:"logging"`

	GeminiAPIKey  string `yaml:"-"`
	PDFLicenseKey string `yaml:"-"`
}

// Load reads .env (if present), then the YAML file at path. An empty path
// falls back to DefaultPath; a missing default file yields defaults, a
// missing explicit file is an error. Environment overrides and defaults are
// applied last.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("CONFIG WARN: could not read .env: %v", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("STUDYBUDDY_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CHROMA_URL"); v != "" {
		cfg.Index.ChromaURL = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.History.MongoURI = v
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.PDFLicenseKey = os.Getenv("UNIDOC_LICENSE_KEY")

	embKeyEnv := cfg.Embedder.APIKeyEnv
	if embKeyEnv == "" {
		embKeyEnv = "OPENAI_API_KEY"
	}
	cfg.Embedder.APIKey = os.Getenv(embKeyEnv)

	compKeyEnv := cfg.Completion.APIKeyEnv
	if compKeyEnv == "" {
		compKeyEnv = "COMPLETION_API_KEY"
	}
	cfg.Completion.APIKey = os.Getenv(compKeyEnv)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		log.Printf("CONFIG WARN: invalid port %q, using 8080", cfg.Server.Port)
		cfg.Server.Port = "8080"
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 120
	}
	if cfg.Server.SessionIdleMinutes == 0 {
		cfg.Server.SessionIdleMinutes = 120
	}

	if cfg.Loader.FetchTimeoutSecs == 0 {
		cfg.Loader.FetchTimeoutSecs = 10
	}
	if cfg.Loader.MaxBodyBytes == 0 {
		cfg.Loader.MaxBodyBytes = 10 << 20
	}

	if cfg.Retrieval.Splitter == "" {
		cfg.Retrieval.Splitter = "window"
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 500
	}
	if cfg.Retrieval.ChunkOverlap == nil {
		o := 50
		cfg.Retrieval.ChunkOverlap = &o
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 2
	}
	if cfg.Retrieval.Collection == "" {
		cfg.Retrieval.Collection = "study_materials"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hash"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	switch cfg.Embedder.Type {
	case "hash":
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	case "ollama":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "nomic-embed-text:v1.5"
		}
	case "openai":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	case "gemini":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-004"
		}
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Type == "chroma" && cfg.Index.ChromaURL == "" {
		cfg.Index.ChromaURL = "http://localhost:8000"
	}

	if cfg.Completion.Type == "" {
		cfg.Completion.Type = "http"
	}
	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = "http://localhost:11434"
	}
	if cfg.Completion.Path == "" {
		cfg.Completion.Path = "/v1/completions"
	}
	if cfg.Completion.Model == "" {
		if cfg.Completion.Type == "gemini" {
			cfg.Completion.Model = "gemini-2.5-flash"
		} else {
			cfg.Completion.Model = "llama3.2:1b"
		}
	}
	if cfg.Completion.ResponseShape == "" {
		cfg.Completion.ResponseShape = "choices"
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = 60
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 256
	}
	if cfg.Completion.Temperature == nil {
		t := 0.5
		cfg.Completion.Temperature = &t
	}
	if cfg.Completion.TopP == nil {
		p := 0.9
		cfg.Completion.TopP = &p
	}

	if cfg.History.Type == "" {
		cfg.History.Type = "sqlite"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "studybuddy.db"
	}
	if cfg.History.Database == "" {
		cfg.History.Database = "study_buddy"
	}
	if cfg.History.Collection == "" {
		cfg.History.Collection = "history"
	}

	if cfg.Mood.WindowMinutes == 0 {
		cfg.Mood.WindowMinutes = 5
	}
	if cfg.Mood.ThresholdPercent == 0 {
		cfg.Mood.ThresholdPercent = 70
	}
}

// SetupLogging tees the standard logger into the configured file. The
// returned closer is a no-op when no file is configured.
func SetupLogging(cfg LoggingConfig) (io.Closer, error) {
	if cfg.File == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}
	if cfg.FileOnly {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	return f, nil
}
