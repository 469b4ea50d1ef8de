package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"apiagent/internal/domain"
)

// LLMConfig configures the generative model provider. The same provider
// credentials are used by the embedder unless the embedder is local.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	ChatModel         string  `yaml:"chat_model"`
	Temperature       float32 `yaml:"temperature"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	MaxRetries        int     `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Badger *BadgerConfig `yaml:"badger,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// BadgerConfig locates the embedded chunk database.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig controls how many chunks ground each answer.
type RetrievalConfig struct {
	TopN int `yaml:"top_n"`
}

// SandboxConfig selects one execution mode per deployment.
type SandboxConfig struct {
	Mode               string   `yaml:"mode"`
	AllowedProgram     string   `yaml:"allowed_program"`
	Interpreter        []string `yaml:"interpreter"`
	CommandTimeoutSecs int      `yaml:"command_timeout_secs"`
	ScriptTimeoutSecs  int      `yaml:"script_timeout_secs"`
	TempDir            string   `yaml:"temp_dir,omitempty"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig is the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig controls the arbor writers.
type LoggingConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output"`
	File   string   `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &AppConfig{}
			finalize(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	finalize(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/apiagent/config.yaml.
// If neither exists, it writes defaults to ~/.config/apiagent/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg := &AppConfig{}
	finalize(cfg)
	return cfg, userPath, nil
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

// APIKey resolves the provider key from the configured environment variable.
func (c *AppConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
}

// Validate reports fatal configuration problems. The process must not serve
// traffic when it returns an error.
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfiguration, c.LLM.Provider)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("%w: %s is missing, add it to the environment or .env file", domain.ErrConfiguration, c.LLM.APIKeyEnv)
	}
	switch c.Embedder.Type {
	case "gemini", "openai", "tfidf":
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, c.Embedder.Type)
	}
	if c.Embedder.Type != "tfidf" && c.Embedder.Type != c.LLM.Provider {
		return fmt.Errorf("%w: embedder %q needs llm provider %q", domain.ErrConfiguration, c.Embedder.Type, c.Embedder.Type)
	}
	if c.Embedder.Type == "tfidf" && c.VectorStore.Type != "memory" {
		return fmt.Errorf("%w: tfidf embedder only works with the memory vector store", domain.ErrConfiguration)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", domain.ErrConfiguration, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.VectorStore.Type {
	case "memory", "badger":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return fmt.Errorf("%w: qdrant config missing", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, c.VectorStore.Type)
	}
	switch c.Sandbox.Mode {
	case "command":
		if c.Sandbox.AllowedProgram == "" {
			return fmt.Errorf("%w: sandbox.allowed_program is required in command mode", domain.ErrConfiguration)
		}
	case "script":
		if len(c.Sandbox.Interpreter) == 0 {
			return fmt.Errorf("%w: sandbox.interpreter is required in script mode", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown sandbox mode %q", domain.ErrConfiguration, c.Sandbox.Mode)
	}
	return nil
}

// LLMTimeout is the per-call deadline for provider requests.
func (c *AppConfig) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// CommandTimeout is the wall-clock limit for command mode.
func (c *AppConfig) CommandTimeout() time.Duration {
	return time.Duration(c.Sandbox.CommandTimeoutSecs) * time.Second
}

// ScriptTimeout is the wall-clock limit for script mode.
func (c *AppConfig) ScriptTimeout() time.Duration {
	return time.Duration(c.Sandbox.ScriptTimeoutSecs) * time.Second
}

// Addr is the HTTP listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "apiagent", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM:         LLMConfig{Provider: "gemini"},
		VectorStore: VectorStoreConfig{Type: "badger"},
		Sandbox:     SandboxConfig{Mode: "command"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
		Logging:     LoggingConfig{Level: "info", Output: []string{"console"}},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// finalize applies environment overrides before defaults so that a provider
// switched through the environment still gets that provider's defaults.
func finalize(cfg *AppConfig) {
	applyEnvOverrides(cfg)
	applyConfigDefaults(cfg)
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	switch cfg.LLM.Provider {
	case "gemini":
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "GOOGLE_API_KEY"
		}
		if cfg.LLM.ChatModel == "" {
			cfg.LLM.ChatModel = "gemini-2.0-flash"
		}
	case "openai":
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.ChatModel == "" {
			cfg.LLM.ChatModel = "gpt-4o-mini"
		}
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = cfg.LLM.Provider
	}
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Type {
		case "gemini":
			cfg.Embedder.Model = "text-embedding-004"
		case "openai":
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 100
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "badger"
	}
	if cfg.VectorStore.Type == "badger" && cfg.VectorStore.Badger == nil {
		cfg.VectorStore.Badger = &BadgerConfig{}
	}
	if cfg.VectorStore.Badger != nil && cfg.VectorStore.Badger.Path == "" {
		cfg.VectorStore.Badger.Path = filepath.Join("data", "chunks")
	}
	if cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "api_docs"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Retrieval.TopN == 0 {
		cfg.Retrieval.TopN = 3
	}

	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = "command"
	}
	if cfg.Sandbox.AllowedProgram == "" {
		cfg.Sandbox.AllowedProgram = "curl"
	}
	if len(cfg.Sandbox.Interpreter) == 0 {
		cfg.Sandbox.Interpreter = []string{"python3"}
	}
	if cfg.Sandbox.CommandTimeoutSecs == 0 {
		cfg.Sandbox.CommandTimeoutSecs = 10
	}
	if cfg.Sandbox.ScriptTimeoutSecs == 0 {
		cfg.Sandbox.ScriptTimeoutSecs = 30
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.Logging.Output) == 0 {
		cfg.Logging.Output = []string{"console"}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("APIAGENT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("APIAGENT_LLM_CHAT_MODEL"); v != "" {
		cfg.LLM.ChatModel = v
	}
	if v := os.Getenv("APIAGENT_EMBEDDER"); v != "" {
		cfg.Embedder.Type = v
	}
	if v := os.Getenv("APIAGENT_VECTOR_STORE"); v != "" {
		cfg.VectorStore.Type = v
	}
	if v := os.Getenv("APIAGENT_BADGER_PATH"); v != "" {
		if cfg.VectorStore.Badger == nil {
			cfg.VectorStore.Badger = &BadgerConfig{}
		}
		cfg.VectorStore.Badger.Path = v
	}
	if v := os.Getenv("APIAGENT_QDRANT_URL"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("APIAGENT_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.TopN = n
		}
	}
	if v := os.Getenv("APIAGENT_SANDBOX_MODE"); v != "" {
		cfg.Sandbox.Mode = v
	}
	if v := os.Getenv("APIAGENT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("APIAGENT_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("APIAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("APIAGENT_LOG_OUTPUT"); v != "" {
		var outputs []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			cfg.Logging.Output = outputs
		}
	}
}
