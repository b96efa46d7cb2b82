// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	// DefaultConfigPath is the optional configuration file read at startup.
	DefaultConfigPath = "ragbot.yaml"
	// DefaultEnvFile is the dotenv file loaded before the environment is read.
	DefaultEnvFile = ".env"
	// defaultRAGTimeout bounds a single call to the completion endpoint.
	defaultRAGTimeout = 30 * time.Second
	// defaultEmbeddingTimeout bounds a single call to a remote embedding backend.
	defaultEmbeddingTimeout = 60 * time.Second
)

// Embedding provider identifiers accepted by EmbeddingProvider.
const (
	ProviderLocal  = "local"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config represents the top-level application configuration.
type Config struct {
	APIHost    string `mapstructure:"apiHost" yaml:"apiHost" json:"apiHost"`
	APIPort    int    `mapstructure:"apiPort" yaml:"apiPort" json:"apiPort"`
	APIBaseURL string `mapstructure:"apiBaseURL" yaml:"apiBaseURL" json:"apiBaseURL"`

	DocumentPath  string `mapstructure:"documentPath" yaml:"documentPath" json:"documentPath"`
	PersistFolder string `mapstructure:"persistFolder" yaml:"persistFolder" json:"persistFolder"`

	EmbeddingProvider    string `mapstructure:"embeddingProvider" yaml:"embeddingProvider" json:"embeddingProvider"`
	EmbeddingModel       string `mapstructure:"embeddingModel" yaml:"embeddingModel" json:"embeddingModel"`
	EmbeddingURL         string `mapstructure:"embeddingURL" yaml:"embeddingURL" json:"embeddingURL"`
	EmbeddingAPIKey      string `mapstructure:"embeddingAPIKey" yaml:"embeddingAPIKey,omitempty" json:"embeddingAPIKey,omitempty"`
	EmbeddingDimension   int    `mapstructure:"embeddingDimension" yaml:"embeddingDimension" json:"embeddingDimension"`
	EmbeddingCacheFolder string `mapstructure:"embeddingCacheFolder" yaml:"embeddingCacheFolder" json:"embeddingCacheFolder"`
	EmbeddingConcurrency int    `mapstructure:"embeddingConcurrency" yaml:"embeddingConcurrency" json:"embeddingConcurrency"`
	EmbeddingTimeout     int    `mapstructure:"embeddingTimeout" yaml:"embeddingTimeout" json:"embeddingTimeout"`

	RAGAPIKey  string `mapstructure:"ragAPIKey" yaml:"ragAPIKey,omitempty" json:"ragAPIKey,omitempty"`
	RAGAPIURL  string `mapstructure:"ragAPIURL" yaml:"ragAPIURL" json:"ragAPIURL"`
	RAGModel   string `mapstructure:"ragModel" yaml:"ragModel" json:"ragModel"`
	RAGTimeout int    `mapstructure:"ragTimeout" yaml:"ragTimeout" json:"ragTimeout"`
	RAGTopK    int    `mapstructure:"ragTopK" yaml:"ragTopK" json:"ragTopK"`

	ChunkSize    int `mapstructure:"chunkSize" yaml:"chunkSize" json:"chunkSize"`
	ChunkOverlap int `mapstructure:"chunkOverlap" yaml:"chunkOverlap" json:"chunkOverlap"`

	LogFile string `mapstructure:"logFile" yaml:"logFile" json:"logFile"`
	Debug   bool   `mapstructure:"debug" yaml:"debug" json:"debug"`

	ConfigPath string `mapstructure:"-" yaml:"-" json:"-"`
}

// binding ties a config key to its environment variable and default.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"apiHost", "API_HOST", "0.0.0.0"},
	{"apiPort", "API_PORT", 8000},
	{"apiBaseURL", "API_BASE_URL", "http://localhost:8000"},
	{"documentPath", "DOCUMENT_PATH", filepath.Join("data", "document.pdf")},
	{"persistFolder", "PERSIST_FOLDER", "vectorstore"},
	{"embeddingProvider", "EMBEDDING_PROVIDER", ProviderLocal},
	{"embeddingModel", "EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"},
	{"embeddingURL", "EMBEDDING_URL", "http://localhost:11434"},
	{"embeddingAPIKey", "EMBEDDING_API_KEY", ""},
	{"embeddingDimension", "EMBEDDING_DIMENSION", 384},
	{"embeddingCacheFolder", "EMBEDDING_CACHE_FOLDER", "models"},
	{"embeddingConcurrency", "EMBEDDING_CONCURRENCY", 4},
	{"embeddingTimeout", "EMBEDDING_TIMEOUT", int(defaultEmbeddingTimeout.Seconds())},
	{"ragAPIKey", "RAG_API_KEY", ""},
	{"ragAPIURL", "RAG_API_URL", "https://api.voidai.app/v1/chat/completions"},
	{"ragModel", "RAG_MODEL", "gpt-4o"},
	{"ragTimeout", "RAG_TIMEOUT", int(defaultRAGTimeout.Seconds())},
	{"ragTopK", "RAG_TOP_K", 10},
	{"chunkSize", "CHUNK_SIZE", 1000},
	{"chunkOverlap", "CHUNK_OVERLAP", 200},
	{"logFile", "LOG_FILE", "ragbot.log"},
	{"debug", "DEBUG", false},
}

func bind(v *viper.Viper) {
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		_ = v.BindEnv(b.key, b.env)
	}
}

// Defaults returns the configuration with every hardcoded default applied.
func Defaults() Config {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// LoadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not load env file %q: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper, loaded bool) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if loaded {
		cfg.ConfigPath = v.ConfigFileUsed()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration from path (optional), the environment, and
// defaults. ConfigPath is left empty when no file was read.
func Load(path string) (Config, error) {
	v := viper.New()
	bind(v)
	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
		}
		loaded = false
	}
	return fromViper(v, loaded)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be greater than zero")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunkOverlap must be zero or greater")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunkOverlap must be smaller than chunkSize")
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("apiPort %d is out of range", c.APIPort)
	}
	if c.RAGTopK <= 0 {
		return fmt.Errorf("ragTopK must be greater than zero")
	}
	switch c.EmbeddingProviderName() {
	case ProviderLocal, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embeddingProvider %q (expected %q, %q or %q)", c.EmbeddingProvider, ProviderLocal, ProviderOllama, ProviderOpenAI)
	}
	return nil
}

// EmbeddingProviderName returns the normalized embedding backend name.
func (c Config) EmbeddingProviderName() string {
	name := strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	if name == "" {
		return ProviderLocal
	}
	return name
}

// RequestTimeout returns the completion request timeout, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.RAGTimeout <= 0 {
		return defaultRAGTimeout
	}
	return time.Duration(c.RAGTimeout) * time.Second
}

// EmbeddingRequestTimeout returns the timeout for one embedding backend call.
func (c Config) EmbeddingRequestTimeout() time.Duration {
	if c.EmbeddingTimeout <= 0 {
		return defaultEmbeddingTimeout
	}
	return time.Duration(c.EmbeddingTimeout) * time.Second
}

// ListenAddr returns the host:port the gateway binds to.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "ragbot.log"
}

// Redacted returns a copy with secrets masked for display.
func (c Config) Redacted() Config {
	c.RAGAPIKey = maskSecret(c.RAGAPIKey)
	c.EmbeddingAPIKey = maskSecret(c.EmbeddingAPIKey)
	return c
}

func maskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %q: %w", path, err)
	}
	return nil
}
