package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrew/voice-tutor/pkg/indexer"
	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/retrieval"
	"github.com/andrew/voice-tutor/pkg/session"
	"github.com/andrew/voice-tutor/pkg/vector"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TUTOR_LLM_PROVIDER
const EnvPrefix = "TUTOR"

// Config is the complete server configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Session   SessionConfig   `mapstructure:"session"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig selects the log level and handler format (text or json)
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CorpusConfig locates the course material indexed at startup
type CorpusConfig struct {
	Dir        string   `mapstructure:"dir"`
	Extensions []string `mapstructure:"extensions"`
	// ReuseIndex serves from an already populated vector index instead of
	// rebuilding it. Only a persistent backend (qdrant) can be populated at startup.
	ReuseIndex bool `mapstructure:"reuse_index"`
}

// ChunkingConfig sizes the splitter, in characters
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// LLMConfig selects the generation and embedding provider
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	ChatModel   string        `mapstructure:"chat_model"`
	EmbedModel  string        `mapstructure:"embed_model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// VectorConfig selects the vector index backend
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	QdrantHost string `mapstructure:"qdrant_host"`
	QdrantPort int    `mapstructure:"qdrant_port"`
	Collection string `mapstructure:"collection"`
}

// RetrievalConfig sets how many chunks ground each answer
type RetrievalConfig struct {
	K int `mapstructure:"k"`
}

// SessionConfig bounds per-session history and retention
type SessionConfig struct {
	MaxTurns    int           `mapstructure:"max_turns"`
	MaxSessions int           `mapstructure:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl"`
	Serialize   bool          `mapstructure:"serialize"`
}

// SetDefaults registers every key with its default so environment overrides apply
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("corpus.dir", "./content")
	v.SetDefault("corpus.extensions", indexer.DefaultExtensions)
	v.SetDefault("corpus.reuse_index", false)
	v.SetDefault("chunking.size", indexer.DefaultChunkSize)
	v.SetDefault("chunking.overlap", indexer.DefaultChunkOverlap)
	v.SetDefault("llm.provider", llm.ProviderOllama)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.chat_model", "")
	v.SetDefault("llm.embed_model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("vector.backend", vector.BackendMemory)
	v.SetDefault("vector.qdrant_host", "localhost")
	v.SetDefault("vector.qdrant_port", 6334)
	v.SetDefault("vector.collection", "tutor_corpus")
	v.SetDefault("retrieval.k", retrieval.DefaultK)
	v.SetDefault("session.max_turns", session.DefaultMaxTurns)
	v.SetDefault("session.max_sessions", session.DefaultMaxSessions)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.serialize", true)
}

// Load reads defaults, an optional config file and TUTOR_* environment
// variables, in increasing order of precedence
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if strings.TrimSpace(c.Corpus.Dir) == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap))
	}
	if c.Retrieval.K <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K))
	}
	if c.Session.MaxTurns <= 0 || c.Session.MaxTurns%2 != 0 {
		errs = append(errs, fmt.Errorf("session.max_turns must be a positive even number, got %d", c.Session.MaxTurns))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must not be negative, got %s", c.Session.TTL))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderOllama, llm.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch strings.ToLower(c.Vector.Backend) {
	case vector.BackendMemory, vector.BackendQdrant:
	default:
		errs = append(errs, fmt.Errorf("vector.backend %q is not supported", c.Vector.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ProviderConfig converts the llm section for llm.NewClient
func (c Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:   c.LLM.Provider,
		BaseURL:    c.LLM.BaseURL,
		APIKey:     c.LLM.APIKey,
		ChatModel:  c.LLM.ChatModel,
		EmbedModel: c.LLM.EmbedModel,
		Timeout:    c.LLM.Timeout,
	}
}

// ModelConfig returns generation parameters
func (c Config) ModelConfig() llm.ModelConfig {
	mc := llm.DefaultModelConfig()
	mc.Temperature = float32(c.LLM.Temperature)
	return mc
}

// VectorConfig converts the vector section for vector.New
func (c Config) VectorConfig() vector.Config {
	return vector.Config{
		Backend:    c.Vector.Backend,
		QdrantHost: c.Vector.QdrantHost,
		QdrantPort: c.Vector.QdrantPort,
		Collection: c.Vector.Collection,
	}
}

// SessionConfig converts the session section for session.NewMemoryStore
func (c Config) SessionConfig() session.MemoryConfig {
	return session.MemoryConfig{
		MaxTurns:    c.Session.MaxTurns,
		MaxSessions: c.Session.MaxSessions,
		TTL:         c.Session.TTL,
	}
}
