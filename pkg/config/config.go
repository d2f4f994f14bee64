package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Audit     AuditConfig
	LLM       LLMConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool

	// AdminToken enables the audit routes behind a bearer token. Empty
	// leaves them unregistered.
	AdminToken string
}

// StoreConfig points at the review table. Driver is "sqlite3" or "pgx".
type StoreConfig struct {
	Driver         string
	DSN            string
	QueryTimeoutMs int
}

type AuditConfig struct {
	Path  string
	Redis RedisStreamConfig
}

type RedisStreamConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

type LLMConfig struct {
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Ollama     OllamaConfig
	Gemini     GeminiConfig
	Generation ProfileConfig
	Repair     ProfileConfig
	Breaker    BreakerConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
}

type OllamaConfig struct {
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
}

// ProfileConfig is one row of the completion profile table.
type ProfileConfig struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeoutSec   int
}

type PipelineConfig struct {
	RepairPolicy string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/review-agent")

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("REVIEWQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Pipeline.RepairPolicy {
	case "latest", "full_history":
	default:
		return fmt.Errorf("unsupported repair policy %q", c.Pipeline.RepairPolicy)
	}
	for name, p := range map[string]ProfileConfig{"generation": c.LLM.Generation, "repair": c.LLM.Repair} {
		if p.Provider == "" || p.Model == "" {
			return fmt.Errorf("llm.%s needs a provider and a model", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)
	v.SetDefault("server.adminToken", "")

	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "./data/reviews.db")
	v.SetDefault("store.queryTimeoutMs", 10000)

	v.SetDefault("audit.path", "./data/audit.db")
	v.SetDefault("audit.redis.enabled", false)
	v.SetDefault("audit.redis.host", "localhost")
	v.SetDefault("audit.redis.port", 6379)
	v.SetDefault("audit.redis.db", 0)
	v.SetDefault("audit.redis.stream", "reviewq:audit")
	v.SetDefault("audit.redis.maxLen", 10000)

	v.SetDefault("audit.redis.password", "")

	v.SetDefault("llm.openai.apiKey", "")
	v.SetDefault("llm.openai.baseURL", "")
	v.SetDefault("llm.anthropic.apiKey", "")
	v.SetDefault("llm.gemini.apiKey", "")
	v.SetDefault("llm.ollama.baseURL", "http://localhost:11434")

	v.SetDefault("llm.generation.provider", "openai")
	v.SetDefault("llm.generation.model", "gpt-4o-mini")
	v.SetDefault("llm.generation.temperature", 0.1)
	v.SetDefault("llm.generation.maxTokens", 120)
	v.SetDefault("llm.generation.timeoutSec", 20)

	v.SetDefault("llm.repair.provider", "openai")
	v.SetDefault("llm.repair.model", "gpt-4o")
	v.SetDefault("llm.repair.temperature", 0.1)
	v.SetDefault("llm.repair.maxTokens", 200)
	v.SetDefault("llm.repair.timeoutSec", 30)

	v.SetDefault("llm.breaker.failureThreshold", 5)
	v.SetDefault("llm.breaker.openTimeoutSec", 30)

	v.SetDefault("pipeline.repairPolicy", "latest")

	v.SetDefault("rateLimit.requestsPerMinute", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
