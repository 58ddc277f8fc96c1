package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App    AppConfig
	LLM    LLMConfig
	Search SearchConfig
	Qloo   QlooConfig
	Agent  AgentConfig
	Store  StoreConfig
	Redis  RedisConfig
}

type AppConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"true"`
	HTTPPort  int    `envconfig:"HTTP_PORT" default:"8080"`
}

type LLMConfig struct {
	Provider      string        `envconfig:"LLM_PROVIDER" default:"openai"`
	Model         string        `envconfig:"LLM_MODEL"`
	OpenAIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
	GeminiKey     string        `envconfig:"GEMINI_API_KEY"`
	Timeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
}

type SearchConfig struct {
	TavilyKey  string        `envconfig:"TAVILY_API_KEY"`
	BaseURL    string        `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	Timeout    time.Duration `envconfig:"SEARCH_TIMEOUT" default:"30s"`
	MaxResults int           `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	Depth      string        `envconfig:"SEARCH_DEPTH" default:"advanced"`
}

type QlooConfig struct {
	APIKey      string        `envconfig:"QLOO_API_KEY"`
	BaseURL     string        `envconfig:"QLOO_BASE_URL" default:"https://hackathon.api.qloo.com"`
	Timeout     time.Duration `envconfig:"QLOO_TIMEOUT" default:"30s"`
	MaxInFlight int64         `envconfig:"QLOO_MAX_IN_FLIGHT" default:"3"`
	Pacing      time.Duration `envconfig:"QLOO_PACING" default:"300ms"`
}

type AgentConfig struct {
	MaxTurns       int           `envconfig:"AGENT_MAX_TURNS" default:"12"`
	ScratchpadTail int           `envconfig:"AGENT_SCRATCHPAD_TAIL" default:"6"`
	RunTimeout     time.Duration `envconfig:"AGENT_RUN_TIMEOUT" default:"10m"`
}

type StoreConfig struct {
	Driver string `envconfig:"DATABASE_DRIVER" default:"sqlite3"`
	URL    string `envconfig:"DATABASE_URL" default:"file:alloy.db?cache=shared"`
}

// RedisConfig is optional; an empty address disables the taste cache.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"TASTE_CACHE_TTL" default:"24h"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "googleai":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Store.Driver)
	}
	if c.Agent.MaxTurns < 1 {
		return fmt.Errorf("AGENT_MAX_TURNS must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Qloo.MaxInFlight < 1 {
		return fmt.Errorf("QLOO_MAX_IN_FLIGHT must be positive, got %d", c.Qloo.MaxInFlight)
	}
	return nil
}
