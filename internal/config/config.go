// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends selectable for records and authentication.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Assistant modes.
const (
	AssistantEcho = "echo"
	AssistantLLM  = "llm"
	AssistantGRPC = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port         string          `yaml:"port"`
	FrontendURL  string          `yaml:"frontend_url"`
	DBPath       string          `yaml:"db_path"`
	Backend      string          `yaml:"backend"`
	WorkspaceTTL time.Duration   `yaml:"workspace_ttl"`
	Supabase     SupabaseConfig  `yaml:"supabase"`
	Auth         AuthConfig      `yaml:"auth"`
	Assistant    AssistantConfig `yaml:"assistant"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Redis        RedisConfig     `yaml:"redis"`
	Storage      StorageConfig   `yaml:"storage"`
	Analysis     AnalysisConfig  `yaml:"analysis"`
}

// SupabaseConfig points at a managed Supabase project.
type SupabaseConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// AuthConfig controls the local authentication provider.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	ResetTTL  time.Duration `yaml:"reset_ttl"`
}

// AssistantConfig selects and tunes the reply backend.
type AssistantConfig struct {
	Mode       string        `yaml:"mode"`
	ReplyDelay time.Duration `yaml:"reply_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	LLMBaseURL string        `yaml:"llm_base_url"`
	LLMToken   string        `yaml:"llm_token"`
	LLMModel   string        `yaml:"llm_model"`
	GRPCAddr   string        `yaml:"grpc_addr"`
}

// RateLimitConfig bounds how fast one user can send chat messages.
type RateLimitConfig struct {
	MessagesPerMinute int `yaml:"messages_per_minute"`
	Burst             int `yaml:"burst"`
}

// RedisConfig enables the Redis token revocation store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig enables report upload to S3-compatible storage when Endpoint is set.
type StorageConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	UseSSL    bool          `yaml:"use_ssl"`
	URLExpiry time.Duration `yaml:"url_expiry"`
}

// AnalysisConfig tunes the insight window and tracker listings.
type AnalysisConfig struct {
	WindowDays int `yaml:"window_days"`
	ListLimit  int `yaml:"list_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:         "8080",
		DBPath:       "./data/healthjournal.db",
		Backend:      BackendSQLite,
		WorkspaceTTL: 60 * time.Minute,
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			ResetTTL: 30 * time.Minute,
		},
		Assistant: AssistantConfig{
			Mode:       AssistantEcho,
			ReplyDelay: time.Second,
			Timeout:    30 * time.Second,
			LLMBaseURL: "http://localhost:11434/v1/",
			LLMModel:   "llama3.1:8b",
		},
		RateLimit: RateLimitConfig{
			MessagesPerMinute: 30,
			Burst:             5,
		},
		Storage: StorageConfig{
			Bucket:    "health-reports",
			URLExpiry: 15 * time.Minute,
		},
		Analysis: AnalysisConfig{
			WindowDays: 30,
			ListLimit:  50,
		},
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variables on top.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.Backend = strings.ToLower(getEnv("BACKEND", c.Backend))
	c.WorkspaceTTL = getEnvDuration("WORKSPACE_TTL", c.WorkspaceTTL)

	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.Key = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.Supabase.Key)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getEnvDuration("TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.ResetTTL = getEnvDuration("RESET_TOKEN_TTL", c.Auth.ResetTTL)

	c.Assistant.Mode = strings.ToLower(getEnv("ASSISTANT_MODE", c.Assistant.Mode))
	c.Assistant.ReplyDelay = getEnvDuration("ASSISTANT_REPLY_DELAY", c.Assistant.ReplyDelay)
	c.Assistant.Timeout = getEnvDuration("ASSISTANT_TIMEOUT", c.Assistant.Timeout)
	c.Assistant.LLMBaseURL = getEnv("LLM_BASE_URL", c.Assistant.LLMBaseURL)
	c.Assistant.LLMToken = getEnv("OPENAI_API_KEY", c.Assistant.LLMToken)
	c.Assistant.LLMModel = getEnv("LLM_MODEL", c.Assistant.LLMModel)
	c.Assistant.GRPCAddr = getEnv("ASSISTANT_GRPC_ADDR", c.Assistant.GRPCAddr)

	c.RateLimit.MessagesPerMinute = getEnvInt("RATE_LIMIT_MESSAGES_PER_MINUTE", c.RateLimit.MessagesPerMinute)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("STORAGE_BUCKET", c.Storage.Bucket)
	c.Storage.UseSSL = getEnvBool("STORAGE_USE_SSL", c.Storage.UseSSL)
	c.Storage.URLExpiry = getEnvDuration("STORAGE_URL_EXPIRY", c.Storage.URLExpiry)

	c.Analysis.WindowDays = getEnvInt("ANALYSIS_WINDOW_DAYS", c.Analysis.WindowDays)
	c.Analysis.ListLimit = getEnvInt("TRACKER_LIST_LIMIT", c.Analysis.ListLimit)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
		if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q", c.Backend)
	}
	switch c.Assistant.Mode {
	case AssistantEcho, AssistantLLM:
	case AssistantGRPC:
		if c.Assistant.GRPCAddr == "" {
			return fmt.Errorf("ASSISTANT_GRPC_ADDR is required for the grpc assistant")
		}
	default:
		return fmt.Errorf("unknown ASSISTANT_MODE %q", c.Assistant.Mode)
	}
	if c.Assistant.ReplyDelay < 0 {
		return fmt.Errorf("ASSISTANT_REPLY_DELAY must be >= 0")
	}
	if c.RateLimit.MessagesPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("WORKSPACE_TTL must be > 0")
	}
	if c.Analysis.WindowDays <= 0 {
		return fmt.Errorf("ANALYSIS_WINDOW_DAYS must be > 0")
	}
	if c.Analysis.ListLimit <= 0 {
		return fmt.Errorf("TRACKER_LIST_LIMIT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// StorageEnabled reports whether report uploads are configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
