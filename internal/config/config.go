package config

import (
	"flag"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Config holds all server settings. Values come from the environment (with
// optional .env file) and may be overridden by flags.
type Config struct {
	RunAddr     string `env:"RUN_ADDRESS"`
	DatabaseDSN string `env:"DATABASE_URI"`

	AuthSecret      string `env:"AUTH_SECRET"`
	TokenExpireDays int    `env:"TOKEN_EXPIRE_DAYS"`
	CookieSecure    bool   `env:"COOKIE_SECURE"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	UploadDir   string `env:"UPLOAD_DIR"`
	MaxUploadMB int    `env:"MAX_UPLOAD_MB"`

	// AI provider settings. AIEnabled is the global feature flag; each user
	// additionally opts in via their settings.
	AIEnabled         bool          `env:"AI_ENABLED"`
	LLMBaseURL        string        `env:"LLM_API_BASE_URL"`
	LLMAPIKey         string        `env:"LLM_API_KEY"`
	LLMChatModel      string        `env:"LLM_CHAT_MODEL"`
	LLMEmbedModel     string        `env:"LLM_EMBED_MODEL"`
	AITimeout         time.Duration `env:"AI_TIMEOUT"`
	SemanticThreshold float64       `env:"SEMANTIC_SIMILARITY_THRESHOLD"`
}

// NewConfig loads configuration: .env file, then environment, then flags
// (flags override only when the env vars are unset), then defaults.
func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	flag.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "listen address host:port")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN (postgres URL or sqlite path)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "secret for signing session tokens")
	flag.IntVar(&cfg.TokenExpireDays, "token-expire-days", cfg.TokenExpireDays, "session token lifetime in days")
	flag.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "directory for attachment files")
	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RunAddr == "" {
		c.RunAddr = "localhost:8080"
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = "notemind.db"
	}
	if c.AuthSecret == "" {
		c.AuthSecret = "dev-secret-key"
	}
	if c.TokenExpireDays <= 0 {
		c.TokenExpireDays = 7
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.UploadDir == "" {
		c.UploadDir = "storage"
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 20
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 20 * time.Second
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = 0.2
	}
	for i, origin := range c.CORSOrigins {
		c.CORSOrigins[i] = strings.TrimSpace(origin)
	}
}

// Validate checks settings that cannot be defaulted away.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RunAddr, validation.Required),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.AuthSecret, validation.Required, validation.Length(8, 0)),
		validation.Field(&c.TokenExpireDays, validation.Min(1)),
		validation.Field(&c.MaxUploadMB, validation.Min(1)),
	)
}

// TokenTTL returns the session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpireDays) * 24 * time.Hour
}
