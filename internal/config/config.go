// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	AI      AIConfig      `yaml:"ai" mapstructure:"ai"`
	Builder BuilderConfig `yaml:"builder" mapstructure:"builder"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	Verify  VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// AuthConfig configures token signing and session lifetime.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours" mapstructure:"token_ttl_hours"`
}

// AIConfig holds fallback completion-service settings. Admin-managed settings
// stored in the database take precedence; these cover first boot.
type AIConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// BuilderConfig configures the build-generation pipeline.
type BuilderConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxCandidates  int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	MaxReferences  int     `yaml:"max_references" mapstructure:"max_references"`
	DefaultBudget  float64 `yaml:"default_budget" mapstructure:"default_budget"`
	BudgetOverrun  float64 `yaml:"budget_overrun" mapstructure:"budget_overrun"`
	RetryAttempts  int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMS int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// Timeout returns the per-request generation deadline.
func (c BuilderConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ImportConfig configures the price-list importer.
type ImportConfig struct {
	MaxConcurrentSheets int `yaml:"max_concurrent_sheets" mapstructure:"max_concurrent_sheets"`
	BatchSize           int `yaml:"batch_size" mapstructure:"batch_size"`
}

// VerifyConfig configures verification-code issuance.
type VerifyConfig struct {
	CodeTTLMinutes int     `yaml:"code_ttl_minutes" mapstructure:"code_ttl_minutes"`
	SendRatePerMin float64 `yaml:"send_rate_per_min" mapstructure:"send_rate_per_min"`
	SendBurst      int     `yaml:"send_burst" mapstructure:"send_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RIGFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("auth.token_ttl_hours", 72)
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("builder.timeout_secs", 60)
	v.SetDefault("builder.max_candidates", 8)
	v.SetDefault("builder.max_references", 3)
	v.SetDefault("builder.default_budget", 6000)
	v.SetDefault("builder.budget_overrun", 0.10)
	v.SetDefault("builder.retry_attempts", 3)
	v.SetDefault("builder.retry_backoff_ms", 500)
	v.SetDefault("import.max_concurrent_sheets", 4)
	v.SetDefault("import.batch_size", 500)
	v.SetDefault("verify.code_ttl_minutes", 10)
	v.SetDefault("verify.send_rate_per_min", 1)
	v.SetDefault("verify.send_burst", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
