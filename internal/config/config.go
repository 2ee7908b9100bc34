// Package config loads service configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/warranty-intake/internal/gatekeeper"
	"github.com/sells-group/warranty-intake/internal/ingest"
	"github.com/sells-group/warranty-intake/internal/notify"
	"github.com/sells-group/warranty-intake/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Gatekeeper gatekeeper.Config `yaml:"gatekeeper" mapstructure:"gatekeeper"`
	Ingest     ingest.Config     `yaml:"ingest" mapstructure:"ingest"`
	Resolver   ResolverConfig    `yaml:"resolver" mapstructure:"resolver"`
	Claims     ClaimsConfig      `yaml:"claims" mapstructure:"claims"`
	Vapi       VapiConfig        `yaml:"vapi" mapstructure:"vapi"`
	Notify     notify.Config     `yaml:"notify" mapstructure:"notify"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ResolverConfig configures address matching.
type ResolverConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// ClaimsConfig configures claim creation.
type ClaimsConfig struct {
	DedupWindow time.Duration `yaml:"dedup_window" mapstructure:"dedup_window"`
}

// VapiConfig holds the voice-AI vendor API settings.
type VapiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gatekeeper.lookup_timeout", "1500ms")
	v.SetDefault("gatekeeper.cache_ttl", "60s")
	v.SetDefault("ingest.fallback_delay", "2s")
	v.SetDefault("resolver.similarity_threshold", 0.4)
	v.SetDefault("claims.dedup_window", "24h")
	v.SetDefault("vapi.base_url", "https://api.vapi.ai")

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
